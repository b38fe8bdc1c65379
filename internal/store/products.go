package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = "id, farmer_id, name, description, price, unit, qty_available, image_url, active, created_at, updated_at, version"

type ProductInput struct {
	Name         string
	Description  string
	Price        decimal.Decimal
	Unit         string
	QtyAvailable decimal.Decimal
}

func CreateProduct(ctx context.Context, db *sql.DB, farmerEmail string, in ProductInput) (*models.Product, error) {
	farmer, err := GetUserByEmail(ctx, db, farmerEmail)
	if err != nil {
		return nil, err
	}
	if farmer.Role != models.RoleFarmer {
		return nil, validationf("only farmers can create products")
	}

	if in.Price.IsNegative() {
		return nil, validationf("price cannot be negative")
	}
	if in.QtyAvailable.IsNegative() {
		return nil, validationf("quantity cannot be negative")
	}
	if in.Unit == "" {
		in.Unit = "kg"
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (farmer_id, name, description, price, unit, qty_available, image_url, active, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, '', true, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err = db.QueryRowContext(ctx, query,
		farmer.ID, in.Name, in.Description, in.Price, in.Unit, in.QtyAvailable,
	).Scan(productFields(product)...)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	return getProduct(ctx, db, id)
}

func getProduct(ctx context.Context, q querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := "SELECT " + productColumns + " FROM products WHERE id = $1"

	err := q.QueryRowContext(ctx, query, id).Scan(productFields(product)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ListAvailableProducts returns active products with stock remaining,
// newest first. Public catalog view.
func ListAvailableProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	query := "SELECT " + productColumns + ` FROM products
		WHERE active = true AND qty_available > 0
		ORDER BY created_at DESC, id DESC`
	return queryProducts(ctx, db, query)
}

func ListProductsByFarmer(ctx context.Context, db *sql.DB, farmerID int64) ([]models.Product, error) {
	if _, err := GetUser(ctx, db, farmerID); err != nil {
		return nil, err
	}
	query := "SELECT " + productColumns + ` FROM products
		WHERE farmer_id = $1
		ORDER BY created_at DESC, id DESC`
	return queryProducts(ctx, db, query, farmerID)
}

func ListOwnProducts(ctx context.Context, db *sql.DB, farmerEmail string) ([]models.Product, error) {
	farmer, err := GetUserByEmail(ctx, db, farmerEmail)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + productColumns + ` FROM products
		WHERE farmer_id = $1
		ORDER BY created_at DESC, id DESC`
	return queryProducts(ctx, db, query, farmer.ID)
}

func queryProducts(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(productFields(&product)...); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, farmerEmail string, productID int64, in ProductInput) (*models.Product, error) {
	product, err := ownedProduct(ctx, db, farmerEmail, productID)
	if err != nil {
		return nil, err
	}

	if in.Price.IsNegative() {
		return nil, validationf("price cannot be negative")
	}
	if in.QtyAvailable.IsNegative() {
		return nil, validationf("quantity cannot be negative")
	}
	if in.Unit == "" {
		in.Unit = "kg"
	}

	updated := &models.Product{}

	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, unit = $4, qty_available = $5,
		    updated_at = NOW(), version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING ` + productColumns

	err = db.QueryRowContext(ctx, query,
		in.Name, in.Description, in.Price, in.Unit, in.QtyAvailable,
		product.ID, product.Version,
	).Scan(productFields(updated)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return updated, nil
}

func ToggleProductActive(ctx context.Context, db *sql.DB, farmerEmail string, productID int64) (*models.Product, error) {
	product, err := ownedProduct(ctx, db, farmerEmail, productID)
	if err != nil {
		return nil, err
	}

	updated := &models.Product{}

	query := `
		UPDATE products
		SET active = NOT active, updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + productColumns

	err = db.QueryRowContext(ctx, query, product.ID, product.Version).Scan(productFields(updated)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("toggle product: %w", err)
	}

	return updated, nil
}

func UpdateProductImage(ctx context.Context, db *sql.DB, farmerEmail string, productID int64, imageURL string) (*models.Product, error) {
	product, err := ownedProduct(ctx, db, farmerEmail, productID)
	if err != nil {
		return nil, err
	}

	updated := &models.Product{}

	query := `
		UPDATE products
		SET image_url = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING ` + productColumns

	err = db.QueryRowContext(ctx, query, imageURL, product.ID, product.Version).Scan(productFields(updated)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("update product image: %w", err)
	}

	return updated, nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, farmerEmail string, productID int64) error {
	product, err := ownedProduct(ctx, db, farmerEmail, productID)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	return nil
}

func ownedProduct(ctx context.Context, db *sql.DB, farmerEmail string, productID int64) (*models.Product, error) {
	farmer, err := GetUserByEmail(ctx, db, farmerEmail)
	if err != nil {
		return nil, err
	}

	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}

	if product.FarmerID != farmer.ID {
		return nil, authorizationf("you can only manage your own products")
	}

	return product, nil
}

// deductStock subtracts quantity from the product's stock, guarded by the
// version read in the same transaction. Zero rows affected means another
// writer got there first; the caller's whole unit of work must rerun.
func deductStock(ctx context.Context, tx *sql.Tx, product *models.Product, quantity decimal.Decimal) error {
	return adjustStock(ctx, tx, product, quantity.Neg())
}

// restoreStock adds quantity back, same optimistic discipline as deduction.
func restoreStock(ctx context.Context, tx *sql.Tx, product *models.Product, quantity decimal.Decimal) error {
	return adjustStock(ctx, tx, product, quantity)
}

func adjustStock(ctx context.Context, tx *sql.Tx, product *models.Product, delta decimal.Decimal) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET qty_available = qty_available + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2 AND version = $3`,
		delta, product.ID, product.Version)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrConcurrencyConflict
	}

	return nil
}

func productFields(p *models.Product) []any {
	return []any{
		&p.ID,
		&p.FarmerID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Unit,
		&p.QtyAvailable,
		&p.ImageURL,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	}
}
