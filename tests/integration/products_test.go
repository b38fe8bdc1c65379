package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/store"
	"github.com/shopspring/decimal"
)

func TestProductLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createFarmer(t, db, "farmer@example.com")

	product, err := store.CreateProduct(ctx, db, "farmer@example.com", store.ProductInput{
		Name:         "Strawberries",
		Description:  "sweet",
		Price:        decimal.NewFromFloat(12.50),
		QtyAvailable: decimal.NewFromInt(15),
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if product.Unit != "kg" {
		t.Errorf("Expected default unit kg, got %s", product.Unit)
	}
	if !product.Active {
		t.Error("New product should be active")
	}

	updated, err := store.UpdateProduct(ctx, db, "farmer@example.com", product.ID, store.ProductInput{
		Name:         "Strawberries",
		Description:  "very sweet",
		Price:        decimal.NewFromFloat(13.00),
		Unit:         "box",
		QtyAvailable: decimal.NewFromInt(20),
	})
	if err != nil {
		t.Fatalf("Update product: %v", err)
	}
	if updated.Unit != "box" || !updated.Price.Equal(decimal.NewFromFloat(13.00)) {
		t.Errorf("Update not applied: unit=%s price=%s", updated.Unit, updated.Price)
	}
	if updated.Version != product.Version+1 {
		t.Errorf("Expected version bump to %d, got %d", product.Version+1, updated.Version)
	}

	toggled, err := store.ToggleProductActive(ctx, db, "farmer@example.com", product.ID)
	if err != nil {
		t.Fatalf("Toggle product: %v", err)
	}
	if toggled.Active {
		t.Error("Toggle should deactivate the product")
	}

	withImage, err := store.UpdateProductImage(ctx, db, "farmer@example.com", product.ID, "https://img.example.com/straw.jpg")
	if err != nil {
		t.Fatalf("Update image: %v", err)
	}
	if withImage.ImageURL == "" {
		t.Error("Image URL should be set")
	}

	if err := store.DeleteProduct(ctx, db, "farmer@example.com", product.ID); err != nil {
		t.Fatalf("Delete product: %v", err)
	}
	if _, err := store.GetProduct(ctx, db, product.ID); !errors.Is(err, store.ErrProductNotFound) {
		t.Errorf("Expected product not found after delete, got: %v", err)
	}
}

func TestProductOwnership(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createFarmer(t, db, "farmer@example.com")
	createFarmer(t, db, "rival@example.com")
	createBuyer(t, db, "buyer@example.com")

	product := createProduct(t, db, "farmer@example.com", "Garlic", decimal.NewFromInt(9), decimal.NewFromInt(5))

	// buyers cannot list products
	_, err := store.CreateProduct(ctx, db, "buyer@example.com", store.ProductInput{
		Name:         "Contraband",
		Price:        decimal.NewFromInt(1),
		QtyAvailable: decimal.NewFromInt(1),
	})
	var valErr *store.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected validation error for buyer, got: %v", err)
	}

	var authErr *store.AuthorizationError

	_, err = store.UpdateProduct(ctx, db, "rival@example.com", product.ID, store.ProductInput{
		Name: "Garlic", Price: decimal.NewFromInt(1), QtyAvailable: decimal.NewFromInt(5),
	})
	if !errors.As(err, &authErr) {
		t.Errorf("Expected authorization error on rival update, got: %v", err)
	}

	if _, err := store.ToggleProductActive(ctx, db, "rival@example.com", product.ID); !errors.As(err, &authErr) {
		t.Errorf("Expected authorization error on rival toggle, got: %v", err)
	}

	if err := store.DeleteProduct(ctx, db, "rival@example.com", product.ID); !errors.As(err, &authErr) {
		t.Errorf("Expected authorization error on rival delete, got: %v", err)
	}
}

func TestAvailableProductsListing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	farmer := createFarmer(t, db, "farmer@example.com")

	inStock := createProduct(t, db, "farmer@example.com", "Lettuce", decimal.NewFromInt(3), decimal.NewFromInt(10))
	createProduct(t, db, "farmer@example.com", "SoldOut", decimal.NewFromInt(3), decimal.Zero)
	hidden := createProduct(t, db, "farmer@example.com", "Hidden", decimal.NewFromInt(3), decimal.NewFromInt(10))
	if _, err := store.ToggleProductActive(ctx, db, "farmer@example.com", hidden.ID); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	available, err := store.ListAvailableProducts(ctx, db)
	if err != nil {
		t.Fatalf("List available: %v", err)
	}
	if len(available) != 1 || available[0].ID != inStock.ID {
		t.Errorf("Expected only the in-stock active product, got %d products", len(available))
	}

	byFarmer, err := store.ListProductsByFarmer(ctx, db, farmer.ID)
	if err != nil {
		t.Fatalf("List by farmer: %v", err)
	}
	if len(byFarmer) != 3 {
		t.Errorf("Expected all 3 farmer products, got %d", len(byFarmer))
	}

	if _, err := store.ListProductsByFarmer(ctx, db, farmer.ID+999); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected user not found for unknown farmer, got: %v", err)
	}
}

func TestProductUpdateVersionConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createFarmer(t, db, "farmer@example.com")
	product := createProduct(t, db, "farmer@example.com", "Basil", decimal.NewFromInt(2), decimal.NewFromInt(30))

	// bump the version behind the reader's back
	if _, err := db.ExecContext(ctx,
		`UPDATE products SET version = version + 1 WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("Bump version: %v", err)
	}

	// ownedProduct re-reads inside UpdateProduct, so force the conflict at
	// the raw layer instead: stale guarded write affects zero rows
	result, err := db.ExecContext(ctx,
		`UPDATE products SET qty_available = qty_available - 1, version = version + 1
		 WHERE id = $1 AND version = $2`, product.ID, product.Version)
	if err != nil {
		t.Fatalf("Guarded update: %v", err)
	}
	n, _ := result.RowsAffected()
	if n != 0 {
		t.Errorf("Stale version should affect zero rows, affected %d", n)
	}

	if !database.IsRetryable(database.ErrConcurrencyConflict) {
		t.Error("Version conflicts must be classified retryable")
	}
}
