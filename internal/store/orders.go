package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = "id, buyer_id, farmer_id, status, total_amount, created_at, updated_at, version"
const orderItemColumns = "id, order_id, product_id, product_name, quantity, price_each, created_at"

type CreateOrderRequest struct {
	FarmerID int64
	Items    []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// CreateOrder validates and commits a multi-line order against a single
// farmer's catalog as one atomic unit: every stock deduction is guarded by the
// product version read inside the same transaction, so two buyers racing for
// the same stock cannot both win. Stock is deducted at creation time; a
// pending order already holds its inventory until rejected or cancelled.
func CreateOrder(ctx context.Context, db *sql.DB, buyerEmail string, req CreateOrderRequest) (*OrderView, error) {
	if len(req.Items) == 0 {
		return nil, validationf("order must contain at least one item")
	}
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			return nil, validationf("quantity must be positive")
		}
	}

	var view *OrderView

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		buyer, err := getUser(ctx, tx, "email = $1", buyerEmail)
		if err != nil {
			return err
		}
		if buyer.Role != models.RoleBuyer {
			return validationf("only buyers can create orders")
		}

		farmer, err := getUser(ctx, tx, "id = $1", req.FarmerID)
		if err != nil {
			return err
		}
		if farmer.Role != models.RoleFarmer {
			return validationf("invalid farmer id")
		}

		totalAmount := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))

		for _, item := range req.Items {
			product, err := getProduct(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}

			if product.FarmerID != farmer.ID {
				return validationf("all products must be from the same farmer")
			}
			if !product.Active {
				return validationf("product %s is not active", product.Name)
			}
			if product.QtyAvailable.LessThan(item.Quantity) {
				return &InsufficientStockError{
					ProductName: product.Name,
					Available:   product.QtyAvailable,
					Unit:        product.Unit,
				}
			}

			if err := deductStock(ctx, tx, product, item.Quantity); err != nil {
				return err
			}

			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				PriceEach:   product.Price,
			})
			totalAmount = totalAmount.Add(product.Price.Mul(item.Quantity))
		}

		order := &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (buyer_id, farmer_id, status, total_amount, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
			 RETURNING `+orderColumns,
			buyer.ID, farmer.ID, models.OrderStatusPending, totalAmount,
		).Scan(orderFields(order)...)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i := range items {
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, quantity, price_each, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, created_at`,
				order.ID, items[i].ProductID, items[i].ProductName, items[i].Quantity, items[i].PriceEach,
			).Scan(&items[i].ID, &items[i].CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			items[i].OrderID = order.ID
		}
		order.Items = items

		view = newOrderView(order, buyer, farmer)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return view, nil
}

// GetOrder returns the order projection, visible only to its buyer or farmer.
func GetOrder(ctx context.Context, db *sql.DB, actorEmail string, orderID int64) (*OrderView, error) {
	actor, err := GetUserByEmail(ctx, db, actorEmail)
	if err != nil {
		return nil, err
	}

	order, err := getOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.ID && order.FarmerID != actor.ID {
		return nil, authorizationf("you don't have access to this order")
	}

	return loadOrderView(ctx, db, order)
}

// ListOrders returns the account's orders in the requested role view, newest
// first. An unrecognized status filter is treated as no filter.
func ListOrders(ctx context.Context, db *sql.DB, actorEmail, roleView, statusFilter string) ([]OrderView, error) {
	actor, err := GetUserByEmail(ctx, db, actorEmail)
	if err != nil {
		return nil, err
	}

	ownerColumn := "buyer_id"
	if strings.ToUpper(roleView) == models.RoleFarmer {
		ownerColumn = "farmer_id"
	}

	query := "SELECT " + orderColumns + " FROM orders WHERE " + ownerColumn + " = $1"
	args := []any{actor.ID}

	status := strings.ToUpper(statusFilter)
	if models.ValidStatus(status) {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	orders, err := queryOrders(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	if err := loadOrderItems(ctx, db, orders); err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		view, err := loadOrderView(ctx, db, &orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}

	return views, nil
}

// ConfirmOrder moves a pending order to confirmed. Farmer only.
func ConfirmOrder(ctx context.Context, db *sql.DB, farmerEmail string, orderID int64) (*OrderView, error) {
	return transition(ctx, db, farmerEmail, orderID, transitionSpec{
		verb:       "confirm",
		required:   "only pending orders can be confirmed",
		actorOwns:  actorFarmer,
		fromStatus: models.OrderStatusPending,
		toStatus:   models.OrderStatusConfirmed,
	})
}

// RejectOrder moves a pending order to rejected and restores every line's
// quantity to its product. Farmer only.
func RejectOrder(ctx context.Context, db *sql.DB, farmerEmail string, orderID int64) (*OrderView, error) {
	return transition(ctx, db, farmerEmail, orderID, transitionSpec{
		verb:       "reject",
		required:   "only pending orders can be rejected",
		actorOwns:  actorFarmer,
		fromStatus: models.OrderStatusPending,
		toStatus:   models.OrderStatusRejected,
		restock:    true,
	})
}

// CompleteOrder moves a confirmed order to completed. Farmer only.
func CompleteOrder(ctx context.Context, db *sql.DB, farmerEmail string, orderID int64) (*OrderView, error) {
	return transition(ctx, db, farmerEmail, orderID, transitionSpec{
		verb:       "complete",
		required:   "only confirmed orders can be completed",
		actorOwns:  actorFarmer,
		fromStatus: models.OrderStatusConfirmed,
		toStatus:   models.OrderStatusCompleted,
	})
}

// CancelOrder moves a pending order to cancelled and restores stock. Buyer only.
func CancelOrder(ctx context.Context, db *sql.DB, buyerEmail string, orderID int64) (*OrderView, error) {
	return transition(ctx, db, buyerEmail, orderID, transitionSpec{
		verb:       "cancel",
		required:   "only pending orders can be cancelled",
		actorOwns:  actorBuyer,
		fromStatus: models.OrderStatusPending,
		toStatus:   models.OrderStatusCancelled,
		restock:    true,
	})
}

type actorSide int

const (
	actorFarmer actorSide = iota
	actorBuyer
)

type transitionSpec struct {
	verb       string
	required   string
	actorOwns  actorSide
	fromStatus string
	toStatus   string
	restock    bool
}

// transition re-fetches the order, checks the actor and the precondition
// status, then applies the status write and any compensating restock as one
// atomic unit. Version conflicts rerun the whole transition from fresh reads.
func transition(ctx context.Context, db *sql.DB, actorEmail string, orderID int64, spec transitionSpec) (*OrderView, error) {
	var view *OrderView

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		actor, err := getUser(ctx, tx, "email = $1", actorEmail)
		if err != nil {
			return err
		}

		order, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		ownerID := order.FarmerID
		if spec.actorOwns == actorBuyer {
			ownerID = order.BuyerID
		}
		if ownerID != actor.ID {
			return authorizationf("you can only %s your own orders", spec.verb)
		}

		if order.Status != spec.fromStatus {
			return &ValidationError{Msg: spec.required}
		}

		if spec.restock {
			if err := loadOrderItemsTx(ctx, tx, order); err != nil {
				return err
			}
			for _, item := range order.Items {
				product, err := getProduct(ctx, tx, item.ProductID)
				if err != nil {
					if errors.Is(err, ErrProductNotFound) {
						// Product deleted since order creation; nothing to restore.
						continue
					}
					return err
				}
				if err := restoreStock(ctx, tx, product, item.Quantity); err != nil {
					return err
				}
			}
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW(), version = version + 1
			 WHERE id = $2 AND version = $3`,
			spec.toStatus, order.ID, order.Version)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrConcurrencyConflict
		}
		order.Status = spec.toStatus
		order.Version++

		if !spec.restock {
			if err := loadOrderItemsTx(ctx, tx, order); err != nil {
				return err
			}
		}

		buyer, err := getUser(ctx, tx, "id = $1", order.BuyerID)
		if err != nil {
			return err
		}
		farmer, err := getUser(ctx, tx, "id = $1", order.FarmerID)
		if err != nil {
			return err
		}

		view = newOrderView(order, buyer, farmer)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return view, nil
}

func getOrder(ctx context.Context, q querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"

	err := q.QueryRowContext(ctx, query, id).Scan(orderFields(order)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

func queryOrders(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(orderFields(&order)...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// loadOrderItems fills Items for every order in one query.
func loadOrderItems(ctx context.Context, db *sql.DB, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
		byID[orders[i].ID] = &orders[i]
	}

	query := "SELECT " + orderItemColumns + " FROM order_items WHERE order_id = ANY($1) ORDER BY id"

	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(orderItemFields(&item)...); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	return rows.Err()
}

func loadOrderItemsTx(ctx context.Context, q querier, order *models.Order) error {
	query := "SELECT " + orderItemColumns + " FROM order_items WHERE order_id = $1 ORDER BY id"

	rows, err := q.QueryContext(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	order.Items = nil
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(orderItemFields(&item)...); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func loadOrderView(ctx context.Context, db *sql.DB, order *models.Order) (*OrderView, error) {
	if order.Items == nil {
		if err := loadOrderItemsTx(ctx, db, order); err != nil {
			return nil, err
		}
	}

	buyer, err := GetUser(ctx, db, order.BuyerID)
	if err != nil {
		return nil, err
	}
	farmer, err := GetUser(ctx, db, order.FarmerID)
	if err != nil {
		return nil, err
	}

	return newOrderView(order, buyer, farmer), nil
}

func orderFields(o *models.Order) []any {
	return []any{
		&o.ID,
		&o.BuyerID,
		&o.FarmerID,
		&o.Status,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	}
}

func orderItemFields(i *models.OrderItem) []any {
	return []any{
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.Quantity,
		&i.PriceEach,
		&i.CreatedAt,
	}
}
