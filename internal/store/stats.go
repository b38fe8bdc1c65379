package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

// FarmerStats is the farmer dashboard: order counts by status, realized and
// outstanding revenue, and catalog size.
type FarmerStats struct {
	TotalOrders     int             `json:"total_orders"`
	PendingOrders   int             `json:"pending_orders"`
	ConfirmedOrders int             `json:"confirmed_orders"`
	CompletedOrders int             `json:"completed_orders"`
	RejectedOrders  int             `json:"rejected_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	PendingRevenue  decimal.Decimal `json:"pending_revenue"`
	TotalProducts   int             `json:"total_products"`
	ActiveProducts  int             `json:"active_products"`
}

// BuyerStats mirrors FarmerStats from the purchasing side.
type BuyerStats struct {
	TotalOrders     int             `json:"total_orders"`
	PendingOrders   int             `json:"pending_orders"`
	ConfirmedOrders int             `json:"confirmed_orders"`
	CompletedOrders int             `json:"completed_orders"`
	CancelledOrders int             `json:"cancelled_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
}

// GetFarmerStats folds over a snapshot read of the farmer's orders. Zero
// orders yields zeros, not an error.
func GetFarmerStats(ctx context.Context, db *sql.DB, farmerEmail string) (*FarmerStats, error) {
	farmer, err := GetUserByEmail(ctx, db, farmerEmail)
	if err != nil {
		return nil, err
	}

	orders, err := queryOrders(ctx, db,
		"SELECT "+orderColumns+" FROM orders WHERE farmer_id = $1", farmer.ID)
	if err != nil {
		return nil, err
	}

	stats := &FarmerStats{
		TotalOrders:    len(orders),
		TotalRevenue:   decimal.Zero,
		PendingRevenue: decimal.Zero,
	}

	for _, order := range orders {
		switch order.Status {
		case models.OrderStatusPending:
			stats.PendingOrders++
		case models.OrderStatusConfirmed:
			stats.ConfirmedOrders++
		case models.OrderStatusCompleted:
			stats.CompletedOrders++
		case models.OrderStatusRejected:
			stats.RejectedOrders++
		}

		switch order.Status {
		case models.OrderStatusCompleted:
			stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		case models.OrderStatusPending, models.OrderStatusConfirmed:
			stats.PendingRevenue = stats.PendingRevenue.Add(order.TotalAmount)
		}
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active)
		 FROM products WHERE farmer_id = $1`,
		farmer.ID).Scan(&stats.TotalProducts, &stats.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	return stats, nil
}

// GetBuyerStats folds over a snapshot read of the buyer's orders.
func GetBuyerStats(ctx context.Context, db *sql.DB, buyerEmail string) (*BuyerStats, error) {
	buyer, err := GetUserByEmail(ctx, db, buyerEmail)
	if err != nil {
		return nil, err
	}

	orders, err := queryOrders(ctx, db,
		"SELECT "+orderColumns+" FROM orders WHERE buyer_id = $1", buyer.ID)
	if err != nil {
		return nil, err
	}

	stats := &BuyerStats{
		TotalOrders:   len(orders),
		TotalSpent:    decimal.Zero,
		PendingAmount: decimal.Zero,
	}

	for _, order := range orders {
		switch order.Status {
		case models.OrderStatusPending:
			stats.PendingOrders++
		case models.OrderStatusConfirmed:
			stats.ConfirmedOrders++
		case models.OrderStatusCompleted:
			stats.CompletedOrders++
		case models.OrderStatusCancelled:
			stats.CancelledOrders++
		}

		switch order.Status {
		case models.OrderStatusCompleted:
			stats.TotalSpent = stats.TotalSpent.Add(order.TotalAmount)
		case models.OrderStatusPending, models.OrderStatusConfirmed:
			stats.PendingAmount = stats.PendingAmount.Add(order.TotalAmount)
		}
	}

	return stats, nil
}
