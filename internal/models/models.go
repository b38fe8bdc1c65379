package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleFarmer = "FARMER"
	RoleBuyer  = "BUYER"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusCancelled = "CANCELLED"
)

// ValidStatus reports whether s names a known order status.
func ValidStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted,
		OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Address   string    `json:"address,omitempty"`
	State     string    `json:"state,omitempty"`
	District  string    `json:"district,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Product struct {
	ID           int64           `json:"id"`
	FarmerID     int64           `json:"farmer_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	QtyAvailable decimal.Decimal `json:"qty_available"`
	ImageURL     string          `json:"image_url,omitempty"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

type Order struct {
	ID          int64           `json:"id"`
	BuyerID     int64           `json:"buyer_id"`
	FarmerID    int64           `json:"farmer_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// OrderItem captures the unit price at order time. ProductName is a snapshot
// too, so order history survives product deletion.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceEach   decimal.Decimal `json:"price_each"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Subtotal is quantity times the frozen unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceEach.Mul(i.Quantity)
}
