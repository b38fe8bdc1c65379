package store

import (
	"time"

	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

// OrderView is the external projection of an order: party details and line
// items flattened for the consumer, with prices frozen at order time.
type OrderView struct {
	ID          int64           `json:"id"`
	Buyer       BuyerView       `json:"buyer"`
	Farmer      FarmerView      `json:"farmer"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemView `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

type BuyerView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type FarmerView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type OrderItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceEach   decimal.Decimal `json:"price_each"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func newOrderView(order *models.Order, buyer, farmer *models.User) *OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceEach:   item.PriceEach,
			Subtotal:    item.Subtotal(),
		})
	}

	return &OrderView{
		ID: order.ID,
		Buyer: BuyerView{
			ID:      buyer.ID,
			Name:    buyer.Name,
			Phone:   buyer.Phone,
			Address: buyer.Address,
		},
		Farmer: FarmerView{
			ID:   farmer.ID,
			Name: farmer.Name,
		},
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Items:       items,
		CreatedAt:   order.CreatedAt,
	}
}
