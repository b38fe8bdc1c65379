package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderConfirmed = "order.confirmed"
	TypeOrderRejected  = "order.rejected"
	TypeOrderCompleted = "order.completed"
	TypeOrderCancelled = "order.cancelled"
)

// Envelope wraps every order event on the wire.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Version    int             `json:"event_version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID     int64           `json:"order_id"`
	BuyerID     int64           `json:"buyer_id"`
	FarmerID    int64           `json:"farmer_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
