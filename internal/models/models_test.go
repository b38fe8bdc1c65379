package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []string{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted,
		OrderStatusRejected, OrderStatusCancelled,
	} {
		if !ValidStatus(s) {
			t.Errorf("Expected %s to be valid", s)
		}
	}

	for _, s := range []string{"", "SHIPPED", "pending", "DELIVERED"} {
		if ValidStatus(s) {
			t.Errorf("Expected %q to be invalid", s)
		}
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{
		Quantity:  decimal.NewFromFloat(2.5),
		PriceEach: decimal.NewFromFloat(4.20),
	}

	if !item.Subtotal().Equal(decimal.NewFromFloat(10.50)) {
		t.Errorf("Expected subtotal 10.50, got %s", item.Subtotal())
	}
}
