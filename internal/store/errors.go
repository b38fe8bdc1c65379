package store

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// ValidationError covers business-rule violations: role mismatches, illegal
// state transitions, cross-farmer lines, inactive products.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the actor is not the order's buyer or farmer, or
// attempted an action reserved for the other role.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func authorizationf(format string, args ...any) error {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError carries enough context for the caller to render the
// shortfall without a follow-up query.
type InsufficientStockError struct {
	ProductName string
	Available   decimal.Decimal
	Unit        string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %s %s",
		e.ProductName, e.Available, e.Unit)
}
