package service

import (
	"errors"
	"fmt"
)

// Business errors surfaced to the HTTP layer. Rejections always carry enough
// detail for the caller to correct the request; a checkout that fails with
// any of these leaves no stock or ledger changes behind.
var (
	ErrEmptyCart          = errors.New("cart has no items")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidPaymentMode = errors.New("unknown payment mode")

	// ErrCheckoutConflict is returned when concurrent checkouts kept
	// invalidating each other's stock reads and the bounded retry budget
	// ran out. The request is safe to retry.
	ErrCheckoutConflict = errors.New("checkout aborted after repeated stock conflicts")
)

// ProductNotFoundError reports a cart line or operation referencing an
// unknown product.
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

// InsufficientStockError reports the first cart line that cannot be covered
// by the on-hand quantity. The whole cart is rejected.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}
