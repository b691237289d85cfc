package service

import (
	"context"
	"errors"
	"sort"

	"pos-service/internal/model"

	"gorm.io/gorm"
)

// errStockConflict aborts a checkout attempt whose validated stock reads
// were invalidated by a concurrent writer. It never escapes Checkout.
var errStockConflict = errors.New("stock version conflict")

// CartLine is one requested product line of a checkout.
type CartLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CheckoutInput is the validated input of one checkout.
type CheckoutInput struct {
	CustomerName string
	PaymentMode  string
	Actor        string
	Lines        []CartLine
}

// CheckoutService turns a cart into a committed bill, or fails with no
// partial effect. Stock decrements use optimistic per-product versioning
// inside a single transaction, so the check-then-decrement is atomic per
// product: concurrent checkouts can never sell more than was on hand.
type CheckoutService struct {
	db         *gorm.DB
	maxRetries int
}

func NewCheckoutService(db *gorm.DB, maxRetries int) *CheckoutService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &CheckoutService{db: db, maxRetries: maxRetries}
}

// Checkout validates the cart and commits it atomically: one stock
// decrement and one OUT ledger entry per distinct product, plus the bill
// with price/quantity snapshots. Any invalid line rejects the whole cart
// before anything is written. Returns the number of conflict retries that
// were needed alongside the committed bill.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*model.Bill, int, error) {
	lines, err := mergeCartLines(in.Lines)
	if err != nil {
		return nil, 0, err
	}

	paymentMode := in.PaymentMode
	if paymentMode == "" {
		paymentMode = model.PaymentCash
	}
	if !model.ValidPaymentMode(paymentMode) {
		return nil, 0, ErrInvalidPaymentMode
	}

	customerName := in.CustomerName
	if customerName == "" {
		customerName = model.DefaultCustomerName
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		bill, err := s.tryCheckout(ctx, customerName, paymentMode, in.Actor, lines)
		if errors.Is(err, errStockConflict) {
			continue
		}
		if err != nil {
			return nil, attempt, err
		}
		return bill, attempt, nil
	}
	return nil, s.maxRetries, ErrCheckoutConflict
}

// tryCheckout is one all-or-nothing attempt. Validation reads each product
// and captures its price and version; the commit phase then decrements with
// a guarded update keyed on that version. A 0-row update means a concurrent
// writer got there first and the whole attempt rolls back.
func (s *CheckoutService) tryCheckout(ctx context.Context, customerName, paymentMode, actor string, lines []CartLine) (*model.Bill, error) {
	var bill *model.Bill

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type validatedLine struct {
			product model.Product
			request CartLine
		}

		// Phase 1: validate every line before touching anything.
		validated := make([]validatedLine, 0, len(lines))
		for _, line := range lines {
			var product model.Product
			if err := tx.First(&product, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return err
			}
			if product.Quantity < line.Quantity {
				return &InsufficientStockError{
					ProductID: product.ID,
					Name:      product.Name,
					Requested: line.Quantity,
					Available: product.Quantity,
				}
			}
			validated = append(validated, validatedLine{product: product, request: line})
		}

		// Phase 2: guarded decrements keyed on the validated version.
		for _, v := range validated {
			res := tx.Model(&model.Product{}).
				Where("id = ? AND version = ?", v.product.ID, v.product.Version).
				Updates(map[string]interface{}{
					"quantity": gorm.Expr("quantity - ?", v.request.Quantity),
					"version":  gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStockConflict
			}
		}

		// Phase 3: bill with line snapshots at the validated price.
		billLines := make([]model.BillLine, 0, len(validated))
		total := 0.0
		for _, v := range validated {
			amount := v.product.Price * float64(v.request.Quantity)
			total += amount
			billLines = append(billLines, model.BillLine{
				ProductID:   v.product.ID,
				ProductName: v.product.Name,
				Quantity:    v.request.Quantity,
				Price:       v.product.Price,
				Amount:      amount,
			})
		}
		bill = &model.Bill{
			CustomerName: customerName,
			Lines:        billLines,
			TotalAmount:  total,
			PaymentMode:  paymentMode,
			SoldBy:       actor,
		}
		if err := tx.Create(bill).Error; err != nil {
			return err
		}

		// Phase 4: one OUT ledger entry per line, referencing the bill.
		for _, v := range validated {
			movement := &model.StockMovement{
				ProductID: v.product.ID,
				Direction: model.DirectionOut,
				Quantity:  v.request.Quantity,
				UnitPrice: v.product.Price,
				Actor:     actor,
				Remark:    bill.Reference(),
			}
			if err := appendMovement(tx, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// mergeCartLines collapses duplicate product lines by summing quantities
// and rejects empty carts and non-positive quantities up front. Lines come
// back sorted by product ID so every checkout updates product rows in the
// same order; without a canonical order, two carts listing the same
// products in opposite order could deadlock on their row locks.
func mergeCartLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	merged := make([]CartLine, 0, len(lines))
	index := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
