package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pos-service/internal/model"
)

func TestCheckoutCommitsBillStockAndLedger(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Basmati Rice 1kg", "Grocery", 5.00, 10)
	svc := NewCheckoutService(db, 3)

	bill, retries, err := svc.Checkout(context.Background(), CheckoutInput{
		CustomerName: "Asha",
		PaymentMode:  model.PaymentCard,
		Actor:        "cashier@store",
		Lines:        []CartLine{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if retries != 0 {
		t.Fatalf("expected no retries, got %d", retries)
	}

	if len(bill.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(bill.Lines))
	}
	line := bill.Lines[0]
	if line.Price != 5.00 || line.Quantity != 3 || line.Amount != 15.00 {
		t.Fatalf("unexpected line snapshot: %+v", line)
	}
	if bill.TotalAmount != 15.00 {
		t.Fatalf("expected total 15.00, got %v", bill.TotalAmount)
	}
	if bill.CustomerName != "Asha" || bill.PaymentMode != model.PaymentCard || bill.SoldBy != "cashier@store" {
		t.Fatalf("unexpected bill header: %+v", bill)
	}

	if got := reloadProduct(t, db, product.ID); got.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", got.Quantity)
	}

	var movements []model.StockMovement
	if err := db.Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(movements))
	}
	m := movements[0]
	if m.Direction != model.DirectionOut || m.Quantity != 3 || m.UnitPrice != 5.00 {
		t.Fatalf("unexpected movement: %+v", m)
	}
	if m.Remark != bill.Reference() {
		t.Fatalf("expected remark %q, got %q", bill.Reference(), m.Remark)
	}
}

func TestCheckoutInsufficientStockRejectsWholeCart(t *testing.T) {
	db := setupTestDB(t)
	ok := seedProduct(t, db, "Milk 1L", "Dairy", 2.00, 50)
	short := seedProduct(t, db, "Butter 500g", "Dairy", 4.50, 10)
	svc := NewCheckoutService(db, 3)

	_, _, err := svc.Checkout(context.Background(), CheckoutInput{
		Actor: "cashier@store",
		Lines: []CartLine{
			{ProductID: ok.ID, Quantity: 5},
			{ProductID: short.ID, Quantity: 15},
		},
	})

	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ProductID != short.ID || insufficient.Requested != 15 || insufficient.Available != 10 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}

	// No line was touched, including the one that would have succeeded.
	if got := reloadProduct(t, db, ok.ID); got.Quantity != 50 {
		t.Fatalf("valid line was decremented: %d", got.Quantity)
	}
	if got := reloadProduct(t, db, short.ID); got.Quantity != 10 {
		t.Fatalf("short line was decremented: %d", got.Quantity)
	}
	if n := countMovements(t, db); n != 0 {
		t.Fatalf("expected no movements, got %d", n)
	}
	var bills int64
	db.Model(&model.Bill{}).Count(&bills)
	if bills != 0 {
		t.Fatalf("expected no bills, got %d", bills)
	}
}

func TestCheckoutMergesDuplicateLines(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Soap", "Toiletries", 1.50, 10)
	svc := NewCheckoutService(db, 3)

	bill, _, err := svc.Checkout(context.Background(), CheckoutInput{
		Actor: "cashier@store",
		Lines: []CartLine{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(bill.Lines) != 1 || bill.Lines[0].Quantity != 5 {
		t.Fatalf("expected one merged line of 5, got %+v", bill.Lines)
	}
	if got := reloadProduct(t, db, product.ID); got.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", got.Quantity)
	}
}

func TestCheckoutProcessesLinesInProductOrder(t *testing.T) {
	db := setupTestDB(t)
	milk := seedProduct(t, db, "Milk 1L", "Dairy", 2.00, 10)
	rice := seedProduct(t, db, "Rice 1kg", "Grocery", 5.00, 10)
	svc := NewCheckoutService(db, 3)

	// Lines arrive in reverse product order; the bill and its row updates
	// must still follow ascending product IDs.
	bill, _, err := svc.Checkout(context.Background(), CheckoutInput{
		Actor: "cashier@store",
		Lines: []CartLine{
			{ProductID: rice.ID, Quantity: 1},
			{ProductID: milk.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(bill.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(bill.Lines))
	}
	for i := 1; i < len(bill.Lines); i++ {
		if bill.Lines[i].ProductID < bill.Lines[i-1].ProductID {
			t.Fatalf("lines not in product order: %+v", bill.Lines)
		}
	}
	if got := reloadProduct(t, db, milk.ID); got.Quantity != 8 {
		t.Fatalf("expected milk quantity 8, got %d", got.Quantity)
	}
	if got := reloadProduct(t, db, rice.ID); got.Quantity != 9 {
		t.Fatalf("expected rice quantity 9, got %d", got.Quantity)
	}
}

func TestCheckoutValidation(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Tea", "Beverages", 3.00, 10)
	svc := NewCheckoutService(db, 3)
	ctx := context.Background()

	if _, _, err := svc.Checkout(ctx, CheckoutInput{Actor: "x"}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	_, _, err := svc.Checkout(ctx, CheckoutInput{
		Actor: "x",
		Lines: []CartLine{{ProductID: product.ID, Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	_, _, err = svc.Checkout(ctx, CheckoutInput{
		Actor:       "x",
		PaymentMode: "Barter",
		Lines:       []CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidPaymentMode) {
		t.Fatalf("expected ErrInvalidPaymentMode, got %v", err)
	}

	var notFound *ProductNotFoundError
	_, _, err = svc.Checkout(ctx, CheckoutInput{
		Actor: "x",
		Lines: []CartLine{{ProductID: 9999, Quantity: 1}},
	})
	if !errors.As(err, &notFound) || notFound.ProductID != 9999 {
		t.Fatalf("expected ProductNotFoundError for 9999, got %v", err)
	}

	// Nothing above may have written anything.
	if n := countMovements(t, db); n != 0 {
		t.Fatalf("expected no movements, got %d", n)
	}
	if got := reloadProduct(t, db, product.ID); got.Quantity != 10 {
		t.Fatalf("stock changed: %d", got.Quantity)
	}
}

func TestCheckoutDefaults(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Bread", "Bakery", 1.00, 10)
	svc := NewCheckoutService(db, 3)

	bill, _, err := svc.Checkout(context.Background(), CheckoutInput{
		Actor: "cashier@store",
		Lines: []CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if bill.CustomerName != model.DefaultCustomerName {
		t.Fatalf("expected default customer, got %q", bill.CustomerName)
	}
	if bill.PaymentMode != model.PaymentCash {
		t.Fatalf("expected default payment mode Cash, got %q", bill.PaymentMode)
	}
}

func TestCheckoutPriceSnapshotSurvivesPriceEdit(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Honey", "Grocery", 8.00, 10)
	svc := NewCheckoutService(db, 3)

	bill, _, err := svc.Checkout(context.Background(), CheckoutInput{
		Actor: "cashier@store",
		Lines: []CartLine{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if err := db.Model(&model.Product{}).Where("id = ?", product.ID).Update("price", 12.00).Error; err != nil {
		t.Fatalf("edit price: %v", err)
	}

	var reloaded model.Bill
	if err := db.Preload("Lines").First(&reloaded, bill.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if reloaded.Lines[0].Price != 8.00 || reloaded.TotalAmount != 16.00 {
		t.Fatalf("bill snapshot changed after price edit: %+v", reloaded)
	}

	var movement model.StockMovement
	if err := db.First(&movement).Error; err != nil {
		t.Fatalf("load movement: %v", err)
	}
	if movement.UnitPrice != 8.00 {
		t.Fatalf("movement price changed after price edit: %v", movement.UnitPrice)
	}
}

// Six concurrent checkouts of 4 units race for 10 on hand. However they
// interleave, committed sales must never exceed the initial stock and the
// conservation equation must hold afterwards.
func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	db := setupTestDB(t)
	product := seedProduct(t, db, "Cola Can", "Beverages", 1.25, 10)
	svc := NewCheckoutService(db, 5)

	const workers = 6
	const each = 4

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = svc.Checkout(context.Background(), CheckoutInput{
				Actor: "cashier@store",
				Lines: []CartLine{{ProductID: product.ID, Quantity: each}},
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *InsufficientStockError
		if !errors.As(err, &insufficient) && !errors.Is(err, ErrCheckoutConflict) {
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}

	final := reloadProduct(t, db, product.ID)
	if final.Quantity < 0 {
		t.Fatalf("stock went negative: %d", final.Quantity)
	}

	var sold int64
	db.Model(&model.StockMovement{}).
		Where("direction = ?", model.DirectionOut).
		Select("COALESCE(SUM(quantity), 0)").Scan(&sold)
	if sold > 10 {
		t.Fatalf("oversold: %d units committed for 10 on hand", sold)
	}
	if int64(successes*each) != sold {
		t.Fatalf("ledger disagrees with committed checkouts: %d sold for %d successes", sold, successes)
	}
	if final.Quantity != 10-int(sold) {
		t.Fatalf("conservation violated: sold %d but quantity is %d", sold, final.Quantity)
	}
}
