package model

import (
	"fmt"
	"time"
)

// Payment modes accepted at checkout. The set is closed; anything else is
// rejected before the checkout transaction starts.
const (
	PaymentCash = "Cash"
	PaymentCard = "Card"
	PaymentUPI  = "UPI"
)

// DefaultCustomerName is used when a checkout arrives without a customer.
const DefaultCustomerName = "Walk-in Customer"

// ValidPaymentMode reports whether mode is one of the accepted payment modes.
func ValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentCash, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// Bill is the receipt snapshot of a completed checkout. Prices and amounts
// on its lines are frozen at commit time; later catalog edits never change
// a committed bill.
type Bill struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	CustomerName string     `json:"customer_name" gorm:"type:varchar(255);not null"`
	Lines        []BillLine `json:"lines" gorm:"foreignKey:BillID"`
	TotalAmount  float64    `json:"total_amount" gorm:"not null"`
	PaymentMode  string     `json:"payment_mode" gorm:"type:varchar(10);not null"`
	SoldBy       string     `json:"sold_by" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
}

// BillLine is one product line of a bill, with price and quantity copied
// from the catalog at commit time.
type BillLine struct {
	ID          uint    `json:"id" gorm:"primarykey"`
	BillID      uint    `json:"bill_id" gorm:"index;not null"`
	ProductID   uint    `json:"product_id" gorm:"not null"`
	ProductName string  `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity    int     `json:"quantity" gorm:"not null;check:quantity > 0"`
	Price       float64 `json:"price" gorm:"not null"`
	Amount      float64 `json:"amount" gorm:"not null"`
}

// Reference is the remark written to the stock ledger for each line of the
// bill, e.g. "Bill #42".
func (b *Bill) Reference() string {
	return fmt.Sprintf("Bill #%d", b.ID)
}
