package model

import "time"

// Movement directions. IN is a restock, OUT is a sale.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// StockMovement is one immutable entry of the stock ledger. Rows are only
// ever inserted, always in the same transaction as the stock change they
// record. UnitPrice is the catalog price at the time of the movement, so
// revenue can be derived from the ledger alone even after price edits.
type StockMovement struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	Product   Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Direction string    `json:"direction" gorm:"type:varchar(3);index;not null"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	UnitPrice float64   `json:"unit_price" gorm:"not null"`
	Actor     string    `json:"actor" gorm:"type:varchar(255);not null"`
	Remark    string    `json:"remark" gorm:"type:varchar(512)"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
