package model

import (
	"time"

	"gorm.io/gorm"
)

// Product represents the product master data together with its current
// on-hand stock level. Quantity is never written directly by handlers;
// checkout and restock go through the guarded updates in the service layer,
// which bump Version on every stock change.
type Product struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Category  string         `json:"category" gorm:"type:varchar(100);index;not null"`
	Price     float64        `json:"price" gorm:"not null;check:price >= 0"`
	Quantity  int            `json:"quantity" gorm:"not null;default:0;check:quantity >= 0"`
	Supplier  string         `json:"supplier" gorm:"type:varchar(255)"`
	Version   uint           `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
