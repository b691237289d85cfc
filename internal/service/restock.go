package service

import (
	"context"
	"errors"

	"pos-service/internal/model"

	"gorm.io/gorm"
)

// DefaultRestockRemark is written to the ledger when a restock arrives
// without a remark.
const DefaultRestockRemark = "Manual Restock"

// RestockService increases a product's on-hand quantity and records the
// matching IN ledger entry in one transaction.
type RestockService struct {
	db *gorm.DB
}

func NewRestockService(db *gorm.DB) *RestockService {
	return &RestockService{db: db}
}

// Restock adds quantity units of the product and appends one IN movement.
// Both happen or neither. The increment is a single guarded update, so it
// is safe against concurrent checkouts; the version bump invalidates any
// stock read a concurrent checkout validated against.
func (s *RestockService) Restock(ctx context.Context, productID uint, quantity int, actor, remark string) (*model.Product, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if remark == "" {
		remark = DefaultRestockRemark
	}

	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			return err
		}

		res := tx.Model(&model.Product{}).
			Where("id = ?", product.ID).
			Updates(map[string]interface{}{
				"quantity": gorm.Expr("quantity + ?", quantity),
				"version":  gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}

		movement := &model.StockMovement{
			ProductID: product.ID,
			Direction: model.DirectionIn,
			Quantity:  quantity,
			UnitPrice: product.Price,
			Actor:     actor,
			Remark:    remark,
		}
		if err := appendMovement(tx, movement); err != nil {
			return err
		}

		// Re-read inside the transaction so the returned product reflects
		// the committed quantity.
		return tx.First(&product, product.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}
