package service

import (
	"context"
	"fmt"
	"time"

	"pos-service/internal/model"

	"github.com/gocarina/gocsv"
	"gorm.io/gorm"
)

// LedgerService provides read access to the stock movement ledger. Movements
// are only ever written through appendMovement inside the checkout and
// restock transactions; there is no update or delete path.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// MovementFilter narrows a ledger query. Zero values mean no filtering.
type MovementFilter struct {
	ProductID uint
	From      time.Time
	To        time.Time
}

// Movements returns ledger entries matching the filter, oldest first. A
// fresh call re-reads the full filtered range.
func (s *LedgerService) Movements(ctx context.Context, filter MovementFilter) ([]model.StockMovement, error) {
	query := s.db.WithContext(ctx).Model(&model.StockMovement{})
	if filter.ProductID != 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at < ?", filter.To)
	}

	var movements []model.StockMovement
	// Unscoped preload: soft-deleted products keep their ledger history
	// readable.
	withDeleted := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	if err := query.Preload("Product", withDeleted).Order("created_at ASC, id ASC").Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return movements, nil
}

type movementCSVRow struct {
	Date      string  `csv:"date"`
	Product   string  `csv:"product"`
	Direction string  `csv:"direction"`
	Quantity  int     `csv:"quantity"`
	UnitPrice float64 `csv:"unit_price"`
	Total     float64 `csv:"total"`
	Actor     string  `csv:"actor"`
	Remark    string  `csv:"remark"`
}

// ExportCSV renders the full movement history as CSV, oldest first.
func (s *LedgerService) ExportCSV(ctx context.Context, filter MovementFilter) ([]byte, error) {
	movements, err := s.Movements(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]movementCSVRow, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, movementCSVRow{
			Date:      m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			Product:   m.Product.Name,
			Direction: m.Direction,
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Total:     m.UnitPrice * float64(m.Quantity),
			Actor:     m.Actor,
			Remark:    m.Remark,
		})
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal movements csv: %w", err)
	}
	return []byte(out), nil
}

// appendMovement writes one immutable ledger entry inside the caller's
// transaction. Stock mutation and ledger append commit or roll back as a
// unit; an observer never sees one without the other.
func appendMovement(tx *gorm.DB, m *model.StockMovement) error {
	if m.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if m.Direction != model.DirectionIn && m.Direction != model.DirectionOut {
		return fmt.Errorf("invalid movement direction %q", m.Direction)
	}
	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}
