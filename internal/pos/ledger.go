package pos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/domain"
)

// Ledger is the append-only record of committed sales. Ids are assigned by
// the database and strictly increase in commit order; nothing ever updates or
// deletes a committed row.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// append writes the sale and its line items inside the caller's transaction
// and fills in the assigned order id.
func (l *Ledger) append(tx *gorm.DB, sale *domain.Sale) (int64, error) {
	if err := tx.Create(sale).Error; err != nil {
		return 0, err
	}
	return sale.ID, nil
}

// Query returns committed sales whose sale date falls inside [from, to],
// ordered by commit id. A zero bound leaves that side open.
func (l *Ledger) Query(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	db := l.db.WithContext(ctx).Preload("Items")
	if !from.IsZero() {
		db = db.Where("sale_date >= ?", DateOnly(from))
	}
	if !to.IsZero() {
		db = db.Where("sale_date <= ?", DateOnly(to))
	}
	var sales []domain.Sale
	err := db.Order("id ASC").Find(&sales).Error
	return sales, err
}

// Get loads a single committed sale by order id.
func (l *Ledger) Get(ctx context.Context, orderID int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := l.db.WithContext(ctx).Preload("Items").First(&sale, orderID).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
