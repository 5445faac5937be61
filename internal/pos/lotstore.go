package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/domain"
)

// DateOnly truncates a timestamp to its calendar date in UTC. Expiry and
// receipt dates are stored and compared at date precision only.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LotDeduction records how many units one lot contributed to a deduction.
type LotDeduction struct {
	LotID    int64 `json:"lot_id"`
	Quantity int   `json:"quantity"`
}

// LotStore holds the per-product inventory lots and performs earliest-expiry-
// first (FEFO) deduction. All mutation of a product's lots happens under that
// product's lock.
type LotStore struct {
	db    *gorm.DB
	locks *productLocks
}

func NewLotStore(db *gorm.DB) *LotStore {
	return &LotStore{db: db, locks: newProductLocks()}
}

// Receive creates a new inventory lot from a stock receipt.
func (s *LotStore) Receive(ctx context.Context, productID int64, quantity int, dateReceived, expiryDate time.Time) (*domain.InventoryLot, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Reason: "received quantity must be positive"}
	}
	if dateReceived.IsZero() {
		dateReceived = time.Now()
	}
	if expiryDate.IsZero() {
		return nil, &ValidationError{Reason: "expiry date is required"}
	}
	received, expiry := DateOnly(dateReceived), DateOnly(expiryDate)
	if expiry.Before(received) {
		return nil, &ValidationError{Reason: "expiry date is before date received"}
	}

	var p domain.Product
	if err := s.db.WithContext(ctx).First(&p, productID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &UnknownProductError{ProductID: productID}
	} else if err != nil {
		return nil, err
	}

	lot := &domain.InventoryLot{
		ProductID:         productID,
		ReceivedQuantity:  quantity,
		RemainingQuantity: quantity,
		DateReceived:      received,
		ExpiryDate:        expiry,
	}
	if err := s.db.WithContext(ctx).Create(lot).Error; err != nil {
		return nil, err
	}
	return lot, nil
}

// AvailableQuantity sums the remaining units over the product's non-expired,
// non-empty lots as of the given date. Pure read.
func (s *LotStore) AvailableQuantity(ctx context.Context, productID int64, asOf time.Time) (int, error) {
	return availableQuantity(s.db.WithContext(ctx), productID, asOf)
}

func availableQuantity(db *gorm.DB, productID int64, asOf time.Time) (int, error) {
	var total int
	err := db.Model(&domain.InventoryLot{}).
		Where("product_id = ? AND remaining_quantity > 0 AND expiry_date >= ?", productID, DateOnly(asOf)).
		Select("COALESCE(SUM(remaining_quantity), 0)").
		Scan(&total).Error
	return total, err
}

// Deduct removes quantity units from the product's eligible lots, earliest
// expiry first, ties broken by ascending lot id. The deduction is
// all-or-nothing: on insufficient stock it returns *InsufficientStockError
// and no lot is touched.
func (s *LotStore) Deduct(ctx context.Context, productID int64, quantity int, asOf time.Time) ([]LotDeduction, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Reason: "deduction quantity must be positive"}
	}
	unlock := s.locks.lockAll([]int64{productID})
	defer unlock()

	var breakdown []LotDeduction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		breakdown, err = deductLocked(tx, productID, quantity, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return breakdown, nil
}

// deductLocked performs the FEFO walk inside an open transaction. The caller
// must hold the product's lock; sufficiency is verified before the first
// update so a shortfall never leaves a partial write behind.
func deductLocked(tx *gorm.DB, productID int64, quantity int, asOf time.Time) ([]LotDeduction, error) {
	var lots []domain.InventoryLot
	err := tx.
		Where("product_id = ? AND remaining_quantity > 0 AND expiry_date >= ?", productID, DateOnly(asOf)).
		Order("expiry_date ASC, id ASC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}

	available := 0
	for _, lot := range lots {
		available += lot.RemainingQuantity
	}
	if available < quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	needed := quantity
	breakdown := make([]LotDeduction, 0, len(lots))
	for _, lot := range lots {
		if needed == 0 {
			break
		}
		take := lot.RemainingQuantity
		if take > needed {
			take = needed
		}
		res := tx.Model(&domain.InventoryLot{}).
			Where("id = ? AND remaining_quantity = ?", lot.ID, lot.RemainingQuantity).
			Update("remaining_quantity", lot.RemainingQuantity-take)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			// Guard against unlocked callers; rolls the transaction back
			// instead of overselling.
			return nil, fmt.Errorf("lot %d changed during deduction of product %d", lot.ID, productID)
		}
		breakdown = append(breakdown, LotDeduction{LotID: lot.ID, Quantity: take})
		needed -= take
	}
	return breakdown, nil
}

// Lots lists inventory lots for diagnostics and reporting. A zero productID
// lists every lot.
func (s *LotStore) Lots(ctx context.Context, productID int64) ([]domain.InventoryLot, error) {
	db := s.db.WithContext(ctx)
	if productID != 0 {
		db = db.Where("product_id = ?", productID)
	}
	var lots []domain.InventoryLot
	err := db.Order("product_id ASC, expiry_date ASC, id ASC").Find(&lots).Error
	return lots, err
}

// ExpiringLots returns lots that still hold stock and expire within the
// window ending at deadline (inclusive), skipping already expired lots.
func (s *LotStore) ExpiringLots(ctx context.Context, productID int64, asOf, deadline time.Time) ([]domain.InventoryLot, error) {
	var lots []domain.InventoryLot
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND remaining_quantity > 0 AND expiry_date >= ? AND expiry_date <= ?",
			productID, DateOnly(asOf), DateOnly(deadline)).
		Order("expiry_date ASC, id ASC").
		Find(&lots).Error
	return lots, err
}
