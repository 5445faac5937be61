package pos

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/domain"
)

// SaleLine is one requested line item. Any client-supplied price is ignored;
// the unit price is always resolved from the catalog at transaction time.
type SaleLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// SaleRequest is a multi-item sale to be committed as one atomic unit.
type SaleRequest struct {
	Date  time.Time
	Time  string
	Items []SaleLine
}

// SaleReceipt describes a committed sale.
type SaleReceipt struct {
	OrderID  int64             `json:"order_id"`
	Date     time.Time         `json:"date"`
	Time     string            `json:"time"`
	Subtotal float64           `json:"subtotal"`
	Items    []domain.SaleItem `json:"items"`
}

// Notifier receives post-commit stock alerts. Implementations must not block;
// delivery failures never affect the sale.
type Notifier interface {
	LowStock(product domain.Product, available int)
}

// Coordinator executes sale requests against the catalog, lot store and
// ledger as one atomic unit: validate, resolve authoritative prices, deduct
// every line FEFO, then append the ledger entry. Any failure rolls the whole
// transaction back, so a sale either fully commits or has zero effect.
type Coordinator struct {
	db                *gorm.DB
	catalog           *Catalog
	lots              *LotStore
	ledger            *Ledger
	notifier          Notifier
	lowStockThreshold int
}

// SubmitSale commits the request and returns its ledger receipt. Structural
// problems return *ValidationError or *UnknownProductError before any state
// is touched; a stock shortfall on any line returns *InsufficientStockError
// with every earlier deduction rolled back.
func (c *Coordinator) SubmitSale(ctx context.Context, req SaleRequest) (*SaleReceipt, error) {
	if len(req.Items) == 0 {
		return nil, &ValidationError{Reason: "sale has no line items"}
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &ValidationError{Reason: "line item quantity must be positive"}
		}
	}

	now := time.Now()
	saleDate := req.Date
	if saleDate.IsZero() {
		saleDate = now
	}
	saleDate = DateOnly(saleDate)
	saleTime := req.Time
	if saleTime == "" {
		saleTime = now.Format("15:04:05")
	}

	productIDs := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		productIDs = append(productIDs, line.ProductID)
	}

	// Per-product locks, acquired in ascending id order, make the
	// availability check and the deduction atomic against concurrent sales
	// touching the same products.
	unlock := c.lots.locks.lockAll(productIDs)
	defer unlock()

	var sale domain.Sale
	products := make(map[int64]domain.Product, len(req.Items))
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range req.Items {
			if _, ok := products[line.ProductID]; ok {
				continue
			}
			var p domain.Product
			if err := tx.First(&p, line.ProductID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				return &UnknownProductError{ProductID: line.ProductID}
			} else if err != nil {
				return err
			}
			products[line.ProductID] = p
		}

		subtotal := 0.0
		items := make([]domain.SaleItem, 0, len(req.Items))
		for _, line := range req.Items {
			if _, err := deductLocked(tx, line.ProductID, line.Quantity, saleDate); err != nil {
				return err
			}
			p := products[line.ProductID]
			items = append(items, domain.SaleItem{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				UnitPrice: p.Price,
			})
			subtotal += float64(line.Quantity) * p.Price
		}

		sale = domain.Sale{
			SaleDate: saleDate,
			SaleTime: saleTime,
			Subtotal: math.Round(subtotal*100) / 100,
			Items:    items,
		}
		_, err := c.ledger.append(tx, &sale)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.checkLowStock(ctx, products, saleDate)

	return &SaleReceipt{
		OrderID:  sale.ID,
		Date:     sale.SaleDate,
		Time:     sale.SaleTime,
		Subtotal: sale.Subtotal,
		Items:    sale.Items,
	}, nil
}

func (c *Coordinator) checkLowStock(ctx context.Context, products map[int64]domain.Product, asOf time.Time) {
	if c.notifier == nil {
		return
	}
	for _, p := range products {
		available, err := c.lots.AvailableQuantity(ctx, p.ID, asOf)
		if err != nil {
			zap.L().Warn("low stock check failed",
				zap.Int64("product_id", p.ID), zap.Error(err))
			continue
		}
		if available <= c.lowStockThreshold {
			c.notifier.LowStock(p, available)
		}
	}
}
