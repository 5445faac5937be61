package pos

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/domain"
)

// NormalizeName returns the lookup key for a product name: trimmed and
// Unicode case-folded, so "Chicken Liver" and " chicken liver " resolve to the
// same catalog row.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Catalog provides id and normalized-name access to product records.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Get loads a product by id. A missing row surfaces as *UnknownProductError.
func (c *Catalog) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := c.db.WithContext(ctx).First(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &UnknownProductError{ProductID: productID}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByName looks a product up by normalized name. It returns (nil, nil)
// when no product matches.
func (c *Catalog) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	var p domain.Product
	err := c.db.WithContext(ctx).Where("name_key = ?", NormalizeName(name)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOrCreate returns the product with the given normalized name, creating
// it when absent. The unique index on name_key decides creation races: when
// the insert loses, the winner's row is fetched and returned, so exactly one
// product ever exists per normalized name.
func (c *Catalog) FindOrCreate(ctx context.Context, name string, price float64, category, image string) (*domain.Product, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return nil, false, &ValidationError{Reason: "product name is required"}
	}
	if price < 0 {
		return nil, false, &ValidationError{Reason: "product price must not be negative"}
	}

	if p, err := c.FindByName(ctx, name); err != nil {
		return nil, false, err
	} else if p != nil {
		return p, false, nil
	}

	p := &domain.Product{
		Name:     strings.TrimSpace(name),
		NameKey:  key,
		Price:    price,
		Category: category,
		Image:    image,
	}
	err := c.db.WithContext(ctx).Create(p).Error
	if err == nil {
		return p, true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := c.FindByName(ctx, name)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, err
}

// List returns the full catalog ordered by id.
func (c *Catalog) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := c.db.WithContext(ctx).Order("id ASC").Find(&products).Error
	return products, err
}

// Update applies an explicit edit to an existing product. The normalized name
// key is kept in sync with the name.
func (c *Catalog) Update(ctx context.Context, p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.NameKey = NormalizeName(p.Name)
	if p.NameKey == "" {
		return &ValidationError{Reason: "product name is required"}
	}
	if p.Price < 0 {
		return &ValidationError{Reason: "product price must not be negative"}
	}
	return c.db.WithContext(ctx).Save(p).Error
}
