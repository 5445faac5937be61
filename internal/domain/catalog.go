package domain

import "time"

// Product is a catalog item. NameKey is the case-folded, trimmed form of Name
// and carries the uniqueness constraint so a creation race can never store two
// rows for the same normalized name.
type Product struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:200" json:"name"`
	NameKey   string    `gorm:"size:200;uniqueIndex" json:"-"`
	Price     float64   `json:"price"`
	Category  string    `gorm:"size:64;index" json:"category"`
	Image     string    `gorm:"size:1024" json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// InventoryLot is a batch of stock for one product, received on one date with
// one expiry date. Lots are never deleted; a fully consumed lot stays at zero
// remaining quantity for audit history.
type InventoryLot struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID         int64     `gorm:"index" json:"product_id"`
	ReceivedQuantity  int       `json:"received_quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
	DateReceived      time.Time `json:"date_received"`
	ExpiryDate        time.Time `gorm:"index" json:"expiry_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (InventoryLot) TableName() string {
	return "inventory_lots"
}
