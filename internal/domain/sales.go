package domain

import "time"

// Sale is one committed ledger entry. Rows are append-only: the autoincrement
// primary key doubles as the strictly increasing order id, and no code path
// updates or deletes a sale after commit.
type Sale struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleDate  time.Time  `gorm:"index" json:"sale_date"`
	SaleTime  string     `gorm:"size:16" json:"sale_time"`
	Subtotal  float64    `json:"subtotal"`
	Items     []SaleItem `gorm:"foreignKey:SaleID" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Sale) TableName() string {
	return "sales"
}

type SaleItem struct {
	ID        int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    int64   `gorm:"index" json:"sale_id"`
	ProductID int64   `gorm:"index" json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

func (SaleItem) TableName() string {
	return "sale_items"
}
