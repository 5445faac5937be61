package pos

import "gorm.io/gorm"

// Options tunes the sale engine.
type Options struct {
	// LowStockThreshold is the availability level at or below which a
	// post-sale notification fires. A nil Notifier disables alerts.
	LowStockThreshold int
	Notifier          Notifier
}

// Engine bundles the catalog, lot store, ledger and transaction coordinator
// over one database handle.
type Engine struct {
	Catalog     *Catalog
	Lots        *LotStore
	Ledger      *Ledger
	Coordinator *Coordinator
}

func NewEngine(db *gorm.DB, opts Options) *Engine {
	catalog := NewCatalog(db)
	lots := NewLotStore(db)
	ledger := NewLedger(db)
	return &Engine{
		Catalog: catalog,
		Lots:    lots,
		Ledger:  ledger,
		Coordinator: &Coordinator{
			db:                db,
			catalog:           catalog,
			lots:              lots,
			ledger:            ledger,
			notifier:          opts.Notifier,
			lowStockThreshold: opts.LowStockThreshold,
		},
	}
}
