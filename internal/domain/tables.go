package domain

var Tables = []interface{}{
	// System
	&SysOpr{},
	// Catalog and inventory
	&Product{},
	&InventoryLot{},
	// Sales ledger
	&Sale{},
	&SaleItem{},
}
