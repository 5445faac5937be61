package pos

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/freshretail/freshpos/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "pos.db") + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// sqlite allows a single writer; funneling the pool through one
	// connection keeps concurrent test transactions from tripping
	// SQLITE_BUSY instead of exercising the engine's own locking.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, NameKey: NormalizeName(name), Price: price, Category: "poultry"}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedLot(t *testing.T, db *gorm.DB, productID int64, qty int, expiry string) *domain.InventoryLot {
	t.Helper()
	lot := &domain.InventoryLot{
		ProductID:         productID,
		ReceivedQuantity:  qty,
		RemainingQuantity: qty,
		DateReceived:      DateOnly(time.Now()),
		ExpiryDate:        date(t, expiry),
	}
	require.NoError(t, db.Create(lot).Error)
	return lot
}

func lotRemaining(t *testing.T, db *gorm.DB, lotID int64) int {
	t.Helper()
	var lot domain.InventoryLot
	require.NoError(t, db.First(&lot, lotID).Error)
	return lot.RemainingQuantity
}
