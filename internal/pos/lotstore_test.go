package pos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeductEarliestExpiryFirst(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Breast", 180)
	l1 := seedLot(t, db, p.ID, 5, "2024-01-01")
	l2 := seedLot(t, db, p.ID, 5, "2024-02-01")

	breakdown, err := store.Deduct(ctx, p.ID, 7, date(t, "2023-12-15"))
	require.NoError(t, err)
	require.Equal(t, []LotDeduction{{LotID: l1.ID, Quantity: 5}, {LotID: l2.ID, Quantity: 2}}, breakdown)
	require.Equal(t, 0, lotRemaining(t, db, l1.ID))
	require.Equal(t, 3, lotRemaining(t, db, l2.ID))
}

func TestDeductInsufficientStockMutatesNothing(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Breast", 180)
	l1 := seedLot(t, db, p.ID, 5, "2024-01-01")
	l2 := seedLot(t, db, p.ID, 5, "2024-02-01")

	_, err := store.Deduct(ctx, p.ID, 11, date(t, "2023-12-15"))
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, p.ID, insufficient.ProductID)
	require.Equal(t, 11, insufficient.Requested)
	require.Equal(t, 10, insufficient.Available)
	require.Equal(t, 1, insufficient.Shortfall())

	require.Equal(t, 5, lotRemaining(t, db, l1.ID))
	require.Equal(t, 5, lotRemaining(t, db, l2.ID))
}

func TestDeductLeavesLaterLotUntouched(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Liver", 90)
	l1 := seedLot(t, db, p.ID, 8, "2024-01-01")
	l2 := seedLot(t, db, p.ID, 8, "2024-03-01")

	breakdown, err := store.Deduct(ctx, p.ID, 8, date(t, "2023-12-15"))
	require.NoError(t, err)
	require.Equal(t, []LotDeduction{{LotID: l1.ID, Quantity: 8}}, breakdown)
	require.Equal(t, 8, lotRemaining(t, db, l2.ID))
}

func TestDeductTieBreaksByLotID(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Wings", 150)
	l1 := seedLot(t, db, p.ID, 4, "2024-01-01")
	l2 := seedLot(t, db, p.ID, 4, "2024-01-01")

	breakdown, err := store.Deduct(ctx, p.ID, 5, date(t, "2023-12-15"))
	require.NoError(t, err)
	require.Equal(t, []LotDeduction{{LotID: l1.ID, Quantity: 4}, {LotID: l2.ID, Quantity: 1}}, breakdown)
}

func TestDeductIgnoresExpiredLots(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Feet", 60)
	expired := seedLot(t, db, p.ID, 10, "2024-01-01")
	fresh := seedLot(t, db, p.ID, 10, "2024-06-01")

	breakdown, err := store.Deduct(ctx, p.ID, 6, date(t, "2024-02-01"))
	require.NoError(t, err)
	require.Equal(t, []LotDeduction{{LotID: fresh.ID, Quantity: 6}}, breakdown)
	require.Equal(t, 10, lotRemaining(t, db, expired.ID))
}

func TestDeductRejectsNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)

	p := seedProduct(t, db, "Chicken Gizzard", 70)
	seedLot(t, db, p.ID, 10, "2024-06-01")

	for _, qty := range []int{0, -3} {
		_, err := store.Deduct(context.Background(), p.ID, qty, date(t, "2024-01-01"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	}
}

func TestAvailableQuantityFiltersExpiredAndEmptyLots(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Whole Chicken", 250)
	seedLot(t, db, p.ID, 5, "2024-01-01")
	seedLot(t, db, p.ID, 7, "2024-03-01")
	empty := seedLot(t, db, p.ID, 4, "2024-03-01")
	require.NoError(t, db.Model(empty).Update("remaining_quantity", 0).Error)

	asOf := date(t, "2024-02-01")
	available, err := store.AvailableQuantity(ctx, p.ID, asOf)
	require.NoError(t, err)
	require.Equal(t, 7, available)

	// Expired-but-stocked lot counts again with an earlier reference date.
	available, err = store.AvailableQuantity(ctx, p.ID, date(t, "2023-12-01"))
	require.NoError(t, err)
	require.Equal(t, 12, available)
}

func TestAvailableQuantityExpiryBoundaryInclusive(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)

	p := seedProduct(t, db, "Chicken Thigh", 160)
	seedLot(t, db, p.ID, 5, "2024-01-15")

	available, err := store.AvailableQuantity(context.Background(), p.ID, date(t, "2024-01-15"))
	require.NoError(t, err)
	require.Equal(t, 5, available)
}

func TestReceiveCreatesLot(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Neck", 40)
	lot, err := store.Receive(ctx, p.ID, 12, date(t, "2024-01-02"), date(t, "2024-01-20"))
	require.NoError(t, err)
	require.Equal(t, 12, lot.RemainingQuantity)
	require.Equal(t, 12, lot.ReceivedQuantity)
	require.Equal(t, DateOnly(date(t, "2024-01-20")), lot.ExpiryDate)

	available, err := store.AvailableQuantity(ctx, p.ID, date(t, "2024-01-10"))
	require.NoError(t, err)
	require.Equal(t, 12, available)
}

func TestReceiveValidation(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Neck", 40)

	_, err := store.Receive(ctx, p.ID, 0, date(t, "2024-01-02"), date(t, "2024-01-20"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = store.Receive(ctx, p.ID, 5, date(t, "2024-01-20"), date(t, "2024-01-02"))
	require.ErrorAs(t, err, &verr)

	_, err = store.Receive(ctx, 424242, 5, date(t, "2024-01-02"), date(t, "2024-01-20"))
	var unknown *UnknownProductError
	require.ErrorAs(t, err, &unknown)
}

func TestDeductedLotsAreKeptAtZero(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Skin", 30)
	lot := seedLot(t, db, p.ID, 3, "2024-05-01")

	_, err := store.Deduct(ctx, p.ID, 3, date(t, "2024-01-01"))
	require.NoError(t, err)

	// The emptied lot stays on record for audit history.
	lots, err := store.Lots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, lot.ID, lots[0].ID)
	require.Equal(t, 0, lots[0].RemainingQuantity)
}

func TestExpiringLotsWindow(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Heart", 80)
	soon := seedLot(t, db, p.ID, 5, "2024-01-03")
	seedLot(t, db, p.ID, 5, "2024-02-01")
	gone := seedLot(t, db, p.ID, 5, "2023-12-30")

	lots, err := store.ExpiringLots(ctx, p.ID, date(t, "2024-01-01"), date(t, "2024-01-04"))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, soon.ID, lots[0].ID)
	require.NotEqual(t, gone.ID, lots[0].ID)
}

func TestDeductConcurrentSameProductNeverOversells(t *testing.T) {
	db := newTestDB(t)
	store := NewLotStore(db)
	ctx := context.Background()

	p := seedProduct(t, db, "Chicken Breast", 180)
	seedLot(t, db, p.ID, 6, "2024-01-01")
	seedLot(t, db, p.ID, 6, "2024-02-01")

	asOf := date(t, "2023-12-01")
	const workers = 6
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := store.Deduct(ctx, p.ID, 3, asOf)
			results <- err
		}()
	}

	succeeded, failed := 0, 0
	for i := 0; i < workers; i++ {
		err := <-results
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		failed++
	}

	require.Equal(t, 4, succeeded)
	require.Equal(t, 2, failed)

	available, err := store.AvailableQuantity(ctx, p.ID, asOf)
	require.NoError(t, err)
	require.Equal(t, 0, available)

	lots, err := store.Lots(ctx, p.ID)
	require.NoError(t, err)
	for _, lot := range lots {
		require.GreaterOrEqual(t, lot.RemainingQuantity, 0)
	}
}
