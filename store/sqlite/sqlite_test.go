package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, inventory.MaterialRecord{
		ID:               "mat-1",
		SKU:              "SCREW-M8",
		Description:      "M8 hex screw",
		Category:         "fasteners",
		Unit:             inventory.UnitPieces,
		UnitCost:         decimal.NewFromFloat(0.12),
		OnHand:           decimal.NewFromInt(500),
		ReorderThreshold: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "mat-1")
	require.NoError(t, err)
	assert.Equal(t, "SCREW-M8", rec.SKU)
	assert.Equal(t, inventory.UnitPieces, rec.Unit)
	assert.True(t, rec.OnHand.Equal(decimal.NewFromInt(500)))
	assert.True(t, rec.Reserved.IsZero())
	assert.False(t, rec.CreatedAt.IsZero())

	// Price defaults to cost with the standard markup when not provided.
	expectedPrice := decimal.NewFromFloat(0.12).Mul(inventory.DefaultPriceMarkup)
	assert.True(t, rec.UnitPrice.Equal(expectedPrice),
		"expected %s, got %s", expectedPrice, rec.UnitPrice)
}

func TestCatalog_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, inventory.ErrMaterialNotFound)
}

func TestCatalog_UpsertPreservesStockCounters(t *testing.T) {
	// Editing catalog data (description, price) must never touch the
	// counters; those belong to the engine.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, inventory.MaterialRecord{
		ID:     "mat-1",
		SKU:    "SCREW-M8",
		Unit:   inventory.UnitPieces,
		OnHand: decimal.NewFromInt(500),
	}))
	require.NoError(t, store.UpdateStock(ctx, "mat-1",
		decimal.NewFromInt(500), decimal.NewFromInt(200)))

	require.NoError(t, store.Upsert(ctx, inventory.MaterialRecord{
		ID:          "mat-1",
		SKU:         "SCREW-M8",
		Description: "renamed",
		Unit:        inventory.UnitPieces,
		OnHand:      decimal.Zero, // must be ignored on update
	}))

	rec, err := store.Get(ctx, "mat-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", rec.Description)
	assert.True(t, rec.OnHand.Equal(decimal.NewFromInt(500)), "onHand %s", rec.OnHand)
	assert.True(t, rec.Reserved.Equal(decimal.NewFromInt(200)), "reserved %s", rec.Reserved)
}

func TestCatalog_UpdateStockMissing(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateStock(context.Background(), "nope", decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, inventory.ErrMaterialNotFound)
}

func TestCatalog_Discontinue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, inventory.MaterialRecord{
		ID: "mat-1", SKU: "SCREW-M8", Unit: inventory.UnitPieces,
	}))
	require.NoError(t, store.Discontinue(ctx, "mat-1"))

	rec, err := store.Get(ctx, "mat-1")
	require.NoError(t, err)
	assert.True(t, rec.Discontinued)

	assert.ErrorIs(t, store.Discontinue(ctx, "nope"), inventory.ErrMaterialNotFound)
}

// =============================================================================
// MOVEMENT LOG
// =============================================================================

func TestMovements_AppendAndQueryFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	wo := inventory.WorkOrderID("WO1")
	entries := []inventory.MovementEntry{
		{ID: "m1", MaterialID: "A", Type: inventory.MovementReceived,
			QuantitySigned: decimal.NewFromInt(10), OnHandBefore: decimal.Zero,
			OnHandAfter: decimal.NewFromInt(10), Timestamp: base},
		{ID: "m2", MaterialID: "A", WorkOrderID: &wo, Type: inventory.MovementReserved,
			QuantitySigned: decimal.NewFromInt(4), OnHandBefore: decimal.NewFromInt(10),
			OnHandAfter: decimal.NewFromInt(10), Timestamp: base.Add(time.Hour)},
		{ID: "m3", MaterialID: "B", Type: inventory.MovementReceived,
			QuantitySigned: decimal.NewFromInt(7), OnHandBefore: decimal.Zero,
			OnHandAfter: decimal.NewFromInt(7), Timestamp: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	// No filter: everything, ascending by timestamp
	all, err := store.Query(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, inventory.MovementID("m1"), all[0].ID)
	assert.Equal(t, inventory.MovementID("m3"), all[2].ID)

	// Work order round-trips through the nullable column
	require.NotNil(t, all[1].WorkOrderID)
	assert.Equal(t, wo, *all[1].WorkOrderID)
	assert.Nil(t, all[0].WorkOrderID)

	// Material filter
	matA := inventory.MaterialID("A")
	forA, err := store.Query(ctx, inventory.MovementFilter{MaterialID: &matA})
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	// Type filter
	typ := inventory.MovementReceived
	received, err := store.Query(ctx, inventory.MovementFilter{Type: &typ})
	require.NoError(t, err)
	assert.Len(t, received, 2)

	// Time window
	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	window, err := store.Query(ctx, inventory.MovementFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, inventory.MovementID("m2"), window[0].ID)
}

func TestMovements_DecimalPrecisionRoundTrip(t *testing.T) {
	// Quantities are stored as text; fractional values must survive
	// exactly, not as float approximations.
	store := newTestStore(t)
	ctx := context.Background()

	qty := inventory.MustParseDecimal("12.505")
	require.NoError(t, store.Append(ctx, inventory.MovementEntry{
		ID: "m1", MaterialID: "A", Type: inventory.MovementReceived,
		QuantitySigned: qty, OnHandBefore: decimal.Zero, OnHandAfter: qty,
		Timestamp: time.Now().UTC(),
	}))

	all, err := store.Query(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "12.505", all[0].QuantitySigned.String())
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func TestReservations_DuplicatePairRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := inventory.ReservationRecord{
		ID:          "res-WO1-A",
		WorkOrderID: "WO1",
		MaterialID:  "A",
		Quantity:    decimal.NewFromInt(3),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Add(ctx, rec))

	rec.ID = "res-WO1-A-again"
	err := store.Add(ctx, rec)
	require.Error(t, err)

	var dup *inventory.DuplicateReservationError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, inventory.WorkOrderID("WO1"), dup.WorkOrderID)
	assert.Equal(t, inventory.MaterialID("A"), dup.MaterialID)
	assert.ErrorIs(t, err, inventory.ErrDuplicateReservation)
}

func TestReservations_RemoveAllIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, inventory.ReservationRecord{
		ID: "res-WO1-A", WorkOrderID: "WO1", MaterialID: "A",
		Quantity: decimal.NewFromInt(3), CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.RemoveAllForWorkOrder(ctx, "WO1"))
	require.NoError(t, store.RemoveAllForWorkOrder(ctx, "WO1")) // second call is a no-op

	records, err := store.ListByWorkOrder(ctx, "WO1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

// =============================================================================
// ENGINE OVER SQLITE - Full lifecycle against real persistence
// =============================================================================

func TestEngine_LifecycleOverSQLite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	engine := inventory.NewEngine(store, store, store)

	require.NoError(t, store.Upsert(ctx, inventory.MaterialRecord{
		ID:   "mat-1",
		SKU:  "SCREW-M8",
		Unit: inventory.UnitPieces,
	}))
	_, err := engine.Receive(ctx, "mat-1", decimal.NewFromInt(100), "initial receipt")
	require.NoError(t, err)

	result, err := engine.Reserve(ctx, "WO1", []inventory.Demand{
		{MaterialID: "mat-1", Quantity: decimal.NewFromInt(40)},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	consumed, err := engine.Consume(ctx, "WO1")
	require.NoError(t, err)
	require.Len(t, consumed, 1)

	rec, err := store.Get(ctx, "mat-1")
	require.NoError(t, err)
	assert.True(t, rec.OnHand.Equal(decimal.NewFromInt(60)), "onHand %s", rec.OnHand)
	assert.True(t, rec.Reserved.IsZero(), "reserved %s", rec.Reserved)

	// Replaying the persisted ledger reproduces the counters.
	matID := inventory.MaterialID("mat-1")
	entries, err := store.Query(ctx, inventory.MovementFilter{MaterialID: &matID})
	require.NoError(t, err)
	require.Len(t, entries, 3) // received, reserved, consumed

	state := inventory.Replay(entries)
	assert.True(t, state.OnHand.Equal(rec.OnHand))
	assert.True(t, state.Reserved.Equal(rec.Reserved))
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, inventory.MaterialRecord{
		ID: "mat-1", SKU: "SCREW-M8", Unit: inventory.UnitPieces,
	}))
	require.NoError(t, store.Reset(ctx))

	materials, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, materials)
}
