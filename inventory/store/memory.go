// Package store provides in-memory implementations of the inventory
// storage interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// MEMORY CATALOG
// =============================================================================

type MemoryCatalog struct {
	mu        sync.RWMutex
	materials map[inventory.MaterialID]inventory.MaterialRecord
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{materials: make(map[inventory.MaterialID]inventory.MaterialRecord)}
}

func (c *MemoryCatalog) Get(_ context.Context, id inventory.MaterialID) (*inventory.MaterialRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.materials[id]
	if !ok {
		return nil, inventory.ErrMaterialNotFound
	}
	out := rec // copy, callers must not reach the stored record
	return &out, nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]inventory.MaterialRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]inventory.MaterialRecord, 0, len(c.materials))
	for _, rec := range c.materials {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SKU < result[j].SKU })
	return result, nil
}

func (c *MemoryCatalog) Upsert(_ context.Context, rec inventory.MaterialRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := c.materials[rec.ID]; ok {
		// Stock counters belong to the engine; a re-import must not
		// touch them. Same rule as the SQLite upsert.
		rec.CreatedAt = existing.CreatedAt
		rec.OnHand = existing.OnHand
		rec.Reserved = existing.Reserved
	} else {
		rec.CreatedAt = now
		inventory.NormalizeNewMaterial(&rec)
	}
	rec.UpdatedAt = now
	c.materials[rec.ID] = rec
	return nil
}

func (c *MemoryCatalog) UpdateStock(_ context.Context, id inventory.MaterialID, onHand, reserved decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.materials[id]
	if !ok {
		return inventory.ErrMaterialNotFound
	}
	rec.OnHand = onHand
	rec.Reserved = reserved
	rec.UpdatedAt = time.Now().UTC()
	c.materials[id] = rec
	return nil
}

func (c *MemoryCatalog) Available(_ context.Context, id inventory.MaterialID) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.materials[id]
	if !ok {
		return decimal.Zero, inventory.ErrMaterialNotFound
	}
	return rec.Available(), nil
}

func (c *MemoryCatalog) Discontinue(_ context.Context, id inventory.MaterialID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.materials[id]
	if !ok {
		return inventory.ErrMaterialNotFound
	}
	rec.Discontinued = true
	rec.UpdatedAt = time.Now().UTC()
	c.materials[id] = rec
	return nil
}

// =============================================================================
// MEMORY MOVEMENT LOG - Append-only
// =============================================================================

type MemoryMovementLog struct {
	mu      sync.RWMutex
	entries []inventory.MovementEntry
}

func NewMemoryMovementLog() *MemoryMovementLog {
	return &MemoryMovementLog{}
}

// Append adds an entry keeping the slice sorted by timestamp.
func (l *MemoryMovementLog) Append(_ context.Context, entry inventory.MovementEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Binary search for insertion point: appends are usually at the tail.
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Timestamp.After(entry.Timestamp)
	})
	l.entries = append(l.entries, inventory.MovementEntry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = entry
	return nil
}

func (l *MemoryMovementLog) Query(_ context.Context, filter inventory.MovementFilter) ([]inventory.MovementEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []inventory.MovementEntry
	for _, e := range l.entries {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// MEMORY RESERVATIONS
// =============================================================================

type MemoryReservations struct {
	mu      sync.RWMutex
	records map[inventory.WorkOrderID][]inventory.ReservationRecord
}

func NewMemoryReservations() *MemoryReservations {
	return &MemoryReservations{records: make(map[inventory.WorkOrderID][]inventory.ReservationRecord)}
}

func (r *MemoryReservations) ListByWorkOrder(_ context.Context, workOrderID inventory.WorkOrderID) ([]inventory.ReservationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]inventory.ReservationRecord, len(r.records[workOrderID]))
	copy(result, r.records[workOrderID])
	return result, nil
}

func (r *MemoryReservations) Add(_ context.Context, rec inventory.ReservationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records[rec.WorkOrderID] {
		if existing.MaterialID == rec.MaterialID {
			return &inventory.DuplicateReservationError{
				WorkOrderID: rec.WorkOrderID,
				MaterialID:  rec.MaterialID,
			}
		}
	}
	r.records[rec.WorkOrderID] = append(r.records[rec.WorkOrderID], rec)
	return nil
}

func (r *MemoryReservations) RemoveAllForWorkOrder(_ context.Context, workOrderID inventory.WorkOrderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, workOrderID)
	return nil
}
