/*
engine.go - Reservation engine and stock state machine

PURPOSE:
  Orchestrates availability checks, atomic multi-item reservation, release,
  and consumption. This is the ONLY component permitted to mutate catalog
  stock counters or append stock events to the movement log.

STATE MACHINE (per work order + material pair):
  Unreserved -> Reserved -> {Consumed | Released}
  Consumed and Released are terminal; a fresh Reserved cycle for the same
  pair afterwards is a new pair.

TWO-PHASE RESERVE:
  1. Validation: compute the shortage for every item. If ANY item is short,
     abort with the full shortage list and no mutation. A work order's
     material plan is reserved completely or not at all.
  2. Commit: increment Reserved, append a movement entry, register the
     reservation - for each item, under the same lock that validated.

CONCURRENCY:
  One mutex serializes every mutating operation, so two concurrent Reserve
  calls can never both pass validation against the same unit of available
  stock. Reads (CheckAvailability, analytics) take no engine lock and rely
  on store-level snapshots.

IDEMPOTENCE:
  - Reserve: a material already reserved under the same work order is
    skipped, not duplicated. Re-sending a work order's plan is safe.
  - Release/Consume: an unknown or already-cleared work order yields an
    empty result and no error. "Nothing to release" is not a failure.

SEE ALSO:
  - ledger.go: Movement log contract and replay semantics
  - registry.go: Active reservation tracking
  - analytics.go: Read-only reporting over the log
*/
package inventory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownMaterialName is reported for demands whose material is not in the
// catalog. Availability checks degrade per-item instead of failing the batch.
const UnknownMaterialName = "Unbekannt"

// Engine is the single writer of stock state.
type Engine struct {
	catalog      Catalog
	movements    MovementLog
	reservations ReservationStore

	// mu guards the validate+commit pair of every mutating operation.
	mu sync.Mutex
}

func NewEngine(catalog Catalog, movements MovementLog, reservations ReservationStore) *Engine {
	return &Engine{
		catalog:      catalog,
		movements:    movements,
		reservations: reservations,
	}
}

// =============================================================================
// AVAILABILITY - Pure read
// =============================================================================

// CheckAvailability computes the per-item shortage for a batch of demands.
// No side effects. Unknown materials report zero availability and a full
// shortage so callers can react per item.
func (e *Engine) CheckAvailability(ctx context.Context, demands []Demand) (*AvailabilityReport, error) {
	report := &AvailabilityReport{AllAvailable: true}
	for _, d := range demands {
		item, err := e.availabilityOf(ctx, d)
		if err != nil {
			return nil, err
		}
		if item.IsShort() {
			report.AllAvailable = false
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

func (e *Engine) availabilityOf(ctx context.Context, d Demand) (AvailabilityItem, error) {
	rec, err := e.catalog.Get(ctx, d.MaterialID)
	if IsNotFound(err) {
		return AvailabilityItem{
			MaterialID:  d.MaterialID,
			Description: UnknownMaterialName,
			Requested:   d.Quantity,
			Available:   decimal.Zero,
			Shortage:    d.Quantity,
		}, nil
	}
	if err != nil {
		return AvailabilityItem{}, err
	}

	available := rec.Available()
	shortage := d.Quantity.Sub(available)
	if shortage.IsNegative() {
		shortage = decimal.Zero
	}
	return AvailabilityItem{
		MaterialID:  d.MaterialID,
		Description: rec.Description,
		Requested:   d.Quantity,
		Available:   available,
		Shortage:    shortage,
	}, nil
}

// =============================================================================
// RESERVE - Two-phase, all-or-nothing
// =============================================================================

// Reserve soft-allocates stock for a work order's whole material plan.
// Shortage is an expected outcome and comes back as data
// (Success=false, full shortage list), not as an error; only storage
// failures produce a non-nil error.
func (e *Engine) Reserve(ctx context.Context, workOrderID WorkOrderID, demands []Demand) (*ReserveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Duplicate material lines in one plan are summed before validation.
	// Validating them separately against the same snapshot would let two
	// lines pass that cannot both commit.
	demands = mergeDemands(demands)

	existing, err := e.reservations.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	active := make(map[MaterialID]ReservationRecord, len(existing))
	for _, rec := range existing {
		active[rec.MaterialID] = rec
	}

	// Phase 1: validate the full batch. Demands already reserved under this
	// work order are idempotent no-ops and excluded from the check.
	var toCommit []Demand
	var alreadyReserved []ReservationRecord
	var shortages []AvailabilityItem
	for _, d := range demands {
		if rec, ok := active[d.MaterialID]; ok {
			alreadyReserved = append(alreadyReserved, rec)
			continue
		}
		item, err := e.availabilityOf(ctx, d)
		if err != nil {
			return nil, err
		}
		if item.IsShort() {
			shortages = append(shortages, item)
			continue
		}
		toCommit = append(toCommit, d)
	}

	if len(shortages) > 0 {
		return &ReserveResult{Success: false, Shortages: shortages}, nil
	}

	// Phase 2: commit. Validation passed for every item and the lock is
	// still held, so none of these increments can oversubscribe.
	now := time.Now().UTC()
	result := &ReserveResult{Success: true, Reserved: alreadyReserved}
	for i, d := range toCommit {
		rec, err := e.catalog.Get(ctx, d.MaterialID)
		if err != nil {
			return nil, err
		}

		newReserved := rec.Reserved.Add(d.Quantity)
		if newReserved.GreaterThan(rec.OnHand) {
			// Cannot happen after validation; fail loudly rather than commit.
			return nil, &IntegrityError{MaterialID: rec.ID, OnHand: rec.OnHand, Reserved: newReserved}
		}
		if err := e.catalog.UpdateStock(ctx, rec.ID, rec.OnHand, newReserved); err != nil {
			return nil, err
		}

		wo := workOrderID
		if err := e.movements.Append(ctx, MovementEntry{
			ID:             newMovementID(now, i),
			MaterialID:     rec.ID,
			WorkOrderID:    &wo,
			Type:           MovementReserved,
			QuantitySigned: d.Quantity,
			OnHandBefore:   rec.OnHand,
			OnHandAfter:    rec.OnHand,
			Note:           fmt.Sprintf("reserved for work order %s", workOrderID),
			Timestamp:      now,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
		}

		reservation := ReservationRecord{
			ID:          fmt.Sprintf("res-%s-%s", workOrderID, rec.ID),
			WorkOrderID: workOrderID,
			MaterialID:  rec.ID,
			Quantity:    d.Quantity,
			CreatedAt:   now,
		}
		if err := e.reservations.Add(ctx, reservation); err != nil {
			return nil, err
		}
		result.Reserved = append(result.Reserved, reservation)
	}

	return result, nil
}

// =============================================================================
// RELEASE - Return reserved stock to the free pool
// =============================================================================

// Release clears every reservation under a work order (order cancelled).
// Idempotent: a work order with no active reservations is a safe no-op.
func (e *Engine) Release(ctx context.Context, workOrderID WorkOrderID) ([]ReleasedItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.reservations.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var released []ReleasedItem
	for i, res := range records {
		rec, err := e.catalog.Get(ctx, res.MaterialID)
		if IsNotFound(err) {
			// Material vanished under an active reservation: log and drop
			// the registry record below.
			log.Printf("inventory: release %s references unknown material %s", workOrderID, res.MaterialID)
			continue
		}
		if err != nil {
			return nil, err
		}

		// Floor at zero defensively; a floor firing means the counters
		// already diverged and is worth logging.
		dec := decimal.Min(res.Quantity, rec.Reserved)
		if dec.LessThan(res.Quantity) {
			log.Printf("inventory: reserved counter of %s below reservation %s (have %s, expected >= %s)",
				rec.ID, res.ID, rec.Reserved, res.Quantity)
		}

		if err := e.catalog.UpdateStock(ctx, rec.ID, rec.OnHand, rec.Reserved.Sub(dec)); err != nil {
			return nil, err
		}

		wo := workOrderID
		if err := e.movements.Append(ctx, MovementEntry{
			ID:             newMovementID(now, i),
			MaterialID:     rec.ID,
			WorkOrderID:    &wo,
			Type:           MovementReleased,
			QuantitySigned: dec.Neg(),
			OnHandBefore:   rec.OnHand,
			OnHandAfter:    rec.OnHand,
			Note:           fmt.Sprintf("released for cancelled work order %s", workOrderID),
			Timestamp:      now,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
		}

		released = append(released, ReleasedItem{MaterialID: rec.ID, Quantity: dec})
	}

	if err := e.reservations.RemoveAllForWorkOrder(ctx, workOrderID); err != nil {
		return nil, err
	}
	return released, nil
}

// =============================================================================
// CONSUME - Physical material leaves the warehouse
// =============================================================================

// Consume books every reservation under a work order as physically used
// (order completed): on-hand and reserved both drop by the reserved
// quantity. Idempotent like Release.
func (e *Engine) Consume(ctx context.Context, workOrderID WorkOrderID) ([]ConsumedItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.reservations.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var consumed []ConsumedItem
	for i, res := range records {
		rec, err := e.catalog.Get(ctx, res.MaterialID)
		if IsNotFound(err) {
			log.Printf("inventory: consume %s references unknown material %s", workOrderID, res.MaterialID)
			continue
		}
		if err != nil {
			return nil, err
		}

		// Both counters drop by the same amount so that ledger replay stays
		// exact. Flooring below the reserved quantity means the counters
		// already diverged.
		dec := decimal.Min(res.Quantity, rec.Reserved, rec.OnHand)
		if dec.LessThan(res.Quantity) {
			log.Printf("inventory: counters of %s below reservation %s (onHand=%s reserved=%s, expected >= %s)",
				rec.ID, res.ID, rec.OnHand, rec.Reserved, res.Quantity)
		}

		onHandAfter := rec.OnHand.Sub(dec)
		if err := e.catalog.UpdateStock(ctx, rec.ID, onHandAfter, rec.Reserved.Sub(dec)); err != nil {
			return nil, err
		}

		wo := workOrderID
		if err := e.movements.Append(ctx, MovementEntry{
			ID:             newMovementID(now, i),
			MaterialID:     rec.ID,
			WorkOrderID:    &wo,
			Type:           MovementConsumed,
			QuantitySigned: dec.Neg(),
			OnHandBefore:   rec.OnHand,
			OnHandAfter:    onHandAfter,
			Note:           fmt.Sprintf("consumed by completed work order %s", workOrderID),
			Timestamp:      now,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
		}

		consumed = append(consumed, ConsumedItem{
			MaterialID:   rec.ID,
			Quantity:     dec,
			OnHandBefore: rec.OnHand,
			OnHandAfter:  onHandAfter,
		})
	}

	if err := e.reservations.RemoveAllForWorkOrder(ctx, workOrderID); err != nil {
		return nil, err
	}
	return consumed, nil
}

// Reservations returns the active reservation records under a work order.
// Pure read; an unknown work order yields an empty slice.
func (e *Engine) Reservations(ctx context.Context, workOrderID WorkOrderID) ([]ReservationRecord, error) {
	return e.reservations.ListByWorkOrder(ctx, workOrderID)
}

// =============================================================================
// RECEIVE / ADJUST - Non-order movements
// =============================================================================

// Receive books a goods receipt: on-hand grows, reservations are untouched.
// Discontinued materials reject receipts; their remaining stock can still be
// consumed or released, but no new stock may arrive.
func (e *Engine) Receive(ctx context.Context, materialID MaterialID, qty decimal.Decimal, note string) (*MovementEntry, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("receive quantity must be positive, got %s", qty)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.catalog.Get(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if rec.Discontinued {
		return nil, fmt.Errorf("%w: %s", ErrMaterialDiscontinued, materialID)
	}

	onHandAfter := rec.OnHand.Add(qty)
	if err := e.catalog.UpdateStock(ctx, rec.ID, onHandAfter, rec.Reserved); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := MovementEntry{
		ID:             newMovementID(now, 0),
		MaterialID:     rec.ID,
		Type:           MovementReceived,
		QuantitySigned: qty,
		OnHandBefore:   rec.OnHand,
		OnHandAfter:    onHandAfter,
		Note:           note,
		Timestamp:      now,
	}
	if err := e.movements.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return &entry, nil
}

// Adjust applies a manual on-hand correction. The new on-hand is clamped so
// that Reserved <= OnHand keeps holding; the entry records the delta that
// was actually applied.
func (e *Engine) Adjust(ctx context.Context, materialID MaterialID, delta decimal.Decimal, reason string) (*MovementEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.catalog.Get(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if rec.Discontinued {
		return nil, fmt.Errorf("%w: %s", ErrMaterialDiscontinued, materialID)
	}

	onHandAfter := rec.OnHand.Add(delta)
	if onHandAfter.LessThan(rec.Reserved) {
		log.Printf("inventory: adjustment of %s clamped to reserved floor (requested %s, reserved %s)",
			rec.ID, onHandAfter, rec.Reserved)
		onHandAfter = rec.Reserved
	}
	applied := onHandAfter.Sub(rec.OnHand)
	if applied.IsZero() {
		return nil, nil
	}

	if err := e.catalog.UpdateStock(ctx, rec.ID, onHandAfter, rec.Reserved); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := MovementEntry{
		ID:             newMovementID(now, 0),
		MaterialID:     rec.ID,
		Type:           MovementAdjusted,
		QuantitySigned: applied,
		OnHandBefore:   rec.OnHand,
		OnHandAfter:    onHandAfter,
		Note:           reason,
		Timestamp:      now,
	}
	if err := e.movements.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return &entry, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newMovementID(at time.Time, seq int) MovementID {
	return MovementID(fmt.Sprintf("mov-%d-%d", at.UnixNano(), seq))
}

// mergeDemands sums duplicate material lines, keeping first-occurrence
// order, so a batch holds at most one line per material.
func mergeDemands(demands []Demand) []Demand {
	merged := make([]Demand, 0, len(demands))
	index := make(map[MaterialID]int, len(demands))
	for _, d := range demands {
		if i, ok := index[d.MaterialID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(d.Quantity)
			continue
		}
		index[d.MaterialID] = len(merged)
		merged = append(merged, d)
	}
	return merged
}
