/*
Package inventory provides the stock reservation and movement ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking physical
  stock, soft-reserving it against work orders, committing or rolling back
  those reservations, and keeping an immutable audit trail of every quantity
  change.

KEY CONCEPTS IN THIS FILE (types.go):
  - MaterialRecord: One stocked item with on-hand and reserved counters
  - ReservationRecord: One active (work order, material) soft allocation
  - MovementEntry: An immutable ledger entry recording one stock event

DESIGN PRINCIPLES:
  1. Immutability: Movement entries are never modified, only appended
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing material/order IDs
  4. Auditability: Replaying a material's movements reproduces its counters

CORE INVARIANT:
  For every material, at all times: 0 <= Reserved <= OnHand.
  Available = OnHand - Reserved is what can still be newly reserved.

SEE ALSO:
  - engine.go: The only component allowed to mutate stock counters
  - ledger.go: Append-only movement log interface
  - catalog.go: Material storage interface
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNITS
// =============================================================================

// Unit is the measurement unit of a material. Quantities themselves are
// bare decimal.Decimal values; the unit lives on the catalog record.
type Unit string

const (
	UnitPieces Unit = "pcs"
	UnitMeters Unit = "m"
	UnitKilos  Unit = "kg"
	UnitLiters Unit = "l"
)

// MustParseDecimal parses a stored decimal string, falling back to zero.
// Store scan paths only; user input goes through decimal.NewFromString.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MaterialID string
type WorkOrderID string
type MovementID string

// =============================================================================
// MATERIAL RECORD - One stocked item (materialized view over the ledger)
// =============================================================================

// MaterialRecord holds the catalog data and current stock counters for one
// material. OnHand and Reserved are mutated exclusively by the Engine; the
// movement ledger remains the source of truth and replaying it reproduces
// both counters.
type MaterialRecord struct {
	ID          MaterialID
	SKU         string // human article number, unique within catalog
	Description string
	Category    string
	Unit        Unit

	UnitCost  decimal.Decimal
	UnitPrice decimal.Decimal // defaults to UnitCost * 1.30 at creation

	OnHand           decimal.Decimal // physical quantity in the warehouse
	Reserved         decimal.Decimal // soft-allocated to open work orders
	ReorderThreshold decimal.Decimal

	// Discontinued marks a soft-removed material. Records referenced by
	// ledger entries are never hard-deleted.
	Discontinued bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns OnHand - Reserved, the quantity that can still be
// newly reserved.
func (m *MaterialRecord) Available() decimal.Decimal {
	return m.OnHand.Sub(m.Reserved)
}

// DefaultPriceMarkup is applied to UnitCost when a material is created
// without an explicit UnitPrice.
var DefaultPriceMarkup = decimal.NewFromFloat(1.30)

// =============================================================================
// RESERVATION RECORD - One active (work order, material) pairing
// =============================================================================

// ReservationRecord tracks one outstanding soft allocation. At most one
// active record exists per (WorkOrderID, MaterialID); records are removed
// in full by Release or Consume, never decremented.
type ReservationRecord struct {
	ID          string
	WorkOrderID WorkOrderID
	MaterialID  MaterialID
	Quantity    decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// MOVEMENT ENTRY - Immutable ledger record of one stock event
// =============================================================================

type MovementType string

const (
	MovementReserved MovementType = "reserved" // Reserved counter increased
	MovementReleased MovementType = "released" // Reserved counter decreased (order cancelled)
	MovementConsumed MovementType = "consumed" // OnHand and Reserved decreased (order completed)
	MovementReceived MovementType = "received" // OnHand increased (goods receipt)
	MovementAdjusted MovementType = "adjusted" // OnHand corrected manually
)

// MovementEntry is one append-only ledger record. Entries are never mutated
// or deleted; corrections happen via new Adjusted entries.
//
// QuantitySigned is positive for an increase and negative for a decrease of
// the counter the movement type applies to (Reserved/Released act on the
// reserved counter, Received/Adjusted on on-hand, Consumed on both).
type MovementEntry struct {
	ID             MovementID
	MaterialID     MaterialID
	WorkOrderID    *WorkOrderID // nil for non-order movements (receipt, adjustment)
	Type           MovementType
	QuantitySigned decimal.Decimal
	OnHandBefore   decimal.Decimal
	OnHandAfter    decimal.Decimal
	Note           string
	Timestamp      time.Time
}

// =============================================================================
// DEMANDS AND RESULTS - Engine operation inputs/outputs
// =============================================================================

// Demand is one (material, quantity) line of a work order's material plan.
type Demand struct {
	MaterialID MaterialID
	Quantity   decimal.Decimal
}

// AvailabilityItem is the per-material detail of an availability check.
// Unknown materials report zero availability and a full shortage instead
// of failing the whole batch.
type AvailabilityItem struct {
	MaterialID  MaterialID
	Description string
	Requested   decimal.Decimal
	Available   decimal.Decimal
	Shortage    decimal.Decimal // max(0, Requested - Available)
}

func (a AvailabilityItem) IsShort() bool { return a.Shortage.IsPositive() }

// AvailabilityReport is the result of CheckAvailability over a whole batch.
type AvailabilityReport struct {
	Items        []AvailabilityItem
	AllAvailable bool
}

// ReserveResult is the tagged outcome of a Reserve call. Shortages are an
// expected, routinely handled outcome, so they come back as data rather
// than as an error the caller has to unwrap.
type ReserveResult struct {
	Success   bool
	Reserved  []ReservationRecord // records created (or already active) for this work order
	Shortages []AvailabilityItem  // full shortage list when Success is false
}

// ConsumedItem reports one material physically taken from the warehouse
// when a work order completes.
type ConsumedItem struct {
	MaterialID   MaterialID
	Quantity     decimal.Decimal
	OnHandBefore decimal.Decimal
	OnHandAfter  decimal.Decimal
}

// ReleasedItem reports one reservation returned to the free pool.
type ReleasedItem struct {
	MaterialID MaterialID
	Quantity   decimal.Decimal
}
