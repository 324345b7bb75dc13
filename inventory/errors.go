/*
errors.go - Centralized error types for the stock engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on these routinely; shortages and duplicates are part of
  the normal control flow, not exceptional conditions.

ERROR CATEGORIES:
  1. Lookup errors - Referenced material or work order does not exist
  2. Validation errors - Duplicate reservation, discontinued material
  3. Integrity errors - Counter invariant violated (should never happen)
  4. Storage errors - Ledger append / store I/O failures (hard errors)

Shortage is deliberately NOT an error: Reserve returns it as data in a
tagged ReserveResult so callers branch instead of unwrapping.

USAGE:
  if errors.Is(err, inventory.ErrDuplicateReservation) {
      // safe to treat as already-reserved
  }

SEE ALSO:
  - engine.go: Produces ErrMaterialDiscontinued, IntegrityError
  - registry.go: Produces ErrDuplicateReservation
*/
package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMaterialNotFound is returned when a referenced material does not
	// exist in the catalog. Batch operations treat unknown materials as
	// zero-availability items instead of failing outright.
	ErrMaterialNotFound = errors.New("material not found")

	// ErrDuplicateReservation is returned when an active reservation already
	// exists for the same (work order, material) pair.
	ErrDuplicateReservation = errors.New("duplicate reservation")

	// ErrIntegrityViolation indicates reserved > onHand or a negative
	// counter was about to be committed. Prevented by construction; if it
	// surfaces, the store data is corrupt.
	ErrIntegrityViolation = errors.New("stock integrity violation")

	// ErrAppendFailed is returned when the movement ledger cannot persist
	// an entry. This is a hard error: the engine can no longer guarantee
	// its audit invariants.
	ErrAppendFailed = errors.New("ledger append failed")

	// ErrMaterialDiscontinued is returned when a receipt or adjustment
	// targets a soft-removed material. Remaining stock may still be
	// consumed or released; no new stock arrives.
	ErrMaterialDiscontinued = errors.New("material discontinued")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateReservationError identifies the conflicting pair.
type DuplicateReservationError struct {
	WorkOrderID WorkOrderID
	MaterialID  MaterialID
}

func (e *DuplicateReservationError) Error() string {
	return fmt.Sprintf("reservation already active for work order %s, material %s",
		e.WorkOrderID, e.MaterialID)
}

func (e *DuplicateReservationError) Unwrap() error { return ErrDuplicateReservation }

// IntegrityError reports which counter went out of bounds.
type IntegrityError struct {
	MaterialID MaterialID
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation for material %s: onHand=%s reserved=%s",
		e.MaterialID, e.OnHand, e.Reserved)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// and safe to surface as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateReservation) ||
		errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrMaterialDiscontinued)
}

// IsNotFound returns true if the error indicates a missing material.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMaterialNotFound)
}
