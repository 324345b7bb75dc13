/*
registry.go - Active reservation tracking

PURPOSE:
  The ReservationStore tracks which (work order, material) pairs currently
  hold soft-allocated stock, so Release and Consume can find everything a
  work order owns and remove it in full.

UNIQUENESS:
  At most one active record per (WorkOrderID, MaterialID). Add rejects a
  second record for the same pair with ErrDuplicateReservation; the Engine
  treats that as idempotent success (already reserved) rather than a hard
  failure.

LIFECYCLE:
  Records are created by a successful Reserve and removed in full by
  Release or Consume. They are never decremented in place.

SEE ALSO:
  - engine.go: The only component that adds/removes records
*/
package inventory

import "context"

// ReservationStore tracks active reservations keyed by work order.
type ReservationStore interface {
	// ListByWorkOrder returns all active records for a work order.
	// An unknown work order yields an empty slice, not an error.
	ListByWorkOrder(ctx context.Context, workOrderID WorkOrderID) ([]ReservationRecord, error)

	// Add registers a record. Fails with ErrDuplicateReservation if an
	// active record exists for the same (WorkOrderID, MaterialID).
	Add(ctx context.Context, rec ReservationRecord) error

	// RemoveAllForWorkOrder deletes every record under the work order.
	// Idempotent; a no-op if none exist.
	RemoveAllForWorkOrder(ctx context.Context, workOrderID WorkOrderID) error
}
