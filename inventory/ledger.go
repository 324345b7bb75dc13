/*
ledger.go - Append-only movement log

PURPOSE:
  The MovementLog is the immutable audit trail of every stock-affecting
  event. The catalog's OnHand/Reserved counters are a materialized view;
  replaying a material's movements in timestamp order must reproduce them
  exactly.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. AUDITABLE: Every counter change is traceable to one entry

CORRECTIONS:
  A wrong quantity is never edited in place. An Adjusted entry records the
  correction; both entries remain in the log.

SEE ALSO:
  - engine.go: The only appender for stock events
  - analytics.go: Read-only aggregation over the log
*/
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MOVEMENT LOG - Append-only audit trail
// =============================================================================

// MovementLog persists movement entries. Append fails only on storage I/O
// failure; it never rejects a well-formed entry.
type MovementLog interface {
	// Append adds an entry. This is the ONLY write operation.
	Append(ctx context.Context, entry MovementEntry) error

	// Query returns entries matching the filter, ascending by timestamp.
	Query(ctx context.Context, filter MovementFilter) ([]MovementEntry, error)
}

// MovementFilter narrows a Query. Nil/zero fields match everything.
type MovementFilter struct {
	MaterialID *MaterialID
	Type       *MovementType
	From       *time.Time
	To         *time.Time
}

// Matches reports whether an entry passes the filter.
// Shared by the memory store and tests.
func (f MovementFilter) Matches(e MovementEntry) bool {
	if f.MaterialID != nil && e.MaterialID != *f.MaterialID {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// REPLAY - Ledger as source of truth
// =============================================================================

// ReplayedState is the counter state reconstructed from movement entries.
type ReplayedState struct {
	OnHand   decimal.Decimal
	Reserved decimal.Decimal
}

// Replay folds a material's entries (ascending timestamp) into counter
// state. Reserved/Released act on the reserved counter, Received/Adjusted
// on on-hand, Consumed on both. The result must equal the catalog record;
// a mismatch means the materialized view drifted from the audit trail.
func Replay(entries []MovementEntry) ReplayedState {
	state := ReplayedState{OnHand: decimal.Zero, Reserved: decimal.Zero}
	for _, e := range entries {
		switch e.Type {
		case MovementReserved, MovementReleased:
			state.Reserved = state.Reserved.Add(e.QuantitySigned)
		case MovementConsumed:
			state.OnHand = state.OnHand.Add(e.QuantitySigned)
			state.Reserved = state.Reserved.Add(e.QuantitySigned)
		case MovementReceived, MovementAdjusted:
			state.OnHand = state.OnHand.Add(e.QuantitySigned)
		}
	}
	return state
}
