/*
catalog.go - Material storage interface

PURPOSE:
  Defines the interface between the engine and material storage. The
  catalog is passive: it stores records and answers lookups but enforces
  no cross-item invariants (that is the Engine's job).

OWNERSHIP:
  OnHand/Reserved are mutated exclusively through Engine operations, which
  call UpdateStock under the engine lock. Upsert exists for import and
  admin flows only and must never be used to adjust stock counters.

IMPLEMENTATIONS:
  - inventory/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: Durable SQLite

SEE ALSO:
  - engine.go: The single writer of stock counters
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Catalog stores material records keyed by ID.
type Catalog interface {
	// Get returns the material or ErrMaterialNotFound.
	Get(ctx context.Context, id MaterialID) (*MaterialRecord, error)

	// List returns all materials, including discontinued ones.
	List(ctx context.Context) ([]MaterialRecord, error)

	// Upsert creates or replaces a material record. Import/admin flows only;
	// the Engine never calls this for stock fields.
	Upsert(ctx context.Context, rec MaterialRecord) error

	// UpdateStock overwrites the OnHand/Reserved counters of a material.
	// Only the Engine may call this, with its lock held.
	UpdateStock(ctx context.Context, id MaterialID, onHand, reserved decimal.Decimal) error

	// Available returns OnHand - Reserved, or ErrMaterialNotFound.
	Available(ctx context.Context, id MaterialID) (decimal.Decimal, error)

	// Discontinue soft-removes a material. Ledger history stays intact.
	Discontinue(ctx context.Context, id MaterialID) error
}

// NormalizeNewMaterial applies creation defaults: a missing UnitPrice
// defaults to UnitCost * 1.30.
func NormalizeNewMaterial(rec *MaterialRecord) {
	if rec.UnitPrice.IsZero() && !rec.UnitCost.IsZero() {
		rec.UnitPrice = rec.UnitCost.Mul(DefaultPriceMarkup)
	}
}
