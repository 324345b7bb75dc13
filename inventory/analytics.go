/*
analytics.go - Read-only reporting over the movement log

PURPOSE:
  Derives reporting views from the ledger and catalog: low-stock detection,
  per-material movement summaries, and daily movement trends. The reader has
  no mutation rights and never talks to the engine; it consumes the same
  stores independently.

PROPERTIES:
  - Pure functions over a log snapshot
  - Tolerate an empty log (zero-valued results, no errors)
  - Trend windows are fixed-size with zero-filled days, not sparse

SEE ALSO:
  - ledger.go: Query contract the reader builds on
*/
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Analytics aggregates over the movement log and catalog. Read-only.
type Analytics struct {
	catalog   Catalog
	movements MovementLog
}

func NewAnalytics(catalog Catalog, movements MovementLog) *Analytics {
	return &Analytics{catalog: catalog, movements: movements}
}

// =============================================================================
// LOW STOCK
// =============================================================================

// LowStockItem pairs a material with its current availability.
type LowStockItem struct {
	Material  MaterialRecord
	Available decimal.Decimal
}

// LowStock returns materials whose available quantity has fallen to or
// below their reorder threshold. A zero threshold disables the check for
// that material; discontinued materials are excluded.
func (a *Analytics) LowStock(ctx context.Context) ([]LowStockItem, error) {
	materials, err := a.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	var low []LowStockItem
	for _, m := range materials {
		if m.Discontinued || !m.ReorderThreshold.IsPositive() {
			continue
		}
		available := m.Available()
		if available.LessThanOrEqual(m.ReorderThreshold) {
			low = append(low, LowStockItem{Material: m, Available: available})
		}
	}
	return low, nil
}

// =============================================================================
// MOVEMENT SUMMARY
// =============================================================================

// MovementSummary classifies a material's entries by direction and type.
type MovementSummary struct {
	MaterialID    MaterialID
	TotalIncoming decimal.Decimal // sum of positive signed quantities
	TotalOutgoing decimal.Decimal // absolute sum of negative signed quantities
	NetChange     decimal.Decimal
	CountsByType  map[MovementType]int
}

// Summary scans all entries for one material. An empty log yields a
// zero-valued summary, not an error.
func (a *Analytics) Summary(ctx context.Context, materialID MaterialID) (*MovementSummary, error) {
	entries, err := a.movements.Query(ctx, MovementFilter{MaterialID: &materialID})
	if err != nil {
		return nil, err
	}

	s := &MovementSummary{
		MaterialID:    materialID,
		TotalIncoming: decimal.Zero,
		TotalOutgoing: decimal.Zero,
		NetChange:     decimal.Zero,
		CountsByType:  make(map[MovementType]int),
	}
	for _, e := range entries {
		if e.QuantitySigned.IsPositive() {
			s.TotalIncoming = s.TotalIncoming.Add(e.QuantitySigned)
		} else {
			s.TotalOutgoing = s.TotalOutgoing.Add(e.QuantitySigned.Neg())
		}
		s.NetChange = s.NetChange.Add(e.QuantitySigned)
		s.CountsByType[e.Type]++
	}
	return s, nil
}

// =============================================================================
// MOVEMENT TREND
// =============================================================================

// TrendBucket is one day of movement activity.
type TrendBucket struct {
	Day      time.Time // midnight UTC
	Incoming decimal.Decimal
	Outgoing decimal.Decimal
	Net      decimal.Decimal
}

// Trend buckets the last n days of movements (today included) by entry
// date. Days without activity appear as zero-valued buckets so charts get
// a fixed-size window.
func (a *Analytics) Trend(ctx context.Context, days int) ([]TrendBucket, error) {
	if days <= 0 {
		days = 1
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))
	end := today.Add(24 * time.Hour)

	entries, err := a.movements.Query(ctx, MovementFilter{From: &start, To: &end})
	if err != nil {
		return nil, err
	}

	buckets := make([]TrendBucket, days)
	index := make(map[time.Time]int, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		buckets[i] = TrendBucket{
			Day:      day,
			Incoming: decimal.Zero,
			Outgoing: decimal.Zero,
			Net:      decimal.Zero,
		}
		index[day] = i
	}

	for _, e := range entries {
		day := e.Timestamp.UTC().Truncate(24 * time.Hour)
		i, ok := index[day]
		if !ok {
			continue
		}
		if e.QuantitySigned.IsPositive() {
			buckets[i].Incoming = buckets[i].Incoming.Add(e.QuantitySigned)
		} else {
			buckets[i].Outgoing = buckets[i].Outgoing.Add(e.QuantitySigned.Neg())
		}
		buckets[i].Net = buckets[i].Net.Add(e.QuantitySigned)
	}
	return buckets, nil
}
