/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (Catalog, MovementLog,
  ReservationStore) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The movements table is the audit trail of record:
  - No UPDATE statements on movements
  - No DELETE statements on movements
  - Corrections via new 'adjusted' entries only

KEY TABLES:
  materials:    Catalog records with on-hand/reserved counters
  reservations: Active (work_order, material) soft allocations
  movements:    Immutable log of every stock-affecting event

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The engine additionally serializes
  its validate+commit sections with its own lock.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := inventory.NewEngine(store, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/catalog.go, ledger.go, registry.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Materials (catalog + materialized stock counters)
	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		description TEXT,
		category TEXT,
		unit TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		on_hand TEXT NOT NULL,
		reserved TEXT NOT NULL,
		reorder_threshold TEXT NOT NULL,
		discontinued BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_materials_category ON materials(category);

	-- Reservations (at most one active per work order + material)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL,
		material_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_pair
		ON reservations(work_order_id, material_id);
	CREATE INDEX IF NOT EXISTS idx_reservations_work_order
		ON reservations(work_order_id);

	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		material_id TEXT NOT NULL,
		work_order_id TEXT,
		movement_type TEXT NOT NULL,
		quantity_signed TEXT NOT NULL,
		on_hand_before TEXT NOT NULL,
		on_hand_after TEXT NOT NULL,
		note TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_material
		ON movements(material_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_movements_type
		ON movements(movement_type);
	CREATE INDEX IF NOT EXISTS idx_movements_timestamp
		ON movements(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG (inventory.Catalog interface)
// =============================================================================

const materialColumns = `id, sku, description, category, unit, unit_cost, unit_price,
	on_hand, reserved, reorder_threshold, discontinued, created_at, updated_at`

// Get returns the material or inventory.ErrMaterialNotFound.
func (s *Store) Get(ctx context.Context, id inventory.MaterialID) (*inventory.MaterialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE id = ?", id)
	rec, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, inventory.ErrMaterialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return rec, nil
}

// List returns all materials ordered by SKU.
func (s *Store) List(ctx context.Context) ([]inventory.MaterialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+materialColumns+" FROM materials ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []inventory.MaterialRecord
	for rows.Next() {
		rec, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *rec)
	}
	return materials, rows.Err()
}

// Upsert creates or replaces a material. Stock counters of an existing
// record are preserved; they belong to the engine.
func (s *Store) Upsert(ctx context.Context, rec inventory.MaterialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inventory.NormalizeNewMaterial(&rec)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `
		INSERT INTO materials
		(id, sku, description, category, unit, unit_cost, unit_price,
		 on_hand, reserved, reorder_threshold, discontinued, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku,
			description = excluded.description,
			category = excluded.category,
			unit = excluded.unit,
			unit_cost = excluded.unit_cost,
			unit_price = excluded.unit_price,
			reorder_threshold = excluded.reorder_threshold,
			discontinued = excluded.discontinued,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SKU, rec.Description, rec.Category, rec.Unit,
		rec.UnitCost.String(), rec.UnitPrice.String(),
		rec.OnHand.String(), rec.Reserved.String(), rec.ReorderThreshold.String(),
		rec.Discontinued, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert material: %w", err)
	}
	return nil
}

// UpdateStock overwrites the stock counters. Engine use only.
func (s *Store) UpdateStock(ctx context.Context, id inventory.MaterialID, onHand, reserved decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE materials SET on_hand = ?, reserved = ?, updated_at = ? WHERE id = ?",
		onHand.String(), reserved.String(), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return inventory.ErrMaterialNotFound
	}
	return nil
}

// Available returns on_hand - reserved.
func (s *Store) Available(ctx context.Context, id inventory.MaterialID) (decimal.Decimal, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.Available(), nil
}

// Discontinue soft-removes a material. Ledger history stays intact.
func (s *Store) Discontinue(ctx context.Context, id inventory.MaterialID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE materials SET discontinued = TRUE, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to discontinue material: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return inventory.ErrMaterialNotFound
	}
	return nil
}

func scanMaterial(row interface{ Scan(...any) error }) (*inventory.MaterialRecord, error) {
	var (
		rec                         inventory.MaterialRecord
		unit                        string
		unitCost, unitPrice         string
		onHand, reserved, threshold string
		createdAt, updatedAt        string
		description, category       sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.SKU, &description, &category, &unit,
		&unitCost, &unitPrice, &onHand, &reserved, &threshold,
		&rec.Discontinued, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Description = description.String
	rec.Category = category.String
	rec.Unit = inventory.Unit(unit)
	rec.UnitCost = inventory.MustParseDecimal(unitCost)
	rec.UnitPrice = inventory.MustParseDecimal(unitPrice)
	rec.OnHand = inventory.MustParseDecimal(onHand)
	rec.Reserved = inventory.MustParseDecimal(reserved)
	rec.ReorderThreshold = inventory.MustParseDecimal(threshold)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

// =============================================================================
// MOVEMENT LOG (inventory.MovementLog interface)
// =============================================================================

// Append adds a movement entry. This is the only write path; no update or
// delete statements exist for the movements table.
func (s *Store) Append(ctx context.Context, entry inventory.MovementEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var workOrderID sql.NullString
	if entry.WorkOrderID != nil {
		workOrderID = sql.NullString{String: string(*entry.WorkOrderID), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO movements
		(id, material_id, work_order_id, movement_type, quantity_signed,
		 on_hand_before, on_hand_after, note, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.MaterialID, workOrderID, entry.Type,
		entry.QuantitySigned.String(),
		entry.OnHandBefore.String(), entry.OnHandAfter.String(),
		entry.Note, entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// Query returns movements matching the filter, ascending by timestamp.
func (s *Store) Query(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, material_id, work_order_id, movement_type, quantity_signed,
		       on_hand_before, on_hand_after, note, timestamp
		FROM movements
	`
	var conds []string
	var args []any
	if filter.MaterialID != nil {
		conds = append(conds, "material_id = ?")
		args = append(args, *filter.MaterialID)
	}
	if filter.Type != nil {
		conds = append(conds, "movement_type = ?")
		args = append(args, *filter.Type)
	}
	if filter.From != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp ASC, seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var entries []inventory.MovementEntry
	for rows.Next() {
		var (
			e              inventory.MovementEntry
			workOrderID    sql.NullString
			quantitySigned string
			before, after  string
			note           sql.NullString
			timestamp      string
		)
		if err := rows.Scan(
			&e.ID, &e.MaterialID, &workOrderID, &e.Type, &quantitySigned,
			&before, &after, &note, &timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}

		if workOrderID.Valid {
			wo := inventory.WorkOrderID(workOrderID.String)
			e.WorkOrderID = &wo
		}
		e.QuantitySigned = inventory.MustParseDecimal(quantitySigned)
		e.OnHandBefore = inventory.MustParseDecimal(before)
		e.OnHandAfter = inventory.MustParseDecimal(after)
		e.Note = note.String
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// RESERVATIONS (inventory.ReservationStore interface)
// =============================================================================

// ListByWorkOrder returns all active reservations under a work order.
func (s *Store) ListByWorkOrder(ctx context.Context, workOrderID inventory.WorkOrderID) ([]inventory.ReservationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_order_id, material_id, quantity, created_at
		FROM reservations
		WHERE work_order_id = ?
		ORDER BY created_at ASC, id ASC
	`, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var records []inventory.ReservationRecord
	for rows.Next() {
		var (
			rec       inventory.ReservationRecord
			quantity  string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.WorkOrderID, &rec.MaterialID, &quantity, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		rec.Quantity = inventory.MustParseDecimal(quantity)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Add registers a reservation. The unique index on (work_order_id,
// material_id) enforces the one-active-record rule.
func (s *Store) Add(ctx context.Context, rec inventory.ReservationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, work_order_id, material_id, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.ID, rec.WorkOrderID, rec.MaterialID,
		rec.Quantity.String(), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &inventory.DuplicateReservationError{
				WorkOrderID: rec.WorkOrderID,
				MaterialID:  rec.MaterialID,
			}
		}
		return fmt.Errorf("failed to add reservation: %w", err)
	}
	return nil
}

// RemoveAllForWorkOrder deletes every reservation under a work order.
func (s *Store) RemoveAllForWorkOrder(ctx context.Context, workOrderID inventory.WorkOrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM reservations WHERE work_order_id = ?", workOrderID)
	if err != nil {
		return fmt.Errorf("failed to remove reservations: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"movements", "reservations", "materials"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
