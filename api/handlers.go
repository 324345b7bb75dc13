/*
handlers.go - HTTP API handlers for the stock engine

PURPOSE:
  Exposes the reservation engine and analytics reader via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Materials:
    GET    /api/materials                    List catalog
    POST   /api/materials                    Upsert material (import/admin)
    GET    /api/materials/{id}               Get material
    DELETE /api/materials/{id}               Soft-remove material
    GET    /api/materials/{id}/movements     Ledger entries for material
    POST   /api/materials/{id}/receive       Goods receipt
    POST   /api/materials/{id}/adjust        Manual correction

  Reservations:
    POST   /api/availability                 Check a batch of demands
    POST   /api/work-orders/{id}/reserve     Reserve material plan
    POST   /api/work-orders/{id}/release     Release (order cancelled)
    POST   /api/work-orders/{id}/consume     Consume (order completed)
    GET    /api/work-orders/{id}/reservations Active reservations

  Analytics:
    GET    /api/analytics/low-stock
    GET    /api/analytics/materials/{id}/summary
    GET    /api/analytics/trend?days=N
    GET    /api/movements/export             CSV export of the ledger

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Material not found
  - 409: Shortage (with full shortage list in the body)
  - 500: Storage errors

  Shortage is NOT an error envelope: reserve returns 409 with the same
  tagged ReserveResponseDTO shape, success=false, so callers can branch
  on data instead of parsing messages.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog   inventory.Catalog
	Movements inventory.MovementLog
	Engine    *inventory.Engine
	Analytics *inventory.Analytics
}

// NewHandler wires the engine and analytics reader over the given stores.
func NewHandler(catalog inventory.Catalog, movements inventory.MovementLog, reservations inventory.ReservationStore) *Handler {
	return &Handler{
		Catalog:   catalog,
		Movements: movements,
		Engine:    inventory.NewEngine(catalog, movements, reservations),
		Analytics: inventory.NewAnalytics(catalog, movements),
	}
}

// =============================================================================
// MATERIAL HANDLERS
// =============================================================================

// ListMaterials returns the whole catalog.
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list materials", err)
		return
	}

	dtos := make([]MaterialDTO, len(materials))
	for i, m := range materials {
		dtos[i] = toMaterialDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMaterial returns a single material.
func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	rec, err := h.Catalog.Get(r.Context(), id)
	if inventory.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Material not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get material", err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(*rec))
}

// UpsertMaterial creates or updates a catalog record (import/admin flow).
// Stock counters of existing records are not touched here.
func (h *Handler) UpsertMaterial(w http.ResponseWriter, r *http.Request) {
	var req UpsertMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.SKU == "" {
		writeError(w, http.StatusBadRequest, "id and sku are required", nil)
		return
	}

	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_cost", err)
		return
	}

	rec := inventory.MaterialRecord{
		ID:          inventory.MaterialID(req.ID),
		SKU:         req.SKU,
		Description: req.Description,
		Category:    req.Category,
		Unit:        inventory.Unit(req.Unit),
		UnitCost:    unitCost,
	}
	if req.UnitPrice != "" {
		if rec.UnitPrice, err = decimal.NewFromString(req.UnitPrice); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
			return
		}
	}
	if req.OnHand != "" {
		if rec.OnHand, err = decimal.NewFromString(req.OnHand); err != nil || rec.OnHand.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid on_hand", err)
			return
		}
	}
	if req.ReorderThreshold != "" {
		if rec.ReorderThreshold, err = decimal.NewFromString(req.ReorderThreshold); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reorder_threshold", err)
			return
		}
	}

	// Initial stock of a brand-new material is booked through the engine
	// as a goods receipt, so the ledger stays the full history and replay
	// reproduces the counters from day one. Existing records keep their
	// engine-owned counters regardless of the submitted on_hand.
	_, err = h.Catalog.Get(r.Context(), rec.ID)
	isNew := inventory.IsNotFound(err)
	if err != nil && !isNew {
		writeError(w, http.StatusInternalServerError, "Failed to look up material", err)
		return
	}
	initial := rec.OnHand
	rec.OnHand = decimal.Zero

	if err := h.Catalog.Upsert(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to upsert material", err)
		return
	}
	if isNew && initial.IsPositive() {
		if _, err := h.Engine.Receive(r.Context(), rec.ID, initial, "initial import"); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to book initial stock", err)
			return
		}
	}

	saved, err := h.Catalog.Get(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload material", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMaterialDTO(*saved))
}

// DiscontinueMaterial soft-removes a material. Ledger history remains.
func (h *Handler) DiscontinueMaterial(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	err := h.Catalog.Discontinue(r.Context(), id)
	if inventory.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Material not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to discontinue material", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMaterialMovements returns the ledger entries for one material.
func (h *Handler) GetMaterialMovements(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	entries, err := h.Movements.Query(r.Context(), inventory.MovementFilter{MaterialID: &id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query movements", err)
		return
	}

	dtos := make([]MovementDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toMovementDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReceiveStock books a goods receipt.
func (h *Handler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	var req ReceiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || !qty.IsPositive() {
		writeError(w, http.StatusBadRequest, "Quantity must be a positive decimal", err)
		return
	}

	entry, err := h.Engine.Receive(r.Context(), id, qty, req.Note)
	if inventory.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Material not found", nil)
		return
	}
	if inventory.IsClientError(err) {
		writeError(w, http.StatusConflict, "Material discontinued", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to receive stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(*entry))
}

// AdjustStock applies a manual on-hand correction.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delta", err)
		return
	}

	entry, err := h.Engine.Adjust(r.Context(), id, delta, req.Reason)
	if inventory.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Material not found", nil)
		return
	}
	if inventory.IsClientError(err) {
		writeError(w, http.StatusConflict, "Material discontinued", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to adjust stock", err)
		return
	}
	if entry == nil {
		// Correction clamped to a no-op
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(*entry))
}

// =============================================================================
// AVAILABILITY AND RESERVATION HANDLERS
// =============================================================================

// CheckAvailability reports per-item shortages for a batch of demands.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	demands, ok := h.decodeDemands(w, r)
	if !ok {
		return
	}

	report, err := h.Engine.CheckAvailability(r.Context(), demands)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check availability", err)
		return
	}

	dto := AvailabilityReportDTO{AllAvailable: report.AllAvailable}
	for _, item := range report.Items {
		dto.Items = append(dto.Items, toAvailabilityItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dto)
}

// Reserve soft-allocates a work order's material plan, all-or-nothing.
// A shortage returns 409 with the full shortage list; nothing is mutated.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	workOrderID := inventory.WorkOrderID(chi.URLParam(r, "id"))
	demands, ok := h.decodeDemands(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.Reserve(r.Context(), workOrderID, demands)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reserve", err)
		return
	}

	dto := ReserveResponseDTO{Success: result.Success}
	for _, rec := range result.Reserved {
		dto.Reserved = append(dto.Reserved, toReservationDTO(rec))
	}
	for _, item := range result.Shortages {
		dto.Shortages = append(dto.Shortages, toAvailabilityItemDTO(item))
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto)
}

// Release clears a work order's reservations (order cancelled). Idempotent.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	workOrderID := inventory.WorkOrderID(chi.URLParam(r, "id"))

	released, err := h.Engine.Release(r.Context(), workOrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to release", err)
		return
	}

	dtos := make([]ReleasedItemDTO, len(released))
	for i, item := range released {
		dtos[i] = ReleasedItemDTO{
			MaterialID: string(item.MaterialID),
			Quantity:   item.Quantity.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Consume books a work order's reservations as physically used (order
// completed). Idempotent.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	workOrderID := inventory.WorkOrderID(chi.URLParam(r, "id"))

	consumed, err := h.Engine.Consume(r.Context(), workOrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to consume", err)
		return
	}

	dtos := make([]ConsumedItemDTO, len(consumed))
	for i, item := range consumed {
		dtos[i] = ConsumedItemDTO{
			MaterialID:   string(item.MaterialID),
			Quantity:     item.Quantity.String(),
			OnHandBefore: item.OnHandBefore.String(),
			OnHandAfter:  item.OnHandAfter.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListReservations returns the active reservations under a work order.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	workOrderID := inventory.WorkOrderID(chi.URLParam(r, "id"))

	records, err := h.Engine.Reservations(r.Context(), workOrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reservations", err)
		return
	}

	dtos := make([]ReservationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toReservationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeDemands(w http.ResponseWriter, r *http.Request) ([]inventory.Demand, bool) {
	var req CheckAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty", nil)
		return nil, false
	}

	demands := make([]inventory.Demand, len(req.Items))
	for i, item := range req.Items {
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil || !qty.IsPositive() {
			writeError(w, http.StatusBadRequest, "Quantities must be positive decimals", err)
			return nil, false
		}
		demands[i] = inventory.Demand{
			MaterialID: inventory.MaterialID(item.MaterialID),
			Quantity:   qty,
		}
	}
	return demands, true
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// LowStock lists materials at or below their reorder threshold.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Analytics.LowStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute low stock", err)
		return
	}

	dtos := make([]LowStockItemDTO, len(items))
	for i, item := range items {
		dtos[i] = LowStockItemDTO{
			Material:  toMaterialDTO(item.Material),
			Available: item.Available.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MovementSummary aggregates one material's ledger history.
func (h *Handler) MovementSummary(w http.ResponseWriter, r *http.Request) {
	id := inventory.MaterialID(chi.URLParam(r, "id"))

	summary, err := h.Analytics.Summary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}

	counts := make(map[string]int, len(summary.CountsByType))
	for t, n := range summary.CountsByType {
		counts[string(t)] = n
	}
	writeJSON(w, http.StatusOK, MovementSummaryDTO{
		MaterialID:    string(summary.MaterialID),
		TotalIncoming: summary.TotalIncoming.String(),
		TotalOutgoing: summary.TotalOutgoing.String(),
		NetChange:     summary.NetChange.String(),
		CountsByType:  counts,
	})
}

// MovementTrend returns daily buckets for the last N days (default 30).
func (h *Handler) MovementTrend(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365", err)
			return
		}
		days = n
	}

	buckets, err := h.Analytics.Trend(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute trend", err)
		return
	}

	dtos := make([]TrendBucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = TrendBucketDTO{
			Day:      b.Day.Format("2006-01-02"),
			Incoming: b.Incoming.String(),
			Outgoing: b.Outgoing.String(),
			Net:      b.Net.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportMovements streams the ledger as CSV, a thin formatting layer over
// the movement log query.
func (h *Handler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	var filter inventory.MovementFilter
	if v := r.URL.Query().Get("material_id"); v != "" {
		id := inventory.MaterialID(v)
		filter.MaterialID = &id
	}
	if v := r.URL.Query().Get("type"); v != "" {
		t := inventory.MovementType(v)
		filter.Type = &t
	}

	entries, err := h.Movements.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query movements", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="movements.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "material_id", "work_order_id", "type", "quantity_signed", "on_hand_before", "on_hand_after", "note", "timestamp"})
	for _, e := range entries {
		workOrder := ""
		if e.WorkOrderID != nil {
			workOrder = string(*e.WorkOrderID)
		}
		cw.Write([]string{
			string(e.ID),
			string(e.MaterialID),
			workOrder,
			string(e.Type),
			e.QuantitySigned.String(),
			e.OnHandBefore.String(),
			e.OnHandAfter.String(),
			e.Note,
			e.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
