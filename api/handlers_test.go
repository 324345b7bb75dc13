package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
	"github.com/warp/stock-engine/inventory/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryCatalog) {
	t.Helper()
	catalog := store.NewMemoryCatalog()
	h := NewHandler(catalog, store.NewMemoryMovementLog(), store.NewMemoryReservations())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, catalog
}

func seedMaterial(t *testing.T, catalog *store.MemoryCatalog, id string, onHand int64) {
	t.Helper()
	require.NoError(t, catalog.Upsert(context.Background(), inventory.MaterialRecord{
		ID:       inventory.MaterialID(id),
		SKU:      "SKU-" + id,
		Unit:     inventory.UnitPieces,
		UnitCost: decimal.NewFromInt(2),
		OnHand:   decimal.NewFromInt(onHand),
	}))
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// MATERIALS
// =============================================================================

func TestAPI_UpsertMaterial_DefaultsPrice(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials", UpsertMaterialRequest{
		ID:       "mat-1",
		SKU:      "SCREW-M8",
		Unit:     "pcs",
		UnitCost: "2",
		OnHand:   "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	dto := decode[MaterialDTO](t, resp)
	assert.Equal(t, "SCREW-M8", dto.SKU)
	assert.Equal(t, "100", dto.OnHand)
	assert.Equal(t, "2.6", dto.UnitPrice) // cost 2 * markup 1.30
}

func TestAPI_UpsertInitialStock_BooksReceipt(t *testing.T) {
	// Initial on_hand of a new material arrives as a goods receipt, so the
	// ledger carries the material's full history from creation.
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials", UpsertMaterialRequest{
		ID:       "mat-1",
		SKU:      "SCREW-M8",
		Unit:     "pcs",
		UnitCost: "2",
		OnHand:   "25",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dto := decode[MaterialDTO](t, resp)
	assert.Equal(t, "25", dto.OnHand)

	resp, err := http.Get(srv.URL + "/api/materials/mat-1/movements")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movements := decode[[]MovementDTO](t, resp)
	require.Len(t, movements, 1)
	assert.Equal(t, string(inventory.MovementReceived), movements[0].Type)
	assert.Equal(t, "25", movements[0].QuantitySigned)

	// Re-importing the record neither changes counters nor books a
	// second receipt.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/materials", UpsertMaterialRequest{
		ID:       "mat-1",
		SKU:      "SCREW-M8",
		Unit:     "pcs",
		UnitCost: "2",
		OnHand:   "99",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dto = decode[MaterialDTO](t, resp)
	assert.Equal(t, "25", dto.OnHand)

	resp, err = http.Get(srv.URL + "/api/materials/mat-1/movements")
	require.NoError(t, err)
	movements = decode[[]MovementDTO](t, resp)
	assert.Len(t, movements, 1)
}

func TestAPI_UpsertMaterial_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials", UpsertMaterialRequest{
		SKU: "missing-id", Unit: "pcs", UnitCost: "1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetMaterial_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/materials/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// RESERVE / RELEASE / CONSUME
// =============================================================================

func TestAPI_Reserve_Success(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/work-orders/WO1/reserve",
		CheckAvailabilityRequest{Items: []DemandDTO{{MaterialID: "mat-1", Quantity: "6"}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dto := decode[ReserveResponseDTO](t, resp)
	assert.True(t, dto.Success)
	require.Len(t, dto.Reserved, 1)
	assert.Equal(t, "6", dto.Reserved[0].Quantity)
	assert.Empty(t, dto.Shortages)
}

func TestAPI_Reserve_ShortageReturns409WithDetail(t *testing.T) {
	// A shortage is not an error envelope: the same tagged shape comes
	// back with success=false so clients branch on data.
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 4)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/work-orders/WO1/reserve",
		CheckAvailabilityRequest{Items: []DemandDTO{{MaterialID: "mat-1", Quantity: "6"}}})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	dto := decode[ReserveResponseDTO](t, resp)
	assert.False(t, dto.Success)
	require.Len(t, dto.Shortages, 1)
	assert.Equal(t, "4", dto.Shortages[0].Available)
	assert.Equal(t, "2", dto.Shortages[0].Shortage)
}

func TestAPI_ReleaseUnknownWorkOrder_IsOK(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/work-orders/ghost/release", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	items := decode[[]ReleasedItemDTO](t, resp)
	assert.Empty(t, items)
}

func TestAPI_ConsumeLifecycle(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/work-orders/WO1/reserve",
		CheckAvailabilityRequest{Items: []DemandDTO{{MaterialID: "mat-1", Quantity: "6"}}})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/work-orders/WO1/consume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	consumed := decode[[]ConsumedItemDTO](t, resp)
	require.Len(t, consumed, 1)
	assert.Equal(t, "10", consumed[0].OnHandBefore)
	assert.Equal(t, "4", consumed[0].OnHandAfter)

	// Reservation list is empty afterwards
	resp, err := http.Get(srv.URL + "/api/work-orders/WO1/reservations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reservations := decode[[]ReservationDTO](t, resp)
	assert.Empty(t, reservations)
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestAPI_CheckAvailability_UnknownMaterial(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/availability",
		CheckAvailabilityRequest{Items: []DemandDTO{
			{MaterialID: "mat-1", Quantity: "2"},
			{MaterialID: "ghost", Quantity: "3"},
		}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dto := decode[AvailabilityReportDTO](t, resp)
	assert.False(t, dto.AllAvailable)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, inventory.UnknownMaterialName, dto.Items[1].Description)
	assert.Equal(t, "0", dto.Items[1].Available)
	assert.Equal(t, "3", dto.Items[1].Shortage)
}

func TestAPI_CheckAvailability_RejectsBadQuantities(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, qty := range []string{"0", "-1", "abc"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/availability",
			CheckAvailabilityRequest{Items: []DemandDTO{{MaterialID: "mat-1", Quantity: qty}}})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "quantity %q", qty)
	}
}

// =============================================================================
// RECEIVE / ADJUST / EXPORT
// =============================================================================

func TestAPI_ReceiveAndExportCSV(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 0)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials/mat-1/receive",
		ReceiveRequest{Quantity: "25", Note: "delivery 4711"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[MovementDTO](t, resp)
	assert.Equal(t, string(inventory.MovementReceived), entry.Type)
	assert.Equal(t, "25", entry.OnHandAfter)

	resp, err := http.Get(srv.URL + "/api/movements/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one receipt
	assert.Equal(t, "material_id", rows[0][1])
	assert.Equal(t, "mat-1", rows[1][1])
	assert.Equal(t, "received", rows[1][3])
	assert.Equal(t, "25", rows[1][4])
}

func TestAPI_ReceiveDiscontinued_Conflict(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 5)
	require.NoError(t, catalog.Discontinue(context.Background(), "mat-1"))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials/mat-1/receive",
		ReceiveRequest{Quantity: "3"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/materials/mat-1/adjust",
		AdjustRequest{Delta: "-1", Reason: "count"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_AdjustClampedToNoOp(t *testing.T) {
	srv, catalog := newTestServer(t)
	seedMaterial(t, catalog, "mat-1", 0)

	// onHand is already at the reserved floor (0), a negative correction
	// clamps to nothing
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/materials/mat-1/adjust",
		AdjustRequest{Delta: "-5", Reason: "count correction"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// =============================================================================
// ANALYTICS
// =============================================================================

func TestAPI_TrendValidatesDays(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, days := range []string{"0", "-1", "366", "abc"} {
		resp, err := http.Get(srv.URL + "/api/analytics/trend?days=" + days)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "days=%s", days)
	}

	resp, err := http.Get(srv.URL + "/api/analytics/trend?days=7")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buckets := decode[[]TrendBucketDTO](t, resp)
	assert.Len(t, buckets, 7)
}

func TestAPI_LowStock(t *testing.T) {
	srv, catalog := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, catalog.Upsert(ctx, inventory.MaterialRecord{
		ID:               "low",
		SKU:              "SKU-low",
		Unit:             inventory.UnitPieces,
		OnHand:           decimal.NewFromInt(2),
		ReorderThreshold: decimal.NewFromInt(5),
	}))
	require.NoError(t, catalog.Upsert(ctx, inventory.MaterialRecord{
		ID:               "fine",
		SKU:              "SKU-fine",
		Unit:             inventory.UnitPieces,
		OnHand:           decimal.NewFromInt(50),
		ReorderThreshold: decimal.NewFromInt(5),
	}))

	resp, err := http.Get(srv.URL + "/api/analytics/low-stock")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	items := decode[[]LowStockItemDTO](t, resp)
	require.Len(t, items, 1)
	assert.Equal(t, "low", items[0].Material.ID)
	assert.Equal(t, "2", items[0].Available)
}
