/*
handlers_test.go - HTTP-level tests for the API surface

Tests for:
- Student CRUD and validation failures
- Settlement preview/process routes
- Bed-switch error mapping (404/409/400)
- Scenario loading
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hostel-engine/billing"
	memstore "github.com/warp/hostel-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(memstore.NewTxMemory())
	return NewRouter(h, []string{"*"}), h
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// seedViaAPI drives the same requests a back-office client would issue:
// bed, student, fee component, and payments.
func seedViaAPI(t *testing.T, router http.Handler) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/beds", CreateBedRequest{
		ID: "bed-1", RoomID: "room-1", HostelID: "hostel-main", Rate: 15000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/students", CreateStudentRequest{
		ID: "s1", Name: "Asha Verma", HostelID: "hostel-main",
		RoomID: "room-1", BedID: "bed-1", EnrollmentDate: "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/students/s1/fees", CreateFeeComponentRequest{
		FeeType: "BASE_MONTHLY", Amount: 15000, EffectiveFrom: "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, month := range []string{"2024-01", "2024-02"} {
		rec = doJSON(t, router, http.MethodPost, "/api/students/s1/payments", CreatePaymentRequest{
			Amount: 15000, PaymentType: "ADVANCE",
			PaymentDate: month + "-15", MonthCovered: month,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

// =============================================================================
// STUDENT ROUTES
// =============================================================================

func TestAPI_CreateAndGetStudent(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/students", CreateStudentRequest{
		ID: "s1", Name: "Asha Verma", HostelID: "hostel-main", EnrollmentDate: "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/students/s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[StudentDTO](t, rec)
	assert.Equal(t, "Asha Verma", dto.Name)
	assert.Equal(t, "2024-01-15", dto.EnrollmentDate)
	assert.Equal(t, "ACTIVE", dto.Status)
}

func TestAPI_GetStudent_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/students/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateStudent_ValidationFailure(t *testing.T) {
	// Missing required name
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/students", CreateStudentRequest{
		ID: "s1", HostelID: "hostel-main",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Validation failed", errResp.Error)
}

func TestAPI_MonthlyFeeBreakdown(t *testing.T) {
	router, _ := newTestRouter(t)
	seedViaAPI(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/students/s1/fees", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fee := decodeBody[MonthlyFeeDTO](t, rec)
	assert.Equal(t, float64(15000), fee.Total)
	require.Len(t, fee.Items, 1)
	assert.Equal(t, "BASE_MONTHLY", fee.Items[0].Type)
}

// =============================================================================
// SETTLEMENT ROUTES
// =============================================================================

func TestAPI_SettlementPreviewAndProcess(t *testing.T) {
	router, h := newTestRouter(t)
	seedViaAPI(t, router)

	// Preview: read-only, repeated calls identical
	rec := doJSON(t, router, http.MethodGet,
		"/api/students/s1/settlement/preview?checkout_date=2024-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	preview := decodeBody[SettlementDTO](t, rec)
	assert.Equal(t, "REFUND", preview.Type)
	assert.InDelta(t, 1935.48, preview.RefundDue, 0.001)
	assert.Equal(t, 56, preview.TotalDaysStayed)
	assert.Len(t, preview.UsageBreakdown, 3)

	// Process: materializes payment + ledger entry, checks the student out
	rec = doJSON(t, router, http.MethodPost, "/api/students/s1/settlement", ProcessSettlementRequest{
		CheckoutDate: "2024-03-10", Notes: "end of term",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	processed := decodeBody[ProcessSettlementResponse](t, rec)
	assert.NotEmpty(t, processed.PaymentID)
	assert.NotEmpty(t, processed.LedgerEntryID)

	student, err := h.Store.GetStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StudentCheckedOut, student.Status)

	// Ledger route shows the settlement adjustment
	rec = doJSON(t, router, http.MethodGet, "/api/students/s1/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]LedgerEntryDTO](t, rec)
	require.Len(t, entries, 3, "two payment credits plus the settlement adjustment")
	assert.Equal(t, "ADJUSTMENT", entries[2].Type)
}

func TestAPI_SettlementPreview_BadDateRange(t *testing.T) {
	router, _ := newTestRouter(t)
	seedViaAPI(t, router)

	rec := doJSON(t, router, http.MethodGet,
		"/api/students/s1/settlement/preview?checkout_date=2024-01-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// BED-SWITCH ROUTES
// =============================================================================

func TestAPI_BedSwitch_ErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t)
	seedViaAPI(t, router)

	// Same bed -> 409
	rec := doJSON(t, router, http.MethodPost, "/api/students/s1/bed-switch", BedSwitchRequest{
		NewBedID: "bed-1", EffectiveDate: "2024-02-01",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown bed -> 404
	rec = doJSON(t, router, http.MethodPost, "/api/students/s1/bed-switch", BedSwitchRequest{
		NewBedID: "bed-z", EffectiveDate: "2024-02-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown student -> 404
	rec = doJSON(t, router, http.MethodPost, "/api/students/ghost/bed-switch", BedSwitchRequest{
		NewBedID: "bed-1", EffectiveDate: "2024-02-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_BedSwitch_Success(t *testing.T) {
	router, _ := newTestRouter(t)
	seedViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/beds", CreateBedRequest{
		ID: "bed-2", RoomID: "room-2", HostelID: "hostel-main", Rate: 17000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/students/s1/bed-switch", BedSwitchRequest{
		NewBedID: "bed-2", EffectiveDate: "2024-02-01", Reason: "upgrade",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[SwitchResultDTO](t, rec)
	assert.True(t, result.RateChanged)
	assert.InDelta(t, 2000, result.RateDifference, 0.001)
	assert.NotEmpty(t, result.LedgerEntryID)
	assert.Equal(t, "bed-2", result.NewBedID)
}

// =============================================================================
// SCENARIO ROUTES
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.NotEmpty(t, list)

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ID: "leap-year-refund"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	students := decodeBody[[]StudentDTO](t, rec)
	require.Len(t, students, 1)

	// The seeded scenario previews to a refund
	path := fmt.Sprintf("/api/students/%s/settlement/preview?checkout_date=2024-03-10", students[0].ID)
	rec = doJSON(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeBody[SettlementDTO](t, rec)
	assert.Equal(t, "REFUND", preview.Type)

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
