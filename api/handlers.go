/*
handlers.go - HTTP API handlers for the hostel billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, input validation, and delegates to domain logic.

ENDPOINTS:
  Students:
    GET    /api/students                        List all students
    POST   /api/students                        Register student
    GET    /api/students/{id}                   Get student details
    GET    /api/students/{id}/fees              Resolved monthly fee
    POST   /api/students/{id}/fees              Add fee component
    GET    /api/students/{id}/balance           Net ledger balance
    GET    /api/students/{id}/ledger            Full ledger history
    POST   /api/students/{id}/payments          Record completed payment
    GET    /api/students/{id}/settlement/preview Calculate settlement (dry run)
    POST   /api/students/{id}/settlement        Process settlement
    POST   /api/students/{id}/bed-switch       Switch bed

  Beds:
    POST   /api/beds                            Register bed
    GET    /api/beds/{id}                       Get bed details

  Ledger:
    POST   /api/ledger/{id}/reverse             Reverse an entry

  Scenarios:
    GET    /api/scenarios                       List demo scenarios
    POST   /api/scenarios/load                  Load a demo scenario

ERROR HANDLING:
  Domain errors are classified via billing.IsNotFound / billing.IsClientError:
  - 404: missing student/bed/entry
  - 409: same-bed or unavailable-bed switch preconditions
  - 400: validation errors, invalid dates, unusable fee configuration
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/hostel-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      billing.TxStore
	Settlement *billing.SettlementEngine
	Switcher   *billing.BedSwitcher
	Ledger     *billing.Ledger
	Fees       *billing.FeeResolver

	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store billing.TxStore) *Handler {
	return &Handler{
		Store:      store,
		Settlement: billing.NewSettlementEngine(store, nil),
		Switcher:   billing.NewBedSwitcher(store, nil),
		Ledger:     billing.NewLedger(store),
		Fees:       billing.NewFeeResolver(store),
		validate:   validator.New(),
	}
}

// decodeAndValidate decodes the JSON body into req and runs struct validation.
// Writes the error response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	student, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*student))
}

// CreateStudent registers a new student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	student := billing.Student{
		ID:        billing.StudentID(req.ID),
		Name:      req.Name,
		HostelID:  billing.HostelID(req.HostelID),
		RoomID:    billing.RoomID(req.RoomID),
		BedID:     billing.BedID(req.BedID),
		Status:    billing.StudentActive,
		CreatedAt: time.Now().UTC(),
	}
	if req.EnrollmentDate != "" {
		d, err := billing.ParseDate(req.EnrollmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid enrollment_date format (use YYYY-MM-DD)", err)
			return
		}
		student.EnrollmentDate = &d
	}

	if err := h.Store.SaveStudent(r.Context(), student); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(student))
}

// =============================================================================
// FEE CONFIGURATION HANDLERS
// =============================================================================

// GetMonthlyFee returns the resolved monthly fee with itemized breakdown.
func (h *Handler) GetMonthlyFee(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	fee, err := h.Fees.ResolveMonthlyFee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to resolve monthly fee", err)
		return
	}

	dto := MonthlyFeeDTO{
		StudentID: string(fee.StudentID),
		Total:     fee.Total.Float64(),
	}
	for _, item := range fee.Items {
		dto.Items = append(dto.Items, FeeLineItemDTO{
			Type:        string(item.Type),
			Description: item.Description,
			Amount:      item.Amount.Float64(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// AddFeeComponent attaches a fee component to a student.
func (h *Handler) AddFeeComponent(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	var req CreateFeeComponentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	effectiveFrom, err := billing.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from format (use YYYY-MM-DD)", err)
		return
	}

	student, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}

	fc := billing.FeeComponent{
		ID:            uuid.NewString(),
		StudentID:     id,
		FeeType:       billing.FeeType(req.FeeType),
		Amount:        billing.NewMoney(req.Amount),
		EffectiveFrom: effectiveFrom,
		IsActive:      true,
		Notes:         req.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Store.CreateFeeComponent(r.Context(), fc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create fee component", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": fc.ID})
}

// =============================================================================
// LEDGER AND PAYMENT HANDLERS
// =============================================================================

// GetBalance returns the student's net ledger position.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	balance, err := h.Ledger.Balance(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// GetLedger returns the student's full entry history, reversed included.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	entries, err := h.Ledger.Entries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPayment stores a completed payment for a student.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	var req CreatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	paymentDate, err := billing.ParseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
		return
	}

	student, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}

	payment := billing.Payment{
		ID:           billing.PaymentID(uuid.NewString()),
		StudentID:    id,
		HostelID:     student.HostelID,
		Amount:       billing.NewMoney(req.Amount),
		Type:         billing.PaymentType(req.PaymentType),
		PaymentDate:  paymentDate,
		MonthCovered: req.MonthCovered,
		Status:       billing.PaymentCompleted,
		Notes:        req.Notes,
		CreatedAt:    time.Now().UTC(),
	}

	// The payment row and its ledger credit are one business fact.
	err = h.Store.WithTx(r.Context(), func(s billing.Store) error {
		if err := s.CreatePayment(r.Context(), payment); err != nil {
			return err
		}
		_, err := billing.NewLedger(s).Append(r.Context(), billing.LedgerEntry{
			StudentID:   id,
			HostelID:    student.HostelID,
			Date:        paymentDate,
			Type:        billing.EntryPayment,
			Credit:      payment.Amount,
			Description: paymentDescription(payment),
		})
		return err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(payment.ID)})
}

func paymentDescription(p billing.Payment) string {
	if p.MonthCovered != "" {
		return fmt.Sprintf("Payment received (%s, %s)", p.Type, p.MonthCovered)
	}
	return fmt.Sprintf("Payment received (%s)", p.Type)
}

// ReverseEntry flags a ledger entry as reversed.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id := billing.EntryID(chi.URLParam(r, "id"))

	if err := h.Ledger.Reverse(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to reverse ledger entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": string(id), "status": "reversed"})
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// PreviewSettlement calculates the settlement without persisting anything.
// GET /api/students/{id}/settlement/preview?checkout_date=YYYY-MM-DD
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	checkoutDate, err := billing.ParseDate(r.URL.Query().Get("checkout_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkout_date (use YYYY-MM-DD)", err)
		return
	}

	settlement, err := h.Settlement.Calculate(r.Context(), id, checkoutDate)
	if err != nil {
		writeDomainError(w, "Failed to calculate settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(settlement))
}

// ProcessSettlement materializes the checkout settlement.
func (h *Handler) ProcessSettlement(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	var req ProcessSettlementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	checkoutDate, err := billing.ParseDate(req.CheckoutDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkout_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Settlement.Process(r.Context(), id, checkoutDate, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to process settlement", err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessSettlementResponse{
		Settlement:    toSettlementDTO(result.Settlement),
		PaymentID:     string(result.PaymentID),
		LedgerEntryID: string(result.LedgerEntryID),
		Message:       result.Message,
	})
}

// =============================================================================
// BED HANDLERS
// =============================================================================

// CreateBed registers a bed.
func (h *Handler) CreateBed(w http.ResponseWriter, r *http.Request) {
	var req CreateBedRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	status := billing.BedStatus(req.Status)
	if status == "" {
		status = billing.BedAvailable
	}
	bed := billing.Bed{
		ID:       billing.BedID(req.ID),
		RoomID:   billing.RoomID(req.RoomID),
		HostelID: billing.HostelID(req.HostelID),
		Rate:     billing.NewMoney(req.Rate),
		Status:   status,
	}
	if err := h.Store.SaveBed(r.Context(), bed); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create bed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBedDTO(bed))
}

// GetBed returns a single bed.
func (h *Handler) GetBed(w http.ResponseWriter, r *http.Request) {
	id := billing.BedID(chi.URLParam(r, "id"))

	bed, err := h.Store.GetBed(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bed", err)
		return
	}
	if bed == nil {
		writeError(w, http.StatusNotFound, "Bed not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBedDTO(*bed))
}

// SwitchBed moves a student to another bed with rate adjustment.
func (h *Handler) SwitchBed(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "id"))

	var req BedSwitchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	effectiveDate, err := billing.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Switcher.Switch(r.Context(), id, billing.BedID(req.NewBedID), effectiveDate, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to switch bed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSwitchResultDTO(result))
}

func toBedDTO(b billing.Bed) BedDTO {
	return BedDTO{
		ID:         string(b.ID),
		RoomID:     string(b.RoomID),
		HostelID:   string(b.HostelID),
		Rate:       b.Rate.Float64(),
		Status:     string(b.Status),
		OccupantID: string(b.OccupantID),
	}
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

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrSameBed) || errors.Is(err, billing.ErrBedNotAvailable):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
