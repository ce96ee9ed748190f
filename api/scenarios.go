/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates students, beds, fee
	components, and payments that demonstrate specific engine features.

AVAILABLE SCENARIOS:

	leap-year-refund:  Mid-month enrollment spanning a leap February,
	                   advance payments exceed prorated usage (refund)
	underpaid-stay:    Partial payments against a multi-component fee
	                   (additional payment due at checkout)
	bed-switch:        Active student ready for a mid-cycle switch to a
	                   higher-rate bed

HOW SCENARIOS WORK:
 1. Register beds and a student (SaveStudent/SaveBed upsert, so reloading
    a scenario overwrites its own records)
 2. Create fee components
 3. Record completed payments with matching ledger entries

USAGE VIA API:

	POST /api/scenarios/load
	{"id": "leap-year-refund"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: Shared response helpers
  - server.go: Route wiring
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/hostel-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "leap-year-refund",
		Name:        "Leap-Year Refund",
		Description: "Enrolled 2024-01-15, paid two months in advance, checking out 2024-03-10 (refund due)",
	},
	{
		ID:          "underpaid-stay",
		Name:        "Underpaid Stay",
		Description: "Multi-component fee with partial payments (additional payment due)",
	},
	{
		ID:          "bed-switch",
		Name:        "Bed Switch",
		Description: "Active student with an available higher-rate bed to switch into",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the store with the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.ID {
	case "leap-year-refund":
		err = loadLeapYearRefundScenario(ctx, h)
	case "underpaid-stay":
		err = loadUnderpaidStayScenario(ctx, h)
	case "bed-switch":
		err = loadBedSwitchScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadLeapYearRefundScenario: enrollment 2024-01-15, monthly fee 15000,
// two ADVANCE payments of 15000. A settlement preview for 2024-03-10
// shows prorated usage across Jan/Feb(leap)/Mar and a refund.
func loadLeapYearRefundScenario(ctx context.Context, h *Handler) error {
	enrollment := billing.NewDate(2024, time.January, 15)

	if err := h.Store.SaveBed(ctx, billing.Bed{
		ID:         "bed-101-a",
		RoomID:     "room-101",
		HostelID:   "hostel-main",
		Rate:       billing.NewMoneyFromInt(15000),
		Status:     billing.BedOccupied,
		OccupantID: "student-asha",
	}); err != nil {
		return err
	}
	if err := h.Store.SaveStudent(ctx, billing.Student{
		ID:             "student-asha",
		Name:           "Asha Verma",
		HostelID:       "hostel-main",
		RoomID:         "room-101",
		BedID:          "bed-101-a",
		EnrollmentDate: &enrollment,
		Status:         billing.StudentActive,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := h.Store.CreateFeeComponent(ctx, billing.FeeComponent{
		ID:            uuid.NewString(),
		StudentID:     "student-asha",
		FeeType:       billing.FeeBaseMonthly,
		Amount:        billing.NewMoneyFromInt(15000),
		EffectiveFrom: enrollment,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return err
	}

	for i, month := range []string{"2024-01", "2024-02"} {
		if err := seedPayment(ctx, h, "student-asha", "hostel-main",
			billing.NewMoneyFromInt(15000), billing.PaymentAdvance,
			enrollment.AddDays(i), month); err != nil {
			return err
		}
	}
	return nil
}

// loadUnderpaidStayScenario: base 12000 + food 3000 + laundry 500, one
// payment of 10000. Checkout settlement shows an additional payment due.
func loadUnderpaidStayScenario(ctx context.Context, h *Handler) error {
	enrollment := billing.NewDate(2024, time.March, 1)

	if err := h.Store.SaveBed(ctx, billing.Bed{
		ID:         "bed-204-b",
		RoomID:     "room-204",
		HostelID:   "hostel-main",
		Rate:       billing.NewMoneyFromInt(12000),
		Status:     billing.BedOccupied,
		OccupantID: "student-ravi",
	}); err != nil {
		return err
	}
	if err := h.Store.SaveStudent(ctx, billing.Student{
		ID:             "student-ravi",
		Name:           "Ravi Kulkarni",
		HostelID:       "hostel-main",
		RoomID:         "room-204",
		BedID:          "bed-204-b",
		EnrollmentDate: &enrollment,
		Status:         billing.StudentActive,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return err
	}

	components := []struct {
		feeType billing.FeeType
		amount  int
	}{
		{billing.FeeBaseMonthly, 12000},
		{billing.FeeFood, 3000},
		{billing.FeeLaundry, 500},
	}
	for _, c := range components {
		if err := h.Store.CreateFeeComponent(ctx, billing.FeeComponent{
			ID:            uuid.NewString(),
			StudentID:     "student-ravi",
			FeeType:       c.feeType,
			Amount:        billing.NewMoneyFromInt(c.amount),
			EffectiveFrom: enrollment,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}); err != nil {
			return err
		}
	}

	return seedPayment(ctx, h, "student-ravi", "hostel-main",
		billing.NewMoneyFromInt(10000), billing.PaymentRegular, enrollment, "2024-03")
}

// loadBedSwitchScenario: student in an 8000/month bed, a 10000/month bed
// free in the next room. Switching demonstrates fee re-dating and the
// rate-difference ledger adjustment.
func loadBedSwitchScenario(ctx context.Context, h *Handler) error {
	enrollment := billing.NewDate(2024, time.June, 1)

	beds := []billing.Bed{
		{
			ID:         "bed-301-a",
			RoomID:     "room-301",
			HostelID:   "hostel-main",
			Rate:       billing.NewMoneyFromInt(8000),
			Status:     billing.BedOccupied,
			OccupantID: "student-meera",
		},
		{
			ID:       "bed-302-a",
			RoomID:   "room-302",
			HostelID: "hostel-main",
			Rate:     billing.NewMoneyFromInt(10000),
			Status:   billing.BedAvailable,
		},
	}
	for _, b := range beds {
		if err := h.Store.SaveBed(ctx, b); err != nil {
			return err
		}
	}

	if err := h.Store.SaveStudent(ctx, billing.Student{
		ID:             "student-meera",
		Name:           "Meera Joshi",
		HostelID:       "hostel-main",
		RoomID:         "room-301",
		BedID:          "bed-301-a",
		EnrollmentDate: &enrollment,
		Status:         billing.StudentActive,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := h.Store.CreateFeeComponent(ctx, billing.FeeComponent{
		ID:            uuid.NewString(),
		StudentID:     "student-meera",
		FeeType:       billing.FeeBaseMonthly,
		Amount:        billing.NewMoneyFromInt(8000),
		EffectiveFrom: enrollment,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := h.Store.OpenOccupancy(ctx, billing.RoomOccupancy{
		ID:        uuid.NewString(),
		RoomID:    "room-301",
		BedID:     "bed-301-a",
		StudentID: "student-meera",
		From:      enrollment,
	}); err != nil {
		return err
	}

	return seedPayment(ctx, h, "student-meera", "hostel-main",
		billing.NewMoneyFromInt(8000), billing.PaymentAdvance, enrollment, "2024-06")
}

// seedPayment records a completed payment together with its ledger credit,
// the same pairing the payments collaborator produces in production.
func seedPayment(ctx context.Context, h *Handler, studentID billing.StudentID, hostelID billing.HostelID, amount billing.Money, pt billing.PaymentType, date billing.Date, monthCovered string) error {
	if err := h.Store.CreatePayment(ctx, billing.Payment{
		ID:           billing.PaymentID(uuid.NewString()),
		StudentID:    studentID,
		HostelID:     hostelID,
		Amount:       amount,
		Type:         pt,
		PaymentDate:  date,
		MonthCovered: monthCovered,
		Status:       billing.PaymentCompleted,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return err
	}
	_, err := h.Ledger.Append(ctx, billing.LedgerEntry{
		StudentID:   studentID,
		HostelID:    hostelID,
		Date:        date,
		Type:        billing.EntryPayment,
		Credit:      amount,
		Description: fmt.Sprintf("Payment received (%s)", monthCovered),
	})
	return err
}
