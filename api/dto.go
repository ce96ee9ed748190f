/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the domain
  model from the external contract. Settlement and switch results are
  serialized verbatim from their DTO forms.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 tags; handlers run them through a
  shared *validator.Validate before touching the engine.
*/
package api

import (
	"time"

	"github.com/warp/hostel-engine/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HostelID       string `json:"hostel_id"`
	RoomID         string `json:"room_id,omitempty"`
	BedID          string `json:"bed_id,omitempty"`
	EnrollmentDate string `json:"enrollment_date,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateStudentRequest is the request to register a student.
type CreateStudentRequest struct {
	ID             string `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	HostelID       string `json:"hostel_id" validate:"required"`
	RoomID         string `json:"room_id"`
	BedID          string `json:"bed_id"`
	EnrollmentDate string `json:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
}

// CreateBedRequest is the request to register a bed.
type CreateBedRequest struct {
	ID       string  `json:"id" validate:"required"`
	RoomID   string  `json:"room_id" validate:"required"`
	HostelID string  `json:"hostel_id" validate:"required"`
	Rate     float64 `json:"rate" validate:"required,gt=0"`
	Status   string  `json:"status" validate:"omitempty,oneof=AVAILABLE OCCUPIED MAINTENANCE"`
}

// BedDTO represents a bed.
type BedDTO struct {
	ID         string  `json:"id"`
	RoomID     string  `json:"room_id"`
	HostelID   string  `json:"hostel_id"`
	Rate       float64 `json:"rate"`
	Status     string  `json:"status"`
	OccupantID string  `json:"occupant_id,omitempty"`
}

// CreateFeeComponentRequest adds one fee component to a student.
type CreateFeeComponentRequest struct {
	FeeType       string  `json:"fee_type" validate:"required,oneof=BASE_MONTHLY LAUNDRY FOOD UTILITIES MAINTENANCE ADDITIONAL"`
	Amount        float64 `json:"amount" validate:"required"`
	EffectiveFrom string  `json:"effective_from" validate:"required,datetime=2006-01-02"`
	Notes         string  `json:"notes"`
}

// FeeLineItemDTO is one line of the resolved monthly fee.
type FeeLineItemDTO struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// MonthlyFeeDTO is the aggregated fee configuration.
type MonthlyFeeDTO struct {
	StudentID string           `json:"student_id"`
	Total     float64          `json:"total"`
	Items     []FeeLineItemDTO `json:"items"`
}

// CreatePaymentRequest records a completed payment.
type CreatePaymentRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	PaymentType  string  `json:"payment_type" validate:"required,oneof=ADVANCE REGULAR REFUND SETTLEMENT"`
	PaymentDate  string  `json:"payment_date" validate:"required,datetime=2006-01-02"`
	MonthCovered string  `json:"month_covered" validate:"omitempty,datetime=2006-01"`
	Notes        string  `json:"notes"`
}

// BalanceDTO is a student's net ledger position.
type BalanceDTO struct {
	StudentID string  `json:"student_id"`
	Net       float64 `json:"net"`
	Amount    float64 `json:"amount"`
	Direction string  `json:"direction"`
}

// LedgerEntryDTO represents a ledger entry.
type LedgerEntryDTO struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	HostelID    string  `json:"hostel_id"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
	IsReversed  bool    `json:"is_reversed"`
	Sequence    int64   `json:"sequence"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// UsageCalculationDTO is one prorated month segment.
type UsageCalculationDTO struct {
	Month       string  `json:"month"`
	DaysInMonth int     `json:"days_in_month"`
	DaysUsed    int     `json:"days_used"`
	DailyRate   float64 `json:"daily_rate"`
	Amount      float64 `json:"amount"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
}

// SettlementDTO is the computed checkout settlement.
type SettlementDTO struct {
	StudentID         string                `json:"student_id"`
	EnrollmentDate    string                `json:"enrollment_date"`
	CheckoutDate      string                `json:"checkout_date"`
	MonthlyFee        float64               `json:"monthly_fee"`
	TotalDaysStayed   int                   `json:"total_days_stayed"`
	TotalPaymentsMade float64               `json:"total_payments_made"`
	TotalActualUsage  float64               `json:"total_actual_usage"`
	NetSettlement     float64               `json:"net_settlement"`
	RefundDue         float64               `json:"refund_due"`
	AdditionalDue     float64               `json:"additional_due"`
	Type              string                `json:"type"`
	Amount            float64               `json:"amount"`
	Summary           string                `json:"summary"`
	UsageBreakdown    []UsageCalculationDTO `json:"usage_breakdown"`
}

// ProcessSettlementRequest triggers settlement materialization.
type ProcessSettlementRequest struct {
	CheckoutDate string `json:"checkout_date" validate:"required,datetime=2006-01-02"`
	Notes        string `json:"notes"`
}

// ProcessSettlementResponse is the result of processing a settlement.
type ProcessSettlementResponse struct {
	Settlement    SettlementDTO `json:"settlement"`
	PaymentID     string        `json:"payment_id,omitempty"`
	LedgerEntryID string        `json:"ledger_entry_id,omitempty"`
	Message       string        `json:"message"`
}

// BedSwitchRequest moves a student to another bed.
type BedSwitchRequest struct {
	NewBedID      string `json:"new_bed_id" validate:"required"`
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Reason        string `json:"reason"`
}

// SwitchResultDTO is the outcome of a bed switch.
type SwitchResultDTO struct {
	StudentID         string     `json:"student_id"`
	OldBedID          string     `json:"old_bed_id"`
	NewBedID          string     `json:"new_bed_id"`
	EffectiveDate     string     `json:"effective_date"`
	OldRate           float64    `json:"old_rate"`
	NewRate           float64    `json:"new_rate"`
	RateDifference    float64    `json:"rate_difference"`
	RateChanged       bool       `json:"rate_changed"`
	LedgerEntryID     string     `json:"ledger_entry_id,omitempty"`
	OldBalance        BalanceDTO `json:"old_balance"`
	NewBalance        BalanceDTO `json:"new_balance"`
	AdvanceAdjustment float64    `json:"advance_adjustment"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to seed.
type LoadScenarioRequest struct {
	ID string `json:"id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toStudentDTO(s billing.Student) StudentDTO {
	dto := StudentDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		HostelID:  string(s.HostelID),
		RoomID:    string(s.RoomID),
		BedID:     string(s.BedID),
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if s.EnrollmentDate != nil {
		dto.EnrollmentDate = s.EnrollmentDate.String()
	}
	return dto
}

func toBalanceDTO(b billing.Balance) BalanceDTO {
	return BalanceDTO{
		StudentID: string(b.StudentID),
		Net:       b.Net.Float64(),
		Amount:    b.Amount.Float64(),
		Direction: string(b.Direction),
	}
}

func toLedgerEntryDTO(e billing.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:          string(e.ID),
		StudentID:   string(e.StudentID),
		HostelID:    string(e.HostelID),
		Date:        e.Date.String(),
		Type:        string(e.Type),
		Debit:       e.Debit.Float64(),
		Credit:      e.Credit.Float64(),
		Description: e.Description,
		IsReversed:  e.IsReversed,
		Sequence:    e.Sequence,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toSettlementDTO(s *billing.CheckoutSettlement) SettlementDTO {
	dto := SettlementDTO{
		StudentID:         string(s.StudentID),
		EnrollmentDate:    s.EnrollmentDate.String(),
		CheckoutDate:      s.CheckoutDate.String(),
		MonthlyFee:        s.MonthlyFee.Float64(),
		TotalDaysStayed:   s.TotalDaysStayed,
		TotalPaymentsMade: s.TotalPaymentsMade.Float64(),
		TotalActualUsage:  s.TotalActualUsage.Float64(),
		NetSettlement:     s.NetSettlement.Float64(),
		RefundDue:         s.RefundDue.Float64(),
		AdditionalDue:     s.AdditionalDue.Float64(),
		Type:              string(s.Type),
		Amount:            s.Amount.Float64(),
		Summary:           s.Summary,
	}
	for _, u := range s.UsageBreakdown {
		rate, _ := u.DailyRate.Round(4).Float64()
		dto.UsageBreakdown = append(dto.UsageBreakdown, UsageCalculationDTO{
			Month:       u.Month,
			DaysInMonth: u.DaysInMonth,
			DaysUsed:    u.DaysUsed,
			DailyRate:   rate,
			Amount:      u.Amount.Float64(),
			PeriodStart: u.Period.Start.String(),
			PeriodEnd:   u.Period.End.String(),
		})
	}
	return dto
}

func toSwitchResultDTO(r *billing.SwitchResult) SwitchResultDTO {
	return SwitchResultDTO{
		StudentID:         string(r.StudentID),
		OldBedID:          string(r.OldBedID),
		NewBedID:          string(r.NewBedID),
		EffectiveDate:     r.EffectiveDate.String(),
		OldRate:           r.OldRate.Float64(),
		NewRate:           r.NewRate.Float64(),
		RateDifference:    r.RateDifference.Float64(),
		RateChanged:       r.RateChanged,
		LedgerEntryID:     string(r.LedgerEntryID),
		OldBalance:        toBalanceDTO(r.OldBalance),
		NewBalance:        toBalanceDTO(r.NewBalance),
		AdvanceAdjustment: r.AdvanceAdjustment.Float64(),
	}
}
