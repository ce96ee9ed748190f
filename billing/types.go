/*
Package billing provides the hostel billing settlement and ledger
reconciliation engine.

PURPOSE:
  This package contains the core types and algorithms for hostel billing:
  fee configuration resolution, prorated usage calculation, double-entry
  ledger balance computation, checkout settlement, and mid-cycle rate
  adjustment on bed switch.

KEY CONCEPTS IN THIS FILE (types.go):
  - FeeComponent: One line of a student's monthly fee configuration
  - LedgerEntry: An immutable debit/credit movement against a student account
  - Payment: A money movement owned by the payments collaborator
  - UsageCalculation: A derived per-month proration segment (never persisted)
  - CheckoutSettlement: The derived reconciliation of payments vs usage

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified, only flagged reversed
  2. Precision: Money wraps decimal.Decimal; rounding only at emission
  3. Purity: Usage and settlement calculations are pure given store state
  4. Atomicity: All multi-entity mutations run inside one unit of work

SEE ALSO:
  - fees.go:       Fee Configuration Resolver
  - usage.go:      Prorated Usage Calculator
  - ledger.go:     Ledger Accessor
  - settlement.go: Checkout Settlement Engine
  - bedswitch.go:  Bed-Switch Rate Adjustment
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type HostelID string
type RoomID string
type BedID string
type EntryID string
type PaymentID string

// =============================================================================
// FEE CONFIGURATION
// =============================================================================

type FeeType string

const (
	FeeBaseMonthly FeeType = "BASE_MONTHLY"
	FeeLaundry     FeeType = "LAUNDRY"
	FeeFood        FeeType = "FOOD"
	FeeUtilities   FeeType = "UTILITIES"
	FeeMaintenance FeeType = "MAINTENANCE"
	FeeAdditional  FeeType = "ADDITIONAL"
)

// FeeComponent is one line of a student's fee configuration.
//
// INVARIANT: at most one active component per (StudentID, FeeType), except
// FeeAdditional which may have multiple simultaneously-active entries (one
// per ad-hoc charge). Superseded components are deactivated by setting
// EffectiveTo, never deleted.
type FeeComponent struct {
	ID            string
	StudentID     StudentID
	FeeType       FeeType
	Amount        Money
	EffectiveFrom Date
	EffectiveTo   *Date
	IsActive      bool
	Notes         string
	CreatedAt     time.Time
}

// FeeLineItem is one line of an itemized monthly fee breakdown.
type FeeLineItem struct {
	Type        FeeType
	Description string
	Amount      Money
}

// MonthlyFee is the aggregated, currently-active fee configuration of a
// student. Total is the canonical monthly fee used by every downstream
// calculation.
type MonthlyFee struct {
	StudentID StudentID
	Total     Money
	Items     []FeeLineItem
}

// =============================================================================
// LEDGER ENTRY - Immutable debit/credit movement
// =============================================================================

type EntryType string

const (
	EntryInvoice    EntryType = "INVOICE"
	EntryPayment    EntryType = "PAYMENT"
	EntryAdjustment EntryType = "ADJUSTMENT"
	EntryRefund     EntryType = "REFUND"
)

// LedgerEntry records a single-direction movement against a student account.
//
// INVARIANTS:
//   - Exactly one of Debit/Credit is non-zero
//   - Entries are append-only; IsReversed is the only mutable field
//   - Sequence increases monotonically per hostel (assigned by the store)
type LedgerEntry struct {
	ID          EntryID
	StudentID   StudentID
	HostelID    HostelID
	Date        Date
	Type        EntryType
	Debit       Money
	Credit      Money
	Description string
	IsReversed  bool
	Sequence    int64
	CreatedAt   time.Time
}

// =============================================================================
// BALANCE - Derived from non-reversed ledger entries
// =============================================================================

type BalanceDirection string

const (
	DirectionDebit  BalanceDirection = "Dr" // amount owed by student
	DirectionCredit BalanceDirection = "Cr" // student holds credit/advance
)

// Balance is a student's net ledger position: Net = sum(debit) - sum(credit)
// over non-reversed entries. Amount is the absolute value of Net, paired
// with the direction it points.
type Balance struct {
	StudentID StudentID
	Net       Money
	Amount    Money
	Direction BalanceDirection
}

// =============================================================================
// PAYMENT - Owned by the payments collaborator
// =============================================================================

type PaymentType string

const (
	PaymentAdvance    PaymentType = "ADVANCE"
	PaymentRegular    PaymentType = "REGULAR"
	PaymentRefund     PaymentType = "REFUND"
	PaymentSettlement PaymentType = "SETTLEMENT"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment is a money movement. The engine only reads COMPLETED payments and
// writes REFUND/SETTLEMENT rows during checkout.
type Payment struct {
	ID           PaymentID
	StudentID    StudentID
	HostelID     HostelID
	Amount       Money
	Type         PaymentType
	PaymentDate  Date
	MonthCovered string // YYYY-MM, empty for settlement rows
	Status       PaymentStatus
	Notes        string
	CreatedAt    time.Time
}

// =============================================================================
// STUDENT, BED, OCCUPANCY - External collaborator records
// =============================================================================

type StudentStatus string

const (
	StudentActive     StudentStatus = "ACTIVE"
	StudentCheckedOut StudentStatus = "CHECKED_OUT"
	StudentInactive   StudentStatus = "INACTIVE"
)

type Student struct {
	ID             StudentID
	Name           string
	HostelID       HostelID
	RoomID         RoomID
	BedID          BedID
	EnrollmentDate *Date
	Status         StudentStatus
	CreatedAt      time.Time
}

type BedStatus string

const (
	BedAvailable   BedStatus = "AVAILABLE"
	BedOccupied    BedStatus = "OCCUPIED"
	BedMaintenance BedStatus = "MAINTENANCE"
)

type Bed struct {
	ID         BedID
	RoomID     RoomID
	HostelID   HostelID
	Rate       Money // monthly base rate
	Status     BedStatus
	OccupantID StudentID // empty unless occupied
}

// RoomOccupancy is the open/closed record of a student occupying a bed.
type RoomOccupancy struct {
	ID        string
	RoomID    RoomID
	BedID     BedID
	StudentID StudentID
	From      Date
	To        *Date // nil while open
}

// =============================================================================
// USAGE CALCULATION - Derived per-month proration segment
// =============================================================================

// Period is an inclusive date interval.
type Period struct {
	Start Date
	End   Date
}

func (p Period) String() string { return "[" + p.Start.String() + ", " + p.End.String() + "]" }

// UsageCalculation is one calendar-month segment of prorated usage.
// Produced fresh on every calculation - never cached or persisted, since it
// is a pure function of (enrollmentDate, endDate, monthlyFee).
type UsageCalculation struct {
	Month       string // YYYY-MM
	DaysInMonth int
	DaysUsed    int
	DailyRate   decimal.Decimal // full precision, no rounding
	Amount      Money           // rounded to 2dp at emission
	Period      Period
}

// =============================================================================
// CHECKOUT SETTLEMENT - Derived reconciliation
// =============================================================================

type SettlementType string

const (
	SettlementBalanced   SettlementType = "BALANCED"
	SettlementRefund     SettlementType = "REFUND"
	SettlementAdditional SettlementType = "ADDITIONAL_PAYMENT"
)

// CheckoutSettlement aggregates prorated usage against completed payments.
// Exactly one SettlementType holds for any input; Amount carries the value
// of the non-zero side (zero when balanced).
type CheckoutSettlement struct {
	StudentID         StudentID
	HostelID          HostelID
	EnrollmentDate    Date
	CheckoutDate      Date
	MonthlyFee        Money
	TotalDaysStayed   int
	TotalPaymentsMade Money
	TotalActualUsage  Money
	NetSettlement     Money
	RefundDue         Money
	AdditionalDue     Money
	Type              SettlementType
	Amount            Money
	Summary           string
	UsageBreakdown    []UsageCalculation
}

// ProcessResult is the outcome of materializing a settlement into Payment
// and LedgerEntry rows. PaymentID/LedgerEntryID are empty when balanced.
type ProcessResult struct {
	Settlement    *CheckoutSettlement
	PaymentID     PaymentID
	LedgerEntryID EntryID
	Message       string
}

// =============================================================================
// BED SWITCH - Rate adjustment result
// =============================================================================

// SwitchResult records a completed bed switch: the rate movement, the
// fee re-dating, and the before/after balance snapshot kept for audit.
type SwitchResult struct {
	StudentID         StudentID
	OldBedID          BedID
	NewBedID          BedID
	OldRoomID         RoomID
	NewRoomID         RoomID
	EffectiveDate     Date
	OldRate           Money
	NewRate           Money
	RateDifference    Money
	RateChanged       bool
	LedgerEntryID     EntryID // empty when rate unchanged
	OldBalance        Balance
	NewBalance        Balance
	AdvanceAdjustment Money // OldBalance.Net - NewBalance.Net
}
