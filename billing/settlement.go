/*
settlement.go - Checkout Settlement Engine

PURPOSE:
  Reconciles, at checkout, the total payments a student has made against
  the total prorated usage of their stay.

    net = totalPaymentsMade - totalActualUsage
    net > 0  -> REFUND of net
    net < 0  -> ADDITIONAL_PAYMENT of -net
    |net| < 0.01 -> BALANCED, nothing owed either way

  Calculate is read-only and pure given store state: it may be called
  repeatedly and returns identical results until a payment or ledger write
  changes the inputs. Process re-runs Calculate and materializes the
  outcome into at most one Payment and one LedgerEntry, atomically.

CONCURRENCY:
  Two concurrent Process calls for the same student would both read the
  payment history and then write, double-counting totalPaymentsMade. A
  per-student mutex serializes them; different students are independent.

SIDE EFFECTS:
  Notification dispatch happens strictly after commit and is best-effort;
  its failure never rolls back or fails the settlement.
*/
package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// settlementEpsilon is the tolerance below which a net settlement is
// treated as balanced, absorbing 2dp rounding residue.
var settlementEpsilon = MustParseMoney("0.01")

// SettlementEngine orchestrates the fee resolver, usage calculator, and
// ledger to produce and materialize checkout settlements.
type SettlementEngine struct {
	store    TxStore
	fees     *FeeResolver
	notifier Notifier

	mu    sync.Mutex
	locks map[StudentID]*sync.Mutex
}

func NewSettlementEngine(store TxStore, notifier Notifier) *SettlementEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SettlementEngine{
		store:    store,
		fees:     NewFeeResolver(store),
		notifier: notifier,
		locks:    make(map[StudentID]*sync.Mutex),
	}
}

// Calculate computes the settlement for a checkout on checkoutDate without
// writing anything. Idempotent: unchanged ledger/payment state yields an
// identical result.
func (e *SettlementEngine) Calculate(ctx context.Context, studentID StudentID, checkoutDate Date) (*CheckoutSettlement, error) {
	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("fetching student %s: %w", studentID, err)
	}
	if student == nil {
		return nil, fmt.Errorf("student %s: %w", studentID, ErrStudentNotFound)
	}
	if student.EnrollmentDate == nil {
		return nil, fmt.Errorf("student %s: %w", studentID, ErrMissingEnrollmentDate)
	}
	enrollment := *student.EnrollmentDate
	// Checkout must be strictly after enrollment; a same-day checkout has
	// no billable interval to reconcile.
	if checkoutDate.BeforeOrEqual(enrollment) {
		return nil, &DateRangeError{Start: enrollment, End: checkoutDate}
	}

	payments, err := e.store.ListCompletedPayments(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for %s: %w", studentID, err)
	}
	var totalPaid Money
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
	}

	fee, err := e.fees.ResolveMonthlyFee(ctx, studentID)
	if err != nil {
		return nil, err
	}

	breakdown, err := ComputeUsage(enrollment, checkoutDate, fee.Total)
	if err != nil {
		return nil, err
	}
	totalUsage, totalDays := TotalUsage(breakdown)

	net := totalPaid.Sub(totalUsage)
	settlement := &CheckoutSettlement{
		StudentID:         studentID,
		HostelID:          student.HostelID,
		EnrollmentDate:    enrollment,
		CheckoutDate:      checkoutDate,
		MonthlyFee:        fee.Total,
		TotalDaysStayed:   totalDays,
		TotalPaymentsMade: totalPaid,
		TotalActualUsage:  totalUsage,
		NetSettlement:     net,
		RefundDue:         net.Max(ZeroMoney()),
		AdditionalDue:     net.Neg().Max(ZeroMoney()),
		UsageBreakdown:    breakdown,
	}

	switch {
	case net.Abs().LessThan(settlementEpsilon):
		settlement.Type = SettlementBalanced
		settlement.Amount = ZeroMoney()
		settlement.Summary = fmt.Sprintf("Account balanced: payments %s cover usage %s for %d days",
			totalPaid, totalUsage, totalDays)
	case net.IsPositive():
		settlement.Type = SettlementRefund
		settlement.Amount = settlement.RefundDue
		settlement.Summary = fmt.Sprintf("Refund due %s: paid %s against usage %s for %d days",
			settlement.RefundDue, totalPaid, totalUsage, totalDays)
	default:
		settlement.Type = SettlementAdditional
		settlement.Amount = settlement.AdditionalDue
		settlement.Summary = fmt.Sprintf("Additional payment due %s: paid %s against usage %s for %d days",
			settlement.AdditionalDue, totalPaid, totalUsage, totalDays)
	}
	return settlement, nil
}

// Process re-runs Calculate and materializes the outcome:
//
//	REFUND:             Payment(REFUND) + LedgerEntry(ADJUSTMENT, credit)
//	ADDITIONAL_PAYMENT: Payment(SETTLEMENT) + LedgerEntry(ADJUSTMENT, debit)
//	BALANCED:           no records, success with a descriptive message
//
// The Payment and LedgerEntry writes are one atomic unit: if either fails,
// neither is persisted. The student is marked CHECKED_OUT in the same
// transaction.
func (e *SettlementEngine) Process(ctx context.Context, studentID StudentID, checkoutDate Date, notes string) (*ProcessResult, error) {
	lock := e.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	settlement, err := e.Calculate(ctx, studentID, checkoutDate)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Settlement: settlement}
	if settlement.Type == SettlementBalanced {
		result.Message = settlement.Summary
		if err := e.store.WithTx(ctx, func(s Store) error {
			return s.SetStudentStatus(ctx, studentID, StudentCheckedOut)
		}); err != nil {
			return nil, fmt.Errorf("processing balanced settlement: %w", err)
		}
		notifyAfterCommit("settlement", func() error {
			return e.notifier.SettlementProcessed(studentID, result)
		})
		return result, nil
	}

	payment := Payment{
		ID:          PaymentID(uuid.NewString()),
		StudentID:   studentID,
		HostelID:    settlement.HostelID,
		Amount:      settlement.Amount,
		PaymentDate: checkoutDate,
		Status:      PaymentCompleted,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	entry := LedgerEntry{
		StudentID: studentID,
		HostelID:  settlement.HostelID,
		Date:      checkoutDate,
		Type:      EntryAdjustment,
	}

	switch settlement.Type {
	case SettlementRefund:
		payment.Type = PaymentRefund
		entry.Credit = settlement.RefundDue
		entry.Description = fmt.Sprintf("Checkout settlement refund (%s)", checkoutDate)
	case SettlementAdditional:
		payment.Type = PaymentSettlement
		entry.Debit = settlement.AdditionalDue
		entry.Description = fmt.Sprintf("Checkout settlement charge (%s)", checkoutDate)
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		if err := s.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("creating settlement payment: %w", err)
		}
		stored, err := NewLedger(s).Append(ctx, entry)
		if err != nil {
			return err
		}
		result.LedgerEntryID = stored.ID
		return s.SetStudentStatus(ctx, studentID, StudentCheckedOut)
	})
	if err != nil {
		return nil, err
	}

	result.PaymentID = payment.ID
	result.Message = settlement.Summary
	notifyAfterCommit("settlement", func() error {
		return e.notifier.SettlementProcessed(studentID, result)
	})
	return result, nil
}

// studentLock returns the serialization mutex for a student.
func (e *SettlementEngine) studentLock(id StudentID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}
