package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hostel-engine/billing"
	memstore "github.com/warp/hostel-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedActiveStudent registers an active student with a single BASE_MONTHLY
// fee component.
func seedActiveStudent(t *testing.T, store billing.Store, id string, monthlyFee int, enrollment billing.Date) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveStudent(ctx, billing.Student{
		ID:             billing.StudentID(id),
		Name:           "Test Student",
		HostelID:       "hostel-main",
		RoomID:         "room-1",
		BedID:          billing.BedID(id + "-bed"),
		EnrollmentDate: &enrollment,
		Status:         billing.StudentActive,
		CreatedAt:      time.Now().UTC(),
	}))
	require.NoError(t, store.CreateFeeComponent(ctx, billing.FeeComponent{
		ID:            id + "-base",
		StudentID:     billing.StudentID(id),
		FeeType:       billing.FeeBaseMonthly,
		Amount:        billing.NewMoneyFromInt(monthlyFee),
		EffectiveFrom: enrollment,
		IsActive:      true,
	}))
}

func seedCompletedPayment(t *testing.T, store billing.Store, id string, amount billing.Money, date billing.Date) {
	t.Helper()
	require.NoError(t, store.CreatePayment(context.Background(), billing.Payment{
		ID:          billing.PaymentID(id + "-" + date.String()),
		StudentID:   billing.StudentID(id),
		HostelID:    "hostel-main",
		Amount:      amount,
		Type:        billing.PaymentAdvance,
		PaymentDate: date,
		Status:      billing.PaymentCompleted,
	}))
}

var (
	enrollJan15   = billing.NewDate(2024, time.January, 15)
	checkoutMar10 = billing.NewDate(2024, time.March, 10)
)

// seedLeapYearStay: enrollment 2024-01-15 at 15000/month with two advance
// payments of 15000. Usage through 2024-03-10 totals 28064.52.
func seedLeapYearStay(t *testing.T, store billing.Store, id string) {
	t.Helper()
	seedActiveStudent(t, store, id, 15000, enrollJan15)
	seedCompletedPayment(t, store, id, billing.NewMoneyFromInt(15000), enrollJan15)
	seedCompletedPayment(t, store, id, billing.NewMoneyFromInt(15000), billing.NewDate(2024, time.February, 1))
}

// =============================================================================
// CALCULATE TESTS
// =============================================================================

func TestSettlement_Calculate_Refund(t *testing.T) {
	// GIVEN: 30000 paid against a Jan 15 - Mar 10 stay costing 28064.52
	// WHEN: Calculating the settlement
	// THEN: REFUND of 1935.48

	store := memstore.NewTxMemory()
	seedLeapYearStay(t, store, "s1")
	engine := billing.NewSettlementEngine(store, nil)

	s, err := engine.Calculate(context.Background(), "s1", checkoutMar10)
	require.NoError(t, err)

	assert.Equal(t, billing.SettlementRefund, s.Type)
	assert.Equal(t, "30000.00", s.TotalPaymentsMade.String())
	assert.Equal(t, "28064.52", s.TotalActualUsage.String())
	assert.Equal(t, "1935.48", s.RefundDue.String())
	assert.Equal(t, "1935.48", s.Amount.String())
	assert.True(t, s.AdditionalDue.IsZero())
	assert.Equal(t, 56, s.TotalDaysStayed)
	require.Len(t, s.UsageBreakdown, 3)
}

func TestSettlement_Calculate_AdditionalPayment(t *testing.T) {
	// GIVEN: Only 10000 paid against the same 28064.52 stay
	// WHEN: Calculating the settlement
	// THEN: ADDITIONAL_PAYMENT of 18064.52

	store := memstore.NewTxMemory()
	seedActiveStudent(t, store, "s1", 15000, enrollJan15)
	seedCompletedPayment(t, store, "s1", billing.NewMoneyFromInt(10000), enrollJan15)
	engine := billing.NewSettlementEngine(store, nil)

	s, err := engine.Calculate(context.Background(), "s1", checkoutMar10)
	require.NoError(t, err)

	assert.Equal(t, billing.SettlementAdditional, s.Type)
	assert.Equal(t, "18064.52", s.AdditionalDue.String())
	assert.Equal(t, "18064.52", s.Amount.String())
	assert.True(t, s.RefundDue.IsZero())
	assert.Equal(t, "-18064.52", s.NetSettlement.String())
}

func TestSettlement_Calculate_Balanced(t *testing.T) {
	// GIVEN: Payments exactly matching prorated usage
	// WHEN: Calculating the settlement
	// THEN: BALANCED with zero amount

	store := memstore.NewTxMemory()
	seedActiveStudent(t, store, "s1", 15000, enrollJan15)
	seedCompletedPayment(t, store, "s1", billing.MustParseMoney("28064.52"), enrollJan15)
	engine := billing.NewSettlementEngine(store, nil)

	s, err := engine.Calculate(context.Background(), "s1", checkoutMar10)
	require.NoError(t, err)

	assert.Equal(t, billing.SettlementBalanced, s.Type)
	assert.True(t, s.Amount.IsZero())
	assert.True(t, s.RefundDue.IsZero())
	assert.True(t, s.AdditionalDue.IsZero())
}

func TestSettlement_Calculate_EpsilonAbsorbsRoundingResidue(t *testing.T) {
	// GIVEN: Payments within half a minor unit of the usage total
	// WHEN: Calculating the settlement
	// THEN: BALANCED — residue below 0.01 is not chased

	store := memstore.NewTxMemory()
	seedActiveStudent(t, store, "s1", 15000, enrollJan15)
	seedCompletedPayment(t, store, "s1", billing.MustParseMoney("28064.525"), enrollJan15)
	engine := billing.NewSettlementEngine(store, nil)

	s, err := engine.Calculate(context.Background(), "s1", checkoutMar10)
	require.NoError(t, err)

	assert.Equal(t, billing.SettlementBalanced, s.Type)
}

func TestSettlement_Calculate_ExhaustiveClassification(t *testing.T) {
	// GIVEN: A spread of payment totals around the usage total
	// WHEN: Calculating each settlement
	// THEN: Exactly one settlement type holds and the non-zero side equals
	//       |netSettlement|

	payments := []string{"0.00", "10000.00", "28064.52", "28064.53", "30000.00", "100000.00"}

	for _, paid := range payments {
		store := memstore.NewTxMemory()
		seedActiveStudent(t, store, "s1", 15000, enrollJan15)
		if paid != "0.00" {
			seedCompletedPayment(t, store, "s1", billing.MustParseMoney(paid), enrollJan15)
		}

		s, err := billing.NewSettlementEngine(store, nil).Calculate(context.Background(), "s1", checkoutMar10)
		require.NoError(t, err, "paid %s", paid)

		switch s.Type {
		case billing.SettlementBalanced:
			assert.True(t, s.RefundDue.IsZero() && s.AdditionalDue.IsZero(), "paid %s", paid)
		case billing.SettlementRefund:
			assert.True(t, s.RefundDue.Equal(s.NetSettlement.Abs()), "paid %s", paid)
			assert.True(t, s.AdditionalDue.IsZero(), "paid %s", paid)
		case billing.SettlementAdditional:
			assert.True(t, s.AdditionalDue.Equal(s.NetSettlement.Abs()), "paid %s", paid)
			assert.True(t, s.RefundDue.IsZero(), "paid %s", paid)
		default:
			t.Fatalf("unclassified settlement for paid %s", paid)
		}
	}
}

func TestSettlement_Calculate_Pure(t *testing.T) {
	// GIVEN: Unchanged ledger/payment state
	// WHEN: Calculating the settlement twice
	// THEN: Results are identical

	store := memstore.NewTxMemory()
	seedLeapYearStay(t, store, "s1")
	engine := billing.NewSettlementEngine(store, nil)
	ctx := context.Background()

	first, err := engine.Calculate(ctx, "s1", checkoutMar10)
	require.NoError(t, err)
	second, err := engine.Calculate(ctx, "s1", checkoutMar10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestSettlement_Calculate_ValidationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown student", func(t *testing.T) {
		store := memstore.NewTxMemory()
		_, err := billing.NewSettlementEngine(store, nil).Calculate(ctx, "ghost", checkoutMar10)
		assert.ErrorIs(t, err, billing.ErrStudentNotFound)
	})

	t.Run("missing enrollment date", func(t *testing.T) {
		store := memstore.NewTxMemory()
		require.NoError(t, store.SaveStudent(ctx, billing.Student{
			ID:       "s1",
			HostelID: "hostel-main",
			Status:   billing.StudentActive,
		}))
		_, err := billing.NewSettlementEngine(store, nil).Calculate(ctx, "s1", checkoutMar10)
		assert.ErrorIs(t, err, billing.ErrMissingEnrollmentDate)
	})

	t.Run("checkout before enrollment", func(t *testing.T) {
		store := memstore.NewTxMemory()
		seedActiveStudent(t, store, "s1", 15000, enrollJan15)
		_, err := billing.NewSettlementEngine(store, nil).Calculate(ctx, "s1", enrollJan15.AddDays(-1))
		assert.ErrorIs(t, err, billing.ErrInvalidDateRange)
	})

	t.Run("checkout on enrollment day", func(t *testing.T) {
		store := memstore.NewTxMemory()
		seedActiveStudent(t, store, "s1", 15000, enrollJan15)
		_, err := billing.NewSettlementEngine(store, nil).Calculate(ctx, "s1", enrollJan15)
		assert.ErrorIs(t, err, billing.ErrInvalidDateRange)
	})

	t.Run("no fee configuration", func(t *testing.T) {
		store := memstore.NewTxMemory()
		enrollment := enrollJan15
		require.NoError(t, store.SaveStudent(ctx, billing.Student{
			ID:             "s1",
			HostelID:       "hostel-main",
			EnrollmentDate: &enrollment,
			Status:         billing.StudentActive,
		}))
		_, err := billing.NewSettlementEngine(store, nil).Calculate(ctx, "s1", checkoutMar10)
		assert.ErrorIs(t, err, billing.ErrNoActiveConfiguration)
	})
}

// =============================================================================
// PROCESS TESTS
// =============================================================================

func TestSettlement_Process_Refund(t *testing.T) {
	// GIVEN: A stay with a 1935.48 refund due
	// WHEN: Processing the settlement
	// THEN: One REFUND payment and one credit ADJUSTMENT entry are written,
	//       and the student is marked CHECKED_OUT

	store := memstore.NewTxMemory()
	seedLeapYearStay(t, store, "s1")
	engine := billing.NewSettlementEngine(store, nil)
	ctx := context.Background()

	result, err := engine.Process(ctx, "s1", checkoutMar10, "end of term")
	require.NoError(t, err)

	assert.NotEmpty(t, result.PaymentID)
	assert.NotEmpty(t, result.LedgerEntryID)
	assert.Equal(t, billing.SettlementRefund, result.Settlement.Type)

	payments, err := store.ListCompletedPayments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, payments, 3, "two advances plus the refund row")
	refund := payments[2]
	assert.Equal(t, billing.PaymentRefund, refund.Type)
	assert.Equal(t, "1935.48", refund.Amount.String())

	entries, err := billing.NewLedger(store).Entries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, billing.EntryAdjustment, entries[0].Type)
	assert.Equal(t, "1935.48", entries[0].Credit.String())

	student, err := store.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StudentCheckedOut, student.Status)
}

func TestSettlement_Process_AdditionalPayment(t *testing.T) {
	// GIVEN: An underpaid stay
	// WHEN: Processing the settlement
	// THEN: A SETTLEMENT payment and a debit ADJUSTMENT entry are written

	store := memstore.NewTxMemory()
	seedActiveStudent(t, store, "s1", 15000, enrollJan15)
	seedCompletedPayment(t, store, "s1", billing.NewMoneyFromInt(10000), enrollJan15)
	engine := billing.NewSettlementEngine(store, nil)
	ctx := context.Background()

	result, err := engine.Process(ctx, "s1", checkoutMar10, "")
	require.NoError(t, err)

	payments, err := store.ListCompletedPayments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, billing.PaymentSettlement, payments[1].Type)
	assert.Equal(t, "18064.52", payments[1].Amount.String())

	entries, err := billing.NewLedger(store).Entries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "18064.52", entries[0].Debit.String())
	assert.Equal(t, entries[0].ID, result.LedgerEntryID)
}

func TestSettlement_Process_Balanced_WritesNoRows(t *testing.T) {
	// GIVEN: Payments exactly matching usage
	// WHEN: Processing the settlement
	// THEN: No payment or ledger rows are created; the student is still
	//       checked out

	store := memstore.NewTxMemory()
	seedActiveStudent(t, store, "s1", 15000, enrollJan15)
	seedCompletedPayment(t, store, "s1", billing.MustParseMoney("28064.52"), enrollJan15)
	engine := billing.NewSettlementEngine(store, nil)
	ctx := context.Background()

	result, err := engine.Process(ctx, "s1", checkoutMar10, "")
	require.NoError(t, err)

	assert.Empty(t, result.PaymentID)
	assert.Empty(t, result.LedgerEntryID)
	assert.NotEmpty(t, result.Message)

	payments, err := store.ListCompletedPayments(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, payments, 1, "only the seeded advance")

	entries, err := billing.NewLedger(store).Entries(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	student, err := store.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StudentCheckedOut, student.Status)
}

// =============================================================================
// ATOMICITY TESTS
// =============================================================================

// failingTxStore injects a ledger-append failure inside the unit of work.
type failingTxStore struct {
	*memstore.TxMemory
}

func (f *failingTxStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(s billing.Store) error {
		return fn(&failingAppendView{Store: s})
	})
}

type failingAppendView struct {
	billing.Store
}

func (v *failingAppendView) AppendEntry(context.Context, billing.LedgerEntry) (billing.LedgerEntry, error) {
	return billing.LedgerEntry{}, errors.New("simulated ledger write failure")
}

func TestSettlement_Process_LedgerFailureRollsBackPayment(t *testing.T) {
	// GIVEN: A store that fails the ledger write after the payment write
	// WHEN: Processing a refund settlement
	// THEN: The operation fails and neither the payment row nor the status
	//       change survives

	inner := memstore.NewTxMemory()
	seedLeapYearStay(t, inner, "s1")
	store := &failingTxStore{TxMemory: inner}
	engine := billing.NewSettlementEngine(store, nil)
	ctx := context.Background()

	_, err := engine.Process(ctx, "s1", checkoutMar10, "")
	require.Error(t, err)

	payments, err := inner.ListCompletedPayments(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, payments, 2, "settlement payment rolled back with the ledger write")

	student, err := inner.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StudentActive, student.Status, "checkout status rolled back")
}
