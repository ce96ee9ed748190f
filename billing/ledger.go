/*
ledger.go - Ledger Accessor

PURPOSE:
  The single authoritative surface for appending ledger entries and
  computing a student's net balance. Both the settlement engine and
  unrelated billing flows (invoice generation) go through this accessor,
  so there is exactly one balance formula in the system:

    net = sum(debit) - sum(credit)   over non-reversed entries

  Positive net = amount owed by the student (Dr).
  Negative net = student holds credit/advance (Cr).

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted
  2. SHAPE: exactly one of debit/credit is non-zero per entry
  3. REVERSAL: IsReversed excludes an entry from balance computation but
     keeps it in the audit trail

The accessor has no notion of settlement or fee logic - it is a ledger
primitive. Shape validation is the only business rule at this layer.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger is the accessor over a LedgerStore.
type Ledger struct {
	store LedgerStore
}

func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// ValidateEntryShape checks that exactly one of debit/credit is positive
// and neither is negative.
func ValidateEntryShape(e LedgerEntry) error {
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return fmt.Errorf("negative amount on entry: %w", ErrInvalidEntryShape)
	}
	if e.Debit.IsPositive() == e.Credit.IsPositive() {
		return ErrInvalidEntryShape
	}
	return nil
}

// Append validates the entry shape, assigns an ID and timestamp if unset,
// and persists the entry. Sequencing per hostel is the store's job.
func (l *Ledger) Append(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	if err := ValidateEntryShape(e); err != nil {
		return LedgerEntry{}, err
	}
	if e.ID == "" {
		e.ID = EntryID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	stored, err := l.store.AppendEntry(ctx, e)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("appending ledger entry: %w", err)
	}
	return stored, nil
}

// Balance computes the student's net position over non-reversed entries.
func (l *Ledger) Balance(ctx context.Context, studentID StudentID) (Balance, error) {
	debits, credits, err := l.store.SumBalance(ctx, studentID)
	if err != nil {
		return Balance{}, fmt.Errorf("summing balance for %s: %w", studentID, err)
	}
	return balanceFromSums(studentID, debits, credits), nil
}

// Entries returns the full entry history, reversed entries included.
func (l *Ledger) Entries(ctx context.Context, studentID StudentID) ([]LedgerEntry, error) {
	return l.store.ListEntries(ctx, studentID)
}

// Reverse flags an entry as reversed, excluding it from future balance
// computation. The entry itself is never deleted.
func (l *Ledger) Reverse(ctx context.Context, id EntryID) error {
	return l.store.MarkReversed(ctx, id)
}

func balanceFromSums(studentID StudentID, debits, credits Money) Balance {
	net := debits.Sub(credits)
	direction := DirectionDebit
	if net.IsNegative() {
		direction = DirectionCredit
	}
	return Balance{
		StudentID: studentID,
		Net:       net,
		Amount:    net.Abs(),
		Direction: direction,
	}
}
