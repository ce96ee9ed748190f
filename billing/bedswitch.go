/*
bedswitch.go - Bed-Switch Rate Adjustment

PURPOSE:
  Moves a student to a different bed mid-cycle. When the bed rate changes,
  the student's BASE_MONTHLY fee component is re-dated (old one closed at
  the effective date, new one opened at the new rate) and a ledger
  adjustment for the monthly rate difference is appended: debit when the
  new rate is higher, credit when lower.

ATOMICITY:
  Precondition checks, fee re-dating, the ledger adjustment, bed status
  changes, occupancy records, and the student's room/bed reference are one
  indivisible business fact. Everything, the availability check included,
  runs inside a single unit of work; a failure anywhere rolls the whole
  switch back.

AUDIT:
  The result carries the pre/post balance snapshot and the computed
  advance adjustment so back-office staff can explain the movement later.
*/
package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// rateChangeEpsilon: rate differences below one minor unit are treated as
// unchanged and produce no fee re-dating or ledger movement.
var rateChangeEpsilon = MustParseMoney("0.01")

// BedSwitcher performs mid-stay bed changes with rate adjustment.
type BedSwitcher struct {
	store    TxStore
	notifier Notifier

	mu    sync.Mutex
	locks map[StudentID]*sync.Mutex
}

func NewBedSwitcher(store TxStore, notifier Notifier) *BedSwitcher {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BedSwitcher{
		store:    store,
		notifier: notifier,
		locks:    make(map[StudentID]*sync.Mutex),
	}
}

// Switch moves the student to newBedID effective effectiveDate.
//
// Preconditions: student exists and is active; the target bed exists, is
// available, and differs from the current bed. On a rate change the
// BASE_MONTHLY component is re-dated and an ADJUSTMENT entry appended.
// Preconditions are checked inside the same transaction as the writes, so
// two switches racing for the same bed cannot both observe it AVAILABLE.
// All writes commit together or not at all.
func (b *BedSwitcher) Switch(ctx context.Context, studentID StudentID, newBedID BedID, effectiveDate Date, reason string) (*SwitchResult, error) {
	lock := b.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	var result *SwitchResult
	err := b.store.WithTx(ctx, func(s Store) error {
		student, err := s.GetStudent(ctx, studentID)
		if err != nil {
			return fmt.Errorf("fetching student %s: %w", studentID, err)
		}
		if student == nil {
			return fmt.Errorf("student %s: %w", studentID, ErrStudentNotFound)
		}
		if student.Status != StudentActive {
			return fmt.Errorf("student %s: %w", studentID, ErrStudentInactive)
		}
		if student.BedID == newBedID {
			return fmt.Errorf("student %s, bed %s: %w", studentID, newBedID, ErrSameBed)
		}

		newBed, err := s.GetBed(ctx, newBedID)
		if err != nil {
			return fmt.Errorf("fetching bed %s: %w", newBedID, err)
		}
		if newBed == nil {
			return fmt.Errorf("bed %s: %w", newBedID, ErrBedNotFound)
		}
		if newBed.Status != BedAvailable {
			return &BedUnavailableError{BedID: newBedID, Status: newBed.Status}
		}

		oldBed, err := s.GetBed(ctx, student.BedID)
		if err != nil {
			return fmt.Errorf("fetching bed %s: %w", student.BedID, err)
		}
		if oldBed == nil {
			return fmt.Errorf("bed %s: %w", student.BedID, ErrBedNotFound)
		}

		rateDiff := newBed.Rate.Sub(oldBed.Rate)
		result = &SwitchResult{
			StudentID:      studentID,
			OldBedID:       oldBed.ID,
			NewBedID:       newBed.ID,
			OldRoomID:      oldBed.RoomID,
			NewRoomID:      newBed.RoomID,
			EffectiveDate:  effectiveDate,
			OldRate:        oldBed.Rate,
			NewRate:        newBed.Rate,
			RateDifference: rateDiff,
			RateChanged:    rateDiff.Abs().GreaterOrEqual(rateChangeEpsilon),
		}

		ledger := NewLedger(s)

		debits, credits, err := s.SumBalance(ctx, studentID)
		if err != nil {
			return fmt.Errorf("reading balance before switch: %w", err)
		}
		result.OldBalance = balanceFromSums(studentID, debits, credits)

		if result.RateChanged {
			if err := s.DeactivateFeeComponent(ctx, studentID, FeeBaseMonthly, effectiveDate); err != nil {
				return fmt.Errorf("closing base fee component: %w", err)
			}
			if err := s.CreateFeeComponent(ctx, FeeComponent{
				ID:            uuid.NewString(),
				StudentID:     studentID,
				FeeType:       FeeBaseMonthly,
				Amount:        newBed.Rate,
				EffectiveFrom: effectiveDate,
				IsActive:      true,
				Notes:         switchNote(oldBed.ID, newBed.ID, reason),
				CreatedAt:     time.Now().UTC(),
			}); err != nil {
				return fmt.Errorf("creating base fee component: %w", err)
			}

			entry := LedgerEntry{
				StudentID:   studentID,
				HostelID:    student.HostelID,
				Date:        effectiveDate,
				Type:        EntryAdjustment,
				Description: switchNote(oldBed.ID, newBed.ID, reason),
			}
			if rateDiff.IsPositive() {
				entry.Debit = rateDiff
			} else {
				entry.Credit = rateDiff.Abs()
			}
			stored, err := ledger.Append(ctx, entry)
			if err != nil {
				return err
			}
			result.LedgerEntryID = stored.ID
		}

		// Occupancy reassignment
		if err := s.SetBedStatus(ctx, oldBed.ID, BedAvailable, ""); err != nil {
			return fmt.Errorf("releasing bed %s: %w", oldBed.ID, err)
		}
		if err := s.SetBedStatus(ctx, newBed.ID, BedOccupied, studentID); err != nil {
			return fmt.Errorf("occupying bed %s: %w", newBed.ID, err)
		}
		if err := s.CloseOccupancy(ctx, studentID, effectiveDate); err != nil {
			return fmt.Errorf("closing occupancy: %w", err)
		}
		if err := s.OpenOccupancy(ctx, RoomOccupancy{
			ID:        uuid.NewString(),
			RoomID:    newBed.RoomID,
			BedID:     newBed.ID,
			StudentID: studentID,
			From:      effectiveDate,
		}); err != nil {
			return fmt.Errorf("opening occupancy: %w", err)
		}
		if err := s.UpdateStudentBed(ctx, studentID, newBed.RoomID, newBed.ID); err != nil {
			return fmt.Errorf("updating student bed reference: %w", err)
		}

		debits, credits, err = s.SumBalance(ctx, studentID)
		if err != nil {
			return fmt.Errorf("reading balance after switch: %w", err)
		}
		result.NewBalance = balanceFromSums(studentID, debits, credits)
		result.AdvanceAdjustment = result.OldBalance.Net.Sub(result.NewBalance.Net)
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAfterCommit("bed switch", func() error {
		return b.notifier.BedSwitched(studentID, result)
	})
	return result, nil
}

// studentLock returns the serialization mutex for a student.
func (b *BedSwitcher) studentLock(id StudentID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[id] = lock
	}
	return lock
}

func switchNote(oldBed, newBed BedID, reason string) string {
	note := fmt.Sprintf("Bed switch %s -> %s", oldBed, newBed)
	if reason != "" {
		note += ": " + reason
	}
	return note
}
