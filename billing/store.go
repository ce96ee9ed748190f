/*
store.go - Persistence interfaces for the billing engine

PURPOSE:
  Defines the interface between the engine and the datastore. The engine
  never talks to SQL directly; the settlement and bed-switch operations
  receive a TxStore and run all their writes inside a single unit of work.

KEY INTERFACES:
  StudentStore:   Student directory reads + room/bed reference updates
  FeeStore:       Active fee components, create/deactivate for re-dating
  PaymentStore:   Completed payment history + settlement payment rows
  LedgerStore:    Append-only ledger entries and balance aggregation
  OccupancyStore: Bed status and room-occupancy records
  Store:          All of the above
  TxStore:        Store + WithTx unit-of-work

APPEND-ONLY CONTRACT:
  LedgerStore has no update or delete beyond MarkReversed. Corrections are
  made by appending reversing entries; reversed entries stay in the ledger
  and are excluded from balance aggregation.

ATOMICITY:
  WithTx ensures all-or-nothing semantics. A settlement writes one Payment
  and one LedgerEntry; a bed switch writes fee components, a ledger entry,
  bed statuses, occupancy records, and a student patch. Either everything
  commits or nothing does.

IMPLEMENTATIONS:
  - store/sqlite:        Production SQLite
  - billing/store:       In-memory for tests and dev
*/
package billing

import "context"

// =============================================================================
// COLLABORATOR STORES
// =============================================================================

// StudentStore is the surface the engine needs from the student directory.
type StudentStore interface {
	// GetStudent returns the student or nil if absent.
	GetStudent(ctx context.Context, id StudentID) (*Student, error)

	// SaveStudent inserts or replaces a student record.
	SaveStudent(ctx context.Context, s Student) error

	// UpdateStudentBed patches the student's room/bed reference.
	UpdateStudentBed(ctx context.Context, id StudentID, roomID RoomID, bedID BedID) error

	// SetStudentStatus updates lifecycle status (checkout marks CHECKED_OUT).
	SetStudentStatus(ctx context.Context, id StudentID, status StudentStatus) error

	// ListStudents returns all students, for the back-office listing.
	ListStudents(ctx context.Context) ([]Student, error)
}

// FeeStore holds fee configuration components.
type FeeStore interface {
	// ListActiveFeeComponents returns all currently-active components.
	ListActiveFeeComponents(ctx context.Context, studentID StudentID) ([]FeeComponent, error)

	// CreateFeeComponent inserts a new component.
	CreateFeeComponent(ctx context.Context, fc FeeComponent) error

	// DeactivateFeeComponent closes the active component of the given type:
	// sets IsActive=false and EffectiveTo=effectiveTo. No-op if none active.
	DeactivateFeeComponent(ctx context.Context, studentID StudentID, feeType FeeType, effectiveTo Date) error
}

// PaymentStore holds payment rows. Owned by the payments collaborator; the
// engine reads completed history and writes settlement rows.
type PaymentStore interface {
	// ListCompletedPayments returns payments with status COMPLETED,
	// ordered by payment date.
	ListCompletedPayments(ctx context.Context, studentID StudentID) ([]Payment, error)

	// CreatePayment inserts a payment row.
	CreatePayment(ctx context.Context, p Payment) error
}

// LedgerStore persists ledger entries. Append-only; MarkReversed flips the
// single mutable flag.
type LedgerStore interface {
	// AppendEntry persists an entry, assigning its per-hostel sequence
	// number, and returns the stored entry.
	AppendEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)

	// ListEntries returns all entries for a student in sequence order,
	// reversed entries included.
	ListEntries(ctx context.Context, studentID StudentID) ([]LedgerEntry, error)

	// SumBalance returns total debits and credits over non-reversed entries.
	SumBalance(ctx context.Context, studentID StudentID) (debits, credits Money, err error)

	// MarkReversed flags an entry as reversed. ErrEntryNotFound if absent.
	MarkReversed(ctx context.Context, id EntryID) error
}

// OccupancyStore holds beds and room-occupancy records.
type OccupancyStore interface {
	// GetBed returns the bed or nil if absent.
	GetBed(ctx context.Context, id BedID) (*Bed, error)

	// SaveBed inserts or replaces a bed record.
	SaveBed(ctx context.Context, b Bed) error

	// SetBedStatus updates a bed's status and occupant reference.
	SetBedStatus(ctx context.Context, id BedID, status BedStatus, occupant StudentID) error

	// OpenOccupancy inserts a new open room-occupancy record.
	OpenOccupancy(ctx context.Context, ro RoomOccupancy) error

	// CloseOccupancy sets To on the student's open occupancy record.
	CloseOccupancy(ctx context.Context, studentID StudentID, to Date) error
}

// =============================================================================
// COMPOSITE AND TRANSACTIONAL STORES
// =============================================================================

// Store bundles every collaborator surface the engine depends on.
type Store interface {
	StudentStore
	FeeStore
	PaymentStore
	LedgerStore
	OccupancyStore
}

// TxStore wraps Store with unit-of-work support.
//
// WithTx executes fn against a transactional view of the store. If fn
// returns an error the transaction rolls back and no write is visible;
// otherwise all writes commit together.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
