/*
Package sqlite provides the SQLite-backed implementation of the billing
storage interfaces.

PURPOSE:
  Implements billing.Store and billing.TxStore using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The ledger_entries table has no UPDATE path except the is_reversed flag
  and no DELETE path at all. Corrections are reversing entries.

SEQUENCING:
  entry_sequence is assigned at insert time as MAX(entry_sequence)+1 per
  hostel. SQLite's single-writer model makes the subselect-and-insert
  atomic; under PostgreSQL this would be a per-hostel sequence or an
  advisory lock.

UNIT OF WORK:
  WithTx runs the callback against a queries view bound to a *sql.Tx.
  The settlement and bed-switch engines put every write of one business
  fact inside a single WithTx call.

WAL MODE:
  The database is opened with WAL so readers don't block behind the writer
  and crash recovery is cheap.

USAGE:
  st, err := sqlite.New("./data/hostel.db")
  defer st.Close()
  engine := billing.NewSettlementEngine(st, nil)

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/hostel-engine/billing"
)

// Store implements billing.TxStore on SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, queries: queries{db: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hostel_id TEXT NOT NULL,
		room_id TEXT,
		bed_id TEXT,
		enrollment_date TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fee_components (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		fee_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fee_components_student_active
		ON fee_components(student_id, is_active);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		hostel_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		month_covered TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_student_status
		ON payments(student_id, status);

	-- Append-only ledger: is_reversed is the only mutable column.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		hostel_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		description TEXT,
		is_reversed BOOLEAN NOT NULL DEFAULT FALSE,
		entry_sequence INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(hostel_id, entry_sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_student
		ON ledger_entries(student_id, entry_sequence);

	CREATE TABLE IF NOT EXISTS beds (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		hostel_id TEXT NOT NULL,
		rate TEXT NOT NULL,
		status TEXT NOT NULL,
		occupant_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_beds_room ON beds(room_id);

	CREATE TABLE IF NOT EXISTS room_occupancy (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		bed_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		occupied_from TEXT NOT NULL,
		occupied_to TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_room_occupancy_student_open
		ON room_occupancy(student_id, occupied_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - billing.Store over either *sql.DB or *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// ----- students --------------------------------------------------------------

func (q *queries) GetStudent(ctx context.Context, id billing.StudentID) (*billing.Student, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, hostel_id, room_id, bed_id, enrollment_date, status, created_at
		FROM students WHERE id = ?`, id)

	var s billing.Student
	var roomID, bedID, enrollment sql.NullString
	var createdAt string
	err := row.Scan(&s.ID, &s.Name, &s.HostelID, &roomID, &bedID, &enrollment, &s.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	s.RoomID = billing.RoomID(roomID.String)
	s.BedID = billing.BedID(bedID.String)
	if enrollment.Valid && enrollment.String != "" {
		d, err := billing.ParseDate(enrollment.String)
		if err != nil {
			return nil, fmt.Errorf("bad enrollment date for %s: %w", id, err)
		}
		s.EnrollmentDate = &d
	}
	s.CreatedAt = parseTimestamp(createdAt)
	return &s, nil
}

func (q *queries) SaveStudent(ctx context.Context, s billing.Student) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	var enrollment any
	if s.EnrollmentDate != nil {
		enrollment = s.EnrollmentDate.String()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO students
		(id, name, hostel_id, room_id, bed_id, enrollment_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.HostelID, nullString(string(s.RoomID)), nullString(string(s.BedID)),
		enrollment, s.Status, s.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

func (q *queries) UpdateStudentBed(ctx context.Context, id billing.StudentID, roomID billing.RoomID, bedID billing.BedID) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE students SET room_id = ?, bed_id = ? WHERE id = ?`, roomID, bedID, id)
	if err != nil {
		return fmt.Errorf("failed to update student bed: %w", err)
	}
	return requireRow(res, billing.ErrStudentNotFound)
}

func (q *queries) SetStudentStatus(ctx context.Context, id billing.StudentID, status billing.StudentStatus) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE students SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set student status: %w", err)
	}
	return requireRow(res, billing.ErrStudentNotFound)
}

func (q *queries) ListStudents(ctx context.Context) ([]billing.Student, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, hostel_id, room_id, bed_id, enrollment_date, status, created_at
		FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var result []billing.Student
	for rows.Next() {
		var s billing.Student
		var roomID, bedID, enrollment sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.HostelID, &roomID, &bedID, &enrollment, &s.Status, &createdAt); err != nil {
			return nil, err
		}
		s.RoomID = billing.RoomID(roomID.String)
		s.BedID = billing.BedID(bedID.String)
		if enrollment.Valid && enrollment.String != "" {
			d, err := billing.ParseDate(enrollment.String)
			if err != nil {
				return nil, err
			}
			s.EnrollmentDate = &d
		}
		s.CreatedAt = parseTimestamp(createdAt)
		result = append(result, s)
	}
	return result, rows.Err()
}

// ----- fee components --------------------------------------------------------

func (q *queries) ListActiveFeeComponents(ctx context.Context, studentID billing.StudentID) ([]billing.FeeComponent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, fee_type, amount, effective_from, effective_to, is_active, notes, created_at
		FROM fee_components
		WHERE student_id = ? AND is_active = TRUE
		ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee components: %w", err)
	}
	defer rows.Close()

	var result []billing.FeeComponent
	for rows.Next() {
		var fc billing.FeeComponent
		var amount, from, createdAt string
		var to, notes sql.NullString
		if err := rows.Scan(&fc.ID, &fc.StudentID, &fc.FeeType, &amount, &from, &to, &fc.IsActive, &notes, &createdAt); err != nil {
			return nil, err
		}
		if fc.Amount, err = billing.ParseMoney(amount); err != nil {
			return nil, err
		}
		fromDate, err := billing.ParseDate(from)
		if err != nil {
			return nil, err
		}
		fc.EffectiveFrom = fromDate
		if to.Valid && to.String != "" {
			d, err := billing.ParseDate(to.String)
			if err != nil {
				return nil, err
			}
			fc.EffectiveTo = &d
		}
		fc.Notes = notes.String
		fc.CreatedAt = parseTimestamp(createdAt)
		result = append(result, fc)
	}
	return result, rows.Err()
}

func (q *queries) CreateFeeComponent(ctx context.Context, fc billing.FeeComponent) error {
	if fc.CreatedAt.IsZero() {
		fc.CreatedAt = time.Now().UTC()
	}
	var to any
	if fc.EffectiveTo != nil {
		to = fc.EffectiveTo.String()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO fee_components
		(id, student_id, fee_type, amount, effective_from, effective_to, is_active, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fc.ID, fc.StudentID, fc.FeeType, fc.Amount.Decimal().String(),
		fc.EffectiveFrom.String(), to, fc.IsActive, fc.Notes, fc.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create fee component: %w", err)
	}
	return nil
}

func (q *queries) DeactivateFeeComponent(ctx context.Context, studentID billing.StudentID, feeType billing.FeeType, effectiveTo billing.Date) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE fee_components SET is_active = FALSE, effective_to = ?
		WHERE student_id = ? AND fee_type = ? AND is_active = TRUE`,
		effectiveTo.String(), studentID, feeType)
	if err != nil {
		return fmt.Errorf("failed to deactivate fee component: %w", err)
	}
	return nil
}

// ----- payments --------------------------------------------------------------

func (q *queries) ListCompletedPayments(ctx context.Context, studentID billing.StudentID) ([]billing.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, hostel_id, amount, payment_type, payment_date, month_covered, status, notes, created_at
		FROM payments
		WHERE student_id = ? AND status = ?
		ORDER BY payment_date, created_at`, studentID, billing.PaymentCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		var p billing.Payment
		var amount, date, createdAt string
		var month, notes sql.NullString
		if err := rows.Scan(&p.ID, &p.StudentID, &p.HostelID, &amount, &p.Type, &date, &month, &p.Status, &notes, &createdAt); err != nil {
			return nil, err
		}
		if p.Amount, err = billing.ParseMoney(amount); err != nil {
			return nil, err
		}
		d, err := billing.ParseDate(date)
		if err != nil {
			return nil, err
		}
		p.PaymentDate = d
		p.MonthCovered = month.String
		p.Notes = notes.String
		p.CreatedAt = parseTimestamp(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (q *queries) CreatePayment(ctx context.Context, p billing.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payments
		(id, student_id, hostel_id, amount, payment_type, payment_date, month_covered, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StudentID, p.HostelID, p.Amount.Decimal().String(), p.Type,
		p.PaymentDate.String(), p.MonthCovered, p.Status, p.Notes, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ----- ledger ----------------------------------------------------------------

func (q *queries) AppendEntry(ctx context.Context, e billing.LedgerEntry) (billing.LedgerEntry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	// entry_sequence assignment and insert are one statement; SQLite's
	// single-writer model keeps the MAX+1 subselect race-free.
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, student_id, hostel_id, entry_date, entry_type, debit, credit, description, is_reversed, entry_sequence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE,
			(SELECT COALESCE(MAX(entry_sequence), 0) + 1 FROM ledger_entries WHERE hostel_id = ?), ?)`,
		e.ID, e.StudentID, e.HostelID, e.Date.String(), e.Type,
		e.Debit.Decimal().String(), e.Credit.Decimal().String(), e.Description,
		e.HostelID, e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return billing.LedgerEntry{}, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	row := q.db.QueryRowContext(ctx,
		`SELECT entry_sequence FROM ledger_entries WHERE id = ?`, e.ID)
	if err := row.Scan(&e.Sequence); err != nil {
		return billing.LedgerEntry{}, fmt.Errorf("failed to read entry sequence: %w", err)
	}
	return e, nil
}

func (q *queries) ListEntries(ctx context.Context, studentID billing.StudentID) ([]billing.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, hostel_id, entry_date, entry_type, debit, credit, description, is_reversed, entry_sequence, created_at
		FROM ledger_entries
		WHERE student_id = ?
		ORDER BY entry_sequence`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var result []billing.LedgerEntry
	for rows.Next() {
		var e billing.LedgerEntry
		var date, debit, credit, createdAt string
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.StudentID, &e.HostelID, &date, &e.Type, &debit, &credit, &description, &e.IsReversed, &e.Sequence, &createdAt); err != nil {
			return nil, err
		}
		d, err := billing.ParseDate(date)
		if err != nil {
			return nil, err
		}
		e.Date = d
		if e.Debit, err = billing.ParseMoney(debit); err != nil {
			return nil, err
		}
		if e.Credit, err = billing.ParseMoney(credit); err != nil {
			return nil, err
		}
		e.Description = description.String
		e.CreatedAt = parseTimestamp(createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (q *queries) SumBalance(ctx context.Context, studentID billing.StudentID) (billing.Money, billing.Money, error) {
	// Amounts are stored as decimal strings; aggregate in Go rather than
	// relying on SQLite float arithmetic.
	entries, err := q.ListEntries(ctx, studentID)
	if err != nil {
		return billing.Money{}, billing.Money{}, err
	}
	var debits, credits billing.Money
	for _, e := range entries {
		if e.IsReversed {
			continue
		}
		debits = debits.Add(e.Debit)
		credits = credits.Add(e.Credit)
	}
	return debits, credits, nil
}

func (q *queries) MarkReversed(ctx context.Context, id billing.EntryID) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE ledger_entries SET is_reversed = TRUE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry reversed: %w", err)
	}
	return requireRow(res, billing.ErrEntryNotFound)
}

// ----- beds and occupancy ----------------------------------------------------

func (q *queries) GetBed(ctx context.Context, id billing.BedID) (*billing.Bed, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, room_id, hostel_id, rate, status, occupant_id FROM beds WHERE id = ?`, id)

	var b billing.Bed
	var rate string
	var occupant sql.NullString
	err := row.Scan(&b.ID, &b.RoomID, &b.HostelID, &rate, &b.Status, &occupant)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bed: %w", err)
	}
	if b.Rate, err = billing.ParseMoney(rate); err != nil {
		return nil, err
	}
	b.OccupantID = billing.StudentID(occupant.String)
	return &b, nil
}

func (q *queries) SaveBed(ctx context.Context, b billing.Bed) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO beds (id, room_id, hostel_id, rate, status, occupant_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.RoomID, b.HostelID, b.Rate.Decimal().String(), b.Status, nullString(string(b.OccupantID)))
	if err != nil {
		return fmt.Errorf("failed to save bed: %w", err)
	}
	return nil
}

func (q *queries) SetBedStatus(ctx context.Context, id billing.BedID, status billing.BedStatus, occupant billing.StudentID) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE beds SET status = ?, occupant_id = ? WHERE id = ?`,
		status, nullString(string(occupant)), id)
	if err != nil {
		return fmt.Errorf("failed to set bed status: %w", err)
	}
	return requireRow(res, billing.ErrBedNotFound)
}

func (q *queries) OpenOccupancy(ctx context.Context, ro billing.RoomOccupancy) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO room_occupancy (id, room_id, bed_id, student_id, occupied_from, occupied_to)
		VALUES (?, ?, ?, ?, ?, NULL)`,
		ro.ID, ro.RoomID, ro.BedID, ro.StudentID, ro.From.String())
	if err != nil {
		return fmt.Errorf("failed to open occupancy: %w", err)
	}
	return nil
}

func (q *queries) CloseOccupancy(ctx context.Context, studentID billing.StudentID, to billing.Date) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE room_occupancy SET occupied_to = ?
		WHERE student_id = ? AND occupied_to IS NULL`,
		to.String(), studentID)
	if err != nil {
		return fmt.Errorf("failed to close occupancy: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
