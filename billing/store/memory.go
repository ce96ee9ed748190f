// Package store provides an in-memory billing.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/hostel-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	students    map[billing.StudentID]billing.Student
	fees        []billing.FeeComponent
	payments    []billing.Payment
	entries     []billing.LedgerEntry
	sequences   map[billing.HostelID]int64
	beds        map[billing.BedID]billing.Bed
	occupancies []billing.RoomOccupancy
}

func NewMemory() *Memory {
	return &Memory{
		students:  make(map[billing.StudentID]billing.Student),
		sequences: make(map[billing.HostelID]int64),
		beds:      make(map[billing.BedID]billing.Bed),
	}
}

// =============================================================================
// STUDENT STORE
// =============================================================================

func (m *Memory) GetStudent(_ context.Context, id billing.StudentID) (*billing.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getStudent(id), nil
}

func (m *Memory) getStudent(id billing.StudentID) *billing.Student {
	s, ok := m.students[id]
	if !ok {
		return nil
	}
	return &s
}

func (m *Memory) SaveStudent(_ context.Context, s billing.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
	return nil
}

func (m *Memory) UpdateStudentBed(_ context.Context, id billing.StudentID, roomID billing.RoomID, bedID billing.BedID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStudentBed(id, roomID, bedID)
}

func (m *Memory) updateStudentBed(id billing.StudentID, roomID billing.RoomID, bedID billing.BedID) error {
	s, ok := m.students[id]
	if !ok {
		return billing.ErrStudentNotFound
	}
	s.RoomID = roomID
	s.BedID = bedID
	m.students[id] = s
	return nil
}

func (m *Memory) SetStudentStatus(_ context.Context, id billing.StudentID, status billing.StudentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setStudentStatus(id, status)
}

func (m *Memory) setStudentStatus(id billing.StudentID, status billing.StudentStatus) error {
	s, ok := m.students[id]
	if !ok {
		return billing.ErrStudentNotFound
	}
	s.Status = status
	m.students[id] = s
	return nil
}

func (m *Memory) ListStudents(_ context.Context) ([]billing.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]billing.Student, 0, len(m.students))
	for _, s := range m.students {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// FEE STORE
// =============================================================================

func (m *Memory) ListActiveFeeComponents(_ context.Context, studentID billing.StudentID) ([]billing.FeeComponent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []billing.FeeComponent
	for _, fc := range m.fees {
		if fc.StudentID == studentID && fc.IsActive {
			result = append(result, fc)
		}
	}
	return result, nil
}

func (m *Memory) CreateFeeComponent(_ context.Context, fc billing.FeeComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createFeeComponent(fc)
	return nil
}

func (m *Memory) createFeeComponent(fc billing.FeeComponent) {
	m.fees = append(m.fees, fc)
}

func (m *Memory) DeactivateFeeComponent(_ context.Context, studentID billing.StudentID, feeType billing.FeeType, effectiveTo billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateFeeComponent(studentID, feeType, effectiveTo)
	return nil
}

func (m *Memory) deactivateFeeComponent(studentID billing.StudentID, feeType billing.FeeType, effectiveTo billing.Date) {
	for i := range m.fees {
		if m.fees[i].StudentID == studentID && m.fees[i].FeeType == feeType && m.fees[i].IsActive {
			to := effectiveTo
			m.fees[i].IsActive = false
			m.fees[i].EffectiveTo = &to
		}
	}
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (m *Memory) ListCompletedPayments(_ context.Context, studentID billing.StudentID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []billing.Payment
	for _, p := range m.payments {
		if p.StudentID == studentID && p.Status == billing.PaymentCompleted {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PaymentDate.Before(result[j].PaymentDate) })
	return result, nil
}

func (m *Memory) CreatePayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createPayment(p)
	return nil
}

func (m *Memory) createPayment(p billing.Payment) {
	m.payments = append(m.payments, p)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e billing.LedgerEntry) (billing.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntry(e), nil
}

func (m *Memory) appendEntry(e billing.LedgerEntry) billing.LedgerEntry {
	m.sequences[e.HostelID]++
	e.Sequence = m.sequences[e.HostelID]
	m.entries = append(m.entries, e)
	return e
}

func (m *Memory) ListEntries(_ context.Context, studentID billing.StudentID) ([]billing.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []billing.LedgerEntry
	for _, e := range m.entries {
		if e.StudentID == studentID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *Memory) SumBalance(_ context.Context, studentID billing.StudentID) (billing.Money, billing.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumBalance(studentID)
}

func (m *Memory) sumBalance(studentID billing.StudentID) (billing.Money, billing.Money, error) {
	var debits, credits billing.Money
	for _, e := range m.entries {
		if e.StudentID != studentID || e.IsReversed {
			continue
		}
		debits = debits.Add(e.Debit)
		credits = credits.Add(e.Credit)
	}
	return debits, credits, nil
}

func (m *Memory) MarkReversed(_ context.Context, id billing.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].IsReversed = true
			return nil
		}
	}
	return billing.ErrEntryNotFound
}

// =============================================================================
// OCCUPANCY STORE
// =============================================================================

func (m *Memory) GetBed(_ context.Context, id billing.BedID) (*billing.Bed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.beds[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) SaveBed(_ context.Context, b billing.Bed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beds[b.ID] = b
	return nil
}

func (m *Memory) SetBedStatus(_ context.Context, id billing.BedID, status billing.BedStatus, occupant billing.StudentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBedStatus(id, status, occupant)
}

func (m *Memory) setBedStatus(id billing.BedID, status billing.BedStatus, occupant billing.StudentID) error {
	b, ok := m.beds[id]
	if !ok {
		return billing.ErrBedNotFound
	}
	b.Status = status
	b.OccupantID = occupant
	m.beds[id] = b
	return nil
}

func (m *Memory) OpenOccupancy(_ context.Context, ro billing.RoomOccupancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancies = append(m.occupancies, ro)
	return nil
}

func (m *Memory) CloseOccupancy(_ context.Context, studentID billing.StudentID, to billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeOccupancy(studentID, to)
	return nil
}

func (m *Memory) closeOccupancy(studentID billing.StudentID, to billing.Date) {
	for i := range m.occupancies {
		if m.occupancies[i].StudentID == studentID && m.occupancies[i].To == nil {
			t := to
			m.occupancies[i].To = &t
		}
	}
}

// FeeComponents returns all fee components for a student, active and
// deactivated, for test assertions.
func (m *Memory) FeeComponents(studentID billing.StudentID) []billing.FeeComponent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []billing.FeeComponent
	for _, fc := range m.fees {
		if fc.StudentID == studentID {
			result = append(result, fc)
		}
	}
	return result
}

// Occupancies returns all occupancy records, for test assertions.
func (m *Memory) Occupancies() []billing.RoomOccupancy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]billing.RoomOccupancy, len(m.occupancies))
	copy(result, m.occupancies)
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with unit-of-work support.
// Rollback is simulated with a snapshot + restore on error, which is enough
// to test the all-or-nothing contract of settlement and bed-switch.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	students    map[billing.StudentID]billing.Student
	fees        []billing.FeeComponent
	payments    []billing.Payment
	entries     []billing.LedgerEntry
	sequences   map[billing.HostelID]int64
	beds        map[billing.BedID]billing.Bed
	occupancies []billing.RoomOccupancy
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		students:    make(map[billing.StudentID]billing.Student, len(tm.students)),
		sequences:   make(map[billing.HostelID]int64, len(tm.sequences)),
		beds:        make(map[billing.BedID]billing.Bed, len(tm.beds)),
		fees:        append([]billing.FeeComponent(nil), tm.fees...),
		payments:    append([]billing.Payment(nil), tm.payments...),
		entries:     append([]billing.LedgerEntry(nil), tm.entries...),
		occupancies: append([]billing.RoomOccupancy(nil), tm.occupancies...),
	}
	for k, v := range tm.students {
		s.students[k] = v
	}
	for k, v := range tm.sequences {
		s.sequences[k] = v
	}
	for k, v := range tm.beds {
		s.beds[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.students = s.students
	tm.fees = s.fees
	tm.payments = s.payments
	tm.entries = s.entries
	tm.sequences = s.sequences
	tm.beds = s.beds
	tm.occupancies = s.occupancies
}

// txMemoryView runs against the parent's data while the parent lock is held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetStudent(_ context.Context, id billing.StudentID) (*billing.Student, error) {
	return tv.parent.getStudent(id), nil
}

func (tv *txMemoryView) SaveStudent(_ context.Context, s billing.Student) error {
	tv.parent.students[s.ID] = s
	return nil
}

func (tv *txMemoryView) UpdateStudentBed(_ context.Context, id billing.StudentID, roomID billing.RoomID, bedID billing.BedID) error {
	return tv.parent.updateStudentBed(id, roomID, bedID)
}

func (tv *txMemoryView) SetStudentStatus(_ context.Context, id billing.StudentID, status billing.StudentStatus) error {
	return tv.parent.setStudentStatus(id, status)
}

func (tv *txMemoryView) ListStudents(_ context.Context) ([]billing.Student, error) {
	result := make([]billing.Student, 0, len(tv.parent.students))
	for _, s := range tv.parent.students {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) ListActiveFeeComponents(_ context.Context, studentID billing.StudentID) ([]billing.FeeComponent, error) {
	var result []billing.FeeComponent
	for _, fc := range tv.parent.fees {
		if fc.StudentID == studentID && fc.IsActive {
			result = append(result, fc)
		}
	}
	return result, nil
}

func (tv *txMemoryView) CreateFeeComponent(_ context.Context, fc billing.FeeComponent) error {
	tv.parent.createFeeComponent(fc)
	return nil
}

func (tv *txMemoryView) DeactivateFeeComponent(_ context.Context, studentID billing.StudentID, feeType billing.FeeType, effectiveTo billing.Date) error {
	tv.parent.deactivateFeeComponent(studentID, feeType, effectiveTo)
	return nil
}

func (tv *txMemoryView) ListCompletedPayments(_ context.Context, studentID billing.StudentID) ([]billing.Payment, error) {
	var result []billing.Payment
	for _, p := range tv.parent.payments {
		if p.StudentID == studentID && p.Status == billing.PaymentCompleted {
			result = append(result, p)
		}
	}
	return result, nil
}

func (tv *txMemoryView) CreatePayment(_ context.Context, p billing.Payment) error {
	tv.parent.createPayment(p)
	return nil
}

func (tv *txMemoryView) AppendEntry(_ context.Context, e billing.LedgerEntry) (billing.LedgerEntry, error) {
	return tv.parent.appendEntry(e), nil
}

func (tv *txMemoryView) ListEntries(_ context.Context, studentID billing.StudentID) ([]billing.LedgerEntry, error) {
	var result []billing.LedgerEntry
	for _, e := range tv.parent.entries {
		if e.StudentID == studentID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (tv *txMemoryView) SumBalance(_ context.Context, studentID billing.StudentID) (billing.Money, billing.Money, error) {
	return tv.parent.sumBalance(studentID)
}

func (tv *txMemoryView) MarkReversed(_ context.Context, id billing.EntryID) error {
	for i := range tv.parent.entries {
		if tv.parent.entries[i].ID == id {
			tv.parent.entries[i].IsReversed = true
			return nil
		}
	}
	return billing.ErrEntryNotFound
}

func (tv *txMemoryView) GetBed(_ context.Context, id billing.BedID) (*billing.Bed, error) {
	b, ok := tv.parent.beds[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (tv *txMemoryView) SaveBed(_ context.Context, b billing.Bed) error {
	tv.parent.beds[b.ID] = b
	return nil
}

func (tv *txMemoryView) SetBedStatus(_ context.Context, id billing.BedID, status billing.BedStatus, occupant billing.StudentID) error {
	return tv.parent.setBedStatus(id, status, occupant)
}

func (tv *txMemoryView) OpenOccupancy(_ context.Context, ro billing.RoomOccupancy) error {
	tv.parent.occupancies = append(tv.parent.occupancies, ro)
	return nil
}

func (tv *txMemoryView) CloseOccupancy(_ context.Context, studentID billing.StudentID, to billing.Date) error {
	tv.parent.closeOccupancy(studentID, to)
	return nil
}
