// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	data
}

type dayKey struct {
	EmployeeID generic.EmployeeID
	Date       generic.Date
}

type assignmentKey struct {
	EmployeeID generic.EmployeeID
	BonusID    generic.BonusID
}

type receiptKey struct {
	EmployeeID generic.EmployeeID
	Start, End generic.Date
}

type data struct {
	employees   map[generic.EmployeeID]generic.Employee
	attendance  map[dayKey]generic.AttendanceRecord
	shifts      map[dayKey]generic.ScheduledShift
	holidays    map[generic.Date]generic.Holiday
	bonuses     map[generic.BonusID]generic.Bonus
	assignments map[assignmentKey]generic.BonusAssignment
	claims      map[generic.Date]time.Time
	receipts    map[receiptKey]generic.PayrollReceipt
	vacation    map[generic.EmployeeID][]generic.VacationLogEntry
	idempotency map[string]bool
}

func newData() data {
	return data{
		employees:   make(map[generic.EmployeeID]generic.Employee),
		attendance:  make(map[dayKey]generic.AttendanceRecord),
		shifts:      make(map[dayKey]generic.ScheduledShift),
		holidays:    make(map[generic.Date]generic.Holiday),
		bonuses:     make(map[generic.BonusID]generic.Bonus),
		assignments: make(map[assignmentKey]generic.BonusAssignment),
		claims:      make(map[generic.Date]time.Time),
		receipts:    make(map[receiptKey]generic.PayrollReceipt),
		vacation:    make(map[generic.EmployeeID][]generic.VacationLogEntry),
		idempotency: make(map[string]bool),
	}
}

func NewMemory() *Memory {
	return &Memory{data: newData()}
}

var _ generic.Store = (*Memory)(nil)

// --- employees ---------------------------------------------------------------

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployee(id)
}

func (d *data) getEmployee(id generic.EmployeeID) (*generic.Employee, error) {
	emp, ok := d.employees[id]
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployees(false), nil
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployees(true), nil
}

func (d *data) listEmployees(activeOnly bool) []generic.Employee {
	var result []generic.Employee
	for _, e := range d.employees {
		if activeOnly && !e.Active {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Memory) SaveEmployee(_ context.Context, emp generic.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) SetVacationBalance(_ context.Context, id generic.EmployeeID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setVacationBalance(id, balance)
}

func (d *data) setVacationBalance(id generic.EmployeeID, balance decimal.Decimal) error {
	emp, ok := d.employees[id]
	if !ok {
		return generic.ErrEmployeeNotFound
	}
	emp.VacationBalance = balance
	d.employees[id] = emp
	return nil
}

// --- attendance --------------------------------------------------------------

func (m *Memory) GetAttendance(_ context.Context, id generic.EmployeeID, day generic.Date) (*generic.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAttendance(id, day), nil
}

func (d *data) getAttendance(id generic.EmployeeID, day generic.Date) *generic.AttendanceRecord {
	rec, ok := d.attendance[dayKey{id, day}]
	if !ok {
		return nil
	}
	return &rec
}

func (m *Memory) AttendanceInRange(_ context.Context, id generic.EmployeeID, p generic.Period) ([]generic.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attendanceInRange(id, p), nil
}

func (d *data) attendanceInRange(id generic.EmployeeID, p generic.Period) []generic.AttendanceRecord {
	var result []generic.AttendanceRecord
	for _, day := range p.Days() {
		if rec, ok := d.attendance[dayKey{id, day}]; ok {
			result = append(result, rec)
		}
	}
	return result
}

func (m *Memory) CreateAttendance(_ context.Context, rec generic.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAttendance(rec)
}

func (d *data) createAttendance(rec generic.AttendanceRecord) error {
	k := dayKey{rec.EmployeeID, rec.Date}
	if _, exists := d.attendance[k]; exists {
		return generic.ErrDuplicateAttendance
	}
	d.attendance[k] = rec
	return nil
}

func (m *Memory) SaveAttendance(_ context.Context, rec generic.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance[dayKey{rec.EmployeeID, rec.Date}] = rec
	return nil
}

func (m *Memory) DeleteAttendance(_ context.Context, id generic.EmployeeID, day generic.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attendance, dayKey{id, day})
	return nil
}

func (m *Memory) PurgeEvidence(_ context.Context, p generic.Period) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeEvidence(p), nil
}

func (d *data) purgeEvidence(p generic.Period) int {
	n := 0
	for k, rec := range d.attendance {
		if !p.Contains(k.Date) || (rec.CheckInPhoto == "" && rec.CheckOutPhoto == "") {
			continue
		}
		rec.CheckInPhoto, rec.CheckOutPhoto = "", ""
		d.attendance[k] = rec
		n++
	}
	return n
}

// --- schedule & holidays -----------------------------------------------------

func (m *Memory) ShiftsInRange(_ context.Context, id generic.EmployeeID, p generic.Period) ([]generic.ScheduledShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsInRange(id, p), nil
}

func (d *data) shiftsInRange(id generic.EmployeeID, p generic.Period) []generic.ScheduledShift {
	var result []generic.ScheduledShift
	for _, day := range p.Days() {
		if s, ok := d.shifts[dayKey{id, day}]; ok {
			result = append(result, s)
		}
	}
	return result
}

func (m *Memory) SaveShift(_ context.Context, s generic.ScheduledShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[dayKey{s.EmployeeID, s.Date}] = s
	return nil
}

func (m *Memory) HolidaysInRange(_ context.Context, p generic.Period) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holidaysInRange(p), nil
}

func (d *data) holidaysInRange(p generic.Period) []generic.Holiday {
	var result []generic.Holiday
	for _, day := range p.Days() {
		if h, ok := d.holidays[day]; ok {
			result = append(result, h)
		}
	}
	return result
}

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	if err := h.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.Date] = h
	return nil
}

// --- bonuses -----------------------------------------------------------------

func (m *Memory) SaveBonus(_ context.Context, b generic.Bonus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bonuses[b.ID] = b
	return nil
}

func (m *Memory) ListBonuses(_ context.Context) ([]generic.Bonus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.Bonus, 0, len(m.bonuses))
	for _, b := range m.bonuses {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveBonusAssignment(_ context.Context, a generic.BonusAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bonuses[a.BonusID]; !ok {
		return generic.ErrBonusNotFound
	}
	m.assignments[assignmentKey{a.EmployeeID, a.BonusID}] = a
	return nil
}

func (m *Memory) AssignedBonuses(_ context.Context, id generic.EmployeeID) ([]generic.AssignedBonus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assignedBonuses(id), nil
}

func (d *data) assignedBonuses(id generic.EmployeeID) []generic.AssignedBonus {
	var result []generic.AssignedBonus
	for k, a := range d.assignments {
		if k.EmployeeID != id {
			continue
		}
		result = append(result, generic.AssignedBonus{Bonus: d.bonuses[k.BonusID], Assignment: a})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Bonus.ID < result[j].Bonus.ID })
	return result
}

// --- receipts ----------------------------------------------------------------

func (m *Memory) PeriodClosed(_ context.Context, p generic.Period) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.periodClosed(p), nil
}

func (d *data) periodClosed(p generic.Period) bool {
	if _, ok := d.claims[p.Start]; ok {
		return true
	}
	for k := range d.receipts {
		if k.Start.Equal(p.Start) && k.End.Equal(p.End) {
			return true
		}
	}
	return false
}

func (m *Memory) ClaimPeriod(_ context.Context, p generic.Period, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimPeriod(p, at)
}

func (d *data) claimPeriod(p generic.Period, at time.Time) error {
	if _, ok := d.claims[p.Start]; ok {
		return generic.ErrPeriodClosed
	}
	d.claims[p.Start] = at
	return nil
}

func (m *Memory) SaveReceipt(_ context.Context, r generic.PayrollReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveReceipt(r)
}

func (d *data) saveReceipt(r generic.PayrollReceipt) error {
	k := receiptKey{r.EmployeeID, r.Period.Start, r.Period.End}
	if _, exists := d.receipts[k]; exists {
		return generic.ErrPeriodClosed
	}
	d.receipts[k] = r
	return nil
}

func (m *Memory) ListReceipts(_ context.Context, p generic.Period) ([]generic.PayrollReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listReceipts(p), nil
}

func (d *data) listReceipts(p generic.Period) []generic.PayrollReceipt {
	var result []generic.PayrollReceipt
	for k, r := range d.receipts {
		if k.Start.Equal(p.Start) && k.End.Equal(p.End) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result
}

// --- vacation log ------------------------------------------------------------

func (m *Memory) AppendVacationEntry(_ context.Context, e generic.VacationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendVacationEntry(e)
}

func (d *data) appendVacationEntry(e generic.VacationLogEntry) error {
	if e.IdempotencyKey != "" {
		if d.idempotency[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		d.idempotency[e.IdempotencyKey] = true
	}
	d.vacation[e.EmployeeID] = append(d.vacation[e.EmployeeID], e)
	return nil
}

func (m *Memory) VacationEntries(_ context.Context, id generic.EmployeeID) ([]generic.VacationLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]generic.VacationLogEntry(nil), m.vacation[id]...), nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

var _ generic.TxStore = (*TxMemory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The view passed to fn writes straight to the maps while the write lock is
// held, so other callers never observe a half-applied unit of work.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{d: &tm.data}); err != nil {
		tm.data = snapshot
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() data {
	s := newData()
	for k, v := range tm.employees {
		s.employees[k] = v
	}
	for k, v := range tm.attendance {
		s.attendance[k] = v
	}
	for k, v := range tm.shifts {
		s.shifts[k] = v
	}
	for k, v := range tm.holidays {
		s.holidays[k] = v
	}
	for k, v := range tm.bonuses {
		s.bonuses[k] = v
	}
	for k, v := range tm.assignments {
		s.assignments[k] = v
	}
	for k, v := range tm.claims {
		s.claims[k] = v
	}
	for k, v := range tm.receipts {
		s.receipts[k] = v
	}
	for k, v := range tm.vacation {
		s.vacation[k] = append([]generic.VacationLogEntry(nil), v...)
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	return s
}

// txMemoryView operates on the locked data without re-acquiring the mutex.
type txMemoryView struct {
	d *data
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	return tv.d.getEmployee(id)
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	return tv.d.listEmployees(false), nil
}

func (tv *txMemoryView) ListActiveEmployees(_ context.Context) ([]generic.Employee, error) {
	return tv.d.listEmployees(true), nil
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp generic.Employee) error {
	tv.d.employees[emp.ID] = emp
	return nil
}

func (tv *txMemoryView) SetVacationBalance(_ context.Context, id generic.EmployeeID, balance decimal.Decimal) error {
	return tv.d.setVacationBalance(id, balance)
}

func (tv *txMemoryView) GetAttendance(_ context.Context, id generic.EmployeeID, day generic.Date) (*generic.AttendanceRecord, error) {
	return tv.d.getAttendance(id, day), nil
}

func (tv *txMemoryView) AttendanceInRange(_ context.Context, id generic.EmployeeID, p generic.Period) ([]generic.AttendanceRecord, error) {
	return tv.d.attendanceInRange(id, p), nil
}

func (tv *txMemoryView) CreateAttendance(_ context.Context, rec generic.AttendanceRecord) error {
	return tv.d.createAttendance(rec)
}

func (tv *txMemoryView) SaveAttendance(_ context.Context, rec generic.AttendanceRecord) error {
	tv.d.attendance[dayKey{rec.EmployeeID, rec.Date}] = rec
	return nil
}

func (tv *txMemoryView) DeleteAttendance(_ context.Context, id generic.EmployeeID, day generic.Date) error {
	delete(tv.d.attendance, dayKey{id, day})
	return nil
}

func (tv *txMemoryView) PurgeEvidence(_ context.Context, p generic.Period) (int, error) {
	return tv.d.purgeEvidence(p), nil
}

func (tv *txMemoryView) ShiftsInRange(_ context.Context, id generic.EmployeeID, p generic.Period) ([]generic.ScheduledShift, error) {
	return tv.d.shiftsInRange(id, p), nil
}

func (tv *txMemoryView) SaveShift(_ context.Context, s generic.ScheduledShift) error {
	tv.d.shifts[dayKey{s.EmployeeID, s.Date}] = s
	return nil
}

func (tv *txMemoryView) HolidaysInRange(_ context.Context, p generic.Period) ([]generic.Holiday, error) {
	return tv.d.holidaysInRange(p), nil
}

func (tv *txMemoryView) SaveHoliday(_ context.Context, h generic.Holiday) error {
	if err := h.Validate(); err != nil {
		return err
	}
	tv.d.holidays[h.Date] = h
	return nil
}

func (tv *txMemoryView) SaveBonus(_ context.Context, b generic.Bonus) error {
	tv.d.bonuses[b.ID] = b
	return nil
}

func (tv *txMemoryView) ListBonuses(_ context.Context) ([]generic.Bonus, error) {
	result := make([]generic.Bonus, 0, len(tv.d.bonuses))
	for _, b := range tv.d.bonuses {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) SaveBonusAssignment(_ context.Context, a generic.BonusAssignment) error {
	if _, ok := tv.d.bonuses[a.BonusID]; !ok {
		return generic.ErrBonusNotFound
	}
	tv.d.assignments[assignmentKey{a.EmployeeID, a.BonusID}] = a
	return nil
}

func (tv *txMemoryView) AssignedBonuses(_ context.Context, id generic.EmployeeID) ([]generic.AssignedBonus, error) {
	return tv.d.assignedBonuses(id), nil
}

func (tv *txMemoryView) PeriodClosed(_ context.Context, p generic.Period) (bool, error) {
	return tv.d.periodClosed(p), nil
}

func (tv *txMemoryView) ClaimPeriod(_ context.Context, p generic.Period, at time.Time) error {
	return tv.d.claimPeriod(p, at)
}

func (tv *txMemoryView) SaveReceipt(_ context.Context, r generic.PayrollReceipt) error {
	return tv.d.saveReceipt(r)
}

func (tv *txMemoryView) ListReceipts(_ context.Context, p generic.Period) ([]generic.PayrollReceipt, error) {
	return tv.d.listReceipts(p), nil
}

func (tv *txMemoryView) AppendVacationEntry(_ context.Context, e generic.VacationLogEntry) error {
	return tv.d.appendVacationEntry(e)
}

func (tv *txMemoryView) VacationEntries(_ context.Context, id generic.EmployeeID) ([]generic.VacationLogEntry, error) {
	return append([]generic.VacationLogEntry(nil), tv.d.vacation[id]...), nil
}
