/*
store.go - Persistence interfaces for the payroll engine

PURPOSE:
  Defines the boundary between calculation code and the database. Domain
  packages accept the narrowest interface they need; storage implementations
  satisfy all of them through Store.

KEY INTERFACES:
  EmployeeStore:   Employee records and the cached vacation balance
  AttendanceStore: The incident ledger, one record per (employee, date)
  ScheduleStore:   Per-day scheduled shifts
  HolidayStore:    Holiday calendar
  BonusStore:      Bonus catalog and per-employee assignments
  ReceiptStore:    Settlement claims and immutable receipts
  VacationStore:   Append-only vacation log
  TxStore:         All-or-nothing unit of work

UNIQUENESS:
  Invariants that must survive concurrent callers live in the database:
  - (employee, date) on attendance
  - (employee, period_start, period_end) on receipts
  - period_start on settlement claims
  - idempotency key on vacation log entries

NESTED UNITS OF WORK:
  The Store handed to a WithTx callback joins the enclosing transaction.
  Code that needs atomicity calls RunInTx with whatever Store it was given:
  top-level callers get a fresh transaction, callers already inside one
  simply extend it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for tests and development
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EmployeeStore interface {
	// GetEmployee returns ErrEmployeeNotFound when the ID is unknown.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error

	// SetVacationBalance updates the cached balance. Only the vacation
	// ledger calls this, in the same unit of work as the log append.
	SetVacationBalance(ctx context.Context, id EmployeeID, balance decimal.Decimal) error
}

type AttendanceStore interface {
	// GetAttendance returns (nil, nil) when no record exists for the day.
	GetAttendance(ctx context.Context, id EmployeeID, day Date) (*AttendanceRecord, error)
	AttendanceInRange(ctx context.Context, id EmployeeID, p Period) ([]AttendanceRecord, error)

	// CreateAttendance fails with ErrDuplicateAttendance if the day exists.
	CreateAttendance(ctx context.Context, rec AttendanceRecord) error

	// SaveAttendance creates or replaces the record for (employee, date).
	SaveAttendance(ctx context.Context, rec AttendanceRecord) error
	DeleteAttendance(ctx context.Context, id EmployeeID, day Date) error

	// PurgeEvidence clears photo references for every record in the period
	// and returns how many records were touched.
	PurgeEvidence(ctx context.Context, p Period) (int, error)
}

type ScheduleStore interface {
	ShiftsInRange(ctx context.Context, id EmployeeID, p Period) ([]ScheduledShift, error)
	SaveShift(ctx context.Context, s ScheduledShift) error
}

type HolidayStore interface {
	HolidaysInRange(ctx context.Context, p Period) ([]Holiday, error)
	SaveHoliday(ctx context.Context, h Holiday) error
}

type BonusStore interface {
	SaveBonus(ctx context.Context, b Bonus) error
	ListBonuses(ctx context.Context) ([]Bonus, error)
	SaveBonusAssignment(ctx context.Context, a BonusAssignment) error

	// AssignedBonuses returns every assignment of the employee joined with
	// its catalog entry, ordered by bonus ID. Inactive rows are included;
	// callers filter with AssignedBonus.Enabled.
	AssignedBonuses(ctx context.Context, id EmployeeID) ([]AssignedBonus, error)
}

type ReceiptStore interface {
	// PeriodClosed reports whether the period has been claimed for
	// settlement or has any receipt. A committed claim with zero receipts
	// (no active employees) still closes the period.
	PeriodClosed(ctx context.Context, p Period) (bool, error)

	// ClaimPeriod records that the period is being settled. A second claim
	// for the same start fails with ErrPeriodClosed.
	ClaimPeriod(ctx context.Context, p Period, at time.Time) error

	// SaveReceipt fails with ErrPeriodClosed if the employee already has a
	// receipt for the period.
	SaveReceipt(ctx context.Context, r PayrollReceipt) error
	ListReceipts(ctx context.Context, p Period) ([]PayrollReceipt, error)
}

type VacationStore interface {
	// AppendVacationEntry fails with ErrDuplicateIdempotencyKey when the
	// entry's key was already used. Append-only: no update, no delete.
	AppendVacationEntry(ctx context.Context, e VacationLogEntry) error
	VacationEntries(ctx context.Context, id EmployeeID) ([]VacationLogEntry, error)
}

// Store is the full persistence surface.
type Store interface {
	EmployeeStore
	AttendanceStore
	ScheduleStore
	HolidayStore
	BonusStore
	ReceiptStore
	VacationStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the callback's Store is
	// rolled back. If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// RunInTx runs fn in a new transaction when s supports one, and directly
// otherwise (s is already a transactional view).
func RunInTx(ctx context.Context, s Store, fn func(Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(s)
}
