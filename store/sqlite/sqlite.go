/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Persists the incident ledger, schedule, holiday calendar, bonus catalog,
  settlement receipts and the vacation log. Invariants that must hold under
  concurrent callers are enforced by the schema, not by application code.

KEY TABLES:
  employees:           HR records, weekly template, cached vacation balance
  attendance:          One row per (employee, date)
  scheduled_shifts:    Explicit per-day shift or rest-day overrides
  holidays:            One row per date with its pay multiplier
  bonuses:             Catalog, rule stored as JSON
  bonus_assignments:   (employee, bonus) enrollment with optional override
  settlement_periods:  One claim per settled week
  payroll_receipts:    Immutable settlement snapshots
  vacation_log:        Append-only vacation balance changes

APPEND-ONLY ENFORCEMENT:
  Triggers abort any UPDATE or DELETE on payroll_receipts and vacation_log.
  Corrections go through new vacation_log rows, never edits.

VALUE ENCODING:
  Dates are TEXT "YYYY-MM-DD" and times of day TEXT "HH:MM:SS", never a
  combined timestamp. Money and day counts are TEXT decimals so no value
  passes through a float.

CONCURRENCY:
  The pool is capped at one connection. SQLite allows a single writer
  anyway, and ":memory:" databases exist per connection, so every caller
  must share the same one. database/sql queues callers on that connection.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

var (
	_ generic.TxStore = (*Store)(nil)
	_ generic.Store   = (*queries)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every Store method. Outside a transaction q is the pool;
// inside WithTx it is the *sql.Tx.
type queries struct {
	q querier
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := NewFromDB(db)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewFromDB wraps an already opened database without migrating it.
func NewFromDB(db *sql.DB) *Store {
	return &Store{queries: &queries{q: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		daily_rate TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		hire_date TEXT,
		template_json TEXT NOT NULL,
		vacation_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- One record per employee-day; concurrent edits of the same day collide here
	CREATE TABLE IF NOT EXISTS attendance (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		date TEXT NOT NULL,
		incident TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		is_late INTEGER NOT NULL DEFAULT 0,
		late_ignored INTEGER NOT NULL DEFAULT 0,
		extra_hours REAL NOT NULL DEFAULT 0,
		notes TEXT,
		check_in_photo TEXT,
		check_out_photo TEXT,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);

	CREATE TABLE IF NOT EXISTS scheduled_shifts (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		date TEXT NOT NULL,
		shift_start TEXT,
		shift_end TEXT,
		PRIMARY KEY(employee_id, date)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		multiplier TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bonuses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		rule_json TEXT
	);

	CREATE TABLE IF NOT EXISTS bonus_assignments (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		bonus_id TEXT NOT NULL REFERENCES bonuses(id),
		amount_override TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY(employee_id, bonus_id)
	);

	-- CRITICAL: a week is settled once. The loser of two concurrent
	-- settlements fails on this key and rolls back.
	CREATE TABLE IF NOT EXISTS settlement_periods (
		period_start TEXT PRIMARY KEY,
		period_end TEXT NOT NULL,
		claimed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payroll_receipts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		total_pay TEXT NOT NULL,
		days_worked INTEGER NOT NULL,
		total_bonuses TEXT NOT NULL,
		breakdown_json TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, period_start, period_end)
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_period
		ON payroll_receipts(period_start, period_end);

	CREATE TABLE IF NOT EXISTS vacation_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		actor_id TEXT,
		type TEXT NOT NULL,
		days TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vacation_log_employee
		ON vacation_log(employee_id, seq);

	CREATE TRIGGER IF NOT EXISTS trg_vacation_log_no_update
		BEFORE UPDATE ON vacation_log
		BEGIN SELECT RAISE(ABORT, 'vacation_log is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS trg_vacation_log_no_delete
		BEFORE DELETE ON vacation_log
		BEGIN SELECT RAISE(ABORT, 'vacation_log is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS trg_receipts_no_update
		BEFORE UPDATE ON payroll_receipts
		BEGIN SELECT RAISE(ABORT, 'payroll_receipts are immutable'); END;
	CREATE TRIGGER IF NOT EXISTS trg_receipts_no_delete
		BEFORE DELETE ON payroll_receipts
		BEGIN SELECT RAISE(ABORT, 'payroll_receipts are immutable'); END;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Domain errors returned
// by fn pass through unchanged; anything else is a storage failure and is
// wrapped in a TransactionError. Either way nothing is committed.
func (s *Store) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &generic.TransactionError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		if isDomainError(err) {
			return err
		}
		return &generic.TransactionError{Op: "execute", Err: err}
	}

	if err := sqlTx.Commit(); err != nil {
		return &generic.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

func isDomainError(err error) bool {
	for _, target := range []error{generic.ErrValidation, generic.ErrConflict, generic.ErrNotFound, generic.ErrForbidden, generic.ErrTransaction} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, daily_rate, active, hire_date, template_json, vacation_balance`

func (s *queries) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *queries) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	return s.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
}

func (s *queries) ListActiveEmployees(ctx context.Context) ([]generic.Employee, error) {
	return s.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees WHERE active = 1 ORDER BY id")
}

// SaveEmployee creates or updates an employee. The vacation balance is only
// written on insert; afterwards it belongs to the vacation ledger.
func (s *queries) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	template, err := json.Marshal(emp.Template)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	query := `
		INSERT INTO employees (id, name, daily_rate, active, hire_date, template_json, vacation_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			daily_rate = excluded.daily_rate,
			active = excluded.active,
			hire_date = excluded.hire_date,
			template_json = excluded.template_json
	`
	_, err = s.q.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.DailyRate, emp.Active, nullDate(emp.HireDate),
		string(template), emp.VacationBalance,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *queries) SetVacationBalance(ctx context.Context, id generic.EmployeeID, balance decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx, "UPDATE employees SET vacation_balance = ? WHERE id = ?", balance, id)
	if err != nil {
		return fmt.Errorf("failed to update vacation balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return nil
}

func (s *queries) queryEmployees(ctx context.Context, query string, args ...any) ([]generic.Employee, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (generic.Employee, error) {
	var (
		emp      generic.Employee
		hireDate sql.NullString
		template string
	)
	err := row.Scan(&emp.ID, &emp.Name, &emp.DailyRate, &emp.Active, &hireDate, &template, &emp.VacationBalance)
	if err != nil {
		return emp, err
	}
	if hireDate.Valid {
		if emp.HireDate, err = generic.ParseDate(hireDate.String); err != nil {
			return emp, fmt.Errorf("employee %s: %w", emp.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(template), &emp.Template); err != nil {
		return emp, fmt.Errorf("employee %s: failed to decode template: %w", emp.ID, err)
	}
	return emp, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

const attendanceColumns = `employee_id, date, incident, check_in, check_out, is_late, late_ignored,
	extra_hours, notes, check_in_photo, check_out_photo`

func (s *queries) GetAttendance(ctx context.Context, id generic.EmployeeID, day generic.Date) (*generic.AttendanceRecord, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE employee_id = ? AND date = ?",
		id, day.String(),
	)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *queries) AttendanceInRange(ctx context.Context, id generic.EmployeeID, p generic.Period) ([]generic.AttendanceRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE employee_id = ? AND date >= ? AND date <= ? ORDER BY date",
		id, p.Start.String(), p.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []generic.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *queries) CreateAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	err := s.writeAttendance(ctx, "INSERT INTO attendance", "", rec)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{
			Resource: "attendance",
			Key:      fmt.Sprintf("%s/%s", rec.EmployeeID, rec.Date),
			Err:      generic.ErrDuplicateAttendance,
		}
	}
	return err
}

func (s *queries) SaveAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	return s.writeAttendance(ctx, "INSERT INTO attendance", `
		ON CONFLICT(employee_id, date) DO UPDATE SET
			incident = excluded.incident,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			is_late = excluded.is_late,
			late_ignored = excluded.late_ignored,
			extra_hours = excluded.extra_hours,
			notes = excluded.notes,
			check_in_photo = excluded.check_in_photo,
			check_out_photo = excluded.check_out_photo`, rec)
}

func (s *queries) writeAttendance(ctx context.Context, insert, conflict string, rec generic.AttendanceRecord) error {
	if !rec.Incident.Valid() {
		return &generic.ValidationError{Field: "incident", Message: rec.Incident.String(), Err: generic.ErrUnknownIncident}
	}
	query := insert + ` (` + attendanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)` + conflict

	_, err := s.q.ExecContext(ctx, query,
		rec.EmployeeID, rec.Date.String(), rec.Incident.String(),
		nullTime(rec.CheckIn), nullTime(rec.CheckOut),
		rec.IsLate, rec.LateIgnored, rec.ExtraHours,
		nullString(rec.Notes), nullString(rec.CheckInPhoto), nullString(rec.CheckOutPhoto),
	)
	if err != nil && !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to write attendance: %w", err)
	}
	return err
}

func (s *queries) DeleteAttendance(ctx context.Context, id generic.EmployeeID, day generic.Date) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM attendance WHERE employee_id = ? AND date = ?", id, day.String())
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	return nil
}

func (s *queries) PurgeEvidence(ctx context.Context, p generic.Period) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE attendance SET check_in_photo = NULL, check_out_photo = NULL
		WHERE date >= ? AND date <= ?
		  AND (check_in_photo IS NOT NULL OR check_out_photo IS NOT NULL)`,
		p.Start.String(), p.End.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge evidence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge evidence: %w", err)
	}
	return int(n), nil
}

// scanAttendance decodes one row. An unparseable time does not fail the
// scan: the record comes back with Malformed set so the caller can degrade
// that one day.
func scanAttendance(row scanner) (generic.AttendanceRecord, error) {
	var (
		rec                      generic.AttendanceRecord
		date, incident           string
		checkIn, checkOut        sql.NullString
		notes, inPhoto, outPhoto sql.NullString
	)
	err := row.Scan(&rec.EmployeeID, &date, &incident, &checkIn, &checkOut,
		&rec.IsLate, &rec.LateIgnored, &rec.ExtraHours, &notes, &inPhoto, &outPhoto)
	if err != nil {
		return rec, err
	}

	if rec.Date, err = generic.ParseDate(date); err != nil {
		return rec, fmt.Errorf("attendance %s: %w", rec.EmployeeID, err)
	}
	if rec.Incident, err = generic.ParseIncidentType(incident); err != nil {
		return rec, fmt.Errorf("attendance %s/%s: %w", rec.EmployeeID, date, err)
	}
	rec.Notes = notes.String
	rec.CheckInPhoto = inPhoto.String
	rec.CheckOutPhoto = outPhoto.String

	var problems []string
	if rec.CheckIn, err = parseNullTime(checkIn); err != nil {
		problems = append(problems, fmt.Sprintf("check_in %q: %v", checkIn.String, err))
	}
	if rec.CheckOut, err = parseNullTime(checkOut); err != nil {
		problems = append(problems, fmt.Sprintf("check_out %q: %v", checkOut.String, err))
	}
	rec.Malformed = strings.Join(problems, "; ")
	return rec, nil
}

// =============================================================================
// SCHEDULE & HOLIDAYS
// =============================================================================

func (s *queries) ShiftsInRange(ctx context.Context, id generic.EmployeeID, p generic.Period) ([]generic.ScheduledShift, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT employee_id, date, shift_start, shift_end FROM scheduled_shifts
		WHERE employee_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		id, p.Start.String(), p.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []generic.ScheduledShift
	for rows.Next() {
		var (
			sh         generic.ScheduledShift
			date       string
			start, end sql.NullString
		)
		if err := rows.Scan(&sh.EmployeeID, &date, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		if sh.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		if start.Valid {
			st, err := generic.ParseTimeOfDay(start.String)
			if err != nil {
				return nil, fmt.Errorf("shift %s/%s: %w", sh.EmployeeID, date, err)
			}
			en, err := generic.ParseTimeOfDay(end.String)
			if err != nil {
				return nil, fmt.Errorf("shift %s/%s: %w", sh.EmployeeID, date, err)
			}
			sh.Shift = &generic.Shift{Start: st, End: en}
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (s *queries) SaveShift(ctx context.Context, sh generic.ScheduledShift) error {
	var start, end sql.NullString
	if sh.Shift != nil {
		start = sql.NullString{String: sh.Shift.Start.String(), Valid: true}
		end = sql.NullString{String: sh.Shift.End.String(), Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO scheduled_shifts (employee_id, date, shift_start, shift_end)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			shift_start = excluded.shift_start,
			shift_end = excluded.shift_end`,
		sh.EmployeeID, sh.Date.String(), start, end,
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (s *queries) HolidaysInRange(ctx context.Context, p generic.Period) ([]generic.Holiday, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT date, name, multiplier FROM holidays WHERE date >= ? AND date <= ? ORDER BY date",
		p.Start.String(), p.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var (
			h    generic.Holiday
			date string
		)
		if err := rows.Scan(&date, &h.Name, &h.Multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (s *queries) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	if err := h.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO holidays (date, name, multiplier) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET name = excluded.name, multiplier = excluded.multiplier`,
		h.Date.String(), h.Name, h.Multiplier,
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// =============================================================================
// BONUS CATALOG
// =============================================================================

func (s *queries) SaveBonus(ctx context.Context, b generic.Bonus) error {
	var rule sql.NullString
	if b.Rule != nil {
		data, err := json.Marshal(b.Rule)
		if err != nil {
			return fmt.Errorf("failed to encode rule: %w", err)
		}
		rule = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bonuses (id, name, amount, active, rule_json) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			active = excluded.active,
			rule_json = excluded.rule_json`,
		b.ID, b.Name, b.Amount, b.Active, rule,
	)
	if err != nil {
		return fmt.Errorf("failed to save bonus: %w", err)
	}
	return nil
}

func (s *queries) ListBonuses(ctx context.Context) ([]generic.Bonus, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, amount, active, rule_json FROM bonuses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []generic.Bonus
	for rows.Next() {
		var (
			b    generic.Bonus
			rule sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Amount, &b.Active, &rule); err != nil {
			return nil, fmt.Errorf("failed to scan bonus: %w", err)
		}
		if b.Rule, err = decodeRule(rule); err != nil {
			return nil, fmt.Errorf("bonus %s: %w", b.ID, err)
		}
		bonuses = append(bonuses, b)
	}
	return bonuses, rows.Err()
}

func (s *queries) SaveBonusAssignment(ctx context.Context, a generic.BonusAssignment) error {
	var exists bool
	if err := s.q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM bonuses WHERE id = ?)", a.BonusID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check bonus: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", generic.ErrBonusNotFound, a.BonusID)
	}
	if _, err := s.GetEmployee(ctx, a.EmployeeID); err != nil {
		return err
	}

	override := decimal.NullDecimal{}
	if a.AmountOverride != nil {
		override = decimal.NullDecimal{Decimal: *a.AmountOverride, Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bonus_assignments (employee_id, bonus_id, amount_override, active) VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, bonus_id) DO UPDATE SET
			amount_override = excluded.amount_override,
			active = excluded.active`,
		a.EmployeeID, a.BonusID, override, a.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save bonus assignment: %w", err)
	}
	return nil
}

func (s *queries) AssignedBonuses(ctx context.Context, id generic.EmployeeID) ([]generic.AssignedBonus, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT b.id, b.name, b.amount, b.active, b.rule_json,
		       a.employee_id, a.amount_override, a.active
		FROM bonus_assignments a
		JOIN bonuses b ON b.id = a.bonus_id
		WHERE a.employee_id = ?
		ORDER BY b.id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned bonuses: %w", err)
	}
	defer rows.Close()

	var result []generic.AssignedBonus
	for rows.Next() {
		var (
			ab       generic.AssignedBonus
			rule     sql.NullString
			override decimal.NullDecimal
		)
		err := rows.Scan(&ab.Bonus.ID, &ab.Bonus.Name, &ab.Bonus.Amount, &ab.Bonus.Active, &rule,
			&ab.Assignment.EmployeeID, &override, &ab.Assignment.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assigned bonus: %w", err)
		}
		if ab.Bonus.Rule, err = decodeRule(rule); err != nil {
			return nil, fmt.Errorf("bonus %s: %w", ab.Bonus.ID, err)
		}
		ab.Assignment.BonusID = ab.Bonus.ID
		if override.Valid {
			v := override.Decimal
			ab.Assignment.AmountOverride = &v
		}
		result = append(result, ab)
	}
	return result, rows.Err()
}

func decodeRule(rule sql.NullString) (*generic.RuleConfig, error) {
	if !rule.Valid || rule.String == "" {
		return nil, nil
	}
	var rc generic.RuleConfig
	if err := json.Unmarshal([]byte(rule.String), &rc); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return &rc, nil
}

// =============================================================================
// SETTLEMENT & RECEIPTS
// =============================================================================

func (s *queries) PeriodClosed(ctx context.Context, p generic.Period) (bool, error) {
	var closed bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM settlement_periods WHERE period_start = ?)
		     OR EXISTS(SELECT 1 FROM payroll_receipts WHERE period_start = ? AND period_end = ?)`,
		p.Start.String(), p.Start.String(), p.End.String(),
	).Scan(&closed)
	if err != nil {
		return false, fmt.Errorf("failed to check period: %w", err)
	}
	return closed, nil
}

func (s *queries) ClaimPeriod(ctx context.Context, p generic.Period, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO settlement_periods (period_start, period_end, claimed_at) VALUES (?, ?, ?)",
		p.Start.String(), p.End.String(), at.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrPeriodClosed
	}
	if err != nil {
		return fmt.Errorf("failed to claim period: %w", err)
	}
	return nil
}

func (s *queries) SaveReceipt(ctx context.Context, r generic.PayrollReceipt) error {
	var paidAt sql.NullString
	if r.PaidAt != nil {
		paidAt = sql.NullString{String: r.PaidAt.UTC().Format(time.RFC3339), Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payroll_receipts
		(id, employee_id, period_start, period_end, base_salary, total_pay, days_worked,
		 total_bonuses, breakdown_json, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.Period.Start.String(), r.Period.End.String(),
		r.BaseSalary, r.TotalPay, r.DaysWorked, r.TotalBonuses,
		string(r.Breakdown), paidAt, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrPeriodClosed
	}
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

func (s *queries) ListReceipts(ctx context.Context, p generic.Period) ([]generic.PayrollReceipt, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, employee_id, period_start, period_end, base_salary, total_pay, days_worked,
		       total_bonuses, breakdown_json, paid_at, created_at
		FROM payroll_receipts
		WHERE period_start = ? AND period_end = ?
		ORDER BY employee_id`,
		p.Start.String(), p.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []generic.PayrollReceipt
	for rows.Next() {
		var (
			r          generic.PayrollReceipt
			start, end string
			breakdown  string
			paidAt     sql.NullString
			createdAt  string
		)
		err := rows.Scan(&r.ID, &r.EmployeeID, &start, &end, &r.BaseSalary, &r.TotalPay,
			&r.DaysWorked, &r.TotalBonuses, &breakdown, &paidAt, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		if r.Period.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if r.Period.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		r.Breakdown = []byte(breakdown)
		if paidAt.Valid {
			t, err := time.Parse(time.RFC3339, paidAt.String)
			if err != nil {
				return nil, fmt.Errorf("receipt %s: invalid paid_at: %w", r.ID, err)
			}
			r.PaidAt = &t
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// =============================================================================
// VACATION LOG
// =============================================================================

func (s *queries) AppendVacationEntry(ctx context.Context, e generic.VacationLogEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO vacation_log
		(id, employee_id, actor_id, type, days, balance_before, balance_after,
		 description, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, e.ActorID, e.Type, e.Days, e.BalanceBefore, e.BalanceAfter,
		e.Description, nullString(e.IdempotencyKey), e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to append vacation entry: %w", err)
	}
	return nil
}

func (s *queries) VacationEntries(ctx context.Context, id generic.EmployeeID) ([]generic.VacationLogEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, employee_id, actor_id, type, days, balance_before, balance_after,
		       description, idempotency_key, created_at
		FROM vacation_log WHERE employee_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query vacation log: %w", err)
	}
	defer rows.Close()

	var entries []generic.VacationLogEntry
	for rows.Next() {
		var (
			e         generic.VacationLogEntry
			actorID   sql.NullString
			key       sql.NullString
			createdAt string
		)
		err := rows.Scan(&e.ID, &e.EmployeeID, &actorID, &e.Type, &e.Days, &e.BalanceBefore,
			&e.BalanceAfter, &e.Description, &key, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vacation entry: %w", err)
		}
		if actorID.Valid {
			a := actorID.String
			e.ActorID = &a
		}
		e.IdempotencyKey = key.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d generic.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *generic.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func parseNullTime(s sql.NullString) (*generic.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := generic.ParseTimeOfDay(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
