/*
Package generic provides the data model shared by the payroll engine.

PURPOSE:
  Domain packages (attendance, bonus, vacation, payroll) compute over the
  types declared here, and storage implementations persist them. Nothing in
  this package calculates pay; it only names things and guards invariants
  that belong to a single value.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: daily base rate, active flag, weekly template, vacation balance
  - AttendanceRecord: the one record per (employee, date) with its incident
  - ScheduledShift: the shift expected on a date, or nil for a rest day
  - Bonus / RuleConfig / BonusAssignment: the admin-configured bonus catalog
  - PayrollReceipt: immutable settlement snapshot
  - VacationLogEntry: append-only balance adjustment
  - Actor: who is calling and what they may do

DESIGN PRINCIPLES:
  1. Precision: money, multipliers and vacation days use decimal.Decimal
  2. Time safety: shift and clock times are TimeOfDay, days are Date
  3. Closed sets: incident types, rule concepts, operators, scopes and
     behaviors are typed constants, never free strings in logic

SEE ALSO:
  - incident.go: IncidentType enum
  - time.go: Date, TimeOfDay, Holiday
  - store.go: persistence interfaces
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type BonusID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is owned by the HR collaborator. The engine reads DailyRate,
// Active and Template, and changes VacationBalance only through the
// vacation ledger.
type Employee struct {
	ID              EmployeeID      `json:"id"`
	Name            string          `json:"name"`
	DailyRate       decimal.Decimal `json:"daily_rate"`
	Active          bool            `json:"active"`
	HireDate        Date            `json:"hire_date"`
	Template        WeeklyTemplate  `json:"template"`
	VacationBalance decimal.Decimal `json:"vacation_balance"`
}

// Shift is a scheduled working window.
type Shift struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// WeeklyTemplate is the employee's default week, indexed by time.Weekday.
// A nil entry is a rest day.
type WeeklyTemplate [7]*Shift

// WorkingDays counts the non-rest days of the template. It is the
// employee's annual vacation entitlement in days.
func (w WeeklyTemplate) WorkingDays() int {
	n := 0
	for _, s := range w {
		if s != nil {
			n++
		}
	}
	return n
}

// ShiftOn returns the template shift for the weekday of d.
func (w WeeklyTemplate) ShiftOn(d Date) *Shift {
	return w[d.Weekday()]
}

// StandardTemplate builds a template working the given weekdays with one
// shared shift.
func StandardTemplate(shift Shift, days ...time.Weekday) WeeklyTemplate {
	var w WeeklyTemplate
	for _, d := range days {
		s := shift
		w[d] = &s
	}
	return w
}

// =============================================================================
// SCHEDULE & ATTENDANCE
// =============================================================================

// ScheduledShift is the schedule for one (employee, date). Shift == nil
// marks an explicit rest day.
type ScheduledShift struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Date       Date       `json:"date"`
	Shift      *Shift     `json:"shift,omitempty"`
}

// AttendanceRecord is the sole record for an (employee, date).
type AttendanceRecord struct {
	EmployeeID  EmployeeID   `json:"employee_id"`
	Date        Date         `json:"date"`
	Incident    IncidentType `json:"incident"`
	CheckIn     *TimeOfDay   `json:"check_in,omitempty"`
	CheckOut    *TimeOfDay   `json:"check_out,omitempty"`
	IsLate      bool         `json:"is_late"`
	LateIgnored bool         `json:"late_ignored"`
	ExtraHours  float64      `json:"extra_hours"`
	Notes       string       `json:"notes,omitempty"`

	// Photographic check-in/out evidence references, purged at settlement.
	CheckInPhoto  string `json:"check_in_photo,omitempty"`
	CheckOutPhoto string `json:"check_out_photo,omitempty"`

	// Malformed is set by storage when a stored value could not be decoded
	// (for example an unparseable check-in time). The record is still
	// returned so the rest of the day can be computed.
	Malformed string `json:"-"`
}

// =============================================================================
// BONUS CATALOG
// =============================================================================

// Concept selects which number a rule compares.
type Concept string

const (
	ConceptLateMinutes         Concept = "late_minutes"
	ConceptExtraMinutes        Concept = "extra_minutes"
	ConceptUnjustifiedAbsences Concept = "unjustified_absences"
	ConceptAttendance          Concept = "attendance"
)

// Operator compares the actual value against the threshold.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
)

// Scope decides whether a rule runs once per day or once per period.
type Scope string

const (
	ScopeDaily             Scope = "daily"
	ScopePeriodTotal       Scope = "period_total"
	ScopePeriodAccumulated Scope = "period_accumulated"
)

// IsPeriod reports whether the scope evaluates the period totals.
func (s Scope) IsPeriod() bool { return s == ScopePeriodTotal || s == ScopePeriodAccumulated }

// Behavior is the payout shape once a rule matches.
type Behavior string

const (
	BehaviorFixedAmount  Behavior = "fixed_amount"
	BehaviorPayPerUnit   Behavior = "pay_per_unit"
	BehaviorPerDayWorked Behavior = "per_day_worked"
)

// RuleConfig is the five-field rule attached to a conditional bonus.
type RuleConfig struct {
	Concept   Concept         `json:"concept"`
	Operator  Operator        `json:"operator"`
	Threshold decimal.Decimal `json:"threshold"`
	Scope     Scope           `json:"scope"`
	Behavior  Behavior        `json:"behavior"`
}

// Bonus is a catalog entry. Rule == nil means it pays Amount once per period.
type Bonus struct {
	ID     BonusID         `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Active bool            `json:"active"`
	Rule   *RuleConfig     `json:"rule,omitempty"`
}

// BonusAssignment enables a bonus for one employee, optionally overriding
// its amount.
type BonusAssignment struct {
	EmployeeID     EmployeeID       `json:"employee_id"`
	BonusID        BonusID          `json:"bonus_id"`
	AmountOverride *decimal.Decimal `json:"amount_override,omitempty"`
	Active         bool             `json:"active"`
}

// AssignedBonus joins a catalog entry with an employee's assignment.
type AssignedBonus struct {
	Bonus      Bonus
	Assignment BonusAssignment
}

// Enabled is true only when both the catalog entry and the assignment are active.
func (a AssignedBonus) Enabled() bool { return a.Bonus.Active && a.Assignment.Active }

// EffectiveAmount is the per-employee override when present, else the catalog amount.
func (a AssignedBonus) EffectiveAmount() decimal.Decimal {
	if a.Assignment.AmountOverride != nil {
		return *a.Assignment.AmountOverride
	}
	return a.Bonus.Amount
}

// =============================================================================
// PAYROLL RECEIPT
// =============================================================================

// PayrollReceipt is the immutable snapshot written at settlement. At most one
// exists per (employee, period).
type PayrollReceipt struct {
	ID           string          `json:"id"`
	EmployeeID   EmployeeID      `json:"employee_id"`
	Period       Period          `json:"period"`
	BaseSalary   decimal.Decimal `json:"base_salary"`
	TotalPay     decimal.Decimal `json:"total_pay"`
	DaysWorked   int             `json:"days_worked"`
	TotalBonuses decimal.Decimal `json:"total_bonuses"`
	Breakdown    []byte          `json:"-"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// =============================================================================
// VACATION LOG
// =============================================================================

type VacationEntryType string

const (
	VacationAccrual    VacationEntryType = "accrual"
	VacationUsage      VacationEntryType = "usage"
	VacationAdjustment VacationEntryType = "adjustment"
)

// Valid reports whether t is one of the three entry types.
func (t VacationEntryType) Valid() bool {
	switch t {
	case VacationAccrual, VacationUsage, VacationAdjustment:
		return true
	}
	return false
}

// VacationLogEntry is one append-only balance change.
// INVARIANT: BalanceAfter = BalanceBefore + Days.
type VacationLogEntry struct {
	ID             string            `json:"id"`
	EmployeeID     EmployeeID        `json:"employee_id"`
	ActorID        *string           `json:"actor_id,omitempty"`
	Type           VacationEntryType `json:"type"`
	Days           decimal.Decimal   `json:"days"`
	BalanceBefore  decimal.Decimal   `json:"balance_before"`
	BalanceAfter   decimal.Decimal   `json:"balance_after"`
	Description    string            `json:"description"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// =============================================================================
// ACTOR - Explicit caller identity and capability
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleSystem   Role = "system"
)

type Capability string

const (
	CapSettlePayroll  Capability = "settle_payroll"
	CapEditAttendance Capability = "edit_attendance"
	CapAdjustVacation Capability = "adjust_vacation"
	CapRequestLeave   Capability = "request_leave"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin:    {CapSettlePayroll, CapEditAttendance, CapAdjustVacation, CapRequestLeave},
	RoleSystem:   {CapSettlePayroll, CapAdjustVacation},
	RoleManager:  {CapEditAttendance, CapRequestLeave},
	RoleEmployee: {CapRequestLeave},
}

// Actor identifies the caller of a write operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is used by scheduled jobs.
var SystemActor = Actor{Role: RoleSystem}

// Can reports whether the actor's role grants the capability.
func (a Actor) Can(c Capability) bool {
	for _, granted := range roleCapabilities[a.Role] {
		if granted == c {
			return true
		}
	}
	return false
}

// Ref returns the acting user ID for audit rows, or nil for system actions.
func (a Actor) Ref() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}
