/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request types carry
  validator tags and are checked before any domain call; domain types with
  stable JSON (Employee, Holiday, VacationLogEntry, payroll.Breakdown) are
  returned as-is.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types that differ from the domain model

SEE ALSO:
  - handlers.go: Uses these types
  - bonus/factory.go: BonusJSON, the catalog request body
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

var validate = validator.New()

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployeeRequest creates or replaces an employee. The weekly template
// is one shift worked on the listed weekdays.
type CreateEmployeeRequest struct {
	ID              string          `json:"id" validate:"required,max=64"`
	Name            string          `json:"name" validate:"required,max=200"`
	DailyRate       decimal.Decimal `json:"daily_rate"`
	Active          *bool           `json:"active,omitempty"`
	HireDate        string          `json:"hire_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	WorkingDays     []string        `json:"working_days" validate:"dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Shift           *ShiftDTO       `json:"shift,omitempty" validate:"required_with=WorkingDays"`
	VacationBalance decimal.Decimal `json:"vacation_balance"`
}

type ShiftDTO struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// SetDayRequest is an admin correction of one employee-day. Omitted
// optional fields keep their stored value.
type SetDayRequest struct {
	Incident    string  `json:"incident" validate:"required"`
	CheckIn     *string `json:"check_in,omitempty"`
	CheckOut    *string `json:"check_out,omitempty"`
	LateIgnored *bool   `json:"late_ignored,omitempty"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// IncidentRangeRequest approves an incident over [From, To].
type IncidentRangeRequest struct {
	Incident string `json:"incident" validate:"required"`
	From     string `json:"from" validate:"required,datetime=2006-01-02"`
	To       string `json:"to" validate:"required,datetime=2006-01-02"`
	Notes    string `json:"notes,omitempty" validate:"max=1000"`
}

type IncidentRangeResponse struct {
	Days          int                       `json:"days"`
	VacationEntry *generic.VacationLogEntry `json:"vacation_entry,omitempty"`
}

type ScheduleShiftRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Start string `json:"start,omitempty" validate:"required_with=End"`
	End   string `json:"end,omitempty" validate:"required_with=Start"`
}

// =============================================================================
// VACATION
// =============================================================================

type VacationAdjustmentRequest struct {
	Days        decimal.Decimal `json:"days"`
	Type        string          `json:"type" validate:"required,oneof=accrual usage adjustment"`
	Description string          `json:"description" validate:"required,max=500"`
}

// =============================================================================
// CATALOGS
// =============================================================================

type HolidayRequest struct {
	Date       string          `json:"date" validate:"required,datetime=2006-01-02"`
	Name       string          `json:"name" validate:"required,max=200"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type AssignBonusRequest struct {
	BonusID        string           `json:"bonus_id" validate:"required,max=64"`
	AmountOverride *decimal.Decimal `json:"amount_override,omitempty"`
	Active         *bool            `json:"active,omitempty"`
}

// =============================================================================
// PAYROLL
// =============================================================================

type ClosePeriodRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	MarkAsPaid  bool   `json:"mark_as_paid"`
}

// ReceiptDTO exposes a receipt with its stored breakdown inlined.
type ReceiptDTO struct {
	ID           string             `json:"id"`
	EmployeeID   generic.EmployeeID `json:"employee_id"`
	Period       generic.Period     `json:"period"`
	BaseSalary   decimal.Decimal    `json:"base_salary"`
	TotalPay     decimal.Decimal    `json:"total_pay"`
	DaysWorked   int                `json:"days_worked"`
	TotalBonuses decimal.Decimal    `json:"total_bonuses"`
	Breakdown    json.RawMessage    `json:"breakdown"`
	PaidAt       *time.Time         `json:"paid_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toReceiptDTO(r generic.PayrollReceipt) ReceiptDTO {
	return ReceiptDTO{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		Period:       r.Period,
		BaseSalary:   r.BaseSalary,
		TotalPay:     r.TotalPay,
		DaysWorked:   r.DaysWorked,
		TotalBonuses: r.TotalBonuses,
		Breakdown:    json.RawMessage(r.Breakdown),
		PaidAt:       r.PaidAt,
		CreatedAt:    r.CreatedAt,
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
