package vacation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ENTITLEMENT & WEEKLY ACCRUAL
// =============================================================================

// Entitlement is the annual vacation entitlement in days: the number of
// non-rest days in the employee's weekly template.
func Entitlement(t generic.WeeklyTemplate) decimal.Decimal {
	return decimal.NewFromInt(int64(t.WorkingDays()))
}

// WeeklyAccrual is the amount credited per settled week: entitlement / 52.
func WeeklyAccrual(t generic.WeeklyTemplate) decimal.Decimal {
	return Entitlement(t).Div(decimal.NewFromInt(generic.WeeksPerYear))
}

// AccrualKey identifies the accrual of one employee for one week.
func AccrualKey(id generic.EmployeeID, week generic.Period) string {
	return fmt.Sprintf("accrual:%s:%s", id, week.Start)
}

// AccrueWeek credits the weekly accrual for emp. It returns nil when the
// employee has no working days to accrue from. Accruing the same week
// twice fails with ErrDuplicateIdempotencyKey.
func (l *Ledger) AccrueWeek(ctx context.Context, emp generic.Employee, week generic.Period) (*generic.VacationLogEntry, error) {
	days := WeeklyAccrual(emp.Template)
	if days.IsZero() {
		return nil, nil
	}
	entry, err := l.Adjust(ctx, Adjustment{
		EmployeeID:     emp.ID,
		Days:           days,
		Type:           generic.VacationAccrual,
		Description:    fmt.Sprintf("Weekly accrual %s", week),
		IdempotencyKey: AccrualKey(emp.ID, week),
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// =============================================================================
// REQUEST ADMISSION
// =============================================================================

// CheckRequest enforces the incident-request rule: a full year of
// entitlement must be banked before any vacation can be requested.
func CheckRequest(emp generic.Employee) error {
	need := Entitlement(emp.Template)
	if emp.VacationBalance.LessThan(need) {
		return &generic.ValidationError{
			Field:   "vacation_balance",
			Message: fmt.Sprintf("balance %s is below the annual entitlement of %s days", emp.VacationBalance, need),
			Err:     generic.ErrInsufficientVacation,
		}
	}
	return nil
}

// =============================================================================
// DAY TOGGLE
// =============================================================================

// Toggle describes the ledger change caused by re-classifying one day.
type Toggle struct {
	Days decimal.Decimal
	Type generic.VacationEntryType
}

// DayToggle returns the adjustment for moving a day from previous to next.
// Entering VACATION uses one day; leaving it gives the day back. previous
// is zero when the day had no record.
func DayToggle(previous, next generic.IncidentType) (Toggle, bool) {
	wasVacation := previous == generic.IncidentVacation
	isVacation := next == generic.IncidentVacation
	switch {
	case !wasVacation && isVacation:
		return Toggle{Days: decimal.NewFromInt(-1), Type: generic.VacationUsage}, true
	case wasVacation && !isVacation:
		return Toggle{Days: decimal.NewFromInt(1), Type: generic.VacationAdjustment}, true
	}
	return Toggle{}, false
}
