/*
Package payroll turns attendance facts into pay and settles closed weeks.

PURPOSE:
  Calculator is the composition root of the calculation core: it asks the
  attendance aggregator for facts, classifies every day, applies holiday
  multipliers, and adds the bonuses the employee is enrolled in. It never
  writes, so dashboards can preview as often as they like.

  Closer is the only writer: it settles a whole week for every active
  employee in one transaction.

DAY PAY:
  WORKED                         base rate, x multiplier on a holiday
  VACATION, HOLIDAY_REST,
  MEDICAL_*, PAID_LEAVE,
  SCHEDULED_REST                 base rate (holidays never multiply these)
  UNJUSTIFIED_ABSENCE            0, counted as absence
  UNPAID_LEAVE,
  JUSTIFIED_ABSENCE,
  NOT_YET_EMPLOYED               0
  no record, shift scheduled     0, counted as absence
  no record, no shift            0

  A worked holiday counts under HolidaysWorked, not PlainDaysWorked.
  DaysWorked = PlainDaysWorked + HolidaysWorked.

STABILITY:
  Breakdown is persisted verbatim on the receipt. Its JSON encoding depends
  only on the inputs: days are in calendar order and bonus lines are sorted
  by bonus ID.

SEE ALSO:
  - attendance/aggregator.go: DayFact, PeriodFacts
  - bonus/engine.go: Evaluate
  - closer.go: settlement
*/
package payroll

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/bonus"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// BREAKDOWN
// =============================================================================

// Day statuses reported on a DayLine.
const (
	StatusWorked        = "worked"
	StatusHolidayWorked = "holiday_worked"
	StatusPaidOff       = "paid_off"
	StatusAbsent        = "absent"
	StatusUnpaid        = "unpaid"
	StatusNoShift       = "no_shift"
)

// DayLine is one day of the itemized breakdown.
type DayLine struct {
	Date         generic.Date         `json:"date"`
	Incident     generic.IncidentType `json:"incident,omitempty"`
	Status       string               `json:"status"`
	Holiday      string               `json:"holiday,omitempty"`
	Multiplier   *decimal.Decimal     `json:"multiplier,omitempty"`
	Pay          decimal.Decimal      `json:"pay"`
	IsLate       bool                 `json:"is_late"`
	LateForgiven bool                 `json:"late_forgiven"`
	LateMinutes  int                  `json:"late_minutes"`
	ExtraMinutes decimal.Decimal      `json:"extra_minutes"`
}

// BonusLine is one paid bonus. Bonuses that pay nothing are left out.
type BonusLine struct {
	BonusID generic.BonusID `json:"bonus_id"`
	Name    string          `json:"name"`
	Rule    string          `json:"rule"`
	Matches int             `json:"matches"`
	Amount  decimal.Decimal `json:"amount"`
}

// Breakdown is the full result of a payroll calculation.
type Breakdown struct {
	EmployeeID      generic.EmployeeID     `json:"employee_id"`
	Period          generic.Period         `json:"period"`
	BaseRate        decimal.Decimal        `json:"base_rate"`
	Days            []DayLine              `json:"days"`
	Bonuses         []BonusLine            `json:"bonuses"`
	Totals          attendance.PeriodFacts `json:"totals"`
	PlainDaysWorked int                    `json:"plain_days_worked"`
	HolidaysWorked  int                    `json:"holidays_worked"`
	DaysWorked      int                    `json:"days_worked"`
	Absences        int                    `json:"absences"`
	BasePay         decimal.Decimal        `json:"base_pay"`
	TotalBonuses    decimal.Decimal        `json:"total_bonuses"`
	TotalPay        decimal.Decimal        `json:"total_pay"`
}

// JSON is the canonical encoding stored on receipts.
func (b Breakdown) JSON() ([]byte, error) {
	return json.Marshal(b)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Source is the read side the calculator needs.
type Source interface {
	attendance.Source
	GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error)
	AssignedBonuses(ctx context.Context, id generic.EmployeeID) ([]generic.AssignedBonus, error)
}

type Calculator struct {
	source Source
	logger *zap.Logger
}

func NewCalculator(source Source, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{source: source, logger: logger}
}

// WithSource returns a calculator reading from another source, typically
// the view of an enclosing transaction.
func (c *Calculator) WithSource(s Source) *Calculator {
	return &Calculator{source: s, logger: c.logger}
}

// MaxPreviewDays bounds the range Calculate accepts.
const MaxPreviewDays = 366

// Calculate computes the breakdown for one employee over [start, end].
// It is read-only and idempotent.
func (c *Calculator) Calculate(ctx context.Context, id generic.EmployeeID, start, end generic.Date) (Breakdown, error) {
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return Breakdown{}, err
	}
	if p.Len() > MaxPreviewDays {
		return Breakdown{}, &generic.ValidationError{
			Field:   "period",
			Message: fmt.Sprintf("range of %d days exceeds the limit of %d", p.Len(), MaxPreviewDays),
			Err:     generic.ErrInvalidPeriod,
		}
	}
	emp, err := c.source.GetEmployee(ctx, id)
	if err != nil {
		return Breakdown{}, err
	}
	return c.CalculateFor(ctx, *emp, p)
}

// CalculateFor computes the breakdown for an already loaded employee.
func (c *Calculator) CalculateFor(ctx context.Context, emp generic.Employee, p generic.Period) (Breakdown, error) {
	facts, err := attendance.NewAggregator(c.source, c.logger).Aggregate(ctx, emp, p)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		EmployeeID:   emp.ID,
		Period:       p,
		BaseRate:     emp.DailyRate,
		Days:         make([]DayLine, 0, len(facts.Days)),
		Bonuses:      []BonusLine{},
		Totals:       facts.Totals,
		BasePay:      decimal.Zero,
		TotalBonuses: decimal.Zero,
	}

	for _, day := range facts.Days {
		line := c.dayLine(emp, day)
		switch line.Status {
		case StatusWorked:
			b.PlainDaysWorked++
		case StatusHolidayWorked:
			b.HolidaysWorked++
		case StatusAbsent:
			b.Absences++
		}
		b.BasePay = b.BasePay.Add(line.Pay)
		b.Days = append(b.Days, line)
	}
	b.DaysWorked = b.PlainDaysWorked + b.HolidaysWorked

	lines, err := c.bonusLines(ctx, emp.ID, facts)
	if err != nil {
		return Breakdown{}, err
	}
	for _, l := range lines {
		b.TotalBonuses = b.TotalBonuses.Add(l.Amount)
	}
	b.Bonuses = lines
	b.TotalPay = b.BasePay.Add(b.TotalBonuses)
	return b, nil
}

func (c *Calculator) dayLine(emp generic.Employee, day attendance.DayFact) DayLine {
	line := DayLine{
		Date:         day.Date,
		Incident:     day.Incident,
		Pay:          decimal.Zero,
		IsLate:       day.IsLate,
		LateForgiven: day.LateForgiven,
		LateMinutes:  day.LateMinutes,
		ExtraMinutes: day.ExtraMinutes,
	}
	if day.Holiday != nil {
		line.Holiday = day.Holiday.Name
	}

	if !day.HasRecord() {
		line.Status = StatusNoShift
		if day.IsAbsent {
			line.Status = StatusAbsent
		}
		return line
	}

	class, err := attendance.Classify(day.Incident)
	if err != nil {
		c.logger.Warn("unclassified incident treated as unpaid",
			zap.String("employee_id", string(emp.ID)),
			zap.Stringer("date", day.Date),
			zap.Error(&generic.ComputationError{EmployeeID: emp.ID, Date: day.Date, Field: "incident", Err: err}),
		)
		line.Status = StatusUnpaid
		return line
	}

	switch class {
	case attendance.ClassWorked:
		line.Status = StatusWorked
		line.Pay = emp.DailyRate
		if day.Holiday != nil {
			m := day.Holiday.Multiplier
			line.Status = StatusHolidayWorked
			line.Multiplier = &m
			line.Pay = emp.DailyRate.Mul(m)
		}
	case attendance.ClassPaidOff:
		line.Status = StatusPaidOff
		line.Pay = emp.DailyRate
	case attendance.ClassUnjustified:
		line.Status = StatusAbsent
	default:
		line.Status = StatusUnpaid
	}
	return line
}

// bonusLines evaluates every enabled assignment. A rule that cannot be
// evaluated is logged and skipped; the rest of the payroll still computes.
func (c *Calculator) bonusLines(ctx context.Context, id generic.EmployeeID, facts attendance.Facts) ([]BonusLine, error) {
	assigned, err := c.source.AssignedBonuses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load bonuses: %w", err)
	}

	lines := []BonusLine{}
	for _, ab := range assigned {
		if !ab.Enabled() {
			continue
		}
		res, err := bonus.Evaluate(ab.Bonus.Rule, ab.EffectiveAmount(), facts)
		if err != nil {
			c.logger.Warn("bonus rule skipped",
				zap.String("employee_id", string(id)),
				zap.String("bonus_id", string(ab.Bonus.ID)),
				zap.Error(&generic.ComputationError{EmployeeID: id, Field: "bonus." + string(ab.Bonus.ID), Err: err}),
			)
			continue
		}
		if !res.Amount.IsPositive() {
			continue
		}
		lines = append(lines, BonusLine{
			BonusID: ab.Bonus.ID,
			Name:    ab.Bonus.Name,
			Rule:    bonus.String(ab.Bonus.Rule),
			Matches: res.Matches,
			Amount:  res.Amount,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].BonusID < lines[j].BonusID })
	return lines, nil
}
