/*
aggregator.go - Per-day and per-period attendance facts

PURPOSE:
  Merges the incident ledger, the schedule and the holiday calendar into one
  DayFact per calendar day and a PeriodFacts total. The bonus engine and the
  payroll calculator never read storage directly; they read these facts.

RULES:
  Lateness:  only when the record has a check-in AND a shift exists that day.
             late = max(0, check-in - shift start), time-of-day arithmetic only.
             Forgiven lateness counts as 0 but keeps the audit flag.
  Extra:     stored extra hours x 60. Recorded manually, never derived.
  Absent:    UNJUSTIFIED_ABSENCE, or no record on a day with a shift.
  Worked:    WORKED only.

SCHEDULE RESOLUTION:
  An explicit ScheduledShift row wins (nil shift = rest day). Without one,
  the employee's weekly template decides. Days before the hire date with no
  record are never absences.

DEGRADED DATA:
  A record storage could not fully decode, or a late flag with no shift to
  measure against, yields zero lateness for that day. The problem is logged
  as a ComputationError and the rest of the period is still computed.

SEE ALSO:
  - types.go: DayFact, PeriodFacts, Classify
  - bonus/engine.go: consumes Facts
  - payroll/calculator.go: consumes Facts
*/
package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

var minutesPerHour = decimal.NewFromInt(60)

// Source is the read side the aggregator needs.
type Source interface {
	AttendanceInRange(ctx context.Context, id generic.EmployeeID, p generic.Period) ([]generic.AttendanceRecord, error)
	ShiftsInRange(ctx context.Context, id generic.EmployeeID, p generic.Period) ([]generic.ScheduledShift, error)
	HolidaysInRange(ctx context.Context, p generic.Period) ([]generic.Holiday, error)
}

type Aggregator struct {
	source Source
	logger *zap.Logger
}

func NewAggregator(source Source, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{source: source, logger: logger}
}

// Aggregate builds the facts for emp over p. It fails only on invalid input
// or storage errors; bad data on a single day is degraded and logged.
func (a *Aggregator) Aggregate(ctx context.Context, emp generic.Employee, p generic.Period) (Facts, error) {
	if err := p.Validate(); err != nil {
		return Facts{}, err
	}

	records, err := a.source.AttendanceInRange(ctx, emp.ID, p)
	if err != nil {
		return Facts{}, fmt.Errorf("load attendance: %w", err)
	}
	shifts, err := a.source.ShiftsInRange(ctx, emp.ID, p)
	if err != nil {
		return Facts{}, fmt.Errorf("load schedule: %w", err)
	}
	holidays, err := a.source.HolidaysInRange(ctx, p)
	if err != nil {
		return Facts{}, fmt.Errorf("load holidays: %w", err)
	}

	byDay := make(map[generic.Date]generic.AttendanceRecord, len(records))
	for _, r := range records {
		byDay[r.Date] = r
	}
	scheduled := make(map[generic.Date]*generic.Shift, len(shifts))
	for _, s := range shifts {
		scheduled[s.Date] = s.Shift
	}
	holidayOn := make(map[generic.Date]generic.Holiday, len(holidays))
	for _, h := range holidays {
		holidayOn[h.Date] = h
	}

	facts := Facts{EmployeeID: emp.ID, Period: p, Totals: PeriodFacts{ExtraMinutes: decimal.Zero}}
	for _, day := range p.Days() {
		shift, explicit := scheduled[day]
		if !explicit {
			shift = emp.Template.ShiftOn(day)
		}

		var rec *generic.AttendanceRecord
		if r, ok := byDay[day]; ok {
			rec = &r
		}

		fact := a.dayFact(emp, day, rec, shift)
		if h, ok := holidayOn[day]; ok {
			fact.Holiday = &h
		}

		facts.Days = append(facts.Days, fact)
		facts.Totals.LateMinutes += fact.LateMinutes
		facts.Totals.ExtraMinutes = facts.Totals.ExtraMinutes.Add(fact.ExtraMinutes)
		if fact.IsAbsent {
			facts.Totals.UnjustifiedAbsences++
		}
		if fact.IsWorked {
			facts.Totals.WorkedDays++
		}
	}
	return facts, nil
}

func (a *Aggregator) dayFact(emp generic.Employee, day generic.Date, rec *generic.AttendanceRecord, shift *generic.Shift) DayFact {
	fact := DayFact{Date: day, HasShift: shift != nil, ExtraMinutes: decimal.Zero}

	if rec == nil {
		beforeHire := !emp.HireDate.IsZero() && day.Before(emp.HireDate)
		fact.IsAbsent = shift != nil && !beforeHire
		return fact
	}

	fact.Incident = rec.Incident
	fact.IsLate = rec.IsLate
	fact.LateForgiven = rec.LateIgnored
	fact.IsAbsent = rec.Incident == generic.IncidentUnjustifiedAbsence
	fact.IsWorked = rec.Incident == generic.IncidentWorked

	late, err := lateMinutes(rec, shift)
	if err != nil {
		a.degrade(emp.ID, day, "late_minutes", err)
		late = 0
	}
	if rec.LateIgnored {
		late = 0
	}
	fact.LateMinutes = late

	if rec.ExtraHours < 0 {
		a.degrade(emp.ID, day, "extra_hours", fmt.Errorf("negative extra hours %v", rec.ExtraHours))
	} else {
		fact.ExtraMinutes = decimal.NewFromFloat(rec.ExtraHours).Mul(minutesPerHour)
	}
	return fact
}

var errMissingShift = errors.New("record flagged late but no shift is scheduled")

// lateMinutes compares the check-in with the shift start as times of day.
func lateMinutes(rec *generic.AttendanceRecord, shift *generic.Shift) (int, error) {
	if rec.Malformed != "" {
		return 0, errors.New(rec.Malformed)
	}
	if rec.CheckIn == nil {
		return 0, nil
	}
	if shift == nil {
		if rec.IsLate {
			return 0, errMissingShift
		}
		return 0, nil
	}
	return max(0, rec.CheckIn.MinutesAfter(shift.Start)), nil
}

func (a *Aggregator) degrade(id generic.EmployeeID, day generic.Date, field string, cause error) {
	cerr := &generic.ComputationError{EmployeeID: id, Date: day, Field: field, Err: cause}
	a.logger.Warn("degraded attendance computation",
		zap.String("employee_id", string(id)),
		zap.Stringer("date", day),
		zap.String("field", field),
		zap.Error(cerr),
	)
}
