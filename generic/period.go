package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive date range every calculation runs over
// =============================================================================

// Period is an inclusive calendar range [Start, End].
//
// Examples:
//   - Settlement week: Monday - Sunday
//   - Dashboard preview: any caller-chosen range
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewPeriod(start, end Date) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects empty bounds and ranges that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Message: "period start and end are required", Err: ErrInvalidPeriod}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Message: fmt.Sprintf("period %s ends before it starts", p), Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every calendar day in the period, in order.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int { return DaysBetween(p.Start, p.End) + 1 }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// SETTLEMENT WEEK
// =============================================================================

// WeeksPerYear is the divisor for weekly vacation accrual.
const WeeksPerYear = 52

// WeekOf returns the canonical settlement week (Monday - Sunday) containing d.
func WeekOf(d Date) Period {
	start := d.WeekStart()
	return Period{Start: start, End: start.AddDays(6)}
}

// PreviousPeriod returns the period of equal length ending the day before p starts.
func (p Period) PreviousPeriod() Period {
	end := p.Start.AddDays(-1)
	return Period{Start: end.AddDays(-(p.Len() - 1)), End: end}
}
