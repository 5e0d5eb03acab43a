package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - A calendar day with no time-of-day component
// =============================================================================

// Date is a calendar day. It is always normalized to midnight UTC so two
// Dates built from the same year/month/day compare equal, and a Date can
// never carry a stray clock time into a lateness calculation.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s), Err: err}
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }
func (d Date) String() string        { return d.t.Format(dateLayout) }

// WeekStart returns the Monday of the week containing d.
func (d Date) WeekStart() Date {
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return d.AddDays(-offset)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of calendar days from 'from' to 'to'.
func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

// =============================================================================
// TIME OF DAY - Shift starts, check-ins, check-outs
// =============================================================================

// TimeOfDay is a wall-clock time with no date attached, stored as seconds
// since midnight. Shift and attendance times are only ever compared with
// each other, so there is no date to get wrong.
type TimeOfDay struct {
	seconds int
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{seconds: hour*3600 + minute*60 + second}
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (use HH:MM or HH:MM:SS)", s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || v < 0 || v > limits[i] {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q (use HH:MM or HH:MM:SS)", s)
		}
		vals[i] = v
	}
	return NewTimeOfDay(vals[0], vals[1], vals[2]), nil
}

func (t TimeOfDay) Hour() int    { return t.seconds / 3600 }
func (t TimeOfDay) Minute() int  { return t.seconds % 3600 / 60 }
func (t TimeOfDay) Second() int  { return t.seconds % 60 }
func (t TimeOfDay) Seconds() int { return t.seconds }

// MinutesAfter returns how many whole minutes t is after other; negative
// when t is earlier.
func (t TimeOfDay) MinutesAfter(other TimeOfDay) int {
	return (t.seconds - other.seconds) / 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return &ValidationError{Field: "time", Message: err.Error()}
	}
	*t = parsed
	return nil
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a dated holiday with the pay multiplier applied to hours worked
// on it. One holiday per date.
type Holiday struct {
	Date       Date            `json:"date"`
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Validate rejects multipliers below 1.
func (h Holiday) Validate() error {
	if h.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "holiday date is required"}
	}
	if strings.TrimSpace(h.Name) == "" {
		return &ValidationError{Field: "name", Message: "holiday name is required"}
	}
	if h.Multiplier.LessThan(decimal.NewFromInt(1)) {
		return &ValidationError{Field: "multiplier", Message: "holiday multiplier must be >= 1"}
	}
	return nil
}
