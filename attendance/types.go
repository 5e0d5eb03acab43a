// Package attendance turns the incident ledger, the schedule and the holiday
// calendar into per-day and per-period facts, and owns the write paths that
// correct the ledger (admin day edits and incident requests).
package attendance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// FACTS - What the bonus engine and the calculator read
// =============================================================================

// DayFact is the merged view of one employee-day.
type DayFact struct {
	Date     generic.Date         `json:"date"`
	Incident generic.IncidentType `json:"incident,omitempty"` // zero when no record exists
	HasShift bool                 `json:"has_shift"`
	Holiday  *generic.Holiday     `json:"holiday,omitempty"`

	// IsLate is the audit flag stored on the record. It survives forgiveness.
	IsLate       bool `json:"is_late"`
	LateForgiven bool `json:"late_forgiven"`

	LateMinutes  int             `json:"late_minutes"`
	ExtraMinutes decimal.Decimal `json:"extra_minutes"`
	IsAbsent     bool            `json:"is_absent"`
	IsWorked     bool            `json:"is_worked"`
}

// HasRecord reports whether an attendance record exists for the day.
func (d DayFact) HasRecord() bool { return d.Incident != 0 }

// PeriodFacts are the sums over a date range.
type PeriodFacts struct {
	LateMinutes         int             `json:"late_minutes"`
	ExtraMinutes        decimal.Decimal `json:"extra_minutes"`
	UnjustifiedAbsences int             `json:"unjustified_absences"`
	WorkedDays          int             `json:"worked_days"`
}

// Facts is everything computed for one employee over one period.
type Facts struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Period     generic.Period     `json:"period"`
	Days       []DayFact          `json:"days"`
	Totals     PeriodFacts        `json:"totals"`
}

// =============================================================================
// DAY CLASSIFICATION
// =============================================================================

// DayClass is how payroll treats an incident.
type DayClass int

const (
	ClassWorked      DayClass = iota + 1 // paid at base rate, multiplied on holidays
	ClassPaidOff                         // paid at base rate, never multiplied
	ClassUnjustified                     // unpaid, counts as an absence
	ClassUnpaid                          // unpaid, not an absence
)

// Classify maps every incident type to its payroll class. The switch lists
// all incident types; adding one without classifying it returns an error.
func Classify(i generic.IncidentType) (DayClass, error) {
	switch i {
	case generic.IncidentWorked:
		return ClassWorked, nil
	case generic.IncidentVacation,
		generic.IncidentHolidayRest,
		generic.IncidentMedicalGeneral,
		generic.IncidentMedicalWork,
		generic.IncidentPaidLeave,
		generic.IncidentScheduledRest:
		return ClassPaidOff, nil
	case generic.IncidentUnjustifiedAbsence:
		return ClassUnjustified, nil
	case generic.IncidentUnpaidLeave,
		generic.IncidentJustifiedAbsence,
		generic.IncidentNotYetEmployed:
		return ClassUnpaid, nil
	default:
		return 0, &generic.ValidationError{Field: "incident", Message: i.String(), Err: generic.ErrUnknownIncident}
	}
}

func (c DayClass) String() string {
	switch c {
	case ClassWorked:
		return "worked"
	case ClassPaidOff:
		return "paid_off"
	case ClassUnjustified:
		return "unjustified"
	case ClassUnpaid:
		return "unpaid"
	}
	return "unknown"
}

// IsPaid reports whether the class earns the daily base rate.
func (c DayClass) IsPaid() bool { return c == ClassWorked || c == ClassPaidOff }
