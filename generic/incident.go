package generic

import (
	"fmt"
	"strings"
)

// IncidentType classifies one employee-day. It is a closed set: the zero
// value is invalid and parsing rejects anything not listed here.
type IncidentType uint8

const (
	IncidentWorked IncidentType = iota + 1
	IncidentUnjustifiedAbsence
	IncidentJustifiedAbsence
	IncidentPaidLeave
	IncidentUnpaidLeave
	IncidentMedicalGeneral
	IncidentMedicalWork
	IncidentVacation
	IncidentHolidayRest
	IncidentScheduledRest
	IncidentNotYetEmployed
)

var incidentNames = map[IncidentType]string{
	IncidentWorked:             "WORKED",
	IncidentUnjustifiedAbsence: "UNJUSTIFIED_ABSENCE",
	IncidentJustifiedAbsence:   "JUSTIFIED_ABSENCE",
	IncidentPaidLeave:          "PAID_LEAVE",
	IncidentUnpaidLeave:        "UNPAID_LEAVE",
	IncidentMedicalGeneral:     "MEDICAL_GENERAL",
	IncidentMedicalWork:        "MEDICAL_WORK",
	IncidentVacation:           "VACATION",
	IncidentHolidayRest:        "HOLIDAY_REST",
	IncidentScheduledRest:      "SCHEDULED_REST",
	IncidentNotYetEmployed:     "NOT_YET_EMPLOYED",
}

// AllIncidentTypes lists every valid incident in declaration order.
func AllIncidentTypes() []IncidentType {
	all := make([]IncidentType, 0, len(incidentNames))
	for i := IncidentWorked; i <= IncidentNotYetEmployed; i++ {
		all = append(all, i)
	}
	return all
}

func (i IncidentType) Valid() bool {
	_, ok := incidentNames[i]
	return ok
}

func (i IncidentType) String() string {
	if name, ok := incidentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("IncidentType(%d)", uint8(i))
}

// ParseIncidentType accepts the canonical upper-case names, case-insensitively.
func ParseIncidentType(s string) (IncidentType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range incidentNames {
		if name == want {
			return i, nil
		}
	}
	return 0, &ValidationError{Field: "incident", Message: fmt.Sprintf("unknown incident type %q", s), Err: ErrUnknownIncident}
}

func (i IncidentType) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, &ValidationError{Field: "incident", Message: i.String(), Err: ErrUnknownIncident}
	}
	return []byte(i.String()), nil
}

func (i *IncidentType) UnmarshalText(b []byte) error {
	parsed, err := ParseIncidentType(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
