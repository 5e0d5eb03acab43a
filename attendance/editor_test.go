package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/vacation"
)

var admin = generic.Actor{ID: "admin-1", Role: generic.RoleAdmin}

func newEditor(s generic.Store) *attendance.Editor {
	return attendance.NewEditor(s, vacation.NewLedger(s, nil), nil)
}

func balance(t *testing.T, s generic.Store, id generic.EmployeeID) decimal.Decimal {
	t.Helper()
	emp, err := s.GetEmployee(context.Background(), id)
	require.NoError(t, err)
	return emp.VacationBalance
}

func TestSetDayIncident_VacationToggleRoundTrip(t *testing.T) {
	// GIVEN: balance 5 and a worked Monday
	// WHEN: the day is edited to VACATION, then back to WORKED
	// THEN: the balance goes 5 -> 4 -> 5 with one usage and one adjustment entry

	emp := sixDayEmployee("e1")
	emp.VacationBalance = decimal.NewFromInt(5)
	s := newStore(t, emp)
	record(t, s, generic.AttendanceRecord{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked})
	editor := newEditor(s)
	ctx := context.Background()

	res, err := editor.SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentVacation})
	require.NoError(t, err)
	require.NotNil(t, res.VacationEntry)
	assert.Equal(t, generic.VacationUsage, res.VacationEntry.Type)
	assert.True(t, balance(t, s, "e1").Equal(decimal.NewFromInt(4)))

	res, err = editor.SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked})
	require.NoError(t, err)
	require.NotNil(t, res.VacationEntry)
	assert.Equal(t, generic.VacationAdjustment, res.VacationEntry.Type)
	assert.True(t, balance(t, s, "e1").Equal(decimal.NewFromInt(5)))

	entries, err := s.VacationEntries(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "admin-1", *entries[0].ActorID)
	assert.NoError(t, vacation.NewLedger(s, nil).Verify(ctx, "e1"))
}

func TestSetDayIncident_NoToggleLeavesLedgerAlone(t *testing.T) {
	emp := sixDayEmployee("e1")
	emp.VacationBalance = decimal.NewFromInt(5)
	s := newStore(t, emp)

	res, err := newEditor(s).SetDayIncident(context.Background(), admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentMedicalGeneral})
	require.NoError(t, err)

	assert.Nil(t, res.VacationEntry)
	assert.Equal(t, generic.IncidentMedicalGeneral, res.Record.Incident)
	entries, _ := s.VacationEntries(context.Background(), "e1")
	assert.Empty(t, entries)
}

func TestSetDayIncident_CheckInRecomputesLateness(t *testing.T) {
	emp := sixDayEmployee("e1")
	s := newStore(t, emp)
	editor := newEditor(s)
	ctx := context.Background()

	res, err := editor.SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked, CheckIn: tod("08:15")})
	require.NoError(t, err)
	assert.True(t, res.Record.IsLate)

	forgive := true
	notes := "traffic"
	res, err = editor.SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked, LateIgnored: &forgive, Notes: &notes})
	require.NoError(t, err)
	assert.True(t, res.Record.IsLate, "omitted check-in keeps the stored flag")
	assert.True(t, res.Record.LateIgnored)
	assert.Equal(t, "traffic", res.Record.Notes)
	require.NotNil(t, res.Record.CheckIn)
	assert.Equal(t, "08:15:00", res.Record.CheckIn.String())

	res, err = editor.SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked, CheckIn: tod("07:50")})
	require.NoError(t, err)
	assert.False(t, res.Record.IsLate)
}

func TestSetDayIncident_RequiresCapability(t *testing.T) {
	s := newStore(t, sixDayEmployee("e1"))
	employee := generic.Actor{ID: "e1", Role: generic.RoleEmployee}

	_, err := newEditor(s).SetDayIncident(context.Background(), employee, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked})

	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestSetDayIncident_UnknownEmployee(t *testing.T) {
	s := newStore(t)

	_, err := newEditor(s).SetDayIncident(context.Background(), admin, attendance.DayEdit{EmployeeID: "ghost", Date: monday, Incident: generic.IncidentWorked})

	assert.True(t, generic.IsNotFound(err))
}

func TestSetDayIncident_InvalidIncident(t *testing.T) {
	s := newStore(t, sixDayEmployee("e1"))

	_, err := newEditor(s).SetDayIncident(context.Background(), admin, attendance.DayEdit{EmployeeID: "e1", Date: monday})

	assert.ErrorIs(t, err, generic.ErrUnknownIncident)
}

func TestSetDayIncident_SettledWeekIsImmutable(t *testing.T) {
	// GIVEN: a worked Monday in a week already claimed for settlement
	// WHEN: the day is edited to VACATION
	// THEN: the edit fails with ErrPeriodClosed and neither the record nor
	//       the balance changes

	emp := sixDayEmployee("e1")
	emp.VacationBalance = decimal.NewFromInt(5)
	s := newStore(t, emp)
	record(t, s, generic.AttendanceRecord{EmployeeID: "e1", Date: monday, Incident: generic.IncidentWorked})
	ctx := context.Background()
	require.NoError(t, s.ClaimPeriod(ctx, week, time.Now()))

	_, err := newEditor(s).SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday.AddDays(6), Incident: generic.IncidentVacation})
	assert.ErrorIs(t, err, generic.ErrPeriodClosed)
	_, err = newEditor(s).SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday, Incident: generic.IncidentVacation})
	assert.ErrorIs(t, err, generic.ErrPeriodClosed)

	rec, err := s.GetAttendance(ctx, "e1", monday)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, generic.IncidentWorked, rec.Incident)
	assert.True(t, balance(t, s, "e1").Equal(decimal.NewFromInt(5)))
	entries, _ := s.VacationEntries(ctx, "e1")
	assert.Empty(t, entries)

	// The following week is still open.
	_, err = newEditor(s).SetDayIncident(ctx, admin, attendance.DayEdit{EmployeeID: "e1", Date: monday.AddDays(7), Incident: generic.IncidentWorked})
	assert.NoError(t, err)
}
