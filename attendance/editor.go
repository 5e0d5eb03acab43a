package attendance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/vacation"
)

// =============================================================================
// DAY EDITOR - Admin corrections to one (employee, date)
// =============================================================================

// DayEdit is one correction. Nil optional fields keep the stored value.
type DayEdit struct {
	EmployeeID  generic.EmployeeID
	Date        generic.Date
	Incident    generic.IncidentType
	CheckIn     *generic.TimeOfDay
	CheckOut    *generic.TimeOfDay
	LateIgnored *bool
	Notes       *string
}

// DayEditResult is the stored record and, when the edit moved the day into
// or out of VACATION, the ledger entry it produced.
type DayEditResult struct {
	Record        generic.AttendanceRecord
	VacationEntry *generic.VacationLogEntry
}

type Editor struct {
	store  generic.Store
	ledger *vacation.Ledger
	logger *zap.Logger
}

func NewEditor(store generic.Store, ledger *vacation.Ledger, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{store: store, ledger: ledger, logger: logger}
}

// SetDayIncident rewrites the record for one employee-day and keeps the
// vacation balance in step, in one unit of work.
func (e *Editor) SetDayIncident(ctx context.Context, actor generic.Actor, edit DayEdit) (DayEditResult, error) {
	if !actor.Can(generic.CapEditAttendance) {
		return DayEditResult{}, fmt.Errorf("%w: %s may not edit attendance", generic.ErrForbidden, actor.Role)
	}
	if !edit.Incident.Valid() {
		return DayEditResult{}, &generic.ValidationError{Field: "incident", Message: edit.Incident.String(), Err: generic.ErrUnknownIncident}
	}
	if edit.Date.IsZero() {
		return DayEditResult{}, &generic.ValidationError{Field: "date", Message: "date is required"}
	}

	var result DayEditResult
	err := generic.RunInTx(ctx, e.store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, edit.EmployeeID)
		if err != nil {
			return err
		}
		if err := ensureOpen(ctx, s, generic.Period{Start: edit.Date, End: edit.Date}); err != nil {
			return err
		}
		prev, err := s.GetAttendance(ctx, edit.EmployeeID, edit.Date)
		if err != nil {
			return fmt.Errorf("load attendance: %w", err)
		}

		rec := generic.AttendanceRecord{EmployeeID: edit.EmployeeID, Date: edit.Date}
		var previous generic.IncidentType
		if prev != nil {
			rec = *prev
			previous = prev.Incident
		}
		rec.Incident = edit.Incident
		rec.Malformed = ""
		if edit.CheckOut != nil {
			rec.CheckOut = edit.CheckOut
		}
		if edit.LateIgnored != nil {
			rec.LateIgnored = *edit.LateIgnored
		}
		if edit.Notes != nil {
			rec.Notes = *edit.Notes
		}
		if edit.CheckIn != nil {
			rec.CheckIn = edit.CheckIn
			shift, err := shiftOn(ctx, s, *emp, edit.Date)
			if err != nil {
				return err
			}
			rec.IsLate = shift != nil && edit.CheckIn.MinutesAfter(shift.Start) > 0
		}

		if err := s.SaveAttendance(ctx, rec); err != nil {
			return fmt.Errorf("save attendance: %w", err)
		}
		result.Record = rec

		toggle, ok := vacation.DayToggle(previous, edit.Incident)
		if !ok {
			return nil
		}
		entry, err := e.ledger.WithStore(s).Adjust(ctx, vacation.Adjustment{
			EmployeeID:  edit.EmployeeID,
			Days:        toggle.Days,
			Type:        toggle.Type,
			Description: fmt.Sprintf("Day %s changed from %s to %s", edit.Date, previous, edit.Incident),
			ActorID:     actor.Ref(),
		})
		if err != nil {
			return err
		}
		result.VacationEntry = &entry
		return nil
	})
	if err != nil {
		return DayEditResult{}, err
	}

	e.logger.Info("attendance day edited",
		zap.String("employee_id", string(edit.EmployeeID)),
		zap.Stringer("date", edit.Date),
		zap.Stringer("incident", edit.Incident),
		zap.String("actor_id", actor.ID),
	)
	return result, nil
}

// ensureOpen fails with ErrPeriodClosed when any settlement week touching p
// has been claimed. Receipts are snapshots, so the attendance behind them
// must not change afterwards.
func ensureOpen(ctx context.Context, s generic.ReceiptStore, p generic.Period) error {
	for week := generic.WeekOf(p.Start); week.Start.BeforeOrEqual(p.End); week = generic.WeekOf(week.End.AddDays(1)) {
		closed, err := s.PeriodClosed(ctx, week)
		if err != nil {
			return fmt.Errorf("check period: %w", err)
		}
		if closed {
			return &generic.ConflictError{Resource: "payroll_period", Key: week.String(), Err: generic.ErrPeriodClosed}
		}
	}
	return nil
}

// shiftOn resolves the shift expected on day: an explicit schedule row
// first, then the weekly template.
func shiftOn(ctx context.Context, s generic.ScheduleStore, emp generic.Employee, day generic.Date) (*generic.Shift, error) {
	shifts, err := s.ShiftsInRange(ctx, emp.ID, generic.Period{Start: day, End: day})
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	for _, sh := range shifts {
		if sh.Date.Equal(day) {
			return sh.Shift, nil
		}
	}
	return emp.Template.ShiftOn(day), nil
}
