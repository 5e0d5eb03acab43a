package attendance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/vacation"
)

// =============================================================================
// INCIDENT REQUESTS - Approving and removing leave over a date range
// =============================================================================

// IncidentRequest asks for every day of Period to be recorded as Incident.
type IncidentRequest struct {
	EmployeeID generic.EmployeeID
	Incident   generic.IncidentType
	Period     generic.Period
	Notes      string
}

// RequestResult reports how many days were written or removed, and the
// vacation ledger entry when vacation days were involved.
type RequestResult struct {
	Days          int
	VacationEntry *generic.VacationLogEntry
}

type Requests struct {
	store  generic.Store
	ledger *vacation.Ledger
	logger *zap.Logger
}

func NewRequests(store generic.Store, ledger *vacation.Ledger, logger *zap.Logger) *Requests {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requests{store: store, ledger: ledger, logger: logger}
}

// requestable lists the incidents that may be requested ahead of time.
func requestable(i generic.IncidentType) bool {
	switch i {
	case generic.IncidentVacation,
		generic.IncidentPaidLeave,
		generic.IncidentUnpaidLeave,
		generic.IncidentMedicalGeneral,
		generic.IncidentMedicalWork,
		generic.IncidentJustifiedAbsence,
		generic.IncidentHolidayRest:
		return true
	}
	return false
}

// Approve records the requested incident on every day of the range. Days
// already carrying the same incident are left alone; days carrying another
// incident make the whole request fail. Vacation requests are rejected up
// front when the balance is below one year of entitlement, and deduct one
// day per newly recorded vacation day in a single ledger entry.
func (r *Requests) Approve(ctx context.Context, actor generic.Actor, req IncidentRequest) (RequestResult, error) {
	if err := r.validate(actor, req); err != nil {
		return RequestResult{}, err
	}

	var result RequestResult
	err := generic.RunInTx(ctx, r.store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if err := ensureOpen(ctx, s, req.Period); err != nil {
			return err
		}
		if req.Incident == generic.IncidentVacation {
			if err := vacation.CheckRequest(*emp); err != nil {
				return err
			}
		}

		for _, day := range req.Period.Days() {
			existing, err := s.GetAttendance(ctx, req.EmployeeID, day)
			if err != nil {
				return fmt.Errorf("load attendance: %w", err)
			}
			if existing != nil {
				if existing.Incident == req.Incident {
					continue
				}
				return &generic.ConflictError{
					Resource: "attendance",
					Key:      fmt.Sprintf("%s/%s already %s", req.EmployeeID, day, existing.Incident),
					Err:      generic.ErrDuplicateAttendance,
				}
			}
			rec := generic.AttendanceRecord{EmployeeID: req.EmployeeID, Date: day, Incident: req.Incident, Notes: req.Notes}
			if err := s.CreateAttendance(ctx, rec); err != nil {
				return err
			}
			result.Days++
		}

		if req.Incident != generic.IncidentVacation || result.Days == 0 {
			return nil
		}
		entry, err := r.ledger.WithStore(s).Adjust(ctx, vacation.Adjustment{
			EmployeeID:  req.EmployeeID,
			Days:        decimal.NewFromInt(int64(-result.Days)),
			Type:        generic.VacationUsage,
			Description: fmt.Sprintf("Vacation request %s", req.Period),
			ActorID:     actor.Ref(),
		})
		if err != nil {
			return err
		}
		result.VacationEntry = &entry
		return nil
	})
	if err != nil {
		return RequestResult{}, err
	}

	r.logger.Info("incident request approved",
		zap.String("employee_id", string(req.EmployeeID)),
		zap.Stringer("incident", req.Incident),
		zap.Stringer("period", req.Period),
		zap.Int("days", result.Days),
	)
	return result, nil
}

// Remove deletes the records of the requested incident inside the range and
// returns vacation days to the balance.
func (r *Requests) Remove(ctx context.Context, actor generic.Actor, req IncidentRequest) (RequestResult, error) {
	if err := r.validate(actor, req); err != nil {
		return RequestResult{}, err
	}

	var result RequestResult
	err := generic.RunInTx(ctx, r.store, func(s generic.Store) error {
		if _, err := s.GetEmployee(ctx, req.EmployeeID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, s, req.Period); err != nil {
			return err
		}
		records, err := s.AttendanceInRange(ctx, req.EmployeeID, req.Period)
		if err != nil {
			return fmt.Errorf("load attendance: %w", err)
		}
		for _, rec := range records {
			if rec.Incident != req.Incident {
				continue
			}
			if err := s.DeleteAttendance(ctx, req.EmployeeID, rec.Date); err != nil {
				return fmt.Errorf("delete attendance: %w", err)
			}
			result.Days++
		}

		if req.Incident != generic.IncidentVacation || result.Days == 0 {
			return nil
		}
		entry, err := r.ledger.WithStore(s).Adjust(ctx, vacation.Adjustment{
			EmployeeID:  req.EmployeeID,
			Days:        decimal.NewFromInt(int64(result.Days)),
			Type:        generic.VacationAdjustment,
			Description: fmt.Sprintf("Vacation request removed %s", req.Period),
			ActorID:     actor.Ref(),
		})
		if err != nil {
			return err
		}
		result.VacationEntry = &entry
		return nil
	})
	if err != nil {
		return RequestResult{}, err
	}
	return result, nil
}

func (r *Requests) validate(actor generic.Actor, req IncidentRequest) error {
	if !actor.Can(generic.CapRequestLeave) {
		return fmt.Errorf("%w: %s may not manage incident requests", generic.ErrForbidden, actor.Role)
	}
	if actor.Role == generic.RoleEmployee && actor.ID != string(req.EmployeeID) {
		return fmt.Errorf("%w: employees may only manage their own requests", generic.ErrForbidden)
	}
	if err := req.Period.Validate(); err != nil {
		return err
	}
	if !requestable(req.Incident) {
		return &generic.ValidationError{
			Field:   "incident",
			Message: fmt.Sprintf("%s cannot be requested", req.Incident),
			Err:     generic.ErrUnknownIncident,
		}
	}
	return nil
}
