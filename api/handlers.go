/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the calculation core and its write paths via REST. Handles HTTP
  request/response, JSON serialization and validation, and delegates to the
  attendance, vacation and payroll packages.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List employees
    POST   /api/employees                          Create or replace employee
    GET    /api/employees/{id}                     Get employee
    GET    /api/employees/{id}/payroll             Preview breakdown (?start=&end=)
    PUT    /api/employees/{id}/attendance/{date}   Admin day edit
    POST   /api/employees/{id}/incident-requests   Approve an incident range
    DELETE /api/employees/{id}/incident-requests   Remove it (?incident=&from=&to=)
    POST   /api/employees/{id}/vacation/adjustments  Manual balance change
    GET    /api/employees/{id}/vacation/log        Vacation log
    POST   /api/employees/{id}/shifts              Explicit shift or rest day
    POST   /api/employees/{id}/bonuses             Enroll in a catalog bonus

  Catalogs:
    GET/POST /api/holidays                         Holiday calendar (?from=&to=)
    GET/POST /api/bonuses                          Bonus catalog

  Payroll:
    POST   /api/payroll/close                      Settle a week
    GET    /api/payroll/receipts                   Receipts (?period_start=)
    GET    /api/payroll/receipts/export            Same, as CSV

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error chain:
  - 400: ValidationError and malformed input
  - 403: the actor's role lacks the capability
  - 404: unknown employee or bonus
  - 409: period already closed, duplicate attendance day
  - 500: everything else, including rolled-back transactions

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup, actor middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/bonus"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/vacation"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      generic.TxStore
	Calculator *payroll.Calculator
	Closer     *payroll.Closer
	Ledger     *vacation.Ledger
	Editor     *attendance.Editor
	Requests   *attendance.Requests

	logger *zap.Logger
}

// NewHandler wires every service to the same store.
func NewHandler(store generic.TxStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := vacation.NewLedger(store, logger)
	return &Handler{
		Store:      store,
		Calculator: payroll.NewCalculator(store, logger),
		Closer:     payroll.NewCloser(store, logger),
		Ledger:     ledger,
		Editor:     attendance.NewEditor(store, ledger, logger),
		Requests:   attendance.NewRequests(store, ledger, logger),
		logger:     logger,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if employees == nil {
		employees = []generic.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), employeeID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.DailyRate.IsNegative() {
		writeError(w, http.StatusBadRequest, "daily_rate must not be negative", nil)
		return
	}

	emp := generic.Employee{
		ID:              generic.EmployeeID(req.ID),
		Name:            req.Name,
		DailyRate:       req.DailyRate,
		Active:          req.Active == nil || *req.Active,
		VacationBalance: req.VacationBalance,
	}
	if req.HireDate != "" {
		emp.HireDate = generic.MustParseDate(req.HireDate)
	}
	if req.Shift != nil {
		shift, err := parseShift(req.Shift.Start, req.Shift.End)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		days := make([]time.Weekday, 0, len(req.WorkingDays))
		for _, d := range req.WorkingDays {
			days = append(days, weekdays[d])
		}
		emp.Template = generic.StandardTemplate(*shift, days...)
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// PreviewPayroll computes a breakdown without writing anything.
func (h *Handler) PreviewPayroll(w http.ResponseWriter, r *http.Request) {
	start, err := generic.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	end, err := generic.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	b, err := h.Calculator.Calculate(r.Context(), employeeID(r), start, end)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	var req ClosePeriodRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.Closer.Close(r.Context(), generic.MustParseDate(req.PeriodStart), req.MarkAsPaid, ActorFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, ok := h.receipts(w, r)
	if !ok {
		return
	}
	dtos := make([]ReceiptDTO, 0, len(receipts))
	for _, rc := range receipts {
		dtos = append(dtos, toReceiptDTO(rc))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ExportReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, ok := h.receipts(w, r)
	if !ok {
		return
	}
	week := generic.WeekOf(generic.MustParseDate(r.URL.Query().Get("period_start")))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipts-%s.csv", week.Start))
	if err := payroll.ExportReceipts(w, receipts); err != nil {
		h.logger.Error("receipt export failed", zap.Error(err))
	}
}

func (h *Handler) receipts(w http.ResponseWriter, r *http.Request) ([]generic.PayrollReceipt, bool) {
	start, err := generic.ParseDate(r.URL.Query().Get("period_start"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	receipts, err := h.Closer.Receipts(r.Context(), start)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	return receipts, true
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// SetDay is the admin correction of one employee-day.
func (h *Handler) SetDay(w http.ResponseWriter, r *http.Request) {
	day, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req SetDayRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	incident, err := generic.ParseIncidentType(req.Incident)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	edit := attendance.DayEdit{
		EmployeeID:  employeeID(r),
		Date:        day,
		Incident:    incident,
		LateIgnored: req.LateIgnored,
		Notes:       req.Notes,
	}
	if edit.CheckIn, err = parseOptionalTime("check_in", req.CheckIn); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if edit.CheckOut, err = parseOptionalTime("check_out", req.CheckOut); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.Editor.SetDayIncident(r.Context(), ActorFrom(r.Context()), edit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Record)
}

func (h *Handler) ApproveIncidentRequest(w http.ResponseWriter, r *http.Request) {
	var body IncidentRangeRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}
	req, err := incidentRequest(employeeID(r), body.Incident, body.From, body.To)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	req.Notes = body.Notes

	result, err := h.Requests.Approve(r.Context(), ActorFrom(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IncidentRangeResponse{Days: result.Days, VacationEntry: result.VacationEntry})
}

func (h *Handler) RemoveIncidentRequest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := incidentRequest(employeeID(r), q.Get("incident"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result, err := h.Requests.Remove(r.Context(), ActorFrom(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IncidentRangeResponse{Days: result.Days, VacationEntry: result.VacationEntry})
}

func (h *Handler) ScheduleShift(w http.ResponseWriter, r *http.Request) {
	var req ScheduleShiftRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id := employeeID(r)
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	sh := generic.ScheduledShift{EmployeeID: id, Date: generic.MustParseDate(req.Date)}
	if req.Start != "" {
		shift, err := parseShift(req.Start, req.End)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		sh.Shift = shift
	}
	if err := h.Store.SaveShift(r.Context(), sh); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// =============================================================================
// VACATION HANDLERS
// =============================================================================

func (h *Handler) AdjustVacation(w http.ResponseWriter, r *http.Request) {
	var req VacationAdjustmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	actor := ActorFrom(r.Context())
	entry, err := h.Ledger.Adjust(r.Context(), vacation.Adjustment{
		EmployeeID:  employeeID(r),
		Days:        req.Days,
		Type:        generic.VacationEntryType(req.Type),
		Description: req.Description,
		ActorID:     actor.Ref(),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) VacationLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.Entries(r.Context(), employeeID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []generic.VacationLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := generic.ParseDate(q.Get("from"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	to, err := generic.ParseDate(q.Get("to"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	p, err := generic.NewPeriod(from, to)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	holidays, err := h.Store.HolidaysInRange(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if holidays == nil {
		holidays = []generic.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	holiday := generic.Holiday{Date: generic.MustParseDate(req.Date), Name: req.Name, Multiplier: req.Multiplier}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (h *Handler) ListBonuses(w http.ResponseWriter, r *http.Request) {
	bonuses, err := h.Store.ListBonuses(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]bonus.BonusJSON, 0, len(bonuses))
	for _, b := range bonuses {
		dtos = append(dtos, bonus.FromBonus(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateBonus(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	b, err := bonus.ParseBonus(body)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Store.SaveBonus(r.Context(), b); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bonus.FromBonus(b))
}

func (h *Handler) AssignBonus(w http.ResponseWriter, r *http.Request) {
	var req AssignBonusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.AmountOverride != nil && req.AmountOverride.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount_override must not be negative", nil)
		return
	}
	a := generic.BonusAssignment{
		EmployeeID:     employeeID(r),
		BonusID:        generic.BonusID(req.BonusID),
		AmountOverride: req.AmountOverride,
		Active:         req.Active == nil || *req.Active,
	}
	if err := h.Store.SaveBonusAssignment(r.Context(), a); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeID(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(chi.URLParam(r, "id"))
}

func incidentRequest(id generic.EmployeeID, incident, from, to string) (attendance.IncidentRequest, error) {
	it, err := generic.ParseIncidentType(incident)
	if err != nil {
		return attendance.IncidentRequest{}, err
	}
	start, err := generic.ParseDate(from)
	if err != nil {
		return attendance.IncidentRequest{}, err
	}
	end, err := generic.ParseDate(to)
	if err != nil {
		return attendance.IncidentRequest{}, err
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return attendance.IncidentRequest{}, err
	}
	return attendance.IncidentRequest{EmployeeID: id, Incident: it, Period: p}, nil
}

func parseShift(start, end string) (*generic.Shift, error) {
	s, err := parseOptionalTime("start", &start)
	if err != nil {
		return nil, err
	}
	e, err := parseOptionalTime("end", &end)
	if err != nil {
		return nil, err
	}
	return &generic.Shift{Start: *s, End: *e}, nil
}

func parseOptionalTime(field string, v *string) (*generic.TimeOfDay, error) {
	if v == nil {
		return nil, nil
	}
	t, err := generic.ParseTimeOfDay(*v)
	if err != nil {
		return nil, &generic.ValidationError{Field: field, Message: fmt.Sprintf("invalid time %q", *v), Err: err}
	}
	return &t, nil
}

// decodeAndValidate writes a 400 and returns false when the body is not
// valid JSON for dst or fails its validator tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return errors.New(strings.Join(parts, "; "))
	}
	return err
}

// writeDomainError maps the error chain to a status code. Server errors are
// logged with the request ID; their details are not echoed to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, generic.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Bool("retryable", generic.IsRetryable(err)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
