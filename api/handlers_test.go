/*
handlers_test.go - HTTP tests for the API

Tests run the full router against an in-memory SQLite store:
- Employee creation and validation
- Payroll preview and settlement, including the 409 on a second close
- Role checks from the actor headers
- Day edits, incident requests, the bonus catalog and receipt export
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, nil)
	return &testServer{t: t, router: NewRouter(h, RouterOptions{}), store: store}
}

// do sends a request as the given role; an empty role sends no actor headers.
func (ts *testServer) do(method, path, role string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActorID, role+"-1")
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// seedEmployee creates an employee working every day 08:00-17:00 and
// records a fully worked week starting Monday 2025-03-10.
func (ts *testServer) seedEmployee(id string, rate int64) {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/employees", "admin", map[string]any{
		"id":           id,
		"name":         "Employee " + id,
		"daily_rate":   decimal.NewFromInt(rate),
		"hire_date":    "2024-01-15",
		"working_days": []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"},
		"shift":        map[string]string{"start": "08:00", "end": "17:00"},
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, day := range []string{"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14", "2025-03-15", "2025-03-16"} {
		rec := ts.do(http.MethodPut, "/api/employees/"+id+"/attendance/"+day, "admin", map[string]any{
			"incident":  "WORKED",
			"check_in":  "08:00",
			"check_out": "17:00",
		})
		require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// ROUTER & ACTORS
// =============================================================================

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestActorMiddleware_UnknownRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/employees", "superuser", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/employees", string(generic.RoleSystem), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the system role is not accepted over HTTP")
}

func TestActorMiddleware_DefaultsToEmployee(t *testing.T) {
	var got generic.Actor
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFrom(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, generic.RoleEmployee, got.Role)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestCreateEmployee(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodGet, "/api/employees/e1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decodeBody[struct {
		ID        string          `json:"id"`
		DailyRate decimal.Decimal `json:"daily_rate"`
		Active    bool            `json:"active"`
	}](t, rec)
	assert.Equal(t, "e1", emp.ID)
	assert.True(t, emp.DailyRate.Equal(decimal.NewFromInt(400)))
	assert.True(t, emp.Active)

	rec = ts.do(http.MethodGet, "/api/employees/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEmployee_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"id": "e1", "daily_rate": "400"}},
		{"bad hire date", map[string]any{"id": "e1", "name": "x", "daily_rate": "400", "hire_date": "15/01/2024"}},
		{"unknown weekday", map[string]any{"id": "e1", "name": "x", "daily_rate": "400", "working_days": []string{"funday"}, "shift": map[string]string{"start": "08:00", "end": "17:00"}}},
		{"negative rate", map[string]any{"id": "e1", "name": "x", "daily_rate": "-1"}},
		{"unknown field", map[string]any{"id": "e1", "name": "x", "daily_rate": "400", "salary": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(http.MethodPost, "/api/employees", "admin", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPreviewPayroll(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodGet, "/api/employees/e1/payroll?start=2025-03-10&end=2025-03-16", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	b := decodeBody[struct {
		DaysWorked int             `json:"days_worked"`
		TotalPay   decimal.Decimal `json:"total_pay"`
	}](t, rec)
	assert.Equal(t, 7, b.DaysWorked)
	assert.True(t, b.TotalPay.Equal(decimal.NewFromInt(2800)), b.TotalPay.String())

	rec = ts.do(http.MethodGet, "/api/employees/e1/payroll?start=2025-03-16&end=2025-03-10", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/employees/e1/payroll?start=2025-01-01&end=9999-12-31", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "preview ranges are capped")
}

func TestClosePeriod(t *testing.T) {
	// GIVEN: an employee with a worked week
	// WHEN: a manager, then an admin twice, try to settle it
	// THEN: 403, then 201, then 409

	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)
	body := map[string]any{"period_start": "2025-03-12", "mark_as_paid": true}

	rec := ts.do(http.MethodPost, "/api/payroll/close", "manager", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/payroll/close", "admin", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody[struct {
		ReceiptsCreated int `json:"receipts_created"`
		AccrualEntries  int `json:"accrual_entries"`
	}](t, rec)
	assert.Equal(t, 1, result.ReceiptsCreated)
	assert.Equal(t, 1, result.AccrualEntries)

	rec = ts.do(http.MethodPost, "/api/payroll/close", "admin", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/payroll/receipts?period_start=2025-03-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	receipts := decodeBody[[]ReceiptDTO](t, rec)
	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].TotalPay.Equal(decimal.NewFromInt(2800)))
	assert.NotNil(t, receipts[0].PaidAt)
	assert.Contains(t, string(receipts[0].Breakdown), `"days_worked":7`)
}

func TestExportReceipts(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)
	rec := ts.do(http.MethodPost, "/api/payroll/close", "admin", map[string]any{"period_start": "2025-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/payroll/receipts/export?period_start=2025-03-10", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",e1,2025-03-10,2025-03-16,400.00,7,0.00,2800.00,")
}

func TestReceipts_MissingPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/payroll/receipts", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestSetDay_RequiresCapability(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodPut, "/api/employees/e1/attendance/2025-03-17", "employee", map[string]any{"incident": "WORKED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPut, "/api/employees/e1/attendance/2025-03-17", "manager", map[string]any{"incident": "SICK"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/api/employees/e1/attendance/2025-03-17", "manager", map[string]any{"incident": "WORKED", "check_in": "8am"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentRequest_VacationDeductsBalance(t *testing.T) {
	// GIVEN: an employee holding 10 vacation days
	// WHEN: three vacation days are requested, then withdrawn
	// THEN: the balance goes 10 -> 7 -> 10 and the log has both entries

	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)
	rec := ts.do(http.MethodPost, "/api/employees/e1/vacation/adjustments", "admin", map[string]any{
		"days": "10", "type": "adjustment", "description": "opening balance",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/employees/e1/incident-requests", "manager", map[string]any{
		"incident": "VACATION", "from": "2025-03-24", "to": "2025-03-26",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	approved := decodeBody[IncidentRangeResponse](t, rec)
	assert.Equal(t, 3, approved.Days)
	require.NotNil(t, approved.VacationEntry)
	assert.True(t, approved.VacationEntry.BalanceAfter.Equal(decimal.NewFromInt(7)))

	rec = ts.do(http.MethodPost, "/api/employees/e1/incident-requests", "manager", map[string]any{
		"incident": "PAID_LEAVE", "from": "2025-03-26", "to": "2025-03-27",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/employees/e1/incident-requests?incident=VACATION&from=2025-03-24&to=2025-03-26", "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/employees/e1/vacation/log", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]generic.VacationLogEntry](t, rec)
	require.Len(t, entries, 3)
	assert.True(t, entries[2].BalanceAfter.Equal(decimal.NewFromInt(10)))
}

func TestAttendance_SettledWeekRejectsEdits(t *testing.T) {
	// GIVEN: a settled week
	// WHEN: a day inside it is edited or requested
	// THEN: both are rejected with 409 and the receipt still matches the
	//       stored attendance

	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)
	rec := ts.do(http.MethodPost, "/api/payroll/close", "admin", map[string]any{"period_start": "2025-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPut, "/api/employees/e1/attendance/2025-03-12", "admin", map[string]any{"incident": "UNJUSTIFIED_ABSENCE"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/employees/e1/incident-requests", "manager", map[string]any{
		"incident": "PAID_LEAVE", "from": "2025-03-16", "to": "2025-03-17",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/employees/e1/payroll?start=2025-03-10&end=2025-03-16", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody[struct {
		DaysWorked int `json:"days_worked"`
	}](t, rec)
	assert.Equal(t, 7, b.DaysWorked)
}

func TestIncidentRequest_EmployeeOnlyForSelf(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	// The test actor for the employee role is "employee-1".
	rec := ts.do(http.MethodPost, "/api/employees/e1/incident-requests", "employee", map[string]any{
		"incident": "MEDICAL_GENERAL", "from": "2025-03-24", "to": "2025-03-24",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestAdjustVacation_ManagerForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodPost, "/api/employees/e1/vacation/adjustments", "manager", map[string]any{
		"days": "1", "type": "adjustment", "description": "gift",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScheduleShift_RestDay(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodPost, "/api/employees/e1/shifts", "admin", map[string]any{"date": "2025-03-17"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/employees/e1/shifts", "admin", map[string]any{"date": "2025-03-18", "start": "9", "end": "17:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/employees/ghost/shifts", "admin", map[string]any{"date": "2025-03-17"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CATALOGS
// =============================================================================

func TestHolidays(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/holidays", "admin", map[string]any{"date": "2025-03-17", "name": "Benito Juarez", "multiplier": "2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/holidays", "admin", map[string]any{"date": "2025-03-18", "name": "Half", "multiplier": "0.5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/holidays?from=2025-03-01&to=2025-03-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	holidays := decodeBody[[]map[string]any](t, rec)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Benito Juarez", holidays[0]["name"])
}

func TestBonusCatalogAndAssignment(t *testing.T) {
	// GIVEN: a punctuality bonus assigned to an employee with no late days
	// WHEN: the week is previewed
	// THEN: the bonus is paid on top of the base pay

	ts := newTestServer(t)
	ts.seedEmployee("e1", 400)

	rec := ts.do(http.MethodPost, "/api/bonuses", "admin", map[string]any{
		"id": "punctuality", "name": "Punctuality", "amount": "250",
		"rule": map[string]any{"concept": "late_minutes", "operator": "<=", "threshold": 15, "scope": "period_accumulated", "behavior": "fixed_amount"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/bonuses", "admin", map[string]any{"id": "bad", "name": "Bad", "amount": "1", "rule": map[string]any{"concept": "mood"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/employees/e1/bonuses", "admin", map[string]any{"bonus_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/employees/e1/bonuses", "admin", map[string]any{"bonus_id": "punctuality"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/bonuses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/employees/e1/payroll?start=2025-03-10&end=2025-03-16", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody[struct {
		TotalBonuses decimal.Decimal `json:"total_bonuses"`
		TotalPay     decimal.Decimal `json:"total_pay"`
	}](t, rec)
	assert.True(t, b.TotalBonuses.Equal(decimal.NewFromInt(250)), b.TotalBonuses.String())
	assert.True(t, b.TotalPay.Equal(decimal.NewFromInt(3050)), b.TotalPay.String())
}
