package payroll_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func TestExportReceipts_CSV(t *testing.T) {
	paid := settleAt
	receipts := []generic.PayrollReceipt{
		{ID: "r1", EmployeeID: "e1", Period: week, BaseSalary: dec("400"), TotalPay: dec("2950.5"), DaysWorked: 7, TotalBonuses: dec("150.5"), PaidAt: &paid},
		{ID: "r2", EmployeeID: "e2", Period: week, BaseSalary: dec("350"), TotalPay: dec("0"), TotalBonuses: dec("0")},
	}

	var buf bytes.Buffer
	require.NoError(t, payroll.ExportReceipts(&buf, receipts))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "receipt_id,employee_id,period_start,period_end,base_salary,days_worked,total_bonuses,total_pay,paid_at", lines[0])
	assert.Equal(t, "r1,e1,2025-03-10,2025-03-16,400.00,7,150.50,2950.50,2025-03-17T10:00:00Z", lines[1])
	assert.Equal(t, "r2,e2,2025-03-10,2025-03-16,350.00,0,0.00,0.00,", lines[2])
}

func TestExportReceipts_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, payroll.ExportReceipts(&buf, nil))

	assert.True(t, strings.HasPrefix(buf.String(), "receipt_id,employee_id"))
}
