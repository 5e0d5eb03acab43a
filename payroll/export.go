package payroll

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/warp/payroll-engine/generic"
)

// ReceiptRow is the CSV shape of a receipt handed to accounting.
type ReceiptRow struct {
	ReceiptID    string `csv:"receipt_id"`
	EmployeeID   string `csv:"employee_id"`
	PeriodStart  string `csv:"period_start"`
	PeriodEnd    string `csv:"period_end"`
	BaseSalary   string `csv:"base_salary"`
	DaysWorked   int    `csv:"days_worked"`
	TotalBonuses string `csv:"total_bonuses"`
	TotalPay     string `csv:"total_pay"`
	PaidAt       string `csv:"paid_at"`
}

// ExportReceipts writes receipts as CSV with a header row. Money columns use
// two decimal places.
func ExportReceipts(w io.Writer, receipts []generic.PayrollReceipt) error {
	rows := make([]*ReceiptRow, 0, len(receipts))
	for _, r := range receipts {
		row := &ReceiptRow{
			ReceiptID:    r.ID,
			EmployeeID:   string(r.EmployeeID),
			PeriodStart:  r.Period.Start.String(),
			PeriodEnd:    r.Period.End.String(),
			BaseSalary:   r.BaseSalary.StringFixed(2),
			DaysWorked:   r.DaysWorked,
			TotalBonuses: r.TotalBonuses.StringFixed(2),
			TotalPay:     r.TotalPay.StringFixed(2),
		}
		if r.PaidAt != nil {
			row.PaidAt = r.PaidAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("export receipts: %w", err)
	}
	return nil
}
