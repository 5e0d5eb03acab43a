package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/vacation"
)

// =============================================================================
// SETTLEMENT CLOSER
// =============================================================================

// CloseResult summarizes one settled week.
type CloseResult struct {
	Period          generic.Period `json:"period"`
	ReceiptsCreated int            `json:"receipts_created"`
	AccrualEntries  int            `json:"accrual_entries"`
	EvidencePurged  int            `json:"evidence_purged"`
}

// Closer settles a week for every active employee at once.
//
// Everything happens inside one WithTx: the period claim, one receipt and
// one weekly accrual per employee, and the evidence purge. Any failure
// rolls back all of it, so a week is either fully settled or untouched.
// Two concurrent closes of the same week race on the period claim; the
// loser gets ErrPeriodClosed and writes nothing.
type Closer struct {
	store  generic.TxStore
	calc   *Calculator
	ledger *vacation.Ledger
	logger *zap.Logger
	now    func() time.Time
}

func NewCloser(store generic.TxStore, logger *zap.Logger) *Closer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Closer{
		store:  store,
		calc:   NewCalculator(store, logger),
		ledger: vacation.NewLedger(store, logger),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the timestamp source for receipts, claims and ledger entries.
func (c *Closer) WithClock(now func() time.Time) *Closer {
	cp := *c
	cp.now = now
	cp.ledger = c.ledger.WithClock(now)
	return &cp
}

// Close settles the week containing periodStart. When markAsPaid is set the
// receipts are stamped as paid at settlement time.
func (c *Closer) Close(ctx context.Context, periodStart generic.Date, markAsPaid bool, actor generic.Actor) (CloseResult, error) {
	if !actor.Can(generic.CapSettlePayroll) {
		return CloseResult{}, fmt.Errorf("%w: %s may not settle payroll", generic.ErrForbidden, actor.Role)
	}
	if periodStart.IsZero() {
		return CloseResult{}, &generic.ValidationError{Field: "period_start", Message: "period start is required", Err: generic.ErrInvalidPeriod}
	}

	week := generic.WeekOf(periodStart)
	result := CloseResult{Period: week}

	closed, err := c.store.PeriodClosed(ctx, week)
	if err != nil {
		return CloseResult{}, fmt.Errorf("check period: %w", err)
	}
	if closed {
		return CloseResult{}, periodConflict(week)
	}

	c.logger.Info("payroll settlement started",
		zap.Stringer("period", week),
		zap.Bool("mark_as_paid", markAsPaid),
		zap.String("actor_id", actor.ID),
	)

	err = c.store.WithTx(ctx, func(s generic.Store) error {
		result = CloseResult{Period: week}
		now := c.now().UTC()

		if err := s.ClaimPeriod(ctx, week, now); err != nil {
			return err
		}

		employees, err := s.ListActiveEmployees(ctx)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}

		calc := c.calc.WithSource(s)
		ledger := c.ledger.WithStore(s)
		for _, emp := range employees {
			receipt, err := c.receipt(ctx, calc, emp, week, now, markAsPaid)
			if err != nil {
				return err
			}
			if err := s.SaveReceipt(ctx, receipt); err != nil {
				return fmt.Errorf("save receipt for %s: %w", emp.ID, err)
			}
			result.ReceiptsCreated++

			entry, err := ledger.AccrueWeek(ctx, emp, week)
			if err != nil {
				return fmt.Errorf("accrue vacation for %s: %w", emp.ID, err)
			}
			if entry != nil {
				result.AccrualEntries++
			}
		}

		purged, err := s.PurgeEvidence(ctx, week)
		if err != nil {
			return fmt.Errorf("purge evidence: %w", err)
		}
		result.EvidencePurged = purged
		return nil
	})
	if err != nil {
		if errors.Is(err, generic.ErrPeriodClosed) {
			c.logger.Warn("payroll settlement rejected", zap.Stringer("period", week), zap.Error(err))
			return CloseResult{}, periodConflict(week)
		}
		c.logger.Error("payroll settlement rolled back", zap.Stringer("period", week), zap.Error(err))
		return CloseResult{}, err
	}

	c.logger.Info("payroll settlement committed",
		zap.Stringer("period", week),
		zap.Int("receipts", result.ReceiptsCreated),
		zap.Int("accruals", result.AccrualEntries),
		zap.Int("evidence_purged", result.EvidencePurged),
	)
	return result, nil
}

func (c *Closer) receipt(ctx context.Context, calc *Calculator, emp generic.Employee, week generic.Period, now time.Time, markAsPaid bool) (generic.PayrollReceipt, error) {
	b, err := calc.CalculateFor(ctx, emp, week)
	if err != nil {
		return generic.PayrollReceipt{}, fmt.Errorf("calculate payroll for %s: %w", emp.ID, err)
	}
	data, err := b.JSON()
	if err != nil {
		return generic.PayrollReceipt{}, fmt.Errorf("encode breakdown for %s: %w", emp.ID, err)
	}

	r := generic.PayrollReceipt{
		ID:           uuid.NewString(),
		EmployeeID:   emp.ID,
		Period:       week,
		BaseSalary:   emp.DailyRate,
		TotalPay:     b.TotalPay,
		DaysWorked:   b.DaysWorked,
		TotalBonuses: b.TotalBonuses,
		Breakdown:    data,
		CreatedAt:    now,
	}
	if markAsPaid {
		paid := now
		r.PaidAt = &paid
	}
	return r, nil
}

// Receipts lists the receipts of the week containing periodStart.
func (c *Closer) Receipts(ctx context.Context, periodStart generic.Date) ([]generic.PayrollReceipt, error) {
	if periodStart.IsZero() {
		return nil, &generic.ValidationError{Field: "period_start", Message: "period start is required", Err: generic.ErrInvalidPeriod}
	}
	return c.store.ListReceipts(ctx, generic.WeekOf(periodStart))
}

func periodConflict(week generic.Period) error {
	return &generic.ConflictError{Resource: "payroll_period", Key: week.String(), Err: generic.ErrPeriodClosed}
}
