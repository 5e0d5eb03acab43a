/*
Package vacation maintains each employee's floating vacation balance.

PURPOSE:
  The balance lives on the employee row as a cache; the append-only log is
  the audit trail that explains it. Every change goes through Adjust, which
  reads the balance, appends a log entry with before/after, and writes the
  new balance in ONE unit of work. The two can never diverge.

INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted
  2. after = before + days, for every entry
  3. the running sum of all entries equals the cached balance

CALLERS:
  - payroll settlement (weekly accrual)
  - attendance day edits toggling a day into or out of VACATION
  - incident requests approving or removing vacation ranges
  - admins, through the API, for manual corrections

CORRECTIONS:
  Mistakes are fixed with a new adjustment entry, never by editing history.

SEE ALSO:
  - accrual.go: weekly accrual and entitlement
  - generic/store.go: RunInTx
*/
package vacation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store  generic.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store generic.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger, now: time.Now}
}

// WithStore returns a ledger bound to another store, typically the view of
// an enclosing transaction.
func (l *Ledger) WithStore(s generic.Store) *Ledger {
	return &Ledger{store: s, logger: l.logger, now: l.now}
}

// WithClock overrides the timestamp source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{store: l.store, logger: l.logger, now: now}
}

// Adjustment is one requested balance change.
type Adjustment struct {
	EmployeeID     generic.EmployeeID
	Days           decimal.Decimal
	Type           generic.VacationEntryType
	Description    string
	ActorID        *string // nil for system actions
	IdempotencyKey string  // optional; a reused key fails with ErrDuplicateIdempotencyKey
}

// Adjust applies the change and returns the log entry that records it.
func (l *Ledger) Adjust(ctx context.Context, adj Adjustment) (generic.VacationLogEntry, error) {
	if !adj.Type.Valid() {
		return generic.VacationLogEntry{}, &generic.ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unknown vacation entry type %q", adj.Type),
		}
	}

	var entry generic.VacationLogEntry
	err := generic.RunInTx(ctx, l.store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, adj.EmployeeID)
		if err != nil {
			return err
		}

		before := emp.VacationBalance
		entry = generic.VacationLogEntry{
			ID:             uuid.NewString(),
			EmployeeID:     adj.EmployeeID,
			ActorID:        adj.ActorID,
			Type:           adj.Type,
			Days:           adj.Days,
			BalanceBefore:  before,
			BalanceAfter:   before.Add(adj.Days),
			Description:    adj.Description,
			IdempotencyKey: adj.IdempotencyKey,
			CreatedAt:      l.now().UTC(),
		}
		if err := s.AppendVacationEntry(ctx, entry); err != nil {
			return fmt.Errorf("append vacation entry: %w", err)
		}
		if err := s.SetVacationBalance(ctx, adj.EmployeeID, entry.BalanceAfter); err != nil {
			return fmt.Errorf("update vacation balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return generic.VacationLogEntry{}, err
	}

	l.logger.Debug("vacation balance adjusted",
		zap.String("employee_id", string(entry.EmployeeID)),
		zap.String("type", string(entry.Type)),
		zap.Stringer("days", entry.Days),
		zap.Stringer("balance_after", entry.BalanceAfter),
	)
	return entry, nil
}

// Entries returns the log of an employee in append order.
func (l *Ledger) Entries(ctx context.Context, id generic.EmployeeID) ([]generic.VacationLogEntry, error) {
	if _, err := l.store.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return l.store.VacationEntries(ctx, id)
}

// Verify replays the log and checks it against the cached balance. An
// employee with no entries is trivially consistent.
func (l *Ledger) Verify(ctx context.Context, id generic.EmployeeID) error {
	emp, err := l.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	entries, err := l.store.VacationEntries(ctx, id)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}
	// The opening balance predates the log; it is whatever the first entry started from.
	running := entries[0].BalanceBefore
	for i, e := range entries {
		if !e.BalanceBefore.Add(e.Days).Equal(e.BalanceAfter) {
			return fmt.Errorf("vacation entry %s: %s + %s != %s", e.ID, e.BalanceBefore, e.Days, e.BalanceAfter)
		}
		if i > 0 && !entries[i-1].BalanceAfter.Equal(e.BalanceBefore) {
			return fmt.Errorf("vacation entry %s: starts at %s but previous ended at %s", e.ID, e.BalanceBefore, entries[i-1].BalanceAfter)
		}
		running = running.Add(e.Days)
	}
	if !running.Equal(emp.VacationBalance) {
		return fmt.Errorf("vacation log for %s ends at %s but balance is %s", id, running, emp.VacationBalance)
	}
	return nil
}
