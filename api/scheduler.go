/*
scheduler.go - Automated settlement scheduler

PURPOSE:
  Periodically settles the previous payroll week once it has ended, so
  receipts and vacation accruals do not depend on an admin remembering to
  close the week.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets the Monday-Sunday week before the one containing today
  - Skips weeks already claimed for settlement
  - Losing a race with a manual close is logged, not treated as failure

CONFIGURATION:
  - Interval:   How often to check (default: 1 hour)
  - MarkAsPaid: Stamp receipts as paid on automatic settlement

USAGE:
  scheduler := NewSettlementScheduler(closer, store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ClosePeriod endpoint (manual settlement)
  - payroll/closer.go: Closer
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// SettlementScheduler closes finished payroll weeks in the background.
type SettlementScheduler struct {
	Closer     *payroll.Closer
	Store      generic.ReceiptStore
	Interval   time.Duration
	MarkAsPaid bool

	logger *zap.Logger
	now    func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSettlementScheduler(closer *payroll.Closer, store generic.ReceiptStore, logger *zap.Logger) *SettlementScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementScheduler{
		Closer:   closer,
		Store:    store,
		Interval: time.Hour,
		logger:   logger.Named("scheduler"),
		now:      time.Now,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *SettlementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.logger.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *SettlementScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("scheduler stopped")
}

func (s *SettlementScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunOnce settles the previous week if it is still open. It reports whether
// a settlement was committed.
func (s *SettlementScheduler) RunOnce(ctx context.Context) bool {
	week := generic.WeekOf(generic.DateOf(s.now())).PreviousPeriod()

	closed, err := s.Store.PeriodClosed(ctx, week)
	if err != nil {
		s.logger.Error("period check failed", zap.Stringer("period", week), zap.Error(err))
		return false
	}
	if closed {
		s.logger.Debug("period already settled", zap.Stringer("period", week))
		return false
	}

	result, err := s.Closer.Close(ctx, week.Start, s.MarkAsPaid, generic.SystemActor)
	switch {
	case err == nil:
		s.logger.Info("period settled",
			zap.Stringer("period", week),
			zap.Int("receipts", result.ReceiptsCreated),
		)
		return true
	case errors.Is(err, generic.ErrPeriodClosed):
		s.logger.Info("period settled concurrently", zap.Stringer("period", week))
	default:
		s.logger.Error("automatic settlement failed", zap.Stringer("period", week), zap.Error(err))
	}
	return false
}
