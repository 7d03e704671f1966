package worker

import (
	"context"
	"sync"
	"time"

	"pretgo/internal/metrics"

	"github.com/rs/zerolog"
)

// LoanCounts is the outcome of one alert scan.
type LoanCounts struct {
	Active  int
	Overdue int
}

// ScanFunc runs one overdue scan over the active loans.
type ScanFunc func(ctx context.Context) (LoanCounts, error)

// AlertWorker periodically rescans active loans and publishes the counts as
// gauges. It never modifies loans.
type AlertWorker struct {
	scan     ScanFunc
	interval time.Duration
	logger   *zerolog.Logger

	mu          sync.Mutex
	lastOverdue int
}

func NewAlertWorker(scan ScanFunc, interval time.Duration, logger *zerolog.Logger) *AlertWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AlertWorker{scan: scan, interval: interval, logger: logger, lastOverdue: -1}
}

// Start scans immediately, then on every tick. It blocks until ctx is done.
func (w *AlertWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("Alert scanner started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	_ = w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Alert scanner stopped")
			return
		case <-ticker.C:
			_ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan. Gauges keep their previous value when the
// scan fails. Safe to call while Start is running.
func (w *AlertWorker) RunOnce(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	counts, err := w.scan(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Alert scan failed")
		return err
	}

	metrics.SetLoanGauges(counts.Active, counts.Overdue)
	if counts.Overdue != w.lastOverdue {
		w.logger.Info().
			Int("active", counts.Active).
			Int("overdue", counts.Overdue).
			Msg("Overdue loans changed")
		w.lastOverdue = counts.Overdue
	}
	return nil
}
