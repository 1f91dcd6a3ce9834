package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper owns the background timer driving periodic SLA sweeps. The first
// sweep runs immediately on start; overlap protection lives in the sweep
// function itself, so a long sweep simply causes skipped ticks.
type Sweeper struct {
	interval time.Duration
	sweep    func(context.Context)
	logger   *zap.Logger
}

// NewSweeper builds a sweeper invoking sweep every interval.
func NewSweeper(interval time.Duration, sweep func(context.Context), logger *zap.Logger) *Sweeper {
	return &Sweeper{interval: interval, sweep: sweep, logger: logger}
}

// Run blocks until ctx is cancelled. Start it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sla sweeper started", zap.Duration("interval", s.interval))

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}
