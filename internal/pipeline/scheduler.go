package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
	"github.com/couchcryptid/rtdas-ingest-service/internal/observability"
)

// Runner executes one ingestion run over the given sources.
type Runner interface {
	Run(ctx context.Context, sources []domain.SourceDescriptor) domain.Report
}

// Scheduler triggers a run immediately and then once per interval until the
// context is cancelled.
type Scheduler struct {
	runner     Runner
	sources    []domain.SourceDescriptor
	interval   time.Duration
	runTimeout time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewScheduler creates a Scheduler. Each run is bounded by runTimeout.
func NewScheduler(r Runner, sources []domain.SourceDescriptor, interval, runTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		runner:     r,
		sources:    sources,
		interval:   interval,
		runTimeout: runTimeout,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run blocks until ctx is cancelled. A run in progress when ctx is cancelled
// is allowed to observe the cancellation through its own context.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "sources", len(s.sources))
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	report := s.runner.Run(runCtx, s.sources)
	for _, line := range report.Lines() {
		s.logger.Info("run summary", "line", line)
	}
}
