package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
	"github.com/couchcryptid/rtdas-ingest-service/internal/observability"
)

// Fetcher retrieves the raw records currently offered by a source.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.SourceDescriptor) ([]domain.RawRecord, error)
}

// Persister writes a validated batch to the source destination.
type Persister interface {
	Persist(ctx context.Context, src domain.SourceDescriptor, records []domain.NormalizedRecord) (domain.BatchReport, error)
}

// OutcomeSink receives the report of every completed run.
type OutcomeSink interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Orchestrator runs the fetch-validate-persist pipeline for every source in
// parallel and gathers one Outcome per source.
type Orchestrator struct {
	fetcher    Fetcher
	persister  Persister
	sinks      []OutcomeSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxWorkers int

	ready atomic.Bool
	last  atomic.Pointer[domain.Report]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxWorkers bounds the number of sources processed at once.
// Zero or negative means one worker per source.
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) { o.maxWorkers = n }
}

// WithSinks adds destinations for run reports.
func WithSinks(sinks ...OutcomeSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// New creates an Orchestrator with the given stages and observability.
func New(f Fetcher, p Persister, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   f,
		persister: p,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckReadiness returns nil once at least one run has completed.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// LastReport returns the most recent run report, if any.
func (o *Orchestrator) LastReport() (domain.Report, bool) {
	r := o.last.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run processes every source concurrently and blocks until all have finished.
// Outcomes are returned in the order of sources regardless of completion order.
// A failing source never cancels or delays the others.
func (o *Orchestrator) Run(ctx context.Context, sources []domain.SourceDescriptor) domain.Report {
	report := domain.Report{
		StartedAt: domain.Now(),
		Outcomes:  make([]domain.Outcome, len(sources)),
	}
	o.logger.Info("run started", "sources", len(sources))

	var g errgroup.Group
	g.SetLimit(o.workerLimit(len(sources)))
	for i, src := range sources {
		g.Go(func() error {
			report.Outcomes[i] = o.runSourceSafely(ctx, src)
			return nil
		})
	}
	_ = g.Wait() // failures are captured per outcome

	report.FinishedAt = domain.Now()
	o.record(report)
	o.publish(ctx, report)

	o.last.Store(&report)
	o.ready.Store(true)
	return report
}

func (o *Orchestrator) workerLimit(n int) int {
	if o.maxWorkers > 0 && o.maxWorkers < n {
		return o.maxWorkers
	}
	return max(n, 1)
}

// runSourceSafely turns a panic inside one source into a FAILED outcome.
func (o *Orchestrator) runSourceSafely(ctx context.Context, src domain.SourceDescriptor) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("source run panicked", "source", src.Name, "panic", r)
			out = domain.NewOutcome(src).Fail(fmt.Errorf("panic: %v", r))
		}
	}()
	return o.runSource(ctx, src)
}

// runSource drives one source through PENDING → FETCHING → VALIDATING →
// PERSISTING → SUCCEEDED/FAILED. Only fetch and store connection errors fail
// the run; rejections and per-record write errors show up in the counts.
func (o *Orchestrator) runSource(ctx context.Context, src domain.SourceDescriptor) domain.Outcome {
	logger := o.logger.With("source", src.Name, "destination", src.Destination)
	outcome := domain.NewOutcome(src)
	transition := func(to domain.State) {
		logger.Debug("source state", "from", outcome.Status, "to", to)
		outcome.Status = to
	}

	transition(domain.StateFetching)
	raw, err := o.fetcher.Fetch(ctx, src)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		return outcome.Fail(err)
	}
	outcome.Fetched = len(raw)

	transition(domain.StateValidating)
	records := make([]domain.NormalizedRecord, 0, len(raw))
	for _, r := range raw {
		rec, ok := src.Clean(r)
		if !ok {
			outcome.Rejected++
			continue
		}
		records = append(records, rec)
	}
	outcome.Duplicates = countDuplicateKeys(records, src.ConflictKeys)
	if outcome.Duplicates > 0 {
		logger.Warn("batch contains records sharing a natural key; the store keeps one per key",
			"duplicates", outcome.Duplicates, "keys", src.ConflictKeys)
	}

	transition(domain.StatePersisting)
	batch, err := o.persister.Persist(ctx, src, records)
	if err != nil {
		logger.Error("persist failed", "error", err)
		return outcome.Fail(err)
	}

	outcome = outcome.Succeed(batch)
	logger.Info("source run finished",
		"status", outcome.Status,
		"fetched", outcome.Fetched,
		"rejected", outcome.Rejected,
		"persisted", outcome.Persisted(),
		"errors", outcome.Failed,
	)
	return outcome
}

// countDuplicateKeys counts records whose natural key already appeared earlier
// in the batch.
func countDuplicateKeys(records []domain.NormalizedRecord, keys []string) int {
	seen := make(map[string]struct{}, len(records))
	dups := 0
	for _, r := range records {
		k := r.Key(keys)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

func (o *Orchestrator) record(report domain.Report) {
	for _, out := range report.Outcomes {
		o.metrics.SourceRuns.WithLabelValues(out.Source, string(out.Status)).Inc()
		o.metrics.RecordsFetched.WithLabelValues(out.Source).Add(float64(out.Fetched))
		o.metrics.RecordsRejected.WithLabelValues(out.Source).Add(float64(out.Rejected))
		o.metrics.RecordsPersisted.WithLabelValues(out.Source).Add(float64(out.Persisted()))
		o.metrics.PersistErrors.WithLabelValues(out.Source).Add(float64(out.Failed))
	}
	o.metrics.RunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	o.metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
}

// publish hands the report to every sink. Sink failures are logged only; they
// never change the run result.
func (o *Orchestrator) publish(ctx context.Context, report domain.Report) {
	if len(o.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, s := range o.sinks {
		if err := s.Publish(ctx, report); err != nil {
			o.logger.Warn("publish run report failed", "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}
