package domain

import (
	"fmt"
	"time"
)

// State is a step in a single source run.
type State string

const (
	StatePending    State = "PENDING"
	StateFetching   State = "FETCHING"
	StateValidating State = "VALIDATING"
	StatePersisting State = "PERSISTING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// Outcome summarizes one source run. Only Status SUCCEEDED or FAILED is
// ever reported.
type Outcome struct {
	Source     string    `json:"source"`
	Kind       Kind      `json:"kind"`
	Status     State     `json:"status"`
	Fetched    int       `json:"fetched"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	Attempted  int       `json:"attempted"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewOutcome starts an outcome for src stamped with the package clock.
func NewOutcome(src SourceDescriptor) Outcome {
	return Outcome{
		Source:    src.Name,
		Kind:      src.Kind,
		Status:    StatePending,
		StartedAt: Now(),
	}
}

// Succeed marks the outcome successful with the persistence results.
func (o Outcome) Succeed(batch BatchReport) Outcome {
	o.Attempted = batch.Attempted()
	o.Failed = batch.Failed()
	o.Status = StateSucceeded
	o.FinishedAt = Now()
	return o
}

// Fail marks the outcome as terminally failed.
func (o Outcome) Fail(err error) Outcome {
	o.Status = StateFailed
	o.Error = err.Error()
	o.FinishedAt = Now()
	return o
}

// Persisted is the number of records written without error.
func (o Outcome) Persisted() int { return o.Attempted - o.Failed }

// SummaryLine renders the human-readable line printed after a run.
func (o Outcome) SummaryLine() string {
	if o.Status == StateFailed {
		return fmt.Sprintf("FAIL %s failed: %s", o.Source, o.Error)
	}
	return fmt.Sprintf("OK   %s inserted %d/%d records (rejected %d, errors %d)",
		o.Source, o.Persisted(), o.Fetched, o.Rejected, o.Failed)
}

// Report is the result of one run across every configured source.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Failed reports whether any source run failed.
func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StateFailed {
			return true
		}
	}
	return false
}

// Lines returns one summary line per source in configuration order.
func (r Report) Lines() []string {
	lines := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		lines[i] = o.SummaryLine()
	}
	return lines
}
