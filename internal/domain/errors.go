package domain

import "fmt"

// FetchError is a terminal failure retrieving data from a source.
// StatusCode is zero when no HTTP response was received.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConnectionError means the destination store could not be used at all.
type ConnectionError struct {
	Source string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store connection for %s: %v", e.Source, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RecordResult is the persistence result of one record. Err is nil on success,
// which includes conflicting inserts that the store turned into no-ops.
type RecordResult struct {
	Key string
	Err error
}

// BatchReport collects per-record results for one persisted batch.
type BatchReport struct {
	Results []RecordResult
}

// Attempted is the number of records a write was issued for.
func (b BatchReport) Attempted() int { return len(b.Results) }

// Failed is the number of records whose write returned an error.
func (b BatchReport) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
