// Package upstream fetches telemetry and station master data from the RTDAS
// source APIs.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
	"github.com/couchcryptid/rtdas-ingest-service/internal/observability"
)

const (
	// MaxResponseSize caps the body read from a single source.
	MaxResponseSize = 64 * 1024 * 1024

	userAgent = "rtdas-ingest/1.0"
)

// Client implements pipeline.Fetcher over HTTP with basic authentication.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a source client whose requests time out after timeout.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch issues one GET against the source endpoint and returns the records
// found under its envelope key. A missing or null envelope yields no records.
func (c *Client) Fetch(ctx context.Context, src domain.SourceDescriptor) ([]domain.RawRecord, error) {
	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: src.Name, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if src.Username != "" || src.Password != "" {
		req.SetBasicAuth(src.Username, src.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: src.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.FetchError{Source: src.Name, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	records, err := decodeEnvelope(io.LimitReader(resp.Body, MaxResponseSize), src.EnvelopeKey)
	if err != nil {
		return nil, &domain.FetchError{Source: src.Name, Err: err}
	}

	c.logger.Debug("source fetched", "source", src.Name, "records", len(records), "duration", time.Since(start))
	return records, nil
}

// decodeEnvelope keeps numbers as json.Number so they reach the store in
// their original text form.
func decodeEnvelope(r io.Reader, key string) ([]domain.RawRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}

	var records []domain.RawRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("response key %q is not an array of objects", key)
		}
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return records, nil
}
