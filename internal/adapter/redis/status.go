// Package redis keeps the latest per-source ingestion outcome in Redis (or
// Valkey) so dashboards can read current status without touching Postgres.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// statusTTL expires status keys for a service that stopped running.
const statusTTL = 7 * 24 * time.Hour

// StatusStore implements pipeline.OutcomeSink.
type StatusStore struct {
	client goredis.Cmdable
	prefix string
}

// NewStatusStore connects to addr and verifies the connection.
func NewStatusStore(ctx context.Context, addr, prefix string) (*StatusStore, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return newStatusStore(client, prefix), client, nil
}

func newStatusStore(client goredis.Cmdable, prefix string) *StatusStore {
	return &StatusStore{client: client, prefix: prefix}
}

// OutcomesKey is the hash holding one JSON outcome per source.
func (s *StatusStore) OutcomesKey() string { return s.prefix + ":outcomes" }

// LastRunKey holds the RFC 3339 finish time of the latest run.
func (s *StatusStore) LastRunKey() string { return s.prefix + ":last_run" }

// Publish stores every outcome of the report in one transaction.
func (s *StatusStore) Publish(ctx context.Context, report domain.Report) error {
	fields := make(map[string]any, len(report.Outcomes))
	for _, o := range report.Outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("serialize outcome %s: %w", o.Source, err)
		}
		fields[o.Source] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, s.OutcomesKey(), fields)
			pipe.Expire(ctx, s.OutcomesKey(), statusTTL)
		}
		pipe.Set(ctx, s.LastRunKey(), report.FinishedAt.Format(time.RFC3339), statusTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store outcomes: %w", err)
	}
	return nil
}

// Outcome reads the stored outcome for one source.
func (s *StatusStore) Outcome(ctx context.Context, source string) (domain.Outcome, error) {
	var o domain.Outcome
	data, err := s.client.HGet(ctx, s.OutcomesKey(), source).Bytes()
	if err != nil {
		return o, fmt.Errorf("read outcome %s: %w", source, err)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("decode outcome %s: %w", source, err)
	}
	return o, nil
}
