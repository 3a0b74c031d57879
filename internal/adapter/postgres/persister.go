// Package postgres persists normalized records into PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// Conn is the subset of *pgx.Conn used by the Persister.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Connector opens a dedicated connection for one batch.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// DSNConnector dials PostgreSQL with a connection string.
type DSNConnector struct {
	DSN string
}

// Connect opens a new connection. The caller owns and closes it.
func (c DSNConnector) Connect(ctx context.Context) (Conn, error) {
	conn, err := pgx.Connect(ctx, c.DSN)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Persister implements pipeline.Persister. Every call uses its own connection
// and transaction, so concurrent source workers share nothing.
type Persister struct {
	connector Connector
	logger    *slog.Logger
}

// NewPersister creates a Persister that obtains connections from connector.
func NewPersister(connector Connector, logger *slog.Logger) *Persister {
	return &Persister{connector: connector, logger: logger}
}

// Persist writes records to the source destination inside one transaction.
// Each record runs under its own savepoint so a failing statement is rolled
// back alone and the remaining records still commit. The returned error is
// always a *domain.ConnectionError and means nothing from the batch was kept.
func (p *Persister) Persist(ctx context.Context, src domain.SourceDescriptor, records []domain.NormalizedRecord) (domain.BatchReport, error) {
	if len(records) == 0 {
		return domain.BatchReport{}, nil
	}

	conn, err := p.connector.Connect(ctx)
	if err != nil {
		return domain.BatchReport{}, &domain.ConnectionError{Source: src.Name, Err: fmt.Errorf("connect: %w", err)}
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("close store connection failed", "source", src.Name, "error", err)
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return domain.BatchReport{}, &domain.ConnectionError{Source: src.Name, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Warn("rollback failed", "source", src.Name, "error", err)
		}
	}()

	stmt := insertStatement(src)
	report := domain.BatchReport{Results: make([]domain.RecordResult, 0, len(records))}
	for _, rec := range records {
		key := rec.Key(src.ConflictKeys)
		err := writeRecord(ctx, tx, stmt, bindArgs(src, rec))
		if err != nil {
			p.logger.Warn("persist record failed, skipping",
				"source", src.Name,
				"table", src.Destination,
				"key", key,
				"error", err,
			)
		}
		report.Results = append(report.Results, domain.RecordResult{Key: key, Err: err})
	}

	if err := tx.Commit(ctx); err != nil {
		return report, &domain.ConnectionError{Source: src.Name, Err: fmt.Errorf("commit: %w", err)}
	}
	return report, nil
}

// writeRecord executes stmt inside a savepoint on tx.
func writeRecord(ctx context.Context, tx pgx.Tx, stmt string, args []any) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := sp.Exec(ctx, stmt, args...); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
