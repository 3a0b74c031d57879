package main

import (
	"context"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/rtdas-ingest-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/rtdas-ingest-service/internal/adapter/mqtt"
	"github.com/couchcryptid/rtdas-ingest-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/rtdas-ingest-service/internal/adapter/redis"
	"github.com/couchcryptid/rtdas-ingest-service/internal/adapter/upstream"
	"github.com/couchcryptid/rtdas-ingest-service/internal/config"
	"github.com/couchcryptid/rtdas-ingest-service/internal/observability"
	"github.com/couchcryptid/rtdas-ingest-service/internal/pipeline"
)

// app holds the wired components shared by the run and serve commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *observability.Metrics
	orchestrator *pipeline.Orchestrator
	closers      []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	a := &app{cfg: cfg, logger: logger, metrics: metrics}

	sinks, err := a.outcomeSinks(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	fetcher := upstream.NewClient(cfg.FetchTimeout, logger, metrics)
	persister := postgres.NewPersister(postgres.DSNConnector{DSN: cfg.DatabaseURL()}, logger)

	a.orchestrator = pipeline.New(fetcher, persister, logger, metrics,
		pipeline.WithMaxWorkers(cfg.MaxWorkers),
		pipeline.WithSinks(sinks...),
	)

	logger.Info("configuration loaded",
		"sources", len(cfg.Sources),
		"max_workers", cfg.MaxWorkers,
		"sinks", len(sinks),
	)
	return a, nil
}

// outcomeSinks builds every sink whose broker address is configured.
func (a *app) outcomeSinks(ctx context.Context) ([]pipeline.OutcomeSink, error) {
	var sinks []pipeline.OutcomeSink

	if len(a.cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewOutcomeWriter(a.cfg, a.logger)
		a.closers = append(a.closers, func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		})
		sinks = append(sinks, w)
		a.logger.Info("kafka outcome sink enabled", "topic", a.cfg.KafkaOutcomeTopic)
	}

	if a.cfg.RedisAddr != "" {
		store, client, err := redisadapter.NewStatusStore(ctx, a.cfg.RedisAddr, a.cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Error("redis close error", "error", err)
			}
		})
		sinks = append(sinks, store)
		a.logger.Info("redis outcome sink enabled", "addr", a.cfg.RedisAddr)
	}

	if a.cfg.MQTTBroker != "" {
		pub, err := mqttadapter.NewPublisher(a.cfg.MQTTBroker, a.cfg.MQTTClientID, a.cfg.MQTTTopicPrefix, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
		a.logger.Info("mqtt outcome sink enabled", "broker", a.cfg.MQTTBroker)
	}

	return sinks, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
