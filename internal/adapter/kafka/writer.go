package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/rtdas-ingest-service/internal/config"
	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// OutcomeWriter publishes per-source run outcomes to a Kafka topic.
// It implements pipeline.OutcomeSink.
type OutcomeWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewOutcomeWriter creates a Kafka producer for the configured outcome topic.
func NewOutcomeWriter(cfg *config.Config, logger *slog.Logger) *OutcomeWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaOutcomeTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &OutcomeWriter{writer: w, logger: logger}
}

// Publish writes one message per outcome in a single WriteMessages call.
// Messages are keyed by source name so each source stays on one partition.
func (w *OutcomeWriter) Publish(ctx context.Context, report domain.Report) error {
	if len(report.Outcomes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Outcomes))
	for i := range report.Outcomes {
		msg, err := serializeToMessage(report.Outcomes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	w.logger.Debug("outcomes published", "count", len(msgs))
	return nil
}

func (w *OutcomeWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Outcome into a Kafka message.
func serializeToMessage(o domain.Outcome) (kafkago.Message, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outcome: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(o.Source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(o.Status)},
			{Key: "finished_at", Value: []byte(o.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
