// Package mqtt publishes retained per-source status messages so field
// dashboards subscribed to the broker always see the latest run result.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
)

// Publisher implements pipeline.OutcomeSink.
type Publisher struct {
	client  pahomqtt.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher connects to broker and returns a Publisher.
func NewPublisher(broker, clientID, prefix string, logger *slog.Logger) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return newPublisher(client, prefix, logger), nil
}

func newPublisher(client pahomqtt.Client, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: publishTimeout,
		logger:  logger,
	}
}

// Topic returns the status topic for a source, e.g. "rtdas/ingest/aws-master/status".
func (p *Publisher) Topic(source string) string {
	return fmt.Sprintf("%s/%s/status", p.prefix, slug(source))
}

// Publish sends one retained message per outcome. It stops at the first
// failed publish.
func (p *Publisher) Publish(ctx context.Context, report domain.Report) error {
	for _, o := range report.Outcomes {
		payload, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("serialize outcome %s: %w", o.Source, err)
		}
		if err := p.publishOne(ctx, o.Source, payload); err != nil {
			return err
		}
	}
	return nil
}

// publishOne waits for the broker acknowledgement of one retained message.
func (p *Publisher) publishOne(ctx context.Context, source string, payload []byte) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	token := p.client.Publish(p.Topic(source), qosAtLeastOnce, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish %s: timed out", source)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", source, err)
	}
	return nil
}

// Close disconnects after letting in-flight messages drain.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// slug lowercases s and replaces anything outside [a-z0-9] with '-', which
// keeps MQTT wildcards and separators out of topic levels.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
