//go:build integration

package integration_test

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

// schema mirrors the production tables closely enough for the writes under
// test. The AWLR check constraint lets tests force a per-record failure.
const schema = `
CREATE TABLE aws_readings (
	uuid uuid PRIMARY KEY,
	inputDate text NOT NULL,
	batteryLevel double precision,
	hourlyRainFall double precision,
	stationID text NOT NULL,
	UNIQUE (stationID, inputDate)
);
CREATE TABLE awlr_readings (
	uuid uuid PRIMARY KEY,
	inputDate text NOT NULL,
	waterLevel double precision CHECK (waterLevel < 1000),
	stationID text NOT NULL,
	UNIQUE (stationID, inputDate)
);
CREATE TABLE rtdas_master (
	stationID text PRIMARY KEY,
	name text NOT NULL,
	longitude double precision,
	latitude double precision,
	location text,
	type text,
	zone text,
	source text
);`

// startPostgres runs a Postgres container with the test schema applied and
// returns its connection string plus an open connection for assertions.
func startPostgres(ctx context.Context, t *testing.T) (string, *pgx.Conn) {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rtdas"),
		postgres.WithUsername("rtdas"),
		postgres.WithPassword("rtdas"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)
	tc.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	_, err = conn.Exec(ctx, schema)
	require.NoError(t, err, "apply schema")
	return dsn, conn
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("rtdas-test"),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)
	tc.CleanupContainer(t, container)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func countRows(ctx context.Context, t *testing.T, conn *pgx.Conn, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n))
	return n
}
