package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

const minimalSources = `
sources:
  - name: AWLR
    url: ${TEST_AWLR_URL}
    username: user
    password: ${TEST_AWLR_PASSWORD}
    table: awlr_readings
    fields: [inputDate, batteryLevel, waterLevel, stationID]
  - name: AWLR Master
    kind: master
    url: http://upstream/awlr/master
    fields: [stationID, name, longitude, latitude]
    optional_fields: [location, type, zone]
    label: AWLR station
`

func setRequiredEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalSources), 0o600))

	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "rtdas")
	t.Setenv("DB_USER", "ingest")
	t.Setenv("SOURCES_FILE", path)
	t.Setenv("TEST_AWLR_URL", "http://upstream/awlr")
	t.Setenv("TEST_AWLR_PASSWORD", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, 10*time.Second, cfg.DBConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 0, cfg.MaxWorkers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "rtdas-ingest-outcomes", cfg.KafkaOutcomeTopic)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "rtdas:ingest", cfg.RedisKeyPrefix)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, "rtdas/ingest", cfg.MQTTTopicPrefix)
	require.Len(t, cfg.Sources, 2)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("RUN_TIMEOUT", "2m")
	t.Setenv("RUN_INTERVAL", "15m")
	t.Setenv("MAX_WORKERS", "2")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("REDIS_ADDR", "valkey:6379")
	t.Setenv("MQTT_BROKER", "tcp://mqtt:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "valkey:6379", cfg.RedisAddr)
	assert.Equal(t, "tcp://mqtt:1883", cfg.MQTTBroker)
	assert.Equal(t, "postgres://ingest:pw@db.internal:6543/rtdas?connect_timeout=10&sslmode=require", cfg.DatabaseURL())
}

func TestLoad_MissingDatabaseSettings(t *testing.T) {
	for _, key := range []string{"DB_HOST", "DB_NAME", "DB_USER"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"FETCH_TIMEOUT", "RUN_TIMEOUT", "RUN_INTERVAL", "SHUTDOWN_TIMEOUT", "DB_CONNECT_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "-1s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidMaxWorkers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_WORKERS", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_WORKERS")
}

func TestLoad_MissingSourcesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOURCES_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCES_FILE")
}

func TestParseSources_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_AWLR_URL", "http://upstream/awlr")
	t.Setenv("TEST_AWLR_PASSWORD", "s3cret")

	sources, err := ParseSources([]byte(minimalSources))
	require.NoError(t, err)
	require.Len(t, sources, 2)

	reading := sources[0]
	assert.Equal(t, domain.KindReading, reading.Kind)
	assert.Equal(t, "http://upstream/awlr", reading.Endpoint)
	assert.Equal(t, "s3cret", reading.Password)
	assert.Equal(t, "content", reading.EnvelopeKey)
	assert.Equal(t, []string{"stationID", "inputDate"}, reading.ConflictKeys)

	master := sources[1]
	assert.Equal(t, domain.KindMaster, master.Kind)
	assert.Equal(t, "rtdas_master", master.Destination)
	assert.Equal(t, "data", master.EnvelopeKey)
	assert.Equal(t, []string{"stationID"}, master.ConflictKeys)
	assert.Equal(t, "AWLR station", master.Label)
}

func TestParseSources_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":            `sources: []`,
		"unknown kind":     "sources:\n  - {name: X, kind: hourly, url: http://x, table: t, fields: [a]}",
		"missing url":      "sources:\n  - {name: X, table: t, fields: [stationID, inputDate]}",
		"missing fields":   "sources:\n  - {name: X, url: http://x, table: t}",
		"bad table":        "sources:\n  - {name: X, url: http://x, table: \"t; DROP TABLE x\", fields: [stationID, inputDate]}",
		"bad column":       "sources:\n  - {name: X, url: http://x, table: t, fields: [\"station id\", inputDate]}",
		"key not a field":  "sources:\n  - {name: X, url: http://x, table: t, fields: [stationID, batteryLevel]}",
		"duplicate column": "sources:\n  - {name: X, url: http://x, table: t, fields: [stationID, inputDate, stationID]}",
		"duplicate name":   "sources:\n  - {name: X, url: http://x, table: t, fields: [stationID, inputDate]}\n  - {name: X, url: http://y, table: u, fields: [stationID, inputDate]}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSources([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseSources_ShippedExample(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "sources.yaml"))
	require.NoError(t, err)

	for _, key := range []string{"AWS", "AWLR", "ARG"} {
		t.Setenv(key+"_URL", "http://upstream/"+key)
		t.Setenv(key+"_TABLE", "rtdas_"+key)
		t.Setenv(key+"_MASTER_URL", "http://upstream/"+key+"/master")
	}

	sources, err := ParseSources(data)
	require.NoError(t, err)
	assert.Len(t, sources, 6)
}
