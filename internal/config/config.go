package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// Config holds all service settings, populated from environment variables
// and the source descriptor file.
type Config struct {
	DBHost           string
	DBPort           int
	DBName           string
	DBUser           string
	DBPassword       string
	DBSSLMode        string
	DBConnectTimeout time.Duration

	SourcesFile string
	Sources     []domain.SourceDescriptor

	FetchTimeout time.Duration
	RunTimeout   time.Duration
	RunInterval  time.Duration
	MaxWorkers   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional outcome sinks, enabled when their address is set.
	KafkaBrokers      []string
	KafkaOutcomeTopic string
	RedisAddr         string
	RedisKeyPrefix    string
	MQTTBroker        string
	MQTTClientID      string
	MQTTTopicPrefix   string
}

// Load reads configuration from environment variables, applying defaults where
// unset, then loads the source descriptors named by SOURCES_FILE.
func Load() (*Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return nil, err
	}

	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	return cfg, nil
}

func loadEnv() (*Config, error) {
	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBName:     os.Getenv("DB_NAME"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBSSLMode:  envOrDefault("DB_SSLMODE", "disable"),

		SourcesFile: envOrDefault("SOURCES_FILE", "sources.yaml"),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers:      parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaOutcomeTopic: envOrDefault("KAFKA_OUTCOME_TOPIC", "rtdas-ingest-outcomes"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisKeyPrefix:    envOrDefault("REDIS_KEY_PREFIX", "rtdas:ingest"),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTClientID:      envOrDefault("MQTT_CLIENT_ID", "rtdas-ingest"),
		MQTTTopicPrefix:   envOrDefault("MQTT_TOPIC_PREFIX", "rtdas/ingest"),
	}

	var err error
	if cfg.DBConnectTimeout, err = parsePositiveDuration("DB_CONNECT_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parsePositiveDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = parsePositiveDuration("RUN_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = parsePositiveDuration("RUN_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = parseInt("DB_PORT", 5432, 1); err != nil {
		return nil, err
	}
	// Zero means one worker per source.
	if cfg.MaxWorkers, err = parseInt("MAX_WORKERS", 0, 0); err != nil {
		return nil, err
	}

	if cfg.DBHost == "" {
		return nil, errors.New("DB_HOST is required")
	}
	if cfg.DBName == "" {
		return nil, errors.New("DB_NAME is required")
	}
	if cfg.DBUser == "" {
		return nil, errors.New("DB_USER is required")
	}

	return cfg, nil
}

// DatabaseURL builds the PostgreSQL connection URL for pgx.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.DBConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minValue)
	}
	return n, nil
}
