package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseDSN     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// FetchTimeout bounds each feed download end to end.
	FetchTimeout time.Duration

	// ErrorReportPath is where rejected records are appended as CSV.
	// Empty disables the report.
	ErrorReportPath string

	// Kafka settings apply only when ingesting from a raw-record topic.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	KafkaBatchMax  int
	KafkaBatchWait time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	batchWait, err := parseDuration("KAFKA_BATCH_WAIT", "5s")
	if err != nil {
		return nil, err
	}

	batchMax, err := parseBatchMax()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseDSN:     os.Getenv("CRMPRTD_DSN"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		FetchTimeout:    fetchTimeout,
		ErrorReportPath: os.Getenv("ERROR_REPORT_PATH"),
		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "raw-observations"),
		KafkaGroupID:    envOrDefault("KAFKA_GROUP_ID", "crmprtd"),
		KafkaBatchMax:   batchMax,
		KafkaBatchWait:  batchWait,
	}

	if cfg.DatabaseDSN == "" {
		return nil, errors.New("CRMPRTD_DSN is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBatchMax() (int, error) {
	s := envOrDefault("KAFKA_BATCH_MAX", "1000")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 100000 {
		return 0, errors.New("invalid KAFKA_BATCH_MAX")
	}
	return n, nil
}
