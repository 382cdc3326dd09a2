package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides lets deployments inject secrets and endpoints without touching the file.
func applyEnvOverrides(c *Config) {
	setStr(&c.Environment, "ZIGMA_ENVIRONMENT")
	setInt(&c.Server.Port, "ZIGMA_SERVER_PORT")
	setStrings(&c.Server.CORSOrigins, "ZIGMA_SERVER_CORS_ORIGINS")

	setStr(&c.Log.Level, "ZIGMA_LOG_LEVEL")
	setStr(&c.Log.Format, "ZIGMA_LOG_FORMAT")

	setBool(&c.Tracing.Enabled, "ZIGMA_TRACING_ENABLED")

	// a single URL replaces the first http source, the common one-agent setup
	if v := os.Getenv("ZIGMA_AGENT_URL"); v != "" {
		for i := range c.Agent.Sources {
			if c.Agent.Sources[i].Type == "http" {
				c.Agent.Sources[i].URL = v
				break
			}
		}
	}
	setDuration(&c.Agent.Timeout, "ZIGMA_AGENT_TIMEOUT")
	setStr(&c.Agent.Stream.URL, "ZIGMA_AGENT_STREAM_URL")
	setStr(&c.Agent.Stream.Token, "ZIGMA_AGENT_STREAM_TOKEN")

	setBool(&c.Poller.Enabled, "ZIGMA_POLLER_ENABLED")
	setDuration(&c.Poller.Interval, "ZIGMA_POLLER_INTERVAL")

	setStr(&c.Ingest.Backend, "ZIGMA_INGEST_BACKEND")

	setStrings(&c.Kafka.Brokers, "ZIGMA_KAFKA_BROKERS")
	setStr(&c.Kafka.LogsTopic, "ZIGMA_KAFKA_LOGS_TOPIC")
	setStr(&c.Kafka.SignalsTopic, "ZIGMA_KAFKA_SIGNALS_TOPIC")

	setStr(&c.ClickHouse.Host, "ZIGMA_CLICKHOUSE_HOST")
	setStr(&c.ClickHouse.User, "ZIGMA_CLICKHOUSE_USER")
	setStr(&c.ClickHouse.Password, "ZIGMA_CLICKHOUSE_PASSWORD")

	setStr(&c.Redis.Addr, "ZIGMA_REDIS_ADDR")
	setStr(&c.Redis.Password, "ZIGMA_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "ZIGMA_REDIS_DB")

	setStr(&c.History.Driver, "ZIGMA_HISTORY_DRIVER")
	setStr(&c.History.DSN, "ZIGMA_HISTORY_DSN")

	setStr(&c.Archive.Bucket, "ZIGMA_ARCHIVE_BUCKET")
	setStr(&c.Archive.Endpoint, "ZIGMA_ARCHIVE_ENDPOINT")
	setStr(&c.Archive.AccessKey, "ZIGMA_ARCHIVE_ACCESS_KEY")
	setStr(&c.Archive.SecretKey, "ZIGMA_ARCHIVE_SECRET_KEY")

	setStr(&c.Telegram.Token, "ZIGMA_TELEGRAM_TOKEN")
	setInt64(&c.Telegram.ChatID, "ZIGMA_TELEGRAM_CHAT_ID")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStrings(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
