package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string         `yaml:"environment" toml:"environment"`
	Server      ServerConfig   `yaml:"server" toml:"server"`
	Log         LogConfig      `yaml:"log" toml:"log"`
	Metrics     MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Tracing     TracingConfig  `yaml:"tracing" toml:"tracing"`
	Agent       AgentConfig    `yaml:"agent" toml:"agent"`
	Poller      PollerConfig   `yaml:"poller" toml:"poller"`
	Ingest      IngestConfig   `yaml:"ingest" toml:"ingest"`
	Kafka       KafkaConfig    `yaml:"kafka" toml:"kafka"`
	ClickHouse  ClickHouse     `yaml:"clickhouse" toml:"clickhouse"`
	Redis       RedisConfig    `yaml:"redis" toml:"redis"`
	Queue       QueueConfig    `yaml:"queue" toml:"queue"`
	History     HistoryConfig  `yaml:"history" toml:"history"`
	Archive     ArchiveConfig  `yaml:"archive" toml:"archive"`
	Telegram    TelegramConfig `yaml:"telegram" toml:"telegram"`
	API         APIConfig      `yaml:"api" toml:"api"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins" toml:"cors_origins"`
	SlowRequest     time.Duration `yaml:"slow_request" toml:"slow_request"`
}

type LogConfig struct {
	Level     string `yaml:"level" toml:"level"`
	Format    string `yaml:"format" toml:"format"`
	Output    string `yaml:"output" toml:"output"`
	Collector struct {
		Enabled   bool          `yaml:"enabled" toml:"enabled"`
		Interval  time.Duration `yaml:"interval" toml:"interval"`
		Threshold int           `yaml:"threshold" toml:"threshold"`
		Topic     string        `yaml:"topic" toml:"topic"`
	} `yaml:"collector" toml:"collector"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	ServiceName string  `yaml:"service_name" toml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// SourceConfig declares one place the cycle log can be read from.
type SourceConfig struct {
	Name  string `yaml:"name" toml:"name"`
	Type  string `yaml:"type" toml:"type"` // http, redis or clickhouse
	URL   string `yaml:"url" toml:"url"`
	Agent string `yaml:"agent" toml:"agent"`
	Lines int    `yaml:"lines" toml:"lines"`
}

type AgentConfig struct {
	Sources    []SourceConfig `yaml:"sources" toml:"sources"`
	Timeout    time.Duration  `yaml:"timeout" toml:"timeout"`
	Retries    int            `yaml:"retries" toml:"retries"`
	RetryDelay time.Duration  `yaml:"retry_delay" toml:"retry_delay"`
	Stream     struct {
		Enabled        bool          `yaml:"enabled" toml:"enabled"`
		URL            string        `yaml:"url" toml:"url"`
		Token          string        `yaml:"token" toml:"token"`
		Agents         []string      `yaml:"agents" toml:"agents"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	} `yaml:"stream" toml:"stream"`
}

type PollerConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Interval time.Duration `yaml:"interval" toml:"interval"`
	SeenTTL  time.Duration `yaml:"seen_ttl" toml:"seen_ttl"`
	Sources  []string      `yaml:"sources" toml:"sources"`
}

type IngestConfig struct {
	Backend      string        `yaml:"backend" toml:"backend"` // kafka or redis
	BatchSize    int           `yaml:"batch_size" toml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" toml:"batch_timeout"`
	MaxLineBytes int           `yaml:"max_line_bytes" toml:"max_line_bytes"`
	BufferLines  int           `yaml:"buffer_lines" toml:"buffer_lines"`
	MaxLPS       int           `yaml:"max_lines_per_second" toml:"max_lines_per_second"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	Brokers      []string `yaml:"brokers" toml:"brokers"`
	LogsTopic    string   `yaml:"logs_topic" toml:"logs_topic"`
	SignalsTopic string   `yaml:"signals_topic" toml:"signals_topic"`
	RequiredAcks int      `yaml:"required_acks" toml:"required_acks"`
	Compression  string   `yaml:"compression" toml:"compression"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" toml:"max_attempts"`
		Linger       time.Duration `yaml:"linger" toml:"linger"`
		BatchBytes   int           `yaml:"batch_bytes" toml:"batch_bytes"`
		BatchSize    int           `yaml:"batch_size" toml:"batch_size"`
		WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
		Async        bool          `yaml:"async" toml:"async"`
	} `yaml:"producer" toml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled" toml:"enabled"`
		GroupID    string        `yaml:"group_id" toml:"group_id"`
		Workers    int           `yaml:"workers" toml:"workers"`
		BufferSize int           `yaml:"buffer_size" toml:"buffer_size"`
		RetryMax   int           `yaml:"retry_max" toml:"retry_max"`
		BackoffMin time.Duration `yaml:"backoff_min" toml:"backoff_min"`
		BackoffMax time.Duration `yaml:"backoff_max" toml:"backoff_max"`
		DLQTopic   string        `yaml:"dlq_topic" toml:"dlq_topic"`
	} `yaml:"consumer" toml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled" toml:"enabled"`
	Host             string        `yaml:"host" toml:"host"`
	Port             int           `yaml:"port" toml:"port"`
	Database         string        `yaml:"database" toml:"database"`
	User             string        `yaml:"user" toml:"user"`
	Password         string        `yaml:"password" toml:"password"`
	UseHTTP          bool          `yaml:"use_http" toml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" toml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" toml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" toml:"max_execution_time"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	Name       string        `yaml:"name" toml:"name"`
	Workers    int           `yaml:"workers" toml:"workers"`
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay"`
}

type HistoryConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // none, clickhouse, postgres, sqlite
	DSN    string `yaml:"dsn" toml:"dsn"`
}

type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled"`
	Bucket         string `yaml:"bucket" toml:"bucket"`
	Region         string `yaml:"region" toml:"region"`
	Endpoint       string `yaml:"endpoint" toml:"endpoint"`
	AccessKey      string `yaml:"access_key" toml:"access_key"`
	SecretKey      string `yaml:"secret_key" toml:"secret_key"`
	Prefix         string `yaml:"prefix" toml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style" toml:"force_path_style"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
	ChatID  int64  `yaml:"chat_id" toml:"chat_id"`
}

type APIConfig struct {
	RateLimit struct {
		RPS   float64 `yaml:"rps" toml:"rps"`
		Burst int     `yaml:"burst" toml:"burst"`
	} `yaml:"rate_limit" toml:"rate_limit"`
	Cache struct {
		Backend     string        `yaml:"backend" toml:"backend"` // memory or redis
		LatestTTL   time.Duration `yaml:"latest_ttl" toml:"latest_ttl"`
		FeedTTL     time.Duration `yaml:"feed_ttl" toml:"feed_ttl"`
		OverviewTTL time.Duration `yaml:"overview_ttl" toml:"overview_ttl"`
	} `yaml:"cache" toml:"cache"`
	OverviewTimeout time.Duration `yaml:"overview_timeout" toml:"overview_timeout"`
}

// Defaults returns a configuration that runs a single HTTP source with no
// external infrastructure.
func Defaults() Config {
	var c Config
	c.Environment = "development"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.SlowRequest = time.Second
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Log.Output = "stdout"
	c.Log.Collector.Interval = 30 * time.Second
	c.Log.Collector.Threshold = 100
	c.Log.Collector.Topic = "zigma.errors"
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Tracing.ServiceName = "zigmapulse"
	c.Tracing.SampleRatio = 1
	c.Agent.Sources = []SourceConfig{{Name: "agent", Type: "http", URL: "http://localhost:3001"}}
	c.Agent.Timeout = 10 * time.Second
	c.Agent.Retries = 2
	c.Agent.RetryDelay = 500 * time.Millisecond
	c.Agent.Stream.ReconnectDelay = 5 * time.Second
	c.Agent.Stream.PingInterval = 30 * time.Second
	c.Poller.Interval = 45 * time.Second
	c.Poller.SeenTTL = 24 * time.Hour
	c.Ingest.Backend = "redis"
	c.Ingest.BatchSize = 100
	c.Ingest.BatchTimeout = time.Second
	c.Ingest.MaxLineBytes = 64 * 1024
	c.Ingest.BufferLines = 5000
	c.Ingest.MaxLPS = 500
	c.Kafka.LogsTopic = "agent.logs"
	c.Kafka.SignalsTopic = "zigma.signals"
	c.Kafka.RequiredAcks = 1
	c.Kafka.Consumer.GroupID = "zigmapulse"
	c.Kafka.Consumer.Workers = 4
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 100 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 5 * time.Second
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "zigma"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.Redis.Addr = "localhost:6379"
	c.Queue.Name = "zigma"
	c.Queue.Workers = 2
	c.Queue.MaxRetries = 3
	c.Queue.RetryDelay = 5 * time.Second
	c.History.Driver = "none"
	c.Archive.Prefix = "logs"
	c.Archive.Region = "us-east-1"
	c.API.RateLimit.RPS = 10
	c.API.RateLimit.Burst = 20
	c.API.Cache.Backend = "memory"
	c.API.Cache.LatestTTL = 5 * time.Second
	c.API.Cache.FeedTTL = 10 * time.Second
	c.API.Cache.OverviewTTL = 15 * time.Second
	c.API.OverviewTimeout = 8 * time.Second
	return c
}

// Load reads a YAML or TOML (by extension) file on top of Defaults and validates it.
func Load(path string) (*Config, error) {
	c := Defaults()
	if err := decodeFile(path, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv is Load plus .env loading and ZIGMA_* overrides, applied before validation.
func LoadWithEnv(path string) (*Config, error) {
	c := Defaults()
	if err := decodeFile(path, &c); err != nil {
		return nil, err
	}

	// a missing .env is fine
	_ = godotenv.Load()
	applyEnvOverrides(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func decodeFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), c); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if len(c.Agent.Sources) == 0 {
		errs = append(errs, errors.New("agent.sources cannot be empty"))
	}
	seen := make(map[string]bool)
	for i, s := range c.Agent.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("agent.sources[%d].name is required", i))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("agent.sources[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		switch s.Type {
		case "http":
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("agent.sources[%d].url is required for http", i))
			}
		case "redis":
			if !c.Redis.Enabled {
				errs = append(errs, fmt.Errorf("agent.sources[%d]: redis source needs redis.enabled", i))
			}
		case "clickhouse":
			if !c.ClickHouse.Enabled {
				errs = append(errs, fmt.Errorf("agent.sources[%d]: clickhouse source needs clickhouse.enabled", i))
			}
		default:
			errs = append(errs, fmt.Errorf("agent.sources[%d].type must be http, redis or clickhouse, got %q", i, s.Type))
		}
	}
	if c.Poller.Enabled {
		if c.Poller.Interval < 30*time.Second || c.Poller.Interval > 60*time.Second {
			errs = append(errs, fmt.Errorf("poller.interval must be within 30s..60s, got %s", c.Poller.Interval))
		}
		for _, name := range c.Poller.Sources {
			if !seen[name] {
				errs = append(errs, fmt.Errorf("poller.sources: unknown source %q", name))
			}
		}
	}
	if c.Ingest.Backend != "kafka" && c.Ingest.Backend != "redis" {
		errs = append(errs, fmt.Errorf("ingest.backend must be 'kafka' or 'redis', got '%s'", c.Ingest.Backend))
	}
	if c.Agent.Stream.Enabled {
		if c.Agent.Stream.URL == "" || len(c.Agent.Stream.Agents) == 0 {
			errs = append(errs, errors.New("agent.stream needs url and agents"))
		}
		if c.Ingest.Backend == "kafka" && !c.Kafka.Enabled {
			errs = append(errs, errors.New("ingest.backend kafka needs kafka.enabled"))
		}
		if c.Ingest.Backend == "redis" && !c.Redis.Enabled {
			errs = append(errs, errors.New("ingest.backend redis needs redis.enabled"))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty"))
	}
	switch c.History.Driver {
	case "", "none":
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			errs = append(errs, errors.New("history.driver clickhouse needs clickhouse.enabled"))
		}
	case "postgres", "sqlite":
		if c.History.DSN == "" {
			errs = append(errs, fmt.Errorf("history.dsn is required for %s", c.History.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("history.driver unknown: %q", c.History.Driver))
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		errs = append(errs, errors.New("queue.enabled needs redis.enabled"))
	}
	if c.API.Cache.Backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, errors.New("api.cache.backend redis needs redis.enabled"))
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket is required"))
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("telegram needs token and chat_id"))
	}
	return errors.Join(errs...)
}

// SourceNames lists configured sources in declaration order.
func (c *Config) SourceNames() []string {
	out := make([]string, 0, len(c.Agent.Sources))
	for _, s := range c.Agent.Sources {
		out = append(out, s.Name)
	}
	return out
}
