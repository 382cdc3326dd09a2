package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "ZigmaPulse/internal/domain/repository"
	domsvc "ZigmaPulse/internal/domain/service"
	"ZigmaPulse/internal/handler/api"
	mid "ZigmaPulse/internal/middleware"
	internalrepo "ZigmaPulse/internal/repository"
	"ZigmaPulse/internal/service/agentstream"
	"ZigmaPulse/internal/service/archive"
	"ZigmaPulse/internal/service/cache"
	"ZigmaPulse/internal/service/notify"
	"ZigmaPulse/internal/service/ratelimit"
	"ZigmaPulse/internal/services/agent"
	"ZigmaPulse/internal/services/logparse"
	"ZigmaPulse/internal/usecase"
	pkgch "ZigmaPulse/pkg/clickhouse"
	"ZigmaPulse/pkg/config"
	pkgkafka "ZigmaPulse/pkg/kafka"
	applogger "ZigmaPulse/pkg/logger"
	"ZigmaPulse/pkg/metrics"
	"ZigmaPulse/pkg/queue"
	"ZigmaPulse/pkg/server"
	"ZigmaPulse/pkg/trace"
)

// Optional infrastructure providers return nil when the component is disabled.
// Interface-typed results return a literal nil so callers can compare against it.

// Tracing marks that the global tracer is installed.
type Tracing bool

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Tracing.ServiceName,
	})
}

// ProvideTracing installs the stdout span exporter when tracing is enabled.
func ProvideTracing(cfg *config.Config) (Tracing, error) {
	err := trace.Init(trace.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return false, fmt.Errorf("tracing: %w", err)
	}
	return Tracing(cfg.Tracing.Enabled), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() drepo.Metrics {
	return metrics.New(nil)
}

func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

// ProvideClickHouseClient creates a ClickHouse client and makes sure the database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the shared producer used for logs, signals and error digests.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogBuffer returns the Redis tail buffer, sized to the largest configured source window.
func ProvideLogBuffer(cfg *config.Config, rdb redis.UniversalClient) drepo.LogBuffer {
	if rdb == nil {
		return nil
	}
	capLines := cfg.Ingest.BufferLines
	for _, s := range cfg.Agent.Sources {
		if s.Lines > capLines {
			capLines = s.Lines
		}
	}
	return internalrepo.NewRedisLogBuffer(rdb, capLines)
}

func ProvideLogStore(ch *pkgch.Client, l *applogger.Logger) (drepo.LogStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHLogStore(ch)
	store.SetLogger(l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}
	return store, nil
}

// ProvideLogSources builds one LogSource per configured source, in declaration order.
func ProvideLogSources(cfg *config.Config, buf drepo.LogBuffer, store drepo.LogStore) ([]drepo.LogSource, error) {
	out := make([]drepo.LogSource, 0, len(cfg.Agent.Sources))
	for _, s := range cfg.Agent.Sources {
		lines := s.Lines
		if lines <= 0 {
			lines = 500
		}
		switch s.Type {
		case "http":
			out = append(out, agent.NewHTTPLogSource(s, cfg.Agent))
		case "redis":
			if buf == nil {
				return nil, fmt.Errorf("source %s: redis buffer not configured", s.Name)
			}
			out = append(out, internalrepo.NewTailSource(s.Name, s.Agent, lines, buf))
		case "clickhouse":
			if store == nil {
				return nil, fmt.Errorf("source %s: clickhouse store not configured", s.Name)
			}
			out = append(out, internalrepo.NewTailSource(s.Name, s.Agent, lines, store))
		default:
			return nil, fmt.Errorf("source %s: unknown type %q", s.Name, s.Type)
		}
	}
	return out, nil
}

func ProvideParser() domsvc.SignalParser {
	return logparse.NewParser()
}

func ProvideSignalFeed(sources []drepo.LogSource, parser domsvc.SignalParser, m drepo.Metrics, l *applogger.Logger) *usecase.SignalFeed {
	feed := usecase.NewSignalFeed(sources, parser, m)
	feed.SetLogger(l)
	return feed
}

func ProvideOverview(cfg *config.Config, feed *usecase.SignalFeed) *usecase.OverviewUseCase {
	return usecase.NewOverviewUseCase(feed, cfg.API.OverviewTimeout)
}

// ProvideHistoryStore picks the history backend by driver and creates its tables.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (drepo.HistoryStore, error) {
	var store drepo.HistoryStore
	switch cfg.History.Driver {
	case "", "none":
		return nil, nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("history: clickhouse not configured")
		}
		s := internalrepo.NewCHHistoryStore(ch)
		s.SetLogger(l)
		store = s
	case "postgres", "sqlite":
		s, err := internalrepo.NewGormHistoryStore(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("history: unknown driver %q", cfg.History.Driver)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("history init: %w", err)
	}
	return store, nil
}

func ProvideHistory(store drepo.HistoryStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvideQueue returns the Redis job queue that persists parse results off the poll path.
func ProvideQueue(cfg *config.Config, rdb redis.UniversalClient, store drepo.HistoryStore, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rdb == nil || store == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rdb, queue.WithKeyPrefix("zigma:queue:"+cfg.Queue.Name))
	q.RegisterJob(usecase.NewPersistJob(store))
	return q
}

func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.SignalPublisher {
	if producer == nil || cfg.Kafka.SignalsTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

func ProvideNotifier(cfg *config.Config, l *applogger.Logger) (domsvc.Notifier, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	n, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, l)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return n, nil
}

func ProvideArchiver(cfg *config.Config) (domsvc.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := archive.NewS3Archiver(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return a, nil
}

// ProvidePoller wires the background poller with whatever sinks are enabled.
func ProvidePoller(
	cfg *config.Config,
	feed *usecase.SignalFeed,
	m drepo.Metrics,
	q *queue.RedisQueue,
	history drepo.HistoryStore,
	pub drepo.SignalPublisher,
	notifier domsvc.Notifier,
	archiver domsvc.Archiver,
	l *applogger.Logger,
) *usecase.SignalPoller {
	if !cfg.Poller.Enabled {
		return nil
	}
	opts := []usecase.PollerOption{
		usecase.WithSeenTTL(cfg.Poller.SeenTTL),
		usecase.WithPollerLogger(l),
	}
	if q != nil {
		opts = append(opts, usecase.WithQueue(q))
	}
	if history != nil {
		opts = append(opts, usecase.WithHistory(history))
	}
	if pub != nil {
		opts = append(opts, usecase.WithSignalPublisher(pub))
	}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	if archiver != nil {
		opts = append(opts, usecase.WithArchiver(archiver))
	}
	sources := cfg.Poller.Sources
	if len(sources) == 0 {
		sources = cfg.SourceNames()
	}
	return usecase.NewSignalPoller(feed, sources, cfg.Poller.Interval, m, opts...)
}

// ProvideLogCollector builds stream -> pipeline -> processor when the live stream is enabled.
func ProvideLogCollector(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	buf drepo.LogBuffer,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.LogCollector {
	if !cfg.Agent.Stream.Enabled {
		return nil
	}
	stream := agentstream.New(
		cfg.Agent.Stream.URL,
		cfg.Agent.Stream.Token,
		cfg.Agent.Stream.Agents,
		cfg.Agent.Stream.ReconnectDelay,
		cfg.Agent.Stream.PingInterval,
	)
	if c, ok := stream.(*agentstream.Client); ok {
		c.SetLogger(l)
	}

	var pub drepo.LogPublisher
	if producer != nil {
		pub = internalrepo.NewKafkaLogPublisher(producer, cfg.Kafka.LogsTopic)
	}
	proc := usecase.NewLogProcessor(pub, buf, m, cfg.Ingest.Backend)
	pipe := mid.NewLogPipeline(proc, m,
		mid.WithMaxLPS(cfg.Ingest.MaxLPS),
		mid.WithBatch(cfg.Ingest.BatchSize, cfg.Ingest.BatchTimeout),
		mid.WithMaxLineBytes(cfg.Ingest.MaxLineBytes),
		mid.WithBufferLines(cfg.Ingest.BufferLines),
		mid.WithPipelineLogger(l),
	)
	collector := usecase.NewLogCollector(stream, proc, pipe, m)
	collector.SetLogger(l)
	return collector
}

// ProvideKafkaConsumer drains the logs topic into the Redis buffer and ClickHouse.
func ProvideKafkaConsumer(
	cfg *config.Config,
	buf drepo.LogBuffer,
	store drepo.LogStore,
	m drepo.Metrics,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook{},
		// a frame is one JSON encoded line plus its envelope
		pkgkafka.MaxSizeHook{Limit: cfg.Ingest.MaxLineBytes * 2},
		pkgkafka.LoggingHook{L: l, Slow: cfg.Server.SlowRequest},
	))
	consumer.RegisterHandler(usecase.NewKafkaLogsHandler(cfg.Kafka.LogsTopic, buf, store, m))
	return consumer, nil
}

func ProvideResponseCache(cfg *config.Config, rdb redis.UniversalClient) cache.BytesCache {
	if cfg.API.Cache.Backend == "redis" && rdb != nil {
		return cache.NewRedisCache(rdb)
	}
	return cache.NewTTLCache()
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.API.RateLimit.RPS, cfg.API.RateLimit.Burst)
}

// ProvideHandler builds the HTTP API and registers a health check per live dependency.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	feed *usecase.SignalFeed,
	overview *usecase.OverviewUseCase,
	history *usecase.HistoryUseCase,
	c cache.BytesCache,
	limiter *ratelimit.Limiter,
	rdb redis.UniversalClient,
	ch *pkgch.Client,
	store drepo.HistoryStore,
) *api.SignalsEchoHandler {
	h := api.NewSignalsEchoHandler(l, feed, overview, history, c, limiter, api.CacheTTLs{
		Latest:   cfg.API.Cache.LatestTTL,
		Feed:     cfg.API.Cache.FeedTTL,
		Overview: cfg.API.Cache.OverviewTTL,
	})
	if rdb != nil {
		h.AddHealthCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if ch != nil {
		h.AddHealthCheck("clickhouse", ch.Health)
	}
	if store != nil {
		h.AddHealthCheck("history", store.Health)
	}
	return h
}

// ProvideApp assembles the application. The error digest collector is attached
// here because it needs both the logger and the producer.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	_ Tracing,
	handler *api.SignalsEchoHandler,
	limiter *ratelimit.Limiter,
	collector *usecase.LogCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	poller *usecase.SignalPoller,
	producer *pkgkafka.Producer,
	rdb redis.UniversalClient,
	ch *pkgch.Client,
	history drepo.HistoryStore,
	pub drepo.SignalPublisher,
) *server.App {
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}

	deps := server.Deps{
		Handler:   handler,
		Limiter:   limiter,
		Collector: collector,
		Consumer:  consumer,
		Queue:     q,
		Poller:    poller,
	}
	if pub != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "signal publisher", Close: pub.Close})
	}
	if producer != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "kafka producer", Close: producer.Close})
	}
	if history != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "history store", Close: history.Close})
	}
	if ch != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	if rdb != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "redis", Close: rdb.Close})
	}
	return server.New(cfg, l, deps)
}
