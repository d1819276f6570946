package di

import (
	"context"
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/handler/api"
	internalrepo "EconDash/internal/repository"
	"EconDash/internal/service/marketdata"
	"EconDash/internal/service/ratelimit"
	"EconDash/internal/usecase"
	"EconDash/pkg/cache"
	pkgch "EconDash/pkg/clickhouse"
	"EconDash/pkg/config"
	xhttp "EconDash/pkg/http"
	pkgkafka "EconDash/pkg/kafka"
	applogger "EconDash/pkg/logger"
	"EconDash/pkg/metrics"
	"EconDash/pkg/server"
)

// ProvideLogger creates the application logger. With a Kafka producer,
// aggregated error logs are shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Kafka.LogTopic,
			Service:      "econdash",
			Publisher:    producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideCache creates the market data cache: in-memory, or layered over
// Redis when enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	var svc cache.Service = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	if cfg.Cache.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		_ = svc.Close()
		svc = cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
		l.Info("redis cache enabled", applogger.String("host", cfg.Cache.Redis.Host))
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideClickHouseClient creates a ClickHouse client and its indicator
// table. It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.IndicatorSchema(cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("table", cfg.ClickHouse.Table))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideMarketData creates the cached Yahoo chart client.
func ProvideMarketData(cfg *config.Config, c cache.Service, l *applogger.Logger) *marketdata.CachedClient {
	yc := marketdata.NewYahooClient(cfg.Market.BaseURL, cfg.Market.Timeout)
	yc.SetLogger(l)
	return marketdata.NewCachedClient(yc, c, cfg.Market.CacheTTL, l)
}

// ProvideIndicators builds one source per configured input.
func ProvideIndicators(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) ([]usecase.Indicator, error) {
	indicators := make([]usecase.Indicator, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		src, err := newSource(sc, ch, l)
		if err != nil {
			return nil, err
		}
		rule, err := models.ParseRule(sc.Rule)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		indicators = append(indicators, usecase.Indicator{
			Source:  src,
			Title:   sc.Title,
			Rule:    rule,
			Percent: sc.Percent,
		})
	}
	return indicators, nil
}

func newSource(sc config.SourceConfig, ch *pkgch.Client, l *applogger.Logger) (domrepo.SeriesSource, error) {
	switch sc.Kind {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("source %s: clickhouse is not configured", sc.Name)
		}
		src, err := internalrepo.NewClickHouseSource(ch.DB(), sc.Name, sc.Table, sc.SeriesKey)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		src.SetLogger(l)
		return src, nil
	default:
		src := internalrepo.NewCSVSource(sc.Name, sc.Path, sc.DateColumn, sc.ValueColumn)
		src.SetLogger(l)
		return src, nil
	}
}

// ProvideDashboard creates the dashboard pipeline.
func ProvideDashboard(
	cfg *config.Config,
	indicators []usecase.Indicator,
	market *marketdata.CachedClient,
	m domrepo.Metrics,
	l *applogger.Logger,
) (*usecase.Dashboard, error) {
	from, to, err := cfg.MarketWindow()
	if err != nil {
		return nil, err
	}
	return usecase.NewDashboard(indicators, market, usecase.MarketSeries{
		Symbol:      cfg.Market.Symbol,
		DisplayName: cfg.Market.DisplayName,
		ReturnsName: cfg.Market.ReturnsName,
		From:        from,
		To:          to,
	}, m, l), nil
}

// ProvideIndicatorStore returns the ClickHouse writer, or nil when
// ClickHouse is disabled.
func ProvideIndicatorStore(cfg *config.Config, ch *pkgch.Client) (domrepo.IndicatorStore, error) {
	if ch == nil {
		return nil, nil
	}
	store, err := internalrepo.NewClickHouseIndicatorStore(ch.DB(), cfg.ClickHouse.Table)
	if err != nil {
		return nil, fmt.Errorf("indicator store: %w", err)
	}
	return store, nil
}

// ProvideSourceEventsHandler handles upstream data-change notifications.
func ProvideSourceEventsHandler(
	cfg *config.Config,
	store domrepo.IndicatorStore,
	market *marketdata.CachedClient,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.SourceEventsHandler {
	return usecase.NewSourceEventsHandler(cfg.Kafka.SourceEventsTopic, store, market, m, l)
}

// ProvideKafkaConsumer creates the source events consumer. It returns nil
// when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.SourceEventsHandler, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.TraceHook()))
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideHTTPServer creates the Echo server with the dashboard routes.
func ProvideHTTPServer(cfg *config.Config, dash *usecase.Dashboard, l *applogger.Logger) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewDashboardHandler(l, dash, cfg.Title),
		api.NewDashboardWSHandler(l, dash, ratelimit.New(), cfg.WebSocket.Burst, cfg.WebSocket.PerSecond),
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, consumer *pkgkafka.Consumer) *server.App {
	return server.New(cfg, l, srv, consumer)
}
