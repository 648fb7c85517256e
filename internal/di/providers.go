package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cronrunner "StockScreener/internal/cron"
	"StockScreener/internal/domain/models"
	"StockScreener/internal/domain/repository"
	"StockScreener/internal/handler/api"
	internalrepo "StockScreener/internal/repository"
	"StockScreener/internal/service/jobs"
	"StockScreener/internal/service/marketdata"
	"StockScreener/internal/service/ratelimit"
	"StockScreener/internal/service/retry"
	"StockScreener/internal/services/criteria"
	"StockScreener/internal/services/indicators"
	"StockScreener/internal/services/trend"
	"StockScreener/internal/usecase"
	"StockScreener/pkg/cache"
	pkgch "StockScreener/pkg/clickhouse"
	"StockScreener/pkg/config"
	xhttp "StockScreener/pkg/http"
	pkgkafka "StockScreener/pkg/kafka"
	applogger "StockScreener/pkg/logger"
	"StockScreener/pkg/metrics"
	"StockScreener/pkg/server"
)

// ProvideLogger creates the root structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	log, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log.With(applogger.String("service", "stock-screener"), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the screening metrics recorder. Nil when disabled.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(reg)
}

// ProvideCache creates the Redis cache, or an in-memory one when Redis is disabled.
func ProvideCache(cfg *config.Config, log *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		log.Warn("redis disabled, results kept in memory")
		return mc, func() { _ = mc.Close() }, nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis connected", applogger.String("addr", cfg.Redis.Addr))
	cleanup := func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis close error", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideResultStore creates the cache-backed result and job store.
func ProvideResultStore(c cache.Service, cfg *config.Config, log *applogger.Logger) *internalrepo.CacheResultStore {
	return internalrepo.NewCacheResultStore(c,
		internalrepo.WithRetentionDays(cfg.Redis.ExpirationDays),
		internalrepo.WithSymbolsTTL(cfg.Redis.SymbolsTTL),
		internalrepo.WithStoreLogger(log),
	)
}

// ProvideClickHouseClient creates a ClickHouse client with the archive schema.
// Nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
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
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ArchiveSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	log.Info("clickhouse connected", applogger.String("db", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePriceArchive returns the ClickHouse archive, or a no-op one without a client.
func ProvidePriceArchive(ch *pkgch.Client, log *applogger.Logger) repository.PriceArchive {
	if ch == nil {
		return internalrepo.NoopArchive{}
	}
	a := internalrepo.NewCHArchive(ch)
	a.SetLogger(log)
	return a
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, log *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.Producer.AutoCreate),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	log.Info("kafka producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers))

	cleanup := func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideEventPublisher publishes verdict and job events to Kafka when a producer exists.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Verdicts, cfg.Kafka.Topics.Jobs)
}

// ProvideFMPClient creates the market data client.
func ProvideFMPClient(cfg *config.Config, m repository.Metrics, log *applogger.Logger) *marketdata.FMPClient {
	p := cfg.Provider
	return marketdata.NewFMPClient(p.APIKey,
		marketdata.WithBaseURL(p.BaseURL),
		marketdata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(p.Timeout))),
		marketdata.WithRateLimit(ratelimit.New(), p.RateLimit.Burst, p.RateLimit.PerSecond),
		marketdata.WithRetryPolicy(retry.Policy{
			MaxAttempts: p.Retry.MaxAttempts,
			Delay:       p.Retry.Delay,
			Multiplier:  p.Retry.Multiplier,
			MaxDelay:    p.Retry.MaxDelay,
		}),
		marketdata.WithFMPMetrics(m),
		marketdata.WithFMPLogger(log),
	)
}

// ProvidePriceProvider serves price history from the archive first, then FMP.
func ProvidePriceProvider(fmp *marketdata.FMPClient, archive repository.PriceArchive, cfg *config.Config, log *applogger.Logger) repository.HistoricalPriceProvider {
	p := marketdata.NewArchivedPriceProvider(fmp, archive, cfg.ClickHouse.MinArchivePoints)
	p.SetLogger(log)
	return p
}

// ProvideFundamentals caches FMP fundamentals in memory.
func ProvideFundamentals(fmp *marketdata.FMPClient, cfg *config.Config) repository.FundamentalsProvider {
	return marketdata.NewCachedFundamentals(fmp, cfg.Provider.FundamentalsTTL)
}

// ProvideSymbolLister tries local symbol files, then FMP, then the built-in lists.
func ProvideSymbolLister(fmp *marketdata.FMPClient, cfg *config.Config, log *applogger.Logger) repository.SymbolLister {
	chain := marketdata.NewChainSymbolLister(
		marketdata.NewFileSymbolLister(cfg.Provider.SymbolsDir),
		fmp,
		marketdata.StaticSymbolLister{},
	)
	chain.SetLogger(log)
	return chain
}

func ProvideSymbolResolver(store *internalrepo.CacheResultStore, lister repository.SymbolLister, log *applogger.Logger) *usecase.SymbolResolver {
	r := usecase.NewSymbolResolver(store, lister)
	r.SetLogger(log)
	return r
}

func ProvideIndicatorEngine(log *applogger.Logger) *indicators.Engine {
	e := indicators.NewEngine()
	e.SetLogger(log)
	return e
}

// ProvideScreenerConfig converts the configured frames into screening parameters.
func ProvideScreenerConfig(cfg *config.Config) (usecase.ScreenerConfig, error) {
	out := usecase.ScreenerConfig{
		Frames:                   make(map[models.TimeFrame]usecase.FrameConfig, 3),
		Mode:                     models.CombinationMode(strings.ToLower(cfg.Filtering.Mode)),
		EnableFinancialFiltering: cfg.Filtering.EnableFinancialFiltering,
		Financial: criteria.FinancialBounds{
			GrossMargin: cfg.Financial.GrossMargin,
			ROE:         cfg.Financial.ROE,
			RDRatio:     cfg.Financial.RDRatio,
		},
		Concurrency: cfg.Filtering.Concurrency,
	}
	for name, fi := range cfg.Indicators.Frames() {
		tf, err := models.ParseTimeFrame(name)
		if err != nil {
			return out, err
		}
		out.Frames[tf] = usecase.FrameConfig{
			Indicators:   frameIndicators(tf, fi, cfg.Filtering.MinPoints),
			Bounds:       criteria.Bounds{Bias: fi.BiasThreshold, RSIOversold: fi.RSIOversold, RSIOverbought: fi.RSIOverbought},
			RSIMode:      criteria.RSIMode(strings.ToLower(fi.RSIMode)),
			LookbackDays: fi.LookbackDays,
		}
	}
	return out, nil
}

func frameIndicators(tf models.TimeFrame, fi config.FrameIndicators, minPoints int) indicators.Config {
	ic := indicators.DefaultConfig(tf)
	if len(fi.EMAPeriods) > 0 {
		ic.EMAPeriods = fi.EMAPeriods
		ic.SlopePeriods = fi.EMAPeriods[:1]
	}
	if len(fi.Sources) > 0 {
		ic.Sources = make([]models.PriceSource, 0, len(fi.Sources))
		for _, s := range fi.Sources {
			ic.Sources = append(ic.Sources, models.PriceSource(strings.ToLower(s)))
		}
	}
	if fi.RSIPeriod > 0 {
		ic.RSIPeriod = fi.RSIPeriod
	}
	if fi.MACDFast > 0 && fi.MACDSlow > 0 && fi.MACDSignal > 0 {
		ic.MACDFast, ic.MACDSlow, ic.MACDSignal = fi.MACDFast, fi.MACDSlow, fi.MACDSignal
	}
	if fi.SlopeWindow > 0 {
		ic.SlopeWindow = fi.SlopeWindow
	}
	if minPoints > 0 {
		ic.MinPoints = minPoints
	}
	return ic
}

func ProvideScreener(
	prices repository.HistoricalPriceProvider,
	fundamentals repository.FundamentalsProvider,
	resolver *usecase.SymbolResolver,
	store *internalrepo.CacheResultStore,
	engine *indicators.Engine,
	screenerCfg usecase.ScreenerConfig,
	archive repository.PriceArchive,
	publisher repository.EventPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Screener {
	return usecase.NewScreener(prices, fundamentals, resolver, store, engine, screenerCfg,
		usecase.WithArchive(archive),
		usecase.WithPublisher(publisher),
		usecase.WithMetrics(m),
		usecase.WithLogger(log),
	)
}

// ProvideTrendAnalysis builds the trend strategy; its BIAS check reads the daily frame.
func ProvideTrendAnalysis(
	prices repository.HistoricalPriceProvider,
	fundamentals repository.FundamentalsProvider,
	resolver *usecase.SymbolResolver,
	engine *indicators.Engine,
	cfg *config.Config,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.TrendAnalysis {
	daily := cfg.Indicators.Daily
	analyzer := trend.NewAnalyzer(engine, frameIndicators(models.Daily, daily, cfg.Filtering.MinPoints))
	t := cfg.Trend
	th := trend.Thresholds{
		PBRatioMax:       t.PBRatioMax,
		PERatioMin:       t.PERatioMin,
		ROEMin:           t.ROEMin,
		GrossMarginMin:   t.GrossMarginMin,
		DividendYieldMin: t.DividendYieldMin,
		EMASlopeMin:      t.EMASlopeMin,
		EMASlopeWeeks:    t.EMASlopeWeeks,
		EMAPeriod:        t.EMAPeriod,
		SlopeWindow:      t.SlopeWindow,
		BiasThreshold:    daily.BiasThreshold,
	}
	ta := usecase.NewTrendAnalysis(prices, fundamentals, resolver, analyzer, th, t.Concurrency)
	ta.SetLogger(log)
	ta.SetMetrics(m)
	return ta
}

// ProvideHistoryFetcher reads FMP directly and archives what it downloads.
func ProvideHistoryFetcher(fmp *marketdata.FMPClient, archive repository.PriceArchive, resolver *usecase.SymbolResolver, cfg *config.Config, log *applogger.Logger) *usecase.HistoryFetcher {
	h := usecase.NewHistoryFetcher(fmp, archive, resolver, cfg.Filtering.Concurrency)
	h.SetLogger(log)
	return h
}

func ProvideJobTracker(store *internalrepo.CacheResultStore, publisher repository.EventPublisher, m repository.Metrics, cfg *config.Config, log *applogger.Logger) *jobs.Tracker {
	return jobs.NewTracker(store,
		jobs.WithRetention(time.Duration(cfg.Jobs.RetentionDays)*24*time.Hour),
		jobs.WithLockTTL(cfg.Jobs.LockTTL),
		jobs.WithMaxConcurrent(cfg.Jobs.MaxConcurrent),
		jobs.WithPublisher(publisher),
		jobs.WithMetrics(m),
		jobs.WithLogger(log),
	)
}

// ProvideScheduler registers the recurring filter run. Nil when disabled.
func ProvideScheduler(j *usecase.Jobs, cfg *config.Config, log *applogger.Logger) *usecase.Scheduler {
	if !cfg.Schedule.Enabled {
		return nil
	}
	runner := cronrunner.New(log, context.Background())
	s := usecase.NewScheduler(runner, j, cfg.Schedule.Spec, models.FilterRequest{
		Symbols:   cfg.Schedule.Symbols,
		TimeFrame: cfg.Schedule.TimeFrames,
	})
	s.SetLogger(log)
	return s
}

// ProvideKafkaConsumer creates the screen request consumer. Nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(log)
	return consumer, nil
}

func ProvideScreenRequestsHandler(j *usecase.Jobs, cfg *config.Config, m repository.Metrics, log *applogger.Logger) *usecase.ScreenRequestsHandler {
	h := usecase.NewScreenRequestsHandler(cfg.Kafka.Topics.Requests, j)
	h.SetLogger(log)
	h.SetMetrics(m)
	return h
}

func ProvideHTTPHandler(
	screener *usecase.Screener,
	trendAnalysis *usecase.TrendAnalysis,
	history *usecase.HistoryFetcher,
	j *usecase.Jobs,
	cfg *config.Config,
	log *applogger.Logger,
) *api.ScreenerEchoHandler {
	return api.NewScreenerEchoHandler(log, screener, trendAnalysis, history, j,
		api.WithClientRateLimit(ratelimit.New(), cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond),
		api.WithWatchInterval(cfg.Server.WatchInterval),
	)
}

// ProvideHTTPServer creates the echo server with health checks for the store and archive.
func ProvideHTTPServer(
	handler *api.ScreenerEchoHandler,
	reg *prometheus.Registry,
	c cache.Service,
	archive repository.PriceArchive,
	cfg *config.Config,
	log *applogger.Logger,
) *xhttp.Server {
	return xhttp.NewServer(handler,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithRegistry(reg),
		xhttp.WithLogger(log),
		xhttp.WithHealthCheck("store", func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		}),
		xhttp.WithHealthCheck("archive", archive.Health),
	)
}

func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	j *usecase.Jobs,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	requests *usecase.ScreenRequestsHandler,
) *server.App {
	return server.New(cfg, log, httpServer, j, scheduler, consumer, requests)
}
