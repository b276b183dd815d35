package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	domrepo "TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	mid "TradeCore/internal/middleware"
	internalrepo "TradeCore/internal/repository"
	"TradeCore/internal/service/account"
	"TradeCore/internal/service/broker"
	"TradeCore/internal/service/marketdata"
	"TradeCore/internal/services/inference"
	"TradeCore/internal/usecase"
	"TradeCore/pkg/cache"
	pkgch "TradeCore/pkg/clickhouse"
	"TradeCore/pkg/config"
	pkgkafka "TradeCore/pkg/kafka"
	applogger "TradeCore/pkg/logger"
	"TradeCore/pkg/metrics"
	"TradeCore/pkg/queue"
	"TradeCore/pkg/retry"
	"TradeCore/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the process-wide structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "json"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the audit
// schema. Returns nil when the audit backend is kafka; the durable store is
// then owned by the replay consumer.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Audit.Backend != "clickhouse" {
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, AuditSchema(cfg)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// AuditSchema returns the idempotent DDL for the audit tables.
func AuditSchema(cfg *config.Config) []string {
	db := cfg.ClickHouse.Database
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime64(3), symbol String, final String, confidence Float64,
            reasoning String, contributing String
        ) ENGINE=MergeTree ORDER BY (symbol, ts)`, DecisionsTable(cfg)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime64(3), request_id String, symbol String, state String,
            ticket String, reason String, attempts UInt32
        ) ENGINE=MergeTree ORDER BY (symbol, ts)`, OutcomesTable(cfg)),
	}
}

func DecisionsTable(cfg *config.Config) string {
	if cfg.Audit.DecisionsTable != "" {
		return cfg.ClickHouse.Database + "." + cfg.Audit.DecisionsTable
	}
	return cfg.ClickHouse.Database + ".audit_decisions"
}

func OutcomesTable(cfg *config.Config) string {
	if cfg.Audit.OutcomesTable != "" {
		return cfg.ClickHouse.Database + "." + cfg.Audit.OutcomesTable
	}
	return cfg.ClickHouse.Database + ".audit_outcomes"
}

// ProvideKafkaProducer creates a Kafka producer for the streaming audit
// backend. Returns nil when the backend is clickhouse.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Audit.Backend != "kafka" {
		return nil, nil
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditSink selects the audit backend per config.
func ProvideAuditSink(cfg *config.Config, chClient *pkgch.Client, producer *pkgkafka.Producer, l *applogger.Logger) (domrepo.AuditSink, error) {
	switch cfg.Audit.Backend {
	case "clickhouse":
		sink := internalrepo.NewClickHouseAudit(chClient, DecisionsTable(cfg), OutcomesTable(cfg))
		sink.SetLogger(l)
		return sink, nil
	case "kafka":
		decisions := cfg.Audit.DecisionsTopic
		if decisions == "" {
			decisions = "tradecore.decisions"
		}
		outcomes := cfg.Audit.OutcomesTopic
		if outcomes == "" {
			outcomes = "tradecore.outcomes"
		}
		return internalrepo.NewKafkaAudit(producer, decisions, outcomes), nil
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Audit.Backend)
	}
}

// ProvideMarketStream creates the WebSocket bar stream.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) domrepo.MarketStream {
	return marketdata.New(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.Engine.BaseTimeframe,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		l,
	)
}

// ProvideBrokerTransport creates the request/reply broker link.
func ProvideBrokerTransport(cfg *config.Config, l *applogger.Logger) domrepo.BrokerTransport {
	return broker.NewWSTransport(cfg.Broker.WebSocketURL, cfg.Broker.AuthToken, cfg.Broker.RecvTimeout, l)
}

// ProvideExecutionGateway builds the gateway with its per-operation policies.
func ProvideExecutionGateway(cfg *config.Config, transport domrepo.BrokerTransport, m domrepo.Metrics, l *applogger.Logger) (*usecase.ExecutionGateway, error) {
	gwCfg := usecase.GatewayConfig{
		QueryPolicy: retry.Policy{
			Timeout:            cfg.Broker.Query.Timeout,
			MaxRetries:         cfg.Broker.Query.MaxRetries,
			InitialWait:        cfg.Broker.Query.InitialWait,
			MaxWait:            cfg.Broker.Query.MaxWait,
			ExponentialBackoff: cfg.Broker.Query.ExponentialBackoff,
		},
		OrderSendRetries: cfg.Broker.OrderSendRetries,
		OrderRetryWait:   cfg.Broker.OrderRetryWait,
	}
	return usecase.NewExecutionGateway(transport, gwCfg, l, m)
}

// ProvideCacheService builds the shared cache: a memory-fronted Redis layer
// when Redis is enabled, otherwise in-process memory only.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, err
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideAccountSource creates the broker-account REST client.
func ProvideAccountSource(cfg *config.Config, cacheSvc cache.Service, l *applogger.Logger) (domrepo.AccountSource, error) {
	return account.New(account.Config{
		BaseURL:   cfg.Account.BaseURL,
		AuthToken: cfg.Account.AuthToken,
		Timeout:   cfg.Account.Timeout,
		SpecTTL:   cfg.Account.SpecTTL,
		EquityTTL: cfg.Account.EquityTTL,
	}, cacheSvc, l)
}

// ProvideScorer creates the HTTP model-inference client.
func ProvideScorer(cfg *config.Config, l *applogger.Logger) (domsvc.Scorer, error) {
	return inference.NewHTTPScorer(cfg.Inference.BaseURL, cfg.Inference.Timeout, l)
}

// ProvideFusionEngine builds the signal fusion engine from config.
func ProvideFusionEngine(cfg *config.Config) (*usecase.SignalFusionEngine, error) {
	return usecase.NewSignalFusionEngine(usecase.FusionConfig{
		TrendTimeframe:     cfg.Fusion.TrendTimeframe,
		EntryTimeframe:     cfg.Fusion.EntryTimeframe,
		ExecutionTimeframe: cfg.Fusion.ExecutionTimeframe,
		TrendThreshold:     cfg.Fusion.TrendThreshold,
		EntryThreshold:     cfg.Fusion.EntryThreshold,
		ExecThreshold:      cfg.Fusion.ExecThreshold,
		TrendWeight:        cfg.Fusion.TrendWeight,
		EntryWeight:        cfg.Fusion.EntryWeight,
		ExecWeight:         cfg.Fusion.ExecWeight,
		HistorySize:        cfg.Fusion.HistorySize,
	})
}

// ProvideReconcileQueue builds the Redis-backed queue that carries UNKNOWN
// order outcomes to the reconcile job. Returns nil when Redis is disabled;
// UNKNOWN outcomes are then only visible in the audit trail.
func ProvideReconcileQueue(cfg *config.Config, cacheSvc cache.Service, gateway *usecase.ExecutionGateway, sink domrepo.AuditSink, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	rc, ok := cacheSvc.(interface{ Client() *redis.Client })
	if !ok {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix("tradecore:queue"))
	q.RegisterJob(usecase.NewReconcileJob(gateway, sink, l))
	return q
}

// ProvideTradeEngine builds the per-symbol decision engine.
func ProvideTradeEngine(
	cfg *config.Config,
	scorer domsvc.Scorer,
	fusion *usecase.SignalFusionEngine,
	gateway *usecase.ExecutionGateway,
	accounts domrepo.AccountSource,
	sink domrepo.AuditSink,
	q *queue.RedisQueue,
	m domrepo.Metrics,
	l *applogger.Logger,
) (*usecase.TradeEngine, error) {
	higher := make([]domrepo.Timeframe, 0, len(cfg.Engine.HigherTimeframes))
	for _, tf := range cfg.Engine.HigherTimeframes {
		higher = append(higher, domrepo.Timeframe(tf))
	}
	engCfg := usecase.EngineConfig{
		Symbols:          cfg.MarketData.Symbols,
		BaseTimeframe:    domrepo.Timeframe(cfg.Engine.BaseTimeframe),
		HigherTimeframes: higher,
		HistorySize:      cfg.Engine.HistorySize,
		MinBars:          cfg.Engine.MinBars,
		OrdersPerMinute:  cfg.Engine.OrdersPerMinute,
		BarBuffer:        cfg.Engine.BarBuffer,
		Fusion: usecase.FusionConfig{
			TrendTimeframe:     cfg.Fusion.TrendTimeframe,
			EntryTimeframe:     cfg.Fusion.EntryTimeframe,
			ExecutionTimeframe: cfg.Fusion.ExecutionTimeframe,
			TrendThreshold:     cfg.Fusion.TrendThreshold,
			EntryThreshold:     cfg.Fusion.EntryThreshold,
			ExecThreshold:      cfg.Fusion.ExecThreshold,
			TrendWeight:        cfg.Fusion.TrendWeight,
			EntryWeight:        cfg.Fusion.EntryWeight,
			ExecWeight:         cfg.Fusion.ExecWeight,
			HistorySize:        cfg.Fusion.HistorySize,
		},
		Sizer: usecase.SizerConfig{
			PayoffRatio:  cfg.Sizer.PayoffRatio,
			RiskFraction: cfg.Sizer.RiskFraction,
		},
	}
	var qs queue.QueueService
	if q != nil {
		qs = q
	}
	return usecase.NewTradeEngine(engCfg, scorer, fusion, gateway, accounts, sink, qs, m, l)
}

// ProvideBarCollector wires stream -> pipeline -> engine.
func ProvideBarCollector(stream domrepo.MarketStream, engine *usecase.TradeEngine, m domrepo.Metrics) *usecase.BarCollector {
	pipe := mid.NewBarPipeline(engine, m, mid.WithBufferSize(2000))
	return usecase.NewBarCollector(stream, engine, m, pipe)
}

// ProvideAuditQuery creates the audit read-path use case.
func ProvideAuditQuery(sink domrepo.AuditSink) *usecase.AuditQueryUseCase {
	return usecase.NewAuditQueryUseCase(sink)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.BarCollector,
	engine *usecase.TradeEngine,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
	auditQuery *usecase.AuditQueryUseCase,
	fusion *usecase.SignalFusionEngine,
) *server.App {
	return server.New(cfg, l, collector, engine, q, chClient, auditQuery, fusion)
}

func splitHostPort(addr string) (string, int) {
	if addr == "" {
		return "localhost", 6379
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		port = 6379
	}
	return host, port
}
