package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeCore/internal/di"
	"TradeCore/internal/repository"
	"TradeCore/internal/usecase"
	pkgch "TradeCore/pkg/clickhouse"
	"TradeCore/pkg/config"
	pkgkafka "TradeCore/pkg/kafka"
	"TradeCore/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// replay consumes audited decisions and order outcomes from Kafka and writes
// them into ClickHouse. Run it alongside the app when audit.backend is kafka
// so the query API still has a durable store to read from.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	chClient, err := pkgch.NewClient(
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
		log.Fatalf("clickhouse connect failed: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := chClient.InitSchema(initCtx, di.AuditSchema(cfg)); err != nil {
		cancel()
		log.Fatalf("clickhouse schema failed: %v", err)
	}
	cancel()

	sink := repository.NewClickHouseAudit(chClient, di.DecisionsTable(cfg), di.OutcomesTable(cfg))
	rec := metrics.New()

	decisionsTopic := cfg.Audit.DecisionsTopic
	if decisionsTopic == "" {
		decisionsTopic = "tradecore.decisions"
	}
	outcomesTopic := cfg.Audit.OutcomesTopic
	if outcomesTopic == "" {
		outcomesTopic = "tradecore.outcomes"
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		log.Fatalf("kafka consumer failed: %v", err)
	}

	consumer.RegisterHandler(usecase.NewKafkaDecisionsHandler(decisionsTopic, sink, rec))
	consumer.RegisterHandler(usecase.NewKafkaOutcomesHandler(outcomesTopic, sink, rec))
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			log.Printf("replay: %s partition=%d offset=%d: %v", topic, km.Partition, km.Offset, err)
		},
	})

	if err := consumer.Start(); err != nil {
		log.Fatalf("kafka consumer start failed: %v", err)
	}
	log.Printf("replay started: %s, %s -> %s", decisionsTopic, outcomesTopic, cfg.ClickHouse.Database)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := consumer.Stop(stopCtx); err != nil {
		log.Printf("consumer stop error: %v", err)
	}
	_ = chClient.Close()
}
