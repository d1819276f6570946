package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/repository"
	"EconDash/internal/usecase"
	"EconDash/pkg/config"
	pkgkafka "EconDash/pkg/kafka"
	applogger "EconDash/pkg/logger"
)

// ingest publishes the configured CSV sources to the source-events topic.
// With -symbol it only announces that a market symbol's data changed.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "market symbol to invalidate instead of publishing sources")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if !cfg.Kafka.Enabled {
		log.Fatalf("kafka is disabled; set kafka.enabled or KAFKA_BROKERS")
	}

	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
	)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	pub := repository.NewKafkaEventPublisher(producer, cfg.Kafka.SourceEventsTopic)
	defer pub.Close()

	var sources []domrepo.SeriesSource
	for _, sc := range cfg.Sources {
		if sc.Kind != "csv" {
			l.Warn("skipping non-csv source", applogger.String("source", sc.Name), applogger.String("kind", sc.Kind))
			continue
		}
		src := repository.NewCSVSource(sc.Name, sc.Path, sc.DateColumn, sc.ValueColumn)
		src.SetLogger(l)
		sources = append(sources, src)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, usecase.NewIngestor(sources, pub, l), *symbol, l); err != nil {
		l.Error("ingest failed", applogger.Error(err))
		stop()
		_ = pub.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, in *usecase.Ingestor, symbol string, l *applogger.Logger) error {
	if symbol != "" {
		return in.InvalidateSymbol(ctx, symbol)
	}
	n, err := in.PublishSources(ctx)
	if err != nil {
		return err
	}
	l.Info("ingest complete", applogger.Int("published", n))
	return nil
}
