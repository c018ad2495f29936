// Command vectorworker consumes document lines from Kafka and stores one
// tf-idf vector per document in Redis or publishes it to a Kafka topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/consumer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/dfstore"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/sink"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, uuid.NewString())
	log := logger.FromContext(ctx).With("component", "vectorworker")

	m := metrics.New()
	checker := health.NewChecker()

	stopWords := tokenizer.DefaultStopWords()
	if cfg.Pipeline.StopWordsFile != "" {
		if stopWords, err = tokenizer.LoadStopWords(cfg.Pipeline.StopWordsFile); err != nil {
			log.Error("failed to load stop words", "error", err)
			os.Exit(1)
		}
	}

	source, dfDB, err := dfstore.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to open document frequency source", "error", err)
		os.Exit(1)
	}
	if dfDB != nil {
		defer dfDB.Close()
	}
	loader := dfstore.NewLoader(source, cfg.Pipeline.CorpusSize)
	table, err := loader.Table(ctx)
	if err != nil {
		log.Error("failed to load document frequencies", "error", err)
		os.Exit(1)
	}
	p, err := newPipeline(table, stopWords, cfg, m)
	if err != nil {
		log.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	vectorSink, backend, err := sink.Open(ctx, cfg, m)
	if err != nil {
		log.Error("failed to open sink", "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	checker.Register(cfg.Sink.Kind, health.PingCheck(backend))
	checker.Register("sink-breaker", health.BreakerCheck(vectorSink.Breaker()))

	var status consumer.StatusRecorder
	statusDB := dfDB
	if statusDB == nil {
		statusDB, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Warn("postgres unavailable, document status will not be recorded", "error", err)
		} else {
			defer statusDB.Close()
		}
	}
	if statusDB != nil {
		if err := statusDB.Migrate(ctx); err != nil {
			log.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		status = consumer.NewPostgresStatus(statusDB.DB)
		checker.Register("postgres", health.PingCheck(statusDB))
	}

	handler := consumer.NewHandler(p, vectorSink, status, m)
	if cfg.Pipeline.DFReloadInterval > 0 {
		go reloadLoop(ctx, cfg, loader, stopWords, handler, m)
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/healthz": checker.LiveHandler(),
			"/readyz":  checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents, handler.Handle)
	log.Info("vectorworker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.Documents,
		"group", cfg.Kafka.ConsumerGroup,
		"sink", cfg.Sink.Kind,
		"corpus_size", p.CorpusSize(),
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		log.Error("consumer error", "error", err)
	}
	log.Info("vectorworker stopped")
}

func newPipeline(table *scorer.Table, stopWords tokenizer.StopWords, cfg *config.Config, m *metrics.Metrics) (*vectorizer.Pipeline, error) {
	return vectorizer.New(stopWords, table, vectorizer.Options{
		Workers:    cfg.Pipeline.Workers,
		Partitions: cfg.Pipeline.Partitions,
		Metrics:    m,
	})
}

// reloadLoop refreshes the frequency table on a timer and swaps the handler
// onto a pipeline built from it.
func reloadLoop(ctx context.Context, cfg *config.Config, loader *dfstore.Loader, stopWords tokenizer.StopWords, handler *consumer.Handler, m *metrics.Metrics) {
	log := logger.FromContext(ctx).With("component", "df-reload")
	ticker := time.NewTicker(cfg.Pipeline.DFReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			table, err := loader.Reload(ctx)
			if err != nil {
				log.Warn("document frequency reload failed, keeping previous table", "error", err)
				continue
			}
			p, err := newPipeline(table, stopWords, cfg, m)
			if err != nil {
				log.Error("failed to rebuild pipeline", "error", err)
				continue
			}
			handler.SetPipeline(p)
			log.Info("pipeline rebuilt", "terms", table.Len(), "corpus_size", table.CorpusSize())
		}
	}
}
