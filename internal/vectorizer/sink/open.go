package sink

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/redis"
)

// Backend is the connection behind a per-document sink.
type Backend interface {
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the per-document sink selected by cfg.Sink.Kind and wraps
// it in Guarded. The segment kind is written in batches and has no
// per-document sink.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Guarded, Backend, error) {
	switch cfg.Sink.Kind {
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis sink: %w", err)
		}
		return NewGuarded("redis", NewRedis(client), cfg.Sink, m), client, nil
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Vectors)
		return NewGuarded("kafka", NewKafka(producer), cfg.Sink, m), producer, nil
	default:
		return nil, nil, fmt.Errorf("sink kind %q has no per-document sink", cfg.Sink.Kind)
	}
}
