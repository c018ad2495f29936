// Package sink delivers encoded vectors to their destination. Redis keeps
// the latest vector per document, Kafka publishes every vector downstream,
// and Guarded wraps either one in retry, circuit breaking, and a write
// deadline.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/resilience"
)

// Sink stores the payload of one document. Put must be safe for concurrent
// use.
type Sink interface {
	Put(ctx context.Context, docID int32, payload []byte) error
}

// VectorStore is the part of the Redis client the sink needs.
type VectorStore interface {
	PutVector(ctx context.Context, docID int32, payload []byte) error
}

type Redis struct {
	store VectorStore
}

func NewRedis(store VectorStore) *Redis {
	return &Redis{store: store}
}

func (r *Redis) Put(ctx context.Context, docID int32, payload []byte) error {
	return r.store.PutVector(ctx, docID, payload)
}

// Publisher is the part of the Kafka producer the sink needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Kafka publishes each payload keyed by the decimal docId, so every vector
// of a document lands on the same partition.
type Kafka struct {
	publisher Publisher
}

func NewKafka(publisher Publisher) *Kafka {
	return &Kafka{publisher: publisher}
}

func (k *Kafka) Put(ctx context.Context, docID int32, payload []byte) error {
	return k.publisher.Publish(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(int64(docID), 10)),
		Value: payload,
	})
}

// Memory keeps the last payload per document. It backs tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	payloads map[int32][]byte
	puts     int
}

func NewMemory() *Memory {
	return &Memory{payloads: make(map[int32][]byte)}
}

func (m *Memory) Put(ctx context.Context, docID int32, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	m.mu.Lock()
	m.payloads[docID] = b
	m.puts++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(docID int32) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.payloads[docID]
	return b, ok
}

func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Guarded runs every write of next through a resilience policy and records
// its outcome. Failures wrap ErrSink.
type Guarded struct {
	name    string
	next    Sink
	policy  *resilience.Policy
	metrics *metrics.Metrics
}

func NewGuarded(name string, next Sink, cfg config.SinkConfig, m *metrics.Metrics) *Guarded {
	policy := resilience.NewPolicy(name, resilience.PolicyConfig{
		Timeout: cfg.WriteTimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.InitialBackoff,
			JitterFraction: 0.1,
		},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange: func(name string, _, to resilience.State) {
				m.SetBreakerState(name, int(to))
			},
		},
	})
	m.SetBreakerState(name, int(resilience.StateClosed))
	return &Guarded{name: name, next: next, policy: policy, metrics: m}
}

func (g *Guarded) Put(ctx context.Context, docID int32, payload []byte) error {
	start := time.Now()
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		return g.next.Put(ctx, docID, payload)
	})
	g.metrics.ObserveSinkWrite(g.name, start, err)
	if err != nil {
		return fmt.Errorf("%s sink, doc %d: %w", g.name, docID, errors.Join(apperrors.ErrSink, err))
	}
	return nil
}

func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	return g.policy.Breaker()
}
