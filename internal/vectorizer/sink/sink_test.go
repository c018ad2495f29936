package sink

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/resilience"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

type storeFunc func(ctx context.Context, docID int32, payload []byte) error

func (f storeFunc) PutVector(ctx context.Context, docID int32, payload []byte) error {
	return f(ctx, docID, payload)
}

type flakySink struct {
	failures int
	calls    int
}

func (f *flakySink) Put(context.Context, int32, []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func testSinkConfig() config.SinkConfig {
	return config.SinkConfig{
		WriteTimeout:     time.Second,
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	}
}

func TestKafkaKeysByDocID(t *testing.T) {
	pub := &recordingPublisher{}
	k := NewKafka(pub)
	if err := k.Put(context.Background(), -4, []byte{1, 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	if string(pub.msgs[0].Key) != "-4" || !bytes.Equal(pub.msgs[0].Value, []byte{1, 2}) {
		t.Errorf("message = %+v", pub.msgs[0])
	}
}

func TestRedisDelegates(t *testing.T) {
	var gotID int32
	r := NewRedis(storeFunc(func(_ context.Context, docID int32, _ []byte) error {
		gotID = docID
		return nil
	}))
	if err := r.Put(context.Background(), 9, nil); err != nil || gotID != 9 {
		t.Fatalf("Put: err=%v id=%d", err, gotID)
	}
}

func TestMemoryCopiesPayload(t *testing.T) {
	m := NewMemory()
	payload := []byte{1, 2, 3}
	if err := m.Put(context.Background(), 1, payload); err != nil {
		t.Fatal(err)
	}
	payload[0] = 9
	got, ok := m.Get(1)
	if !ok || got[0] != 1 {
		t.Errorf("Get(1) = %v, %v", got, ok)
	}
	if m.Puts() != 1 {
		t.Errorf("Puts = %d", m.Puts())
	}
}

func TestGuardedRetriesTransientFailures(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	next := &flakySink{failures: 2}
	g := NewGuarded("redis", next, testSinkConfig(), m)

	if err := g.Put(context.Background(), 1, []byte{0}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
	if got := testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("redis", "ok")); got != 1 {
		t.Errorf("ok writes = %v", got)
	}
}

func TestGuardedOpensCircuit(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	next := &flakySink{failures: 100}
	g := NewGuarded("kafka", next, testSinkConfig(), m)

	err := g.Put(context.Background(), 1, []byte{0})
	if !errors.Is(err, apperrors.ErrSink) {
		t.Fatalf("err = %v, want ErrSink", err)
	}
	if g.Breaker().State() != resilience.StateOpen {
		t.Fatalf("breaker = %v, want open", g.Breaker().State())
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("kafka")); got != float64(resilience.StateOpen) {
		t.Errorf("breaker gauge = %v", got)
	}

	calls := next.calls
	err = g.Put(context.Background(), 2, []byte{0})
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, apperrors.ErrSink) {
		t.Fatalf("err = %v, want open circuit", err)
	}
	if next.calls != calls {
		t.Errorf("open circuit reached the sink")
	}
	if got := testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("kafka", "error")); got != 2 {
		t.Errorf("error writes = %v", got)
	}
}
