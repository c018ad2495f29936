package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/sink"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
)

type memoryStatus struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *memoryStatus) Record(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

type failingSink struct{}

func (failingSink) Put(context.Context, int32, []byte) error {
	return errors.New("redis: connection refused")
}

func newPipeline(t *testing.T) *vectorizer.Pipeline {
	t.Helper()
	table, err := scorer.NewTable(4, []record.DocumentFrequency{
		{Term: "Big", Count: 2},
		{Term: "Data", Count: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := vectorizer.New(tokenizer.NewStopWords("a"), table, vectorizer.Options{Workers: 1, Partitions: 1})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHandleOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantStatus string
		wantStored bool
		wantResult string
	}{
		{"vectorized", "7,Big Data", StatusVectorized, true, "vectorized"},
		{"empty", "8,a a unknown", StatusEmpty, false, "empty"},
		{"malformed", "seven,Big", "", false, "rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewWithRegisterer(prometheus.NewRegistry())
			store := sink.NewMemory()
			status := &memoryStatus{}
			h := NewHandler(newPipeline(t), store, status, m)

			if err := h.Handle(context.Background(), nil, []byte(tt.value)); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if got := testutil.ToFloat64(m.MessagesTotal.WithLabelValues(tt.wantResult)); got != 1 {
				t.Errorf("messages{%s} = %v", tt.wantResult, got)
			}
			if (store.Puts() == 1) != tt.wantStored {
				t.Errorf("stored = %v, want %v", store.Puts() == 1, tt.wantStored)
			}
			if tt.wantStatus == "" {
				if len(status.outcomes) != 0 {
					t.Errorf("unexpected outcomes %+v", status.outcomes)
				}
				return
			}
			if len(status.outcomes) != 1 || status.outcomes[0].Status != tt.wantStatus {
				t.Fatalf("outcomes = %+v, want one %s", status.outcomes, tt.wantStatus)
			}
		})
	}
}

func TestHandleStoresDecodableVector(t *testing.T) {
	store := sink.NewMemory()
	status := &memoryStatus{}
	h := NewHandler(newPipeline(t), store, status, nil)
	if err := h.Handle(context.Background(), []byte("7"), []byte("7,Big Big Data")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	payload, ok := store.Get(7)
	if !ok {
		t.Fatal("no payload stored for doc 7")
	}
	v, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.DocID != 7 || v.Len() != 2 {
		t.Errorf("vector = %v", v)
	}
	o := status.outcomes[0]
	if o.Entries != 2 || o.Bytes != len(payload) {
		t.Errorf("outcome = %+v", o)
	}
}

func TestHandleReturnsSinkErrors(t *testing.T) {
	status := &memoryStatus{}
	h := NewHandler(newPipeline(t), failingSink{}, status, nil)
	if err := h.Handle(context.Background(), nil, []byte("7,Big")); err == nil {
		t.Fatal("expected sink error to be returned for redelivery")
	}
	if len(status.outcomes) != 0 {
		t.Errorf("status recorded for undelivered vector: %+v", status.outcomes)
	}
}

func TestSetPipeline(t *testing.T) {
	store := sink.NewMemory()
	h := NewHandler(newPipeline(t), store, nil, nil)

	table, err := scorer.NewTable(4, []record.DocumentFrequency{{Term: "lake", Count: 2}})
	if err != nil {
		t.Fatal(err)
	}
	next, err := vectorizer.New(tokenizer.NewStopWords(), table, vectorizer.Options{Workers: 1, Partitions: 1})
	if err != nil {
		t.Fatal(err)
	}
	h.SetPipeline(next)
	if err := h.Handle(context.Background(), nil, []byte("1,lake")); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(1); !ok {
		t.Error("swapped pipeline did not know the new term")
	}
}
