// Package consumer turns document messages from Kafka into stored vectors.
// Each message value is one raw document line.
package consumer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/sink"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
)

const (
	StatusVectorized = "VECTORIZED"
	StatusEmpty      = "EMPTY"
	StatusFailed     = "FAILED"
)

// Outcome is what happened to one document.
type Outcome struct {
	DocID   int32
	Status  string
	Entries int
	Bytes   int
	Err     error
}

// StatusRecorder persists per-document outcomes.
type StatusRecorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Handler runs each message through the pipeline and writes the vector to
// the sink. Messages that can never succeed are committed after their
// failure is recorded; sink failures are returned so Kafka redelivers.
type Handler struct {
	pipeline atomic.Pointer[vectorizer.Pipeline]
	sink     sink.Sink
	status   StatusRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler creates a Handler. status may be nil.
func NewHandler(p *vectorizer.Pipeline, s sink.Sink, status StatusRecorder, m *metrics.Metrics) *Handler {
	h := &Handler{
		sink:    s,
		status:  status,
		metrics: m,
		logger:  slog.Default().With("component", "vector-consumer"),
	}
	h.pipeline.Store(p)
	return h
}

// SetPipeline swaps in a pipeline built from a reloaded frequency table.
// Messages already in flight finish on the old one.
func (h *Handler) SetPipeline(p *vectorizer.Pipeline) {
	h.pipeline.Store(p)
}

// Handle satisfies kafka.MessageHandler.
func (h *Handler) Handle(ctx context.Context, key []byte, value []byte) error {
	raw := string(value)
	docID, _, err := tokenizer.ParseDocument(raw)
	if err != nil {
		h.metrics.CountMessage("rejected")
		h.logger.Warn("dropping malformed document", "key", string(key), "error", err)
		return nil
	}

	out, err := h.pipeline.Load().Process(ctx, record.Document{Raw: raw})
	switch {
	case errors.Is(err, vectorizer.ErrEmptyVector):
		h.metrics.CountMessage("empty")
		h.record(ctx, Outcome{DocID: docID, Status: StatusEmpty})
		return nil
	case err != nil && ctx.Err() != nil:
		return err
	case err != nil:
		h.metrics.CountMessage("failed")
		h.logger.Warn("document failed", "doc_id", docID, "kind", apperrors.Kind(err), "error", err)
		h.record(ctx, Outcome{DocID: docID, Status: StatusFailed, Err: err})
		return nil
	}

	if err := h.sink.Put(ctx, docID, out.Payload); err != nil {
		h.metrics.CountMessage("retry")
		return fmt.Errorf("storing vector of doc %d: %w", docID, err)
	}
	h.metrics.CountMessage("vectorized")
	h.record(ctx, Outcome{
		DocID:   docID,
		Status:  StatusVectorized,
		Entries: out.Vector.Len(),
		Bytes:   len(out.Payload),
	})
	h.logger.Debug("document vectorized", "doc_id", docID, "entries", out.Vector.Len())
	return nil
}

func (h *Handler) record(ctx context.Context, o Outcome) {
	if h.status == nil {
		return
	}
	if err := h.status.Record(ctx, o); err != nil {
		h.logger.Error("failed to record document status",
			"doc_id", o.DocID,
			"status", o.Status,
			"error", err,
		)
	}
}

// PostgresStatus upserts outcomes into the document_vectors table.
type PostgresStatus struct {
	db *sql.DB
}

func NewPostgresStatus(db *sql.DB) *PostgresStatus {
	return &PostgresStatus{db: db}
}

func (p *PostgresStatus) Record(ctx context.Context, o Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO document_vectors (doc_id, status, entries, payload_bytes, error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (doc_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   entries = EXCLUDED.entries,
		   payload_bytes = EXCLUDED.payload_bytes,
		   error = EXCLUDED.error,
		   updated_at = NOW()`,
		o.DocID, o.Status, o.Entries, o.Bytes, errText,
	)
	if err != nil {
		return fmt.Errorf("upserting status of doc %d: %w", o.DocID, err)
	}
	return nil
}
