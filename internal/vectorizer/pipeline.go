// Package vectorizer runs the tf-idf pipeline: term-frequency extraction,
// the partitioned join against the document-frequency relation, the per
// document fold, and binary encoding of every resulting vector.
package vectorizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/shuffle"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/tracing"
)

// ErrEmptyVector is returned by Process for a document with no weighted
// terms. No vector exists for such a document.
var ErrEmptyVector = errors.New("document produced no weighted terms")

// Options sizes the worker pools and the exchange.
type Options struct {
	Workers    int
	Partitions int
	Metrics    *metrics.Metrics
}

type Pipeline struct {
	extractor *tokenizer.Extractor
	scorer    *scorer.Scorer
	table     *scorer.Table
	exchange  *shuffle.Exchange
	dfParts   [][]record.DocumentFrequency
	workers   int
	metrics   *metrics.Metrics
}

// New builds a pipeline over an immutable stop-word set and document
// frequency table. The table is partitioned once up front.
func New(stopWords tokenizer.StopWords, table *scorer.Table, opts Options) (*Pipeline, error) {
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	ex, err := shuffle.NewExchange(opts.Partitions)
	if err != nil {
		return nil, fmt.Errorf("creating exchange: %w", err)
	}
	sc, err := scorer.New(table.CorpusSize())
	if err != nil {
		return nil, fmt.Errorf("creating scorer: %w", err)
	}
	return &Pipeline{
		extractor: tokenizer.NewExtractor(stopWords),
		scorer:    sc,
		table:     table,
		exchange:  ex,
		dfParts:   shuffle.PartitionByKey(ex, table.Records(), record.DFTermKey, shuffle.HashString),
		workers:   opts.Workers,
		metrics:   opts.Metrics,
	}, nil
}

// Output is one finished document.
type Output struct {
	Vector  *vector.SparseWeightVector
	Payload []byte
}

// Failure is a document that produced no output because of err. Index is
// the position of the document in the Run input, or -1 when the failure was
// detected after extraction and only the docId is known.
type Failure struct {
	Index int
	DocID int32
	Stage string
	Err   error
}

type Result struct {
	Outputs   []Output
	Failures  []Failure
	Empty     []int32
	Unmatched int
}

// Run processes docs as one batch. Per-document failures are reported in
// the Result; only cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, docs []record.Document) (*Result, error) {
	log := logger.FromContext(ctx).With("component", "pipeline")
	res := &Result{}

	tfs, docIDs, err := p.extract(ctx, docs, res)
	if err != nil {
		return nil, err
	}
	scored, err := p.join(ctx, tfs, res)
	if err != nil {
		return nil, err
	}
	if err := p.aggregate(ctx, scored, res); err != nil {
		return nil, err
	}

	produced := make(map[int32]struct{}, len(res.Outputs))
	for _, out := range res.Outputs {
		produced[out.Vector.DocID] = struct{}{}
	}
	failed := make(map[int32]struct{})
	for _, f := range res.Failures {
		if f.Index < 0 {
			failed[f.DocID] = struct{}{}
		}
	}
	for _, id := range docIDs {
		_, ok := produced[id]
		_, bad := failed[id]
		if !ok && !bad {
			res.Empty = append(res.Empty, id)
			produced[id] = struct{}{}
		}
	}

	sort.Slice(res.Outputs, func(i, j int) bool {
		return res.Outputs[i].Vector.DocID < res.Outputs[j].Vector.DocID
	})
	sort.SliceStable(res.Failures, func(i, j int) bool {
		if res.Failures[i].Index != res.Failures[j].Index {
			return res.Failures[i].Index < res.Failures[j].Index
		}
		return res.Failures[i].DocID < res.Failures[j].DocID
	})

	p.metrics.CountDocuments("vectorized", len(res.Outputs))
	p.metrics.CountDocuments("failed", len(res.Failures))
	p.metrics.CountDocuments("empty", len(res.Empty))
	log.Info("pipeline run complete",
		"documents", len(docs),
		"vectors", len(res.Outputs),
		"failed", len(res.Failures),
		"empty", len(res.Empty),
		"unmatched_terms", res.Unmatched,
	)
	return res, nil
}

// extract runs the extractor over every document on the worker pool and
// returns the term-frequency records in document order.
func (p *Pipeline) extract(ctx context.Context, docs []record.Document, res *Result) ([]record.TermFrequency, []int32, error) {
	defer p.metrics.ObserveStage("extract", time.Now())
	_, span := tracing.StartChildSpan(ctx, "extract")
	defer span.End()
	span.SetAttr("documents", len(docs))
	perDoc := make([][]record.TermFrequency, len(docs))
	errs := make([]error, len(docs))
	ids := make([]int32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, _, err := tokenizer.ParseDocument(docs[i].Raw)
			if err != nil {
				errs[i] = err
				return nil
			}
			ids[i] = id
			perDoc[i], errs[i] = p.extractor.Extract(docs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extract stage: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("extract stage: %w", err)
	}

	var tfs []record.TermFrequency
	docIDs := make([]int32, 0, len(docs))
	for i := range docs {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Index: i, DocID: apperrors.NoDocID, Stage: "extract", Err: errs[i]})
			p.metrics.CountFailure("extract", apperrors.Kind(errs[i]))
			logger.FromContext(ctx).Warn("document skipped", "component", "pipeline", "index", i, "error", errs[i])
			continue
		}
		docIDs = append(docIDs, ids[i])
		tfs = append(tfs, perDoc[i]...)
	}
	span.SetAttr("term_frequencies", len(tfs))
	return tfs, docIDs, nil
}

// join co-locates tf records with their df rows by term and scores every
// partition concurrently. Documents with a contract violation are removed
// from the output entirely.
func (p *Pipeline) join(ctx context.Context, tfs []record.TermFrequency, res *Result) ([]record.Scored, error) {
	defer p.metrics.ObserveStage("join", time.Now())
	_, span := tracing.StartChildSpan(ctx, "join")
	defer span.End()
	tfParts := shuffle.PartitionByKey(p.exchange, tfs, record.TermKey, shuffle.HashString)
	results := make([]scorer.JoinResult, len(tfParts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range tfParts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.scorer.Join(tfParts[i], p.dfParts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("join stage: %w", err)
	}

	rejected := make(map[int32]struct{})
	var scored []record.Scored
	for _, r := range results {
		res.Unmatched += r.Unmatched
		for _, err := range r.Errors {
			docID, _ := apperrors.DocIDOf(err)
			if _, seen := rejected[docID]; !seen {
				res.Failures = append(res.Failures, Failure{Index: -1, DocID: docID, Stage: "score", Err: err})
			}
			rejected[docID] = struct{}{}
			p.metrics.CountFailure("score", apperrors.Kind(err))
		}
		scored = append(scored, r.Scored...)
	}
	if len(rejected) > 0 {
		kept := scored[:0]
		for _, s := range scored {
			if _, bad := rejected[s.DocID]; !bad {
				kept = append(kept, s)
			}
		}
		scored = kept
	}
	p.metrics.CountJoin(len(scored), res.Unmatched)
	span.SetAttr("scored", len(scored))
	span.SetAttr("unmatched", res.Unmatched)
	return scored, nil
}

// aggregate routes scored records by docId and folds each group into its
// own vector inside the partition task that owns it, then encodes it.
func (p *Pipeline) aggregate(ctx context.Context, scored []record.Scored, res *Result) error {
	defer p.metrics.ObserveStage("aggregate", time.Now())
	_, span := tracing.StartChildSpan(ctx, "aggregate")
	defer span.End()
	parts := shuffle.PartitionByKey(p.exchange, scored, record.DocKey, shuffle.HashInt32)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range parts {
		g.Go(func() error {
			for _, group := range shuffle.GroupByKey(parts[i], record.DocKey) {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, stage, err := p.fold(group.Items)
				mu.Lock()
				if err != nil {
					res.Failures = append(res.Failures, Failure{Index: -1, DocID: group.Key, Stage: stage, Err: err})
				} else {
					res.Outputs = append(res.Outputs, out)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("aggregate stage: %w", err)
	}
	span.SetAttr("vectors", len(res.Outputs))
	return nil
}

func (p *Pipeline) fold(group []record.Scored) (Output, string, error) {
	v, err := vector.Aggregate(group)
	if err != nil {
		p.metrics.CountFailure("aggregate", apperrors.Kind(err))
		return Output{}, "aggregate", err
	}
	payload, err := codec.Encode(v)
	if err != nil {
		p.metrics.CountFailure("encode", apperrors.Kind(err))
		return Output{}, "encode", err
	}
	p.metrics.ObserveVector(v.Len(), len(payload))
	return Output{Vector: v, Payload: payload}, "", nil
}

// Process runs a single document through every stage using table lookups
// instead of a partitioned join. It returns ErrEmptyVector when the
// document has no weighted terms.
func (p *Pipeline) Process(ctx context.Context, doc record.Document) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tfs, err := p.extractor.Extract(doc)
	if err != nil {
		p.metrics.CountFailure("extract", apperrors.Kind(err))
		p.metrics.CountDocuments("failed", 1)
		return nil, err
	}
	joined := p.scorer.ScoreDocument(tfs, p.table)
	p.metrics.CountJoin(len(joined.Scored), joined.Unmatched)
	if len(joined.Errors) > 0 {
		for _, e := range joined.Errors {
			p.metrics.CountFailure("score", apperrors.Kind(e))
		}
		p.metrics.CountDocuments("failed", 1)
		return nil, errors.Join(joined.Errors...)
	}
	if len(joined.Scored) == 0 {
		p.metrics.CountDocuments("empty", 1)
		return nil, ErrEmptyVector
	}
	out, _, err := p.fold(joined.Scored)
	if err != nil {
		p.metrics.CountDocuments("failed", 1)
		return nil, err
	}
	p.metrics.CountDocuments("vectorized", 1)
	logger.FromContext(ctx).Debug("document vectorized", "component", "pipeline", "doc_id", out.Vector.DocID, "entries", out.Vector.Len(), "bytes", len(out.Payload))
	return &out, nil
}

// CorpusSize is the corpus size the weights are computed against.
func (p *Pipeline) CorpusSize() int {
	return p.table.CorpusSize()
}
