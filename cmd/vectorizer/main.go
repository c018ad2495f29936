// Command vectorizer computes tf-idf vectors for a corpus file in one batch
// and stores them in a segment file or pushes them to the configured sink.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/dfstore"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/segment"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/sink"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "corpus file, one \"docId,text\" line per document")
	verify := flag.Bool("verify", true, "re-read and decode the written segment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath == "" {
		fmt.Fprintln(os.Stderr, "-corpus is required")
		os.Exit(2)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "vectorize", runID)

	err = run(ctx, cfg, *corpusPath, *verify)
	span.End()
	span.Log(logger.FromContext(ctx).With("component", "tracing"))
	if err != nil {
		logger.FromContext(ctx).Error("vectorizer run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, corpusPath string, verify bool) error {
	log := logger.FromContext(ctx).With("component", "vectorizer")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	stopWords, err := loadStopWords(cfg.Pipeline.StopWordsFile)
	if err != nil {
		return err
	}
	source, db, err := dfstore.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	table, err := dfstore.NewLoader(source, cfg.Pipeline.CorpusSize).Table(ctx)
	if err != nil {
		return err
	}
	p, err := vectorizer.New(stopWords, table, vectorizer.Options{
		Workers:    cfg.Pipeline.Workers,
		Partitions: cfg.Pipeline.Partitions,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	docs, err := readCorpus(corpusPath)
	if err != nil {
		return err
	}
	log.Info("corpus loaded", "documents", len(docs), "terms", table.Len(), "corpus_size", table.CorpusSize())

	res, err := p.Run(ctx, docs)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		log.Warn("document failed",
			"index", f.Index,
			"doc_id", f.DocID,
			"stage", f.Stage,
			"kind", apperrors.Kind(f.Err),
			"error", f.Err,
		)
	}
	if len(res.Outputs) == 0 {
		log.Warn("no vectors produced")
		return nil
	}

	ctx, span := tracing.StartChildSpan(ctx, "store")
	defer span.End()
	span.SetAttr("sink", cfg.Sink.Kind)
	if cfg.Sink.Kind == "segment" {
		return writeSegment(ctx, cfg, res, table.CorpusSize(), verify, m)
	}
	return pushToSink(ctx, cfg, res, m)
}

func loadStopWords(path string) (tokenizer.StopWords, error) {
	if path == "" {
		return tokenizer.DefaultStopWords(), nil
	}
	return tokenizer.LoadStopWords(path)
}

func readCorpus(path string) ([]record.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	var docs []record.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			docs = append(docs, record.Document{Raw: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return docs, nil
}

func writeSegment(ctx context.Context, cfg *config.Config, res *vectorizer.Result, corpusSize int, verify bool, m *metrics.Metrics) error {
	log := logger.FromContext(ctx).With("component", "vectorizer")
	entries := make([]segment.Entry, len(res.Outputs))
	for i, out := range res.Outputs {
		entries[i] = segment.Entry{DocID: out.Vector.DocID, Payload: out.Payload}
	}
	name, err := segment.NewWriter(cfg.Pipeline.DataDir).Write(entries, corpusSize)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	path := filepath.Join(cfg.Pipeline.DataDir, name)
	log.Info("segment written", "path", path, "vectors", len(entries), "empty", len(res.Empty))
	if !verify {
		return nil
	}
	return verifySegment(path, m)
}

func verifySegment(path string, m *metrics.Metrics) error {
	r, err := segment.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Verify(); err != nil {
		return err
	}
	return r.Scan(func(docID int32, payload []byte) error {
		v, err := codec.Decode(payload)
		if err != nil {
			m.CountDecode(apperrors.Kind(err))
			return fmt.Errorf("verifying doc %d: %w", docID, err)
		}
		m.CountDecode("ok")
		if v.DocID != docID {
			return fmt.Errorf("segment directory has doc %d but payload decodes to %d: %w", docID, v.DocID, apperrors.ErrCorruptInput)
		}
		return nil
	})
}

func pushToSink(ctx context.Context, cfg *config.Config, res *vectorizer.Result, m *metrics.Metrics) error {
	s, backend, err := sink.Open(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer backend.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Pipeline.Workers)
	for _, out := range res.Outputs {
		g.Go(func() error {
			return s.Put(gctx, out.Vector.DocID, out.Payload)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("vectors delivered", "sink", cfg.Sink.Kind, "vectors", len(res.Outputs))
	return nil
}
