package dfstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
)

// Loader caches the table of a Source. Concurrent reloads share a single
// query.
type Loader struct {
	source     Source
	corpusSize int
	group      singleflight.Group
	logger     *slog.Logger

	mu       sync.RWMutex
	table    *scorer.Table
	loadedAt time.Time
}

func NewLoader(source Source, corpusSize int) *Loader {
	return &Loader{
		source:     source,
		corpusSize: corpusSize,
		logger:     slog.Default().With("component", "dfstore"),
	}
}

// Table returns the cached table, loading it on first use.
func (l *Loader) Table(ctx context.Context) (*scorer.Table, error) {
	l.mu.RLock()
	t := l.table
	l.mu.RUnlock()
	if t != nil {
		return t, nil
	}
	return l.Reload(ctx)
}

// Reload fetches a fresh table and swaps it in. On failure the previous
// table stays cached.
func (l *Loader) Reload(ctx context.Context) (*scorer.Table, error) {
	v, err, shared := l.group.Do("table", func() (any, error) {
		start := time.Now()
		t, err := l.source.LoadTable(ctx, l.corpusSize)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.table = t
		l.loadedAt = time.Now()
		l.mu.Unlock()
		l.logger.Info("document frequencies loaded",
			"terms", t.Len(),
			"corpus_size", t.CorpusSize(),
			"duration", time.Since(start),
		)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading document frequencies: %w", err)
	}
	if shared {
		l.logger.Debug("reload shared with concurrent caller")
	}
	return v.(*scorer.Table), nil
}

func (l *Loader) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}
