package dfstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
)

type countingSource struct {
	calls atomic.Int32
	gate  chan struct{}
	fail  atomic.Bool
}

func (s *countingSource) LoadTable(_ context.Context, corpusSize int) (*scorer.Table, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail.Load() {
		return nil, errors.New("database is down")
	}
	return scorer.NewTable(corpusSize, []record.DocumentFrequency{{Term: "Big", Count: 2}})
}

func TestLoaderCachesTable(t *testing.T) {
	src := &countingSource{}
	l := NewLoader(src, 10)
	ctx := context.Background()

	first, err := l.Table(ctx)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	second, err := l.Table(ctx)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if first != second {
		t.Error("Table reloaded instead of returning the cached table")
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1", src.calls.Load())
	}
	if l.LoadedAt().IsZero() {
		t.Error("LoadedAt not set")
	}
	if n, ok := first.Lookup("Big"); !ok || n != 2 {
		t.Errorf("Lookup(Big) = %d, %v", n, ok)
	}
}

func TestLoaderSharesConcurrentReloads(t *testing.T) {
	src := &countingSource{gate: make(chan struct{})}
	l := NewLoader(src, 10)

	const callers = 8
	var wg sync.WaitGroup
	tables := make([]*scorer.Table, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i], _ = l.Reload(context.Background())
		}()
	}
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if got := src.calls.Load(); got >= callers {
		t.Errorf("source calls = %d, expected concurrent reloads to be shared", got)
	}
	for i, tbl := range tables {
		if tbl == nil {
			t.Errorf("caller %d got no table", i)
		}
	}
}

func TestLoaderKeepsTableOnFailedReload(t *testing.T) {
	src := &countingSource{}
	l := NewLoader(src, 10)
	ctx := context.Background()
	good, err := l.Table(ctx)
	if err != nil {
		t.Fatal(err)
	}

	src.fail.Store(true)
	if _, err := l.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	cached, err := l.Table(ctx)
	if err != nil || cached != good {
		t.Errorf("Table after failed reload = %p, %v; want cached %p", cached, err, good)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "df.tsv")
	if err := os.WriteFile(path, []byte("#corpus_size\t4\nBig\t2\nlake\t4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tbl, err := File{Path: path}.LoadTable(context.Background(), 0)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if tbl.CorpusSize() != 4 || tbl.Len() != 2 {
		t.Errorf("table corpus=%d len=%d", tbl.CorpusSize(), tbl.Len())
	}
}
