package scorer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

// Table is the immutable document-frequency relation of one corpus.
type Table struct {
	corpusSize int
	records    []record.DocumentFrequency
	index      map[string]int
}

// NewTable validates records against corpusSize. Every term must appear
// once with a count in [1, corpusSize].
func NewTable(corpusSize int, records []record.DocumentFrequency) (*Table, error) {
	if corpusSize <= 0 {
		return nil, fmt.Errorf("corpus size must be positive, got %d: %w", corpusSize, apperrors.ErrInvalidInput)
	}
	t := &Table{
		corpusSize: corpusSize,
		records:    make([]record.DocumentFrequency, 0, len(records)),
		index:      make(map[string]int, len(records)),
	}
	for _, r := range records {
		if r.Count <= 0 || r.Count > corpusSize {
			return nil, apperrors.Newf(apperrors.ErrJoinContract, "df-table", apperrors.NoDocID, r.Term,
				"document count %d outside [1, %d]", r.Count, corpusSize)
		}
		if _, dup := t.index[r.Term]; dup {
			return nil, apperrors.New(apperrors.ErrJoinContract, "df-table", apperrors.NoDocID, r.Term,
				"term listed more than once")
		}
		t.index[r.Term] = r.Count
		t.records = append(t.records, r)
	}
	return t, nil
}

func (t *Table) CorpusSize() int {
	return t.corpusSize
}

func (t *Table) Len() int {
	return len(t.records)
}

func (t *Table) Lookup(term string) (int, bool) {
	n, ok := t.index[term]
	return n, ok
}

// Records returns a copy of the relation in load order.
func (t *Table) Records() []record.DocumentFrequency {
	out := make([]record.DocumentFrequency, len(t.records))
	copy(out, t.records)
	return out
}

// ReadTable parses tab-separated "term<TAB>count" rows. A leading row of
// the form "#corpus_size<TAB>N" sets the corpus size when corpusSize is 0.
func ReadTable(r io.Reader, corpusSize int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = 2
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	var records []record.DocumentFrequency
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading document frequencies: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if strings.HasPrefix(row[0], "#") {
			if row[0] == "#corpus_size" && corpusSize == 0 {
				n, err := strconv.Atoi(row[1])
				if err != nil {
					return nil, fmt.Errorf("line %d: corpus size %q: %w", line, row[1], apperrors.ErrParse)
				}
				corpusSize = n
			}
			continue
		}
		count, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: count %q for term %q: %w", line, row[1], row[0], apperrors.ErrParse)
		}
		records = append(records, record.DocumentFrequency{Term: row[0], Count: count})
	}
	return NewTable(corpusSize, records)
}

// LoadTable reads a document-frequency file from disk.
func LoadTable(path string, corpusSize int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document frequency file: %w", err)
	}
	defer f.Close()
	return ReadTable(f, corpusSize)
}
