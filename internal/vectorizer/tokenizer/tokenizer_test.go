package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

func frequencies(t *testing.T, recs []record.TermFrequency) map[string]int {
	t.Helper()
	out := make(map[string]int, len(recs))
	for _, r := range recs {
		if _, dup := out[r.Term]; dup {
			t.Fatalf("term %q emitted twice", r.Term)
		}
		out[r.Term] = r.Frequency
	}
	return out
}

func TestExtractCountsTerms(t *testing.T) {
	e := NewExtractor(DefaultStopWords())
	recs, err := e.Extract(record.Document{Raw: "1,Big Big Big Data"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := frequencies(t, recs)
	if len(got) != 2 || got["Big"] != 3 || got["Data"] != 1 {
		t.Fatalf("got %v, want Big=3 Data=1", got)
	}
	for _, r := range recs {
		if r.DocID != 1 {
			t.Errorf("term %q has doc id %d, want 1", r.Term, r.DocID)
		}
	}
}

func TestExtractFiltersTokens(t *testing.T) {
	e := NewExtractor(NewStopWords("the", "and"))
	tests := []struct {
		name string
		raw  string
		want map[string]int
	}{
		{"stop words dropped", "7,the cat and the hat the", map[string]int{"cat": 1, "hat": 1}},
		{"hyphen rejected", "7,co-op co_op", map[string]int{"co_op": 1}},
		{"bang and dot kept", "7,wow! end. e.g.", map[string]int{"wow!": 1, "end.": 1, "e.g.": 1}},
		{"case sensitive stop words", "7,The the", map[string]int{"The": 1}},
		{"repeated spaces", "7,  a   b ", map[string]int{"a": 1, "b": 1}},
		{"non ascii rejected", "7,café tea", map[string]int{"tea": 1}},
		{"digits kept", "7,2024 x1", map[string]int{"2024": 1, "x1": 1}},
		{"no text", "7", map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := e.Extract(record.Document{Raw: tt.raw})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			got := frequencies(t, recs)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for term, n := range tt.want {
				if got[term] != n {
					t.Errorf("term %q: got %d, want %d", term, got[term], n)
				}
			}
		})
	}
}

func TestExtractConcatenatesFieldsWithoutSeparator(t *testing.T) {
	e := NewExtractor(NewStopWords())
	recs, err := e.Extract(record.Document{Raw: "3,ab,cd ef"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := frequencies(t, recs)
	if got["abcd"] != 1 || got["ef"] != 1 || len(got) != 2 {
		t.Fatalf("got %v, want abcd=1 ef=1", got)
	}
}

func TestExtractStopWordNeverEmitted(t *testing.T) {
	e := NewExtractor(NewStopWords("data"))
	raw := "5," + strings.Repeat("data ", 500) + "lake"
	recs, err := e.Extract(record.Document{Raw: raw})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, r := range recs {
		if r.Term == "data" {
			t.Fatal("stop word emitted")
		}
	}
}

func TestExtractParseErrors(t *testing.T) {
	e := NewExtractor(DefaultStopWords())
	for _, raw := range []string{"", "abc,text", "1.5,text", " 1,text", "-4,text", "99999999999,text"} {
		_, err := e.Extract(record.Document{Raw: raw})
		if !errors.Is(err, apperrors.ErrParse) {
			t.Errorf("Extract(%q): got %v, want ErrParse", raw, err)
		}
	}
}

func TestNewExtractorCopiesStopWords(t *testing.T) {
	sw := NewStopWords("x")
	e := NewExtractor(sw)
	sw["y"] = struct{}{}
	if !e.Qualifies("y") {
		t.Fatal("extractor saw a stop word added after construction")
	}
	if e.Qualifies("x") {
		t.Fatal("stop word x qualified")
	}
}

func TestReadStopWords(t *testing.T) {
	sw, err := ReadStopWords(strings.NewReader("# comment\nthe\n\n  and  \n"))
	if err != nil {
		t.Fatalf("ReadStopWords: %v", err)
	}
	if sw.Len() != 2 || !sw.Contains("the") || !sw.Contains("and") {
		t.Fatalf("got %v", sw)
	}
	if _, err := ReadStopWords(strings.NewReader("two words\n")); err == nil {
		t.Fatal("expected error for stop word with a space")
	}
}
