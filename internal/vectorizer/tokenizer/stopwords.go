package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// StopWords is a set of terms excluded from extraction. Matching is exact
// and case-sensitive.
type StopWords map[string]struct{}

func NewStopWords(words ...string) StopWords {
	s := make(StopWords, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// DefaultStopWords returns a fresh copy of the built-in English list.
func DefaultStopWords() StopWords {
	return NewStopWords(defaultStopWords...)
}

// ReadStopWords reads one word per line. Blank lines and lines starting
// with '#' are skipped; surrounding whitespace is trimmed.
func ReadStopWords(r io.Reader) (StopWords, error) {
	s := make(StopWords)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		w := strings.TrimSpace(scanner.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if strings.Contains(w, " ") {
			return nil, fmt.Errorf("stop word on line %d contains a space: %q", line, w)
		}
		s[w] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	return s, nil
}

// LoadStopWords reads a stop-word file, or returns the defaults when path
// is empty.
func LoadStopWords(path string) (StopWords, error) {
	if path == "" {
		return DefaultStopWords(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop words file: %w", err)
	}
	defer f.Close()
	return ReadStopWords(f)
}

func (s StopWords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

func (s StopWords) Len() int {
	return len(s)
}

func (s StopWords) clone() StopWords {
	c := make(StopWords, len(s))
	for w := range s {
		c[w] = struct{}{}
	}
	return c
}
