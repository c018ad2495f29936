// Package tokenizer turns raw document lines into per-document term
// frequencies. Tokens are split on single spaces and kept verbatim: no case
// folding and no stemming, so terms stay byte-exact join keys for the
// document-frequency relation.
package tokenizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

const stage = "extract"

var termPattern = regexp.MustCompile(`^[\w!.]+$`)

// Extractor computes term frequencies against a fixed stop-word set.
type Extractor struct {
	stopWords StopWords
}

// NewExtractor copies stopWords so later changes by the caller are not seen.
func NewExtractor(stopWords StopWords) *Extractor {
	return &Extractor{stopWords: stopWords.clone()}
}

// Extract emits one record per distinct qualifying term of doc. Records
// come out in first-occurrence order, which callers must not rely on.
func (e *Extractor) Extract(doc record.Document) ([]record.TermFrequency, error) {
	docID, text, err := ParseDocument(doc.Raw)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, token := range strings.Split(text, " ") {
		if !e.Qualifies(token) {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}
	out := make([]record.TermFrequency, 0, len(order))
	for _, term := range order {
		out = append(out, record.TermFrequency{
			DocID:     docID,
			Term:      term,
			Frequency: counts[term],
		})
	}
	return out, nil
}

// Qualifies reports whether token is a term: only word characters, '!' and
// '.', and not a stop word.
func (e *Extractor) Qualifies(token string) bool {
	if !termPattern.MatchString(token) {
		return false
	}
	return !e.stopWords.Contains(token)
}

// ParseDocument splits raw on commas, parses field 0 as the document id and
// joins the remaining fields with no separator between them. Existing
// corpora were produced this way, so "1,ab,cd" has the text "abcd".
func ParseDocument(raw string) (int32, string, error) {
	fields := strings.Split(raw, ",")
	id, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return 0, "", apperrors.Newf(apperrors.ErrParse, stage, apperrors.NoDocID, "",
			"document id %q: %v", truncate(fields[0], 32), numErrReason(err))
	}
	if id < 0 {
		return 0, "", apperrors.Newf(apperrors.ErrParse, stage, apperrors.NoDocID, "",
			"document id %d is negative", id)
	}
	return int32(id), strings.Join(fields[1:], ""), nil
}

func numErrReason(err error) string {
	if numErr, ok := err.(*strconv.NumError); ok {
		return numErr.Err.Error()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
