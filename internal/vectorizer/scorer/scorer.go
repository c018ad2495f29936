// Package scorer joins per-document term frequencies with the corpus-wide
// document-frequency relation and produces tf-idf weights.
package scorer

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

const stage = "score"

// Scorer weighs matched (tf, df) pairs against a fixed corpus size.
type Scorer struct {
	corpusSize int
}

func New(corpusSize int) (*Scorer, error) {
	if corpusSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, stage, apperrors.NoDocID, "",
			"corpus size must be positive, got %d", corpusSize)
	}
	return &Scorer{corpusSize: corpusSize}, nil
}

func (s *Scorer) CorpusSize() int {
	return s.corpusSize
}

// Score returns tf × ln(corpusSize / df). A pair that breaks the join
// contract is an error, never a substituted default.
func (s *Scorer) Score(tf record.TermFrequency, df record.DocumentFrequency) (record.Scored, error) {
	switch {
	case tf.Term != df.Term:
		return record.Scored{}, apperrors.Newf(apperrors.ErrJoinContract, stage, tf.DocID, tf.Term,
			"paired with document frequency of %q", df.Term)
	case df.Count <= 0:
		return record.Scored{}, apperrors.Newf(apperrors.ErrJoinContract, stage, tf.DocID, tf.Term,
			"document frequency %d is not positive", df.Count)
	case df.Count > s.corpusSize:
		return record.Scored{}, apperrors.Newf(apperrors.ErrJoinContract, stage, tf.DocID, tf.Term,
			"document frequency %d exceeds corpus size %d", df.Count, s.corpusSize)
	case tf.Frequency <= 0:
		return record.Scored{}, apperrors.Newf(apperrors.ErrJoinContract, stage, tf.DocID, tf.Term,
			"term frequency %d is not positive", tf.Frequency)
	}
	idf := math.Log(float64(s.corpusSize) / float64(df.Count))
	return record.Scored{
		DocID:  tf.DocID,
		Term:   tf.Term,
		Weight: float64(tf.Frequency) * idf,
	}, nil
}

// JoinResult is the output of one join partition.
type JoinResult struct {
	Scored    []record.Scored
	Errors    []error
	Unmatched int
}

// Join inner-joins tfs with dfs on the term. Term-frequency records with no
// matching row are dropped and counted; a term with several rows yields one
// scored record per row. Output follows the order of tfs.
func (s *Scorer) Join(tfs []record.TermFrequency, dfs []record.DocumentFrequency) JoinResult {
	build := make(map[string][]record.DocumentFrequency, len(dfs))
	for _, df := range dfs {
		build[df.Term] = append(build[df.Term], df)
	}
	res := JoinResult{Scored: make([]record.Scored, 0, len(tfs))}
	for _, tf := range tfs {
		rows, ok := build[tf.Term]
		if !ok {
			res.Unmatched++
			continue
		}
		for _, df := range rows {
			scored, err := s.Score(tf, df)
			if err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			res.Scored = append(res.Scored, scored)
		}
	}
	return res
}

// ScoreDocument scores the records of a single document through lookups
// in table instead of a partitioned join.
func (s *Scorer) ScoreDocument(tfs []record.TermFrequency, table *Table) JoinResult {
	res := JoinResult{Scored: make([]record.Scored, 0, len(tfs))}
	for _, tf := range tfs {
		count, ok := table.Lookup(tf.Term)
		if !ok {
			res.Unmatched++
			continue
		}
		scored, err := s.Score(tf, record.DocumentFrequency{Term: tf.Term, Count: count})
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Scored = append(res.Scored, scored)
	}
	return res
}
