package vector

import (
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

const stage = "aggregate"

// Aggregate folds one docId group into a fresh vector, appending entries in
// delivery order. The group must be non-empty and every record must carry
// the docId of the first one.
func Aggregate(group []record.Scored) (*SparseWeightVector, error) {
	if len(group) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, stage, apperrors.NoDocID, "", "empty group")
	}
	v := &SparseWeightVector{Entries: make([]Entry, 0, len(group))}
	v.SetDocID(group[0].DocID)
	for _, r := range group {
		if r.DocID != v.DocID {
			return nil, apperrors.Newf(apperrors.ErrJoinContract, stage, r.DocID, r.Term,
				"record routed to group of document %d", v.DocID)
		}
		v.Add(r.Term, r.Weight)
	}
	return v, nil
}
