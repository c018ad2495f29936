// Package vector holds the per-document sparse tf-idf vector and the fold
// that builds it from scored records.
package vector

import (
	"math"
	"strconv"
	"strings"
)

// Entry is one (term, weight) pair of a vector.
type Entry struct {
	Term   string
	Weight float64
}

// SparseWeightVector keeps entries in insertion order. Terms are neither
// sorted nor deduplicated. A vector must only be written by the task that
// owns it.
type SparseWeightVector struct {
	DocID   int32
	Entries []Entry
}

func New() *SparseWeightVector {
	return &SparseWeightVector{}
}

func (v *SparseWeightVector) SetDocID(docID int32) {
	v.DocID = docID
}

func (v *SparseWeightVector) Add(term string, weight float64) {
	v.Entries = append(v.Entries, Entry{Term: term, Weight: weight})
}

func (v *SparseWeightVector) Len() int {
	return len(v.Entries)
}

// Clear returns v to the zero state, docId included.
func (v *SparseWeightVector) Clear() {
	v.DocID = 0
	v.Entries = nil
}

// Equal reports whether both vectors hold the same docId and the same
// entries in the same order. Weights compare by bit pattern, so NaN equals
// NaN and 0 differs from -0.
func (v *SparseWeightVector) Equal(o *SparseWeightVector) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.DocID != o.DocID || len(v.Entries) != len(o.Entries) {
		return false
	}
	for i, e := range v.Entries {
		oe := o.Entries[i]
		if e.Term != oe.Term || math.Float64bits(e.Weight) != math.Float64bits(oe.Weight) {
			return false
		}
	}
	return true
}

// Weight returns the weight of the first entry for term.
func (v *SparseWeightVector) Weight(term string) (float64, bool) {
	for _, e := range v.Entries {
		if e.Term == term {
			return e.Weight, true
		}
	}
	return 0, false
}

func (v *SparseWeightVector) String() string {
	var b strings.Builder
	b.WriteString("Document ID: ")
	b.WriteString(strconv.FormatInt(int64(v.DocID), 10))
	b.WriteByte('\n')
	for _, e := range v.Entries {
		b.WriteString("< ")
		b.WriteString(e.Term)
		b.WriteString(" , ")
		b.WriteString(strconv.FormatFloat(e.Weight, 'g', -1, 64))
		b.WriteString(" >\n")
	}
	return b.String()
}
