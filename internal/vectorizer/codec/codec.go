// Package codec implements the binary wire format of a SparseWeightVector.
//
// All fields are big-endian:
//
//	int32   docId
//	int32   entry count N
//	N times:
//	  int32   term length L in UTF-16 code units
//	  L×uint16 UTF-16 code units of the term
//	  float64 IEEE-754 weight
//
// The format is shared with existing producers and must stay bit-exact.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

const (
	headerSize    = 8
	entryOverhead = 4 + 8
	maxField      = math.MaxInt32
	// readChunkUnits bounds how much a declared term length can make the
	// stream decoder allocate ahead of the bytes actually present.
	readChunkUnits = 4096
)

// Encode serializes v. Nothing is produced if any count overflows its
// 32-bit field or a term is not valid UTF-8.
func Encode(v *vector.SparseWeightVector) ([]byte, error) {
	size, err := EncodedSize(v)
	if err != nil {
		return nil, err
	}
	return appendVector(make([]byte, 0, size), v), nil
}

// Append validates v and appends its encoding to dst.
func Append(dst []byte, v *vector.SparseWeightVector) ([]byte, error) {
	if _, err := EncodedSize(v); err != nil {
		return dst, err
	}
	return appendVector(dst, v), nil
}

// EncodeTo writes the encoding of v to w.
func EncodeTo(w io.Writer, v *vector.SparseWeightVector) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing vector %d: %w", v.DocID, err)
	}
	return nil
}

// EncodedSize returns the byte length of the encoding of v, or the reason v
// cannot be encoded.
func EncodedSize(v *vector.SparseWeightVector) (int, error) {
	if err := checkField(len(v.Entries), v.DocID, "", "entry count"); err != nil {
		return 0, err
	}
	size := headerSize
	for _, e := range v.Entries {
		if !utf8.ValidString(e.Term) {
			return 0, apperrors.New(apperrors.ErrInvalidInput, "encode", v.DocID, e.Term, "term is not valid UTF-8")
		}
		units := utf16Len(e.Term)
		if err := checkField(units, v.DocID, e.Term, "term length"); err != nil {
			return 0, err
		}
		size += entryOverhead + 2*units
	}
	return size, nil
}

func checkField(n int, docID int32, term string, what string) error {
	if n > maxField {
		return apperrors.Newf(apperrors.ErrEncodingOverflow, "encode", docID, term,
			"%s %d exceeds %d", what, n, maxField)
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func appendVector(dst []byte, v *vector.SparseWeightVector) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(v.DocID))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.Entries)))
	for _, e := range v.Entries {
		dst = binary.BigEndian.AppendUint32(dst, uint32(utf16Len(e.Term)))
		for _, r := range e.Term {
			if utf16.RuneLen(r) == 2 {
				hi, lo := utf16.EncodeRune(r)
				dst = binary.BigEndian.AppendUint16(dst, uint16(hi))
				dst = binary.BigEndian.AppendUint16(dst, uint16(lo))
				continue
			}
			dst = binary.BigEndian.AppendUint16(dst, uint16(r))
		}
		dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(e.Weight))
	}
	return dst
}

// TruncatedError reports a stream that ended before the vector was
// complete. The vector returned alongside it holds the entries decoded so
// far.
type TruncatedError struct {
	DocID    int32
	Declared int
	Decoded  int
	Offset   int64
}

func (e *TruncatedError) Error() string {
	if e.Declared < 0 {
		return fmt.Sprintf("truncated input: vector header incomplete at byte %d", e.Offset)
	}
	return fmt.Sprintf("truncated input: doc %d decoded %d of %d entries, data ended at byte %d",
		e.DocID, e.Decoded, e.Declared, e.Offset)
}

func (e *TruncatedError) Unwrap() error {
	return apperrors.ErrTruncatedInput
}

// Decode parses exactly one vector from b. On error the returned vector
// holds what was decoded before the failure. A partial read unwraps to
// ErrTruncatedInput from pkg/errors and is never reported as success.
func Decode(b []byte) (*vector.SparseWeightVector, error) {
	r := bytes.NewReader(b)
	v, err := DecodeFrom(r)
	if err != nil {
		return v, err
	}
	if r.Len() > 0 {
		return v, apperrors.Newf(apperrors.ErrCorruptInput, "decode", v.DocID, "",
			"%d trailing bytes after vector", r.Len())
	}
	return v, nil
}

// DecodeFrom reads one vector from r, leaving any following bytes unread.
func DecodeFrom(r io.Reader) (*vector.SparseWeightVector, error) {
	d := &decoder{r: r}
	v := vector.New()
	declared := -1
	truncated := func() error {
		return &TruncatedError{DocID: v.DocID, Declared: declared, Decoded: v.Len(), Offset: d.offset}
	}

	docID, err := d.int32()
	if err != nil {
		return v, d.wrap(err, truncated)
	}
	v.SetDocID(docID)
	count, err := d.int32()
	if err != nil {
		return v, d.wrap(err, truncated)
	}
	if count < 0 {
		return v, apperrors.Newf(apperrors.ErrCorruptInput, "decode", docID, "", "negative entry count %d", count)
	}
	declared = int(count)
	v.Entries = make([]vector.Entry, 0, min(declared, 1024))
	for i := 0; i < declared; i++ {
		units, err := d.int32()
		if err != nil {
			return v, d.wrap(err, truncated)
		}
		if units < 0 {
			return v, apperrors.Newf(apperrors.ErrCorruptInput, "decode", docID, "",
				"entry %d has negative term length %d", i, units)
		}
		term, err := d.term(int(units))
		if err != nil {
			return v, d.wrap(err, truncated)
		}
		weight, err := d.float64()
		if err != nil {
			return v, d.wrap(err, truncated)
		}
		v.Add(term, weight)
	}
	return v, nil
}

type decoder struct {
	r      io.Reader
	buf    [8]byte
	offset int64
}

func (d *decoder) fill(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.offset += int64(n)
	return err
}

func (d *decoder) int32() (int32, error) {
	if err := d.fill(d.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(d.buf[:4])), nil
}

func (d *decoder) float64() (float64, error) {
	if err := d.fill(d.buf[:8]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(d.buf[:8])), nil
}

func (d *decoder) term(units int) (string, error) {
	codeUnits := make([]uint16, 0, min(units, readChunkUnits))
	chunk := make([]byte, 2*min(units, readChunkUnits))
	for remaining := units; remaining > 0; {
		n := min(remaining, readChunkUnits)
		p := chunk[:2*n]
		if err := d.fill(p); err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			codeUnits = append(codeUnits, binary.BigEndian.Uint16(p[2*i:]))
		}
		remaining -= n
	}
	return string(utf16.Decode(codeUnits)), nil
}

func (d *decoder) wrap(err error, truncated func() error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return truncated()
	}
	return fmt.Errorf("reading vector at byte %d: %w", d.offset, err)
}
