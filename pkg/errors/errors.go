// Package errors defines the failure taxonomy shared by every pipeline
// stage. Stages wrap one of the sentinels in a RecordError so callers can
// branch with errors.Is while logs still carry the document and term.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse            = errors.New("parse error")
	ErrJoinContract     = errors.New("join contract violation")
	ErrTruncatedInput   = errors.New("truncated input")
	ErrEncodingOverflow = errors.New("encoding overflow")
	ErrCorruptInput     = errors.New("corrupt input")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSink             = errors.New("sink write failed")
)

// NoDocID marks a RecordError raised before a document id was known.
const NoDocID int32 = -1

// RecordError ties a sentinel to the record that triggered it.
type RecordError struct {
	Err     error
	Stage   string
	DocID   int32
	Term    string
	Message string
}

func (e *RecordError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.DocID != NoDocID {
		fmt.Fprintf(&b, " (doc_id=%d", e.DocID)
		if e.Term != "" {
			fmt.Fprintf(&b, " term=%q", e.Term)
		}
		b.WriteString(")")
	} else if e.Term != "" {
		fmt.Fprintf(&b, " (term=%q)", e.Term)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func New(sentinel error, stage string, docID int32, term string, message string) *RecordError {
	return &RecordError{
		Err:     sentinel,
		Stage:   stage,
		DocID:   docID,
		Term:    term,
		Message: message,
	}
}

func Newf(sentinel error, stage string, docID int32, term string, format string, args ...any) *RecordError {
	return &RecordError{
		Err:     sentinel,
		Stage:   stage,
		DocID:   docID,
		Term:    term,
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind names the taxonomy bucket of err for metric labels and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrJoinContract):
		return "join_contract"
	case errors.Is(err, ErrTruncatedInput):
		return "truncated"
	case errors.Is(err, ErrEncodingOverflow):
		return "encoding_overflow"
	case errors.Is(err, ErrCorruptInput):
		return "corrupt"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrSink):
		return "sink"
	default:
		return "internal"
	}
}

// DocIDOf extracts the document id carried by err, if any.
func DocIDOf(err error) (int32, bool) {
	var recErr *RecordError
	if errors.As(err, &recErr) && recErr.DocID != NoDocID {
		return recErr.DocID, true
	}
	return 0, false
}
