// Command vectorinspect prints vectors stored in a segment file or in a
// file holding a single encoded payload.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

func main() {
	docID := flag.Int("doc", -1, "only print this document")
	raw := flag.Bool("raw", false, "treat the input as a concatenation of encoded vectors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vectorinspect [-doc id] [-raw] <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := flag.Arg(0)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var err error
	if *raw || filepath.Ext(path) != segment.FileExtension {
		err = inspectRaw(out, path, *docID)
	} else {
		err = inspectSegment(out, path, *docID)
	}
	if err != nil {
		out.Flush()
		fmt.Fprintf(os.Stderr, "vectorinspect: %v (%s)\n", err, apperrors.Kind(err))
		os.Exit(1)
	}
}

func inspectSegment(w io.Writer, path string, docID int) error {
	r, err := segment.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	h := r.Header()
	fmt.Fprintf(w, "# %s: %d vectors, corpus size %d\n", filepath.Base(path), h.VectorCount, h.CorpusSize)

	if docID >= 0 {
		v, err := r.Get(int32(docID))
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("doc %d not in segment", docID)
		}
		fmt.Fprint(w, v.String())
		return nil
	}
	if err := r.Verify(); err != nil {
		return err
	}
	return r.Scan(func(id int32, payload []byte) error {
		v, err := codec.Decode(payload)
		if err != nil {
			return fmt.Errorf("doc %d: %w", id, err)
		}
		fmt.Fprint(w, v.String())
		return nil
	})
}

// inspectRaw decodes back-to-back vectors until EOF. A partial trailing
// vector is printed before its error is reported.
func inspectRaw(w io.Writer, path string, docID int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	br := bufio.NewReader(f)
	for {
		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			return nil
		}
		v, err := codec.DecodeFrom(br)
		if v != nil && (docID < 0 || v.DocID == int32(docID)) {
			fmt.Fprint(w, v.String())
		}
		if err != nil {
			return err
		}
	}
}
