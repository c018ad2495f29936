package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

type Reader struct {
	file       *os.File
	filePath   string
	header     Header
	dir        []DirEntry
	payloadCRC uint32
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := Header{
		Magic:       binary.BigEndian.Uint32(headerBytes[0:4]),
		Version:     binary.BigEndian.Uint32(headerBytes[4:8]),
		VectorCount: binary.BigEndian.Uint32(headerBytes[8:12]),
		CorpusSize:  binary.BigEndian.Uint32(headerBytes[12:16]),
		CreatedAt:   int64(binary.BigEndian.Uint64(headerBytes[16:24])),
		DirOffset:   int64(binary.BigEndian.Uint64(headerBytes[24:32])),
	}
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x: %w", header.Magic, apperrors.ErrCorruptInput)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d: %w", header.Version, apperrors.ErrCorruptInput)
	}
	dirSize := int64(header.VectorCount) * int64(DirEntrySize)
	dirBytes := make([]byte, dirSize+int64(FooterSize))
	if _, err := f.ReadAt(dirBytes, header.DirOffset); err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	footer := dirBytes[dirSize:]
	dirBytes = dirBytes[:dirSize]
	if got, want := crc32.ChecksumIEEE(dirBytes), binary.BigEndian.Uint32(footer[0:4]); got != want {
		return nil, fmt.Errorf("directory checksum %08x, footer says %08x: %w", got, want, apperrors.ErrCorruptInput)
	}
	dir := make([]DirEntry, header.VectorCount)
	for i := range dir {
		b := dirBytes[i*DirEntrySize:]
		dir[i] = DirEntry{
			DocID:  int32(binary.BigEndian.Uint32(b[0:4])),
			Offset: int64(binary.BigEndian.Uint64(b[4:12])),
			Length: binary.BigEndian.Uint32(b[12:16]),
		}
	}
	return &Reader{
		file:       f,
		filePath:   path,
		header:     header,
		dir:        dir,
		payloadCRC: binary.BigEndian.Uint32(footer[4:8]),
	}, nil
}

// Payload returns the encoded vector of docID, or nil if it is absent.
func (r *Reader) Payload(docID int32) ([]byte, error) {
	idx := sort.Search(len(r.dir), func(i int) bool {
		return r.dir[i].DocID >= docID
	})
	if idx >= len(r.dir) || r.dir[idx].DocID != docID {
		return nil, nil
	}
	return r.read(r.dir[idx])
}

// Get decodes the vector of docID; a missing document yields nil, nil.
func (r *Reader) Get(docID int32) (*vector.SparseWeightVector, error) {
	payload, err := r.Payload(docID)
	if err != nil || payload == nil {
		return nil, err
	}
	v, err := codec.Decode(payload)
	if err != nil {
		return v, fmt.Errorf("decoding doc %d from %s: %w", docID, r.filePath, err)
	}
	return v, nil
}

// Scan calls fn for every payload in docId order, stopping at the first
// error.
func (r *Reader) Scan(fn func(docID int32, payload []byte) error) error {
	for _, e := range r.dir {
		payload, err := r.read(e)
		if err != nil {
			return err
		}
		if err := fn(e.DocID, payload); err != nil {
			return err
		}
	}
	return nil
}

// Verify recomputes the payload checksum.
func (r *Reader) Verify() error {
	h := crc32.NewIEEE()
	section := io.NewSectionReader(r.file, int64(HeaderSize), r.header.DirOffset-int64(HeaderSize))
	if _, err := io.Copy(h, section); err != nil {
		return fmt.Errorf("reading payloads: %w", err)
	}
	if h.Sum32() != r.payloadCRC {
		return fmt.Errorf("payload checksum %08x, footer says %08x: %w", h.Sum32(), r.payloadCRC, apperrors.ErrCorruptInput)
	}
	return nil
}

func (r *Reader) read(e DirEntry) ([]byte, error) {
	payload := make([]byte, e.Length)
	if _, err := r.file.ReadAt(payload, e.Offset); err != nil {
		return nil, fmt.Errorf("reading payload of doc %d: %w", e.DocID, err)
	}
	return payload, nil
}

func (r *Reader) DocIDs() []int32 {
	ids := make([]int32, len(r.dir))
	for i, e := range r.dir {
		ids[i] = e.DocID
	}
	return ids
}

func (r *Reader) Len() int {
	return len(r.dir)
}

func (r *Reader) CorpusSize() int {
	return int(r.header.CorpusSize)
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Close() error {
	return r.file.Close()
}
