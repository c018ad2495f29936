// Package segment stores a batch of encoded vectors in a single .tvec file:
// a fixed header, the concatenated vector payloads, a directory sorted by
// docId and a checksum footer. All integers are big-endian, like the
// payloads themselves.
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	MagicBytes    uint32 = 0x54564543
	FormatVersion uint32 = 1
)

const (
	HeaderSize   = 32
	DirEntrySize = 16
	FooterSize   = 8
)

const FileExtension = ".tvec"

// Header is the fixed-size block at the start of every segment.
type Header struct {
	Magic       uint32
	Version     uint32
	VectorCount uint32
	CorpusSize  uint32
	CreatedAt   int64
	DirOffset   int64
}

// DirEntry locates one payload inside the segment.
type DirEntry struct {
	DocID  int32
	Offset int64
	Length uint32
}

// Entry is one encoded vector handed to the writer.
type Entry struct {
	DocID   int32
	Payload []byte
}

// Writer creates segment files inside one directory.
type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment holding entries. It writes to a
// .tmp file first and renames on success. DocIds must be unique.
func (w *Writer) Write(entries []Entry, corpusSize int) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].DocID == sorted[i-1].DocID {
			return "", fmt.Errorf("duplicate doc id %d in segment", sorted[i].DocID)
		}
	}

	segmentName := fmt.Sprintf("vec_%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], FileExtension)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}

	offset := int64(HeaderSize)
	payloadCRC := crc32.NewIEEE()
	dir := make([]byte, 0, len(sorted)*DirEntrySize)
	for _, e := range sorted {
		if _, err := f.Write(e.Payload); err != nil {
			return "", fmt.Errorf("writing payload for doc %d: %w", e.DocID, err)
		}
		payloadCRC.Write(e.Payload)
		dir = binary.BigEndian.AppendUint32(dir, uint32(e.DocID))
		dir = binary.BigEndian.AppendUint64(dir, uint64(offset))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(e.Payload)))
		offset += int64(len(e.Payload))
	}
	dirOffset := offset
	if _, err := f.Write(dir); err != nil {
		return "", fmt.Errorf("writing directory: %w", err)
	}
	footer := make([]byte, FooterSize)
	binary.BigEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dir))
	binary.BigEndian.PutUint32(footer[4:8], payloadCRC.Sum32())
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	binary.BigEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.BigEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.BigEndian.PutUint32(headerBytes[8:12], uint32(len(sorted)))
	binary.BigEndian.PutUint32(headerBytes[12:16], uint32(corpusSize))
	binary.BigEndian.PutUint64(headerBytes[16:24], uint64(time.Now().Unix()))
	binary.BigEndian.PutUint64(headerBytes[24:32], uint64(dirOffset))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
