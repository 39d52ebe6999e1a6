// Package index implements the fixed-width binary index mapping a Wikidata
// QID to the location of its JSON line inside a multi-member gzip dump.
//
// The file is a flat array of 16-byte records: record n describes QID n.
// Because the QID space is near-contiguous, a constant-offset seek replaces
// any tree or hash structure. The all-zero record is the "not indexed"
// sentinel; that is sound because the dump's first gzip member (compressed
// offset 0) is the JSON array wrapper and never contains entity data, so no
// real entity can live at member offset 0.
package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
)

// RecordSize is the on-disk size of one index record in bytes.
const RecordSize = 16

// Record locates one entity's line in the dump: the compressed-file offset
// of the gzip member holding it, and the byte offset of the line within the
// member's decompressed bytes. Both fields are stored little-endian.
type Record struct {
	MemberOffset uint64
	LineOffset   uint64
}

// IsZero reports whether r is the "not indexed" sentinel.
func (r Record) IsZero() bool {
	return r.MemberOffset == 0 && r.LineOffset == 0
}

func (r Record) marshal(buf *[RecordSize]byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.MemberOffset)
	binary.LittleEndian.PutUint64(buf[8:16], r.LineOffset)
}

func unmarshalRecord(buf *[RecordSize]byte) Record {
	return Record{
		MemberOffset: binary.LittleEndian.Uint64(buf[0:8]),
		LineOffset:   binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// Writer writes records into the index file at their QID-derived offsets.
// It is not safe for concurrent use; index building is strictly sequential.
type Writer struct {
	f        *os.File
	pos      int64
	capacity uint64
}

// OpenWriter opens or creates the index file at path and ensures it spans
// capacity records. A short file is extended with zero bytes, which are
// exactly the sentinel records; existing data is never truncated or reset,
// so re-running a build only overwrites the slots it touches.
func OpenWriter(path string, capacity uint64) (*Writer, error) {
	if capacity > math.MaxInt64/RecordSize {
		return nil, fmt.Errorf("index capacity %d overflows file addressing", capacity)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat index %s: %w", path, err)
	}
	if want := int64(capacity) * RecordSize; info.Size() < want {
		if err := f.Truncate(want); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("extend index %s to %d records: %w", path, capacity, err)
		}
	}
	return &Writer{f: f, capacity: capacity}, nil
}

// Put overwrites the record slot for qid. The seek is elided when the writer
// is already positioned there, which is the common case during a sequential
// build. A qid beyond capacity is written anyway (the file grows) but logged,
// since reads past the preallocated range are what capacity is meant to
// prevent.
func (w *Writer) Put(qid uint64, rec Record) error {
	if qid >= w.capacity {
		log.Printf("index: Q%d exceeds configured capacity %d; consider rebuilding with a larger capacity", qid, w.capacity)
	}
	if qid > math.MaxInt64/RecordSize {
		return fmt.Errorf("index: Q%d overflows file addressing", qid)
	}
	target := int64(qid) * RecordSize
	if w.pos != target {
		if _, err := w.f.Seek(target, io.SeekStart); err != nil {
			return fmt.Errorf("seek index slot for Q%d: %w", qid, err)
		}
		w.pos = target
	}
	var buf [RecordSize]byte
	rec.marshal(&buf)
	if _, err := w.f.Write(buf[:]); err != nil {
		return fmt.Errorf("write index slot for Q%d: %w", qid, err)
	}
	w.pos += RecordSize
	return nil
}

// Flush forces written records to durable storage. Callers must flush at the
// end of a batch so a crash cannot lose the preceding members' addresses.
func (w *Writer) Flush() error {
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	return nil
}

// Close flushes and closes the index file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader performs random-access lookups against an index file. Get is safe
// for concurrent use; all reads are positional.
type Reader struct {
	f *os.File
}

// OpenReader opens the index file at path for lookups.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Reader{f: f}, nil
}

// Get reads the record for qid. ok is false both when qid lies beyond the
// file's current extent and when the slot holds the sentinel; the two cases
// are indistinguishable by design.
func (r *Reader) Get(qid uint64) (Record, bool, error) {
	if qid > math.MaxInt64/RecordSize {
		return Record{}, false, nil
	}
	var buf [RecordSize]byte
	if _, err := r.f.ReadAt(buf[:], int64(qid)*RecordSize); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read index slot for Q%d: %w", qid, err)
	}
	rec := unmarshalRecord(&buf)
	if rec.IsZero() {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Close closes the index file.
func (r *Reader) Close() error {
	return r.f.Close()
}
