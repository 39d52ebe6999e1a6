package dump

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformedLine means a sliced line did not end in '}'. It signals a
// stale or corrupt index record rather than bad dump data, so it is never
// silently skipped.
var ErrMalformedLine = errors.New("dump: sliced line does not end in '}'")

// Entry locates one requested entity inside a decompressed member.
type Entry struct {
	QID    uint64
	Offset uint64 // byte offset of the line start within the member
}

// Extracted is the per-entity outcome of slicing a member. Exactly one of
// JSON and Err is set.
type Extracted struct {
	QID  uint64
	JSON []byte
	Err  error
}

// ExtractEntities slices the raw JSON line for each entry out of a member's
// decompressed bytes. The member is decompressed once by the caller no
// matter how many entries it serves. A malformed slice poisons only its own
// entry; sibling extractions from the same member proceed.
func ExtractEntities(data []byte, entries []Entry) []Extracted {
	out := make([]Extracted, 0, len(entries))
	for _, e := range entries {
		out = append(out, extractOne(data, e))
	}
	return out
}

func extractOne(data []byte, e Entry) Extracted {
	if e.Offset >= uint64(len(data)) {
		return Extracted{QID: e.QID, Err: fmt.Errorf("Q%d: offset %d beyond member size %d: %w",
			e.QID, e.Offset, len(data), ErrMalformedLine)}
	}
	line := data[e.Offset:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	// All lines but the last in the wrapped array carry a trailing comma.
	line = bytes.TrimSuffix(line, []byte{','})
	if len(line) == 0 || line[len(line)-1] != '}' {
		return Extracted{QID: e.QID, Err: fmt.Errorf("Q%d: line at offset %d: %w", e.QID, e.Offset, ErrMalformedLine)}
	}
	return Extracted{QID: e.QID, JSON: line}
}
