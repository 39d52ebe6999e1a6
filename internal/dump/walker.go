package dump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
)

const readBufSize = 1 << 20

// MemberReader iterates a multi-member gzip file one member at a time,
// reporting the compressed-file offset where each member starts. Offsets are
// exact: the decompressor is fed through a counting io.ByteReader so it
// never consumes bytes beyond the member it is reading.
//
// A MemberReader is strictly sequential and not safe for concurrent use.
type MemberReader struct {
	src  *countingReader
	zr   *gzip.Reader
	base int64
}

// NewMemberReader positions r at start and prepares to decompress the member
// beginning there. A non-zero start resumes a previously interrupted walk;
// it must be an offset reported by an earlier Next call, since gzip members
// can only be entered at their headers.
func NewMemberReader(r io.ReadSeeker, start int64) (*MemberReader, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to member offset %d: %w", start, err)
	}
	return &MemberReader{
		src:  &countingReader{br: bufio.NewReaderSize(r, readBufSize)},
		base: start,
	}, nil
}

// Next decompresses exactly one gzip member. It returns the member's
// decompressed bytes, the compressed-file offset where the member starts,
// and the offset where the stream now stands (the next member's start, or
// the file size after the final member). io.EOF signals a clean end of the
// stream.
func (r *MemberReader) Next() (data []byte, start, next int64, err error) {
	start = r.base + r.src.n
	if r.zr == nil {
		zr, err := gzip.NewReader(r.src)
		if err != nil {
			if err == io.EOF {
				return nil, start, start, io.EOF
			}
			return nil, start, start, fmt.Errorf("gzip member at offset %d: %w", start, err)
		}
		r.zr = zr
	} else {
		if err := r.zr.Reset(r.src); err != nil {
			if err == io.EOF {
				return nil, start, start, io.EOF
			}
			return nil, start, start, fmt.Errorf("gzip member at offset %d: %w", start, err)
		}
	}
	// Reset re-enables multistream mode, so this must follow every Reset.
	r.zr.Multistream(false)

	data, err = io.ReadAll(r.zr)
	if err != nil {
		return nil, start, start, fmt.Errorf("decompress member at offset %d: %w", start, err)
	}
	return data, start, r.base + r.src.n, nil
}

// ReadMemberAt decompresses the single gzip member starting at off. It is
// the random-access counterpart to MemberReader and is safe to call
// concurrently on the same io.ReaderAt, which is how lookup batches fan out
// across members.
func ReadMemberAt(ra io.ReaderAt, off int64) ([]byte, error) {
	sr := io.NewSectionReader(ra, off, math.MaxInt64-off)
	zr, err := gzip.NewReader(bufio.NewReaderSize(sr, readBufSize))
	if err != nil {
		return nil, fmt.Errorf("gzip member at offset %d: %w", off, err)
	}
	zr.Multistream(false)
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress member at offset %d: %w", off, err)
	}
	return data, nil
}

// IsEntityMember reports whether a decompressed member holds entity lines.
// The wrapper members carrying the enclosing JSON array's "[" and "]" fail
// the brace check and are skipped without a line scan. Trailing comma and
// newline bytes are ignored since a member boundary can fall after either.
func IsEntityMember(data []byte) bool {
	data = bytes.TrimRight(data, ",\n")
	return len(data) > 0 && data[0] == '{' && data[len(data)-1] == '}'
}

// countingReader counts the bytes actually consumed by the decompressor.
// It implements io.ByteReader so that flate reads exactly the bytes it
// needs; the count then equals the true position in the compressed stream
// regardless of how far the underlying bufio.Reader has prefetched.
type countingReader struct {
	br *bufio.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}
