package index

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/openmuseum/gallerist/internal/dump"
)

// BuildOptions configures an index build.
type BuildOptions struct {
	// Capacity is the maximum QID the index is preallocated for.
	Capacity uint64
	// StartOffset resumes the member walk at a compressed-file offset
	// reported by a previous run. Zero scans the whole dump.
	StartOffset int64
	// Progress, when set, is invoked after every member.
	Progress func(BuildStats)
}

// BuildStats counts a build's progress.
type BuildStats struct {
	Members    int
	Entities   int
	BytesDone  int64
	BytesTotal int64
}

// Build walks the dump's gzip members in file order, scans every line of
// each entity-bearing member, and writes one record per entity. The walk is
// strictly sequential: the walker's offset is the only progress state and
// doubles as the resume checkpoint. Building twice from offset zero yields a
// byte-identical index file.
func Build(dumpPath, indexPath string, opts BuildOptions) (BuildStats, error) {
	var stats BuildStats

	f, err := os.Open(dumpPath)
	if err != nil {
		return stats, fmt.Errorf("open dump %s: %w", dumpPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return stats, fmt.Errorf("stat dump %s: %w", dumpPath, err)
	}
	stats.BytesTotal = info.Size()
	stats.BytesDone = opts.StartOffset

	mr, err := dump.NewMemberReader(f, opts.StartOffset)
	if err != nil {
		return stats, err
	}

	w, err := OpenWriter(indexPath, opts.Capacity)
	if err != nil {
		return stats, err
	}
	defer func() { _ = w.Close() }()

	for {
		data, start, next, err := mr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Members++
		stats.BytesDone = next

		if dump.IsEntityMember(data) {
			if err := indexMember(w, data, start, &stats); err != nil {
				return stats, err
			}
		}
		if opts.Progress != nil {
			opts.Progress(stats)
		}
	}

	if err := w.Flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func indexMember(w *Writer, data []byte, memberStart int64, stats *BuildStats) error {
	for off := 0; off < len(data); {
		end := len(data)
		if nl := bytes.IndexByte(data[off:], '\n'); nl >= 0 {
			end = off + nl
		}
		if qid, ok := dump.ScanLine(data[off:end]); ok {
			rec := Record{MemberOffset: uint64(memberStart), LineOffset: uint64(off)}
			if err := w.Put(qid, rec); err != nil {
				return err
			}
			stats.Entities++
		}
		off = end + 1
	}
	return nil
}
