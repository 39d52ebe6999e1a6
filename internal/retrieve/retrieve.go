// Package retrieve turns batches of QIDs into raw entity JSON, reading
// through the persistent cache into the indexed dump file.
package retrieve

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/openmuseum/gallerist/internal/cache"
	"github.com/openmuseum/gallerist/internal/dump"
	"github.com/openmuseum/gallerist/internal/entity"
	"github.com/openmuseum/gallerist/internal/index"
)

// Result is the per-entity outcome of a fetch. JSON is set on success; Err
// carries recoverable per-item failures (malformed extraction, identifier
// mismatch). QIDs absent from the index produce no Result at all.
type Result struct {
	QID  uint64
	JSON []byte
	Err  error
}

// Engine resolves QID batches against one dump file. It is read-only over
// the index and dump and write-through into the cache, so a single Engine
// may serve concurrent Fetch calls.
type Engine struct {
	DumpPath string
	Index    *index.Reader
	Cache    *cache.Cache
	// Workers bounds parallel member decompression; <= 0 means NumCPU.
	// Workers=1 degrades to sequential extraction.
	Workers int
}

// Fetch resolves a batch of QIDs. Cached entities come first, in request
// order; entities that needed dump extraction follow in no particular order,
// since grouping by gzip member destroys request order. Each distinct member
// is decompressed at most once per batch.
func (e *Engine) Fetch(ctx context.Context, qids []uint64) ([]Result, error) {
	qids = dedupe(qids)

	cached, uncached, err := e.Cache.Partition(qids)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(qids))
	for _, q := range cached {
		raw, err := e.Cache.Get(q)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{QID: q, JSON: raw})
	}
	if len(uncached) == 0 {
		return results, nil
	}

	groups, missing, err := GroupByMember(e.Index, uncached)
	if err != nil {
		return nil, err
	}
	for _, q := range missing {
		log.Printf("retrieve: Q%d not in index", q)
	}
	if len(groups) == 0 {
		return results, nil
	}

	f, err := os.Open(e.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("open dump %s: %w", e.DumpPath, err)
	}
	defer func() { _ = f.Close() }()

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for off, entries := range groups {
		off, entries := off, entries
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := dump.ReadMemberAt(f, int64(off))
			if err != nil {
				return err
			}
			extracted := dump.ExtractEntities(data, entries)
			for _, ex := range extracted {
				res := Result{QID: ex.QID, JSON: ex.JSON, Err: ex.Err}
				if ex.Err == nil {
					if _, err := entity.Validate(ex.JSON, ex.QID); err != nil {
						res = Result{QID: ex.QID, Err: err}
					} else if err := e.Cache.Put(ex.QID, ex.JSON); err != nil {
						return err
					}
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GroupByMember looks every qid up in the index and groups the hits by gzip
// member offset, so each distinct member is decompressed once per batch no
// matter how many requested entities live inside it. QIDs with a sentinel
// record come back in missing.
func GroupByMember(idx *index.Reader, qids []uint64) (groups map[uint64][]dump.Entry, missing []uint64, err error) {
	groups = make(map[uint64][]dump.Entry)
	for _, q := range qids {
		rec, ok, err := idx.Get(q)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, q)
			continue
		}
		groups[rec.MemberOffset] = append(groups[rec.MemberOffset], dump.Entry{QID: q, Offset: rec.LineOffset})
	}
	return groups, missing, nil
}

// dedupe drops repeated QIDs, keeping first-occurrence order.
func dedupe(qids []uint64) []uint64 {
	seen := roaring64.New()
	out := make([]uint64, 0, len(qids))
	for _, q := range qids {
		if seen.CheckedAdd(q) {
			out = append(out, q)
		}
	}
	return out
}
