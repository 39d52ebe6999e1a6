package query

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/openmuseum/gallerist/internal/entity"
	"github.com/openmuseum/gallerist/internal/retrieve"
)

// PrepareOptions configures the prepare phase.
type PrepareOptions struct {
	// Verbose logs every entity dropped by the artwork filter.
	Verbose bool
}

// PrepareStats summarizes a prepare run.
type PrepareStats struct {
	Requested    int // distinct QIDs fetched in the primary pass
	Kept         int // passed the artwork filter
	Skipped      int // parsed fine but missing image or dimensions
	Dependencies int // dependency entities resolved into the cache
}

// Prepare resolves the requested QIDs into validated, cached entities and
// emits the descriptor the execute phase replays.
//
// The primary pass keeps only entities with an image and strictly positive
// width and height in centimetres; everything else is a counted skip, never
// an error — most Wikidata items are not paintings. Dependency QIDs
// (creator, collection, materials) are collected from every parsed entity
// whether or not it passes the filter, then resolved in a second pass one
// level deep. Per-item extraction or validation errors mean index or cache
// corruption and abort the phase.
func Prepare(ctx context.Context, eng *retrieve.Engine, qids []uint64, opts PrepareOptions) (*Descriptor, PrepareStats, error) {
	var stats PrepareStats

	results, err := eng.Fetch(ctx, qids)
	if err != nil {
		return nil, stats, err
	}
	stats.Requested = len(results)

	deps := roaring64.New()
	var primaries []uint64
	for _, res := range results {
		if res.Err != nil {
			return nil, stats, res.Err
		}
		ent, err := entity.Parse(res.JSON)
		if err != nil {
			return nil, stats, fmt.Errorf("Q%d: %w", res.QID, err)
		}
		deps.AddMany(ent.Dependencies())
		if !ent.Displayable() {
			stats.Skipped++
			if opts.Verbose {
				log.Printf("prepare: Q%d dropped: no image or no dimensions in cm", res.QID)
			}
			continue
		}
		primaries = append(primaries, res.QID)
		stats.Kept++
	}

	// One level deep only: dependencies of dependencies are not resolved.
	var resolved []uint64
	if !deps.IsEmpty() {
		depResults, err := eng.Fetch(ctx, deps.ToArray())
		if err != nil {
			return nil, stats, err
		}
		for _, res := range depResults {
			if res.Err != nil {
				return nil, stats, res.Err
			}
			resolved = append(resolved, res.QID)
		}
		sort.Slice(resolved, func(i, j int) bool { return resolved[i] < resolved[j] })
	}
	stats.Dependencies = len(resolved)

	return &Descriptor{
		Dumpfile:       eng.DumpPath,
		QIDs:           primaries,
		DependencyQIDs: resolved,
	}, stats, nil
}
