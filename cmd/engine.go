package cmd

import (
	"fmt"

	"github.com/openmuseum/gallerist/internal/cache"
	"github.com/openmuseum/gallerist/internal/dump"
	"github.com/openmuseum/gallerist/internal/index"
	"github.com/openmuseum/gallerist/internal/retrieve"
)

// openEngine wires the index reader, the per-dump cache, and the retrieval
// engine. The returned closer releases both stores.
func openEngine(dumpPath string, workers int) (*retrieve.Engine, func(), error) {
	idx, err := index.OpenReader(dump.IndexPath(dumpPath))
	if err != nil {
		return nil, nil, fmt.Errorf("no index for %s (run 'gallerist index' first): %w", dumpPath, err)
	}
	c, err := cache.Open(dump.CachePath(dumpPath))
	if err != nil {
		_ = idx.Close()
		return nil, nil, err
	}
	eng := &retrieve.Engine{
		DumpPath: dumpPath,
		Index:    idx,
		Cache:    c,
		Workers:  workers,
	}
	closer := func() {
		_ = idx.Close()
		_ = c.Close()
	}
	return eng, closer, nil
}
