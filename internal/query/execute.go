package query

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openmuseum/gallerist/internal/cache"
	"github.com/openmuseum/gallerist/internal/entity"
)

// ErrNotPrepared means a descriptor references a QID missing from the cache.
// Prepare guarantees residency, so a miss here is a contract violation and
// never triggers a fallback fetch from the dump.
var ErrNotPrepared = errors.New("query: descriptor references entity missing from cache")

// ExportHeader is the column layout of the tabular export.
var ExportHeader = []string{"qid", "artist", "title", "width", "height", "materials", "collection", "filename"}

// ExecuteOptions configures the execute phase.
type ExecuteOptions struct {
	// Limit truncates the export after this many rows; 0 exports everything.
	Limit int
}

// Execute replays a prepared descriptor into a CSV export, one row per
// primary QID. Any corruption discovered in cached entities aborts the
// phase; the export never partially succeeds silently.
func Execute(d *Descriptor, c *cache.Cache, w io.Writer, opts ExecuteOptions) (int, error) {
	all := make([]uint64, 0, len(d.QIDs)+len(d.DependencyQIDs))
	all = append(all, d.QIDs...)
	all = append(all, d.DependencyQIDs...)
	_, uncached, err := c.Partition(all)
	if err != nil {
		return 0, err
	}
	if len(uncached) > 0 {
		return 0, fmt.Errorf("Q%d (%d total): %w", uncached[0], len(uncached), ErrNotPrepared)
	}

	labels := make(map[uint64]string, len(d.DependencyQIDs))
	for _, q := range d.DependencyQIDs {
		raw, err := c.Get(q)
		if err != nil {
			return 0, err
		}
		ent, err := entity.Validate(raw, q)
		if err != nil {
			return 0, err
		}
		labels[q] = ent.Label
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("write export header: %w", err)
	}
	rows := 0
	for _, q := range d.QIDs {
		if opts.Limit > 0 && rows >= opts.Limit {
			break
		}
		raw, err := c.Get(q)
		if err != nil {
			return rows, err
		}
		ent, err := entity.Validate(raw, q)
		if err != nil {
			return rows, err
		}
		var materials []string
		for _, m := range ent.Materials {
			if label := labels[m]; label != "" {
				materials = append(materials, label)
			}
		}
		row := []string{
			strconv.FormatUint(q, 10),
			labels[ent.Creator],
			ent.Label,
			formatCM(ent.WidthCM),
			formatCM(ent.HeightCM),
			strings.Join(materials, ", "),
			labels[ent.Collection],
			ent.Image,
		}
		if err := cw.Write(row); err != nil {
			return rows, fmt.Errorf("write export row for Q%d: %w", q, err)
		}
		rows++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flush export: %w", err)
	}
	return rows, nil
}

func formatCM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
