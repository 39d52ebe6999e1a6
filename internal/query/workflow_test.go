package query

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuseum/gallerist/internal/cache"
	"github.com/openmuseum/gallerist/internal/dump"
	"github.com/openmuseum/gallerist/internal/index"
	"github.com/openmuseum/gallerist/internal/retrieve"
)

func itemLine(qid uint64, label string, claims ...string) string {
	s := fmt.Sprintf(`{"type":"item","id":"Q%d","labels":{"en":{"value":"%s"}}`, qid, label)
	if len(claims) > 0 {
		s += `,"claims":{` + strings.Join(claims, ",") + `}`
	}
	return s + `}`
}

func imageClaim(filename string) string {
	return fmt.Sprintf(`"P18":[{"mainsnak":{"datavalue":{"value":"%s"}}}]`, filename)
}

func quantityClaim(prop, amount string) string {
	return fmt.Sprintf(`"%s":[{"mainsnak":{"datavalue":{"value":{"amount":"%s","unit":"http://www.wikidata.org/entity/Q174728"}}}}]`,
		prop, amount)
}

func refClaim(prop string, qid uint64) string {
	return fmt.Sprintf(`"%s":[{"mainsnak":{"datavalue":{"value":{"entity-type":"item","numeric-id":%d,"id":"Q%d"}}}}]`,
		prop, qid, qid)
}

// galleryFixture indexes a small dump with two paintings, one imaged item
// without dimensions, one bare item, and a member of dependency entities.
func galleryFixture(t *testing.T) *retrieve.Engine {
	t.Helper()

	primaries := strings.Join([]string{
		itemLine(10, "The Night Watch",
			imageClaim("Night Watch.jpg"),
			quantityClaim("P2049", "+453.5"),
			quantityClaim("P2048", "+363"),
			refClaim("P170", 100),
			refClaim("P195", 101),
			refClaim("P186", 102)) + ",",
		// Has an image and a creator but no dimensions: dropped by the
		// filter, yet its creator must still become a dependency.
		itemLine(11, "View of Delft",
			imageClaim("View of Delft.jpg"),
			refClaim("P170", 103),
			refClaim("P186", 999)) + ",", // Q999 is not in the dump
		itemLine(12, "human") + ",",
		itemLine(13, "Girl with a Pearl Earring",
			imageClaim("Girl with a Pearl Earring.jpg"),
			quantityClaim("P2049", "+39"),
			quantityClaim("P2048", "+44.5"),
			refClaim("P170", 103)) + ",",
	}, "\n") + "\n"

	deps := strings.Join([]string{
		itemLine(100, "Rembrandt") + ",",
		itemLine(101, "Rijksmuseum") + ",",
		itemLine(102, "oil paint") + ",",
		itemLine(103, "Johannes Vermeer") + ",",
	}, "\n") + "\n"

	var buf bytes.Buffer
	for _, m := range []string{"[\n", primaries, deps, "]\n"} {
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(m))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	dumpPath := filepath.Join(t.TempDir(), "dump.json.gz")
	require.NoError(t, os.WriteFile(dumpPath, buf.Bytes(), 0o644))

	_, err := index.Build(dumpPath, dump.IndexPath(dumpPath), index.BuildOptions{Capacity: 2000})
	require.NoError(t, err)

	idx, err := index.OpenReader(dump.IndexPath(dumpPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	c, err := cache.Open(dump.CachePath(dumpPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return &retrieve.Engine{DumpPath: dumpPath, Index: idx, Cache: c}
}

func TestPrepare(t *testing.T) {
	eng := galleryFixture(t)

	desc, stats, err := Prepare(context.Background(), eng, []uint64{10, 11, 12, 13}, PrepareOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Requested)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 2, stats.Skipped)

	assert.Equal(t, eng.DumpPath, desc.Dumpfile)
	assert.ElementsMatch(t, []uint64{10, 13}, desc.QIDs)
	// Q103 comes from filtered-out Q11 as well as Q13; Q999 is referenced
	// but absent from the dump, so it cannot be resolved.
	assert.Equal(t, []uint64{100, 101, 102, 103}, desc.DependencyQIDs)
	assert.Equal(t, 4, stats.Dependencies)

	// Everything the descriptor names is now cache-resident.
	for _, q := range append(append([]uint64{}, desc.QIDs...), desc.DependencyQIDs...) {
		ok, err := eng.Cache.Has(q)
		require.NoError(t, err)
		assert.True(t, ok, "Q%d", q)
	}
}

func TestPrepareAndExecute(t *testing.T) {
	eng := galleryFixture(t)

	desc, _, err := Prepare(context.Background(), eng, []uint64{10, 11, 12, 13}, PrepareOptions{})
	require.NoError(t, err)

	var out bytes.Buffer
	rows, err := Execute(desc, eng.Cache, &out, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ExportHeader, records[0])

	byQID := map[string][]string{records[1][0]: records[1], records[2][0]: records[2]}
	nightWatch := byQID["10"]
	require.NotNil(t, nightWatch)
	assert.Equal(t, []string{"10", "Rembrandt", "The Night Watch", "453.5", "363", "oil paint", "Rijksmuseum", "Night Watch.jpg"}, nightWatch)

	pearl := byQID["13"]
	require.NotNil(t, pearl)
	assert.Equal(t, "Johannes Vermeer", pearl[1])
	assert.Empty(t, pearl[5], "no materials claimed")
	assert.Empty(t, pearl[6], "no collection claimed")
}

func TestExecuteRowLimit(t *testing.T) {
	eng := galleryFixture(t)
	desc, _, err := Prepare(context.Background(), eng, []uint64{10, 13}, PrepareOptions{})
	require.NoError(t, err)

	var out bytes.Buffer
	rows, err := Execute(desc, eng.Cache, &out, ExecuteOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2) // header + one row
}

func TestExecuteRequiresCacheResidency(t *testing.T) {
	eng := galleryFixture(t)

	desc := &Descriptor{Dumpfile: eng.DumpPath, QIDs: []uint64{888}}
	var out bytes.Buffer
	_, err := Execute(desc, eng.Cache, &out, ExecuteOptions{})
	assert.True(t, errors.Is(err, ErrNotPrepared))
	assert.Empty(t, out.String(), "no partial export on contract violation")
}

func TestPrepareDescriptorRoundTripsThroughDisk(t *testing.T) {
	eng := galleryFixture(t)
	desc, _, err := Prepare(context.Background(), eng, []uint64{10}, PrepareOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gallery.query")
	require.NoError(t, desc.Save(path))
	loaded, err := LoadDescriptor(path)
	require.NoError(t, err)

	var out bytes.Buffer
	rows, err := Execute(loaded, eng.Cache, &out, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}
