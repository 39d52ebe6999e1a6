package dump

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEntities(t *testing.T) {
	line42 := `{"type":"item","id":"Q42","x":1}`
	line43 := `{"type":"item","id":"Q43","x":2}`
	member := []byte(line42 + "\n" + line43 + ",\n")

	results := ExtractEntities(member, []Entry{
		{QID: 42, Offset: 0},
		{QID: 43, Offset: uint64(len(line42) + 1)},
	})
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Equal(t, line42, string(results[0].JSON))

	// Trailing comma stripped.
	require.NoError(t, results[1].Err)
	assert.Equal(t, line43, string(results[1].JSON))
}

func TestExtractEntitiesMalformed(t *testing.T) {
	line := `{"type":"item","id":"Q1"}`
	member := []byte(line + "\ngarbage line\n")

	results := ExtractEntities(member, []Entry{
		{QID: 1, Offset: 0},
		{QID: 2, Offset: uint64(len(line) + 1)}, // points at "garbage line"
		{QID: 3, Offset: 9999},
	})
	require.Len(t, results, 3)

	// A bad slice poisons only its own entry.
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, ErrMalformedLine))
	assert.True(t, errors.Is(results[2].Err, ErrMalformedLine))
	assert.Contains(t, results[2].Err.Error(), "beyond member size")
}

func TestExtractEntitiesNoTrailingNewline(t *testing.T) {
	line := `{"type":"item","id":"Q9"}`
	results := ExtractEntities([]byte(line), []Entry{{QID: 9, Offset: 0}})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, line, string(results[0].JSON))
	assert.True(t, strings.HasSuffix(string(results[0].JSON), "}"))
}

func TestDerivedPaths(t *testing.T) {
	assert.Equal(t, "data/latest-all.index", IndexPath("data/latest-all.json.gz"))
	assert.Equal(t, "data/latest-all.cache", CachePath("data/latest-all.json.gz"))
	// Unknown layout falls back to replacing the last extension.
	assert.Equal(t, "dump.index", IndexPath("dump.gz"))
	assert.Equal(t, "dump.cache", CachePath("dump.gz"))
}
