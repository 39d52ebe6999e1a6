package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQIDArgs(t *testing.T) {
	qids, err := parseQIDArgs([]string{"Q42", "7", "Q1000000000"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{42, 7, 1_000_000_000}, qids)

	_, err = parseQIDArgs([]string{"Q42", "P18"})
	assert.Error(t, err)

	_, err = parseQIDArgs([]string{"Qx"})
	assert.Error(t, err)
}

func TestDedupeQIDs(t *testing.T) {
	// Repeated arguments collapse to one request each, so the fetch summary
	// counts distinct QIDs rather than over-reporting misses.
	assert.Equal(t, []uint64{42, 7, 9}, dedupeQIDs([]uint64{42, 7, 42, 42, 9, 7}))
	assert.Equal(t, []uint64{1}, dedupeQIDs([]uint64{1, 1, 1}))
	assert.Empty(t, dedupeQIDs(nil))
}
