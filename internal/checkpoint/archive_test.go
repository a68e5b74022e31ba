package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcore/rollup/internal/checkpoint"
	"github.com/streamcore/rollup/internal/trace"
)

func sampleEntries(n int) []trace.Entry[string, int64, int] {
	entries := make([]trace.Entry[string, int64, int], 0, n)

	for i := range n {
		entries = append(entries, trace.Entry[string, int64, int]{
			Key:    "a",
			Val:    trace.Tuple[int64, int]{TS: int64(i), Payload: i * 2},
			Weight: 1,
		})
	}

	return entries
}

func TestArchive_SpillBelowThreshold_DoesNotFlush(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := checkpoint.NewArchive[string, int64, int](dir, "in", 10)

	require.NoError(t, a.Spill(sampleEntries(3)))
	assert.Equal(t, 0, a.ChunkCount())
}

func TestArchive_SpillAtThreshold_Flushes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := checkpoint.NewArchive[string, int64, int](dir, "in", 3)

	require.NoError(t, a.Spill(sampleEntries(3)))
	assert.Equal(t, 1, a.ChunkCount())

	entries, err := a.Inspect()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestArchive_FlushForcesPendingToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := checkpoint.NewArchive[string, int64, int](dir, "in", 100)

	require.NoError(t, a.Spill(sampleEntries(2)))
	assert.Equal(t, 0, a.ChunkCount())

	require.NoError(t, a.Flush())
	assert.Equal(t, 1, a.ChunkCount())
}

func TestArchive_SpillEmptyIsNoop(t *testing.T) {
	t.Parallel()

	a := checkpoint.NewArchive[string, int64, int]("", "in", 1)

	require.NoError(t, a.Spill(nil))
	assert.Equal(t, 0, a.ChunkCount())
	assert.Empty(t, a.Dir())
}

func TestArchive_InspectRoundTripsAcrossMultipleChunks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := checkpoint.NewArchive[string, int64, int](dir, "in", 2)

	require.NoError(t, a.Spill(sampleEntries(2)))
	require.NoError(t, a.Spill(sampleEntries(2)))
	require.NoError(t, a.Flush())

	entries, err := a.Inspect()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for i, e := range entries {
		assert.Equal(t, int64(i%2), e.Val.TS)
		assert.Equal(t, (i%2)*2, e.Val.Payload)
	}
}

func TestArchive_LazilyCreatesTempDirWhenUnconfigured(t *testing.T) {
	t.Parallel()

	a := checkpoint.NewArchive[string, int64, int]("", "in", 1)

	require.NoError(t, a.Spill(sampleEntries(1)))
	assert.NotEmpty(t, a.Dir())
	assert.Equal(t, "rollup-checkpoint", filepath.Base(a.Dir())[:len("rollup-checkpoint")])
}

func TestArchive_InspectOnUnwrittenArchiveReturnsNil(t *testing.T) {
	t.Parallel()

	a := checkpoint.NewArchive[string, int64, int]("", "in", 1)

	entries, err := a.Inspect()
	require.NoError(t, err)
	assert.Nil(t, entries)
}
