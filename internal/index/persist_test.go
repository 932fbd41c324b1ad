package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	chunks := testChunks(5)
	vectors := [][]float32{
		{1, 0}, {0.8, 0.6}, {0, 1}, {-1, 0}, {0.6, 0.8},
	}
	f, err := Build(chunks, vectors, "text-embedding-3-small")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index", "test.idx")
	require.NoError(t, f.Save(path))

	loaded, err := Load(path, "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, f.Count(), loaded.Count())
	assert.Equal(t, f.Dimension(), loaded.Dimension())
	assert.Equal(t, f.Model(), loaded.Model())

	// The restored index must answer searches identically.
	query := []float32{0.9, 0.1}
	want, err := f.Search(context.Background(), query, 5)
	require.NoError(t, err)
	got, err := loaded.Search(context.Background(), query, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// And resolve chunks identically.
	for _, c := range chunks {
		a, err := f.Chunk(context.Background(), c.ID)
		require.NoError(t, err)
		b, err := loaded.Chunk(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.idx"), "m")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_ChecksumMismatch(t *testing.T) {
	f, err := Build(testChunks(2), [][]float32{{1, 0}, {0, 1}}, "m")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.idx")
	require.NoError(t, f.Save(path))

	// Flip a byte in the payload.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(path, "m")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")
	require.NoError(t, os.WriteFile(path, []byte("not an index file"), 0o644))

	_, err := Load(path, "m")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_ModelMismatch(t *testing.T) {
	f, err := Build(testChunks(2), [][]float32{{1, 0}, {0, 1}}, "text-embedding-3-small")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.idx")
	require.NoError(t, f.Save(path))

	_, err = Load(path, "text-embedding-3-large")
	assert.ErrorIs(t, err, ErrModelMismatch)

	// Empty model skips the check.
	_, err = Load(path, "")
	assert.NoError(t, err)
}

func TestSave_OverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")

	first, err := Build(testChunks(2), [][]float32{{1, 0}, {0, 1}}, "m")
	require.NoError(t, err)
	require.NoError(t, first.Save(path))

	second, err := Build(testChunks(4), [][]float32{{1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}}, "m")
	require.NoError(t, err)
	require.NoError(t, second.Save(path))

	loaded, err := Load(path, "m")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Count())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
