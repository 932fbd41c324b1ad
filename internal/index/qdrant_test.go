//go:build integration

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a Qdrant instance on localhost:6334.
func TestQdrant_ReplaceAndSearch(t *testing.T) {
	q, err := NewQdrant("localhost", 6334, "finrag-test", 2)
	require.NoError(t, err)
	defer q.Close()

	chunks := testChunks(3)
	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}
	ctx := context.Background()

	require.NoError(t, q.Replace(ctx, chunks, vectors))
	assert.Equal(t, 3, q.Count())

	results, err := q.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[0].ID, results[0].ChunkID)
	assert.Equal(t, chunks[1].ID, results[1].ChunkID)

	got, err := q.Chunk(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], got)

	// Overwrite semantics: a second Replace discards the first run entirely.
	require.NoError(t, q.Replace(ctx, chunks[:1], vectors[:1]))
	assert.Equal(t, 1, q.Count())
}

func TestQdrant_ReplaceValidation(t *testing.T) {
	q, err := NewQdrant("localhost", 6334, "finrag-test-validation", 2)
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	assert.ErrorIs(t, q.Replace(ctx, nil, nil), ErrEmptyIndex)
	assert.ErrorIs(t, q.Replace(ctx, testChunks(1), [][]float32{{1, 0, 0}}), ErrDimensionMismatch)
}
