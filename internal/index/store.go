package index

import (
	"context"
	"sort"

	"github.com/finsight/finrag/internal/chunk"
)

// Result is one similarity search hit.
type Result struct {
	ChunkID    string
	DocumentID string
	Score      float32
}

// sortResults orders hits by similarity descending, ties broken by lowest
// chunk id. Every Store implementation ranks through this so results are
// deterministic regardless of backend.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// Store is the read side of a published vector index. Search never mutates
// the store, so concurrent searches against one Store are safe.
type Store interface {
	// Search returns at most k results ordered by similarity descending,
	// ties broken by lowest chunk id.
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)

	// Chunk resolves a search hit back to the full chunk record.
	Chunk(ctx context.Context, id string) (chunk.Chunk, error)

	// Count reports how many chunks the store holds.
	Count() int

	// Dimension is the vector dimensionality the store was built with.
	Dimension() int
}
