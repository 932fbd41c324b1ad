package index

import (
	"context"
	"fmt"
	"math"

	"github.com/finsight/finrag/internal/chunk"
)

// Flat is an exhaustive in-memory vector index. All vectors are
// unit-normalized at build time and queries are normalized at search time,
// so the inner product is cosine similarity and scores are comparable across
// queries. A Flat index is immutable once built; Search is a pure read.
type Flat struct {
	model     string
	dimension int
	vectors   [][]float32 // unit-normalized, row i belongs to chunks[i]
	chunks    []chunk.Chunk
	byID      map[string]int
}

// Build constructs a Flat index from chunks and their vectors. chunks and
// vectors must correspond 1:1 and in order.
func Build(chunks []chunk.Chunk, vectors [][]float32, model string) (*Flat, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
	}

	f := &Flat{
		model:     model,
		dimension: dimension,
		vectors:   make([][]float32, len(vectors)),
		chunks:    make([]chunk.Chunk, len(chunks)),
		byID:      make(map[string]int, len(chunks)),
	}
	copy(f.chunks, chunks)

	for i, vec := range vectors {
		if len(vec) != dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), dimension)
		}
		f.vectors[i] = normalize(vec)
		f.byID[chunks[i].ID] = i
	}

	return f, nil
}

// Model returns the embedding model name the index was built with.
func (f *Flat) Model() string { return f.model }

// Dimension returns the vector dimensionality of the index.
func (f *Flat) Dimension() int { return f.dimension }

// Count returns the number of indexed chunks.
func (f *Flat) Count() int { return len(f.chunks) }

// Search scores every stored vector against the query and returns the top k,
// highest similarity first. Ties are broken by lowest chunk id so results are
// deterministic. Returns fewer than k results when the index is smaller.
func (f *Flat) Search(_ context.Context, vector []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(vector) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), f.dimension)
	}

	query := normalize(vector)
	results := make([]Result, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = Result{
			ChunkID:    f.chunks[i].ID,
			DocumentID: f.chunks[i].DocumentID,
			Score:      dot(query, vec),
		}
	}

	sortResults(results)

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Chunk returns the full chunk record for a search hit.
func (f *Flat) Chunk(_ context.Context, id string) (chunk.Chunk, error) {
	i, ok := f.byID[id]
	if !ok {
		return chunk.Chunk{}, fmt.Errorf("chunk %s not in index", id)
	}
	return f.chunks[i], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// normalize returns a unit-length copy of v. Zero vectors are returned
// as-is (a copy) since they cannot be normalized.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1 / math.Sqrt(sq))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
