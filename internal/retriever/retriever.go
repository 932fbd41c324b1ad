// Package retriever turns a natural-language question into the top-k most
// relevant chunks of the published index.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finsight/finrag/internal/chunk"
	"github.com/finsight/finrag/internal/embedding"
	"github.com/finsight/finrag/internal/index"
)

// Scored is a retrieved chunk with its similarity score.
type Scored struct {
	Chunk chunk.Chunk
	Score float32
}

// Retriever embeds questions and resolves index hits to full chunk records.
// It holds no index state; the store for the current query is passed in by
// the pipeline.
type Retriever struct {
	embedder embedding.Service
	logger   *slog.Logger
}

// New creates a Retriever. A nil logger falls back to slog.Default.
func New(embedder embedding.Service, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, logger: logger}
}

// Retrieve returns up to k chunks relevant to the question, best first.
// When k exceeds the number of stored chunks, every stored chunk is returned.
func (r *Retriever) Retrieve(ctx context.Context, store index.Store, question string, k int) ([]Scored, error) {
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	r.logger.Debug("Retrieved chunks", "requested", k, "returned", len(results))

	scored := make([]Scored, 0, len(results))
	for _, res := range results {
		c, err := store.Chunk(ctx, res.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("resolve chunk %s: %w", res.ChunkID, err)
		}
		scored = append(scored, Scored{Chunk: c, Score: res.Score})
	}
	return scored, nil
}
