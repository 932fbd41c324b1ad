package pipeline

import (
	"context"
	"fmt"

	"github.com/finsight/finrag/internal/chunk"
	"github.com/finsight/finrag/internal/config"
	"github.com/finsight/finrag/internal/index"
)

// Backend builds and restores published indexes. Publish must be atomic from
// the readers' point of view: the store it returns is only handed to queries
// after the whole build succeeded.
type Backend interface {
	// Load restores the previously published index, or index.ErrNotFound
	// when nothing has been published yet.
	Load(ctx context.Context) (index.Store, error)

	// Publish builds a new index from scratch and persists it.
	Publish(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) (index.Store, error)
}

// FlatBackend persists a Flat index as a checksummed file. Publish builds the
// new index on the side and renames it into place, so a crash mid-publish
// leaves the previous file intact.
type FlatBackend struct {
	path  string
	model string
}

// NewFlatBackend stores the index at path, stamped with the embedding model
// name so loads against a different model fail early.
func NewFlatBackend(path, model string) *FlatBackend {
	return &FlatBackend{path: path, model: model}
}

func (b *FlatBackend) Load(_ context.Context) (index.Store, error) {
	return index.Load(b.path, b.model)
}

func (b *FlatBackend) Publish(_ context.Context, chunks []chunk.Chunk, vectors [][]float32) (index.Store, error) {
	f, err := index.Build(chunks, vectors, b.model)
	if err != nil {
		return nil, err
	}
	if err := f.Save(b.path); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return f, nil
}

// QdrantBackend publishes to a remote Qdrant collection. The collection
// rebuild is the persistence step; there is no local file.
type QdrantBackend struct {
	store *index.Qdrant
}

// NewQdrantBackend wraps an already-connected Qdrant store.
func NewQdrantBackend(store *index.Qdrant) *QdrantBackend {
	return &QdrantBackend{store: store}
}

func (b *QdrantBackend) Load(_ context.Context) (index.Store, error) {
	if b.store.Count() == 0 {
		return nil, index.ErrNotFound
	}
	return b.store, nil
}

func (b *QdrantBackend) Publish(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) (index.Store, error) {
	if err := b.store.Replace(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return b.store, nil
}

// NewBackend constructs the backend selected by the configuration.
func NewBackend(cfg config.Config) (Backend, error) {
	switch cfg.IndexBackend {
	case config.BackendFlat:
		return NewFlatBackend(cfg.IndexPath(), cfg.EmbeddingModel), nil
	case config.BackendQdrant:
		store, err := index.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.EmbeddingDimension)
		if err != nil {
			return nil, err
		}
		return NewQdrantBackend(store), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}
