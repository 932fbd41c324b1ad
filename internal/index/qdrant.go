package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/finsight/finrag/internal/chunk"
)

// Qdrant is a remote vector-store backend with the same search contract as
// Flat. It exists for deployments where the index should outlive the local
// filesystem; the default backend remains the flat file index.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	count      int
}

// NewQdrant connects to a Qdrant server and verifies it is healthy, retrying
// with exponential backoff before failing fast.
func NewQdrant(host string, port int, collection string, dimension int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	if err := q.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if err := q.refreshCount(context.Background()); err != nil {
		// Collection may not exist yet; created on first Replace.
		q.count = 0
	}

	return q, nil
}

func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Replace drops the collection and rebuilds it from the given chunks and
// vectors. Qdrant has no local snapshot to swap, so the rebuild itself is the
// publish step for this backend.
func (q *Qdrant) Replace(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return ErrEmptyIndex
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != q.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), q.dimension)
		}
	}

	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
				return fmt.Errorf("delete collection: %w", err)
			}
			break
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Batch upserts in groups of 100.
	const batchSize = 100
	for lo := 0; lo < len(chunks); lo += batchSize {
		hi := min(lo+batchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, hi-lo)
		for i := lo; i < hi; i++ {
			c := chunks[i]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunk_id":     c.ID,
					"document_id":  c.DocumentID,
					"text":         c.Text,
					"start_offset": c.StartOffset,
					"end_offset":   c.EndOffset,
					"page_number":  c.PageNumber,
				}),
			})
		}
		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", lo, hi, err)
		}
	}

	if err := q.ensureChunkIDIndex(ctx); err != nil {
		return err
	}

	q.count = len(chunks)
	return nil
}

// ensureChunkIDIndex creates the payload index that chunk-id lookups filter
// on. Without it filtering degrades to a full scan.
func (q *Qdrant) ensureChunkIDIndex(ctx context.Context) error {
	_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "chunk_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create chunk_id index: %w", err)
	}
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search performs cosine similarity search against the collection.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dimension)
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayloadInclude("chunk_id", "document_id"),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			ChunkID:    p.Payload["chunk_id"].GetStringValue(),
			DocumentID: p.Payload["document_id"].GetStringValue(),
			Score:      p.Score,
		})
	}
	// Qdrant does not define an order for equal scores; re-rank so the
	// tie-break matches the Store contract.
	sortResults(results)
	return results, nil
}

// Chunk resolves a chunk id to its stored record.
func (q *Qdrant) Chunk(ctx context.Context, id string) (chunk.Chunk, error) {
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("chunk_id", id)},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("scroll chunk %s: %w", id, err)
	}
	if len(points) == 0 {
		return chunk.Chunk{}, fmt.Errorf("chunk %s not in index", id)
	}

	payload := points[0].Payload
	return chunk.Chunk{
		ID:          payload["chunk_id"].GetStringValue(),
		DocumentID:  payload["document_id"].GetStringValue(),
		Text:        payload["text"].GetStringValue(),
		StartOffset: int(payload["start_offset"].GetIntegerValue()),
		EndOffset:   int(payload["end_offset"].GetIntegerValue()),
		PageNumber:  int(payload["page_number"].GetIntegerValue()),
	}, nil
}

// Count returns the number of chunks in the collection.
func (q *Qdrant) Count() int { return q.count }

// Dimension returns the configured vector dimensionality.
func (q *Qdrant) Dimension() int { return q.dimension }

func (q *Qdrant) refreshCount(ctx context.Context) error {
	collection, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return err
	}
	q.count = int(collection.GetPointsCount())
	return nil
}

// Close closes the underlying client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
