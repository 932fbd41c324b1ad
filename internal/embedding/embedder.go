package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/openai/openai-go"

	"github.com/finsight/finrag/internal/retry"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector dimension for text-embedding-3-small.
	DefaultDimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits. OpenAI accepts up to 2048 texts per batch.
	DefaultBatchSize = 500
)

// Service maps texts to fixed-dimension vectors, preserving input order and
// length. Implemented by Embedder; tests substitute deterministic fakes.
type Service interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Embedder generates embeddings via the OpenAI embeddings API. Requests are
// batched, transient failures are retried per the policy, and results are
// cached by exact text so re-embedding a query is free.
type Embedder struct {
	api       embedAPI
	model     string
	dimension int
	batchSize int
	policy    retry.Policy

	mu    sync.Mutex
	cache map[string][]float32
}

// embedAPI is the provider call boundary, narrowed for testability.
type embedAPI interface {
	createEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Config tunes an Embedder. Zero fields fall back to package defaults.
type Config struct {
	Model     string
	Dimension int
	BatchSize int
	Policy    retry.Policy
}

// NewEmbedder creates an Embedder backed by the given OpenAI client.
func NewEmbedder(client *Client, cfg Config) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Policy == (retry.Policy{}) {
		cfg.Policy = retry.Default()
	}
	return &Embedder{
		api:       &openaiAPI{client: client.Client()},
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		policy:    cfg.Policy,
		cache:     make(map[string][]float32),
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Dimension returns the embedding vector dimension.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per input text, in input order. Texts already in
// the cache are served locally; the rest go to the provider in batches.
// Batching never changes results versus unbatched calls.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	e.mu.Lock()
	for i, text := range texts {
		if vec, ok := e.cache[text]; ok {
			out[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	e.mu.Unlock()

	for lo := 0; lo < len(missing); lo += e.batchSize {
		hi := min(lo+e.batchSize, len(missing))
		batch := missing[lo:hi]

		vectors, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %w", ErrService, lo, hi, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrService, len(vectors), len(batch))
		}

		e.mu.Lock()
		for j, vec := range vectors {
			out[missingIdx[lo+j]] = vec
			e.cache[batch[j]] = vec
		}
		e.mu.Unlock()
	}

	return out, nil
}

// embedBatchWithRetry calls the provider for one batch, retrying transient
// failures (rate limits, 5xx, network timeouts) with exponential backoff.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		result, err := e.api.createEmbeddings(ctx, e.model, texts)
		if err != nil {
			if isTransient(err) {
				return err // Will retry with backoff
			}
			return retry.Permanent(err)
		}
		vectors = result
		return nil
	}

	err := e.policy.Do(ctx, operation)
	return vectors, err
}

// isTransient reports whether a provider error is worth retrying:
// rate limiting (429), server-side failures (5xx), and network timeouts.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// openaiAPI adapts the OpenAI SDK to the embedAPI boundary.
type openaiAPI struct {
	client *openai.Client
}

func (a *openaiAPI) createEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = toFloat32(data.Embedding)
	}
	return vectors, nil
}

// toFloat32 converts the API's float64 vectors to the float32 the index
// stores.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
