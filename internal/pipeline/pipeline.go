// Package pipeline composes chunking, embedding, indexing, retrieval, and
// answer synthesis into the two public operations: Ingest and Query.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finsight/finrag/internal/answer"
	"github.com/finsight/finrag/internal/chunk"
	"github.com/finsight/finrag/internal/config"
	"github.com/finsight/finrag/internal/document"
	"github.com/finsight/finrag/internal/embedding"
	"github.com/finsight/finrag/internal/index"
	"github.com/finsight/finrag/internal/retriever"
)

var (
	// ErrNotReady is returned by Query before any index has been published.
	ErrNotReady = errors.New("index not ready")

	// ErrBusy is returned when an ingest is already in progress.
	ErrBusy = errors.New("ingest already in progress")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// State of the published index.
type State int32

const (
	StateEmpty State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "BUILDING"
	case StateReady:
		return "READY"
	default:
		return "EMPTY"
	}
}

// Status of an ingest run.
type Status string

const (
	StatusReady  Status = "READY"
	StatusFailed Status = "FAILED"
)

// IngestResult reports the outcome of one ingest run.
type IngestResult struct {
	Status    Status
	Documents int
	Chunks    int
	Duration  time.Duration
	Error     string // Empty when Status is READY
}

// published wraps the current store so readers can take it atomically.
type published struct {
	store index.Store
}

// Pipeline owns the index lifecycle. Queries read the currently published
// store; ingest builds a replacement on the side and swaps it in only after
// build and persistence succeed, so readers never observe a torn index.
type Pipeline struct {
	cfg         config.Config
	chunker     *chunk.Chunker
	embedder    embedding.Service
	retriever   *retriever.Retriever
	synthesizer *answer.Synthesizer
	backend     Backend
	logger      *slog.Logger

	ingestMu  sync.Mutex // single-writer discipline for Ingest
	building  atomic.Bool
	published atomic.Pointer[published]
}

// New validates the configuration, wires the components, and restores a
// previously persisted index when one exists.
func New(cfg config.Config, embedder embedding.Service, completer answer.Completer, backend Backend, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := chunk.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.SnapToWhitespace)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		chunker:     chunker,
		embedder:    embedder,
		retriever:   retriever.New(embedder, logger),
		synthesizer: answer.New(completer, logger),
		backend:     backend,
		logger:      logger,
	}

	store, err := backend.Load(context.Background())
	switch {
	case err == nil:
		p.published.Store(&published{store: store})
		logger.Info("Restored index", "chunks", store.Count(), "dimension", store.Dimension())
	case errors.Is(err, index.ErrNotFound):
		logger.Info("No persisted index, starting empty")
	default:
		return nil, fmt.Errorf("load index: %w", err)
	}

	return p, nil
}

// State reports EMPTY before the first successful ingest, BUILDING while the
// first build is in flight, and READY once an index is published. A rebuild
// over a published index stays READY: queries keep the prior index until the
// new one is swapped in.
func (p *Pipeline) State() State {
	if p.published.Load() != nil {
		return StateReady
	}
	if p.building.Load() {
		return StateBuilding
	}
	return StateEmpty
}

// Ingest chunks, embeds, and indexes the documents, then publishes the new
// index. A second concurrent Ingest is rejected with ErrBusy. On any failure
// the previously published index stays untouched and queryable.
func (p *Pipeline) Ingest(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	if !p.ingestMu.TryLock() {
		return &IngestResult{Status: StatusFailed, Error: ErrBusy.Error()}, ErrBusy
	}
	defer p.ingestMu.Unlock()

	p.building.Store(true)
	defer p.building.Store(false)

	if p.cfg.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.IngestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.ingest(ctx, docs)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		p.logger.Error("Ingest failed", "error", err, "duration", result.Duration)
		return result, err
	}

	result.Status = StatusReady
	p.logger.Info("Ingest complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	result := &IngestResult{Documents: len(docs)}

	if len(docs) == 0 {
		return result, fmt.Errorf("%w: no documents to ingest", index.ErrEmptyIndex)
	}

	var chunks []chunk.Chunk
	for _, doc := range docs {
		cs, err := p.chunker.Split(doc)
		if err != nil {
			return result, fmt.Errorf("chunk %s: %w", doc.SourcePath, err)
		}
		chunks = append(chunks, cs...)
	}
	result.Chunks = len(chunks)
	p.logger.Debug("Chunked documents", "documents", len(docs), "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return result, err
	}

	store, err := p.backend.Publish(ctx, chunks, vectors)
	if err != nil {
		return result, err
	}

	// Copy-and-swap: queries pick up the new index from here on; in-flight
	// queries finish against the one they started with.
	p.published.Store(&published{store: store})
	return result, nil
}

// Query retrieves the top-k chunks for the question and synthesizes an
// answer with source attribution. k < 1 falls back to the configured default.
func (p *Pipeline) Query(ctx context.Context, question string, k int) (*answer.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if k < 1 {
		k = p.cfg.DefaultK
	}

	pub := p.published.Load()
	if pub == nil {
		return nil, ErrNotReady
	}

	if p.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.QueryTimeout)
		defer cancel()
	}

	retrieved, err := p.retriever.Retrieve(ctx, pub.store, question, k)
	if err != nil {
		return nil, err
	}

	return p.synthesizer.Synthesize(ctx, question, retrieved)
}

// Classify maps an error from Ingest or Query to a stable kind string for
// the calling layer. Unrecognized errors classify as "internal".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNotReady):
		return "index_not_ready"
	case errors.Is(err, ErrEmptyQuestion):
		return "invalid_question"
	case errors.Is(err, chunk.ErrEmptyDocument):
		return "empty_document"
	case errors.Is(err, embedding.ErrService):
		return "embedding_service"
	case errors.Is(err, answer.ErrGeneration):
		return "generation"
	case errors.Is(err, index.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, index.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, index.ErrNotFound):
		return "index_not_found"
	case errors.Is(err, index.ErrCorrupt):
		return "index_corrupt"
	case errors.Is(err, index.ErrModelMismatch):
		return "model_mismatch"
	default:
		return "internal"
	}
}
