// Package config holds the pipeline configuration: named fields, documented
// defaults, env loading, and one-time validation at construction.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/finsight/finrag/internal/chunk"
	"github.com/finsight/finrag/internal/embedding"
	"github.com/finsight/finrag/internal/retry"
)

// Backend names for Config.IndexBackend.
const (
	BackendFlat   = "flat"
	BackendQdrant = "qdrant"
)

// Config is validated once at pipeline construction and read-only afterwards.
type Config struct {
	// Ingestion
	DataDir          string // Directory scanned for *.pdf
	ChunkSize        int    // Window size in runes
	ChunkOverlap     int    // Overlap between consecutive chunks in runes
	SnapToWhitespace bool   // Snap chunk boundaries to whitespace

	// Retrieval
	DefaultK int // Used when a query does not specify k

	// Models
	OpenAIAPIKey       string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatchSize int
	ChatModel          string

	// Index persistence
	IndexDir     string // Flat backend: directory holding index files
	IndexBackend string // BackendFlat or BackendQdrant

	// Qdrant backend
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// Operation limits
	IngestTimeout time.Duration
	QueryTimeout  time.Duration
	Retry         retry.Policy
}

// Default returns the documented defaults: 1000-rune chunks with 200 overlap
// and k=4 retrieval.
func Default() Config {
	return Config{
		DataDir:            "./data",
		ChunkSize:          chunk.DefaultSize,
		ChunkOverlap:       chunk.DefaultOverlap,
		SnapToWhitespace:   false,
		DefaultK:           4,
		EmbeddingModel:     embedding.DefaultModel,
		EmbeddingDimension: embedding.DefaultDimension,
		EmbeddingBatchSize: embedding.DefaultBatchSize,
		ChatModel:          "gpt-4o-mini",
		IndexDir:           "./.data/index",
		IndexBackend:       BackendFlat,
		QdrantHost:         "localhost",
		QdrantPort:         6334,
		QdrantCollection:   "finrag",
		IngestTimeout:      10 * time.Minute,
		QueryTimeout:       60 * time.Second,
		Retry:              retry.Default(),
	}
}

// FromEnv overlays environment variables onto the defaults.
func FromEnv() Config {
	c := Default()
	c.DataDir = getEnv("FINRAG_DATA_DIR", c.DataDir)
	c.ChunkSize = getEnvInt("FINRAG_CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("FINRAG_CHUNK_OVERLAP", c.ChunkOverlap)
	c.SnapToWhitespace = getEnv("FINRAG_SNAP_TO_WHITESPACE", "false") == "true"
	c.DefaultK = getEnvInt("FINRAG_DEFAULT_K", c.DefaultK)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	c.EmbeddingModel = getEnv("FINRAG_EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDimension = getEnvInt("FINRAG_EMBEDDING_DIMENSION", c.EmbeddingDimension)
	c.EmbeddingBatchSize = getEnvInt("FINRAG_EMBEDDING_BATCH_SIZE", c.EmbeddingBatchSize)
	c.ChatModel = getEnv("FINRAG_CHAT_MODEL", c.ChatModel)
	c.IndexDir = getEnv("FINRAG_INDEX_DIR", c.IndexDir)
	c.IndexBackend = getEnv("FINRAG_INDEX_BACKEND", c.IndexBackend)
	c.QdrantHost = getEnv("QDRANT_HOST", c.QdrantHost)
	c.QdrantPort = getEnvInt("QDRANT_PORT", c.QdrantPort)
	c.QdrantCollection = getEnv("FINRAG_QDRANT_COLLECTION", c.QdrantCollection)
	return c
}

// Validate checks the configuration once, before any component is built.
func (c Config) Validate() error {
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must be >= 0, got %d", c.ChunkOverlap)
	}
	if c.ChunkSize <= c.ChunkOverlap {
		return fmt.Errorf("chunk size must exceed overlap, got size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.DefaultK < 1 {
		return fmt.Errorf("default k must be >= 1, got %d", c.DefaultK)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding model must not be empty")
	}
	if c.EmbeddingDimension < 1 {
		return fmt.Errorf("embedding dimension must be >= 1, got %d", c.EmbeddingDimension)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("chat model must not be empty")
	}
	switch c.IndexBackend {
	case BackendFlat, BackendQdrant:
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}
	return nil
}

// IndexPath derives the flat-index file from the embedding model name, so
// switching models never loads an incompatible index.
func (c Config) IndexPath() string {
	name := strings.ReplaceAll(c.EmbeddingModel, "/", "_") + ".idx"
	return filepath.Join(c.IndexDir, name)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
