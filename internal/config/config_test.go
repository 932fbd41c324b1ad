package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 4, cfg.DefaultK)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, BackendFlat, cfg.IndexBackend)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap >= size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero k", func(c *Config) { c.DefaultK = 0 }},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"empty chat model", func(c *Config) { c.ChatModel = "" }},
		{"unknown backend", func(c *Config) { c.IndexBackend = "faiss" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIndexPath_DerivedFromModel(t *testing.T) {
	cfg := Default()
	cfg.IndexDir = "/var/finrag"
	cfg.EmbeddingModel = "text-embedding-3-small"
	assert.Equal(t, filepath.Join("/var/finrag", "text-embedding-3-small.idx"), cfg.IndexPath())

	// Slashes in model names must not escape the index directory.
	cfg.EmbeddingModel = "org/some-model"
	assert.Equal(t, filepath.Join("/var/finrag", "org_some-model.idx"), cfg.IndexPath())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("FINRAG_CHUNK_SIZE", "512")
	t.Setenv("FINRAG_DEFAULT_K", "7")
	t.Setenv("FINRAG_EMBEDDING_BATCH_SIZE", "64")
	t.Setenv("FINRAG_INDEX_BACKEND", "qdrant")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := FromEnv()
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 7, cfg.DefaultK)
	assert.Equal(t, 64, cfg.EmbeddingBatchSize)
	assert.Equal(t, BackendQdrant, cfg.IndexBackend)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 200, cfg.ChunkOverlap, "unset vars keep defaults")
}
