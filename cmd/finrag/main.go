// Package main provides the finrag CLI: PDF ingestion and retrieval-augmented
// question answering over financial documents.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/finsight/finrag/internal/answer"
	"github.com/finsight/finrag/internal/config"
	"github.com/finsight/finrag/internal/document"
	"github.com/finsight/finrag/internal/embedding"
	"github.com/finsight/finrag/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Financial document question answering",
	Long: `finrag ingests financial PDF documents into a vector index and answers
natural-language questions against it with source attribution.

Environment variables:
  OPENAI_API_KEY          OpenAI API key (required)
  FINRAG_DATA_DIR         PDF directory for ingest (default: ./data)
  FINRAG_INDEX_DIR        Flat index directory (default: ./.data/index)
  FINRAG_INDEX_BACKEND    "flat" or "qdrant" (default: flat)
  FINRAG_CHUNK_SIZE       Chunk window in characters (default: 1000)
  FINRAG_CHUNK_OVERLAP    Chunk overlap in characters (default: 200)
  FINRAG_DEFAULT_K        Default retrieval depth (default: 4)
  FINRAG_EMBEDDING_MODEL  Embedding model (default: text-embedding-3-small)
  FINRAG_EMBEDDING_BATCH_SIZE  Texts per embedding request (default: 500)
  FINRAG_CHAT_MODEL       Chat model (default: gpt-4o-mini)
  QDRANT_HOST/QDRANT_PORT Qdrant backend address`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the index from a directory of PDFs",
	Long: `Extracts text from every PDF in the data directory, chunks and embeds it,
and publishes a new index. The previous index, if any, is replaced only after
the new build succeeds.`,
	RunE: runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var (
	flagDataDir string
	flagK       int
	flagJSON    bool
)

func init() {
	ingestCmd.Flags().StringVar(&flagDataDir, "data", "", "PDF directory (overrides FINRAG_DATA_DIR)")
	queryCmd.Flags().IntVarP(&flagK, "top-k", "k", 0, "number of chunks to retrieve (0 = configured default)")
	queryCmd.Flags().BoolVar(&flagJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPipeline() (*pipeline.Pipeline, config.Config, error) {
	cfg := config.FromEnv()
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return nil, cfg, err
	}
	embedder := embedding.NewEmbedder(client, embedding.Config{
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		BatchSize: cfg.EmbeddingBatchSize,
		Policy:    cfg.Retry,
	})
	completer := answer.NewOpenAICompleter(client.Client(), cfg.ChatModel, cfg.Retry)

	backend, err := pipeline.NewBackend(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("create index backend: %w", err)
	}

	p, err := pipeline.New(cfg, embedder, completer, backend, slog.Default())
	return p, cfg, err
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()

	p, cfg, err := buildPipeline()
	if err != nil {
		return err
	}

	loader := document.NewLoader(slog.Default())
	docs, err := loader.LoadDir(cfg.DataDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no PDF files found in %s", cfg.DataDir)
	}

	result, err := p.Ingest(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("ingest failed (%s): %w", pipeline.Classify(err), err)
	}

	fmt.Println("Ingest complete!")
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks:    %d\n", result.Chunks)
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	p, _, err := buildPipeline()
	if err != nil {
		return err
	}

	ans, err := p.Query(cmd.Context(), args[0], flagK)
	if err != nil {
		return fmt.Errorf("query failed (%s): %w", pipeline.Classify(err), err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range ans.Sources {
			fmt.Printf("  - %s (doc %s", src.ChunkID, src.DocumentID)
			if src.PageNumber > 0 {
				fmt.Printf(", page %d", src.PageNumber)
			}
			fmt.Printf(", score %.4f)\n", src.Score)
		}
	}
	return nil
}
