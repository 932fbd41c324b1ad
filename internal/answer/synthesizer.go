// Package answer composes an answer to a question from retrieved context
// chunks with a single chat-model call, attributing sources by citation tag.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/finsight/finrag/internal/retriever"
)

// ErrGeneration wraps any chat-model failure that survived the retry policy.
var ErrGeneration = errors.New("answer generation failure")

// InsufficientInfoAnswer is returned when retrieval produced no context.
// The model is never called in that case; fabricating an answer would be
// worse than admitting ignorance.
const InsufficientInfoAnswer = "I don't have enough information to answer that question."

// DefaultExcerptLength bounds the source excerpts included in an Answer.
const DefaultExcerptLength = 200

// Source attributes part of an answer to one retrieved chunk.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	PageNumber int     `json:"page_number,omitempty"`
	Excerpt    string  `json:"excerpt"`
	Score      float32 `json:"score"`
}

// Answer is the result of one query. Not persisted.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Completer is the single-call chat boundary. Implemented by OpenAICompleter;
// tests substitute canned fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer builds the prompt, invokes the model once per query, and maps
// cited tags back to concrete sources.
type Synthesizer struct {
	completer     Completer
	excerptLength int
	logger        *slog.Logger
}

// New creates a Synthesizer. A nil logger falls back to slog.Default.
func New(completer Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		completer:     completer,
		excerptLength: DefaultExcerptLength,
		logger:        logger,
	}
}

// Synthesize answers the question from the retrieved chunks. An empty
// retrieval set yields the insufficient-information answer with no sources
// and no model call.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, retrieved []retriever.Scored) (*Answer, error) {
	if len(retrieved) == 0 {
		return &Answer{Text: InsufficientInfoAnswer, Sources: []Source{}}, nil
	}

	prompt := buildPrompt(question, retrieved)

	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	sources := s.citedSources(text, retrieved)
	if len(sources) == 0 {
		// Citation mapping is best-effort: when the model cites nothing we
		// can recognize, fall back to the full retrieved set in order.
		s.logger.Debug("No recognizable citations, using full retrieved set", "retrieved", len(retrieved))
		sources = s.allSources(retrieved)
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// buildPrompt tags each context passage [S1]..[Sn] and instructs the model to
// answer only from those passages, citing the tags it used.
func buildPrompt(question string, retrieved []retriever.Scored) string {
	var sb strings.Builder
	sb.WriteString("You are a financial document assistant. ")
	sb.WriteString("Use only the numbered context passages below to answer the question.\n")
	sb.WriteString("If the passages do not contain the answer, say \"I don't have enough information.\"\n")
	sb.WriteString("Cite the passages you relied on by their tags, for example [S1].\n\n")
	sb.WriteString("Context:\n")
	for i, r := range retrieved {
		sb.WriteString(fmt.Sprintf("[S%d]", i+1))
		if r.Chunk.PageNumber > 0 {
			sb.WriteString(fmt.Sprintf(" (page %d)", r.Chunk.PageNumber))
		}
		sb.WriteString("\n")
		sb.WriteString(r.Chunk.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

var citationPattern = regexp.MustCompile(`\[S(\d+)\]`)

// citedSources maps [Sn] tags found in the model output back to the
// retrieved chunks, preserving retrieval order and dropping duplicates.
// Tags outside the retrieved range are ignored.
func (s *Synthesizer) citedSources(text string, retrieved []retriever.Scored) []Source {
	cited := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(retrieved) {
			continue
		}
		cited[n-1] = true
	}

	var sources []Source
	for i, r := range retrieved {
		if cited[i] {
			sources = append(sources, s.toSource(r))
		}
	}
	return sources
}

func (s *Synthesizer) allSources(retrieved []retriever.Scored) []Source {
	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		sources[i] = s.toSource(r)
	}
	return sources
}

func (s *Synthesizer) toSource(r retriever.Scored) Source {
	excerpt := r.Chunk.Text
	if runes := []rune(excerpt); len(runes) > s.excerptLength {
		excerpt = string(runes[:s.excerptLength]) + "..."
	}
	return Source{
		ChunkID:    r.Chunk.ID,
		DocumentID: r.Chunk.DocumentID,
		PageNumber: r.Chunk.PageNumber,
		Excerpt:    excerpt,
		Score:      r.Score,
	}
}
