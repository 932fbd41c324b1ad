package chunk

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/finsight/finrag/internal/document"
)

// ErrEmptyDocument is returned when a document has no text to chunk.
var ErrEmptyDocument = errors.New("document has no text")

const (
	// DefaultSize is the default chunk window in runes.
	DefaultSize = 1000

	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 200
)

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Offsets are rune offsets into the document's RawText.
type Chunk struct {
	ID          string
	DocumentID  string
	Text        string
	StartOffset int
	EndOffset   int // Exclusive; always > StartOffset
	PageNumber  int // 1-based page of StartOffset, 0 when unknown
}

// Chunker splits document text with a sliding window of fixed size and
// overlap. The default hard character cut keeps chunk boundaries
// deterministic; snapping moves a boundary back to the nearest whitespace so
// words are not split.
type Chunker struct {
	size    int
	overlap int
	snap    bool
}

// NewChunker validates the window parameters. size must exceed overlap and
// overlap must be non-negative.
func NewChunker(size, overlap int, snapToWhitespace bool) (*Chunker, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be >= 0, got %d", overlap)
	}
	if size <= overlap {
		return nil, fmt.Errorf("chunk size must exceed overlap, got size=%d overlap=%d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap, snap: snapToWhitespace}, nil
}

// Split slides the window across the document text and returns the chunks in
// offset order. Consecutive chunks overlap by the configured window;
// stripping the overlapped prefix of each chunk and concatenating in order
// reproduces RawText exactly.
func (c *Chunker) Split(doc document.Document) ([]Chunk, error) {
	runes := []rune(doc.RawText)
	n := len(runes)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.SourcePath)
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + c.size
		if end >= n {
			end = n
		} else if c.snap {
			if snapped := snapBack(runes, start, end); snapped > start+c.overlap {
				end = snapped
			}
		}

		chunks = append(chunks, Chunk{
			ID:          fmt.Sprintf("%s#%04d", doc.ID, len(chunks)),
			DocumentID:  doc.ID,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
			PageNumber:  doc.PageAt(start),
		})

		if end == n {
			return chunks, nil
		}
		start = end - c.overlap
	}
}

// snapBack moves end to the rune after the last whitespace before it, so the
// cut never lands inside a word. Falls back to the hard cut when the window
// holds a single unbroken token.
func snapBack(runes []rune, start, end int) int {
	if unicode.IsSpace(runes[end-1]) || unicode.IsSpace(runes[end]) {
		return end
	}
	for i := end - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}
