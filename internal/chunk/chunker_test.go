package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finrag/internal/document"
)

func doc(text string) document.Document {
	return document.Document{ID: "doc-1", SourcePath: "test.pdf", RawText: text}
}

func TestNewChunker_Validation(t *testing.T) {
	_, err := NewChunker(10, 10, false)
	assert.Error(t, err, "size equal to overlap must be rejected")

	_, err = NewChunker(10, -1, false)
	assert.Error(t, err, "negative overlap must be rejected")

	_, err = NewChunker(10, 0, false)
	assert.NoError(t, err, "zero overlap is valid")
}

func TestSplit_EmptyDocument(t *testing.T) {
	c, err := NewChunker(10, 2, false)
	require.NoError(t, err)

	_, err = c.Split(doc(""))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSplit_SingleChunk(t *testing.T) {
	c, err := NewChunker(100, 20, false)
	require.NoError(t, err)

	chunks, err := c.Split(doc("short text"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 10, chunks[0].EndOffset)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
}

func TestSplit_OffsetsAndOverlap(t *testing.T) {
	c, err := NewChunker(4, 1, false)
	require.NoError(t, err)

	chunks, err := c.Split(doc("0123456789"))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "0123", chunks[0].Text)
	assert.Equal(t, "3456", chunks[1].Text)
	assert.Equal(t, "6789", chunks[2].Text)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndOffset-1, chunks[i].StartOffset,
			"consecutive chunks must overlap by exactly one rune")
	}
	for _, ch := range chunks {
		assert.Greater(t, ch.EndOffset, ch.StartOffset)
	}
}

// TestSplit_RoundTrip verifies that stripping the overlapped prefix of each
// chunk and concatenating in order reproduces the original text exactly.
func TestSplit_RoundTrip(t *testing.T) {
	texts := []string{
		"Revenue was $10M in Q1 and $12M in Q2.",
		strings.Repeat("abcdefghij", 97),
		"über-ähnliche ünïcode tëxt " + strings.Repeat("λθπ ", 50),
		"x",
	}

	for _, size := range []int{5, 16, 100} {
		for _, overlap := range []int{0, 2, 4} {
			c, err := NewChunker(size, overlap, false)
			require.NoError(t, err)

			for _, text := range texts {
				chunks, err := c.Split(doc(text))
				require.NoError(t, err)

				var sb strings.Builder
				for i, ch := range chunks {
					runes := []rune(ch.Text)
					if i == 0 {
						sb.WriteString(ch.Text)
						continue
					}
					skip := chunks[i-1].EndOffset - ch.StartOffset
					sb.WriteString(string(runes[skip:]))
				}
				assert.Equal(t, text, sb.String(),
					"size=%d overlap=%d text=%q", size, overlap, text)
			}
		}
	}
}

// TestSplit_ChunkCount verifies the boundary-exact count formula
// ceil((L-o)/(c-o)) for the default hard cut.
func TestSplit_ChunkCount(t *testing.T) {
	cases := []struct {
		length, size, overlap int
	}{
		{10, 4, 1},
		{10, 4, 0},
		{100, 10, 3},
		{1000, 100, 20},
		{37, 12, 5},
		{12, 12, 5},
		{13, 12, 5},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("L%d_c%d_o%d", tc.length, tc.size, tc.overlap), func(t *testing.T) {
			c, err := NewChunker(tc.size, tc.overlap, false)
			require.NoError(t, err)

			chunks, err := c.Split(doc(strings.Repeat("a", tc.length)))
			require.NoError(t, err)

			step := tc.size - tc.overlap
			want := (tc.length - tc.overlap + step - 1) / step
			if want < 1 {
				want = 1
			}
			assert.Len(t, chunks, want)
		})
	}
}

func TestSplit_SnapToWhitespace(t *testing.T) {
	c, err := NewChunker(8, 2, true)
	require.NoError(t, err)

	chunks, err := c.Split(doc("hello world foo bar"))
	require.NoError(t, err)

	for i, ch := range chunks[:len(chunks)-1] {
		last := []rune(ch.Text)
		assert.True(t, unicode.IsSpace(last[len(last)-1]),
			"chunk %d should end at whitespace, got %q", i, ch.Text)
	}

	// Coverage still holds under snapping.
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 19, chunks[len(chunks)-1].EndOffset)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset,
			"chunks must not leave gaps")
	}
}

func TestSplit_SnapFallsBackOnUnbrokenToken(t *testing.T) {
	c, err := NewChunker(5, 1, true)
	require.NoError(t, err)

	chunks, err := c.Split(doc("abcdefghijklmno"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcde", chunks[0].Text, "no whitespace to snap to, hard cut applies")
}

func TestSplit_ChunkIDsAreOrderedAndUnique(t *testing.T) {
	c, err := NewChunker(4, 1, false)
	require.NoError(t, err)

	chunks, err := c.Split(doc(strings.Repeat("z", 50)))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, ch := range chunks {
		assert.Equal(t, fmt.Sprintf("doc-1#%04d", i), ch.ID)
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
}

func TestSplit_PageNumbers(t *testing.T) {
	d := document.Document{
		ID:      "doc-1",
		RawText: "page one text\n\npage two text",
		Pages: []document.PageSpan{
			{Number: 1, Start: 0, End: 13},
			{Number: 2, Start: 15, End: 28},
		},
	}

	c, err := NewChunker(100, 0, false)
	require.NoError(t, err)
	chunks, err := c.Split(d)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageNumber)

	c2, err := NewChunker(16, 0, false)
	require.NoError(t, err)
	chunks, err = c2.Split(d)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[1].PageNumber)
}
