package parser

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/models"
)

func randomText(r *rand.Rand, n int) string {
	alphabet := []rune("abcdefghij klmnop.\nqrstuvwxyzäöüß日本語 ")
	out := make([]rune, n)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}

func TestSplit_ReconstructsOriginal(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	configs := []struct{ size, overlap, min int }{
		{50, 10, 5},
		{100, 0, 0},
		{64, 63, 0},
		{200, 50, 100},
		{7, 3, 7},
	}
	for _, cfg := range configs {
		c := NewChunker(cfg.size, cfg.overlap, cfg.min)
		for _, n := range []int{0, 1, cfg.size - 1, cfg.size, cfg.size + 1, 3 * cfg.size, 1037} {
			if n < 0 {
				continue
			}
			text := randomText(r, n)
			chunks := c.Split(models.Document{Path: "/x.txt", Text: text})
			assert.Equal(t, text, Reconstruct(chunks), "size=%d overlap=%d n=%d", cfg.size, cfg.overlap, n)
		}
	}
}

func TestSplit_Bounds(t *testing.T) {
	c := NewChunker(100, 20, 40)
	text := randomText(rand.New(rand.NewSource(7)), 2500)
	chunks := c.Split(models.Document{Path: "/doc.md", Type: models.Markdown, Title: "T", Text: text})
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		length := utf8.RuneCountInString(ch.Text)
		assert.LessOrEqual(t, length, 100)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "/doc.md", ch.Source)
		assert.Equal(t, "T", ch.Title)
		assert.Equal(t, models.Markdown, ch.Type)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, length, 40)
		}
		if i == 0 {
			assert.Zero(t, ch.Overlap)
			continue
		}
		// the shared region is exactly the configured overlap
		prev := []rune(chunks[i-1].Text)
		cur := []rune(ch.Text)
		assert.Equal(t, 20, ch.Overlap)
		assert.Equal(t, string(prev[len(prev)-20:]), string(cur[:20]))
		assert.Equal(t, chunks[i-1].End-20, ch.Start)
	}
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	c := NewChunker(1000, 200, 100)
	chunks := c.Split(models.Document{Path: "/a.txt", Text: "  short text  "})
	require.Len(t, chunks, 1)
	assert.Equal(t, "  short text  ", chunks[0].Text)
	assert.Zero(t, chunks[0].Index)
}

func TestSplit_EmptyDocument(t *testing.T) {
	assert.Empty(t, NewChunker(10, 2, 0).Split(models.Document{}))
}

func TestSplit_PrefersWordBreaks(t *testing.T) {
	c := NewChunker(20, 0, 0)
	chunks := c.Split(models.Document{Text: strings.Repeat("abcd ", 10)})
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, " "), "chunk %q should end at a space", chunks[0].Text)
}

func TestNewChunker_ClampsOverlap(t *testing.T) {
	c := NewChunker(10, 25, 0)
	assert.Equal(t, 5, c.overlap)

	c = NewChunker(0, 0, 0)
	assert.Equal(t, defaultChunkSize, c.size)
	assert.Equal(t, defaultChunkOverlap, c.overlap)
}
