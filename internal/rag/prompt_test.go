package rag

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/models"
)

func scored(n int, size int) []models.ScoredEntry {
	out := make([]models.ScoredEntry, n)
	for i := range out {
		out[i] = models.ScoredEntry{
			Entry: models.IndexEntry{
				Text:     strings.Repeat(string(rune('a'+i%26)), size),
				Metadata: models.EntryMetadata{Source: fmt.Sprintf("/docs/%d.txt", i), ChunkIndex: i},
			},
			Distance: float32(i) / 10,
		}
	}
	return out
}

func TestAssemblePrompt_Template(t *testing.T) {
	p := AssemblePrompt("What is up?", scored(2, 5), 0)

	assert.True(t, strings.HasPrefix(p.Text, models.RAGPreamble))
	assert.Contains(t, p.Text, "[1] Source: /docs/0.txt (chunk 0)\naaaaa\n")
	assert.Contains(t, p.Text, "[2] Source: /docs/1.txt (chunk 1)\nbbbbb\n")
	assert.True(t, strings.HasSuffix(p.Text, "Question: What is up?\nAnswer:"))
	assert.Less(t, strings.Index(p.Text, "[1]"), strings.Index(p.Text, "[2]"))
	assert.Len(t, p.Used, 2)
	assert.Zero(t, p.Dropped)
}

func TestAssemblePrompt_Deterministic(t *testing.T) {
	chunks := scored(3, 40)
	assert.Equal(t, AssemblePrompt("q", chunks, 500), AssemblePrompt("q", chunks, 500))
}

func TestAssemblePrompt_DropsLowestRankedFirst(t *testing.T) {
	chunks := scored(5, 100)
	full := AssemblePrompt("question", chunks, 0)
	limit := utf8.RuneCountInString(full.Text) - 50

	p := AssemblePrompt("question", chunks, limit)
	assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), limit)
	assert.Equal(t, 1, p.Dropped)
	require.Len(t, p.Used, 4)
	assert.Contains(t, p.Text, "/docs/3.txt")
	assert.NotContains(t, p.Text, "/docs/4.txt")
}

func TestAssemblePrompt_NeverExceedsLimit(t *testing.T) {
	chunks := scored(6, 300)
	question := strings.Repeat("why ", 200)
	for _, limit := range []int{1, 10, 50, 200, 400, 1000, 2500} {
		p := AssemblePrompt(question, chunks, limit)
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), limit, "limit %d", limit)
		assert.Equal(t, len(chunks), len(p.Used)+p.Dropped)
	}
}

func TestAssemblePrompt_TruncatesQuestionLast(t *testing.T) {
	bare := AssemblePrompt("", nil, 0)
	limit := utf8.RuneCountInString(bare.Text) + 10

	p := AssemblePrompt(strings.Repeat("é", 100), scored(2, 50), limit)
	assert.Equal(t, 2, p.Dropped)
	assert.Equal(t, limit, utf8.RuneCountInString(p.Text))
	assert.Contains(t, p.Text, "Question: "+strings.Repeat("é", 10)+"\nAnswer:")
}
