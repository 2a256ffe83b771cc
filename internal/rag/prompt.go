package rag

import (
	"fmt"
	"strings"

	"document-qa/internal/models"
)

// Prompt is an assembled generation prompt together with the chunks that
// made it in.
type Prompt struct {
	Text    string
	Used    []models.ScoredEntry
	Dropped int
}

// AssemblePrompt renders the question and its context chunks, best first.
// The result never exceeds maxChars runes: the lowest-ranked chunks are
// dropped first, then the question is shortened, and finally the prompt is
// cut. A non-positive maxChars disables the limit.
func AssemblePrompt(question string, chunks []models.ScoredEntry, maxChars int) Prompt {
	header := models.RAGPreamble + "\n\nContext:\n"
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("[%d] Source: %s (chunk %d)\n%s\n\n",
			i+1, c.Entry.Metadata.Source, c.Entry.Metadata.ChunkIndex, c.Entry.Text)
	}

	render := func(n int, q string) string {
		var b strings.Builder
		b.WriteString(header)
		for _, block := range blocks[:n] {
			b.WriteString(block)
		}
		b.WriteString(footer(q))
		return b.String()
	}

	used := len(chunks)
	text := render(used, question)
	if maxChars <= 0 {
		return Prompt{Text: text, Used: chunks}
	}
	for used > 0 && runeLen(text) > maxChars {
		used--
		text = render(used, question)
	}

	if runeLen(text) > maxChars {
		room := maxChars - runeLen(header) - runeLen(footer(""))
		text = render(0, truncate(question, max(room, 0)))
	}
	text = truncate(text, maxChars)

	return Prompt{Text: text, Used: chunks[:used], Dropped: len(chunks) - used}
}

func footer(question string) string {
	return "Question: " + question + "\nAnswer:"
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
