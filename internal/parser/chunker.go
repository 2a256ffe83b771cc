package parser

import (
	"strings"
	"unicode"

	"document-qa/internal/models"
)

const (
	defaultChunkSize    = 1000 // runes
	defaultChunkOverlap = 200  // runes
)

// Chunker splits document text into overlapping windows of runes.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

// NewChunker returns a chunker producing chunks of at most size runes where
// consecutive chunks share overlap runes. Chunks other than the last one are
// never shorter than minSize.
func NewChunker(size, overlap, minSize int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
		overlap = defaultChunkOverlap
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if minSize < 0 {
		minSize = 0
	}
	if minSize > size {
		minSize = size
	}
	return &Chunker{size: size, overlap: overlap, minSize: minSize}
}

// Split chunks a document. A document of at most size runes yields exactly
// one chunk and an empty document yields none.
func (c *Chunker) Split(doc models.Document) []models.Chunk {
	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []models.Chunk
	start, lead := 0, 0
	for {
		end := min(start+c.size, n)
		if end < n {
			end = c.breakPoint(runes, start, end)
		}
		chunks = append(chunks, models.Chunk{
			Source:  doc.Path,
			Title:   doc.Title,
			Type:    doc.Type,
			Index:   len(chunks),
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
			Overlap: lead,
		})
		if end == n {
			return chunks
		}
		start = end - c.overlap
		lead = c.overlap
	}
}

// breakPoint looks for whitespace or a full stop in the last 10% of the
// window and cuts right after it. The chunk keeps more than overlap runes so
// the next window always starts further along.
func (c *Chunker) breakPoint(runes []rune, start, end int) int {
	floor := start + max(c.minSize, c.overlap+1)
	lookBack := c.size / 10
	for i := end - 1; i >= end-lookBack && i >= floor; i-- {
		if r := runes[i]; r == '.' || unicode.IsSpace(r) {
			return i + 1
		}
	}
	return end
}

// Reconstruct reverses Split by dropping the overlapping prefix of every chunk.
func Reconstruct(chunks []models.Chunk) string {
	var content strings.Builder
	for _, chunk := range chunks {
		runes := []rune(chunk.Text)
		content.WriteString(string(runes[min(chunk.Overlap, len(runes)):]))
	}
	return content.String()
}
