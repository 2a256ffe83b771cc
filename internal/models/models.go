package models

import "strings"

// DocType is the detected format of a loaded file
type DocType string

const (
	PDF      DocType = "pdf"
	Markdown DocType = "markdown"
	Text     DocType = "text"
)

// DocTypeFromExt maps a lower-cased file extension to a DocType.
// The second return value is false for unsupported extensions.
func DocTypeFromExt(ext string) (DocType, bool) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return PDF, true
	case ".md":
		return Markdown, true
	case ".txt":
		return Text, true
	default:
		return "", false
	}
}

// Document represents a loaded file with its extracted text
type Document struct {
	Path  string
	Type  DocType
	Title string
	Text  string
	Pages int
}

// Chunk represents a span of a document's text.
// Start and End are rune offsets; Overlap is the number of leading runes
// shared with the previous chunk of the same document.
type Chunk struct {
	Source  string
	Title   string
	Type    DocType
	Index   int
	Text    string
	Start   int
	End     int
	Overlap int
}

// EntryMetadata is stored next to every vector
type EntryMetadata struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title,omitempty"`
	DocType    DocType `json:"doc_type"`
}

// IndexEntry is the persisted record of one embedded chunk
type IndexEntry struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"-"`
	Text     string        `json:"text"`
	Metadata EntryMetadata `json:"metadata"`
}

// ScoredEntry is a query hit; Distance is cosine distance (lower is closer)
type ScoredEntry struct {
	Entry    IndexEntry `json:"entry"`
	Distance float32    `json:"distance"`
}

type Query struct {
	Text        string
	TopK        int
	Model       string
	WithSources bool
}

// Source identifies a chunk used to ground an answer
type Source struct {
	Path       string  `json:"path"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float32 `json:"distance"`
	Text       string  `json:"text,omitempty"`
}

// Answer is returned to the presentation layer
type Answer struct {
	Query   string   `json:"query"`
	Model   string   `json:"model"`
	Text    string   `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
	Dropped int      `json:"dropped,omitempty"`
}
