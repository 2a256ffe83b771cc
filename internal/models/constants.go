package models

const (
	ThinkTag        = `(?s)<think>.*?</think>`
	NoResponse      = "No response from the model."
	ChunkSeparator  = "\n\n"
	DefaultEndpoint = "http://127.0.0.1:11434"
)

var (
	RAGPreamble = `You answer questions based on the provided knowledge.
Use only the numbered context passages below. If they do not contain the answer, say that you don't know.`

	ChatPromptTemplate = `You are a helpful assistant. Answer questions clearly and concisely.

%s`
)
