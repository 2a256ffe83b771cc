package models

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a query arrives while an upload is running.
	ErrBusy = errors.New("system is busy indexing documents, please wait")
	// ErrEmptyStore is returned when querying before anything was uploaded.
	ErrEmptyStore = errors.New("no documents have been uploaded yet")
	// ErrEmbeddingUnsupported is returned by providers without an embedding endpoint.
	ErrEmbeddingUnsupported = errors.New("provider does not offer embeddings")
)

// UnreadableFileError reports a supported file that could not be read or parsed.
// It never aborts a directory scan.
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// EmbeddingServiceError reports an unreachable embedding endpoint or a malformed response.
type EmbeddingServiceError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service (model %s, %d attempt(s)): %v", e.Model, e.Attempts, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// GenerationServiceError reports an unreachable generation endpoint or a malformed response.
type GenerationServiceError struct {
	Model string
	Err   error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service (model %s): %v", e.Model, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigError is a shorthand used by the config and provider packages.
func NewConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}
