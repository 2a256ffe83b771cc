// Package vectorstore selects the configured vector store backend.
package vectorstore

import (
	"context"
	"fmt"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/models"
	"document-qa/internal/qdrantdb"
)

// Store persists index entries and answers nearest-neighbour queries.
// Query returns at most topK entries ordered by ascending distance; equal
// distances keep first-insertion order. DeleteSource removes the entries of
// one file whose chunk index is at least from.
type Store interface {
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	Query(ctx context.Context, vector []float32, topK int) ([]models.ScoredEntry, error)
	DeleteSource(ctx context.Context, source string, from int) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Snapshotter is implemented by stores that can be saved to and restored
// from a single file.
type Snapshotter interface {
	Export(ctx context.Context, path string) error
	Import(ctx context.Context, path string) error
}

var (
	_ Store       = (*chromemdb.VectorDBManager)(nil)
	_ Snapshotter = (*chromemdb.VectorDBManager)(nil)
	_ Store       = (*db.Store)(nil)
	_ Store       = (*qdrantdb.Store)(nil)
)

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "chromem", "":
		s, err = chromemdb.NewVectorDBManager(cfg.Path, cfg.Name, cfg.Compress, cfg.EncryptionKey)
	case "pgvector":
		s, err = db.Open(ctx, cfg.DSN, cfg.Name, cfg.Debug)
	case "qdrant":
		s, err = qdrantdb.Open(ctx, qdrantdb.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantTLS,
			Collection: cfg.Name,
		})
	default:
		return nil, models.NewConfigError("store.backend", "unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return s, nil
}

// AsSnapshotter reports whether s supports export and import.
func AsSnapshotter(s Store) (Snapshotter, error) {
	snap, ok := s.(Snapshotter)
	if !ok {
		return nil, fmt.Errorf("store %T does not support snapshots", s)
	}
	return snap, nil
}
