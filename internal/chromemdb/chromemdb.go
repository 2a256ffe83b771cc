package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// metadata keys stored next to every document
const (
	keySource     = "source"
	keyChunkIndex = "chunk_index"
	keyTitle      = "title"
	keyDocType    = "doc_type"
	keySeq        = "seq"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	mu            sync.Mutex
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	dbPath        string
	compress      bool
	encryptionKey string
	lastSeq       int64
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath and
// its collection. An empty dbPath keeps everything in memory.
func NewVectorDBManager(dbPath, collectionName string, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		name:          collectionName,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}
	if _, err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	log.Debug().Str("path", dbPath).Str("collection", collectionName).Int("entries", m.collection.Count()).Msg("Opened chromem store")
	return m, nil
}

func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds entries, replacing those with the same id. A replaced entry
// keeps its original insertion sequence.
func (m *VectorDBManager) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		var seq string
		if existing, err := m.collection.GetByID(ctx, e.ID); err == nil {
			if s, ok := existing.Metadata[keySeq]; ok {
				seq = s
			}
		}
		if seq == "" {
			seq = strconv.FormatInt(m.nextSeq(), 10)
		}
		docs = append(docs, chromem.Document{
			ID:      e.ID,
			Content: e.Text,
			Metadata: map[string]string{
				keySource:     e.Metadata.Source,
				keyChunkIndex: strconv.Itoa(e.Metadata.ChunkIndex),
				keyTitle:      e.Metadata.Title,
				keyDocType:    string(e.Metadata.DocType),
				keySeq:        seq,
			},
			Embedding: e.Vector,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// nextSeq is time based so sequences stay ordered across reopens of a
// persistent store, and strictly increasing within one process.
func (m *VectorDBManager) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= m.lastSeq {
		seq = m.lastSeq + 1
	}
	m.lastSeq = seq
	return seq
}

// Query returns at most topK entries ordered by ascending cosine distance.
// Equal distances keep insertion order. chromem picks freely among equal
// similarities, so every entry is ranked before the cut.
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, topK int) ([]models.ScoredEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.collection.Count()
	if topK <= 0 || total == 0 {
		return nil, nil
	}
	results, err := m.collection.QueryEmbedding(ctx, vector, total, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	type ranked struct {
		entry models.ScoredEntry
		seq   int64
	}
	hits := make([]ranked, 0, len(results))
	for _, r := range results {
		seq, _ := strconv.ParseInt(r.Metadata[keySeq], 10, 64)
		hits = append(hits, ranked{entry: toScored(r), seq: seq})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].entry.Distance != hits[j].entry.Distance {
			return hits[i].entry.Distance < hits[j].entry.Distance
		}
		return hits[i].seq < hits[j].seq
	})

	hits = hits[:min(topK, len(hits))]

	out := make([]models.ScoredEntry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out, nil
}

func toScored(r chromem.Result) models.ScoredEntry {
	idx, _ := strconv.Atoi(r.Metadata[keyChunkIndex])
	return models.ScoredEntry{
		Entry: models.IndexEntry{
			ID:     r.ID,
			Vector: r.Embedding,
			Text:   r.Content,
			Metadata: models.EntryMetadata{
				Source:     r.Metadata[keySource],
				ChunkIndex: idx,
				Title:      r.Metadata[keyTitle],
				DocType:    models.DocType(r.Metadata[keyDocType]),
			},
		},
		Distance: 1 - r.Similarity,
	}
}

// DeleteSource removes the entries of one file whose chunk index is at least
// from; from 0 drops the whole file.
func (m *VectorDBManager) DeleteSource(ctx context.Context, source string, from int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if from <= 0 {
		if err := m.collection.Delete(ctx, map[string]string{keySource: source}, nil); err != nil {
			return fmt.Errorf("failed to delete %s: %w", source, err)
		}
		return nil
	}

	// chunk indexes of a file are contiguous, so the stale ids run from `from`
	// up to the first id that is missing
	var stale []string
	for i := from; ; i++ {
		id := helper.EntryID(source, i)
		if _, err := m.collection.GetByID(ctx, id); err != nil {
			break
		}
		stale = append(stale, id)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, nil, nil, stale...); err != nil {
		return fmt.Errorf("failed to delete stale chunks of %s: %w", source, err)
	}
	return nil
}

func (m *VectorDBManager) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collection.Count(), nil
}

// Clear drops the collection and starts an empty one
func (m *VectorDBManager) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}

// Export writes the collection to a single snapshot file, encrypted when an
// encryption key is configured.
func (m *VectorDBManager) Export(_ context.Context, path string) error {
	if path == "" {
		path = m.defaultSnapshotPath()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Debug().Str("collection", m.name).Str("file", path).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in a snapshot file
func (m *VectorDBManager) Import(_ context.Context, path string) error {
	if path == "" {
		path = m.defaultSnapshotPath()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Debug().Str("collection", m.name).Str("file", path).Msg("Importing collection")
	if err := m.db.ImportFromFile(path, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.name, nil)
	if c == nil {
		return errors.New("snapshot does not contain collection " + m.name)
	}
	m.collection = c
	return nil
}

// defaultSnapshotPath sits next to the store directory, not inside it.
func (m *VectorDBManager) defaultSnapshotPath() string {
	dir := "."
	if m.dbPath != "" {
		dir = filepath.Dir(filepath.Clean(m.dbPath))
	}
	return filepath.Join(dir, m.name+".chromem")
}

func (m *VectorDBManager) Close() error { return nil }
