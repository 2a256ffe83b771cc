package qdrantdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// ErrUnreachable is returned when the health check keeps failing at open.
var ErrUnreachable = errors.New("qdrant is unreachable")

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// HealthTimeout bounds the startup health check, 30s when zero.
	HealthTimeout time.Duration
}

// Store keeps vectors in one qdrant collection, created on first upsert
// with the size of the first vector.
type Store struct {
	client     *qdrant.Client
	collection string

	mu     sync.Mutex
	exists bool
	seq    int64
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection}
	if err := s.healthCheckWithRetry(ctx, cfg.HealthTimeout); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	exists, err := client.CollectionExists(ctx, s.collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	s.exists = exists
	log.Debug().Str("host", cfg.Host).Int("port", cfg.Port).Str("collection", s.collection).Msg("Opened qdrant store")
	return s, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context, limit time.Duration) error {
	if limit <= 0 {
		limit = 30 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = limit

	return backoff.Retry(func() error {
		res, err := s.client.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if res == nil || res.GetTitle() == "" {
			return errors.New("health check returned invalid response")
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

func (s *Store) ensureCollection(ctx context.Context, size int) error {
	if s.exists {
		return nil
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "source",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for source: %w", err)
	}
	s.exists = true
	return nil
}

// Upsert writes entries as points keyed by entry id. Replaced points keep
// their original seq.
func (s *Store) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCollection(ctx, len(entries[0].Vector)); err != nil {
		return err
	}
	seqs, err := s.existingSeqs(ctx, entries)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		seq, ok := seqs[e.ID]
		if !ok {
			seq = s.nextSeq()
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":     e.Text,
				"source":      e.Metadata.Source,
				"chunk_index": e.Metadata.ChunkIndex,
				"title":       e.Metadata.Title,
				"doc_type":    string(e.Metadata.DocType),
				"seq":         seq,
			}),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *Store) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= s.seq {
		seq = s.seq + 1
	}
	s.seq = seq
	return seq
}

func (s *Store) existingSeqs(ctx context.Context, entries []models.IndexEntry) (map[string]int64, error) {
	ids := make([]*qdrant.PointId, len(entries))
	for i, e := range entries {
		ids[i] = qdrant.NewIDUUID(e.ID)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude("seq"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get points: %w", err)
	}
	seqs := make(map[string]int64, len(points))
	for _, p := range points {
		seqs[p.GetId().GetUuid()] = p.GetPayload()["seq"].GetIntegerValue()
	}
	return seqs, nil
}

// Query returns at most topK hits by ascending cosine distance. Equal
// distances keep insertion order. qdrant picks freely among equal scores,
// so when the limit is reached every point tied with the last one is
// fetched before the cut.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.ScoredEntry, error) {
	s.mu.Lock()
	exists := s.exists
	s.mu.Unlock()
	if topK <= 0 || !exists {
		return nil, nil
	}

	results, err := s.search(ctx, vector, uint64(topK), nil)
	if err != nil {
		return nil, err
	}
	if len(results) == topK {
		total, err := s.Count(ctx)
		if err != nil {
			return nil, err
		}
		if total > topK {
			floor := math.Nextafter32(results[topK-1].GetScore(), float32(math.Inf(-1)))
			results, err = s.search(ctx, vector, uint64(total), &floor)
			if err != nil {
				return nil, err
			}
		}
	}

	type ranked struct {
		entry models.ScoredEntry
		seq   int64
	}
	hits := make([]ranked, 0, len(results))
	for _, r := range results {
		payload := r.GetPayload()
		var vec []float32
		if v := r.GetVectors().GetVector(); v != nil {
			vec = v.GetData()
		}
		hits = append(hits, ranked{
			entry: models.ScoredEntry{
				Entry: models.IndexEntry{
					ID:     r.GetId().GetUuid(),
					Vector: vec,
					Text:   payload["content"].GetStringValue(),
					Metadata: models.EntryMetadata{
						Source:     payload["source"].GetStringValue(),
						ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
						Title:      payload["title"].GetStringValue(),
						DocType:    models.DocType(payload["doc_type"].GetStringValue()),
					},
				},
				Distance: 1 - r.GetScore(),
			},
			seq: payload["seq"].GetIntegerValue(),
		})
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

func (s *Store) search(ctx context.Context, vector []float32, limit uint64, threshold *float32) ([]*qdrant.ScoredPoint, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		ScoreThreshold: threshold,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	return results, nil
}

// DeleteSource removes the points of one file whose chunk index is at least
// from; from 0 drops the whole file.
func (s *Store) DeleteSource(ctx context.Context, source string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return nil
	}
	must := []*qdrant.Condition{qdrant.NewMatch("source", source)}
	if from > 0 {
		must = append(must, qdrant.NewRange("chunk_index", &qdrant.Range{Gte: qdrant.PtrOf(float64(from))}))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{Must: must}),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", source, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Clear drops the collection; the next upsert recreates it.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.exists = false
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
