package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// letterEmbedder maps text to its letter histogram plus a constant component.
type letterEmbedder struct {
	err error
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, 27)
	vec[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func (e *letterEmbedder) GenerateEmbedding(ctx context.Context, chunks []models.Chunk) ([]models.IndexEntry, error) {
	var entries []models.IndexEntry
	for _, c := range chunks {
		vec, err := e.Embed(ctx, c.Text)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.IndexEntry{
			ID:       helper.EntryID(c.Source, c.Index),
			Vector:   vec,
			Text:     c.Text,
			Metadata: models.EntryMetadata{Source: c.Source, ChunkIndex: c.Index, DocType: c.Type},
		})
	}
	return entries, nil
}

// memStore is a brute-force cosine store
type memStore struct {
	mu      sync.Mutex
	order   []string
	entries map[string]models.IndexEntry
	upserts int
	// upsertErr fails every Upsert when set
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]models.IndexEntry{}}
}

func (s *memStore) Upsert(_ context.Context, entries []models.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		s.entries[e.ID] = e
	}
	return nil
}

func (s *memStore) Query(_ context.Context, vec []float32, topK int) ([]models.ScoredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []models.ScoredEntry
	for _, id := range s.order {
		e := s.entries[id]
		hits = append(hits, models.ScoredEntry{Entry: e, Distance: 1 - cosine(vec, e.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *memStore) DeleteSource(_ context.Context, source string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if e := s.entries[id]; e.Metadata.Source == source && e.Metadata.ChunkIndex >= from {
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *memStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = map[string]models.IndexEntry{}
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	answer  string
	err     error
}

func (g *recordingGenerator) GenerateContent(_ context.Context, model, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.models = append(g.models, model)
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if g.answer == "" {
		return "an answer", nil
	}
	return g.answer, nil
}
