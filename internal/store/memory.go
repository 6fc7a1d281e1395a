package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"slide-search-platform/models"
)

// MemoryStore is an in-memory slide store using brute-force dot-product
// similarity. Vectors are assumed L2-normalized. Used for tests and local
// development without a Qdrant instance.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	vectors   [][]float32
	payloads  []map[string]any
	index     map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.ids = nil
	s.vectors = nil
	s.payloads = nil
	s.index = make(map[string]int)
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, slideID string, vector []float32, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension > 0 && len(vector) != s.dimension {
		return errors.New("vector dimension mismatch")
	}
	if i, ok := s.index[slideID]; ok {
		s.vectors[i] = vector
		s.payloads[i] = payload
		return nil
	}
	s.index[slideID] = len(s.ids)
	s.ids = append(s.ids, slideID)
	s.vectors = append(s.vectors, vector)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *MemoryStore) VectorSearch(_ context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}

	results := make([]models.SearchResult, 0, len(s.ids))
	for i := range s.vectors {
		results = append(results, models.SearchResult{
			SlideID: s.ids[i],
			Score:   dot(s.vectors[i], vector),
			Source:  models.SourceVector,
			Payload: s.payloads[i],
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) KeywordSearch(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}

	var results []models.SearchResult
	for i := range s.ids {
		content, _ := s.payloads[i]["content"].(string)
		score := KeywordScore(query, content)
		if score <= 0 {
			continue
		}
		results = append(results, models.SearchResult{
			SlideID: s.ids[i],
			Score:   score,
			Source:  models.SourceKeyword,
			Payload: s.payloads[i],
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
