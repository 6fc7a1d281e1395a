package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"slide-search-platform/internal/logger"
	"slide-search-platform/internal/store"
	"slide-search-platform/models"
)

// SearchService serves hybrid retrieval: vector similarity and keyword search
// against the slide store, fused into one deduplicated ranking.
type SearchService struct {
	store    store.SlideStore
	embedder *EmbeddingService
	cache    *redis.Client
	cacheTTL time.Duration
	limit    int
}

// NewSearchService creates the hybrid search engine. cache may be nil; query
// embeddings are then computed on every call.
func NewSearchService(slideStore store.SlideStore, embedder *EmbeddingService, cache *redis.Client, cacheTTL time.Duration, limit int) *SearchService {
	if limit <= 0 {
		limit = 10
	}
	return &SearchService{
		store:    slideStore,
		embedder: embedder,
		cache:    cache,
		cacheTTL: cacheTTL,
		limit:    limit,
	}
}

// Search runs both retrievals and fuses them. Filters are exact-match
// predicates applied per payload field after fusion, preserving fused order.
func (s *SearchService) Search(ctx context.Context, query string, filters map[string]string, limit int) ([]models.SearchResult, error) {
	tracer := otel.Tracer("search-service")
	ctx, span := tracer.Start(ctx, "search.hybrid")
	defer span.End()

	if limit <= 0 {
		limit = s.limit
	}
	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Int("search.filters", len(filters)),
	)

	queryVector, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vectorResults, err := s.store.VectorSearch(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", store.ErrBackendUnavailable, err)
	}

	keywordResults, err := s.store.KeywordSearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", store.ErrBackendUnavailable, err)
	}

	fused := FuseResults(vectorResults, keywordResults)
	if len(filters) > 0 {
		fused = applyFilters(fused, filters)
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	span.SetAttributes(
		attribute.Int("search.vector_hits", len(vectorResults)),
		attribute.Int("search.keyword_hits", len(keywordResults)),
		attribute.Int("search.results", len(fused)),
	)
	return fused, nil
}

// FuseResults merges the two rankings: vector results first, then keyword
// results, each in its own rank order, keeping only the first occurrence of
// each slide identifier. No score blending.
func FuseResults(vectorResults, keywordResults []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(vectorResults)+len(keywordResults))
	fused := make([]models.SearchResult, 0, len(vectorResults)+len(keywordResults))

	for _, r := range append(append([]models.SearchResult{}, vectorResults...), keywordResults...) {
		if seen[r.SlideID] {
			continue
		}
		seen[r.SlideID] = true
		fused = append(fused, r)
	}
	return fused
}

func applyFilters(results []models.SearchResult, filters map[string]string) []models.SearchResult {
	filtered := results[:0]
	for _, r := range results {
		if matchesFilters(r.Payload, filters) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func matchesFilters(payload map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		value, ok := payload[key]
		if !ok || fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}

// queryEmbedding embeds the query text, with a best-effort Redis cache in
// front of the provider for repeated queries.
func (s *SearchService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := queryCacheKey(query)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var vector []float32
			if err := json.Unmarshal(cached, &vector); err == nil {
				return vector, nil
			}
		}
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(vector); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				logger.Debug("query embedding cache write failed", "error", err)
			}
		}
	}
	return vector, nil
}

func queryCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "embed:query:" + hex.EncodeToString(sum[:16])
}
