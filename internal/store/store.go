// Package store provides persistence and retrieval for indexed slides.
package store

import (
	"context"
	"errors"

	"slide-search-platform/models"
)

// ErrBackendUnavailable indicates the retrieval backend failed; hybrid search
// surfaces it without a degraded fallback.
var ErrBackendUnavailable = errors.New("retrieval backend failure")

// SlideStore persists slide vectors with payloads and supports the two
// retrieval modes combined by hybrid search. Implementations must be safe for
// concurrent use.
type SlideStore interface {
	// Init prepares the backing collection for vectors of the given dimension.
	Init(ctx context.Context, dimension int) error

	// Upsert inserts or replaces one slide by its identifier.
	Upsert(ctx context.Context, slideID string, vector []float32, payload map[string]any) error

	// VectorSearch returns slides ranked by vector similarity to the query vector.
	VectorSearch(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error)

	// KeywordSearch returns slides ranked by lexical relevance to the query text.
	KeywordSearch(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}
