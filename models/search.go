package models

// Result sources for hybrid search.
const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
)

// SearchResult is a single search hit. Constructed per query, never persisted.
type SearchResult struct {
	SlideID string         `json:"slide_id"`
	Score   float64        `json:"score"`
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchRequest is the API shape for a hybrid search query.
type SearchRequest struct {
	Query   string            `json:"query" binding:"required"`
	Filters map[string]string `json:"filters,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}
