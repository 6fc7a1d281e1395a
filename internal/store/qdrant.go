package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"slide-search-platform/models"
)

// QdrantStore is a minimal REST client to Qdrant. It assumes cosine distance
// and creates the collection if missing. Slide identifiers are mapped to
// deterministic point UUIDs; the original id travels in the payload.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	// Create collection if not exists; Qdrant returns 200 for an existing
	// collection with the same schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *QdrantStore) Upsert(ctx context.Context, slideID string, vector []float32, payload map[string]any) error {
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("vector dimension %d does not match collection dimension %d", len(vector), s.dimension)
	}
	point := map[string]any{
		"id":      pointID(slideID),
		"vector":  vector,
		"payload": withSlideID(payload, slideID),
	}
	body := map[string]any{"points": []map[string]any{point}}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

func (s *QdrantStore) VectorSearch(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, models.SearchResult{
			SlideID: payloadSlideID(r.Payload),
			Score:   r.Score,
			Source:  models.SourceVector,
			Payload: r.Payload,
		})
	}
	return results, nil
}

// KeywordSearch uses Qdrant's full-text match filter to narrow candidates and
// ranks them by query term frequency, since scroll responses carry no score.
func (s *QdrantStore) KeywordSearch(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "content",
					"match": map[string]any{"text": query},
				},
			},
		},
		"limit":        limit * 4,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		content, _ := p.Payload["content"].(string)
		score := KeywordScore(query, content)
		if score <= 0 {
			continue
		}
		results = append(results, models.SearchResult{
			SlideID: payloadSlideID(p.Payload),
			Score:   score,
			Source:  models.SourceKeyword,
			Payload: p.Payload,
		})
	}
	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// KeywordScore counts query term occurrences in the text, case-insensitively.
func KeywordScore(query, text string) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	lowered := strings.ToLower(text)
	score := 0
	for _, word := range queryWords {
		score += strings.Count(lowered, word)
	}
	return float64(score)
}

func sortByScore(results []models.SearchResult) {
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[i].Score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
}

// pointID derives a stable UUID for a slide identifier, as Qdrant point ids
// must be UUIDs or unsigned integers.
func pointID(slideID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(slideID)).String()
}

func withSlideID(payload map[string]any, slideID string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["slide_id"] = slideID
	return out
}

func payloadSlideID(payload map[string]any) string {
	if v, ok := payload["slide_id"].(string); ok {
		return v
	}
	return ""
}

func (s *QdrantStore) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *QdrantStore) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
