package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder produces embedding vectors through the Google Generative AI
// API. One embedder serves all models; the model identifier is chosen per call
// so text, image and sentence embeddings can use different models.
type GeminiEmbedder struct {
	client *genai.Client
}

func NewGeminiEmbedder(apiKey string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client}, nil
}

// EmbedTexts returns one embedding vector per input text, in input order.
func (e *GeminiEmbedder) EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedImages loads each image from disk and returns one vector per image.
func (e *GeminiEmbedder) EmbedImages(ctx context.Context, model string, paths []string) ([][]float32, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(model)
	batch := em.NewBatch()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", path, err)
		}
		batch.AddContent(genai.ImageData(imageFormat(path), data))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(paths) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(paths), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for image %s", paths[i])
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// imageFormat maps a file extension to the API's image format identifier.
func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".webp":
		return "webp"
	default:
		return "png"
	}
}

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
