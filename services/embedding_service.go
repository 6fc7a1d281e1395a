package services

import (
	"context"
	"fmt"
	"math"
)

// EmbeddingProvider is the external embedding capability. Implementations
// return fixed-dimension vectors for the configured model identifier and must
// be safe for concurrent use.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error)
	EmbedImages(ctx context.Context, model string, paths []string) ([][]float32, error)
}

// EmbeddingService orchestrates text and image embedding generation. It is
// stateless: truncation, batching and normalization happen here, model
// inference happens in the provider.
type EmbeddingService struct {
	provider   EmbeddingProvider
	textModel  string
	imageModel string
	textBatch  int
	imageBatch int
	maxChars   int
}

func NewEmbeddingService(provider EmbeddingProvider, textModel, imageModel string, textBatch, imageBatch, maxChars int) *EmbeddingService {
	if textBatch <= 0 {
		textBatch = 32
	}
	if imageBatch <= 0 {
		imageBatch = 8
	}
	if maxChars <= 0 {
		maxChars = 2048
	}
	return &EmbeddingService{
		provider:   provider,
		textModel:  textModel,
		imageModel: imageModel,
		textBatch:  textBatch,
		imageBatch: imageBatch,
		maxChars:   maxChars,
	}
}

// EmbedTexts returns one vector per input text. Texts beyond the maximum
// embed length are split into segments; the segment vectors are mean-pooled
// with a clamped divisor and renormalized so they stay comparable.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	segments := make([]string, 0, len(texts))
	counts := make([]int, len(texts))
	for i, text := range texts {
		parts := splitSegments(text, s.maxChars)
		counts[i] = len(parts)
		segments = append(segments, parts...)
	}

	segmentVectors, err := s.embedBatched(ctx, segments)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	offset := 0
	for i, n := range counts {
		group := segmentVectors[offset : offset+n]
		offset += n
		if n == 1 {
			vectors[i] = group[0]
			continue
		}
		vectors[i] = Normalize(meanPool(group))
	}
	return vectors, nil
}

// EmbedText is a batch-of-one convenience call.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedImages returns one L2-normalized vector per image path, so downstream
// cosine similarity reduces to a dot product.
func (s *EmbeddingService) EmbedImages(ctx context.Context, paths []string) ([][]float32, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(paths))
	for start := 0; start < len(paths); start += s.imageBatch {
		end := start + s.imageBatch
		if end > len(paths) {
			end = len(paths)
		}
		batch, err := s.provider.EmbedImages(ctx, s.imageModel, paths[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range batch {
			vectors = append(vectors, Normalize(v))
		}
	}
	return vectors, nil
}

// EmbedImage is a batch-of-one convenience call.
func (s *EmbeddingService) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	vectors, err := s.EmbedImages(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Similarity is the dot product of two L2-normalized vectors of equal dimension.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Normalize divides a vector by its Euclidean norm. The divisor is clamped to
// a small positive floor so degenerate input never divides by zero.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Max(math.Sqrt(sumSquares), 1e-9)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// meanPool averages a group of vectors. The divisor is clamped to a small
// positive floor; vectors past the first that disagree in dimension are
// excluded rather than zero-padded.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}

	den := math.Max(float64(count), 1e-9)
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / den)
	}
	return out
}

func (s *EmbeddingService) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.textBatch {
		end := start + s.textBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.provider.EmbedTexts(ctx, s.textModel, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// splitSegments truncates by splitting into rune segments of at most maxChars.
func splitSegments(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}
	var parts []string
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
