package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

// stubProvider returns deterministic vectors derived from input length so
// tests can reason about pooling and normalization without a live API.
type stubProvider struct {
	dim       int
	textCalls [][]string
	fail      error
}

func (p *stubProvider) EmbedTexts(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	p.textCalls = append(p.textCalls, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, p.dim)
		for j := range v {
			v[j] = float32(len(text)%7+j+1) / 10.0
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) EmbedImages(_ context.Context, _ string, paths []string) ([][]float32, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	out := make([][]float32, len(paths))
	for i := range paths {
		v := make([]float32, p.dim)
		for j := range v {
			v[j] = float32(j + 1)
		}
		out[i] = v
	}
	return out, nil
}

func newTestEmbedder(p *stubProvider) *EmbeddingService {
	return NewEmbeddingService(p, "text-model", "image-model", 4, 2, 16)
}

func TestNormalizeUnitNorm(t *testing.T) {
	v := Normalize([]float32{3, 4})
	norm := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]))
	if math.Abs(norm-1.0) > 1e-6 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			t.Fatalf("component %d is not finite: %f", i, x)
		}
	}
}

func TestSimilaritySelf(t *testing.T) {
	v := Normalize([]float32{1, 2, 3, 4})
	sim, err := Similarity(v, v)
	if err != nil {
		t.Fatalf("similarity error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-5 {
		t.Fatalf("self-similarity should be 1.0, got %f", sim)
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	a := Normalize([]float32{1, 0, 2, 1})
	b := Normalize([]float32{0, 1, 1, 3})
	ab, err := Similarity(a, b)
	if err != nil {
		t.Fatalf("similarity error: %v", err)
	}
	ba, err := Similarity(b, a)
	if err != nil {
		t.Fatalf("similarity error: %v", err)
	}
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("similarity not symmetric: %f vs %f", ab, ba)
	}
}

func TestSimilarityDimensionMismatch(t *testing.T) {
	_, err := Similarity([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbedTextsShortInputsPassThrough(t *testing.T) {
	provider := &stubProvider{dim: 4}
	svc := newTestEmbedder(provider)

	vectors, err := svc.EmbedTexts(context.Background(), []string{"short", "also short"})
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if len(provider.textCalls) != 1 || len(provider.textCalls[0]) != 2 {
		t.Fatalf("expected one provider call with 2 segments, got %v", provider.textCalls)
	}
}

func TestEmbedTextsLongInputPooled(t *testing.T) {
	provider := &stubProvider{dim: 4}
	svc := newTestEmbedder(provider) // maxChars 16

	long := strings.Repeat("abcd", 10) // 40 chars, 3 segments
	vectors, err := svc.EmbedTexts(context.Background(), []string{long})
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}

	total := 0
	for _, call := range provider.textCalls {
		total += len(call)
	}
	if total != 3 {
		t.Fatalf("expected 3 segments embedded, got %d", total)
	}

	// pooled result must be renormalized
	var sumSquares float64
	for _, x := range vectors[0] {
		sumSquares += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sumSquares)-1.0) > 1e-5 {
		t.Fatalf("pooled vector not normalized, norm %f", math.Sqrt(sumSquares))
	}
}

func TestEmbedTextsRespectsBatchSize(t *testing.T) {
	provider := &stubProvider{dim: 4}
	svc := newTestEmbedder(provider) // textBatch 4

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	if _, err := svc.EmbedTexts(context.Background(), texts); err != nil {
		t.Fatalf("embed error: %v", err)
	}
	if len(provider.textCalls) != 3 {
		t.Fatalf("expected 3 batches of at most 4, got %d", len(provider.textCalls))
	}
	for _, call := range provider.textCalls {
		if len(call) > 4 {
			t.Fatalf("batch exceeds limit: %d", len(call))
		}
	}
}

func TestEmbedImagesNormalized(t *testing.T) {
	provider := &stubProvider{dim: 3}
	svc := newTestEmbedder(provider)

	vectors, err := svc.EmbedImages(context.Background(), []string{"a.png", "b.png", "c.png"})
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		var sumSquares float64
		for _, x := range v {
			sumSquares += float64(x) * float64(x)
		}
		if math.Abs(math.Sqrt(sumSquares)-1.0) > 1e-5 {
			t.Fatalf("vector %d not normalized", i)
		}
	}
}

func TestEmbedTextsProviderError(t *testing.T) {
	provider := &stubProvider{dim: 4, fail: errors.New("quota exceeded")}
	svc := newTestEmbedder(provider)

	if _, err := svc.EmbedTexts(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}
