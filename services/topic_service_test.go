package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type stubLLM struct {
	responses []string
	calls     int
	fail      error
}

func (l *stubLLM) Complete(_ context.Context, _ string) (string, error) {
	if l.fail != nil {
		return "", l.fail
	}
	resp := l.responses[l.calls%len(l.responses)]
	l.calls++
	return resp, nil
}

type stubSentenceEmbedder struct {
	called bool
}

func (e *stubSentenceEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.called = true
	out := make([][]float32, len(texts))
	for i := range texts {
		// two well-separated groups so clustering is stable
		v := make([]float32, 4)
		if i%2 == 0 {
			v[0] = 10
		} else {
			v[1] = 10
		}
		v[2] = float32(i) * 0.01
		out[i] = v
	}
	return out, nil
}

func TestExtractTopicsShortTextGoesDirect(t *testing.T) {
	llm := &stubLLM{responses: []string{"pricing: 0.9\nroadmap: 0.7"}}
	embedder := &stubSentenceEmbedder{}
	svc := NewTopicService(llm, embedder, 5, 0.5)

	topics, err := svc.ExtractTopics(context.Background(), "One sentence. Two sentences.")
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if embedder.called {
		t.Fatal("short text should not trigger sentence embedding")
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", llm.calls)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Label != "pricing" || topics[0].Confidence != 0.9 {
		t.Fatalf("unexpected first topic: %+v", topics[0])
	}
}

func TestExtractTopicsDirectOrderedByConfidence(t *testing.T) {
	llm := &stubLLM{responses: []string{"low: 0.6\nhigh: 0.95\nmid: 0.8"}}
	svc := NewTopicService(llm, &stubSentenceEmbedder{}, 5, 0.5)

	topics, err := svc.ExtractTopics(context.Background(), "Just one sentence.")
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	for i := 1; i < len(topics); i++ {
		if topics[i].Confidence > topics[i-1].Confidence {
			t.Fatalf("topics not ordered by descending confidence: %+v", topics)
		}
	}
}

func TestExtractTopicsThresholdFilters(t *testing.T) {
	llm := &stubLLM{responses: []string{"keep: 0.9\ndrop: 0.2"}}
	svc := NewTopicService(llm, &stubSentenceEmbedder{}, 5, 0.5)

	topics, err := svc.ExtractTopics(context.Background(), "A sentence.")
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if len(topics) != 1 || topics[0].Label != "keep" {
		t.Fatalf("threshold filter failed: %+v", topics)
	}
}

func TestExtractTopicsClusteredPath(t *testing.T) {
	// one label per cluster call
	llm := &stubLLM{responses: []string{"architecture"}}
	embedder := &stubSentenceEmbedder{}
	maxTopics := 2
	svc := NewTopicService(llm, embedder, maxTopics, 0.5)

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(fmt.Sprintf("Sentence number %d about the system. ", i))
	}

	topics, err := svc.ExtractTopics(context.Background(), sb.String())
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if !embedder.called {
		t.Fatal("long text should trigger sentence embedding")
	}
	if len(topics) > maxTopics {
		t.Fatalf("expected at most %d topics, got %d", maxTopics, len(topics))
	}
	for _, topic := range topics {
		if topic.Confidence < 0.5 || topic.Confidence > 1.0 {
			t.Fatalf("confidence out of range: %+v", topic)
		}
	}
}

func TestExtractTopicsLLMFailure(t *testing.T) {
	llm := &stubLLM{fail: errors.New("model overloaded")}
	svc := NewTopicService(llm, &stubSentenceEmbedder{}, 5, 0.5)

	_, err := svc.ExtractTopics(context.Background(), "A sentence.")
	if !errors.Is(err, ErrTopicExtractionFailed) {
		t.Fatalf("expected ErrTopicExtractionFailed, got %v", err)
	}
}

func TestParseTopicLines(t *testing.T) {
	response := strings.Join([]string{
		"- pricing: 0.9",
		"2) roadmap: 0.75",
		"no separator line",
		"out of range: 1.5",
		": 0.5",
		"security: not-a-number",
		"* sales strategy: 0.6",
	}, "\n")

	topics := ParseTopicLines(response)
	if len(topics) != 3 {
		t.Fatalf("expected 3 parsed topics, got %d: %+v", len(topics), topics)
	}
	if topics[0].Label != "pricing" || topics[1].Label != "roadmap" || topics[2].Label != "sales strategy" {
		t.Fatalf("unexpected labels: %+v", topics)
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("First one. Second one! Third one?")
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(sentences), sentences)
	}
}

func TestSplitSentencesNoTerminator(t *testing.T) {
	sentences := SplitSentences("a bare slide title")
	if len(sentences) != 1 || sentences[0] != "a bare slide title" {
		t.Fatalf("text without terminators should be one sentence: %v", sentences)
	}
}

func TestKmeansDeterministic(t *testing.T) {
	vectors := make([][]float32, 12)
	for i := range vectors {
		v := make([]float32, 3)
		if i < 6 {
			v[0] = 5 + float32(i)*0.1
		} else {
			v[1] = 5 + float32(i)*0.1
		}
		vectors[i] = v
	}

	first := kmeansCluster(vectors, 2)
	second := kmeansCluster(vectors, 2)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("clustering not deterministic at %d: %d vs %d", i, first[i], second[i])
		}
	}

	// the two separated groups must not share a cluster
	for i := 1; i < 6; i++ {
		if first[i] != first[0] {
			t.Fatalf("first group split across clusters: %v", first)
		}
	}
	if first[6] == first[0] {
		t.Fatalf("separated groups assigned the same cluster: %v", first)
	}
}

func TestKmeansMoreClustersThanPoints(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}}
	assignments := kmeansCluster(vectors, 5)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
}
