package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"slide-search-platform/internal/store"
	"slide-search-platform/models"
)

type fakeParser struct {
	exts   []string
	slides map[string][]RawSlide
	fail   error
}

func (p *fakeParser) Extensions() []string { return p.exts }

func (p *fakeParser) Parse(filePath string) ([]RawSlide, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	return p.slides[filepath.Base(filePath)], nil
}

type fakeRenderer struct {
	pages int
	fail  error
}

func (r *fakeRenderer) RenderSlides(_ context.Context, docPath string) ([]string, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	paths := make([]string, r.pages)
	for i := range paths {
		paths[i] = fmt.Sprintf("%s-page-%d.png", filepath.Base(docPath), i+1)
	}
	return paths, nil
}

type fakeOCR struct {
	result *OCRResult
	fail   error
	calls  []string
}

func (o *fakeOCR) ProcessImage(_ context.Context, imagePath string) (*OCRResult, error) {
	o.calls = append(o.calls, imagePath)
	if o.fail != nil {
		return nil, o.fail
	}
	return o.result, nil
}

type fakeTopics struct {
	topics map[string][]models.Topic
	fail   error
}

func (f *fakeTopics) ExtractTopics(_ context.Context, text string) ([]models.Topic, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.topics[text], nil
}

func touchFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestProcessDocumentOCRFallback(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.pptx")

	parser := &fakeParser{
		exts: []string{".pptx"},
		slides: map[string][]RawSlide{
			"deck.pptx": {
				{TextContent: "title slide", Layout: "Title"},
				{TextContent: "", Layout: "Picture"}, // image-only slide
				{TextContent: "closing remarks", Layout: "Content"},
			},
		},
	}
	ocr := &fakeOCR{result: &OCRResult{Text: "recovered caption", Confidence: 0.62}}
	pipeline := NewIngestionPipeline(NewParserRegistry(parser), &fakeRenderer{pages: 3}, ocr)

	records, err := pipeline.ProcessDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 slides, got %d", len(records))
	}

	for i, r := range records {
		if r.DocumentID != "deck.pptx" {
			t.Fatalf("slide %d has document id %q", i, r.DocumentID)
		}
		if r.SlideNumber != i+1 {
			t.Fatalf("slide numbers must ascend from 1, got %d at index %d", r.SlideNumber, i)
		}
	}

	if records[0].Metadata.OCRApplied || records[0].Metadata.OCRConfidence != 1.0 {
		t.Fatalf("parsed slide should keep sentinel confidence: %+v", records[0].Metadata)
	}
	if !records[1].Metadata.OCRApplied {
		t.Fatal("empty slide should trigger OCR")
	}
	if records[1].TextContent != "recovered caption" || records[1].Metadata.OCRConfidence != 0.62 {
		t.Fatalf("OCR result not applied: %+v", records[1])
	}
	if len(ocr.calls) != 1 {
		t.Fatalf("OCR should run once, ran %d times", len(ocr.calls))
	}
}

func TestProcessDocumentMissingFile(t *testing.T) {
	pipeline := NewIngestionPipeline(NewParserRegistry(), &fakeRenderer{}, &fakeOCR{})

	_, err := pipeline.ProcessDocument(context.Background(), "/nonexistent/deck.pptx")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestProcessDocumentUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.key")

	pipeline := NewIngestionPipeline(NewParserRegistry(), &fakeRenderer{}, &fakeOCR{})

	_, err := pipeline.ProcessDocument(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestProcessDocumentRenderFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.pptx")

	parser := &fakeParser{
		exts:   []string{".pptx"},
		slides: map[string][]RawSlide{"deck.pptx": {{TextContent: "x"}}},
	}
	renderer := &fakeRenderer{fail: fmt.Errorf("%w: soffice exited 1", ErrRenderConversionFailed)}
	pipeline := NewIngestionPipeline(NewParserRegistry(parser), renderer, &fakeOCR{})

	_, err := pipeline.ProcessDocument(context.Background(), path)
	if !errors.Is(err, ErrRenderConversionFailed) {
		t.Fatalf("expected ErrRenderConversionFailed, got %v", err)
	}
}

func TestProcessDocumentOCRFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.pptx")

	parser := &fakeParser{
		exts:   []string{".pptx"},
		slides: map[string][]RawSlide{"deck.pptx": {{TextContent: ""}}},
	}
	ocr := &fakeOCR{fail: fmt.Errorf("%w: engine crashed", ErrOCRFailure)}
	pipeline := NewIngestionPipeline(NewParserRegistry(parser), &fakeRenderer{pages: 1}, ocr)

	_, err := pipeline.ProcessDocument(context.Background(), path)
	if !errors.Is(err, ErrOCRFailure) {
		t.Fatalf("expected ErrOCRFailure, got %v", err)
	}
}

func newTestIngestion(t *testing.T, parser *fakeParser, topics TopicExtractor) (*IngestionService, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	if err := memStore.Init(context.Background(), 4); err != nil {
		t.Fatalf("store init: %v", err)
	}
	embedder := newTestEmbedder(&stubProvider{dim: 4})
	pipeline := NewIngestionPipeline(NewParserRegistry(parser), &fakeRenderer{pages: 2}, &fakeOCR{result: &OCRResult{Text: "ocr", Confidence: 0.8}})
	indexer := NewSlideIndexer(embedder, topics, memStore)
	return NewIngestionService(pipeline, indexer), memStore
}

func TestIngestDocumentIndexesAllSlides(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.pptx")

	parser := &fakeParser{
		exts: []string{".pptx"},
		slides: map[string][]RawSlide{
			"deck.pptx": {
				{TextContent: "intro"},
				{TextContent: "details"},
			},
		},
	}
	topics := &fakeTopics{topics: map[string][]models.Topic{
		"intro": {{Label: "overview", Confidence: 0.9}},
	}}
	ingestion, memStore := newTestIngestion(t, parser, topics)

	records, err := ingestion.IngestDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(records[0].Topics) != 1 || records[0].Topics[0].Label != "overview" {
		t.Fatalf("topics not attached: %+v", records[0].Topics)
	}

	results, err := memStore.KeywordSearch(context.Background(), "intro", 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(results) != 1 || results[0].SlideID != "deck.pptx:1" {
		t.Fatalf("indexed slide not searchable: %+v", results)
	}
}

func TestIngestDocumentTopicFailureIsPerSlide(t *testing.T) {
	dir := t.TempDir()
	path := touchFile(t, dir, "deck.pptx")

	parser := &fakeParser{
		exts:   []string{".pptx"},
		slides: map[string][]RawSlide{"deck.pptx": {{TextContent: "intro"}}},
	}
	topics := &fakeTopics{fail: fmt.Errorf("%w: model overloaded", ErrTopicExtractionFailed)}
	ingestion, memStore := newTestIngestion(t, parser, topics)

	records, err := ingestion.IngestDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("topic failure should not fail the document: %v", err)
	}
	if len(records[0].Topics) != 0 {
		t.Fatalf("failed slide should have no topics: %+v", records[0].Topics)
	}

	results, err := memStore.KeywordSearch(context.Background(), "intro", 10)
	if err != nil || len(results) != 1 {
		t.Fatalf("slide should still be indexed: %v %v", results, err)
	}
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := touchFile(t, dir, "good.pptx")
	bad := touchFile(t, dir, "bad.pdf") // no pdf parser registered

	parser := &fakeParser{
		exts:   []string{".pptx"},
		slides: map[string][]RawSlide{"good.pptx": {{TextContent: "fine"}}},
	}
	ingestion, _ := newTestIngestion(t, parser, &fakeTopics{})

	summary := ingestion.IngestBatch(context.Background(), []string{bad, good})
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, ok := summary.Errors[bad]; !ok {
		t.Fatalf("failed path missing from errors: %+v", summary.Errors)
	}
}
