package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"slide-search-platform/internal/logger"
	"slide-search-platform/internal/store"
	"slide-search-platform/models"
)

// TopicExtractor assigns topic labels to slide text.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, text string) ([]models.Topic, error)
}

// SlideIndexer enriches assembled slides with embeddings and topics and writes
// them to the slide store.
type SlideIndexer struct {
	embedder *EmbeddingService
	topics   TopicExtractor
	store    store.SlideStore
}

func NewSlideIndexer(embedder *EmbeddingService, topics TopicExtractor, slideStore store.SlideStore) *SlideIndexer {
	return &SlideIndexer{
		embedder: embedder,
		topics:   topics,
		store:    slideStore,
	}
}

// IndexSlides embeds slide texts in one batch, embeds rendered slide images,
// extracts topics per slide and upserts everything into the store. A topic
// extraction failure is scoped to its slide: it is logged and the slide is
// indexed without topics.
func (ix *SlideIndexer) IndexSlides(ctx context.Context, records []models.SlideRecord) error {
	if len(records) == 0 {
		return nil
	}
	tracer := otel.Tracer("slide-indexer")
	ctx, span := tracer.Start(ctx, "index.slides")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", records[0].DocumentID),
		attribute.Int("document.slides", len(records)),
	)

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].TextContent
	}
	textVectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding slide texts: %w", err)
	}
	for i := range records {
		records[i].TextVector = textVectors[i]
	}

	if err := ix.embedImages(ctx, records); err != nil {
		return err
	}

	for i := range records {
		topics, err := ix.topics.ExtractTopics(ctx, records[i].TextContent)
		if err != nil {
			if !errors.Is(err, ErrTopicExtractionFailed) {
				return err
			}
			logger.Warn("topic extraction failed, indexing slide without topics",
				"document_id", records[i].DocumentID,
				"slide_number", records[i].SlideNumber,
				"error", err,
			)
			continue
		}
		records[i].Topics = topics
	}

	for i := range records {
		r := &records[i]
		if err := ix.store.Upsert(ctx, r.SlideID(), r.TextVector, r.StorePayload()); err != nil {
			return fmt.Errorf("upserting slide %s: %w", r.SlideID(), err)
		}
	}
	return nil
}

// embedImages attaches an image vector to every slide that has a rendered
// image, in one batched provider round-trip.
func (ix *SlideIndexer) embedImages(ctx context.Context, records []models.SlideRecord) error {
	paths := make([]string, 0, len(records))
	indices := make([]int, 0, len(records))
	for i := range records {
		if records[i].RenderedImagePath == "" {
			continue
		}
		paths = append(paths, records[i].RenderedImagePath)
		indices = append(indices, i)
	}
	if len(paths) == 0 {
		return nil
	}

	imageVectors, err := ix.embedder.EmbedImages(ctx, paths)
	if err != nil {
		return fmt.Errorf("embedding slide images: %w", err)
	}
	for j, i := range indices {
		records[i].ImageVector = imageVectors[j]
	}
	return nil
}

// IngestionService ties the pipeline and the indexer together: one call takes
// a document from file path to searchable slides.
type IngestionService struct {
	pipeline *IngestionPipeline
	indexer  *SlideIndexer
}

func NewIngestionService(pipeline *IngestionPipeline, indexer *SlideIndexer) *IngestionService {
	return &IngestionService{pipeline: pipeline, indexer: indexer}
}

// IngestDocument normalizes and indexes one document, returning the assembled
// slide records.
func (s *IngestionService) IngestDocument(ctx context.Context, filePath string) ([]models.SlideRecord, error) {
	records, err := s.pipeline.ProcessDocument(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if err := s.indexer.IndexSlides(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// BatchSummary reports the outcome of a batch ingestion run.
type BatchSummary struct {
	Processed int
	Failed    int
	Errors    map[string]error
}

// IngestBatch ingests each document independently: a failure is recorded and
// logged without aborting the rest of the batch.
func (s *IngestionService) IngestBatch(ctx context.Context, paths []string) BatchSummary {
	summary := BatchSummary{Errors: make(map[string]error)}
	for _, path := range paths {
		if _, err := s.IngestDocument(ctx, path); err != nil {
			logger.Error("document ingestion failed", "path", path, "error", err)
			summary.Failed++
			summary.Errors[path] = err
			continue
		}
		summary.Processed++
	}
	logger.Info("batch ingestion finished",
		"processed", summary.Processed,
		"failed", summary.Failed,
	)
	return summary
}
