package services

import (
	"context"
	"fmt"
	"path/filepath"

	"slide-search-platform/internal/logger"
	"slide-search-platform/models"
)

// SlideRendererAPI renders a document into one image per slide.
type SlideRendererAPI interface {
	RenderSlides(ctx context.Context, docPath string) ([]string, error)
}

// OCRProcessor recovers text from a rendered slide image.
type OCRProcessor interface {
	ProcessImage(ctx context.Context, imagePath string) (*OCRResult, error)
}

// IngestionPipeline normalizes a document into SlideRecords. Per document it
// moves through parsing, rendering and a conditional per-slide OCR fallback
// before assembling the final sequence.
type IngestionPipeline struct {
	registry *ParserRegistry
	renderer SlideRendererAPI
	ocr      OCRProcessor
}

func NewIngestionPipeline(registry *ParserRegistry, renderer SlideRendererAPI, ocr OCRProcessor) *IngestionPipeline {
	return &IngestionPipeline{
		registry: registry,
		renderer: renderer,
		ocr:      ocr,
	}
}

// ProcessDocument parses, renders and assembles one document. Slides are
// emitted strictly in source order, numbered from 1. OCR runs only for slides
// whose structured text extraction came back empty; all other slides keep the
// sentinel confidence of 1.0.
func (p *IngestionPipeline) ProcessDocument(ctx context.Context, filePath string) ([]models.SlideRecord, error) {
	if err := checkExists(filePath); err != nil {
		return nil, err
	}

	// Parsing
	parser, err := p.registry.ForFile(filePath)
	if err != nil {
		return nil, err
	}
	rawSlides, err := parser.Parse(filePath)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}

	// Rendering
	renderedPaths, err := p.renderer.RenderSlides(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", filePath, err)
	}

	documentID := filepath.Base(filePath)
	records := make([]models.SlideRecord, 0, len(rawSlides))

	for i, raw := range rawSlides {
		record := models.SlideRecord{
			DocumentID:  documentID,
			SlideNumber: i + 1,
			TextContent: raw.TextContent,
			Images:      raw.Images,
			Notes:       raw.Notes,
			Layout:      raw.Layout,
			Metadata:    models.SlideMetadata{OCRConfidence: 1.0},
		}
		if i < len(renderedPaths) {
			record.RenderedImagePath = renderedPaths[i]
		}

		// OCRFallback
		if record.TextContent == "" {
			if record.RenderedImagePath == "" {
				// no rendered page to recover from; never report the sentinel
				// confidence for text that was not actually extracted
				record.Metadata.OCRConfidence = 0.0
			} else {
				ocrResult, err := p.ocr.ProcessImage(ctx, record.RenderedImagePath)
				if err != nil {
					return nil, fmt.Errorf("document %s slide %d: %w", documentID, record.SlideNumber, err)
				}
				record.TextContent = ocrResult.Text
				record.Metadata.OCRConfidence = ocrResult.Confidence
				record.Metadata.OCRApplied = true
			}
		}

		records = append(records, record)
	}

	logger.Debug("document assembled",
		"document_id", documentID,
		"slides", len(records),
	)
	return records, nil
}
