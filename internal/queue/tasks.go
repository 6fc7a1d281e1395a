package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"slide-search-platform/internal/logger"
	"slide-search-platform/models"
	"slide-search-platform/services"
)

const (
	TaskIngestSlides = "slides:ingest"
)

type IngestPayload struct {
	PresentationID string `json:"presentation_id"`
	DocumentID     string `json:"document_id"`
	FilePath       string `json:"file_path"`
}

// NewIngestTask creates the background ingestion task for one uploaded
// document.
func NewIngestTask(presentationID, documentID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		PresentationID: presentationID,
		DocumentID:     documentID,
		FilePath:       filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestSlides,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued ingestion tasks and keeps the presentation
// registry in sync with the processing lifecycle.
type TaskProcessor struct {
	ingestion     *services.IngestionService
	presentations *mongo.Collection
}

func NewTaskProcessor(ingestion *services.IngestionService, presentations *mongo.Collection) *TaskProcessor {
	return &TaskProcessor{
		ingestion:     ingestion,
		presentations: presentations,
	}
}

// HandleIngest processes one uploaded document end to end: parse, render,
// OCR fallback, embed, topic-tag, index.
func (p *TaskProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("ingesting presentation",
		"presentation_id", payload.PresentationID,
		"document_id", payload.DocumentID,
	)

	p.updateStatus(payload.PresentationID, models.StatusProcessing, "", 0)

	records, err := p.ingestion.IngestDocument(ctx, payload.FilePath)
	if err != nil {
		p.updateStatus(payload.PresentationID, models.StatusFailed, err.Error(), 0)
		return err
	}

	p.updateStatus(payload.PresentationID, models.StatusCompleted, "", len(records))

	logger.Info("presentation ingested",
		"presentation_id", payload.PresentationID,
		"slides", len(records),
	)
	return nil
}

func (p *TaskProcessor) updateStatus(presentationID, status, errorMessage string, slideCount int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	update := bson.M{
		"status":        status,
		"error_message": errorMessage,
	}
	if slideCount > 0 {
		update["slide_count"] = slideCount
	}
	if status == models.StatusCompleted || status == models.StatusFailed {
		now := time.Now()
		update["processed_at"] = now
	}

	objectID, err := primitive.ObjectIDFromHex(presentationID)
	if err != nil {
		logger.Error("invalid presentation id", "presentation_id", presentationID, "error", err)
		return
	}
	if _, err := p.presentations.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": update}); err != nil {
		logger.Error("failed to update presentation status",
			"presentation_id", presentationID,
			"status", status,
			"error", err,
		)
	}
}
