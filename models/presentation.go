package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presentation is the registry record for one ingested document. Slides
// themselves live in the vector store; this collection tracks the upload and
// its processing lifecycle.
type Presentation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID   string             `bson:"document_id" json:"document_id"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"original_name" json:"original_name"`
	FilePath     string             `bson:"file_path" json:"file_path"`
	FileHash     string             `bson:"file_hash,omitempty" json:"file_hash,omitempty"`
	SlideCount   int                `bson:"slide_count" json:"slide_count"`
	Status       string             `bson:"status" json:"status"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// UploadResponse is returned after a successful presentation upload.
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	TaskID   string `json:"task_id,omitempty"`
	Message  string `json:"message"`
}
