package routes

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slide-search-platform/internal/config"
	"slide-search-platform/internal/queue"
	"slide-search-platform/models"
	"slide-search-platform/utils"
)

var allowedUploadExts = map[string]bool{
	".pptx": true,
	".pdf":  true,
}

// SetupUploadRoutes registers the presentation upload and status endpoints.
func SetupUploadRoutes(router *gin.Engine, cfg *config.Config, presentations *mongo.Collection, queueClient *asynq.Client) {
	api := router.Group("/api/presentations")
	api.POST("", HandlePresentationUpload(cfg, presentations, queueClient))
	api.GET("/:id", CheckPresentationStatus(presentations))
	api.GET("", ListPresentations(presentations))
}

// HandlePresentationUpload accepts a slide deck, registers it and enqueues
// ingestion. Processing is asynchronous; the response carries the registry id
// to poll for status.
func HandlePresentationUpload(cfg *config.Config, presentations *mongo.Collection, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		ext := utils.FileExtension(header.Filename)
		if !allowedUploadExts[ext] {
			utils.RespondWithUnsupportedMedia(c, "Only .pptx and .pdf files are supported")
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filename := utils.UniqueFilename(header.Filename)
		filePath := filepath.Join(cfg.UploadDir, filename)
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		fileHash, err := utils.FileSHA256(filePath)
		if err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to hash file", nil)
			return
		}

		ctx := context.Background()
		presentation := models.Presentation{
			DocumentID:   filename,
			Filename:     filename,
			OriginalName: header.Filename,
			FilePath:     filePath,
			FileHash:     fileHash,
			Status:       models.StatusPending,
			UploadedAt:   time.Now(),
		}

		result, err := presentations.InsertOne(ctx, presentation)
		if err != nil {
			os.Remove(filePath)
			if mongo.IsDuplicateKeyError(err) {
				utils.RespondWithBadRequest(c, "Presentation already uploaded", gin.H{"file_hash": fileHash})
				return
			}
			utils.RespondWithInternalError(c, "Failed to create database record", nil)
			return
		}
		presentationID := result.InsertedID.(primitive.ObjectID).Hex()

		task, err := queue.NewIngestTask(presentationID, filename, filePath)
		if err != nil {
			os.Remove(filePath)
			presentations.DeleteOne(ctx, bson.M{"_id": result.InsertedID})
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}

		info, err := queueClient.Enqueue(task)
		if err != nil {
			os.Remove(filePath)
			presentations.DeleteOne(ctx, bson.M{"_id": result.InsertedID})
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       presentationID,
			Filename: header.Filename,
			Status:   models.StatusPending,
			TaskID:   info.ID,
			Message:  "Presentation accepted for processing",
		})
	}
}

// CheckPresentationStatus returns the processing lifecycle of one upload.
func CheckPresentationStatus(presentations *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		objectID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid presentation id", nil)
			return
		}

		ctx := context.Background()
		var presentation models.Presentation
		err = presentations.FindOne(ctx, bson.M{"_id": objectID}).Decode(&presentation)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Presentation not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve presentation", nil)
			return
		}

		c.JSON(http.StatusOK, presentation)
	}
}

// ListPresentations lists uploads newest first with pagination.
func ListPresentations(presentations *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageInt := 1
		limitInt := 10
		if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
			pageInt = p
		}
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 && l <= 100 {
			limitInt = l
		}

		ctx := context.Background()
		skip := (pageInt - 1) * limitInt

		cursor, err := presentations.Find(
			ctx,
			bson.M{},
			options.Find().
				SetSort(bson.M{"uploaded_at": -1}).
				SetSkip(int64(skip)).
				SetLimit(int64(limitInt)),
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve presentations", nil)
			return
		}
		defer cursor.Close(ctx)

		var items []models.Presentation
		if err := cursor.All(ctx, &items); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode presentations", nil)
			return
		}

		total, err := presentations.CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to count presentations", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"presentations": items,
			"pagination": gin.H{
				"page":        pageInt,
				"limit":       limitInt,
				"total":       total,
				"total_pages": (total + int64(limitInt) - 1) / int64(limitInt),
			},
		})
	}
}
