package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis Configuration (asynq queue + query embedding cache)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Qdrant slide store
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	VectorDimensions int

	// Gemini (embeddings + topic labeling LLM)
	GeminiAPIKey string
	GeminiTier   string

	// Embedding configuration per modality
	TextEmbeddingModel     string
	TextEmbeddingBatchSize int
	TextEmbeddingMaxChars  int
	ImageEmbeddingModel    string
	ImageEmbeddingBatch    int

	// Sentence embedder used by topic clustering (distinct from the slide text embedder)
	SentenceEmbeddingModel string

	// OCR service
	OCRServiceURL          string
	OCRLanguages           []string
	OCRTimeout             int
	OCRConfidenceThreshold float64
	OCRUpscale             bool
	OCRDenoise             bool
	OCRBinarize            bool

	// Topic extraction
	TopicModel               string
	MaxTopics                int
	TopicConfidenceThreshold float64

	// Ingestion directories and rendering
	UploadDir     string
	RenderedDir   string
	RenderScale   int
	MaxFileSize   int64
	CleanupMaxAge int

	SearchLimit   int
	EmbedCacheTTL int

	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/slide_search"),
		DBName:   getEnv("DB_NAME", "slide_search"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "slides"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),

		TextEmbeddingModel:     getEnv("TEXT_EMBEDDING_MODEL", "text-embedding-004"),
		TextEmbeddingBatchSize: getEnvInt("TEXT_EMBEDDING_BATCH_SIZE", 32),
		TextEmbeddingMaxChars:  getEnvInt("TEXT_EMBEDDING_MAX_CHARS", 2048),
		ImageEmbeddingModel:    getEnv("IMAGE_EMBEDDING_MODEL", "multimodalembedding-001"),
		ImageEmbeddingBatch:    getEnvInt("IMAGE_EMBEDDING_BATCH_SIZE", 8),

		SentenceEmbeddingModel: getEnv("SENTENCE_EMBEDDING_MODEL", "text-embedding-004"),

		OCRServiceURL:          getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRLanguages:           strings.Split(getEnv("OCR_LANGUAGES", "eng"), ","),
		OCRTimeout:             getEnvInt("OCR_TIMEOUT", 300), // 5 minutes
		OCRConfidenceThreshold: getEnvFloat64("OCR_CONFIDENCE_THRESHOLD", 0.6),
		OCRUpscale:             getEnvBool("OCR_UPSCALE", true),
		OCRDenoise:             getEnvBool("OCR_DENOISE", true),
		OCRBinarize:            getEnvBool("OCR_BINARIZE", true),

		TopicModel:               getEnv("TOPIC_MODEL", "gemini-2.0-flash"),
		MaxTopics:                getEnvInt("MAX_TOPICS", 5),
		TopicConfidenceThreshold: getEnvFloat64("TOPIC_CONFIDENCE_THRESHOLD", 0.5),

		UploadDir:     getEnv("UPLOAD_DIR", "./data/uploads"),
		RenderedDir:   getEnv("RENDERED_DIR", "./data/rendered_images"),
		RenderScale:   getEnvInt("RENDER_SCALE", 2),
		MaxFileSize:   getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		CleanupMaxAge: getEnvInt("CLEANUP_MAX_AGE_DAYS", 7),

		SearchLimit:   getEnvInt("SEARCH_LIMIT", 10),
		EmbedCacheTTL: getEnvInt("EMBED_CACHE_TTL_SECONDS", 3600),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if cfg.MaxTopics <= 0 {
		return nil, fmt.Errorf("MAX_TOPICS must be positive")
	}
	if cfg.RenderScale <= 0 {
		return nil, fmt.Errorf("RENDER_SCALE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
