package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"slide-search-platform/internal/ai"
	"slide-search-platform/internal/config"
	"slide-search-platform/internal/logger"
	"slide-search-platform/internal/queue"
	"slide-search-platform/internal/store"
	"slide-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	presentations := mongoClient.Database(cfg.DBName).Collection("presentations")

	// Slide store
	slideStore := store.NewQdrantStore(store.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Timeout:    30 * time.Second,
	})
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := slideStore.Init(initCtx, cfg.VectorDimensions); err != nil {
		log.Fatal("Failed to initialize slide store:", err)
	}

	// Gemini clients: one for topic labeling, one for embeddings
	llm, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.TopicModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer llm.Close()

	embedProvider, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedProvider.Close()

	embedder := services.NewEmbeddingService(
		embedProvider,
		cfg.TextEmbeddingModel,
		cfg.ImageEmbeddingModel,
		cfg.TextEmbeddingBatchSize,
		cfg.ImageEmbeddingBatch,
		cfg.TextEmbeddingMaxChars,
	)
	sentenceEmbedder := services.NewEmbeddingService(
		embedProvider,
		cfg.SentenceEmbeddingModel,
		cfg.ImageEmbeddingModel,
		cfg.TextEmbeddingBatchSize,
		cfg.ImageEmbeddingBatch,
		cfg.TextEmbeddingMaxChars,
	)

	// Ingestion pipeline
	registry := services.NewParserRegistry(services.NewPPTXParser(), services.NewPDFParser())
	renderer, err := services.NewSlideRenderer(cfg.RenderedDir, cfg.RenderScale)
	if err != nil {
		log.Fatal("Failed to initialize slide renderer:", err)
	}
	ocrClient := services.NewOCRClient(cfg)
	pipeline := services.NewIngestionPipeline(registry, renderer, ocrClient)

	topicService := services.NewTopicService(llm, sentenceEmbedder, cfg.MaxTopics, cfg.TopicConfidenceThreshold)
	indexer := services.NewSlideIndexer(embedder, topicService, slideStore)
	ingestion := services.NewIngestionService(pipeline, indexer)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion, presentations)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestSlides, processor.HandleIngest)

	log.Println("Starting ingestion worker...")
	log.Printf("   Redis: %s", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
