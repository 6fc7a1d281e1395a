package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"slide-search-platform/internal/ai"
	"slide-search-platform/internal/config"
	"slide-search-platform/internal/logger"
	"slide-search-platform/internal/store"
	"slide-search-platform/internal/telemetry"
	"slide-search-platform/middleware"
	"slide-search-platform/routes"
	"slide-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is optional; the exporter endpoint may not exist in dev
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("slide-search-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracer:", err)
		}
		defer shutdown()
	}

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

	// Redis backs the query embedding cache
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

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

	// Embeddings
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

	searchService := services.NewSearchService(
		slideStore,
		embedder,
		redisClient,
		time.Duration(cfg.EmbedCacheTTL)*time.Second,
		cfg.SearchLimit,
	)

	// Queue client for async ingestion
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Scheduled cleanup of old uploads and rendered images
	cleanup := services.NewCleanupService([]string{cfg.UploadDir, cfg.RenderedDir}, cfg.CleanupMaxAge)
	if err := cleanup.Start(); err != nil {
		log.Fatal("Failed to start cleanup scheduler:", err)
	}
	defer cleanup.Stop()

	// Initialize Gin router
	if cfg.AppMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupUploadRoutes(router, cfg, presentations, queueClient)
	routes.SetupSearchRoutes(router, searchService)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
