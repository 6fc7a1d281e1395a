package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slide-search-platform/internal/ai"
	"slide-search-platform/internal/config"
	"slide-search-platform/internal/logger"
	"slide-search-platform/internal/store"
	"slide-search-platform/services"
)

// Batch ingestion CLI: indexes every supported document in a directory,
// bypassing the HTTP upload path and the task queue.
func main() {
	dir := flag.String("dir", "", "directory of .pptx/.pdf files to ingest")
	inMemory := flag.Bool("in-memory", false, "use the in-memory slide store instead of Qdrant")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	paths, err := collectDocuments(*dir)
	if err != nil {
		log.Fatal("Failed to scan directory:", err)
	}
	if len(paths) == 0 {
		log.Fatalf("No .pptx or .pdf files found in %s", *dir)
	}

	ctx := context.Background()

	var slideStore store.SlideStore
	if *inMemory {
		slideStore = store.NewMemoryStore()
	} else {
		slideStore = store.NewQdrantStore(store.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    30 * time.Second,
		})
	}
	if err := slideStore.Init(ctx, cfg.VectorDimensions); err != nil {
		log.Fatal("Failed to initialize slide store:", err)
	}

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

	summary := ingestion.IngestBatch(ctx, paths)

	fmt.Printf("Ingested %d of %d documents (%d failed)\n", summary.Processed, len(paths), summary.Failed)
	for path, err := range summary.Errors {
		fmt.Printf("  %s: %v\n", path, err)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func collectDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pptx", ".pdf":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
