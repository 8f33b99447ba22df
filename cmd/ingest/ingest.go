// Command ingest populates the system and manual collections from local
// PDF directories. Run it once before starting the server, and again
// whenever the corpus changes.
package main

import (
	"context"
	"log"
	"path/filepath"

	"cv-evaluator/internal/ai"
	"cv-evaluator/internal/config"
	"cv-evaluator/internal/logger"
	"cv-evaluator/internal/vector"
	"cv-evaluator/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}

	qdrant := vector.NewClient(cfg.QdrantURL)
	ingestion := services.NewIngestionService(cfg, embedder, qdrant, services.NewJobStore(), services.PDFExtractor{})

	ctx := context.Background()

	systemChunks, err := ingestion.IngestSystem(ctx, cfg.SystemDocsDir)
	if err != nil {
		log.Fatal("System ingest failed:", err)
	}
	logger.Info("System corpus indexed", "collection", cfg.SystemCollection, "chunks", systemChunks)

	manualDir := filepath.Join(cfg.FileStorageDir, "uploads")
	manualChunks, err := ingestion.IngestManual(ctx, manualDir)
	if err != nil {
		log.Fatal("Manual ingest failed:", err)
	}
	logger.Info("Manual corpus indexed", "collection", cfg.ManualCollection, "chunks", manualChunks)
}
