package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cv-evaluator/internal/ai"
	"cv-evaluator/internal/config"
	"cv-evaluator/internal/logger"
	"cv-evaluator/internal/telemetry"
	"cv-evaluator/internal/vector"
	"cv-evaluator/models"
)

const cosineDistance = "Cosine"

// Chunk length policies per ingestion path.
const (
	uploadChunkMin = 100
	uploadChunkMax = 2000
	systemChunkMin = 80
	manualWindow   = 800
	manualOverlap  = 100
)

// UploadedFile is one file accepted by the upload endpoint, already saved
// to local storage.
type UploadedFile struct {
	Name string
	Path string
}

// UploadResult is returned to the upload caller once ingestion, embedding
// and indexing have all completed.
type UploadResult struct {
	Files       []string
	TotalChunks int
	JobID       string
}

// IngestionService runs the synchronous ingestion path: extract, chunk,
// embed, index, record job.
type IngestionService struct {
	cfg       *config.Config
	embedder  ai.Embedder
	store     VectorStore
	jobs      *JobStore
	extractor TextExtractor
	metrics   *telemetry.Metrics
}

func NewIngestionService(cfg *config.Config, embedder ai.Embedder, store VectorStore, jobs *JobStore, extractor TextExtractor) *IngestionService {
	return &IngestionService{
		cfg:       cfg,
		embedder:  embedder,
		store:     store,
		jobs:      jobs,
		extractor: extractor,
	}
}

// WithMetrics attaches the metrics sink. The service works without one.
func (s *IngestionService) WithMetrics(m *telemetry.Metrics) *IngestionService {
	s.metrics = m
	return s
}

// IngestUpload processes uploaded candidate documents: paragraph-chunks each
// file, embeds the flattened chunk list, destructively recreates the user
// collection sized from the first vector, upserts 1-based points and records
// a new uploaded job holding the chunk set. Blocks the caller until all of
// that completes.
func (s *IngestionService) IngestUpload(ctx context.Context, files []UploadedFile) (*UploadResult, error) {
	var chunks []models.Chunk
	names := make([]string, 0, len(files))

	for _, f := range files {
		text, err := s.extractor.ExtractText(f.Path)
		if err != nil {
			return nil, err
		}
		for i, c := range ParagraphChunksBounded(text, uploadChunkMin, uploadChunkMax) {
			chunks = append(chunks, models.Chunk{Source: f.Name, Text: c, Idx: i})
		}
		names = append(names, f.Name)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no usable chunks in uploaded files", ErrExtraction)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := s.store.RecreateCollection(ctx, s.cfg.UserCollection, len(vectors[0]), cosineDistance); err != nil {
		return nil, err
	}

	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vector.Point{
			ID:      uint64(i + 1),
			Vector:  vectors[i],
			Payload: map[string]any{"source": c.Source, "text": c.Text, "idx": c.Idx},
		}
	}
	if err := s.store.Upsert(ctx, s.cfg.UserCollection, points); err != nil {
		return nil, err
	}

	job := s.jobs.Create(models.StatusUploaded, chunks)
	s.metrics.RecordChunksIndexed(s.cfg.UserCollection, len(chunks))
	logger.Info("Upload ingested", "job_id", job.ID, "files", len(files), "chunks", len(chunks))

	return &UploadResult{Files: names, TotalChunks: len(chunks), JobID: job.ID}, nil
}

// IngestSystem indexes the evaluation reference corpus: every PDF in dir is
// paragraph-chunked and tagged type=cv or type=project by filename, then the
// system collection is rebuilt from scratch.
func (s *IngestionService) IngestSystem(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var chunks []models.Chunk
	var types []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}

		text, err := s.extractor.ExtractText(filepath.Join(dir, entry.Name()))
		if err != nil {
			return 0, err
		}

		docType := "cv"
		if strings.Contains(strings.ToLower(entry.Name()), "project") {
			docType = "project"
		}
		for i, c := range ParagraphChunks(text, systemChunkMin) {
			chunks = append(chunks, models.Chunk{Source: entry.Name(), Text: c, Idx: i})
			types = append(types, docType)
		}
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no usable chunks in %s", ErrExtraction, dir)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := s.store.RecreateCollection(ctx, s.cfg.SystemCollection, len(vectors[0]), cosineDistance); err != nil {
		return 0, err
	}

	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vector.Point{
			ID:     uint64(i + 1),
			Vector: vectors[i],
			Payload: map[string]any{
				"source": c.Source,
				"text":   c.Text,
				"idx":    c.Idx,
				"type":   types[i],
			},
		}
	}
	if err := s.store.Upsert(ctx, s.cfg.SystemCollection, points); err != nil {
		return 0, err
	}
	s.metrics.RecordChunksIndexed(s.cfg.SystemCollection, len(chunks))
	return len(chunks), nil
}

// IngestManual indexes the first document found in dir using the
// fixed-window policy, giving full coverage with overlapping context.
func (s *IngestionService) IngestManual(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var name string
	for _, entry := range entries {
		if !entry.IsDir() {
			name = entry.Name()
			break
		}
	}
	if name == "" {
		return 0, nil
	}

	text, err := s.extractor.ExtractText(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}

	pieces := WindowChunks(text, manualWindow, manualOverlap)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("%w: no usable chunks in %s", ErrExtraction, name)
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, err
	}

	if err := s.store.RecreateCollection(ctx, s.cfg.ManualCollection, len(vectors[0]), cosineDistance); err != nil {
		return 0, err
	}

	points := make([]vector.Point, len(pieces))
	for i, piece := range pieces {
		points[i] = vector.Point{
			ID:      uint64(i + 1),
			Vector:  vectors[i],
			Payload: map[string]any{"source": name, "text": piece, "idx": i},
		}
	}
	if err := s.store.Upsert(ctx, s.cfg.ManualCollection, points); err != nil {
		return 0, err
	}
	s.metrics.RecordChunksIndexed(s.cfg.ManualCollection, len(pieces))
	return len(pieces), nil
}
