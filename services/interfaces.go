package services

import (
	"context"

	"cv-evaluator/internal/vector"
)

// VectorStore is the collection-oriented vector index the pipeline writes to
// and searches. RecreateCollection has destructive full-replace semantics.
type VectorStore interface {
	RecreateCollection(ctx context.Context, name string, dim int, distance string) error
	Upsert(ctx context.Context, name string, points []vector.Point) error
	Search(ctx context.Context, name string, vec []float64, limit int, filter *vector.Filter) ([]vector.Hit, error)
}

// CompletionClient issues one LLM completion request and returns the raw
// model text, which is expected to contain a JSON object.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TextExtractor reads a document's text content from disk.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}
