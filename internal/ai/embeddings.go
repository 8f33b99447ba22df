package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"cv-evaluator/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmbedding marks failures of the embedding provider: a non-zero exit,
// a short result, or output that cannot be parsed into vectors.
var ErrEmbedding = errors.New("embedding failed")

// Embedder converts an ordered list of texts into an index-aligned list of
// vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// NewEmbedder builds the configured embedding provider wrapped with batching.
// Default provider is the local fastembed python helper.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "fastembed", "":
		return NewBatchedEmbedder(NewFastembedClient(cfg.FastembedPython, cfg.FastembedScript), cfg.EmbedBatchSize), nil

	case "google":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		google := &GoogleEmbedder{client: client, model: cfg.GoogleEmbeddingsModel}
		return NewBatchedEmbedder(google, cfg.EmbedBatchSize), nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// BatchedEmbedder splits large inputs into fixed-size batches, embeds each
// batch sequentially and concatenates the results preserving input order.
// Batching bounds the provider's per-call payload size.
type BatchedEmbedder struct {
	inner     Embedder
	batchSize int
}

func NewBatchedEmbedder(inner Embedder, batchSize int) *BatchedEmbedder {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &BatchedEmbedder{inner: inner, batchSize: batchSize}
}

func (b *BatchedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// FastembedClient shells out to the python fastembed helper. Texts go in as a
// JSON array on stdin; vectors come back as a JSON array of arrays on stdout.
type FastembedClient struct {
	python string
	script string
}

func NewFastembedClient(python, script string) *FastembedClient {
	return &FastembedClient{python: python, script: script}
}

func (f *FastembedClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.python, f.script)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: python helper failed: %s", ErrEmbedding, stderr.String())
	}

	var vectors [][]float64
	if err := json.Unmarshal(stdout.Bytes(), &vectors); err != nil {
		return nil, fmt.Errorf("%w: failed parsing python output: %v", ErrEmbedding, err)
	}
	return vectors, nil
}

// GoogleEmbedder uses the Google Generative AI embeddings API. The API is
// single-text, so inputs are embedded one by one.
type GoogleEmbedder struct {
	client *genai.Client
	model  string
}

func (g *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	model := g.client.EmbeddingModel(g.model)

	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("%w: no embedding returned", ErrEmbedding)
		}
		vec := make([]float64, len(resp.Embedding.Values))
		for i, v := range resp.Embedding.Values {
			vec[i] = float64(v)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (g *GoogleEmbedder) Close() error {
	return g.client.Close()
}
