package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrIndex marks vector store failures: collection create, upsert or search.
var ErrIndex = errors.New("vector index operation failed")

// Point is one indexed vector with its metadata payload. IDs are 1-based and
// dense per collection; points are never mutated after upsert.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Hit is one search result, consumed immediately to build prompt context.
type Hit struct {
	Payload map[string]any `json:"payload"`
	Score   float64        `json:"score"`
}

// Filter restricts search results to payloads whose field equals the value.
type Filter struct {
	Key   string
	Value string
}

// Client is a minimal REST client to Qdrant.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// RecreateCollection destructively replaces the named collection with an
// empty one configured for dim-length vectors and the given distance metric.
// Prior points are discarded; ingestion models "re-index everything".
func (c *Client) RecreateCollection(ctx context.Context, name string, dim int, distance string) error {
	if dim <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", ErrIndex, dim)
	}

	// Drop any existing collection first. Qdrant returns 404 when it does
	// not exist, which is fine here.
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", c.url, name), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete collection: %v", ErrIndex, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete collection %s: %s", ErrIndex, name, resp.Status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": distance,
		},
	}
	return c.putJSON(ctx, fmt.Sprintf("%s/collections/%s", c.url, name), body)
}

// Upsert inserts or overwrites points by id, waiting for the write to land.
func (c *Client) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", c.url, name), body)
}

// Search returns up to limit nearest points by the collection's distance
// metric, optionally restricted by an equality filter on a payload field.
func (c *Client) Search(ctx context.Context, name string, vector []float64, limit int, filter *Filter) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": filter.Key, "match": map[string]any{"value": filter.Value}},
			},
		}
	}

	var resp struct {
		Result []Hit `json:"result"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", c.url, name), req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: PUT %s: %v", ErrIndex, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: PUT %s: %s", ErrIndex, url, resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrIndex, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST %s: %s", ErrIndex, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
