package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"cv-evaluator/internal/logger"
)

// GroqClient talks to Groq's OpenAI-compatible chat completions API. Every
// call goes through a circuit breaker and a request rate limiter sized for
// the free tier.
type GroqClient struct {
	apiKey      string
	apiURL      string
	model       string
	temperature float64
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGroqClient(apiKey, apiURL, model string) *GroqClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GroqAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// Groq free tier allows 30 RPM; keep a 10% buffer
	rateLimiter := rate.NewLimiter(rate.Limit(30.0*0.9/60.0), 3)

	return &GroqClient{
		apiKey:      apiKey,
		apiURL:      apiURL,
		model:       model,
		temperature: 0.1,
		client:      &http.Client{Timeout: 60 * time.Second},
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Complete issues one completion request and returns the raw model text.
func (g *GroqClient) Complete(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("groq-client")
	ctx, span := tracer.Start(ctx, "groq.chat_completion")
	defer span.End()

	span.SetAttributes(
		attribute.String("groq.model", g.model),
		attribute.Int("groq.prompt_chars", len(prompt)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.complete(ctx, prompt)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("groq.error", true))
		return "", err
	}

	span.SetAttributes(attribute.Bool("groq.success", true))
	return result.(string), nil
}

func (g *GroqClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("groq completion error %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("groq returned empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
