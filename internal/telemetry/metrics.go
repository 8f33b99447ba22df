package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ChunksIndexed   metric.Int64Counter
	Evaluations     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("cv-evaluator")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingestion.chunks.indexed",
		metric.WithDescription("Total chunks embedded and indexed"),
	)
	if err != nil {
		return nil, err
	}

	evaluations, err := meter.Int64Counter(
		"evaluation.jobs.finished",
		metric.WithDescription("Evaluation jobs reaching a terminal status"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ChunksIndexed:   chunksIndexed,
		Evaluations:     evaluations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChunksIndexed records how many chunks landed in a collection
func (m *Metrics) RecordChunksIndexed(collection string, count int) {
	if m == nil {
		return
	}
	m.ChunksIndexed.Add(context.Background(), int64(count),
		metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordEvaluation records one finished evaluation by terminal status
func (m *Metrics) RecordEvaluation(status string) {
	if m == nil {
		return
	}
	m.Evaluations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("job.status", status)))
}
