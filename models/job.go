package models

import "time"

// Job status values. A job reaches exactly one terminal status (completed or
// failed) and is never mutated afterwards.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Chunk is one bounded span of a document's extracted text, the unit of
// embedding and retrieval.
type Chunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Idx    int    `json:"idx"`
}

// Job tracks one evaluation request's lifecycle. The chunk set is fixed at
// creation; Status and Result are replaced wholesale on each transition.
type Job struct {
	ID        string    `json:"jobId"`
	Status    string    `json:"status"`
	Chunks    []Chunk   `json:"-"`
	Result    any       `json:"result"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// EvaluationResult is the flattened structure assembled from the three model
// outputs. The score fields are typed any because the model is free to emit
// them as strings or numbers.
type EvaluationResult struct {
	CVMatchRate     any `json:"cv_match_rate"`
	CVFeedback      any `json:"cv_feedback"`
	ProjectScore    any `json:"project_score"`
	ProjectFeedback any `json:"project_feedback"`
	OverallSummary  any `json:"overall_summary"`
}

// QueryResult is the result shape for ad hoc query evaluations.
type QueryResult struct {
	Answer any `json:"answer"`
}
