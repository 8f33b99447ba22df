package services

import (
	"context"
	"fmt"
	"strings"

	"cv-evaluator/internal/ai"
	"cv-evaluator/internal/config"
	"cv-evaluator/internal/logger"
	"cv-evaluator/internal/telemetry"
	"cv-evaluator/internal/vector"
	"cv-evaluator/models"
	"cv-evaluator/utils"
)

const cvPrompt = `
Using retrieved Job Description and CV Rubric context below, evaluate the candidate CV.
Return ONLY valid JSON:
{ "cv_match_rate": "", "cv_feedback": "" }

Context:
%s
`

const projectPrompt = `
Using retrieved Case Study Brief and Project Rubric context below, evaluate the candidate project.
Return ONLY valid JSON:
{ "project_score": "", "project_feedback": "" }

Context:
%s
`

const summaryPrompt = `
Synthesize CV evaluation + project evaluation.
Return ONLY valid JSON:
{ "overall_summary": "" }

CV: %s
Project: %s
`

const queryPrompt = `
Using the retrieved document context below, answer the question.
Return ONLY valid JSON:
{ "answer": "" }

Question:
%s

Context:
%s
`

// EvaluationService runs the deferred multi-stage evaluation pipeline and
// writes each job's terminal state.
type EvaluationService struct {
	cfg      *config.Config
	embedder ai.Embedder
	store    VectorStore
	llm      CompletionClient
	jobs     *JobStore
	metrics  *telemetry.Metrics
}

func NewEvaluationService(cfg *config.Config, embedder ai.Embedder, store VectorStore, llm CompletionClient, jobs *JobStore) *EvaluationService {
	return &EvaluationService{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		llm:      llm,
		jobs:     jobs,
	}
}

// WithMetrics attaches the metrics sink. The service works without one.
func (s *EvaluationService) WithMetrics(m *telemetry.Metrics) *EvaluationService {
	s.metrics = m
	return s
}

// Run executes one deferred evaluation to its terminal state. Every failure
// is recorded on the job record, never propagated: the triggering caller was
// already acknowledged and failures must not crash the worker.
func (s *EvaluationService) Run(ctx context.Context, jobID, query string) {
	var err error
	if query != "" {
		err = s.evaluateQuery(ctx, jobID, query)
	} else {
		err = s.evaluate(ctx, jobID)
	}
	if err != nil {
		logger.Error("Evaluation failed", "job_id", jobID, "error", err)
		s.jobs.Finish(jobID, models.StatusFailed, err.Error())
		s.metrics.RecordEvaluation(models.StatusFailed)
		return
	}
	s.metrics.RecordEvaluation(models.StatusCompleted)
}

// evaluate is the structured CV+project case: one query vector from the
// job's chunk text, two filtered retrievals, three strictly sequential LLM
// calls (the synthesis prompt depends on the first two raw outputs), then
// parse and assemble.
func (s *EvaluationService) evaluate(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return err
	}

	texts := make([]string, len(job.Chunks))
	for i, c := range job.Chunks {
		texts[i] = c.Text
	}

	qvec, err := s.embedQuery(ctx, strings.Join(texts, " "))
	if err != nil {
		return err
	}

	cvContext, err := s.systemContext(ctx, qvec, "cv")
	if err != nil {
		return err
	}
	projContext, err := s.systemContext(ctx, qvec, "project")
	if err != nil {
		return err
	}

	cvRaw, err := s.completeWithRetry(ctx, fmt.Sprintf(cvPrompt, cvContext))
	if err != nil {
		return err
	}
	projRaw, err := s.completeWithRetry(ctx, fmt.Sprintf(projectPrompt, projContext))
	if err != nil {
		return err
	}
	summaryRaw, err := s.completeWithRetry(ctx, fmt.Sprintf(summaryPrompt, cvRaw, projRaw))
	if err != nil {
		return err
	}

	var cv struct {
		CVMatchRate any `json:"cv_match_rate"`
		CVFeedback  any `json:"cv_feedback"`
	}
	if err := utils.DecodeModelJSON(cvRaw, &cv); err != nil {
		return fmt.Errorf("%w: cv evaluation: %v", ErrSynthesis, err)
	}

	var proj struct {
		ProjectScore    any `json:"project_score"`
		ProjectFeedback any `json:"project_feedback"`
	}
	if err := utils.DecodeModelJSON(projRaw, &proj); err != nil {
		return fmt.Errorf("%w: project evaluation: %v", ErrSynthesis, err)
	}

	var summary struct {
		OverallSummary any `json:"overall_summary"`
	}
	if err := utils.DecodeModelJSON(summaryRaw, &summary); err != nil {
		return fmt.Errorf("%w: overall summary: %v", ErrSynthesis, err)
	}

	s.jobs.Finish(jobID, models.StatusCompleted, models.EvaluationResult{
		CVMatchRate:     cv.CVMatchRate,
		CVFeedback:      cv.CVFeedback,
		ProjectScore:    proj.ProjectScore,
		ProjectFeedback: proj.ProjectFeedback,
		OverallSummary:  summary.OverallSummary,
	})
	logger.Info("Evaluation completed", "job_id", jobID)
	return nil
}

// evaluateQuery is the ad hoc variant: embed the supplied query, one
// unfiltered retrieval over the uploaded documents, one completion.
func (s *EvaluationService) evaluateQuery(ctx context.Context, jobID, query string) error {
	qvec, err := s.embedQuery(ctx, query)
	if err != nil {
		return err
	}

	hits, err := s.store.Search(ctx, s.cfg.UserCollection, qvec, s.cfg.SearchLimit, nil)
	if err != nil {
		return err
	}

	raw, err := s.completeWithRetry(ctx, fmt.Sprintf(queryPrompt, query, joinHitTexts(hits)))
	if err != nil {
		return err
	}

	var parsed struct {
		Answer any `json:"answer"`
	}
	if err := utils.DecodeModelJSON(raw, &parsed); err != nil {
		return fmt.Errorf("%w: query answer: %v", ErrSynthesis, err)
	}

	s.jobs.Finish(jobID, models.StatusCompleted, models.QueryResult{Answer: parsed.Answer})
	logger.Info("Query evaluation completed", "job_id", jobID)
	return nil
}

func (s *EvaluationService) embedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ai.ErrEmbedding)
	}
	return vecs[0], nil
}

func (s *EvaluationService) systemContext(ctx context.Context, qvec []float64, docType string) (string, error) {
	hits, err := s.store.Search(ctx, s.cfg.SystemCollection, qvec, s.cfg.SearchLimit, &vector.Filter{Key: "type", Value: docType})
	if err != nil {
		return "", err
	}
	return joinHitTexts(hits), nil
}

// completeWithRetry wraps one LLM call with the linear-backoff retry policy.
// Each pipeline stage retries independently; a failure in a later stage never
// re-runs an earlier one.
func (s *EvaluationService) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	out, err := utils.Retry(ctx, s.cfg.LLMRetryAttempts, s.cfg.LLMRetryBackoff, func() (string, error) {
		return s.llm.Complete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return out, nil
}

func joinHitTexts(hits []vector.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if text, ok := h.Payload["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
