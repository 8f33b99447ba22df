package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-evaluator/internal/config"
	"cv-evaluator/internal/vector"
	"cv-evaluator/models"
	"cv-evaluator/services"
)

// inlineScheduler records scheduled runs without executing them, standing in
// for the redis-backed task queue.
type inlineScheduler struct {
	scheduled []struct{ jobID, query string }
	err       error
}

func (s *inlineScheduler) ScheduleEvaluation(jobID, query string) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, struct{ jobID, query string }{jobID, query})
	return nil
}

func newTestRouter(jobs *services.JobStore, scheduler EvaluationScheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/evaluate", HandleEvaluate(jobs, scheduler))
	router.GET("/result/:id", HandleResult(jobs))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleEvaluate_TriggersUploadedJob(t *testing.T) {
	jobs := services.NewJobStore()
	job := jobs.Create(models.StatusUploaded, []models.Chunk{{Text: "x"}})
	scheduler := &inlineScheduler{}
	router := newTestRouter(jobs, scheduler)

	w := postJSON(t, router, "/evaluate", gin.H{"jobId": job.ID})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, job.ID, body["jobId"])
	assert.Equal(t, "processing", body["status"])

	require.Len(t, scheduler.scheduled, 1)
	assert.Equal(t, job.ID, scheduler.scheduled[0].jobID)
	assert.Empty(t, scheduler.scheduled[0].query)

	snap, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, snap.Status)
}

func TestHandleEvaluate_UnknownJob(t *testing.T) {
	router := newTestRouter(services.NewJobStore(), &inlineScheduler{})

	w := postJSON(t, router, "/evaluate", gin.H{"jobId": "job_0_0"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "job not found", decodeBody(t, w)["error"])
}

func TestHandleEvaluate_DoubleTriggerConflicts(t *testing.T) {
	jobs := services.NewJobStore()
	job := jobs.Create(models.StatusUploaded, nil)
	scheduler := &inlineScheduler{}
	router := newTestRouter(jobs, scheduler)

	w := postJSON(t, router, "/evaluate", gin.H{"jobId": job.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/evaluate", gin.H{"jobId": job.ID})
	assert.Equal(t, http.StatusConflict, w.Code, "a job already in flight is rejected")
	assert.Len(t, scheduler.scheduled, 1, "only the first trigger schedules a run")
}

func TestHandleEvaluate_QueryCreatesJob(t *testing.T) {
	jobs := services.NewJobStore()
	scheduler := &inlineScheduler{}
	router := newTestRouter(jobs, scheduler)

	w := postJSON(t, router, "/evaluate", gin.H{"query": "what stack does the candidate use?"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	jobID := body["jobId"].(string)
	assert.NotEmpty(t, jobID)

	require.Len(t, scheduler.scheduled, 1)
	assert.Equal(t, "what stack does the candidate use?", scheduler.scheduled[0].query)

	snap, err := jobs.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, snap.Status)
}

func TestHandleEvaluate_MissingFields(t *testing.T) {
	router := newTestRouter(services.NewJobStore(), &inlineScheduler{})

	w := postJSON(t, router, "/evaluate", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvaluate_SchedulerFailure(t *testing.T) {
	jobs := services.NewJobStore()
	job := jobs.Create(models.StatusUploaded, nil)
	router := newTestRouter(jobs, &inlineScheduler{err: assert.AnError})

	w := postJSON(t, router, "/evaluate", gin.H{"jobId": job.ID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	snap, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, snap.Status, "an unschedulable job must not stay processing forever")
}

func TestHandleResult_Polling(t *testing.T) {
	jobs := services.NewJobStore()
	job := jobs.Create(models.StatusProcessing, nil)
	router := newTestRouter(jobs, &inlineScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/result/"+job.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "processing", body["status"])
	assert.Nil(t, body["result"], "result is null until the job completes")

	jobs.Finish(job.ID, models.StatusCompleted, models.EvaluationResult{
		CVMatchRate:    0.8,
		OverallSummary: "good fit",
	})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	body = decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
	result := body["result"].(map[string]any)
	assert.Equal(t, 0.8, result["cv_match_rate"])
	assert.Equal(t, "good fit", result["overall_summary"])
}

type fixedExtractor struct{ text string }

func (f fixedExtractor) ExtractText(path string) (string, error) { return f.text, nil }

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

type nopStore struct{}

func (nopStore) RecreateCollection(ctx context.Context, name string, dim int, distance string) error {
	return nil
}
func (nopStore) Upsert(ctx context.Context, name string, points []vector.Point) error { return nil }
func (nopStore) Search(ctx context.Context, name string, vec []float64, limit int, filter *vector.Filter) ([]vector.Hit, error) {
	return []vector.Hit{{Payload: map[string]any{"text": "rubric"}, Score: 0.9}}, nil
}

type cannedLLM struct{}

func (cannedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "candidate CV"):
		return `{"cv_match_rate": 0.9, "cv_feedback": "strong"}`, nil
	case strings.Contains(prompt, "candidate project"):
		return `{"project_score": 4, "project_feedback": "solid"}`, nil
	default:
		return `{"overall_summary": "hire"}`, nil
	}
}

// syncScheduler runs the evaluation inline instead of deferring it.
type syncScheduler struct{ eval *services.EvaluationService }

func (s *syncScheduler) ScheduleEvaluation(jobID, query string) error {
	s.eval.Run(context.Background(), jobID, query)
	return nil
}

func TestUploadEvaluatePollFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		UserCollection:   "user_docs",
		SystemCollection: "system_docs",
		SearchLimit:      5,
		LLMRetryAttempts: 3,
		MaxFileSize:      1 << 20,
		MaxUploadFiles:   2,
		FileStorageDir:   t.TempDir(),
	}

	jobs := services.NewJobStore()
	extractor := fixedExtractor{text: strings.Repeat("a", 150) + "\n\n" + strings.Repeat("b", 200)}
	ingestion := services.NewIngestionService(cfg, fixedEmbedder{}, nopStore{}, jobs, extractor)
	evaluation := services.NewEvaluationService(cfg, fixedEmbedder{}, nopStore{}, cannedLLM{}, jobs)

	router := gin.New()
	SetupEvaluationRoutes(router, cfg, ingestion, jobs, &syncScheduler{eval: evaluation})

	// Upload one pdf.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "cv.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4 stub"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, "Uploaded and embedded", body["message"])
	assert.Equal(t, float64(2), body["total_chunks"])
	jobID := body["jobId"].(string)
	require.NotEmpty(t, jobID)

	// Trigger the evaluation; the inline scheduler completes it before the
	// acknowledgment is written, so the response still reads processing.
	w = postJSON(t, router, "/evaluate", gin.H{"jobId": jobID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "processing", decodeBody(t, w)["status"])

	// Poll the terminal state.
	req = httptest.NewRequest(http.MethodGet, "/result/"+jobID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
	result := body["result"].(map[string]any)
	assert.Equal(t, 0.9, result["cv_match_rate"])
	assert.Equal(t, float64(4), result["project_score"])
	assert.Equal(t, "hire", result["overall_summary"])
}

func TestHandleResult_Unknown(t *testing.T) {
	router := newTestRouter(services.NewJobStore(), &inlineScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/result/job_0_0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "job not found"}`, w.Body.String())
}
