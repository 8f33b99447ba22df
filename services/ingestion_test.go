package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-evaluator/internal/vector"
	"cv-evaluator/models"
)

// recordingStore captures every collection mutation for assertions.
type recordingStore struct {
	recreated map[string]int // collection -> vector dim
	upserts   map[string][]vector.Point
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		recreated: make(map[string]int),
		upserts:   make(map[string][]vector.Point),
	}
}

func (r *recordingStore) RecreateCollection(ctx context.Context, name string, dim int, distance string) error {
	if distance != "Cosine" {
		return errors.New("unexpected distance metric")
	}
	r.recreated[name] = dim
	return nil
}

func (r *recordingStore) Upsert(ctx context.Context, name string, points []vector.Point) error {
	r.upserts[name] = points
	return nil
}

func (r *recordingStore) Search(ctx context.Context, name string, vec []float64, limit int, filter *vector.Filter) ([]vector.Hit, error) {
	return nil, nil
}

// fileExtractor maps file base names to canned text.
type fileExtractor struct {
	texts map[string]string
	err   error
}

func (f fileExtractor) ExtractText(path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[filepath.Base(path)]
	if !ok {
		return "", errors.New("unknown file")
	}
	return text, nil
}

func paragraph(n int) string {
	return strings.Repeat("x", n)
}

func TestIngestUpload(t *testing.T) {
	// Two qualifying paragraphs per file; the short and oversized ones drop.
	text := paragraph(150) + "\n\n" + paragraph(50) + "\n\n" + paragraph(300) + "\n\n" + paragraph(2500)
	extractor := fileExtractor{texts: map[string]string{
		"cv.pdf":      text,
		"project.pdf": paragraph(200),
	}}

	store := newRecordingStore()
	jobs := NewJobStore()
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, store, jobs, extractor)

	result, err := svc.IngestUpload(context.Background(), []UploadedFile{
		{Name: "cv.pdf", Path: "/tmp/cv.pdf"},
		{Name: "project.pdf", Path: "/tmp/project.pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cv.pdf", "project.pdf"}, result.Files)
	assert.Equal(t, 3, result.TotalChunks)
	assert.NotEmpty(t, result.JobID)

	// Collection rebuilt with the embedding dimensionality.
	assert.Equal(t, 3, store.recreated["user_docs"])

	points := store.upserts["user_docs"]
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, uint64(i+1), p.ID, "point ids are 1-based")
		assert.Contains(t, p.Payload, "source")
		assert.Contains(t, p.Payload, "text")
		assert.Contains(t, p.Payload, "idx")
	}
	assert.Equal(t, "cv.pdf", points[0].Payload["source"])
	assert.Equal(t, 0, points[0].Payload["idx"])
	assert.Equal(t, 1, points[1].Payload["idx"], "idx restarts per source file")
	assert.Equal(t, 0, points[2].Payload["idx"])

	// The job starts in uploaded state holding the chunk set.
	job, err := jobs.Get(result.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, job.Status)
	chunks, err := jobs.StartProcessing(result.JobID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}

func TestIngestUpload_NoUsableChunks(t *testing.T) {
	extractor := fileExtractor{texts: map[string]string{"cv.pdf": "too short"}}
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, newRecordingStore(), NewJobStore(), extractor)

	_, err := svc.IngestUpload(context.Background(), []UploadedFile{{Name: "cv.pdf", Path: "/tmp/cv.pdf"}})
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestIngestUpload_ExtractionError(t *testing.T) {
	extractor := fileExtractor{err: errors.New("corrupt pdf")}
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, newRecordingStore(), NewJobStore(), extractor)

	_, err := svc.IngestUpload(context.Background(), []UploadedFile{{Name: "cv.pdf", Path: "/tmp/cv.pdf"}})
	assert.Error(t, err)
}

func TestIngestSystem(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"job_description.pdf", "project_rubric.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0644))
	}

	extractor := fileExtractor{texts: map[string]string{
		"job_description.pdf": paragraph(90) + "\n\n" + paragraph(120),
		"project_rubric.pdf":  paragraph(100),
	}}

	store := newRecordingStore()
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, store, NewJobStore(), extractor)

	count, err := svc.IngestSystem(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "non-pdf files are skipped")

	points := store.upserts["system_docs"]
	require.Len(t, points, 3)

	byType := map[string]int{}
	for _, p := range points {
		byType[p.Payload["type"].(string)]++
	}
	assert.Equal(t, 2, byType["cv"])
	assert.Equal(t, 1, byType["project"], "filenames containing 'project' are tagged as project docs")
}

func TestIngestManual(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handbook.pdf"), []byte("stub"), 0644))

	extractor := fileExtractor{texts: map[string]string{
		"handbook.pdf": strings.Repeat("z", 2000),
	}}

	store := newRecordingStore()
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, store, NewJobStore(), extractor)

	count, err := svc.IngestManual(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "2000 chars at window 800 stride 700 yields 3 chunks")

	points := store.upserts["manual_ingest"]
	require.Len(t, points, 3)
	assert.Equal(t, "handbook.pdf", points[0].Payload["source"])
}

func TestIngestManual_EmptyDir(t *testing.T) {
	svc := NewIngestionService(evalTestConfig(), &stubEmbedder{}, newRecordingStore(), NewJobStore(), fileExtractor{})

	count, err := svc.IngestManual(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, count)
}
