package services

import (
	"fmt"
	"sync"
	"time"

	"cv-evaluator/models"
)

// JobStore is the process-scoped in-memory job table. It starts empty, is
// not persisted across restarts, and is the rendezvous point between the
// HTTP handlers and the deferred evaluation tasks. Records are replaced
// wholesale on each status transition; transitions are serialized by the
// store lock.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	seq  uint64
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.Job)}
}

// nextID derives a job id from the creation instant. The sequence suffix
// keeps ids unique when two jobs are created in the same millisecond.
func (s *JobStore) nextID() string {
	s.seq++
	return fmt.Sprintf("job_%d_%d", time.Now().UnixMilli(), s.seq)
}

// Create records a new job with the given initial status and chunk set. The
// chunk set is immutable for the job's lifetime.
func (s *JobStore) Create(status string, chunks []models.Chunk) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &models.Job{
		ID:        s.nextID(),
		Status:    status,
		Chunks:    chunks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	return *job
}

// Get returns a snapshot of the current job record.
func (s *JobStore) Get(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	return *job, nil
}

// StartProcessing atomically transitions uploaded -> processing and returns
// the job's chunk set. A job already in flight or terminal is rejected,
// which closes the double-trigger race between concurrent evaluation
// requests against the same id.
func (s *JobStore) StartProcessing(id string) ([]models.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	switch job.Status {
	case models.StatusProcessing:
		return nil, ErrJobBusy
	case models.StatusCompleted, models.StatusFailed:
		return nil, ErrJobFinished
	}

	s.jobs[id] = &models.Job{
		ID:        job.ID,
		Status:    models.StatusProcessing,
		Chunks:    job.Chunks,
		CreatedAt: job.CreatedAt,
		UpdatedAt: time.Now(),
	}
	return job.Chunks, nil
}

// Finish replaces the record wholesale with a terminal status and result.
// A job that already reached a terminal status is left untouched, so an
// earlier terminal write always wins.
func (s *JobStore) Finish(id, status string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return
	}

	s.jobs[id] = &models.Job{
		ID:        job.ID,
		Status:    status,
		Chunks:    job.Chunks,
		Result:    result,
		CreatedAt: job.CreatedAt,
		UpdatedAt: time.Now(),
	}
}

// Sweep evicts terminal jobs whose last update is older than ttl, keeping
// the in-memory table bounded. Returns the number of evicted records.
func (s *JobStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for id, job := range s.jobs {
		if job.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the current number of job records.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
