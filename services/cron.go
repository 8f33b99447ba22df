package services

import (
	"time"

	"github.com/go-co-op/gocron"

	"cv-evaluator/internal/logger"
)

// SweeperService periodically evicts terminal jobs past their TTL so the
// in-memory job table stays bounded over the process lifetime.
type SweeperService struct {
	scheduler *gocron.Scheduler
	jobs      *JobStore
	ttl       time.Duration
}

func NewSweeperService(jobs *JobStore, ttl time.Duration) *SweeperService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &SweeperService{scheduler: s, jobs: jobs, ttl: ttl}
}

func (s *SweeperService) Start() error {
	_, err := s.scheduler.Every(15 * time.Minute).Tag("job-sweep").Do(func() {
		if evicted := s.jobs.Sweep(s.ttl); evicted > 0 {
			logger.Info("Swept terminal jobs", "evicted", evicted, "remaining", s.jobs.Len())
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *SweeperService) Stop() {
	s.scheduler.Stop()
}
