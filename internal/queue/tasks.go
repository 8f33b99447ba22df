package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"cv-evaluator/internal/logger"
)

const TaskEvaluate = "evaluation:run"

type EvaluatePayload struct {
	JobID string `json:"job_id"`
	Query string `json:"query,omitempty"`
}

// NewEvaluateTask builds the deferred evaluation task. The delay decouples
// the HTTP acknowledgment from the slow LLM pipeline. MaxRetry is zero:
// retries live inside the pipeline and any pipeline failure is a terminal
// job state, so asynq must never redeliver.
func NewEvaluateTask(jobID, query string, delay time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(EvaluatePayload{JobID: jobID, Query: query})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEvaluate,
		payload,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
	), nil
}

// Client enqueues deferred evaluation tasks. It satisfies the routes
// package's EvaluationScheduler.
type Client struct {
	client *asynq.Client
	delay  time.Duration
}

func NewClient(redisOpt asynq.RedisClientOpt, delay time.Duration) *Client {
	return &Client{client: asynq.NewClient(redisOpt), delay: delay}
}

func (c *Client) ScheduleEvaluation(jobID, query string) error {
	task, err := NewEvaluateTask(jobID, query, c.delay)
	if err != nil {
		return err
	}
	info, err := c.client.Enqueue(task)
	if err != nil {
		return err
	}
	logger.Debug("Evaluation task enqueued", "job_id", jobID, "task_id", info.ID)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Evaluator runs one deferred evaluation to its terminal state.
type Evaluator interface {
	Run(ctx context.Context, jobID, query string)
}

// TaskProcessor adapts the evaluation service to asynq handlers.
type TaskProcessor struct {
	evaluator Evaluator
}

func NewTaskProcessor(evaluator Evaluator) *TaskProcessor {
	return &TaskProcessor{evaluator: evaluator}
}

func (p *TaskProcessor) HandleEvaluate(ctx context.Context, t *asynq.Task) error {
	var payload EvaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Running deferred evaluation", "job_id", payload.JobID)
	p.evaluator.Run(ctx, payload.JobID, payload.Query)
	return nil
}
