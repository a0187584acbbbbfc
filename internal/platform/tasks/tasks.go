package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeScraperRun = "scraper:run"

	defaultQueue = "default"
	// uniqueFor keeps the queue from holding two runs of one source at once.
	uniqueFor = 30 * time.Minute
)

type RunPayload struct {
	SourceID string `json:"source_id"`
}

func NewRunTask(sourceID string) (*asynq.Task, error) {
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}
	payload, err := json.Marshal(RunPayload{SourceID: sourceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeScraperRun, payload), nil
}

func ParseRunTask(t *asynq.Task) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	if p.SourceID == "" {
		return p, fmt.Errorf("%s payload without source id", t.Type())
	}
	return p, nil
}

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	c          Enqueuer
	maxRetries int
}

func New(opt asynq.RedisConnOpt, maxRetries int) *Client {
	return NewWithEnqueuer(asynq.NewClient(opt), maxRetries)
}

func NewWithEnqueuer(e Enqueuer, maxRetries int) *Client {
	return &Client{c: e, maxRetries: maxRetries}
}

func (t *Client) Close() error { return t.c.Close() }

func (t *Client) Enqueue(ctx context.Context, task *asynq.Task, queue string) error {
	_, err := t.c.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(t.maxRetries), asynq.Unique(uniqueFor))
	return err
}

// Dispatch queues a run of sourceID. A run already waiting in the queue is not an error.
func (t *Client) Dispatch(ctx context.Context, sourceID string) error {
	task, err := NewRunTask(sourceID)
	if err != nil {
		return err
	}
	if err := t.Enqueue(ctx, task, defaultQueue); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue %s: %w", sourceID, err)
	}
	return nil
}
