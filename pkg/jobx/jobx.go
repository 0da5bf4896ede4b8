// Package jobx is a small background job queue. The identity backend uses it
// to deliver transactional email off the request path with retries.
package jobx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/logx"
)

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrJobNotFound    = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Worker already running")
	ErrBackend        = jobxErrors.Register("BACKEND", errx.TypeExternal, 502, "Job backend failure")
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Job is a unit of work to enqueue.
type Job struct {
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"max_retries"`
}

// JobInfo is the stored representation of a job.
type JobInfo struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	MaxRetries int             `json:"max_retries"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HandlerFunc processes a job. A non-nil error triggers retry until
// MaxRetries is exhausted, then the job is failed.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// Queue is the backend contract.
type Queue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errMsg string) (retry bool, err error)
	Retry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteScheduled(ctx context.Context, queues []string) error
}

// WorkerOptions tune the processing loop.
type WorkerOptions struct {
	Concurrency    int
	Queues         []string
	PollInterval   time.Duration
	DequeueTimeout time.Duration
	RetryDelay     time.Duration
}

// WorkerOption mutates WorkerOptions.
type WorkerOption func(*WorkerOptions)

func WithConcurrency(n int) WorkerOption          { return func(o *WorkerOptions) { o.Concurrency = n } }
func WithQueues(qs ...string) WorkerOption        { return func(o *WorkerOptions) { o.Queues = qs } }
func WithRetryDelay(d time.Duration) WorkerOption { return func(o *WorkerOptions) { o.RetryDelay = d } }

func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.PollInterval = d }
}

func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.DequeueTimeout = d }
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Concurrency:    2,
		Queues:         []string{"default"},
		PollInterval:   time.Second,
		DequeueTimeout: 5 * time.Second,
		RetryDelay:     30 * time.Second,
	}
}

// Client enqueues jobs and runs the worker loop.
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

// NewClient creates a job client on top of a backend.
func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{queue: queue, opts: opts, handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler for a job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// Enqueue schedules a job for immediate processing.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	return c.queue.Enqueue(ctx, job)
}

// Start runs the worker loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: starting %d workers on queues %v", c.opts.Concurrency, c.opts.Queues)

	var wg sync.WaitGroup

	// Promote delayed retries back onto the ready queue.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil && ctx.Err() == nil {
					logx.WithError(err).Warn("jobx: promote scheduled failed")
				}
			}
		}
	}()

	for i := 0; i < c.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workLoop(ctx)
		}()
	}

	wg.Wait()
	logx.Info("jobx: workers stopped")
	return nil
}

func (c *Client) workLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warn("jobx: dequeue failed")
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if job == nil {
			continue
		}
		c.process(ctx, job)
	}
}

func (c *Client) process(ctx context.Context, job *JobInfo) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.Warnf("jobx: no handler for job type %q, failing job %s", job.Type, job.ID)
		_, _ = c.queue.Fail(ctx, job.ID, "no handler registered")
		return
	}

	if err := handler(ctx, job); err != nil {
		retry, failErr := c.queue.Fail(ctx, job.ID, err.Error())
		if failErr != nil {
			logx.WithError(failErr).Errorf("jobx: failed to record failure for job %s", job.ID)
			return
		}
		if retry {
			if retryErr := c.queue.Retry(ctx, job.ID, c.opts.RetryDelay); retryErr != nil {
				logx.WithError(retryErr).Errorf("jobx: failed to schedule retry for job %s", job.ID)
			}
			return
		}
		logx.WithFields(logx.Fields{"job_id": job.ID, "type": job.Type}).
			WithError(err).Error("jobx: job exhausted retries")
		return
	}

	if err := c.queue.Complete(ctx, job.ID); err != nil {
		logx.WithError(err).Errorf("jobx: failed to complete job %s", job.ID)
	}
}
