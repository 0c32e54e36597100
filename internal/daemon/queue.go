package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/retry"
)

// BuildType records what triggered a build job.
type BuildType string

const (
	BuildTypeManual    BuildType = "manual"
	BuildTypeScheduled BuildType = "scheduled"
	BuildTypeWebhook   BuildType = "webhook"
)

// Priority records how urgent the trigger considered the build. Jobs are
// served in arrival order; priority is carried on the job for the admin API
// and logs.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// JobStatus is the queue-level lifecycle of a job, distinct from the
// pipeline outcome recorded on completion.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Job is one queued documentation build.
type Job struct {
	ID          string     `json:"id"`
	Project     string     `json:"project"`
	Type        BuildType  `json:"type"`
	Priority    Priority   `json:"priority"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Attempts    int        `json:"attempts,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	Commit      string     `json:"commit,omitempty"`
	Error       string     `json:"error,omitempty"`

	// snapshot holds the project configuration captured at enqueue time, so
	// a config reload never changes a build already in flight.
	snapshot *config.ProjectConfig
	cancel   context.CancelFunc
}

// JobRunner executes one build attempt for a job. The report is non-nil
// whenever the pipeline got far enough to produce one.
type JobRunner interface {
	RunJob(ctx context.Context, job *Job) (*pipeline.RunReport, error)
}

// JobRunnerFunc adapts a function to the JobRunner interface.
type JobRunnerFunc func(ctx context.Context, job *Job) (*pipeline.RunReport, error)

func (f JobRunnerFunc) RunJob(ctx context.Context, job *Job) (*pipeline.RunReport, error) {
	return f(ctx, job)
}

var (
	// ErrQueueFull reports that the buffered job channel has no room.
	ErrQueueFull = errors.New("build queue is full")
	// ErrQueueStopped reports an enqueue after shutdown began.
	ErrQueueStopped = errors.New("build queue is shutting down")
	// ErrProjectQueued reports that a build for the same project is already
	// waiting, so the new request was coalesced into it.
	ErrProjectQueued = errors.New("a build for this project is already queued")
)

// Queue runs build jobs on a fixed worker pool. Jobs for a project that
// already has a build waiting are coalesced; transient failures are retried
// with backoff from the configured policy.
type Queue struct {
	jobs     chan *Job
	size     int
	workers  int
	runner   JobRunner
	policy   retry.Policy
	recorder metrics.Recorder

	mu       sync.RWMutex
	pending  map[string]*Job // project -> queued job, cleared on dequeue
	active   map[string]*Job // job ID -> running job
	recent   []*Job          // finished jobs, newest first
	keepDone int

	draining atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewQueue sizes the queue from config and wires the runner. A nil recorder
// disables metrics.
func NewQueue(cfg config.QueueConfig, runner JobRunner, policy retry.Policy, recorder metrics.Recorder) *Queue {
	size := cfg.Size
	if size <= 0 {
		size = 16
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Queue{
		jobs:     make(chan *Job, size),
		size:     size,
		workers:  workers,
		runner:   runner,
		policy:   policy,
		recorder: recorder,
		pending:  make(map[string]*Job),
		active:   make(map[string]*Job),
		keepDone: 50,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("starting build queue", "workers", q.workers, "capacity", q.size)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop drains the queue: no new jobs are accepted and workers finish their
// current build. When ctx expires before the drain completes, the remaining
// active jobs are canceled and given a short grace period to unwind.
func (q *Queue) Stop(ctx context.Context) error {
	if !q.draining.CompareAndSwap(false, true) {
		return nil
	}
	slog.Info("stopping build queue", "queued", len(q.jobs))
	close(q.stopChan)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("build queue stopped")
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	select {
	case <-done:
		slog.Info("build queue stopped after canceling active jobs")
		return nil
	case <-time.After(5 * time.Second):
		return ferrors.NewError(ferrors.CategoryDaemon, "build queue workers did not exit").Build()
	}
}

// Enqueue adds a job. A job for a project that already has a queued (not yet
// running) build is dropped and ErrProjectQueued returned, so a webhook burst
// produces one build instead of many.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil || job.ID == "" || job.Project == "" || job.snapshot == nil {
		return ferrors.ValidationError("build job needs an ID and a project").Build()
	}
	if q.draining.Load() {
		return ErrQueueStopped
	}

	q.mu.Lock()
	if _, dup := q.pending[job.Project]; dup {
		q.mu.Unlock()
		return ErrProjectQueued
	}
	job.Status = JobQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	q.pending[job.Project] = job
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		slog.Info("build job enqueued",
			logfields.JobID(job.ID),
			logfields.Project(job.Project),
			logfields.JobType(string(job.Type)),
			logfields.JobPriority(int(job.Priority)))
		return nil
	default:
		q.mu.Lock()
		delete(q.pending, job.Project)
		q.mu.Unlock()
		return ErrQueueFull
	}
}

// Depth returns the number of jobs waiting in the channel.
func (q *Queue) Depth() int { return len(q.jobs) }

// Capacity returns the channel buffer size.
func (q *Queue) Capacity() int { return q.size }

// Workers returns the size of the worker pool.
func (q *Queue) Workers() int { return q.workers }

// Active returns copies of the jobs currently being built.
func (q *Queue) Active() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.active))
	for _, job := range q.active {
		out = append(out, *job)
	}
	return out
}

// Recent returns copies of finished jobs, newest first.
func (q *Queue) Recent() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.recent))
	for _, job := range q.recent {
		out = append(out, *job)
	}
	return out
}

func (q *Queue) worker(ctx context.Context, name string) {
	defer q.wg.Done()
	slog.Debug("build worker started", logfields.Worker(name))

	for {
		select {
		case <-ctx.Done():
			slog.Debug("build worker stopped by context", logfields.Worker(name))
			return
		case <-q.stopChan:
			slog.Debug("build worker stopped by drain", logfields.Worker(name))
			return
		case job := <-q.jobs:
			if job != nil {
				q.process(ctx, job, name)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job, worker string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	q.mu.Lock()
	if q.pending[job.Project] == job {
		delete(q.pending, job.Project)
	}
	job.cancel = cancel
	job.Status = JobRunning
	job.StartedAt = &start
	q.active[job.ID] = job
	q.mu.Unlock()
	q.recorder.SetQueueDepth(len(q.jobs))

	slog.Info("build job started",
		logfields.JobID(job.ID),
		logfields.Project(job.Project),
		logfields.JobType(string(job.Type)),
		logfields.Worker(worker))

	report, err := q.runWithRetry(jobCtx, job)

	end := time.Now()
	q.mu.Lock()
	delete(q.active, job.ID)
	job.cancel = nil
	job.CompletedAt = &end
	job.Duration = end.Sub(start).Truncate(time.Millisecond).String()
	if report != nil {
		job.Outcome = string(report.Outcome)
		job.Commit = report.Commit
	}
	switch {
	case err == nil:
		job.Status = JobCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		job.Status = JobCanceled
		job.Error = err.Error()
	default:
		job.Status = JobFailed
		job.Error = err.Error()
	}
	q.rememberLocked(job)
	q.mu.Unlock()

	if err != nil {
		slog.Error("build job finished with error",
			logfields.JobID(job.ID),
			logfields.Project(job.Project),
			logfields.JobStatus(string(job.Status)),
			slog.String("duration", job.Duration),
			logfields.Error(err))
		return
	}
	slog.Info("build job finished",
		logfields.JobID(job.ID),
		logfields.Project(job.Project),
		logfields.Outcome(job.Outcome),
		slog.String("duration", job.Duration))
}

// runWithRetry reruns the job after transient failures, backing off per the
// policy. Permanent failures and context cancellation stop immediately.
func (q *Queue) runWithRetry(ctx context.Context, job *Job) (*pipeline.RunReport, error) {
	var (
		report *pipeline.RunReport
		err    error
	)
	for attempt := 0; ; attempt++ {
		job.Attempts = attempt + 1
		report, err = q.runner.RunJob(ctx, job)
		if err == nil || ctx.Err() != nil {
			return report, err
		}
		if !isTransientFailure(err) || attempt >= q.policy.MaxRetries {
			return report, err
		}
		delay := q.policy.Delay(attempt + 1)
		slog.Warn("transient build failure, retrying",
			logfields.JobID(job.ID),
			logfields.Project(job.Project),
			slog.Int("attempt", job.Attempts),
			slog.Duration("delay", delay),
			logfields.Error(err))
		select {
		case <-ctx.Done():
			return report, err
		case <-time.After(delay):
		}
	}
}

// isTransientFailure decides whether a failed build is worth rerunning.
// Network hiccups and rate limits are; build and config errors are not.
func isTransientFailure(err error) bool {
	var netErr *git.NetworkTimeoutError
	if errors.As(err, &netErr) {
		return true
	}
	var rateErr *git.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	if classified, ok := ferrors.AsClassified(err); ok {
		return classified.IsTransient()
	}
	return false
}

func (q *Queue) rememberLocked(job *Job) {
	q.recent = append([]*Job{job}, q.recent...)
	if len(q.recent) > q.keepDone {
		q.recent = q.recent[:q.keepDone]
	}
}
