package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/retry"
)

// scriptedRunner returns one scripted result per call, in order. Calls past
// the script succeed with an empty report.
type scriptedRunner struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   int
	// block, when non-nil, is closed by the test to release a running job.
	block   chan struct{}
	started chan struct{}
}

type scriptedResult struct {
	report *pipeline.RunReport
	err    error
}

func (s *scriptedRunner) RunJob(ctx context.Context, job *Job) (*pipeline.RunReport, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	block := s.block
	started := s.started
	s.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < len(s.results) {
		return s.results[idx].report, s.results[idx].err
	}
	return &pipeline.RunReport{BuildID: job.ID, Project: job.Project, Outcome: pipeline.OutcomeSuccess}, nil
}

func (s *scriptedRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastPolicy() retry.Policy {
	return retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: 5 * time.Millisecond, MaxRetries: 2}
}

func testJob(id, project string) *Job {
	return &Job{
		ID:       id,
		Project:  project,
		Type:     BuildTypeManual,
		Priority: PriorityNormal,
		snapshot: &config.ProjectConfig{Name: project},
	}
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}

func TestQueueEnqueueValidation(t *testing.T) {
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, &scriptedRunner{}, fastPolicy(), nil)

	cases := []*Job{
		nil,
		{Project: "p", snapshot: &config.ProjectConfig{Name: "p"}},          // no ID
		{ID: "1", snapshot: &config.ProjectConfig{Name: "p"}},               // no project
		{ID: "1", Project: "p"},                                             // no snapshot
	}
	for i, job := range cases {
		err := q.Enqueue(job)
		if err == nil {
			t.Errorf("case %d: enqueue accepted an invalid job", i)
			continue
		}
		if got := ferrors.GetCategory(err); got != ferrors.CategoryValidation {
			t.Errorf("case %d: category = %s, want validation", i, got)
		}
	}
}

func TestQueueCoalescesQueuedProject(t *testing.T) {
	// No workers started: jobs stay pending.
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, &scriptedRunner{}, fastPolicy(), nil)

	if err := q.Enqueue(testJob("a", "d3d12")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := q.Enqueue(testJob("b", "d3d12"))
	if !errors.Is(err, ErrProjectQueued) {
		t.Fatalf("second enqueue for same project: err = %v, want ErrProjectQueued", err)
	}
	// A different project is unaffected by the coalescing.
	if err := q.Enqueue(testJob("c", "wgpu")); err != nil {
		t.Fatalf("other project enqueue: %v", err)
	}
	if q.Depth() != 2 {
		t.Errorf("depth = %d, want 2", q.Depth())
	}
}

func TestQueueFullRejectsAndClearsPending(t *testing.T) {
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 1}, &scriptedRunner{}, fastPolicy(), nil)

	if err := q.Enqueue(testJob("a", "one")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(testJob("b", "two")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	// The rejected project must not stay marked as pending, or its next
	// enqueue would be coalesced into a job that never existed.
	if err := q.Enqueue(testJob("c", "two")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("retry after full: err = %v, want ErrQueueFull again (not ErrProjectQueued)", err)
	}
}

func TestQueueProcessesJobToCompletion(t *testing.T) {
	runner := &scriptedRunner{results: []scriptedResult{{
		report: &pipeline.RunReport{Outcome: pipeline.OutcomeSuccess, Commit: "abc123def"},
	}}}
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, runner, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	if err := q.Enqueue(testJob("job-1", "d3d12")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(q.Recent()) == 1 })
	done := q.Recent()[0]
	if done.Status != JobCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Outcome != string(pipeline.OutcomeSuccess) {
		t.Errorf("outcome = %q, want success", done.Outcome)
	}
	if done.Commit != "abc123def" {
		t.Errorf("commit = %q", done.Commit)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
	if done.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", done.Attempts)
	}
	if len(q.Active()) != 0 {
		t.Errorf("active jobs after completion: %v", q.Active())
	}
	// The project can be enqueued again once its job left the pending set.
	if err := q.Enqueue(testJob("job-2", "d3d12")); err != nil {
		t.Errorf("re-enqueue after completion: %v", err)
	}
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	transient := &git.NetworkTimeoutError{Op: "fetch", URL: "https://example.com/r.git", Err: errors.New("i/o timeout")}
	runner := &scriptedRunner{results: []scriptedResult{
		{err: transient},
		{err: transient},
		{report: &pipeline.RunReport{Outcome: pipeline.OutcomeSuccess}},
	}}
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, runner, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	if err := q.Enqueue(testJob("job-1", "d3d12")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(q.Recent()) == 1 })

	done := q.Recent()[0]
	if done.Status != JobCompleted {
		t.Errorf("status = %s, want completed after retries (err %q)", done.Status, done.Error)
	}
	if done.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", done.Attempts)
	}
}

func TestQueueDoesNotRetryPermanentFailures(t *testing.T) {
	permanent := ferrors.BuildError("cargo doc failed").Build()
	runner := &scriptedRunner{results: []scriptedResult{
		{report: &pipeline.RunReport{Outcome: pipeline.OutcomeFailed}, err: permanent},
	}}
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, runner, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	if err := q.Enqueue(testJob("job-1", "d3d12")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(q.Recent()) == 1 })

	done := q.Recent()[0]
	if done.Status != JobFailed {
		t.Errorf("status = %s, want failed", done.Status)
	}
	if runner.callCount() != 1 {
		t.Errorf("runner ran %d times, want 1 (build errors are not transient)", runner.callCount())
	}
	if done.Outcome != string(pipeline.OutcomeFailed) {
		t.Errorf("outcome = %q, want failed", done.Outcome)
	}
}

func TestQueueStopWaitsForActiveJob(t *testing.T) {
	runner := &scriptedRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, runner, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	if err := q.Enqueue(testJob("job-1", "d3d12")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-runner.started

	stopDone := make(chan error, 1)
	go func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		stopDone <- q.Stop(sctx)
	}()

	// Stop must not return while the job is still running.
	select {
	case err := <-stopDone:
		t.Fatalf("Stop returned before the active job finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	if err := <-stopDone; err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := q.Enqueue(testJob("job-2", "d3d12")); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("enqueue after stop: err = %v, want ErrQueueStopped", err)
	}
	waitFor(t, time.Second, func() bool { return len(q.Recent()) == 1 })
	if got := q.Recent()[0].Status; got != JobCompleted {
		t.Errorf("drained job status = %s, want completed", got)
	}
}

func TestQueueStopCancelsStuckJob(t *testing.T) {
	runner := &scriptedRunner{
		block:   make(chan struct{}), // never closed; only ctx releases the job
		started: make(chan struct{}, 1),
	}
	q := NewQueue(config.QueueConfig{Workers: 1, Size: 4}, runner, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	if err := q.Enqueue(testJob("job-1", "d3d12")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-runner.started

	sctx, scancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer scancel()
	if err := q.Stop(sctx); err != nil {
		t.Fatalf("Stop should succeed by canceling the active job: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(q.Recent()) == 1 })
	if got := q.Recent()[0].Status; got != JobCanceled {
		t.Errorf("job status = %s, want canceled", got)
	}
}
