package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Build statuses exposed by the projection. Finished builds carry the run
// report's outcome; running is synthesized from build_started.
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusWarning  = "warning"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// BuildSummary is the read model for one build, shaped for the admin API.
type BuildSummary struct {
	BuildID       string     `json:"build_id"`
	Project       string     `json:"project"`
	Trigger       string     `json:"trigger,omitempty"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	DurationMS    int64      `json:"duration_ms,omitempty"`
	Commit        string     `json:"commit,omitempty"`
	Toolchain     string     `json:"toolchain,omitempty"`
	FallbackUsed  bool       `json:"fallback_used"`
	PublishResult string     `json:"publish_result,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Projection folds build events into per-build summaries. It serves the
// admin API's recent-builds view and the scheduler's last-built-commit
// lookup without touching SQLite on every read.
type Projection struct {
	mu      sync.RWMutex
	store   *Store
	builds  map[string]*BuildSummary
	recent  []*BuildSummary // newest first, bounded by maxSize
	last    map[string]*BuildSummary
	maxSize int
}

// NewProjection creates a projection over store keeping at most maxSize
// finished builds in memory.
func NewProjection(store *Store, maxSize int) *Projection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Projection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		last:    make(map[string]*BuildSummary),
		maxSize: maxSize,
	}
}

// Rebuild replays the stored events, typically at daemon startup.
func (p *Projection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.builds = make(map[string]*BuildSummary)
	p.recent = p.recent[:0]
	p.last = make(map[string]*BuildSummary)
	for _, e := range events {
		p.applyLocked(e)
	}
	return nil
}

// Apply folds one freshly appended event into the projection.
func (p *Projection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *Projection) applyLocked(e Event) {
	if e.BuildID == "" {
		return
	}
	summary, ok := p.builds[e.BuildID]
	if !ok {
		summary = &BuildSummary{BuildID: e.BuildID, Project: e.Project, Status: StatusRunning, StartedAt: e.CreatedAt}
		p.builds[e.BuildID] = summary
	}

	switch e.Type {
	case EventBuildStarted:
		var payload StartedPayload
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			summary.Trigger = payload.Trigger
			if payload.Project != "" {
				summary.Project = payload.Project
			}
		}
		summary.StartedAt = e.CreatedAt
		summary.Status = StatusRunning

	case EventBuildFinished:
		var payload finishedPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return
		}
		if payload.Project != "" {
			summary.Project = payload.Project
		}
		if payload.Trigger != "" {
			summary.Trigger = payload.Trigger
		}
		if !payload.Start.IsZero() {
			summary.StartedAt = payload.Start
		}
		finished := payload.End
		if finished.IsZero() {
			finished = e.CreatedAt
		}
		summary.FinishedAt = &finished
		summary.DurationMS = finished.Sub(summary.StartedAt).Milliseconds()
		summary.Commit = payload.Commit
		summary.Toolchain = payload.Toolchain
		summary.FallbackUsed = payload.FallbackUsed
		if payload.Outcome != "" {
			summary.Status = payload.Outcome
		}
		if payload.Publish != nil {
			summary.PublishResult = payload.Publish.Result
		}
		if len(payload.Errors) > 0 {
			summary.Error = payload.Errors[0]
		}
		p.recordFinishedLocked(summary)
	}
}

func (p *Projection) recordFinishedLocked(summary *BuildSummary) {
	for _, r := range p.recent {
		if r.BuildID == summary.BuildID {
			return
		}
	}
	p.recent = append([]*BuildSummary{summary}, p.recent...)
	if len(p.recent) > p.maxSize {
		p.recent = p.recent[:p.maxSize]
	}
	if summary.Project != "" {
		p.last[summary.Project] = summary
	}
	p.pruneBuildsLocked()
}

// pruneBuildsLocked drops finished builds that fell out of the bounded
// recent list; running builds always stay.
func (p *Projection) pruneBuildsLocked() {
	keep := make(map[string]struct{}, len(p.recent))
	for _, r := range p.recent {
		keep[r.BuildID] = struct{}{}
	}
	for _, s := range p.last {
		keep[s.BuildID] = struct{}{}
	}
	for id, s := range p.builds {
		if s.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// Recent returns up to limit finished builds, newest first.
func (p *Projection) Recent(limit int) []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if limit <= 0 || limit > len(p.recent) {
		limit = len(p.recent)
	}
	out := make([]BuildSummary, 0, limit)
	for _, r := range p.recent[:limit] {
		out = append(out, *r)
	}
	return out
}

// Get returns the summary of one build.
func (p *Projection) Get(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// Active returns builds that started but have not finished.
func (p *Projection) Active() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []BuildSummary
	for _, s := range p.builds {
		if s.Status == StatusRunning {
			out = append(out, *s)
		}
	}
	return out
}

// LastFinished returns the most recent finished build of a project. The
// scheduler compares its commit against the remote head to skip rebuilding
// unchanged sources.
func (p *Projection) LastFinished(project string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.last[project]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}
