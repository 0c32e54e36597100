package history

import (
	"encoding/json"
	"testing"
	"time"
)

// finishedEvent builds a build_finished event with a run-report-shaped
// payload.
func finishedEvent(t *testing.T, buildID, project, outcome, commit string, fallback bool) Event {
	t.Helper()
	start := time.Now().Add(-time.Minute)
	payload, err := json.Marshal(map[string]any{
		"project":       project,
		"trigger":       "scheduled",
		"start":         start,
		"end":           start.Add(30 * time.Second),
		"commit":        commit,
		"toolchain":     "nightly",
		"fallback_used": fallback,
		"outcome":       outcome,
		"errors":        []string{},
		"publish":       map[string]string{"result": "pushed"},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	e := NewBuildFinished(buildID, project, payload)
	e.CreatedAt = time.Now()
	return e
}

func TestProjectionTracksBuildLifecycle(t *testing.T) {
	p := NewProjection(nil, 10)

	started, err := NewBuildStarted("b-1", "d3d12", "webhook")
	if err != nil {
		t.Fatalf("started event: %v", err)
	}
	started.CreatedAt = time.Now()
	p.Apply(started)

	active := p.Active()
	if len(active) != 1 || active[0].BuildID != "b-1" || active[0].Trigger != "webhook" {
		t.Fatalf("active = %+v", active)
	}
	if s, ok := p.Get("b-1"); !ok || s.Status != StatusRunning {
		t.Fatalf("running summary = %+v (ok=%v)", s, ok)
	}

	p.Apply(finishedEvent(t, "b-1", "d3d12", StatusSuccess, "abc123", false))

	if len(p.Active()) != 0 {
		t.Error("finished build still active")
	}
	s, ok := p.Get("b-1")
	if !ok {
		t.Fatal("finished build missing")
	}
	if s.Status != StatusSuccess || s.Commit != "abc123" || s.Toolchain != "nightly" {
		t.Errorf("summary = %+v", s)
	}
	if s.FinishedAt == nil || s.DurationMS <= 0 {
		t.Errorf("timing not derived: %+v", s)
	}
	if s.PublishResult != "pushed" {
		t.Errorf("publish result = %q", s.PublishResult)
	}
	recent := p.Recent(0)
	if len(recent) != 1 || recent[0].BuildID != "b-1" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestProjectionFailedBuildCarriesError(t *testing.T) {
	p := NewProjection(nil, 10)

	payload, err := json.Marshal(map[string]any{
		"project": "d3d12",
		"outcome": StatusFailed,
		"errors":  []string{"fatal stage docs_fallback: cargo doc failed"},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	e := NewBuildFinished("b-err", "d3d12", payload)
	e.CreatedAt = time.Now()
	p.Apply(e)

	s, ok := p.Get("b-err")
	if !ok || s.Status != StatusFailed {
		t.Fatalf("summary = %+v (ok=%v)", s, ok)
	}
	if s.Error == "" {
		t.Error("failed build should carry its first error")
	}
}

func TestProjectionLastFinishedPerProject(t *testing.T) {
	p := NewProjection(nil, 10)

	p.Apply(finishedEvent(t, "b-1", "d3d12", StatusSuccess, "c-one", false))
	p.Apply(finishedEvent(t, "b-2", "d3d12", StatusWarning, "c-two", true))
	p.Apply(finishedEvent(t, "b-3", "wgpu", StatusSuccess, "c-other", false))

	s, ok := p.LastFinished("d3d12")
	if !ok || s.BuildID != "b-2" || s.Commit != "c-two" || !s.FallbackUsed {
		t.Errorf("last d3d12 = %+v (ok=%v)", s, ok)
	}
	if s, ok := p.LastFinished("wgpu"); !ok || s.BuildID != "b-3" {
		t.Errorf("last wgpu = %+v (ok=%v)", s, ok)
	}
	if _, ok := p.LastFinished("unknown"); ok {
		t.Error("unknown project should have no last build")
	}
}

func TestProjectionBoundedRecent(t *testing.T) {
	p := NewProjection(nil, 2)

	p.Apply(finishedEvent(t, "b-1", "d3d12", StatusSuccess, "c1", false))
	p.Apply(finishedEvent(t, "b-2", "d3d12", StatusSuccess, "c2", false))
	p.Apply(finishedEvent(t, "b-3", "d3d12", StatusSuccess, "c3", false))

	recent := p.Recent(0)
	if len(recent) != 2 || recent[0].BuildID != "b-3" || recent[1].BuildID != "b-2" {
		t.Fatalf("recent = %+v", recent)
	}
	if _, ok := p.Get("b-1"); ok {
		t.Error("oldest build should be pruned from the projection")
	}
	if _, ok := p.Get("b-3"); !ok {
		t.Error("newest build missing")
	}
}

func TestProjectionRebuildFromStore(t *testing.T) {
	store := newMemStore(t)
	ctx := t.Context()

	started, err := NewBuildStarted("b-run", "d3d12", "manual")
	if err != nil {
		t.Fatalf("started event: %v", err)
	}
	if err := store.Append(ctx, started); err != nil {
		t.Fatalf("append started: %v", err)
	}
	done := finishedEvent(t, "b-done", "d3d12", StatusSuccess, "abc123", false)
	if err := store.Append(ctx, done); err != nil {
		t.Fatalf("append finished: %v", err)
	}

	p := NewProjection(store, 10)
	if err := p.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if recent := p.Recent(0); len(recent) != 1 || recent[0].BuildID != "b-done" {
		t.Errorf("recent after rebuild = %+v", recent)
	}
	if active := p.Active(); len(active) != 1 || active[0].BuildID != "b-run" {
		t.Errorf("active after rebuild = %+v", active)
	}
	if s, ok := p.LastFinished("d3d12"); !ok || s.Commit != "abc123" {
		t.Errorf("last finished after rebuild = %+v (ok=%v)", s, ok)
	}
}
