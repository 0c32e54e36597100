package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/pipeline"
)

// fakeRunner returns canned reports and errors per project and records the
// order builds were requested in.
type fakeRunner struct {
	reports map[string]*pipeline.RunReport
	errs    map[string]error
	calls   []string
	onRun   func(project string)
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.RunReport, error) {
	name := req.Project.Name
	f.calls = append(f.calls, name)
	if f.onRun != nil {
		f.onRun(name)
	}
	return f.reports[name], f.errs[name]
}

func successReport(project string) *pipeline.RunReport {
	now := time.Now()
	return &pipeline.RunReport{
		SchemaVersion: 1,
		BuildID:       "build-" + project,
		Project:       project,
		Trigger:       "manual",
		Start:         now.Add(-time.Second),
		End:           now,
		Outcome:       pipeline.OutcomeSuccess,
	}
}

func twoProjectConfig() *config.Config {
	return &config.Config{
		Projects: []*config.ProjectConfig{
			{Name: "alpha"},
			{Name: "beta"},
		},
	}
}

func executorWith(f *fakeRunner) *Executor {
	return NewExecutor().WithRunnerFactory(func(*config.Config) BuildRunner { return f })
}

func TestExecuteRunAllProjects(t *testing.T) {
	fake := &fakeRunner{reports: map[string]*pipeline.RunReport{
		"alpha": successReport("alpha"),
		"beta":  successReport("beta"),
	}}

	summaries, err := executorWith(fake).ExecuteRun(context.Background(), RunRequest{
		Config: twoProjectConfig(),
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if len(fake.calls) != 2 || fake.calls[0] != "alpha" || fake.calls[1] != "beta" {
		t.Errorf("build order = %v", fake.calls)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d", len(summaries))
	}
	for _, s := range summaries {
		if s.Err != nil || s.Report == nil {
			t.Errorf("summary %s: err=%v report=%v", s.Project, s.Err, s.Report)
		}
	}
}

func TestExecuteRunProjectFilter(t *testing.T) {
	fake := &fakeRunner{reports: map[string]*pipeline.RunReport{
		"beta": successReport("beta"),
	}}

	summaries, err := executorWith(fake).ExecuteRun(context.Background(), RunRequest{
		Config:  twoProjectConfig(),
		Project: "beta",
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "beta" {
		t.Errorf("calls = %v", fake.calls)
	}
	if len(summaries) != 1 || summaries[0].Project != "beta" {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestExecuteRunUnknownProject(t *testing.T) {
	fake := &fakeRunner{}

	_, err := executorWith(fake).ExecuteRun(context.Background(), RunRequest{
		Config:  twoProjectConfig(),
		Project: "gamma",
	})
	if err == nil {
		t.Fatal("expected error for unknown project")
	}
	classified, ok := ferrors.AsClassified(err)
	if !ok || classified.Category() != ferrors.CategoryNotFound {
		t.Errorf("error = %v, want not_found classification", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("runner called for unknown project: %v", fake.calls)
	}
}

func TestExecuteRunNoProjectsConfigured(t *testing.T) {
	_, err := executorWith(&fakeRunner{}).ExecuteRun(context.Background(), RunRequest{
		Config: &config.Config{},
	})
	if err == nil {
		t.Fatal("expected error for empty project list")
	}
	classified, ok := ferrors.AsClassified(err)
	if !ok || classified.Category() != ferrors.CategoryConfig {
		t.Errorf("error = %v, want config classification", err)
	}
}

func TestExecuteRunContinuesPastFailure(t *testing.T) {
	failed := successReport("alpha")
	failed.Outcome = pipeline.OutcomeFailed
	buildErr := errors.New("docs build exploded")
	fake := &fakeRunner{
		reports: map[string]*pipeline.RunReport{
			"alpha": failed,
			"beta":  successReport("beta"),
		},
		errs: map[string]error{"alpha": buildErr},
	}

	summaries, err := executorWith(fake).ExecuteRun(context.Background(), RunRequest{
		Config: twoProjectConfig(),
	})
	if !errors.Is(err, buildErr) {
		t.Errorf("returned error = %v, want first build error", err)
	}
	if len(fake.calls) != 2 {
		t.Errorf("failure stopped the pass early: calls = %v", fake.calls)
	}
	if len(summaries) != 2 || summaries[0].Err == nil || summaries[1].Err != nil {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestExecuteRunStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeRunner{
		reports: map[string]*pipeline.RunReport{
			"alpha": successReport("alpha"),
			"beta":  successReport("beta"),
		},
		onRun: func(string) { cancel() },
	}

	summaries, err := executorWith(fake).ExecuteRun(ctx, RunRequest{
		Config: twoProjectConfig(),
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("canceled pass kept going: calls = %v", fake.calls)
	}
	if len(summaries) != 1 {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestExecuteRunPersistsReportCopies(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeRunner{reports: map[string]*pipeline.RunReport{
		"alpha": successReport("alpha"),
		"beta":  successReport("beta"),
	}}

	if _, err := executorWith(fake).ExecuteRun(context.Background(), RunRequest{
		Config:    twoProjectConfig(),
		ReportDir: dir,
	}); err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	for _, project := range []string{"alpha", "beta"} {
		path := filepath.Join(dir, project, "build-report.json")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report copy for %s missing: %v", project, err)
		}
	}
}
