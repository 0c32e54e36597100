// Package cli holds the orchestration behind the docship subcommands.
// Commands stay thin flag structs; the executor owns collaborator wiring so
// one-shot passes are testable without rustup or a network.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// BuildRunner runs one project build. *pipeline.Runner is the production
// implementation; tests substitute fakes.
type BuildRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.RunReport, error)
}

// RunnerFactory constructs the BuildRunner for a loaded configuration.
type RunnerFactory func(cfg *config.Config) BuildRunner

// RunRequest selects what a one-shot pass builds.
type RunRequest struct {
	Config *config.Config
	// Project restricts the pass to a single configured project when set.
	Project string
	// ReportDir receives a copy of each build report under
	// <dir>/<project>/ when set. The workspace keeps its own copy either
	// way.
	ReportDir string
}

// RunSummary is one project's result within a pass.
type RunSummary struct {
	Project string
	Report  *pipeline.RunReport
	Err     error
}

// Executor drives one-shot build passes for the run command.
type Executor struct {
	newRunner RunnerFactory
}

// NewExecutor returns an executor with production wiring.
func NewExecutor() *Executor {
	return &Executor{newRunner: defaultRunnerFactory}
}

// WithRunnerFactory substitutes runner construction (for testing).
func (e *Executor) WithRunnerFactory(f RunnerFactory) *Executor {
	e.newRunner = f
	return e
}

func defaultRunnerFactory(cfg *config.Config) BuildRunner {
	ws := workspace.NewManager(cfg.Workspace.Root, cfg.Workspace.Keep)
	return pipeline.NewRunner(ws, git.NewClient(&cfg.Git), toolchain.NewManager(nil), nil)
}

// ExecuteRun builds every selected project in turn and prints each report
// summary as it completes. The returned error is the one that should decide
// the process exit code: the first fatal build error, or a selection error
// when nothing matched. A canceled context stops the pass after the current
// build.
func (e *Executor) ExecuteRun(ctx context.Context, req RunRequest) ([]RunSummary, error) {
	projects, err := selectProjects(req.Config, req.Project)
	if err != nil {
		return nil, err
	}

	runner := e.newRunner(req.Config)

	summaries := make([]RunSummary, 0, len(projects))
	var firstErr error
	for _, p := range projects {
		report, runErr := runner.Run(ctx, pipeline.Request{Project: p, Trigger: "manual"})
		summaries = append(summaries, RunSummary{Project: p.Name, Report: report, Err: runErr})
		if runErr != nil && firstErr == nil {
			firstErr = runErr
		}

		if report != nil {
			fmt.Println(report.Summary())
			if req.ReportDir != "" {
				dir := filepath.Join(req.ReportDir, p.Name)
				if perr := report.Persist(dir); perr != nil {
					slog.Warn("Report copy not written",
						logfields.Project(p.Name), logfields.Error(perr))
				}
			}
		}

		if ctx.Err() != nil {
			break
		}
	}
	return summaries, firstErr
}

// selectProjects resolves the --project flag against the configuration.
func selectProjects(cfg *config.Config, name string) ([]*config.ProjectConfig, error) {
	if name != "" {
		p := cfg.Project(name)
		if p == nil {
			return nil, ferrors.NewError(ferrors.CategoryNotFound,
				fmt.Sprintf("project %q is not configured", name)).
				Hint("list configured projects with `docship run` or check the configuration file").
				Build()
		}
		return []*config.ProjectConfig{p}, nil
	}
	if len(cfg.Projects) == 0 {
		return nil, ferrors.ConfigError("no projects configured").
			Hint("add at least one entry under `projects:` in the configuration file").
			Build()
	}
	return cfg.Projects, nil
}
