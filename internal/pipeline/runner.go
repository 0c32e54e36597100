package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// Runner executes the documentation pipeline for one project per call. A
// Runner is safe for concurrent use; per-build state lives in BuildState.
type Runner struct {
	ws       *workspace.Manager
	git      *git.Client
	tc       *toolchain.Manager
	recorder metrics.Recorder
}

// NewRunner wires the pipeline's collaborators. A nil recorder disables
// metrics.
func NewRunner(ws *workspace.Manager, gitClient *git.Client, tc *toolchain.Manager, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{ws: ws, git: gitClient, tc: tc, recorder: recorder}
}

// Request identifies one build to run.
type Request struct {
	Project *config.ProjectConfig
	// Trigger is manual, scheduled, or webhook.
	Trigger string
	// BuildID correlates the report with queue jobs; generated when empty.
	BuildID string
}

// Run executes all stages for one project and returns the report along with
// the fatal error, if any. The report is always non-nil once the request
// validates.
func (r *Runner) Run(ctx context.Context, req Request) (*RunReport, error) {
	if req.Project == nil {
		return nil, ferrors.ValidationError("build request has no project").Build()
	}
	id := req.BuildID
	if id == "" {
		id = uuid.NewString()
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	report := newRunReport(id, req.Project.Name, trigger)
	bs := &BuildState{Project: req.Project, Report: report}

	slog.Info("Build started",
		logfields.JobID(id),
		logfields.Project(req.Project.Name),
		logfields.JobType(trigger))

	if err := r.ws.EnsureRoot(); err != nil {
		return r.failBeforeStages(bs, err)
	}
	build, err := r.ws.NewBuildDir(req.Project.Name)
	if err != nil {
		return r.failBeforeStages(bs, err)
	}
	bs.Build = build
	defer func() {
		if err := build.Cleanup(); err != nil {
			slog.Warn("Build dir cleanup failed", logfields.Path(build.Path()), logfields.Error(err))
		}
	}()

	runErr := r.runStages(ctx, bs, []stageDef{
		{StageCheckout, r.stageCheckout},
		{StageToolchain, r.stageToolchain},
		{StageDocsPrimary, r.stageDocsPrimary},
		{StageDocsFallback, r.stageDocsFallback},
		{StageVerify, r.stageVerify},
		{StagePublish, r.stagePublish},
	})

	r.finalize(bs)
	return report, runErr
}

// failBeforeStages finalizes a build that died before any stage could run.
func (r *Runner) failBeforeStages(bs *BuildState, err error) (*RunReport, error) {
	se := newFatalStageError("workspace", err)
	bs.Report.recordStage("workspace", StageFailed, 0, err.Error())
	bs.Report.Errors = append(bs.Report.Errors, se)
	r.finalize(bs)
	return bs.Report, se
}

type stageDef struct {
	name string
	fn   Stage
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled error. Warnings and skips continue.
func (r *Runner) runStages(ctx context.Context, bs *BuildState, stages []stageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.Report.recordStage(st.name, StageCanceled, 0, se.Err.Error())
			bs.Report.Errors = append(bs.Report.Errors, se)
			r.recorder.IncStageResult(st.name, metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		dur := time.Since(t0)
		r.recorder.ObserveStageDuration(st.name, dur)

		if err == nil {
			bs.Report.recordStage(st.name, StageSuccess, dur, "")
			r.recorder.IncStageResult(st.name, metrics.ResultSuccess)
			slog.Debug("Stage complete", logfields.Stage(st.name),
				logfields.DurationMS(float64(dur.Milliseconds())))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			se = newFatalStageError(st.name, err)
		}
		switch se.Kind {
		case StageErrorWarning:
			bs.Report.recordStage(st.name, StageWarning, dur, se.Err.Error())
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			r.recorder.IncStageResult(st.name, metrics.ResultWarning)
			slog.Warn("Stage degraded", logfields.Stage(st.name), logfields.Error(se.Err))
		case StageErrorSkipped:
			bs.Report.recordStage(st.name, StageSkipped, dur, se.Err.Error())
			r.recorder.IncStageResult(st.name, metrics.ResultSkipped)
			slog.Debug("Stage skipped", logfields.Stage(st.name),
				slog.String("reason", se.Err.Error()))
		case StageErrorCanceled:
			bs.Report.recordStage(st.name, StageCanceled, dur, se.Err.Error())
			bs.Report.Errors = append(bs.Report.Errors, se)
			r.recorder.IncStageResult(st.name, metrics.ResultCanceled)
			return se
		default:
			bs.Report.recordStage(st.name, StageFailed, dur, se.Err.Error())
			bs.Report.Errors = append(bs.Report.Errors, se)
			r.recorder.IncStageResult(st.name, metrics.ResultFatal)
			slog.Error("Stage failed", logfields.Stage(st.name), logfields.Error(se.Err))
			return se
		}
	}
	return nil
}

// finalize closes the report, persists it into the build's reports dir, and
// emits build-level metrics.
func (r *Runner) finalize(bs *BuildState) {
	report := bs.Report
	report.finish()
	report.deriveOutcome()

	if bs.Build != nil {
		if dir, err := bs.Build.Subdir(workspace.ReportsDirName); err == nil {
			if err := report.Persist(dir); err != nil {
				slog.Warn("Report persist failed", logfields.Error(err))
			}
		}
	}

	r.recorder.ObserveBuildDuration(report.Duration())
	r.recorder.IncBuildOutcome(metrics.OutcomeLabel(report.Outcome))
	if report.FallbackUsed {
		r.recorder.IncFallbackUsed(report.Project)
	}

	attrs := []any{
		logfields.JobID(report.BuildID),
		logfields.Project(report.Project),
		logfields.Outcome(string(report.Outcome)),
		logfields.Toolchain(report.Toolchain),
		slog.Bool("fallback_used", report.FallbackUsed),
		logfields.DurationMS(float64(report.Duration().Milliseconds())),
	}
	switch report.Outcome {
	case OutcomeFailed:
		slog.Error("Build failed", attrs...)
	case OutcomeCanceled:
		slog.Warn("Build canceled", attrs...)
	default:
		slog.Info("Build finished", attrs...)
	}
}
