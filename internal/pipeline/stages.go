package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docship/internal/artifact"
	"git.home.luguber.info/inful/docship/internal/cargo"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/toolchain"
)

// stageCheckout clones or updates the persistent source checkout and reads
// the crate manifest.
func (r *Runner) stageCheckout(ctx context.Context, bs *BuildState) error {
	dir, err := r.ws.CheckoutDir(bs.Project.Name)
	if err != nil {
		return newFatalStageError(StageCheckout, err)
	}
	bs.CheckoutDir = dir

	hash, err := r.git.Checkout(ctx, bs.Project, dir)
	if err != nil {
		return newFatalStageError(StageCheckout, err)
	}
	bs.Report.Commit = hash

	m, err := cargo.LoadDir(dir)
	if err != nil {
		// Docs can still build; only the crate-index check and landing
		// page lose their crate name.
		return newWarnStageError(StageCheckout, fmt.Errorf("crate manifest: %w", err))
	}
	bs.Crate = m
	return nil
}

// stageToolchain prepares the primary toolchain. Install failures arm the
// fallback instead of aborting; a machine without rustup at all is fatal.
func (r *Runner) stageToolchain(ctx context.Context, bs *BuildState) error {
	tc := bs.Project.Toolchain
	if err := r.tc.EnsureInstalled(ctx, tc.Primary, tc.Profile); err != nil {
		if ferrors.GetCategory(err) == ferrors.CategoryConfig {
			return newFatalStageError(StageToolchain, err)
		}
		bs.primaryErr = err
		return newWarnStageError(StageToolchain, err)
	}
	r.recordToolchainVersion(ctx, bs, tc.Primary)
	return nil
}

// stageDocsPrimary builds docs with the primary toolchain. A build failure
// is a warning that arms the fallback stage.
func (r *Runner) stageDocsPrimary(ctx context.Context, bs *BuildState) error {
	if bs.primaryErr != nil {
		return newSkipStageError(StageDocsPrimary, "primary toolchain unavailable")
	}
	res, err := r.buildDocs(ctx, bs, bs.Project.Toolchain.Primary)
	if err != nil {
		if ferrors.GetCategory(err) == ferrors.CategoryConfig {
			return newFatalStageError(StageDocsPrimary, err)
		}
		bs.primaryErr = err
		return newWarnStageError(StageDocsPrimary, err)
	}
	bs.docsBuilt(res)
	return nil
}

// stageDocsFallback retries the build with the fallback toolchain. It skips
// whenever the primary produced docs, so a successful primary build never
// invokes the fallback.
func (r *Runner) stageDocsFallback(ctx context.Context, bs *BuildState) error {
	if bs.primaryErr == nil {
		return newSkipStageError(StageDocsFallback, "primary build succeeded")
	}
	tc := bs.Project.Toolchain
	if tc.Fallback == "" {
		return newFatalStageError(StageDocsFallback, bs.primaryErr)
	}

	slog.Info("Primary build failed, retrying with fallback",
		logfields.Project(bs.Project.Name),
		logfields.Toolchain(tc.Fallback))

	if err := r.tc.EnsureInstalled(ctx, tc.Fallback, tc.Profile); err != nil {
		return newFatalStageError(StageDocsFallback, err)
	}
	r.recordToolchainVersion(ctx, bs, tc.Fallback)

	res, err := r.buildDocs(ctx, bs, tc.Fallback)
	if err != nil {
		return newFatalStageError(StageDocsFallback, err)
	}
	bs.docsBuilt(res)
	bs.Report.FallbackUsed = true
	return nil
}

// stageVerify validates the doc tree and enriches it with the manifest and
// README landing page. Enrichment failures degrade to warnings.
func (r *Runner) stageVerify(_ context.Context, bs *BuildState) error {
	if bs.ArtifactDir == "" {
		return newFatalStageError(StageVerify, errors.New("no doc tree to verify"))
	}
	indexDir := bs.Crate.IndexDir()

	res, err := artifact.Verify(bs.ArtifactDir, indexDir)
	if err != nil {
		return newFatalStageError(StageVerify, err)
	}
	for _, w := range res.Warnings {
		bs.Report.Warnings = append(bs.Report.Warnings, errors.New(w))
	}

	var enrichErr error
	landing, err := artifact.EnsureLandingPage(bs.ArtifactDir, bs.CheckoutDir, bs.Crate.CrateName(), indexDir)
	if err != nil {
		enrichErr = err
	}
	summary := &ArtifactSummary{Files: res.Files, TotalBytes: res.TotalBytes, LandingPage: landing}
	if m, err := artifact.WriteManifest(bs.ArtifactDir); err != nil {
		if enrichErr == nil {
			enrichErr = err
		}
	} else {
		summary.Files = m.Files
		summary.TotalBytes = m.TotalBytes
	}
	bs.Report.Artifact = summary

	if enrichErr != nil {
		return newWarnStageError(StageVerify, enrichErr)
	}
	return nil
}

// stagePublish ships the verified tree to the pages repository.
func (r *Runner) stagePublish(ctx context.Context, bs *BuildState) error {
	pagesDir, err := bs.Build.PagesDir()
	if err != nil {
		return newFatalStageError(StagePublish, err)
	}

	repo := bs.Project.Publish.Repository
	start := time.Now()
	res, err := r.git.Publish(ctx, git.PublishRequest{
		Project:     bs.Project.Name,
		Commit:      bs.Report.Commit,
		Toolchain:   bs.Report.Toolchain,
		ArtifactDir: bs.ArtifactDir,
		PagesDir:    pagesDir,
		Publish:     &bs.Project.Publish,
	})
	r.recorder.ObservePublishDuration(repo, time.Since(start), err == nil)
	if err != nil {
		r.recorder.IncPublishResult(metrics.PublishFailed)
		return newFatalStageError(StagePublish, err)
	}

	if res.Skipped {
		r.recorder.IncPublishResult(metrics.PublishSkipped)
		bs.Report.Publish = &PublishSummary{Result: "skipped"}
		return nil
	}
	r.recorder.IncPublishResult(metrics.PublishPushed)
	bs.Report.Publish = &PublishSummary{Result: "pushed", Commit: res.CommitHash}
	slog.Info("Docs published",
		logfields.Project(bs.Project.Name),
		logfields.Repository(repo),
		logfields.Commit(shortCommit(res.CommitHash)))
	return nil
}

// buildDocs runs one cargo doc invocation and captures the failure log tail
// for the report.
func (r *Runner) buildDocs(ctx context.Context, bs *BuildState, tc string) (*toolchain.BuildResult, error) {
	res, err := r.tc.BuildDocs(ctx, toolchain.BuildRequest{
		Toolchain: tc,
		Dir:       bs.CheckoutDir,
		Args:      bs.Project.Build.Args,
		Env:       bs.Project.Build.Env,
		Timeout:   bs.Project.BuildTimeout(),
	})
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			if out, ok := ce.Context().GetString("output"); ok && out != "" {
				bs.Report.FailureLog = out
			}
		}
		return nil, err
	}
	slog.Info("Docs built",
		logfields.Project(bs.Project.Name),
		logfields.Toolchain(tc),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

func (r *Runner) recordToolchainVersion(ctx context.Context, bs *BuildState, tc string) {
	v, err := r.tc.Version(ctx, tc)
	if err != nil {
		slog.Warn("Toolchain version probe failed", logfields.Toolchain(tc), logfields.Error(err))
		return
	}
	bs.Report.ToolchainVersions[tc] = v
}
