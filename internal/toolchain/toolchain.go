package toolchain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

const (
	rustupBin = "rustup"
	cargoBin  = "cargo"

	// maxOutputTail bounds how much combined cargo output is retained for
	// reports. Rustdoc runs on large crates produce megabytes of progress
	// lines; the diagnostic value is almost always at the end.
	maxOutputTail = 16 << 10
)

// Manager installs toolchains and runs documentation builds through a
// CommandRunner.
type Manager struct {
	runner CommandRunner
}

// NewManager returns a Manager using the given runner, defaulting to
// ExecRunner when nil.
func NewManager(runner CommandRunner) *Manager {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Manager{runner: runner}
}

// EnsureInstalled makes sure the named rustup toolchain is present. A probe
// (`rustup run <tc> rustc --version`) decides whether the install step can be
// skipped; rustup treats repeated installs as no-ops but still hits the
// network for manifest checks, which the probe avoids.
func (m *Manager) EnsureInstalled(ctx context.Context, tc, profile string) error {
	if _, err := m.runner.Look(rustupBin); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "rustup not found on PATH").Fatal().Build()
	}
	if _, err := m.runner.Run(ctx, RunSpec{
		Name: rustupBin,
		Args: []string{"run", tc, "rustc", "--version"},
	}); err == nil {
		slog.Debug("Toolchain already installed", logfields.Toolchain(tc))
		return nil
	}
	if profile == "" {
		profile = "minimal"
	}
	slog.Info("Installing toolchain", logfields.Toolchain(tc), slog.String("profile", profile))
	start := time.Now()
	out, err := m.runner.Run(ctx, RunSpec{
		Name: rustupBin,
		Args: []string{"toolchain", "install", tc, "--profile", profile},
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryToolchain, "toolchain install failed").
			UserAction().
			WithContext("toolchain", tc).
			WithContext("output", tail(out)).
			Build()
	}
	slog.Info("Toolchain installed", logfields.Toolchain(tc),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// BuildRequest describes one cargo documentation build.
type BuildRequest struct {
	Toolchain string
	// Dir is the crate checkout used as cargo's working directory.
	Dir string
	// Args follow the +toolchain selector, e.g. ["doc", "--no-deps"].
	Args []string
	// Env is merged over the inherited environment.
	Env map[string]string
	// Timeout bounds the invocation; zero means no limit.
	Timeout time.Duration
}

// BuildResult reports a completed cargo invocation.
type BuildResult struct {
	Toolchain string
	Duration  time.Duration
	// Output holds the tail of the combined stdout+stderr.
	Output string
}

// BuildDocs runs `cargo +<toolchain> <args...>` in the request directory.
// Failures come back as classified build errors carrying the output tail in
// their context under "output".
func (m *Manager) BuildDocs(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if _, err := m.runner.Look(cargoBin); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cargo not found on PATH").Fatal().Build()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := append([]string{"+" + req.Toolchain}, req.Args...)
	slog.Debug("Running cargo", logfields.Toolchain(req.Toolchain),
		slog.Any("args", req.Args), logfields.Path(req.Dir))

	start := time.Now()
	out, err := m.runner.Run(ctx, RunSpec{
		Name: cargoBin,
		Args: args,
		Dir:  req.Dir,
		Env:  flattenEnv(req.Env),
	})
	elapsed := time.Since(start)

	if err != nil {
		msg := "cargo doc failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "cargo doc timed out"
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryBuild, msg).
			Fatal().
			WithContext("toolchain", req.Toolchain).
			WithContext("output", tail(out)).
			Build()
	}
	return &BuildResult{
		Toolchain: req.Toolchain,
		Duration:  elapsed,
		Output:    tail(out),
	}, nil
}

// flattenEnv turns the env map into sorted KEY=VALUE entries so invocations
// are deterministic.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// tail keeps the last maxOutputTail bytes, dropping the leading partial line
// after the cut.
func tail(b []byte) string {
	if len(b) <= maxOutputTail {
		return string(b)
	}
	cut := b[len(b)-maxOutputTail:]
	if i := bytes.IndexByte(cut, '\n'); i >= 0 && i+1 < len(cut) {
		cut = cut[i+1:]
	}
	return string(cut)
}
