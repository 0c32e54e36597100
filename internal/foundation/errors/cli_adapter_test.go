package errors

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, discardLogger())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"validation", ValidationError("bad input").Build(), 2},
		{"auth", AuthError("token rejected").Build(), 5},
		{"config", ConfigError("missing field").Build(), 7},
		{"network", NetworkError("timeout").Build(), 8},
		{"git", GitError("clone failed").Build(), 8},
		{"publish", PublishError("push rejected").Build(), 9},
		{"internal", InternalError("bug").Build(), 10},
		{"build", BuildError("cargo doc failed").Build(), 11},
		{"toolchain", ToolchainError("rustup missing").Build(), 11},
		{"artifact", ArtifactError("empty doc tree").Build(), 11},
		{"daemon", DaemonError("queue closed").Build(), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	err := WrapError(errors.New("exit status 101"), CategoryBuild, "cargo doc failed").Build()

	t.Run("concise", func(t *testing.T) {
		adapter := NewCLIErrorAdapter(false, discardLogger())
		got := adapter.FormatError(err)
		want := "Error (build): cargo doc failed"
		if got != want {
			t.Errorf("FormatError() = %q, want %q", got, want)
		}
	})

	t.Run("verbose includes cause", func(t *testing.T) {
		adapter := NewCLIErrorAdapter(true, discardLogger())
		got := adapter.FormatError(err)
		if !strings.Contains(got, "exit status 101") {
			t.Errorf("verbose FormatError() should include cause, got %q", got)
		}
		if !strings.Contains(got, "[build:error]") {
			t.Errorf("verbose FormatError() should include classification, got %q", got)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		adapter := NewCLIErrorAdapter(false, discardLogger())
		got := adapter.FormatError(errors.New("boom"))
		if got != "Error: boom" {
			t.Errorf("FormatError() = %q", got)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		adapter := NewCLIErrorAdapter(false, discardLogger())
		if got := adapter.FormatError(nil); got != "" {
			t.Errorf("FormatError(nil) = %q, want empty", got)
		}
	})
}

func TestShouldLog(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, discardLogger())
	verbose := NewCLIErrorAdapter(true, discardLogger())

	warning := HistoryError("store unavailable").Build()
	fatal := ConfigError("broken").Build()

	if quiet.shouldLog(warning) {
		t.Error("non-fatal classified errors should not be logged in quiet mode")
	}
	if !quiet.shouldLog(fatal) {
		t.Error("fatal errors should always be logged")
	}
	if !verbose.shouldLog(warning) {
		t.Error("verbose mode logs everything")
	}
}
