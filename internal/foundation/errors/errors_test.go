package errors

import (
	"errors"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "docship.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "docship.yaml" {
			t.Errorf("expected context file=docship.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !HasSeverity(err, SeverityFatal) {
			t.Error("expected error to have fatal severity")
		}
		if err.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Unwrap chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := WrapError(cause, CategoryNetwork, "push failed").Retryable().Build()

		if !errors.Is(err, cause) {
			t.Error("expected error to wrap cause")
		}
		if !err.IsTransient() {
			t.Error("backoff retry should be transient")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, CategoryGit, "clone failure").
		Warning().
		Retryable().
		WithContext("url", "https://example.com/repo.git").
		WithContext("attempt", 2).
		Build()

	if err.Category() != CategoryGit {
		t.Errorf("expected category %s, got %s", CategoryGit, err.Category())
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("expected severity %s, got %s", SeverityWarning, err.Severity())
	}
	if err.RetryStrategy() != RetryBackoff {
		t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
	}
	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}

	url, _ := err.Context().GetString("url")
	if url != "https://example.com/repo.git" {
		t.Errorf("unexpected url context: %s", url)
	}
}

// Convenience constructors encode docship's retry policy per category.
func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		name     string
		err      *ClassifiedError
		category ErrorCategory
		severity ErrorSeverity
		canRetry bool
	}{
		{"config", ConfigError("x").Build(), CategoryConfig, SeverityFatal, false},
		{"auth", AuthError("x").Build(), CategoryAuth, SeverityError, false},
		{"git", GitError("x").Build(), CategoryGit, SeverityError, true},
		{"toolchain", ToolchainError("x").Build(), CategoryToolchain, SeverityError, false},
		{"build", BuildError("x").Build(), CategoryBuild, SeverityFatal, false},
		{"artifact", ArtifactError("x").Build(), CategoryArtifact, SeverityFatal, false},
		{"publish", PublishError("x").Build(), CategoryPublish, SeverityError, true},
		{"history", HistoryError("x").Build(), CategoryHistory, SeverityWarning, false},
		{"notify", NotifyError("x").Build(), CategoryNotify, SeverityWarning, false},
		{"daemon", DaemonError("x").Build(), CategoryDaemon, SeverityFatal, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Category() != tc.category {
				t.Errorf("category = %s, want %s", tc.err.Category(), tc.category)
			}
			if tc.err.Severity() != tc.severity {
				t.Errorf("severity = %s, want %s", tc.err.Severity(), tc.severity)
			}
			if tc.err.CanRetry() != tc.canRetry {
				t.Errorf("CanRetry = %v, want %v", tc.err.CanRetry(), tc.canRetry)
			}
		})
	}
}

func TestErrorContextMerge(t *testing.T) {
	base := ErrorContext{"a": 1, "b": "keep"}
	other := ErrorContext{"a": 2, "c": true}
	merged := base.Merge(other)

	if v, _ := merged.Get("a"); v != 2 {
		t.Errorf("other should take precedence, got %v", v)
	}
	if v, _ := merged.GetString("b"); v != "keep" {
		t.Errorf("base value lost: %v", v)
	}
	if _, ok := merged.Get("c"); !ok {
		t.Error("merged value missing")
	}
}

func TestGetHelpersOnPlainErrors(t *testing.T) {
	plain := errors.New("plain")
	if GetCategory(plain) != CategoryInternal {
		t.Error("plain errors default to internal category")
	}
	if GetSeverity(plain) != SeverityError {
		t.Error("plain errors default to error severity")
	}
	if GetRetryStrategy(plain) != RetryNever {
		t.Error("plain errors default to never retry")
	}
}
