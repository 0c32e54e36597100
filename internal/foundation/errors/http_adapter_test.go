package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(discardLogger())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, http.StatusOK},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"validation", ValidationError("bad field").Build(), http.StatusBadRequest},
		{"config", ConfigError("bad config").Build(), http.StatusBadRequest},
		{"auth", AuthError("bad signature").Build(), http.StatusUnauthorized},
		{"not found", NewError(CategoryNotFound, "no such project").Build(), http.StatusNotFound},
		{"already exists", NewError(CategoryAlreadyExists, "dup").Build(), http.StatusConflict},
		{"git", GitError("fetch failed").Build(), http.StatusBadGateway},
		{"publish", PublishError("push rejected").Build(), http.StatusBadGateway},
		{"notify", NotifyError("nats down").Build(), http.StatusBadGateway},
		{"build", BuildError("cargo doc failed").Build(), http.StatusUnprocessableEntity},
		{"toolchain", ToolchainError("install failed").Build(), http.StatusUnprocessableEntity},
		{"artifact", ArtifactError("broken links").Build(), http.StatusUnprocessableEntity},
		{"history", HistoryError("db locked").Build(), http.StatusInternalServerError},
		{"daemon", DaemonError("shutting down").Build(), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.want {
				t.Errorf("StatusCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(discardLogger())

	err := PublishError("push rejected").
		WithContext("repository", "gfx-rs/gfx-rs.github.io").
		Build()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	adapter.WriteErrorResponse(rec, req, err)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp HTTPErrorResponse
	if derr := json.Unmarshal(rec.Body.Bytes(), &resp); derr != nil {
		t.Fatalf("invalid JSON body: %v", derr)
	}
	if resp.Error != "push rejected" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.Code != "publish" {
		t.Errorf("code = %q", resp.Code)
	}
	if !resp.Retryable {
		t.Error("publish errors should be marked retryable")
	}
	if resp.Details["repository"] != "gfx-rs/gfx-rs.github.io" {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestWriteErrorResponseNil(t *testing.T) {
	adapter := NewHTTPErrorAdapter(discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	adapter.WriteErrorResponse(rec, req, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFormatErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(discardLogger())

	t.Run("plain error", func(t *testing.T) {
		resp := adapter.FormatErrorResponse(errors.New("boom"))
		if resp.Error != "boom" || resp.Code != "" || resp.Retryable {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("non-retryable classified", func(t *testing.T) {
		resp := adapter.FormatErrorResponse(ConfigError("bad config").Build())
		if resp.Code != "config" {
			t.Errorf("code = %q", resp.Code)
		}
		if resp.Retryable {
			t.Error("config errors are not retryable")
		}
	})
}
