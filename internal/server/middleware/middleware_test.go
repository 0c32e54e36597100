package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
)

func quietChain() func(http.Handler) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Chain(logger, ferrors.NewHTTPErrorAdapter(logger))
}

func TestChain_PassesThroughStatus(t *testing.T) {
	handler := quietChain()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestChain_RecoversFromPanic(t *testing.T) {
	handler := quietChain()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Fatalf("expected structured error body, got %s", rec.Body.String())
	}
}

func TestChain_LogsRequests(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := Chain(logger, ferrors.NewHTTPErrorAdapter(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/builds", nil))

	log := buf.String()
	if !strings.Contains(log, "/api/builds") || !strings.Contains(log, "404") {
		t.Fatalf("expected request log with path and status, got %q", log)
	}
}
