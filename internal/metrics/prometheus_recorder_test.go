package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("docs_primary", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("docs_primary", ResultWarning)
	pr.IncStageResult("docs_fallback", ResultSuccess)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.IncFallbackUsed("d3d12")
	pr.ObservePublishDuration("gfx-rs/gfx-rs.github.io", 2*time.Second, true)
	pr.IncPublishResult(PublishPushed)
	pr.SetQueueDepth(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 8 {
		t.Fatalf("expected 8 metric families, got %d", len(mfs))
	}
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("checkout", time.Second)
	pr.IncBuildOutcome(OutcomeFailed)
	pr.SetQueueDepth(1)
	// No panic is the assertion.
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncFallbackUsed("d3d12")

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "docship_fallback_builds_total") {
		t.Errorf("exposition missing fallback counter:\n%s", body)
	}
}
