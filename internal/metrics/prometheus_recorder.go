package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on a private Prometheus registry.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	buildDuration   prom.Histogram
	stageResults    *prom.CounterVec
	buildOutcomes   *prom.CounterVec
	fallbackBuilds  *prom.CounterVec
	publishDuration *prom.HistogramVec
	publishResults  *prom.CounterVec
	queueDepth      prom.Gauge
}

// NewPrometheusRecorder constructs and registers the docship metric set on
// reg. Passing nil creates a fresh private registry, which keeps the process
// default registry free of docship collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docship",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docship",
			Name:      "build_duration_seconds",
			Help:      "Total duration of a documentation build",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docship",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docship",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		fallbackBuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docship",
			Name:      "fallback_builds_total",
			Help:      "Builds where the primary toolchain failed and the fallback produced the docs",
		}, []string{"project"}),
		publishDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docship",
			Name:      "publish_duration_seconds",
			Help:      "Duration of pages repository publishes",
			Buckets:   prom.DefBuckets,
		}, []string{"repository", "result"}),
		publishResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docship",
			Name:      "publish_results_total",
			Help:      "Publish results (pushed, skipped for unchanged docs, failed)",
		}, []string{"result"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docship",
			Name:      "build_queue_depth",
			Help:      "Builds currently waiting in the queue",
		}),
	}
	reg.MustRegister(
		pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcomes,
		pr.fallbackBuilds, pr.publishDuration, pr.publishResults, pr.queueDepth,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFallbackUsed(project string) {
	if p == nil || p.fallbackBuilds == nil {
		return
	}
	p.fallbackBuilds.WithLabelValues(project).Inc()
}

func (p *PrometheusRecorder) ObservePublishDuration(repository string, d time.Duration, success bool) {
	if p == nil || p.publishDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.publishDuration.WithLabelValues(repository, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishResult(result PublishLabel) {
	if p == nil || p.publishResults == nil {
		return
	}
	p.publishResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}
