package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultSkipped  ResultLabel = "skipped"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel enumerates terminal build outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeWarning  OutcomeLabel = "warning"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// PublishLabel enumerates publish results. Pushed means a commit reached the
// pages remote, skipped means the generated docs were byte-identical to what
// is already deployed.
type PublishLabel string

const (
	PublishPushed  PublishLabel = "pushed"
	PublishSkipped PublishLabel = "skipped"
	PublishFailed  PublishLabel = "failed"
)

// Recorder defines observability hooks for build, publish and queue metrics.
// Implementations must tolerate nil receivers so optional injection stays
// cheap.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome OutcomeLabel)
	IncFallbackUsed(project string)
	ObservePublishDuration(repository string, d time.Duration, success bool)
	IncPublishResult(result PublishLabel)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                 {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                 {}
func (NoopRecorder) IncBuildOutcome(OutcomeLabel)                       {}
func (NoopRecorder) IncFallbackUsed(string)                             {}
func (NoopRecorder) ObservePublishDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncPublishResult(PublishLabel)                      {}
func (NoopRecorder) SetQueueDepth(int)                                  {}
