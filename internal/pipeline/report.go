package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunOutcome is the typed enumeration of final build result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeWarning  RunOutcome = "warning"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// StageStatus is the recorded status of one stage.
type StageStatus string

const (
	StageSuccess  StageStatus = "success"
	StageWarning  StageStatus = "warning"
	StageSkipped  StageStatus = "skipped"
	StageFailed   StageStatus = "fatal"
	StageCanceled StageStatus = "canceled"
)

// StageRecord is one stage's outcome, kept in execution order.
type StageRecord struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	// Detail carries the skip reason or error summary.
	Detail string `json:"detail,omitempty"`
}

// ArtifactSummary describes the verified doc tree.
type ArtifactSummary struct {
	Files       int   `json:"files"`
	TotalBytes  int64 `json:"total_bytes"`
	LandingPage bool  `json:"landing_page"`
}

// PublishSummary describes the publish stage result.
type PublishSummary struct {
	Result string `json:"result"` // pushed|skipped
	Commit string `json:"commit,omitempty"`
}

// RunReport captures one documentation build end to end. Errors and
// Warnings hold live error values in memory; serialization flattens them
// to strings.
type RunReport struct {
	SchemaVersion int
	BuildID       string
	Project       string
	Trigger       string
	Start         time.Time
	End           time.Time
	// Commit is the source revision the docs were built from.
	Commit string
	// Toolchain is the one that produced the published docs.
	Toolchain         string
	ToolchainVersions map[string]string
	FallbackUsed      bool
	Stages            []StageRecord
	Errors            []error
	Warnings          []error
	Outcome           RunOutcome
	// FailureLog holds the output tail of the last failed docs build.
	FailureLog string
	Artifact   *ArtifactSummary
	Publish    *PublishSummary
}

func newRunReport(buildID, project, trigger string) *RunReport {
	return &RunReport{
		SchemaVersion:     1,
		BuildID:           buildID,
		Project:           project,
		Trigger:           trigger,
		Start:             time.Now(),
		ToolchainVersions: make(map[string]string),
	}
}

func (r *RunReport) recordStage(name string, status StageStatus, d time.Duration, detail string) {
	r.Stages = append(r.Stages, StageRecord{Name: name, Status: status, Duration: d, Detail: detail})
}

// StageStatus returns the recorded status for a stage, or "" when the stage
// never ran.
func (r *RunReport) StageStatus(name string) StageStatus {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Status
		}
	}
	return ""
}

func (r *RunReport) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
}

// deriveOutcome sets Outcome from the recorded errors and warnings.
func (r *RunReport) deriveOutcome() {
	for _, e := range r.Errors {
		if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
			r.Outcome = OutcomeCanceled
			return
		}
	}
	if len(r.Errors) > 0 {
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Duration is the wall-clock build time.
func (r *RunReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Succeeded reports whether docs were produced (success or warning outcome).
func (r *RunReport) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeWarning
}

// Summary returns a human-readable single-line summary.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("project=%s build=%s commit=%s toolchain=%s fallback=%v duration=%s warnings=%d errors=%d outcome=%s",
		r.Project, r.BuildID, shortCommit(r.Commit), r.Toolchain, r.FallbackUsed,
		r.Duration().Truncate(time.Millisecond), len(r.Warnings), len(r.Errors), r.Outcome)
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	if c == "" {
		return "unknown"
	}
	return c
}

// JSON returns the serialized report. History storage and notifications use
// the same bytes that Persist writes.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r.sanitized(), "", "  ")
}

// Persist writes build-report.json and build-report.txt atomically into dir.
// Best effort; callers log the returned error but never fail a build on it.
func (r *RunReport) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build-report.json"), append(data, '\n')); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.Summary()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 -- reports are operator-readable artifacts
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// runReportJSON mirrors RunReport with string errors for serialization.
type runReportJSON struct {
	SchemaVersion     int               `json:"schema_version"`
	BuildID           string            `json:"build_id"`
	Project           string            `json:"project"`
	Trigger           string            `json:"trigger"`
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	Commit            string            `json:"commit,omitempty"`
	Toolchain         string            `json:"toolchain,omitempty"`
	ToolchainVersions map[string]string `json:"toolchain_versions,omitempty"`
	FallbackUsed      bool              `json:"fallback_used"`
	Stages            []StageRecord     `json:"stages"`
	Errors            []string          `json:"errors"`
	Warnings          []string          `json:"warnings"`
	Outcome           string            `json:"outcome"`
	FailureLog        string            `json:"failure_log,omitempty"`
	Artifact          *ArtifactSummary  `json:"artifact,omitempty"`
	Publish           *PublishSummary   `json:"publish,omitempty"`
}

func (r *RunReport) sanitized() *runReportJSON {
	s := &runReportJSON{
		SchemaVersion:     r.SchemaVersion,
		BuildID:           r.BuildID,
		Project:           r.Project,
		Trigger:           r.Trigger,
		Start:             r.Start,
		End:               r.End,
		Commit:            r.Commit,
		Toolchain:         r.Toolchain,
		ToolchainVersions: r.ToolchainVersions,
		FallbackUsed:      r.FallbackUsed,
		Stages:            r.Stages,
		Errors:            make([]string, len(r.Errors)),
		Warnings:          make([]string, len(r.Warnings)),
		Outcome:           string(r.Outcome),
		FailureLog:        r.FailureLog,
		Artifact:          r.Artifact,
		Publish:           r.Publish,
	}
	if s.Stages == nil {
		s.Stages = []StageRecord{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}
