package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Stage names in execution order.
const (
	StageCheckout     = "checkout"
	StageToolchain    = "toolchain"
	StageDocsPrimary  = "docs_primary"
	StageDocsFallback = "docs_fallback"
	StageVerify       = "verify"
	StagePublish      = "publish"
)

// Stage is a discrete unit of work in a documentation build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorSkipped  StageErrorKind = "skipped"  // Stage intentionally did not run.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newSkipStageError(stage, reason string) *StageError {
	return &StageError{Kind: StageErrorSkipped, Stage: stage, Err: errors.New(reason)}
}

func newCanceledStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}
