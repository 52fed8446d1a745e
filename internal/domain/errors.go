package domain

import (
	"errors"
	"fmt"
)

// ContextError means the identity claims or requested scope are unusable.
type ContextError struct {
	Field  string
	Reason string
	// Mismatch is set when a requested tenant/location disagrees with the claims.
	Mismatch bool
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context error: %s: %s", e.Field, e.Reason)
}

// RangeError means the requested date range is empty, inverted, or too long.
type RangeError struct {
	Field  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range error: %s: %s", e.Field, e.Reason)
}

// DataError means upstream data parsed but violates a model invariant.
type DataError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in %s: %s: %s", e.Resource, e.Field, e.Reason)
}

// UpstreamError means a hospital-data fetch failed. Resource names which one.
type UpstreamError struct {
	Resource   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s failed with status %d: %v", e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Resource, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SynthesisError means one generation attempt produced nothing usable.
type SynthesisError struct {
	Attempt int
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ConstraintUnsatisfiableError means every attempt was used without a valid
// schedule. Report is the last report produced.
type ConstraintUnsatisfiableError struct {
	Attempts int
	Report   *ValidationReport
	LastErr  error
}

func (e *ConstraintUnsatisfiableError) Error() string {
	n := 0
	if e.Report != nil {
		n = len(e.Report.Violations)
	}
	return fmt.Sprintf("no valid schedule after %d attempts (%d violations in last report)", e.Attempts, n)
}

func (e *ConstraintUnsatisfiableError) Unwrap() error { return e.LastErr }

// BuildError is a contract violation in the payload builder. It indicates a
// pipeline bug.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "payload build error: " + e.Reason
}

// PipelineError wraps a failure with where the pipeline was when it happened.
type PipelineError struct {
	RunID   string
	State   PipelineState
	Attempt int
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s failed in %s (attempt %d): %v", e.RunID, e.State, e.Attempt, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ErrorKind returns a stable name for the error's taxonomy class.
func ErrorKind(err error) string {
	var (
		ctxErr   *ContextError
		rngErr   *RangeError
		dataErr  *DataError
		upErr    *UpstreamError
		synErr   *SynthesisError
		unsatErr *ConstraintUnsatisfiableError
		buildErr *BuildError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsatErr):
		return "constraint_unsatisfiable"
	case errors.As(err, &ctxErr):
		return "context"
	case errors.As(err, &rngErr):
		return "range"
	case errors.As(err, &dataErr):
		return "data"
	case errors.As(err, &upErr):
		return "upstream"
	case errors.As(err, &synErr):
		return "synthesis"
	case errors.As(err, &buildErr):
		return "build"
	default:
		return "internal"
	}
}
