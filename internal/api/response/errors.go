package response

import (
	"errors"
	"net/http"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// ErrorBody is the error payload for pipeline failures.
type ErrorBody struct {
	Kind             string                   `json:"kind"`
	Message          string                   `json:"message"`
	Field            string                   `json:"field,omitempty"`
	Resource         string                   `json:"resource,omitempty"`
	RunID            string                   `json:"run_id,omitempty"`
	State            domain.PipelineState     `json:"state,omitempty"`
	Attempt          int                      `json:"attempt,omitempty"`
	ValidationReport *domain.ValidationReport `json:"validation_report,omitempty"`
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	var (
		ctxErr   *domain.ContextError
		unsatErr *domain.ConstraintUnsatisfiableError
	)
	if errors.As(err, &ctxErr) && ctxErr.Mismatch {
		return http.StatusForbidden
	}
	if errors.As(err, &unsatErr) {
		return http.StatusUnprocessableEntity
	}

	switch domain.ErrorKind(err) {
	case "context", "range":
		return http.StatusBadRequest
	case "upstream":
		return http.StatusServiceUnavailable
	case "data", "synthesis":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PipelineFailure writes err with its taxonomy kind and, for unsatisfiable
// requests, the last validation report.
func PipelineFailure(w http.ResponseWriter, err error) {
	body := ErrorBody{
		Kind:    domain.ErrorKind(err),
		Message: err.Error(),
	}

	var (
		perr     *domain.PipelineError
		ctxErr   *domain.ContextError
		rngErr   *domain.RangeError
		upErr    *domain.UpstreamError
		dataErr  *domain.DataError
		unsatErr *domain.ConstraintUnsatisfiableError
	)
	if errors.As(err, &perr) {
		body.RunID = perr.RunID
		body.State = perr.State
		body.Attempt = perr.Attempt
		body.Message = perr.Err.Error()
	}
	switch {
	case errors.As(err, &ctxErr):
		body.Field = ctxErr.Field
	case errors.As(err, &rngErr):
		body.Field = rngErr.Field
	case errors.As(err, &upErr):
		body.Resource = upErr.Resource
	case errors.As(err, &dataErr):
		body.Resource = dataErr.Resource
		body.Field = dataErr.Field
	case errors.As(err, &unsatErr):
		body.ValidationReport = unsatErr.Report
	}

	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	Error(w, status, body)
}
