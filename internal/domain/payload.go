package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PipelineState is a stage of the generation state machine.
type PipelineState string

const (
	StateResolving    PipelineState = "RESOLVING"
	StateAggregating  PipelineState = "AGGREGATING"
	StateSynthesizing PipelineState = "SYNTHESIZING"
	StateValidating   PipelineState = "VALIDATING"
	StateRepairing    PipelineState = "REPAIRING"
	StateBuilding     PipelineState = "BUILDING"
	StateDone         PipelineState = "DONE"
	StateFailed       PipelineState = "FAILED"
)

// PayloadAssignment is one shift in the bulk-update wire shape.
type PayloadAssignment struct {
	Date       Date  `json:"date"`
	Start      Clock `json:"start"`
	End        Clock `json:"end"`
	IsOvertime bool  `json:"is_overtime"`
}

// EmployeeSchedule groups one employee's shifts.
type EmployeeSchedule struct {
	EmployeeID  string              `json:"employee_id"`
	Assignments []PayloadAssignment `json:"assignments"`
}

// BulkUpdatePayload is what the system of record accepts.
type BulkUpdatePayload struct {
	EmployeeSchedules []EmployeeSchedule `json:"employeeSchedules"`
	ValidateOnly      bool               `json:"validateOnly"`
}

// GenerationMetadata summarizes a built payload.
type GenerationMetadata struct {
	EmployeeCount int   `json:"employee_count"`
	ScheduleCount int   `json:"schedule_count"`
	OperatingDays int   `json:"operating_days"`
	AttemptCount  int   `json:"attempt_count"`
	ElapsedMs     int64 `json:"elapsed_ms"`
}

// BuiltPayload is the payload with its sibling metadata object.
type BuiltPayload struct {
	BulkUpdatePayload  BulkUpdatePayload  `json:"bulk_update_payload"`
	GenerationMetadata GenerationMetadata `json:"generation_metadata"`
}

// GenerateInput is the inbound generate_schedule operation.
type GenerateInput struct {
	Claims       map[string]any
	AccessToken  string
	TenantID     string
	LocationID   string
	StartDate    string
	EndDate      string
	Intent       string
	UseAgent     bool
	LLMProvider  string
	LLMModel     string
	ValidateOnly bool
}

// GenerationResult is returned to the caller on success.
type GenerationResult struct {
	RunID              uuid.UUID          `json:"run_id"`
	TenantID           string             `json:"tenant_id"`
	LocationID         string             `json:"location_id"`
	UserID             string             `json:"user_id"`
	ScheduleWindow     DateRange          `json:"schedule_window"`
	Intent             string             `json:"instructions_used"`
	Synthesizer        string             `json:"synthesizer"`
	Model              string             `json:"model,omitempty"`
	BulkUpdatePayload  BulkUpdatePayload  `json:"bulk_update_payload"`
	GenerationMetadata GenerationMetadata `json:"generation_metadata"`
	ValidationReport   *ValidationReport  `json:"validation_report"`
	ExcludedEmployees  []ExcludedEmployee `json:"excluded_employees,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// RunStatus is the terminal outcome of a generation run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// GenerationRun is the audit record of one generate call.
type GenerationRun struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        string        `json:"tenant_id"`
	LocationID      string        `json:"location_id"`
	UserID          string        `json:"user_id"`
	StartDate       Date          `json:"start_date"`
	EndDate         Date          `json:"end_date"`
	Intent          string        `json:"intent"`
	Synthesizer     string        `json:"synthesizer"`
	Status          RunStatus     `json:"status"`
	FinalState      PipelineState `json:"final_state"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	ErrorDetail     string        `json:"error_detail,omitempty"`
	AttemptCount    int           `json:"attempt_count"`
	AssignmentCount int           `json:"assignment_count"`
	ViolationCount  int           `json:"violation_count"`
	ElapsedMs       int64         `json:"elapsed_ms"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RunRepository persists generation audit records.
type RunRepository interface {
	Create(ctx context.Context, run *GenerationRun) error
	Get(ctx context.Context, id uuid.UUID) (*GenerationRun, error)
	ListByLocation(ctx context.Context, tenantID, locationID string, limit int) ([]GenerationRun, error)
}

// ResultCache keeps successful results retrievable by run id for a bounded time.
type ResultCache interface {
	Set(ctx context.Context, result *GenerationResult) error
	Get(ctx context.Context, runID uuid.UUID) (*GenerationResult, error)
}
