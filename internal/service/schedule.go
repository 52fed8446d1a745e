package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/Rrens/hospital-scheduler/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrRunNotFound is returned for unknown runs and runs owned by another tenant.
var ErrRunNotFound = errors.New("schedule run not found")

// ScheduleService runs the generation pipeline.
type ScheduleService struct {
	resolver   *security.ContextResolver
	aggregator *Aggregator
	validator  *validation.Validator
	builder    *PayloadBuilder
	llmRouter  *llm.Router
	heuristic  Synthesizer
	fixed      Synthesizer
	runs       domain.RunRepository
	cache      domain.ResultCache
	opts       Options
}

// NewScheduleService creates a new schedule service
func NewScheduleService(
	resolver *security.ContextResolver,
	aggregator *Aggregator,
	llmRouter *llm.Router,
	runs domain.RunRepository,
	cache domain.ResultCache,
	opts Options,
) *ScheduleService {
	return &ScheduleService{
		resolver:   resolver,
		aggregator: aggregator,
		validator:  validation.New(),
		builder:    NewPayloadBuilder(),
		llmRouter:  llmRouter,
		heuristic:  NewHeuristicSynthesizer(),
		runs:       runs,
		cache:      cache,
		opts:       opts,
	}
}

// WithSynthesizer forces every request through syn.
func (s *ScheduleService) WithSynthesizer(syn Synthesizer) *ScheduleService {
	s.fixed = syn
	return s
}

func (s *ScheduleService) synthesizer(in domain.GenerateInput) (Synthesizer, error) {
	if s.fixed != nil {
		return s.fixed, nil
	}
	if !in.UseAgent || s.llmRouter == nil {
		return s.heuristic, nil
	}
	provider, err := s.llmRouter.Select(in.LLMProvider)
	if err != nil {
		return nil, err
	}
	return NewLLMSynthesizer(provider, in.LLMModel, s.opts), nil
}

// run tracks one pipeline execution.
type run struct {
	id       uuid.UUID
	started  time.Time
	state    domain.PipelineState
	attempt  int
	rc       domain.RequestContext
	synth    string
	intent   string
	assigned int
	report   *domain.ValidationReport
	logger   zerolog.Logger
}

func (r *run) enter(state domain.PipelineState) {
	r.state = state
	r.logger.Info().
		Str("state", string(state)).
		Int("attempt", r.attempt).
		Msg("pipeline transition")
}

// Generate resolves, aggregates, synthesizes with bounded repair, and builds
// the payload. Failures come back as *domain.PipelineError.
func (s *ScheduleService) Generate(ctx context.Context, in domain.GenerateInput) (*domain.GenerationResult, error) {
	r := &run{
		id:      uuid.New(),
		started: time.Now(),
		intent:  s.opts.intent(in.Intent),
	}
	r.logger = log.With().Str("run_id", r.id.String()).Logger()

	r.enter(domain.StateResolving)
	rc, err := s.resolver.Resolve(resolveInput(in))
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	r.rc = rc
	r.logger = r.logger.With().
		Str("tenant_id", rc.TenantID).
		Str("location_id", rc.LocationID).
		Logger()

	r.enter(domain.StateAggregating)
	cs, err := s.aggregator.Aggregate(ctx, rc, in.AccessToken)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	synth, err := s.synthesizer(in)
	if err != nil {
		return nil, s.fail(ctx, r, &domain.SynthesisError{Attempt: 0, Err: err})
	}
	r.synth = synth.Name()

	candidate, err := s.synthesizeAndValidate(ctx, r, synth, cs)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.enter(domain.StateBuilding)
	built, err := s.builder.Build(BuildInput{
		Candidate:    *candidate,
		Report:       r.report,
		Constraints:  cs,
		Attempts:     r.attempt,
		Elapsed:      time.Since(r.started),
		ValidateOnly: in.ValidateOnly,
	})
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.enter(domain.StateDone)
	result := &domain.GenerationResult{
		RunID:              r.id,
		TenantID:           rc.TenantID,
		LocationID:         rc.LocationID,
		UserID:             rc.UserID,
		ScheduleWindow:     rc.DateRange,
		Intent:             r.intent,
		Synthesizer:        r.synth,
		Model:              candidate.Model,
		BulkUpdatePayload:  built.BulkUpdatePayload,
		GenerationMetadata: built.GenerationMetadata,
		ValidationReport:   r.report,
		ExcludedEmployees:  cs.Metadata.Excluded,
		CreatedAt:          r.started.UTC(),
	}

	s.record(ctx, r, nil)
	if s.cache != nil {
		if err := s.cache.Set(context.WithoutCancel(ctx), result); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache schedule result")
		}
	}

	r.logger.Info().
		Int("attempts", r.attempt).
		Int("employees", built.GenerationMetadata.EmployeeCount).
		Int("assignments", built.GenerationMetadata.ScheduleCount).
		Int64("elapsed_ms", time.Since(r.started).Milliseconds()).
		Msg("schedule generated")

	return result, nil
}

// synthesizeAndValidate is the bounded SYNTHESIZING/VALIDATING loop. Each
// attempt sees the previous report.
func (s *ScheduleService) synthesizeAndValidate(ctx context.Context, r *run, synth Synthesizer, cs *domain.ConstraintSet) (*domain.CandidateSchedule, error) {
	maxAttempts := s.opts.attempts()
	var lastErr error

	for r.attempt = 1; r.attempt <= maxAttempts; r.attempt++ {
		if r.attempt > 1 {
			r.enter(domain.StateRepairing)
		}

		r.enter(domain.StateSynthesizing)
		candidate, err := synth.Synthesize(ctx, SynthesisRequest{
			Constraints: cs,
			Intent:      r.intent,
			Prior:       r.report,
			Attempt:     r.attempt,
		})
		if err != nil {
			lastErr = &domain.SynthesisError{Attempt: r.attempt, Err: err}
			r.logger.Warn().Err(err).Int("attempt", r.attempt).Msg("synthesis attempt failed")
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		r.enter(domain.StateValidating)
		report := s.validator.Validate(*candidate, cs)
		r.report = report
		r.assigned = len(candidate.Assignments)

		if report.IsValid {
			return candidate, nil
		}

		r.logger.Info().
			Int("attempt", r.attempt).
			Int("violations", len(report.Violations)).
			Interface("by_kind", report.CountByKind()).
			Msg("candidate rejected")
	}
	r.attempt = maxAttempts

	if r.report == nil {
		return nil, lastErr
	}
	return nil, &domain.ConstraintUnsatisfiableError{
		Attempts: maxAttempts,
		Report:   r.report,
		LastErr:  lastErr,
	}
}

func (s *ScheduleService) fail(ctx context.Context, r *run, err error) error {
	failedIn := r.state
	r.enter(domain.StateFailed)
	r.state = failedIn

	r.logger.Error().
		Err(err).
		Str("failed_state", string(failedIn)).
		Str("error_kind", domain.ErrorKind(err)).
		Msg("schedule generation failed")

	s.record(ctx, r, err)
	return &domain.PipelineError{
		RunID:   r.id.String(),
		State:   failedIn,
		Attempt: r.attempt,
		Err:     err,
	}
}

// record writes the audit row. Requests that never resolved a context are not recorded.
func (s *ScheduleService) record(ctx context.Context, r *run, err error) {
	if s.runs == nil || r.rc.TenantID == "" {
		return
	}

	rec := &domain.GenerationRun{
		ID:              r.id,
		TenantID:        r.rc.TenantID,
		LocationID:      r.rc.LocationID,
		UserID:          r.rc.UserID,
		StartDate:       r.rc.DateRange.Start,
		EndDate:         r.rc.DateRange.End,
		Intent:          r.intent,
		Synthesizer:     r.synth,
		Status:          domain.RunStatusSucceeded,
		FinalState:      domain.StateDone,
		AttemptCount:    r.attempt,
		AssignmentCount: r.assigned,
		ElapsedMs:       time.Since(r.started).Milliseconds(),
		CreatedAt:       r.started.UTC(),
	}
	if r.report != nil {
		rec.ViolationCount = len(r.report.Violations)
	}
	if err != nil {
		rec.Status = domain.RunStatusFailed
		rec.FinalState = r.state
		rec.ErrorKind = domain.ErrorKind(err)
		rec.ErrorDetail = err.Error()
	}

	if werr := s.runs.Create(context.WithoutCancel(ctx), rec); werr != nil {
		r.logger.Warn().Err(werr).Msg("failed to record schedule run")
	}
}

// RunView is a run's audit record plus its cached result, if still held.
type RunView struct {
	Run    *domain.GenerationRun    `json:"run"`
	Result *domain.GenerationResult `json:"result,omitempty"`
}

// GetRun returns a run visible to tenantID.
func (s *ScheduleService) GetRun(ctx context.Context, tenantID string, id uuid.UUID) (*RunView, error) {
	view := &RunView{}

	if s.cache != nil {
		res, err := s.cache.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("run_id", id.String()).Msg("result cache read failed")
		} else if res != nil && res.TenantID == tenantID {
			view.Result = res
		}
	}

	if s.runs != nil {
		rec, err := s.runs.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load run: %w", err)
		}
		if rec != nil && rec.TenantID == tenantID {
			view.Run = rec
		}
	}

	if view.Run == nil && view.Result == nil {
		return nil, ErrRunNotFound
	}
	return view, nil
}

// ListRuns returns recent runs for a location resolved from the caller's claims.
func (s *ScheduleService) ListRuns(ctx context.Context, in domain.GenerateInput, limit int) ([]domain.GenerationRun, error) {
	rc, err := s.resolver.Resolve(resolveInput(in))
	if err != nil {
		return nil, err
	}
	if s.runs == nil {
		return []domain.GenerationRun{}, nil
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return s.runs.ListByLocation(ctx, rc.TenantID, rc.LocationID, limit)
}

// ResolveContext runs only the context resolution step.
func (s *ScheduleService) ResolveContext(in domain.GenerateInput) (domain.RequestContext, error) {
	return s.resolver.Resolve(resolveInput(in))
}

// BuildContext resolves and aggregates without synthesizing.
func (s *ScheduleService) BuildContext(ctx context.Context, in domain.GenerateInput) (*domain.ConstraintSet, error) {
	rc, err := s.resolver.Resolve(resolveInput(in))
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, rc, in.AccessToken)
}

// OperatingHours returns the normalized operating calendar for the caller's location.
func (s *ScheduleService) OperatingHours(ctx context.Context, in domain.GenerateInput) (*OperatingHoursView, error) {
	rc, err := s.resolver.Resolve(resolveInput(in))
	if err != nil {
		return nil, err
	}
	cal, err := s.aggregator.Calendar(ctx, rc, in.AccessToken)
	if err != nil {
		return nil, err
	}
	return &OperatingHoursView{
		Context:          rc,
		TimeZone:         cal.TimeZone,
		HolidayOperating: cal.HolidayOperating,
		Calendar:         cal.Calendar,
	}, nil
}

// Availability returns expanded availability for the caller's location and window.
func (s *ScheduleService) Availability(ctx context.Context, in domain.GenerateInput) (*AvailabilityView, error) {
	rc, err := s.resolver.Resolve(resolveInput(in))
	if err != nil {
		return nil, err
	}
	staff, err := s.aggregator.Staff(ctx, rc, in.AccessToken)
	if err != nil {
		return nil, err
	}
	return &AvailabilityView{
		Context:      rc,
		Employees:    staff.Employees,
		Availability: staff.Availability,
		Excluded:     staff.Excluded,
	}, nil
}

// OperatingHoursView is the read-only hours response.
type OperatingHoursView struct {
	Context          domain.RequestContext    `json:"context"`
	TimeZone         string                   `json:"time_zone"`
	HolidayOperating bool                     `json:"holiday_operating"`
	Calendar         domain.OperatingCalendar `json:"operating_calendar"`
}

// AvailabilityView is the read-only availability response.
type AvailabilityView struct {
	Context      domain.RequestContext     `json:"context"`
	Employees    []domain.Employee         `json:"employees"`
	Availability []domain.AvailabilitySlot `json:"availability"`
	Excluded     []domain.ExcludedEmployee `json:"excluded_employees,omitempty"`
}

func resolveInput(in domain.GenerateInput) security.ResolveInput {
	return security.ResolveInput{
		Claims:     in.Claims,
		TenantID:   in.TenantID,
		LocationID: in.LocationID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
	}
}
