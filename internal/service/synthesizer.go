package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/rs/zerolog/log"
)

// SynthesisRequest is one attempt's input.
type SynthesisRequest struct {
	Constraints *domain.ConstraintSet
	Intent      string
	// Prior is the previous attempt's report, nil on the first attempt.
	Prior   *domain.ValidationReport
	Attempt int
}

// Synthesizer proposes a candidate schedule. Output is untrusted until validated.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SynthesisRequest) (*domain.CandidateSchedule, error)
}

// LLMSynthesizer asks a language model for the schedule.
type LLMSynthesizer struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
}

// NewLLMSynthesizer creates a synthesizer backed by the given provider
func NewLLMSynthesizer(provider llm.Provider, model string, opts Options) *LLMSynthesizer {
	if model == "" {
		model = provider.DefaultModel()
	}
	return &LLMSynthesizer{
		provider:    provider,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

func (s *LLMSynthesizer) Name() string {
	return "llm:" + s.provider.Name()
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*domain.CandidateSchedule, error) {
	constraints, err := json.Marshal(req.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constraints: %w", err)
	}

	llmReq := llm.Request{
		TenantID:    req.Constraints.Context.TenantID,
		LocationID:  req.Constraints.Context.LocationID,
		Window:      req.Constraints.Context.DateRange,
		Intent:      req.Intent,
		Constraints: string(constraints),
		Attempt:     req.Attempt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if req.Prior != nil {
		llmReq.Feedback = req.Prior.Violations
	}

	resp, err := s.provider.Generate(ctx, llmReq, s.model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}

	log.Debug().
		Str("provider", s.provider.Name()).
		Str("model", resp.Model).
		Int("tokens", resp.TokensUsed).
		Int64("latency_ms", resp.LatencyMs).
		Int("attempt", req.Attempt).
		Msg("llm schedule generated")

	candidate, err := ParseCandidate(resp.Content)
	if err != nil {
		return nil, err
	}
	candidate.Source = s.Name()
	candidate.Model = resp.Model
	return candidate, nil
}

type wireBreak struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type wireAssignment struct {
	EmployeeID    hospital.FlexID `json:"employeeId"`
	EmployeeIDAlt hospital.FlexID `json:"employee_id"`
	Date          string          `json:"date"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	IsOvertime    bool            `json:"isOvertime"`
	IsOvertimeAlt bool            `json:"is_overtime"`
	Role          string          `json:"role"`
	Breaks        []wireBreak     `json:"breaks"`
}

type wireSchedule struct {
	Assignments *[]wireAssignment `json:"assignments"`
	Notes       string            `json:"notes"`
}

// ErrNoSchedule means the model output held no parseable schedule object.
var ErrNoSchedule = errors.New("no schedule object in model output")

// ParseCandidate converts model output into a candidate. Any malformed
// assignment rejects the whole candidate.
func ParseCandidate(content string) (*domain.CandidateSchedule, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoSchedule
	}

	var ws wireSchedule
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		return nil, fmt.Errorf("invalid schedule json: %w", err)
	}
	if ws.Assignments == nil {
		return nil, fmt.Errorf("%w: missing assignments", ErrNoSchedule)
	}

	out := &domain.CandidateSchedule{
		Assignments: make([]domain.Assignment, 0, len(*ws.Assignments)),
		Notes:       ws.Notes,
	}
	for i, wa := range *ws.Assignments {
		a, err := wa.toAssignment()
		if err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		out.Assignments = append(out.Assignments, a)
	}
	return out, nil
}

func (wa wireAssignment) toAssignment() (domain.Assignment, error) {
	id := string(wa.EmployeeID)
	if id == "" {
		id = string(wa.EmployeeIDAlt)
	}
	if id == "" {
		return domain.Assignment{}, errors.New("missing employee id")
	}

	d, err := domain.ParseDate(wa.Date)
	if err != nil {
		return domain.Assignment{}, err
	}
	start, err := domain.ParseClock(wa.Start)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("start: %w", err)
	}
	end, err := domain.ParseClock(wa.End)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("end: %w", err)
	}

	a := domain.Assignment{
		EmployeeID: id,
		Date:       d,
		Start:      start,
		End:        end,
		IsOvertime: wa.IsOvertime || wa.IsOvertimeAlt,
		Role:       wa.Role,
	}
	for _, b := range wa.Breaks {
		bs, err := domain.ParseClock(b.Start)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("break start: %w", err)
		}
		be, err := domain.ParseClock(b.End)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("break end: %w", err)
		}
		a.Breaks = append(a.Breaks, domain.Interval{Start: bs, End: be})
	}
	return a, nil
}
