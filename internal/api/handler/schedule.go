package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Rrens/hospital-scheduler/internal/api/middleware"
	"github.com/Rrens/hospital-scheduler/internal/api/response"
	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// GenerateRequest is the body of a generate call. Tenant and location may be
// omitted; they come from the token and must match it when given.
type GenerateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=128"`
	LocationID   string `json:"location_id" validate:"omitempty,max=128"`
	StartDate    string `json:"start_date" validate:"omitempty,max=40"`
	EndDate      string `json:"end_date" validate:"omitempty,max=40"`
	Instructions string `json:"instructions" validate:"omitempty,max=4000"`
	UseAgent     *bool  `json:"use_agent"`
	LLMProvider  string `json:"llm_provider" validate:"omitempty,oneof=openai anthropic ollama deepseek gemini"`
	LLMModel     string `json:"llm_model" validate:"omitempty,max=128"`
	ValidateOnly bool   `json:"validate_only"`
}

// ScheduleHandler handles schedule endpoints
type ScheduleHandler struct {
	scheduleService *service.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

// Generate runs the full pipeline and returns the bulk-update payload
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	useAgent := true
	if req.UseAgent != nil {
		useAgent = *req.UseAgent
	}

	result, err := h.scheduleService.Generate(r.Context(), domain.GenerateInput{
		Claims:       claims,
		AccessToken:  middleware.GetAccessToken(r.Context()),
		TenantID:     req.TenantID,
		LocationID:   req.LocationID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Intent:       req.Instructions,
		UseAgent:     useAgent,
		LLMProvider:  req.LLMProvider,
		LLMModel:     req.LLMModel,
		ValidateOnly: req.ValidateOnly,
	})
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	response.OK(w, result)
}

// GetRun returns a run's audit record and its cached result
func (h *ScheduleHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		response.BadRequest(w, "invalid run ID")
		return
	}

	rc, err := h.scheduleService.ResolveContext(in)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	view, err := h.scheduleService.GetRun(r.Context(), rc.TenantID, runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to load run")
		return
	}

	response.OK(w, view)
}

// ListRuns returns recent runs for the caller's location
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.scheduleService.ListRuns(r.Context(), in, limit)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}
	if runs == nil {
		runs = []domain.GenerationRun{}
	}

	response.OK(w, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// Context returns the normalized ConstraintSet without synthesizing
func (h *ScheduleHandler) Context(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	cs, err := h.scheduleService.BuildContext(r.Context(), in)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	response.OK(w, cs)
}

// ValidateContext returns the resolved RequestContext
func (h *ScheduleHandler) ValidateContext(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	rc, err := h.scheduleService.ResolveContext(in)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	response.OK(w, rc)
}

// OperatingHours returns the location's normalized operating calendar
func (h *ScheduleHandler) OperatingHours(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	view, err := h.scheduleService.OperatingHours(r.Context(), in)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	response.OK(w, view)
}

// Availability returns expanded per-date availability
func (h *ScheduleHandler) Availability(w http.ResponseWriter, r *http.Request) {
	in, ok := inputFromQuery(w, r)
	if !ok {
		return
	}

	view, err := h.scheduleService.Availability(r.Context(), in)
	if err != nil {
		response.PipelineFailure(w, err)
		return
	}

	response.OK(w, view)
}

// inputFromQuery reads the scope of a read-only call from the query string.
func inputFromQuery(w http.ResponseWriter, r *http.Request) (domain.GenerateInput, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return domain.GenerateInput{}, false
	}

	q := r.URL.Query()
	return domain.GenerateInput{
		Claims:      claims,
		AccessToken: middleware.GetAccessToken(r.Context()),
		TenantID:    q.Get("tenant_id"),
		LocationID:  q.Get("location_id"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
	}, true
}
