package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/api"
	"github.com/Rrens/hospital-scheduler/internal/api/handler"
	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/Rrens/hospital-scheduler/internal/repository/redis"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/Rrens/hospital-scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-at-least-32-bytes"

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeLimiter struct {
	decision redis.Decision
	err      error
	keys     []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (redis.Decision, error) {
	f.keys = append(f.keys, key)
	return f.decision, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type fixture struct {
	handler  http.Handler
	token    string
	limiter  *fakeLimiter
	holidays string

	mu       sync.Mutex
	authSeen []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		holidays: `[]`,
		limiter:  &fakeLimiter{decision: redis.Decision{Allowed: true, Limit: 15, Remaining: 14, ResetAt: time.Now().Add(time.Minute)}},
	}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
		f.mu.Unlock()
		switch r.URL.Path {
		case "/hours":
			w.Write([]byte(`{"timeZone": "UTC", "items": [
				{"dayOfWeek": 1, "timeSlots": [{"startTime": "09:00", "endTime": "17:00", "minimumStaff": 1}]}
			]}`))
		case "/availability":
			w.Write([]byte(`{"employeeGroups": [{"employeeId": "e1", "employeeName": "Ana", "role": "nurse", "availabilities": [
				{"dayOfWeek": 1, "timeSlots": [{"startTime": "08:00", "endTime": "18:00"}]}
			]}]}`))
		case "/holidays":
			w.Write([]byte(`{"items": ` + f.holidays + `}`))
		case "/overtime":
			w.Write([]byte(`{"data": {"maxRegularHoursPerDay": 8}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	client := hospital.NewClient(config.HospitalAPIConfig{
		BaseURL:          backend.URL,
		Timeout:          2 * time.Second,
		HoursPath:        "/hours",
		AvailabilityPath: "/availability",
		HolidaysPath:     "/holidays",
		OvertimePath:     "/overtime",
		BreakTimingsPath: "/breaks",
	})

	opts := service.Options{
		MaxAttempts: 3,
		Defaults:    hospital.Defaults{TimeZone: "UTC", MinStaff: 1},
	}
	resolver := security.NewContextResolver(14, 31).WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	})
	llmRouter := llm.NewRouter("ollama")
	svc := service.NewScheduleService(resolver, service.NewAggregator(client, opts), llmRouter, nil, nil, opts)

	verifier := security.NewTokenVerifier(testSecret, "", "", 0)
	token, err := verifier.Issue(map[string]any{
		"sub":                "u1",
		"tenantId":           "t1",
		"businessLocationId": "l1",
	}, time.Hour)
	require.NoError(t, err)
	f.token = token

	f.handler = api.Routes(api.Dependencies{
		Verifier:  verifier,
		Limiter:   f.limiter,
		Schedules: svc,
		LLM:       llmRouter,
		Ready: map[string]handler.Pinger{
			"postgres": fakePinger{},
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

type errorBody struct {
	Kind             string          `json:"kind"`
	Message          string          `json:"message"`
	Field            string          `json:"field"`
	RunID            string          `json:"run_id"`
	State            string          `json:"state"`
	ValidationReport json.RawMessage `json:"validation_report"`
}

func decodeError(t *testing.T, env envelope) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(env.Error, &e))
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/v1/health", nil, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status": "ok"}`, string(env.Data))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	h := handler.ReadyCheck(map[string]handler.Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{err: errors.New("connection refused")},
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)
}

func TestGenerate_RequiresToken(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/api/v1/schedule/generate", map[string]any{}, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestGenerate_Heuristic(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/api/v1/schedule/generate", map[string]any{
		"start_date":    "2026-03-02",
		"end_date":      "2026-03-02",
		"use_agent":     false,
		"validate_only": true,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Synthesizer       string `json:"synthesizer"`
		BulkUpdatePayload struct {
			EmployeeSchedules []struct {
				EmployeeID  string `json:"employee_id"`
				Assignments []struct {
					Date  string `json:"date"`
					Start string `json:"start"`
					End   string `json:"end"`
				} `json:"assignments"`
			} `json:"employeeSchedules"`
			ValidateOnly bool `json:"validateOnly"`
		} `json:"bulk_update_payload"`
		GenerationMetadata struct {
			ScheduleCount int `json:"schedule_count"`
		} `json:"generation_metadata"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))

	assert.Equal(t, "heuristic", result.Synthesizer)
	assert.True(t, result.BulkUpdatePayload.ValidateOnly)
	require.Len(t, result.BulkUpdatePayload.EmployeeSchedules, 1)
	s := result.BulkUpdatePayload.EmployeeSchedules[0]
	assert.Equal(t, "e1", s.EmployeeID)
	require.Len(t, s.Assignments, 1)
	assert.Equal(t, "2026-03-02", s.Assignments[0].Date)
	assert.Equal(t, "09:00:00", s.Assignments[0].Start)
	assert.Equal(t, "17:00:00", s.Assignments[0].End)
	assert.Equal(t, 1, result.GenerationMetadata.ScheduleCount)

	require.NotEmpty(t, f.authSeen)
	for _, h := range f.authSeen {
		assert.Equal(t, "Bearer "+f.token, h)
	}
	assert.Equal(t, []string{"t1|u1"}, f.limiter.keys)
	assert.Equal(t, "14", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		holidays   string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "tenant mismatch",
			body:       map[string]any{"tenant_id": "t2", "use_agent": false},
			wantStatus: http.StatusForbidden,
			wantKind:   "context",
		},
		{
			name:       "inverted range",
			body:       map[string]any{"start_date": "2026-03-08", "end_date": "2026-03-02", "use_agent": false},
			wantStatus: http.StatusBadRequest,
			wantKind:   "range",
		},
		{
			name:       "no llm provider registered",
			body:       map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-02"},
			wantStatus: http.StatusBadGateway,
			wantKind:   "synthesis",
		},
		{
			name:       "every date is a holiday",
			body:       map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-02", "use_agent": false},
			holidays:   `[{"date": "2026-03-02", "name": "Founders Day"}]`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "constraint_unsatisfiable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.holidays != "" {
				f.holidays = tt.holidays
			}

			rec, env := f.do(t, http.MethodPost, "/api/v1/schedule/generate", tt.body, true)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			e := decodeError(t, env)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.NotEmpty(t, e.RunID)
			if tt.wantStatus == http.StatusUnprocessableEntity {
				assert.Contains(t, string(e.ValidationReport), `"coverage"`)
			}
		})
	}
}

func TestGenerate_RejectsInvalidBody(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/schedule/generate", map[string]any{"llm_provider": "mistral"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/generate", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+f.token)
	raw := httptest.NewRecorder()
	f.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestGenerate_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.decision = redis.Decision{Allowed: false, Limit: 15, Remaining: 0, ResetAt: time.Now().Add(30 * time.Second)}

	rec, _ := f.do(t, http.MethodPost, "/api/v1/schedule/generate", map[string]any{"use_agent": false}, true)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, f.authSeen)
}

func TestGenerate_LimiterFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.limiter.err = errors.New("redis down")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/schedule/generate", map[string]any{
		"start_date": "2026-03-02", "end_date": "2026-03-02", "use_agent": false,
	}, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRuns(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/schedule/runs/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/schedule/runs/6f1c1a52-3f7b-4b8e-9a51-0d7c7c0f5e11", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/v1/schedule/runs?limit=5", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs": [], "count": 0}`, string(env.Data))

	rec, _ = f.do(t, http.MethodGet, "/api/v1/schedule/runs?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadOnlyEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/context/validate?start_date=2026-03-02&end_date=2026-03-08", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"tenant_id": "t1", "location_id": "l1", "user_id": "u1",
		"date_range": {"startDate": "2026-03-02", "endDate": "2026-03-08"}
	}`, string(env.Data))

	rec, env = f.do(t, http.MethodGet, "/api/v1/hospital/hours", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"open_time":"09:00:00"`)

	rec, env = f.do(t, http.MethodGet, "/api/v1/hospital/availability?start_date=2026-03-02&end_date=2026-03-08", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"employee_id":"e1"`)

	rec, env = f.do(t, http.MethodGet, "/api/v1/schedule/context?start_date=2026-03-02&end_date=2026-03-08", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"daily_max_regular_hours":8`)

	rec, env = f.do(t, http.MethodGet, "/api/v1/context/validate?location_id=l9", nil, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "location_id", decodeError(t, env).Field)
}

func TestListLLMProviders(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/v1/llm-providers", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"providers": [], "default_provider": "ollama"}`, string(env.Data))
}
