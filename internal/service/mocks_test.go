package service

import (
	"context"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockHospitalSource mocks the HospitalSource interface
type MockHospitalSource struct {
	mock.Mock
}

func (m *MockHospitalSource) OperatingHours(ctx context.Context, s hospital.Scope) (*hospital.OperatingHoursDTO, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hospital.OperatingHoursDTO), args.Error(1)
}

func (m *MockHospitalSource) Availability(ctx context.Context, s hospital.Scope) ([]hospital.EmployeeGroupDTO, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hospital.EmployeeGroupDTO), args.Error(1)
}

func (m *MockHospitalSource) Holidays(ctx context.Context, s hospital.Scope) ([]hospital.HolidayDTO, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hospital.HolidayDTO), args.Error(1)
}

func (m *MockHospitalSource) Overtime(ctx context.Context, s hospital.Scope) (hospital.PolicyDTO, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(hospital.PolicyDTO), args.Error(1)
}

func (m *MockHospitalSource) BreakTimings(ctx context.Context, s hospital.Scope) (hospital.PolicyDTO, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(hospital.PolicyDTO), args.Error(1)
}

// MockSynthesizer mocks the Synthesizer interface
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Name() string {
	return "mock"
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*domain.CandidateSchedule, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CandidateSchedule), args.Error(1)
}

// MockRunRepository mocks the RunRepository interface
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *domain.GenerationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationRun), args.Error(1)
}

func (m *MockRunRepository) ListByLocation(ctx context.Context, tenantID, locationID string, limit int) ([]domain.GenerationRun, error) {
	args := m.Called(ctx, tenantID, locationID, limit)
	return args.Get(0).([]domain.GenerationRun), args.Error(1)
}

// MockResultCache mocks the ResultCache interface
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Set(ctx context.Context, result *domain.GenerationResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultCache) Get(ctx context.Context, runID uuid.UUID) (*domain.GenerationResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationResult), args.Error(1)
}

// MockLLMProvider mocks the llm.Provider interface
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Name() string              { return "mockllm" }
func (m *MockLLMProvider) AvailableModels() []string { return []string{"mock-1"} }
func (m *MockLLMProvider) DefaultModel() string      { return "mock-1" }
func (m *MockLLMProvider) IsConfigured() bool        { return true }

func (m *MockLLMProvider) Generate(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	args := m.Called(ctx, req, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}
