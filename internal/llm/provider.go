package llm

import (
	"context"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// Request contains schedule generation parameters
type Request struct {
	TenantID   string
	LocationID string
	Window     domain.DateRange
	Intent     string

	// Constraints is the JSON encoding of the ConstraintSet.
	Constraints string

	// Feedback holds the previous attempt's violations, empty on the first attempt.
	Feedback []domain.Violation
	Attempt  int

	Temperature float64
	MaxTokens   int
}

// Response contains LLM generation result
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate asks the model for a candidate schedule
	Generate(ctx context.Context, req Request, model string) (*Response, error)
}


const defaultMaxTokens = 8192

// MaxTokensOr returns the request's token budget or the package default.
func (r Request) MaxTokensOr() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}
