package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownProvider       = errors.New("unknown llm provider")
	ErrProviderNotConfigured = errors.New("llm provider not configured")
)

// Router picks the provider an agent-backed schedule request asked for.
// Names are matched case-insensitively; an empty name means the configured
// default.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers: make(map[string]Provider),
		fallback:  normalize(defaultProvider),
	}
}

// Register adds p, replacing any provider with the same name.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalize(p.Name())] = p
}

// Configured lists the providers that have credentials, sorted by name.
func (r *Router) Configured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, p := range r.providers {
		if p.IsConfigured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Select resolves name to a usable provider. Errors wrap ErrUnknownProvider
// or ErrProviderNotConfigured.
func (r *Router) Select(name string) (Provider, error) {
	key := normalize(name)
	if key == "" {
		key = r.fallback
	}

	r.mu.RLock()
	p, ok := r.providers[key]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, key)
	case !p.IsConfigured():
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, key)
	}
	return p, nil
}

func (r *Router) Default() string {
	return r.fallback
}

// ProviderStatus is one row of the provider listing endpoint.
type ProviderStatus struct {
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	Default    bool     `json:"default"`
	Configured bool     `json:"configured"`
}

func (r *Router) Describe() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, ProviderStatus{
			Name:       name,
			Models:     p.AvailableModels(),
			Default:    name == r.fallback,
			Configured: p.IsConfigured(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
