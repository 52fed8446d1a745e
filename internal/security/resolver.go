package security

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-.:]{0,127}$`)

// Claim names checked in order; identity providers disagree on naming.
var (
	userClaims     = []string{"sub", "nameid", "userId", "oid"}
	tenantClaims   = []string{"tenantId", "tenant_id", "tid", "tenant"}
	locationClaims = []string{"businessLocationId", "currentBusinessLocationId", "locationId"}
)

// ResolveInput is the verified claim set plus the scope the caller asked for.
type ResolveInput struct {
	Claims     map[string]any
	TenantID   string
	LocationID string
	StartDate  string
	EndDate    string
}

// ContextResolver turns verified claims into a RequestContext.
type ContextResolver struct {
	defaultSpanDays int
	maxSpanDays     int
	now             func() time.Time
}

// NewContextResolver creates a resolver with the given window limits.
func NewContextResolver(defaultSpanDays, maxSpanDays int) *ContextResolver {
	return &ContextResolver{
		defaultSpanDays: defaultSpanDays,
		maxSpanDays:     maxSpanDays,
		now:             time.Now,
	}
}

// WithClock overrides the time source used for the default window.
func (r *ContextResolver) WithClock(now func() time.Time) *ContextResolver {
	cp := *r
	cp.now = now
	return &cp
}

// Resolve has no side effects.
func (r *ContextResolver) Resolve(in ResolveInput) (domain.RequestContext, error) {
	userID, err := requiredClaim(in.Claims, "user_id", userClaims)
	if err != nil {
		return domain.RequestContext{}, err
	}
	tenantID, err := requiredClaim(in.Claims, "tenant_id", tenantClaims)
	if err != nil {
		return domain.RequestContext{}, err
	}
	locationID, err := requiredClaim(in.Claims, "location_id", locationClaims)
	if err != nil {
		return domain.RequestContext{}, err
	}

	if err := matchRequested("tenant_id", tenantID, in.TenantID); err != nil {
		return domain.RequestContext{}, err
	}
	if err := matchRequested("location_id", locationID, in.LocationID); err != nil {
		return domain.RequestContext{}, err
	}

	dr, err := r.dateRange(in.StartDate, in.EndDate)
	if err != nil {
		return domain.RequestContext{}, err
	}

	return domain.RequestContext{
		TenantID:   tenantID,
		LocationID: locationID,
		UserID:     userID,
		DateRange:  dr,
	}, nil
}

func (r *ContextResolver) dateRange(startRaw, endRaw string) (domain.DateRange, error) {
	var start domain.Date
	if strings.TrimSpace(startRaw) == "" {
		start = domain.DateOf(r.now().UTC())
	} else {
		d, err := domain.ParseDate(startRaw)
		if err != nil {
			return domain.DateRange{}, &domain.RangeError{Field: "start_date", Reason: err.Error()}
		}
		start = d
	}

	var end domain.Date
	if strings.TrimSpace(endRaw) == "" {
		end = start.AddDays(r.defaultSpanDays - 1)
	} else {
		d, err := domain.ParseDate(endRaw)
		if err != nil {
			return domain.DateRange{}, &domain.RangeError{Field: "end_date", Reason: err.Error()}
		}
		end = d
	}

	dr := domain.DateRange{Start: start, End: end}
	if end.Before(start) {
		return domain.DateRange{}, &domain.RangeError{
			Field:  "end_date",
			Reason: fmt.Sprintf("end %s is before start %s", end, start),
		}
	}
	if r.maxSpanDays > 0 && dr.Days() > r.maxSpanDays {
		return domain.DateRange{}, &domain.RangeError{
			Field:  "end_date",
			Reason: fmt.Sprintf("range of %d days exceeds maximum of %d", dr.Days(), r.maxSpanDays),
		}
	}
	return dr, nil
}

func requiredClaim(claims map[string]any, field string, names []string) (string, error) {
	for _, name := range names {
		raw, ok := claims[name]
		if !ok || raw == nil {
			continue
		}
		s := claimString(raw)
		if s == "" {
			continue
		}
		if !identifierPattern.MatchString(s) {
			return "", &domain.ContextError{Field: field, Reason: fmt.Sprintf("claim %q is not a well-formed identifier", name)}
		}
		return s, nil
	}
	return "", &domain.ContextError{Field: field, Reason: "missing from identity claims"}
}

func matchRequested(field, fromClaims, requested string) error {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == fromClaims {
		return nil
	}
	return &domain.ContextError{
		Field:    field,
		Reason:   fmt.Sprintf("requested %q does not match identity", requested),
		Mismatch: true,
	}
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
