package hospital

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/rs/zerolog/log"
)

// Resource names used in errors and metadata.
const (
	ResourceOperatingHours = "operating_hours"
	ResourceAvailability   = "availability"
	ResourceHolidays       = "holidays"
	ResourceOvertime       = "overtime"
	ResourceBreakTimings   = "break_timings"
)

const maxBodyBytes = 8 << 20

// Scope parameterizes every fetch.
type Scope struct {
	TenantID    string
	LocationID  string
	AccessToken string
	DateRange   domain.DateRange
}

// Client reads the hospital-data service. All calls are read-only.
type Client struct {
	baseURL string
	paths   config.HospitalAPIConfig
	http    *http.Client
}

// NewClient creates a hospital-data client
func NewClient(cfg config.HospitalAPIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		paths:   cfg,
		http:    &http.Client{Timeout: timeout},
	}
}

// OperatingHours fetches the location's weekly calendar.
func (c *Client) OperatingHours(ctx context.Context, s Scope) (*OperatingHoursDTO, error) {
	body, err := c.do(ctx, ResourceOperatingHours, http.MethodGet, c.paths.HoursPath, s, nil, nil)
	if err != nil {
		return nil, err
	}
	dto, err := decodeOperatingHours(body)
	if err != nil {
		return nil, malformed(ResourceOperatingHours, err)
	}
	return dto, nil
}

// Availability searches active, available employee availability.
func (c *Client) Availability(ctx context.Context, s Scope) ([]EmployeeGroupDTO, error) {
	filters := map[string]bool{"isAvailable": true, "isActive": true}
	body, err := c.do(ctx, ResourceAvailability, http.MethodPost, c.paths.AvailabilityPath, s, nil, filters)
	if err != nil {
		return nil, err
	}
	groups, err := decodeEmployeeGroups(body)
	if err != nil {
		return nil, malformed(ResourceAvailability, err)
	}
	return groups, nil
}

// Holidays fetches the holiday calendar. The year filter is sent only when
// the range sits inside one year.
func (c *Client) Holidays(ctx context.Context, s Scope) ([]HolidayDTO, error) {
	extra := url.Values{}
	startYear, endYear := s.DateRange.Start.Time().Year(), s.DateRange.End.Time().Year()
	if startYear == endYear {
		extra.Set("year", strconv.Itoa(startYear))
	}
	body, err := c.do(ctx, ResourceHolidays, http.MethodGet, c.paths.HolidaysPath, s, extra, nil)
	if err != nil {
		return nil, err
	}
	holidays, err := decodeHolidays(body)
	if err != nil {
		return nil, malformed(ResourceHolidays, err)
	}
	return holidays, nil
}

// Overtime fetches the location's overtime policy.
func (c *Client) Overtime(ctx context.Context, s Scope) (PolicyDTO, error) {
	return c.policy(ctx, ResourceOvertime, c.paths.OvertimePath, s)
}

// BreakTimings fetches the location's break rule.
func (c *Client) BreakTimings(ctx context.Context, s Scope) (PolicyDTO, error) {
	return c.policy(ctx, ResourceBreakTimings, c.paths.BreakTimingsPath, s)
}

func (c *Client) policy(ctx context.Context, resource, path string, s Scope) (PolicyDTO, error) {
	body, err := c.do(ctx, resource, http.MethodGet, path, s, nil, nil)
	if err != nil {
		return nil, err
	}
	p, err := decodePolicy(body)
	if err != nil {
		return nil, malformed(resource, err)
	}
	return p, nil
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Title   string `json:"title"`
}

func (c *Client) do(ctx context.Context, resource, method, path string, s Scope, extra url.Values, payload any) ([]byte, error) {
	q := url.Values{}
	q.Set("tenantId", s.TenantID)
	q.Set("locationId", s.LocationID)
	if s.DateRange.Start != "" {
		q.Set("startDate", string(s.DateRange.Start))
		q.Set("endDate", string(s.DateRange.End))
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	endpoint := c.baseURL + path + "?" + q.Encode()

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &domain.UpstreamError{Resource: resource, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &domain.UpstreamError{Resource: resource, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out: %w", err)
		}
		return nil, &domain.UpstreamError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.UpstreamError{Resource: resource, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	log.Debug().
		Str("resource", resource).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("hospital api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{Resource: resource, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(body, resp.Status))}
	}
	return body, nil
}

func errorMessage(body []byte, status string) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Message, e.Error, e.Title} {
			if m != "" {
				return m
			}
		}
	}
	return status
}

func malformed(resource string, err error) error {
	return &domain.UpstreamError{Resource: resource, Err: fmt.Errorf("malformed response: %w", err)}
}
