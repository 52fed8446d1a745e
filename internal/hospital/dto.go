package hospital

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// FlexTime decodes the time-of-day shapes the hospital API emits: "HH:MM",
// "HH:MM:SS", {hours,minutes,seconds}, {ticks} and ISO-8601 datetimes. A
// datetime keeps its instant so it can be moved into the location timezone.
type FlexTime struct {
	clock   domain.Clock
	instant time.Time
	valid   bool
}

func (f *FlexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = FlexTime{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return f.parseString(s)
	}

	if b[0] == '{' {
		var obj struct {
			Hours   *FlexNumber `json:"hours"`
			Minutes *FlexNumber `json:"minutes"`
			Seconds *FlexNumber `json:"seconds"`
			Ticks   *FlexNumber `json:"ticks"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		switch {
		case obj.Hours != nil && obj.Minutes != nil:
			h, m := int(obj.Hours.Value), int(obj.Minutes.Value)
			if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
				return fmt.Errorf("time span %02d:%02d out of range", h, m)
			}
			*f = FlexTime{clock: domain.NewClock(h, m), valid: true}
			return nil
		case obj.Ticks != nil:
			// 100ns ticks since midnight
			minutes := int(int64(obj.Ticks.Value) / int64(time.Minute/100))
			if minutes < 0 || minutes > int(domain.MinutesPerDay) {
				return fmt.Errorf("ticks %v out of range", obj.Ticks.Value)
			}
			*f = FlexTime{clock: domain.Clock(minutes), valid: true}
			return nil
		}
		return fmt.Errorf("unrecognized time object %s", string(b))
	}

	return fmt.Errorf("unrecognized time value %s", string(b))
}

func (f *FlexTime) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = FlexTime{}
		return nil
	}
	if c, err := domain.ParseClock(s); err == nil {
		*f = FlexTime{clock: c, valid: true}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = FlexTime{clock: clockOf(t), instant: t, valid: true}
			return nil
		}
	}
	return fmt.Errorf("invalid time %q", s)
}

// Valid reports whether a value was present.
func (f FlexTime) Valid() bool { return f.valid }

// In returns the wall clock in loc. Plain clock values are already local.
func (f FlexTime) In(loc *time.Location) domain.Clock {
	if !f.instant.IsZero() && loc != nil {
		return clockOf(f.instant.In(loc))
	}
	return f.clock
}

func clockOf(t time.Time) domain.Clock {
	return domain.NewClock(t.Hour(), t.Minute())
}

// FlexNumber accepts a JSON number or a numeric string.
type FlexNumber struct {
	Value float64
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		n.Value = v
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// FlexID accepts string or numeric identifiers.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid identifier %s", string(b))
	}
	*id = FlexID(n.String())
	return nil
}

// TimeSlotDTO is one open or available period.
type TimeSlotDTO struct {
	StartTime     FlexTime    `json:"startTime"`
	EndTime       FlexTime    `json:"endTime"`
	MinimumStaff  *FlexNumber `json:"minimumStaff"`
	RequiredRoles []string    `json:"requiredRoles"`
}

// OperatingDayDTO is one weekday entry of the operating-hours resource.
type OperatingDayDTO struct {
	DayOfWeek     FlexNumber    `json:"dayOfWeek"`
	IsOpen        *bool         `json:"isOpen"`
	OpenTime      FlexTime      `json:"openTime"`
	CloseTime     FlexTime      `json:"closeTime"`
	MinimumStaff  *FlexNumber   `json:"minimumStaff"`
	RequiredRoles []string      `json:"requiredRoles"`
	TimeSlots     []TimeSlotDTO `json:"timeSlots"`
	Notes         string        `json:"notes"`
}

// OperatingHoursDTO is the decoded operating-hours resource.
type OperatingHoursDTO struct {
	TimeZone         string
	HolidayOperating *bool
	MinimumStaff     *FlexNumber
	RequiredRoles    []string
	Days             []OperatingDayDTO
}

type hoursEnvelope struct {
	TimeZone         string      `json:"timeZone"`
	TimeZoneAlt      string      `json:"timezone"`
	HolidayOperating *bool       `json:"holidayOperating"`
	MinimumStaff     *FlexNumber `json:"minimumStaff"`
	RequiredRoles    []string    `json:"requiredRoles"`
}

// AvailabilityDTO is one availability rule of an employee.
type AvailabilityDTO struct {
	ID                 FlexID        `json:"id"`
	DayOfWeek          *FlexNumber   `json:"dayOfWeek"`
	SpecificDate       string        `json:"specificDate"`
	IsAvailable        *bool         `json:"isAvailable"`
	IsActive           *bool         `json:"isActive"`
	IsApproved         *bool         `json:"isApproved"`
	AllowOverride      bool          `json:"allowOverride"`
	EffectiveStartDate string        `json:"effectiveStartDate"`
	EffectiveEndDate   string        `json:"effectiveEndDate"`
	TimeSlots          []TimeSlotDTO `json:"timeSlots"`
}

// EmployeeGroupDTO groups one employee's availability rules.
type EmployeeGroupDTO struct {
	EmployeeID     FlexID            `json:"employeeId"`
	EmployeeName   string            `json:"employeeName"`
	Role           string            `json:"role"`
	JobTitle       string            `json:"jobTitle"`
	EligibleRoles  []string          `json:"eligibleRoles"`
	WeeklyMaxHours *FlexNumber       `json:"weeklyMaxHours"`
	Availabilities []AvailabilityDTO `json:"availabilities"`
}

// HolidayDTO is one entry of the holidays resource.
type HolidayDTO struct {
	Date        string `json:"date"`
	HolidayDate string `json:"holidayDate"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Name        string `json:"name"`
	IsOperating *bool  `json:"isOperating"`
	IsActive    *bool  `json:"isActive"`
}

// PolicyDTO holds the loosely named numeric fields of the overtime and
// break-timing resources.
type PolicyDTO map[string]FlexNumber

// Pick returns the first present field.
func (p PolicyDTO) Pick(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			return v.Value, true
		}
	}
	return 0, false
}

// listKeys are the envelope keys a list may sit under.
var listKeys = []string{"items", "operatingHours", "operating_hours", "data", "employeeGroups", "holidays", "result"}

// findList locates the list inside a response body. It returns the list and
// the enclosing object, if any.
func findList(body []byte) (json.RawMessage, map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil, fmt.Errorf("empty body")
	}
	if body[0] == '[' {
		return body, nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, nil, err
	}
	for _, k := range listKeys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if raw[0] == '[' {
			return raw, obj, nil
		}
		if raw[0] == '{' {
			if list, inner, err := findList(raw); err == nil && list != nil {
				return list, inner, nil
			}
		}
	}
	return nil, obj, nil
}

// findObject unwraps a single object that may sit under data/result or be the
// first element of a list.
func findObject(body []byte) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if body[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return map[string]json.RawMessage{}, nil
		}
		return findObject(list[0])
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	for _, k := range []string{"data", "result", "items"} {
		if raw, ok := obj[k]; ok {
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
				return findObject(raw)
			}
		}
	}
	return obj, nil
}

func decodeOperatingHours(body []byte) (*OperatingHoursDTO, error) {
	list, obj, err := findList(body)
	if err != nil {
		return nil, err
	}

	out := &OperatingHoursDTO{}
	if obj != nil {
		raw, _ := json.Marshal(obj)
		var env hoursEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		out.TimeZone = env.TimeZone
		if out.TimeZone == "" {
			out.TimeZone = env.TimeZoneAlt
		}
		out.HolidayOperating = env.HolidayOperating
		out.MinimumStaff = env.MinimumStaff
		out.RequiredRoles = env.RequiredRoles
	}
	if list == nil {
		return nil, fmt.Errorf("no operating hours list in response")
	}
	if err := json.Unmarshal(list, &out.Days); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEmployeeGroups(body []byte) ([]EmployeeGroupDTO, error) {
	list, _, err := findList(body)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("no employee groups in response")
	}
	var groups []EmployeeGroupDTO
	if err := json.Unmarshal(list, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func decodeHolidays(body []byte) ([]HolidayDTO, error) {
	list, _, err := findList(body)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("no holiday list in response")
	}
	var holidays []HolidayDTO
	if err := json.Unmarshal(list, &holidays); err != nil {
		return nil, err
	}
	for i, h := range holidays {
		for _, d := range []string{h.Date, h.HolidayDate, h.StartDate, h.EndDate} {
			if d == "" {
				continue
			}
			if _, err := domain.ParseDate(d); err != nil {
				return nil, fmt.Errorf("holiday %d: %w", i, err)
			}
		}
	}
	return holidays, nil
}

func decodePolicy(body []byte) (PolicyDTO, error) {
	obj, err := findObject(body)
	if err != nil {
		return nil, err
	}
	out := make(PolicyDTO, len(obj))
	for k, raw := range obj {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] == '{' || raw[0] == '[' || raw[0] == 't' || raw[0] == 'f' || string(raw) == "null" {
			continue
		}
		var n FlexNumber
		if err := json.Unmarshal(raw, &n); err != nil {
			// non-numeric fields such as names are ignored
			continue
		}
		out[k] = n
	}
	return out, nil
}
