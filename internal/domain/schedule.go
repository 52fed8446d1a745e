package domain

import (
	"sort"
	"time"
)

// RequestContext identifies who asked for a schedule and for what scope.
type RequestContext struct {
	TenantID   string    `json:"tenant_id"`
	LocationID string    `json:"location_id"`
	UserID     string    `json:"user_id"`
	DateRange  DateRange `json:"date_range"`
}

// OperatingWindow is one open period on a weekday. Split-shift days are
// modeled as several non-overlapping windows on the same weekday.
type OperatingWindow struct {
	Weekday       time.Weekday `json:"weekday"`
	Open          Clock        `json:"open_time"`
	Close         Clock        `json:"close_time"`
	MinStaff      int          `json:"min_staff"`
	RequiredRoles []string     `json:"required_roles,omitempty"`
}

func (w OperatingWindow) Interval() Interval {
	return Interval{Start: w.Open, End: w.Close}
}

// OperatingCalendar holds every window of a location, ordered by weekday then open time.
type OperatingCalendar struct {
	Windows []OperatingWindow `json:"windows"`
}

// WindowsOn returns the windows that apply to the given date.
func (c OperatingCalendar) WindowsOn(d Date) []OperatingWindow {
	wd := d.Weekday()
	var out []OperatingWindow
	for _, w := range c.Windows {
		if w.Weekday == wd {
			out = append(out, w)
		}
	}
	return out
}

// Employee is a staff member eligible for scheduling.
type Employee struct {
	ID             string   `json:"employee_id"`
	Name           string   `json:"name,omitempty"`
	Role           string   `json:"role,omitempty"`
	WeeklyMaxHours float64  `json:"weekly_max_hours,omitempty"`
	EligibleRoles  []string `json:"eligible_roles,omitempty"`
}

// CanWork reports whether the employee may fill the given role.
func (e Employee) CanWork(role string) bool {
	if role == "" || role == e.Role {
		return true
	}
	for _, r := range e.EligibleRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AvailabilitySlot is a window an employee can work on a specific date.
type AvailabilitySlot struct {
	EmployeeID string `json:"employee_id"`
	Date       Date   `json:"date"`
	Start      Clock  `json:"start"`
	End        Clock  `json:"end"`
}

func (s AvailabilitySlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Holiday is one excluded date, unless Operating is set.
type Holiday struct {
	Date      Date   `json:"date"`
	Name      string `json:"name,omitempty"`
	Operating bool   `json:"holiday_operating"`
}

// HolidaySet is keyed by date.
type HolidaySet map[Date]Holiday

// Excludes reports whether staffing is forbidden on d. locationOperating is
// the location-wide holiday-operating flag.
func (h HolidaySet) Excludes(d Date, locationOperating bool) bool {
	hol, ok := h[d]
	if !ok {
		return false
	}
	return !hol.Operating && !locationOperating
}

// OvertimePolicy carries regular thresholds and the looser overtime ceilings.
// A zero ceiling means no ceiling.
type OvertimePolicy struct {
	DailyMaxRegularHours        float64 `json:"daily_max_regular_hours"`
	WeeklyMaxRegularHours       float64 `json:"weekly_max_regular_hours"`
	OvertimeMultiplierThreshold float64 `json:"overtime_multiplier_threshold"`
	DailyMaxOvertimeHours       float64 `json:"daily_max_overtime_hours"`
	WeeklyMaxOvertimeHours      float64 `json:"weekly_max_overtime_hours"`
}

// BreakRule requires a break of MinBreakMinutes in any assignment longer than
// ThresholdMinutes. A zero threshold disables the rule.
type BreakRule struct {
	ThresholdMinutes int `json:"threshold_minutes"`
	MinBreakMinutes  int `json:"min_break_minutes"`
}

func (b BreakRule) Enabled() bool {
	return b.ThresholdMinutes > 0 && b.MinBreakMinutes > 0
}

// ExcludedEmployee records an employee dropped during aggregation.
type ExcludedEmployee struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
	Reason     string `json:"reason"`
}

// AggregationMetadata describes how the ConstraintSet was assembled.
type AggregationMetadata struct {
	Excluded    []ExcludedEmployee `json:"excluded_employees,omitempty"`
	FetchedAt   time.Time          `json:"fetched_at"`
	Resources   []string           `json:"resources"`
	SlotCount   int                `json:"slot_count"`
	HolidayDays int                `json:"holiday_days"`
}

// ConstraintSet is the sole input to synthesis. It is built fresh for every request.
type ConstraintSet struct {
	Context          RequestContext      `json:"context"`
	TimeZone         string              `json:"time_zone"`
	Location         *time.Location      `json:"-"`
	Calendar         OperatingCalendar   `json:"operating_calendar"`
	Employees        []Employee          `json:"employees"`
	Availability     []AvailabilitySlot  `json:"availability"`
	Holidays         HolidaySet          `json:"holidays"`
	HolidayOperating bool                `json:"holiday_operating"`
	Overtime         OvertimePolicy      `json:"overtime_policy"`
	Breaks           BreakRule           `json:"break_rule"`
	Metadata         AggregationMetadata `json:"aggregation_metadata"`
}

// Employee looks up an employee by id.
func (c *ConstraintSet) Employee(id string) (Employee, bool) {
	for _, e := range c.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

// SlotsFor returns an employee's slots on a date, ordered by start.
func (c *ConstraintSet) SlotsFor(employeeID string, d Date) []AvailabilitySlot {
	var out []AvailabilitySlot
	for _, s := range c.Availability {
		if s.EmployeeID == employeeID && s.Date == d {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// StaffedDates lists dates in range that have at least one window and are not
// excluded holidays.
func (c *ConstraintSet) StaffedDates() []Date {
	var out []Date
	for _, d := range c.Context.DateRange.Dates() {
		if c.Holidays.Excludes(d, c.HolidayOperating) {
			continue
		}
		if len(c.Calendar.WindowsOn(d)) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Assignment is one shift in a candidate schedule.
type Assignment struct {
	EmployeeID string     `json:"employee_id"`
	Date       Date       `json:"date"`
	Start      Clock      `json:"start"`
	End        Clock      `json:"end"`
	IsOvertime bool       `json:"is_overtime"`
	Role       string     `json:"role,omitempty"`
	Breaks     []Interval `json:"breaks,omitempty"`
}

func (a Assignment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// WorkedMinutes is the span minus the union of breaks clipped to it, so
// repeated or overlapping breaks are only counted once.
func (a Assignment) WorkedMinutes() int {
	span := a.Interval()
	var clipped []Interval
	for _, b := range a.Breaks {
		if in, ok := span.Intersect(b); ok {
			clipped = append(clipped, in)
		}
	}

	worked := span.Minutes()
	for _, b := range MergeIntervals(clipped) {
		worked -= b.Minutes()
	}
	return max(worked, 0)
}

// CandidateSchedule is an unvalidated proposal.
type CandidateSchedule struct {
	Assignments []Assignment `json:"assignments"`
	Notes       string       `json:"notes,omitempty"`
	Source      string       `json:"source"`
	Model       string       `json:"model,omitempty"`
}

// Sorted returns a copy ordered by employee, date, then start.
func (s CandidateSchedule) Sorted() []Assignment {
	out := make([]Assignment, len(s.Assignments))
	copy(out, s.Assignments)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// ViolationKind names the rule a violation broke.
type ViolationKind string

const (
	ViolationUnknownReference  ViolationKind = "unknown_reference"
	ViolationCoverage          ViolationKind = "coverage"
	ViolationRequiredRole      ViolationKind = "required_role"
	ViolationDoubleBooking     ViolationKind = "double_booking"
	ViolationAvailability      ViolationKind = "availability"
	ViolationHoliday           ViolationKind = "holiday"
	ViolationOperatingHours    ViolationKind = "operating_hours"
	ViolationOvertimeUnflagged ViolationKind = "overtime_unflagged"
	ViolationOvertimeCeiling   ViolationKind = "overtime_ceiling"
	ViolationBreakPlacement    ViolationKind = "break_placement"
)

// AssignmentRef points at an assignment by its index in the candidate. Index
// is -1 for violations about a window rather than an assignment.
type AssignmentRef struct {
	Index      int    `json:"index"`
	EmployeeID string `json:"employee_id,omitempty"`
	Date       Date   `json:"date,omitempty"`
}

type Violation struct {
	Kind          ViolationKind `json:"kind"`
	AssignmentRef AssignmentRef `json:"assignment_ref"`
	Detail        string        `json:"detail"`
}

// ValidationReport is the exhaustive result of checking one candidate.
type ValidationReport struct {
	IsValid            bool        `json:"is_valid"`
	Violations         []Violation `json:"violations"`
	CheckedAssignments int         `json:"checked_assignments"`
}

// CountByKind tallies violations per kind.
func (r *ValidationReport) CountByKind() map[ViolationKind]int {
	out := make(map[ViolationKind]int)
	if r == nil {
		return out
	}
	for _, v := range r.Violations {
		out[v.Kind]++
	}
	return out
}
