// Package validation checks candidate schedules against a ConstraintSet.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// Validator is stateless; one instance may serve concurrent requests.
type Validator struct{}

// New creates a validator
func New() *Validator {
	return &Validator{}
}

// Validate runs every check and returns an exhaustive, deterministically
// ordered report. The candidate is never modified.
func (v *Validator) Validate(candidate domain.CandidateSchedule, cs *domain.ConstraintSet) *domain.ValidationReport {
	c := &checker{
		cs:          cs,
		assignments: candidate.Assignments,
		ok:          make([]bool, len(candidate.Assignments)),
		employees:   make(map[string]domain.Employee, len(cs.Employees)),
	}
	for _, e := range cs.Employees {
		c.employees[e.ID] = e
	}

	c.references()
	c.holidays()
	c.operatingHours()
	c.availability()
	c.doubleBooking()
	c.hours()
	c.breaks()
	c.coverage()

	sort.SliceStable(c.violations, func(i, j int) bool {
		a, b := c.violations[i], c.violations[j]
		if a.AssignmentRef.Index != b.AssignmentRef.Index {
			return a.AssignmentRef.Index < b.AssignmentRef.Index
		}
		if a.AssignmentRef.Date != b.AssignmentRef.Date {
			return a.AssignmentRef.Date < b.AssignmentRef.Date
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Detail < b.Detail
	})

	violations := c.violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	return &domain.ValidationReport{
		IsValid:            len(violations) == 0,
		Violations:         violations,
		CheckedAssignments: len(candidate.Assignments),
	}
}

type checker struct {
	cs          *domain.ConstraintSet
	assignments []domain.Assignment
	employees   map[string]domain.Employee

	// ok marks assignments whose employee, date and times are usable by the other checks.
	ok         []bool
	violations []domain.Violation
}

func (c *checker) add(kind domain.ViolationKind, i int, format string, args ...any) {
	ref := domain.AssignmentRef{Index: i}
	if i >= 0 {
		ref.EmployeeID = c.assignments[i].EmployeeID
		ref.Date = c.assignments[i].Date
	}
	c.violations = append(c.violations, domain.Violation{Kind: kind, AssignmentRef: ref, Detail: fmt.Sprintf(format, args...)})
}

func (c *checker) addWindow(kind domain.ViolationKind, d domain.Date, format string, args ...any) {
	c.violations = append(c.violations, domain.Violation{
		Kind:          kind,
		AssignmentRef: domain.AssignmentRef{Index: -1, Date: d},
		Detail:        fmt.Sprintf(format, args...),
	})
}

func (c *checker) references() {
	dr := c.cs.Context.DateRange
	for i, a := range c.assignments {
		ok := true

		emp, known := c.employees[a.EmployeeID]
		if !known {
			c.add(domain.ViolationUnknownReference, i, "employee %q is not schedulable in this window", a.EmployeeID)
			ok = false
		}

		if parsed, err := domain.ParseDate(string(a.Date)); err != nil || parsed != a.Date || !dr.Contains(a.Date) {
			c.add(domain.ViolationUnknownReference, i, "date %q is outside %s..%s", a.Date, dr.Start, dr.End)
			ok = false
		}

		if a.Start < 0 || a.End > domain.MinutesPerDay || a.End <= a.Start {
			c.add(domain.ViolationUnknownReference, i, "shift %s has no valid duration", short(a.Interval()))
			ok = false
		}

		if known && a.Role != "" && !emp.CanWork(a.Role) {
			c.add(domain.ViolationUnknownReference, i, "employee %s is not eligible for role %q", a.EmployeeID, a.Role)
		}

		c.ok[i] = ok
	}
}

func (c *checker) holidays() {
	for i, a := range c.assignments {
		if !c.ok[i] || !c.cs.Holidays.Excludes(a.Date, c.cs.HolidayOperating) {
			continue
		}
		name := c.cs.Holidays[a.Date].Name
		if name == "" {
			name = "holiday"
		}
		c.add(domain.ViolationHoliday, i, "%s is a non-operating holiday (%s)", a.Date, name)
	}
}

func (c *checker) operatingHours() {
	for i, a := range c.assignments {
		if !c.ok[i] {
			continue
		}
		windows := c.cs.Calendar.WindowsOn(a.Date)
		if len(windows) == 0 {
			c.add(domain.ViolationOperatingHours, i, "location is closed on %s", a.Date.Weekday())
			continue
		}
		ivs := make([]domain.Interval, len(windows))
		for k, w := range windows {
			ivs[k] = w.Interval()
		}
		if !containedIn(a.Interval(), domain.MergeIntervals(ivs)) {
			c.add(domain.ViolationOperatingHours, i, "shift %s is outside operating windows %s", short(a.Interval()), shortList(domain.MergeIntervals(ivs)))
		}
	}
}

func (c *checker) availability() {
	for i, a := range c.assignments {
		if !c.ok[i] {
			continue
		}
		slots := c.cs.SlotsFor(a.EmployeeID, a.Date)
		ivs := make([]domain.Interval, len(slots))
		for k, s := range slots {
			ivs[k] = s.Interval()
		}
		merged := domain.MergeIntervals(ivs)
		if !containedIn(a.Interval(), merged) {
			if len(merged) == 0 {
				c.add(domain.ViolationAvailability, i, "employee %s has no availability on %s", a.EmployeeID, a.Date)
				continue
			}
			c.add(domain.ViolationAvailability, i, "shift %s is outside availability %s", short(a.Interval()), shortList(merged))
		}
	}
}

func (c *checker) doubleBooking() {
	groups := make(map[string][]int)
	var keys []string
	for i, a := range c.assignments {
		if !c.ok[i] {
			continue
		}
		k := a.EmployeeID + "|" + string(a.Date)
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range keys {
		idx := groups[k]
		for p := 0; p < len(idx); p++ {
			for q := p + 1; q < len(idx); q++ {
				a, b := c.assignments[idx[p]], c.assignments[idx[q]]
				if a.Interval().Overlaps(b.Interval()) {
					c.add(domain.ViolationDoubleBooking, idx[q], "shift %s overlaps assignment #%d (%s)", short(b.Interval()), idx[p], short(a.Interval()))
				}
			}
		}
	}
}

func (c *checker) hours() {
	var order []int
	for i := range c.assignments {
		if c.ok[i] {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := c.assignments[order[x]], c.assignments[order[y]]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Start < b.Start
	})

	policy := c.cs.Overtime
	ledger := NewLedger(policy)
	reported := make(map[string]bool)

	for _, i := range order {
		a := c.assignments[i]
		acc := ledger.Add(a.EmployeeID, a.Date, a.WorkedMinutes())

		if acc.Overtime > 0 && !a.IsOvertime {
			c.add(domain.ViolationOvertimeUnflagged, i, "%s beyond the regular threshold (daily %s, weekly %s) is not flagged as overtime",
				formatHours(acc.Overtime), thresholdLabel(policy.DailyMaxRegularHours), thresholdLabel(policy.WeeklyMaxRegularHours))
		}

		for _, br := range ledger.Breaches(c.employees[a.EmployeeID], acc) {
			scope := string(a.Date)
			if br.Ceiling != CeilingDailyOvertime {
				scope = acc.Week
			}
			key := a.EmployeeID + "|" + string(br.Ceiling) + "|" + scope
			if reported[key] {
				continue
			}
			reported[key] = true
			c.add(domain.ViolationOvertimeCeiling, i, "%s in %s", br, scope)
		}
	}
}

func (c *checker) breaks() {
	rule := c.cs.Breaks
	for i, a := range c.assignments {
		if !c.ok[i] {
			continue
		}
		span := a.Interval()
		for _, b := range a.Breaks {
			if b.End <= b.Start || b.Start <= span.Start || b.End >= span.End {
				c.add(domain.ViolationBreakPlacement, i, "break %s is not strictly inside shift %s", short(b), short(span))
			}
		}
		ordered := append([]domain.Interval(nil), a.Breaks...)
		sort.SliceStable(ordered, func(x, y int) bool { return ordered[x].Start < ordered[y].Start })
		for k := 1; k < len(ordered); k++ {
			if ordered[k].Start < ordered[k-1].End {
				c.add(domain.ViolationBreakPlacement, i, "break %s overlaps break %s", short(ordered[k]), short(ordered[k-1]))
			}
		}

		if !rule.Enabled() || span.Minutes() <= rule.ThresholdMinutes {
			continue
		}
		if !hasBreak(a, rule.MinBreakMinutes) {
			c.add(domain.ViolationBreakPlacement, i, "shift of %s needs a break of at least %dm", formatHours(span.Minutes()), rule.MinBreakMinutes)
		}
	}
}

// hasBreak reports whether a break of at least minMinutes sits strictly inside the shift.
func hasBreak(a domain.Assignment, minMinutes int) bool {
	for _, b := range a.Breaks {
		if b.Start > a.Start && b.End < a.End && b.Minutes() >= minMinutes {
			return true
		}
	}
	return false
}

func (c *checker) coverage() {
	dates := c.cs.StaffedDates()
	if len(dates) == 0 {
		dr := c.cs.Context.DateRange
		c.addWindow(domain.ViolationCoverage, dr.Start, "no staffable operating date between %s and %s", dr.Start, dr.End)
		return
	}

	byDate := make(map[domain.Date][]int)
	for i, a := range c.assignments {
		if c.ok[i] {
			byDate[a.Date] = append(byDate[a.Date], i)
		}
	}

	for _, d := range dates {
		for _, w := range c.cs.Calendar.WindowsOn(d) {
			win := w.Interval()
			var shifts []domain.Interval
			var present []int
			for _, i := range byDate[d] {
				if in, ok := c.assignments[i].Interval().Intersect(win); ok {
					shifts = append(shifts, in)
					present = append(present, i)
				}
			}

			if w.MinStaff > 0 {
				if gaps := understaffed(win, shifts, w.MinStaff); len(gaps) > 0 {
					c.addWindow(domain.ViolationCoverage, d, "window %s needs %d staff, short during %s", short(win), w.MinStaff, shortList(gaps))
				}
			}

			for _, role := range w.RequiredRoles {
				if !c.roleCovered(role, present) {
					c.addWindow(domain.ViolationRequiredRole, d, "window %s has no %s assigned", short(win), role)
				}
			}
		}
	}
}

func (c *checker) roleCovered(role string, present []int) bool {
	for _, i := range present {
		a := c.assignments[i]
		emp := c.employees[a.EmployeeID]
		effective := a.Role
		if effective == "" {
			effective = emp.Role
		}
		if effective == role && emp.CanWork(role) {
			return true
		}
	}
	return false
}

// understaffed returns the parts of win covered by fewer than need shifts.
func understaffed(win domain.Interval, shifts []domain.Interval, need int) []domain.Interval {
	points := []domain.Clock{win.Start, win.End}
	for _, s := range shifts {
		points = append(points, s.Start, s.End)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var gaps []domain.Interval
	for k := 0; k+1 < len(points); k++ {
		seg := domain.Interval{Start: points[k], End: points[k+1]}
		if seg.Minutes() == 0 {
			continue
		}
		count := 0
		for _, s := range shifts {
			if s.Contains(seg) {
				count++
			}
		}
		if count >= need {
			continue
		}
		if n := len(gaps); n > 0 && gaps[n-1].End == seg.Start {
			gaps[n-1].End = seg.End
		} else {
			gaps = append(gaps, seg)
		}
	}
	return gaps
}

func containedIn(iv domain.Interval, merged []domain.Interval) bool {
	for _, m := range merged {
		if m.Contains(iv) {
			return true
		}
	}
	return false
}

func short(iv domain.Interval) string {
	return clock(iv.Start) + "-" + clock(iv.End)
}

func shortList(ivs []domain.Interval) string {
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = short(iv)
	}
	return strings.Join(parts, ", ")
}

func clock(c domain.Clock) string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func thresholdLabel(hours float64) string {
	if m := toMinutes(hours); m > 0 {
		return formatHours(m)
	}
	return "none"
}
