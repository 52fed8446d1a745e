package hospital

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// Defaults fill policy fields the hospital API leaves out.
type Defaults struct {
	TimeZone               string
	MinStaff               int
	RequiredRoles          []string
	HolidayOperating       bool
	DailyMaxOvertimeHours  float64
	WeeklyMaxOvertimeHours float64
	Breaks                 domain.BreakRule
}

// Calendar is the normalized operating-hours resource.
type Calendar struct {
	Calendar         domain.OperatingCalendar
	TimeZone         string
	Location         *time.Location
	HolidayOperating bool
}

// NormalizeCalendar maps operating hours into windows and resolves the timezone.
func NormalizeCalendar(dto *OperatingHoursDTO, d Defaults) (*Calendar, error) {
	tzName := strings.TrimSpace(dto.TimeZone)
	if tzName == "" {
		tzName = d.TimeZone
	}
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, &domain.DataError{Resource: ResourceOperatingHours, Field: "timeZone", Reason: fmt.Sprintf("unknown timezone %q", tzName)}
	}

	holidayOperating := d.HolidayOperating
	if dto.HolidayOperating != nil {
		holidayOperating = *dto.HolidayOperating
	}

	baseStaff := d.MinStaff
	if dto.MinimumStaff != nil {
		baseStaff = int(dto.MinimumStaff.Value)
	}
	baseRoles := d.RequiredRoles
	if len(dto.RequiredRoles) > 0 {
		baseRoles = dto.RequiredRoles
	}

	var windows []domain.OperatingWindow
	for i, day := range dto.Days {
		if day.IsOpen != nil && !*day.IsOpen {
			continue
		}
		wd := weekday(int(day.DayOfWeek.Value))

		dayStaff, dayRoles := baseStaff, baseRoles
		if day.MinimumStaff != nil {
			dayStaff = int(day.MinimumStaff.Value)
		}
		if len(day.RequiredRoles) > 0 {
			dayRoles = day.RequiredRoles
		}

		slots := day.TimeSlots
		if len(slots) == 0 && day.OpenTime.Valid() && day.CloseTime.Valid() {
			slots = []TimeSlotDTO{{StartTime: day.OpenTime, EndTime: day.CloseTime}}
		}

		for j, slot := range slots {
			field := fmt.Sprintf("items[%d].timeSlots[%d]", i, j)
			if !slot.StartTime.Valid() || !slot.EndTime.Valid() {
				return nil, &domain.DataError{Resource: ResourceOperatingHours, Field: field, Reason: "missing start or end time"}
			}
			opens := slot.StartTime.In(loc)
			closes := endOfSpan(opens, slot.EndTime.In(loc))
			if opens >= closes {
				return nil, &domain.DataError{Resource: ResourceOperatingHours, Field: field, Reason: fmt.Sprintf("open %s is not before close %s", opens, closes)}
			}

			w := domain.OperatingWindow{Weekday: wd, Open: opens, Close: closes, MinStaff: dayStaff, RequiredRoles: dayRoles}
			if slot.MinimumStaff != nil {
				w.MinStaff = int(slot.MinimumStaff.Value)
			}
			if len(slot.RequiredRoles) > 0 {
				w.RequiredRoles = slot.RequiredRoles
			}
			if w.MinStaff < 0 {
				return nil, &domain.DataError{Resource: ResourceOperatingHours, Field: field, Reason: "negative minimum staff"}
			}
			windows = append(windows, w)
		}
	}

	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Weekday != windows[j].Weekday {
			return windows[i].Weekday < windows[j].Weekday
		}
		return windows[i].Open < windows[j].Open
	})
	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		if prev.Weekday == cur.Weekday && prev.Interval().Overlaps(cur.Interval()) {
			return nil, &domain.DataError{
				Resource: ResourceOperatingHours,
				Field:    cur.Weekday.String(),
				Reason:   fmt.Sprintf("windows %s and %s overlap", prev.Interval(), cur.Interval()),
			}
		}
	}

	return &Calendar{
		Calendar:         domain.OperatingCalendar{Windows: windows},
		TimeZone:         loc.String(),
		Location:         loc,
		HolidayOperating: holidayOperating,
	}, nil
}

// Staff is the normalized availability resource.
type Staff struct {
	Employees    []domain.Employee
	Availability []domain.AvailabilitySlot
	Excluded     []domain.ExcludedEmployee
}

// ExpandAvailability turns recurring and one-off availability rules into
// per-date slots inside dr. Slots are merged so they are disjoint per employee
// per date. Employees left with no slot are excluded, not rejected.
func ExpandAvailability(groups []EmployeeGroupDTO, dr domain.DateRange, loc *time.Location) (*Staff, error) {
	type key struct {
		emp  string
		date domain.Date
	}

	employees := map[string]*domain.Employee{}
	var order []string
	raw := map[key][]domain.Interval{}

	for gi, g := range groups {
		id := string(g.EmployeeID)
		if id == "" {
			return nil, &domain.DataError{Resource: ResourceAvailability, Field: fmt.Sprintf("employeeGroups[%d].employeeId", gi), Reason: "missing employee id"}
		}

		emp, ok := employees[id]
		if !ok {
			role := g.Role
			if role == "" {
				role = g.JobTitle
			}
			emp = &domain.Employee{ID: id, Name: g.EmployeeName, Role: role, EligibleRoles: g.EligibleRoles}
			if g.WeeklyMaxHours != nil {
				emp.WeeklyMaxHours = g.WeeklyMaxHours.Value
			}
			employees[id] = emp
			order = append(order, id)
		}

		for ai, a := range g.Availabilities {
			if !usable(a) {
				continue
			}
			field := fmt.Sprintf("employeeGroups[%d].availabilities[%d]", gi, ai)

			dates, err := ruleDates(a, dr)
			if err != nil {
				return nil, &domain.DataError{Resource: ResourceAvailability, Field: field, Reason: err.Error()}
			}
			if len(dates) == 0 {
				continue
			}

			for si, s := range a.TimeSlots {
				if !s.StartTime.Valid() || !s.EndTime.Valid() {
					return nil, &domain.DataError{Resource: ResourceAvailability, Field: fmt.Sprintf("%s.timeSlots[%d]", field, si), Reason: "missing start or end time"}
				}
				start := s.StartTime.In(loc)
				end := endOfSpan(start, s.EndTime.In(loc))
				if start >= end {
					return nil, &domain.DataError{Resource: ResourceAvailability, Field: fmt.Sprintf("%s.timeSlots[%d]", field, si), Reason: fmt.Sprintf("start %s is not before end %s", start, end)}
				}
				for _, d := range dates {
					k := key{emp: id, date: d}
					raw[k] = append(raw[k], domain.Interval{Start: start, End: end})
				}
			}
		}
	}

	out := &Staff{}
	hasSlots := map[string]bool{}
	keys := make([]key, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].emp != keys[j].emp {
			return keys[i].emp < keys[j].emp
		}
		return keys[i].date < keys[j].date
	})
	for _, k := range keys {
		for _, iv := range domain.MergeIntervals(raw[k]) {
			out.Availability = append(out.Availability, domain.AvailabilitySlot{EmployeeID: k.emp, Date: k.date, Start: iv.Start, End: iv.End})
			hasSlots[k.emp] = true
		}
	}

	sort.Strings(order)
	for _, id := range order {
		emp := employees[id]
		if !hasSlots[id] {
			out.Excluded = append(out.Excluded, domain.ExcludedEmployee{EmployeeID: id, Name: emp.Name, Reason: "no availability in requested window"})
			continue
		}
		out.Employees = append(out.Employees, *emp)
	}
	return out, nil
}

func usable(a AvailabilityDTO) bool {
	if a.IsActive != nil && !*a.IsActive {
		return false
	}
	if a.IsAvailable != nil && !*a.IsAvailable {
		return false
	}
	if a.IsApproved != nil && !*a.IsApproved && !a.AllowOverride {
		return false
	}
	return true
}

func ruleDates(a AvailabilityDTO, dr domain.DateRange) ([]domain.Date, error) {
	if a.SpecificDate != "" {
		d, err := domain.ParseDate(a.SpecificDate)
		if err != nil {
			return nil, err
		}
		if dr.Contains(d) {
			return []domain.Date{d}, nil
		}
		return nil, nil
	}

	if a.DayOfWeek == nil {
		return nil, fmt.Errorf("neither dayOfWeek nor specificDate set")
	}
	wd := weekday(int(a.DayOfWeek.Value))

	var from, to domain.Date
	if a.EffectiveStartDate != "" {
		d, err := domain.ParseDate(a.EffectiveStartDate)
		if err != nil {
			return nil, err
		}
		from = d
	}
	if a.EffectiveEndDate != "" {
		d, err := domain.ParseDate(a.EffectiveEndDate)
		if err != nil {
			return nil, err
		}
		to = d
	}

	var out []domain.Date
	for _, d := range dr.Dates() {
		if d.Weekday() != wd {
			continue
		}
		if from != "" && d.Before(from) {
			continue
		}
		if to != "" && to.Before(d) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// NormalizeHolidays keeps holidays inside dr, expanding multi-day entries.
func NormalizeHolidays(in []HolidayDTO, dr domain.DateRange) (domain.HolidaySet, error) {
	set := domain.HolidaySet{}
	for i, h := range in {
		if h.IsActive != nil && !*h.IsActive {
			continue
		}

		startRaw := firstNonEmpty(h.Date, h.HolidayDate, h.StartDate)
		if startRaw == "" {
			return nil, &domain.DataError{Resource: ResourceHolidays, Field: fmt.Sprintf("items[%d].date", i), Reason: "missing date"}
		}
		start, err := domain.ParseDate(startRaw)
		if err != nil {
			return nil, &domain.DataError{Resource: ResourceHolidays, Field: fmt.Sprintf("items[%d].date", i), Reason: err.Error()}
		}
		end := start
		if h.EndDate != "" && h.StartDate != "" {
			if end, err = domain.ParseDate(h.EndDate); err != nil {
				return nil, &domain.DataError{Resource: ResourceHolidays, Field: fmt.Sprintf("items[%d].endDate", i), Reason: err.Error()}
			}
			if end.Before(start) {
				return nil, &domain.DataError{Resource: ResourceHolidays, Field: fmt.Sprintf("items[%d].endDate", i), Reason: "end before start"}
			}
		}

		operating := h.IsOperating != nil && *h.IsOperating
		for _, d := range (domain.DateRange{Start: start, End: end}).Dates() {
			if !dr.Contains(d) {
				continue
			}
			// a non-operating entry wins over an operating one on the same date
			if prev, ok := set[d]; ok && !prev.Operating {
				continue
			}
			set[d] = domain.Holiday{Date: d, Name: h.Name, Operating: operating}
		}
	}
	return set, nil
}

// NormalizeOvertime maps the overtime resource. Missing ceilings come from d.
func NormalizeOvertime(p PolicyDTO, d Defaults) (domain.OvertimePolicy, error) {
	pol := domain.OvertimePolicy{
		DailyMaxOvertimeHours:  d.DailyMaxOvertimeHours,
		WeeklyMaxOvertimeHours: d.WeeklyMaxOvertimeHours,
	}
	if v, ok := p.Pick("dailyMaxRegularHours", "maxRegularHoursPerDay", "dailyThresholdHours", "maxHoursPerDay"); ok {
		pol.DailyMaxRegularHours = v
	}
	if v, ok := p.Pick("weeklyMaxRegularHours", "maxRegularHoursPerWeek", "weeklyThresholdHours", "maxHoursPerWeek"); ok {
		pol.WeeklyMaxRegularHours = v
	}
	if v, ok := p.Pick("overtimeMultiplierThreshold", "multiplierThresholdHours", "overtimeThresholdHours"); ok {
		pol.OvertimeMultiplierThreshold = v
	}
	if v, ok := p.Pick("dailyMaxOvertimeHours", "maxOvertimeHoursPerDay"); ok {
		pol.DailyMaxOvertimeHours = v
	}
	if v, ok := p.Pick("weeklyMaxOvertimeHours", "maxOvertimeHoursPerWeek"); ok {
		pol.WeeklyMaxOvertimeHours = v
	}

	for field, v := range map[string]float64{
		"dailyMaxRegularHours":   pol.DailyMaxRegularHours,
		"weeklyMaxRegularHours":  pol.WeeklyMaxRegularHours,
		"dailyMaxOvertimeHours":  pol.DailyMaxOvertimeHours,
		"weeklyMaxOvertimeHours": pol.WeeklyMaxOvertimeHours,
	} {
		if v < 0 {
			return domain.OvertimePolicy{}, &domain.DataError{Resource: ResourceOvertime, Field: field, Reason: "negative hours"}
		}
	}
	if pol.DailyMaxRegularHours > 24 {
		return domain.OvertimePolicy{}, &domain.DataError{Resource: ResourceOvertime, Field: "dailyMaxRegularHours", Reason: "more than 24 hours"}
	}
	return pol, nil
}

// NormalizeBreaks maps the break-timings resource. Missing fields come from d.
func NormalizeBreaks(p PolicyDTO, d Defaults) (domain.BreakRule, error) {
	rule := d.Breaks
	if v, ok := p.Pick("breakThresholdMinutes", "minShiftMinutesForBreak", "thresholdMinutes"); ok {
		rule.ThresholdMinutes = int(v)
	} else if v, ok := p.Pick("breakAfterHours", "thresholdHours"); ok {
		rule.ThresholdMinutes = int(v * 60)
	}
	if v, ok := p.Pick("minimumBreakMinutes", "breakDurationMinutes", "durationMinutes", "minBreakMinutes"); ok {
		rule.MinBreakMinutes = int(v)
	}
	if rule.ThresholdMinutes < 0 || rule.MinBreakMinutes < 0 {
		return domain.BreakRule{}, &domain.DataError{Resource: ResourceBreakTimings, Field: "minutes", Reason: "negative duration"}
	}
	return rule, nil
}

// weekday maps 0..7 (0 and 7 are Sunday, 1 is Monday) to time.Weekday.
func weekday(n int) time.Weekday {
	return time.Weekday(((n % 7) + 7) % 7)
}

// endOfSpan reads a 00:00 end after a later start as midnight.
func endOfSpan(start, end domain.Clock) domain.Clock {
	if end == 0 && start > 0 {
		return domain.MinutesPerDay
	}
	return end
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
