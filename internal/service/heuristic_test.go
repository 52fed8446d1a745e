package service

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthesize(t *testing.T, cs *domain.ConstraintSet) *domain.CandidateSchedule {
	t.Helper()
	out, err := NewHeuristicSynthesizer().Synthesize(context.Background(), SynthesisRequest{Constraints: cs, Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", out.Source)
	return out
}

func TestHeuristic_SplitsWindowAcrossEmployees(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	slots := append(dailySlots("e1", day, hm(9, 0), hm(13, 0)), dailySlots("e2", day, hm(13, 0), hm(17, 0))...)
	cs := constraintSet(day.Start, day.End, everyDay(hm(9, 0), hm(17, 0), 1),
		[]domain.Employee{{ID: "e1"}, {ID: "e2"}}, slots)

	out := synthesize(t, cs)

	require.Len(t, out.Assignments, 2)
	assert.Equal(t, domain.Assignment{EmployeeID: "e1", Date: "2026-03-02", Start: hm(9, 0), End: hm(13, 0)}, out.Assignments[0])
	assert.Equal(t, domain.Assignment{EmployeeID: "e2", Date: "2026-03-02", Start: hm(13, 0), End: hm(17, 0)}, out.Assignments[1])
	assert.True(t, validation.New().Validate(*out, cs).IsValid)
}

func TestHeuristic_FillsRequiredRoleFirst(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	slots := append(dailySlots("e1", day, hm(8, 0), hm(18, 0)), dailySlots("e2", day, hm(8, 0), hm(18, 0))...)
	cs := constraintSet(day.Start, day.End, everyDay(hm(9, 0), hm(17, 0), 1, "nurse"),
		[]domain.Employee{{ID: "e1", Role: "doctor"}, {ID: "e2", Role: "nurse"}}, slots)

	out := synthesize(t, cs)

	require.Len(t, out.Assignments, 1)
	assert.Equal(t, "e2", out.Assignments[0].EmployeeID)
	assert.Equal(t, "nurse", out.Assignments[0].Role)
	assert.True(t, validation.New().Validate(*out, cs).IsValid)
}

func TestHeuristic_MatchesRolesAcrossEmployees(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	slots := append(dailySlots("a", day, hm(9, 0), hm(17, 0)), dailySlots("b", day, hm(9, 0), hm(17, 0))...)
	cs := constraintSet(day.Start, day.End, everyDay(hm(9, 0), hm(17, 0), 2, "nurse", "doctor"),
		[]domain.Employee{
			{ID: "a", Role: "nurse", EligibleRoles: []string{"doctor"}},
			{ID: "b", Role: "nurse"},
		}, slots)

	out := synthesize(t, cs)

	require.Len(t, out.Assignments, 2)
	roles := map[string]string{}
	for _, a := range out.Assignments {
		roles[a.EmployeeID] = a.Role
	}
	assert.Equal(t, map[string]string{"a": "doctor", "b": "nurse"}, roles)
	assert.True(t, validation.New().Validate(*out, cs).IsValid)
}

func TestHeuristic_RepairUsesPriorReport(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	windows := []domain.OperatingWindow{
		{Weekday: time.Monday, Open: hm(8, 0), Close: hm(12, 0), MinStaff: 1},
		{Weekday: time.Monday, Open: hm(12, 0), Close: hm(16, 0), MinStaff: 1},
	}
	slots := append(dailySlots("a", day, hm(8, 0), hm(16, 0)), dailySlots("b", day, hm(8, 0), hm(12, 0))...)
	cs := constraintSet(day.Start, day.End, windows,
		[]domain.Employee{{ID: "a", WeeklyMaxHours: 4}, {ID: "b"}}, slots)
	h := NewHeuristicSynthesizer()

	first, err := h.Synthesize(context.Background(), SynthesisRequest{Constraints: cs, Attempt: 1})
	require.NoError(t, err)
	report := validation.New().Validate(*first, cs)
	require.False(t, report.IsValid)
	assert.Contains(t, kindsOf(report), domain.ViolationCoverage)

	second, err := h.Synthesize(context.Background(), SynthesisRequest{Constraints: cs, Prior: report, Attempt: 2})
	require.NoError(t, err)

	assert.NotEqual(t, first.Assignments, second.Assignments)
	assert.Equal(t, []domain.Assignment{
		{EmployeeID: "b", Date: "2026-03-02", Start: hm(8, 0), End: hm(12, 0)},
		{EmployeeID: "a", Date: "2026-03-02", Start: hm(12, 0), End: hm(16, 0)},
	}, second.Assignments)
	assert.True(t, validation.New().Validate(*second, cs).IsValid)
}

func TestHeuristic_InsertsBreak(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	cs := constraintSet(day.Start, day.End, everyDay(hm(8, 0), hm(17, 0), 1),
		[]domain.Employee{{ID: "e1"}}, dailySlots("e1", day, hm(8, 0), hm(17, 0)))
	cs.Breaks = domain.BreakRule{ThresholdMinutes: 360, MinBreakMinutes: 30}

	out := synthesize(t, cs)

	require.Len(t, out.Assignments, 1)
	assert.Equal(t, []domain.Interval{{Start: hm(12, 15), End: hm(12, 45)}}, out.Assignments[0].Breaks)
	assert.Equal(t, 510, out.Assignments[0].WorkedMinutes())
	assert.True(t, validation.New().Validate(*out, cs).IsValid)
}

func TestHeuristic_Overtime(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	build := func() *domain.ConstraintSet {
		cs := constraintSet(day.Start, day.End, everyDay(hm(8, 0), hm(18, 0), 1),
			[]domain.Employee{{ID: "e1"}}, dailySlots("e1", day, hm(8, 0), hm(18, 0)))
		cs.Overtime = domain.OvertimePolicy{DailyMaxRegularHours: 8}
		return cs
	}

	t.Run("flags hours past the daily threshold", func(t *testing.T) {
		cs := build()
		out := synthesize(t, cs)

		require.Len(t, out.Assignments, 1)
		assert.True(t, out.Assignments[0].IsOvertime)
		assert.True(t, validation.New().Validate(*out, cs).IsValid)
	})

	t.Run("skips shifts past the overtime ceiling", func(t *testing.T) {
		cs := build()
		cs.Overtime.DailyMaxOvertimeHours = 1

		out := synthesize(t, cs)

		assert.Empty(t, out.Assignments)
		report := validation.New().Validate(*out, cs)
		assert.False(t, report.IsValid)
		assert.Equal(t, 1, report.CountByKind()[domain.ViolationCoverage])
	})
}

func TestHeuristic_SpreadsWeeklyLoad(t *testing.T) {
	dr := domain.DateRange{Start: "2026-03-02", End: "2026-03-03"}
	slots := append(dailySlots("e1", dr, hm(9, 0), hm(17, 0)), dailySlots("e2", dr, hm(9, 0), hm(17, 0))...)
	cs := constraintSet(dr.Start, dr.End, everyDay(hm(9, 0), hm(17, 0), 1),
		[]domain.Employee{{ID: "e1"}, {ID: "e2"}}, slots)

	out := synthesize(t, cs)

	require.Len(t, out.Assignments, 2)
	assert.Equal(t, "e1", out.Assignments[0].EmployeeID)
	assert.Equal(t, "e2", out.Assignments[1].EmployeeID)
}

func TestHeuristic_FeasibleWeekValidates(t *testing.T) {
	week := domain.DateRange{Start: "2026-03-02", End: "2026-03-08"}
	employees := []domain.Employee{
		{ID: "e1", Role: "nurse"},
		{ID: "e2", Role: "nurse"},
		{ID: "e3", Role: "aide"},
		{ID: "e4", Role: "aide", EligibleRoles: []string{"nurse"}},
	}
	var slots []domain.AvailabilitySlot
	for _, e := range employees {
		slots = append(slots, dailySlots(e.ID, week, hm(7, 0), hm(21, 0))...)
	}
	cs := constraintSet(week.Start, week.End, everyDay(hm(8, 0), hm(20, 0), 2, "nurse"), employees, slots)
	cs.Holidays = domain.HolidaySet{"2026-03-04": {Date: "2026-03-04", Name: "Founders Day"}}
	cs.Breaks = domain.BreakRule{ThresholdMinutes: 360, MinBreakMinutes: 30}
	cs.Overtime = domain.OvertimePolicy{DailyMaxRegularHours: 8, WeeklyMaxRegularHours: 40}

	first := synthesize(t, cs)
	second := synthesize(t, cs)
	assert.Equal(t, first.Assignments, second.Assignments)

	report := validation.New().Validate(*first, cs)
	assert.True(t, report.IsValid, "%+v", report.Violations)
	assert.Equal(t, len(first.Assignments), report.CheckedAssignments)

	perDay := make(map[domain.Date]int)
	for _, a := range first.Assignments {
		perDay[a.Date]++
	}
	assert.Zero(t, perDay["2026-03-04"])
	assert.Len(t, perDay, 6)
}

func TestHeuristic_ContextCancelled(t *testing.T) {
	day := domain.DateRange{Start: "2026-03-02", End: "2026-03-02"}
	cs := constraintSet(day.Start, day.End, everyDay(hm(9, 0), hm(17, 0), 1), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHeuristicSynthesizer().Synthesize(ctx, SynthesisRequest{Constraints: cs, Attempt: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGapsBelow(t *testing.T) {
	win := domain.Interval{Start: hm(8, 0), End: hm(16, 0)}
	placed := []domain.Interval{{Start: hm(8, 0), End: hm(12, 0)}, {Start: hm(10, 0), End: hm(16, 0)}}

	assert.Empty(t, gapsBelow(win, placed, 1))
	assert.Equal(t, []domain.Interval{
		{Start: hm(8, 0), End: hm(10, 0)},
		{Start: hm(12, 0), End: hm(16, 0)},
	}, gapsBelow(win, placed, 2))
}

func TestTrimBooked(t *testing.T) {
	iv := domain.Interval{Start: hm(8, 0), End: hm(18, 0)}
	booked := []domain.Interval{{Start: hm(9, 0), End: hm(11, 0)}}

	assert.Equal(t, domain.Interval{Start: hm(11, 0), End: hm(18, 0)}, trimBooked(iv, booked))
	assert.Zero(t, trimBooked(iv, []domain.Interval{iv}).Minutes())
}
