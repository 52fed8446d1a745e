package hospital_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		loc  *time.Location
		want domain.Clock
	}{
		{"hh:mm", `"07:30"`, nil, domain.NewClock(7, 30)},
		{"hh:mm:ss", `"07:30:45"`, nil, domain.NewClock(7, 30)},
		{"span object", `{"hours": 13, "minutes": 15, "seconds": 0}`, nil, domain.NewClock(13, 15)},
		{"ticks", `{"ticks": 324000000000}`, nil, domain.NewClock(9, 0)},
		{"iso in location", `"2026-03-02T01:00:00Z"`, jakarta, domain.NewClock(8, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft hospital.FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ft))
			assert.True(t, ft.Valid())
			assert.Equal(t, tt.want, ft.In(tt.loc))
		})
	}

	var ft hospital.FlexTime
	assert.Error(t, json.Unmarshal([]byte(`"quarter past"`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`{"days": 1}`), &ft))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ft))
	assert.False(t, ft.Valid())
}

func decodeHours(t *testing.T, raw string) *hospital.OperatingHoursDTO {
	t.Helper()
	var days []hospital.OperatingDayDTO
	require.NoError(t, json.Unmarshal([]byte(raw), &days))
	return &hospital.OperatingHoursDTO{Days: days}
}

func TestNormalizeCalendar(t *testing.T) {
	dto := decodeHours(t, `[
		{"dayOfWeek": 1, "timeSlots": [{"startTime": "13:00", "endTime": "17:00", "minimumStaff": 2}, {"startTime": "08:00", "endTime": "12:00"}]},
		{"dayOfWeek": 7, "openTime": "10:00", "closeTime": "00:00"},
		{"dayOfWeek": 3, "isOpen": false, "timeSlots": [{"startTime": "08:00", "endTime": "12:00"}]}
	]`)

	cal, err := hospital.NormalizeCalendar(dto, hospital.Defaults{TimeZone: "UTC", MinStaff: 1, RequiredRoles: []string{"nurse"}})
	require.NoError(t, err)

	require.Len(t, cal.Calendar.Windows, 3)
	sunday := cal.Calendar.Windows[0]
	assert.Equal(t, time.Sunday, sunday.Weekday)
	assert.Equal(t, domain.MinutesPerDay, sunday.Close)

	monAM, monPM := cal.Calendar.Windows[1], cal.Calendar.Windows[2]
	assert.Equal(t, domain.NewClock(8, 0), monAM.Open)
	assert.Equal(t, 1, monAM.MinStaff)
	assert.Equal(t, []string{"nurse"}, monAM.RequiredRoles)
	assert.Equal(t, 2, monPM.MinStaff)
	assert.Equal(t, "UTC", cal.TimeZone)
}

func TestNormalizeCalendar_DataErrors(t *testing.T) {
	tests := []struct {
		name string
		dto  *hospital.OperatingHoursDTO
		tz   string
	}{
		{"inverted", decodeHours(t, `[{"dayOfWeek":1,"timeSlots":[{"startTime":"17:00","endTime":"09:00"}]}]`), "UTC"},
		{"overlap", decodeHours(t, `[{"dayOfWeek":1,"timeSlots":[{"startTime":"08:00","endTime":"12:00"},{"startTime":"11:00","endTime":"15:00"}]}]`), "UTC"},
		{"unknown tz", decodeHours(t, `[]`), "Mars/Olympus"},
		{"missing end", decodeHours(t, `[{"dayOfWeek":1,"timeSlots":[{"startTime":"08:00"}]}]`), "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.dto.TimeZone = tt.tz
			_, err := hospital.NormalizeCalendar(tt.dto, hospital.Defaults{})
			var dataErr *domain.DataError
			require.True(t, errors.As(err, &dataErr), "want DataError, got %v", err)
			assert.Equal(t, "operating_hours", dataErr.Resource)
		})
	}
}

func TestExpandAvailability(t *testing.T) {
	var groups []hospital.EmployeeGroupDTO
	require.NoError(t, json.Unmarshal([]byte(`[
		{"employeeId": "e1", "employeeName": "Ana", "role": "nurse", "weeklyMaxHours": 40, "availabilities": [
			{"dayOfWeek": 1, "isAvailable": true, "isActive": true, "isApproved": true,
			 "timeSlots": [{"startTime": "08:00", "endTime": "12:00"}, {"startTime": "12:00", "endTime": "16:00"}]},
			{"dayOfWeek": 2, "isApproved": false, "allowOverride": true,
			 "timeSlots": [{"startTime": "09:00", "endTime": "17:00"}]},
			{"dayOfWeek": 3, "isApproved": false,
			 "timeSlots": [{"startTime": "09:00", "endTime": "17:00"}]},
			{"specificDate": "2026-03-07", "timeSlots": [{"startTime": "10:00", "endTime": "14:00"}]}
		]},
		{"employeeId": "e2", "employeeName": "Budi", "availabilities": [
			{"dayOfWeek": 1, "effectiveEndDate": "2026-02-28", "timeSlots": [{"startTime": "08:00", "endTime": "16:00"}]}
		]},
		{"employeeId": "e3", "availabilities": [
			{"dayOfWeek": 4, "isActive": false, "timeSlots": [{"startTime": "08:00", "endTime": "16:00"}]}
		]}
	]`), &groups))

	dr := domain.DateRange{Start: "2026-03-02", End: "2026-03-08"}
	staff, err := hospital.ExpandAvailability(groups, dr, time.UTC)
	require.NoError(t, err)

	require.Len(t, staff.Employees, 1)
	assert.Equal(t, "e1", staff.Employees[0].ID)
	assert.Equal(t, "nurse", staff.Employees[0].Role)
	assert.Equal(t, 40.0, staff.Employees[0].WeeklyMaxHours)

	assert.Equal(t, []domain.AvailabilitySlot{
		{EmployeeID: "e1", Date: "2026-03-02", Start: domain.NewClock(8, 0), End: domain.NewClock(16, 0)},
		{EmployeeID: "e1", Date: "2026-03-03", Start: domain.NewClock(9, 0), End: domain.NewClock(17, 0)},
		{EmployeeID: "e1", Date: "2026-03-07", Start: domain.NewClock(10, 0), End: domain.NewClock(14, 0)},
	}, staff.Availability)

	require.Len(t, staff.Excluded, 2)
	assert.Equal(t, "e2", staff.Excluded[0].EmployeeID)
	assert.Equal(t, "e3", staff.Excluded[1].EmployeeID)
}

func TestMergeIntervals(t *testing.T) {
	in := []domain.Interval{
		{Start: domain.NewClock(13, 0), End: domain.NewClock(15, 0)},
		{Start: domain.NewClock(8, 0), End: domain.NewClock(10, 0)},
		{Start: domain.NewClock(9, 0), End: domain.NewClock(11, 0)},
		{Start: domain.NewClock(11, 0), End: domain.NewClock(12, 0)},
	}
	assert.Equal(t, []domain.Interval{
		{Start: domain.NewClock(8, 0), End: domain.NewClock(12, 0)},
		{Start: domain.NewClock(13, 0), End: domain.NewClock(15, 0)},
	}, domain.MergeIntervals(in))
}

func TestNormalizeHolidays(t *testing.T) {
	in := []hospital.HolidayDTO{
		{Date: "2026-03-03T00:00:00Z", Name: "Founders Day"},
		{StartDate: "2026-03-06", EndDate: "2026-03-10", Name: "Nyepi week"},
		{Date: "2026-04-01", Name: "Out of range"},
		{Date: "2026-03-04", Name: "Open anyway", IsOperating: boolPtr(true)},
	}
	dr := domain.DateRange{Start: "2026-03-02", End: "2026-03-08"}

	set, err := hospital.NormalizeHolidays(in, dr)
	require.NoError(t, err)
	assert.Len(t, set, 5)
	assert.True(t, set.Excludes("2026-03-03", false))
	assert.True(t, set.Excludes("2026-03-08", false))
	assert.False(t, set.Excludes("2026-03-04", false))

	_, err = hospital.NormalizeHolidays([]hospital.HolidayDTO{{StartDate: "2026-03-06", EndDate: "2026-03-05"}}, dr)
	var dataErr *domain.DataError
	assert.True(t, errors.As(err, &dataErr))
}

func TestNormalizeOvertimeAndBreaks(t *testing.T) {
	defaults := hospital.Defaults{DailyMaxOvertimeHours: 4, WeeklyMaxOvertimeHours: 12, Breaks: domain.BreakRule{ThresholdMinutes: 360, MinBreakMinutes: 30}}

	pol, err := hospital.NormalizeOvertime(hospital.PolicyDTO{
		"maxRegularHoursPerDay":  {Value: 8},
		"maxRegularHoursPerWeek": {Value: 40},
		"maxOvertimeHoursPerDay": {Value: 2},
	}, defaults)
	require.NoError(t, err)
	assert.Equal(t, domain.OvertimePolicy{
		DailyMaxRegularHours:   8,
		WeeklyMaxRegularHours:  40,
		DailyMaxOvertimeHours:  2,
		WeeklyMaxOvertimeHours: 12,
	}, pol)

	_, err = hospital.NormalizeOvertime(hospital.PolicyDTO{"dailyMaxRegularHours": {Value: -1}}, defaults)
	assert.Error(t, err)

	rule, err := hospital.NormalizeBreaks(hospital.PolicyDTO{"breakAfterHours": {Value: 5}}, defaults)
	require.NoError(t, err)
	assert.Equal(t, domain.BreakRule{ThresholdMinutes: 300, MinBreakMinutes: 30}, rule)
}

func boolPtr(b bool) *bool { return &b }
