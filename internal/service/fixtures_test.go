package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testClaims = map[string]any{
	"sub":                "u1",
	"tenantId":           "t1",
	"businessLocationId": "l1",
}

func testOptions() Options {
	return Options{
		MaxAttempts: 3,
		Defaults:    hospital.Defaults{TimeZone: "UTC", MinStaff: 1},
	}
}

func testResolver() *security.ContextResolver {
	return security.NewContextResolver(14, 31).WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	})
}

func generateInput(start, end string) domain.GenerateInput {
	return domain.GenerateInput{
		Claims:      testClaims,
		AccessToken: "tok",
		StartDate:   start,
		EndDate:     end,
	}
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func hoursDTO(t *testing.T, days string) *hospital.OperatingHoursDTO {
	t.Helper()
	return &hospital.OperatingHoursDTO{
		TimeZone: "UTC",
		Days:     decode[[]hospital.OperatingDayDTO](t, days),
	}
}

// mockHospital answers every fetch with the given data.
func mockHospital(t *testing.T, hours *hospital.OperatingHoursDTO, groups string, holidays []hospital.HolidayDTO, overtime hospital.PolicyDTO) *MockHospitalSource {
	t.Helper()
	src := new(MockHospitalSource)
	src.On("OperatingHours", mock.Anything, mock.Anything).Return(hours, nil).Maybe()
	src.On("Availability", mock.Anything, mock.Anything).Return(decode[[]hospital.EmployeeGroupDTO](t, groups), nil).Maybe()
	src.On("Holidays", mock.Anything, mock.Anything).Return(holidays, nil).Maybe()
	src.On("Overtime", mock.Anything, mock.Anything).Return(overtime, nil).Maybe()
	return src
}

func hm(h, m int) domain.Clock { return domain.NewClock(h, m) }

// constraintSet builds a ConstraintSet directly for synthesizer and builder tests.
func constraintSet(start, end domain.Date, windows []domain.OperatingWindow, employees []domain.Employee, slots []domain.AvailabilitySlot) *domain.ConstraintSet {
	return &domain.ConstraintSet{
		Context: domain.RequestContext{
			TenantID: "t1", LocationID: "l1", UserID: "u1",
			DateRange: domain.DateRange{Start: start, End: end},
		},
		TimeZone:     "UTC",
		Location:     time.UTC,
		Calendar:     domain.OperatingCalendar{Windows: windows},
		Employees:    employees,
		Availability: slots,
		Holidays:     domain.HolidaySet{},
	}
}

func dailySlots(employeeID string, dr domain.DateRange, start, end domain.Clock) []domain.AvailabilitySlot {
	var out []domain.AvailabilitySlot
	for _, d := range dr.Dates() {
		out = append(out, domain.AvailabilitySlot{EmployeeID: employeeID, Date: d, Start: start, End: end})
	}
	return out
}

func everyDay(from, to domain.Clock, minStaff int, roles ...string) []domain.OperatingWindow {
	var out []domain.OperatingWindow
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		out = append(out, domain.OperatingWindow{Weekday: wd, Open: from, Close: to, MinStaff: minStaff, RequiredRoles: roles})
	}
	return out
}
