package service

import (
	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
)

// Options is the immutable pipeline configuration, copied out of Config once
// at startup.
type Options struct {
	MaxAttempts       int
	DefaultIntent     string
	FetchBreakTimings bool
	Defaults          hospital.Defaults

	Temperature float64
	MaxTokens   int
}

// OptionsFromConfig derives pipeline options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	sc := cfg.Scheduling
	roles := make([]string, len(sc.RequiredRoles))
	copy(roles, sc.RequiredRoles)

	return Options{
		MaxAttempts:       sc.MaxAttempts,
		DefaultIntent:     sc.DefaultIntent,
		FetchBreakTimings: cfg.HospitalAPI.FetchBreakTimings,
		Defaults: hospital.Defaults{
			TimeZone:               sc.DefaultTimezone,
			MinStaff:               sc.MinStaff,
			RequiredRoles:          roles,
			HolidayOperating:       sc.HolidayOperating,
			DailyMaxOvertimeHours:  sc.DailyMaxOvertimeHours,
			WeeklyMaxOvertimeHours: sc.WeeklyMaxOvertimeHours,
			Breaks: domain.BreakRule{
				ThresholdMinutes: sc.BreakThresholdMinutes,
				MinBreakMinutes:  sc.MinBreakMinutes,
			},
		},
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}

func (o Options) attempts() int {
	if o.MaxAttempts < 1 {
		return 1
	}
	return o.MaxAttempts
}

func (o Options) intent(requested string) string {
	if requested != "" {
		return requested
	}
	if o.DefaultIntent != "" {
		return o.DefaultIntent
	}
	return config.DefaultIntent
}
