package validation

import (
	"fmt"
	"math"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// Accrual is the effect of adding one assignment to an employee's running totals.
type Accrual struct {
	Worked   int
	Regular  int
	Overtime int

	DayWorked    int
	DayOvertime  int
	WeekWorked   int
	WeekOvertime int
	Week         string
}

type tally struct {
	worked   int
	overtime int
}

type dayKey struct {
	employee string
	date     domain.Date
}

type weekKey struct {
	employee string
	week     string
}

// Ledger accrues worked minutes per employee per day and ISO week. Callers
// must add assignments in chronological order per employee.
type Ledger struct {
	policy domain.OvertimePolicy
	days   map[dayKey]tally
	weeks  map[weekKey]tally
}

// NewLedger creates an empty ledger for the policy.
func NewLedger(policy domain.OvertimePolicy) *Ledger {
	return &Ledger{
		policy: policy,
		days:   make(map[dayKey]tally),
		weeks:  make(map[weekKey]tally),
	}
}

// Preview computes the accrual without recording it.
func (l *Ledger) Preview(employeeID string, d domain.Date, worked int) Accrual {
	dk := dayKey{employeeID, d}
	wk := weekKey{employeeID, d.ISOWeek()}
	day, week := l.days[dk], l.weeks[wk]

	regular := worked
	if limit := toMinutes(l.policy.DailyMaxRegularHours); limit > 0 {
		regular = min(regular, max(0, limit-(day.worked-day.overtime)))
	}
	if limit := toMinutes(l.policy.WeeklyMaxRegularHours); limit > 0 {
		regular = min(regular, max(0, limit-(week.worked-week.overtime)))
	}
	overtime := worked - regular

	return Accrual{
		Worked:       worked,
		Regular:      regular,
		Overtime:     overtime,
		DayWorked:    day.worked + worked,
		DayOvertime:  day.overtime + overtime,
		WeekWorked:   week.worked + worked,
		WeekOvertime: week.overtime + overtime,
		Week:         d.ISOWeek(),
	}
}

// Add records the assignment and returns its accrual.
func (l *Ledger) Add(employeeID string, d domain.Date, worked int) Accrual {
	a := l.Preview(employeeID, d, worked)
	l.days[dayKey{employeeID, d}] = tally{worked: a.DayWorked, overtime: a.DayOvertime}
	l.weeks[weekKey{employeeID, a.Week}] = tally{worked: a.WeekWorked, overtime: a.WeekOvertime}
	return a
}

// Ceiling identifies which ceiling an accrual breached.
type Ceiling string

const (
	CeilingDailyOvertime  Ceiling = "daily_overtime"
	CeilingWeeklyOvertime Ceiling = "weekly_overtime"
	CeilingWeeklyHours    Ceiling = "employee_weekly_hours"
)

// Breach describes one exceeded ceiling.
type Breach struct {
	Ceiling Ceiling
	Limit   int
	Actual  int
}

func (b Breach) String() string {
	return fmt.Sprintf("%s %s exceeds ceiling %s", b.Ceiling, formatHours(b.Actual), formatHours(b.Limit))
}

// Breaches lists the ceilings the accrual exceeds for the employee.
func (l *Ledger) Breaches(e domain.Employee, a Accrual) []Breach {
	var out []Breach
	if limit := toMinutes(l.policy.DailyMaxOvertimeHours); limit > 0 && a.DayOvertime > limit {
		out = append(out, Breach{CeilingDailyOvertime, limit, a.DayOvertime})
	}
	if limit := toMinutes(l.policy.WeeklyMaxOvertimeHours); limit > 0 && a.WeekOvertime > limit {
		out = append(out, Breach{CeilingWeeklyOvertime, limit, a.WeekOvertime})
	}
	if limit := toMinutes(e.WeeklyMaxHours); limit > 0 && a.WeekWorked > limit {
		out = append(out, Breach{CeilingWeeklyHours, limit, a.WeekWorked})
	}
	return out
}

func toMinutes(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Round(hours * 60))
}

func formatHours(minutes int) string {
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
