package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight, local to the
// location's timezone. 1440 (24:00) is accepted as an end-of-day bound.
type Clock int

const (
	MinutesPerDay Clock = 24 * 60
	dateLayout          = "2006-01-02"
)

// ParseClock parses "HH:MM" or "HH:MM:SS". Seconds are truncated.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || len(p) == 0 || len(p) > 2 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		nums[i] = n
	}

	if nums[1] > 59 || (len(nums) == 3 && nums[2] > 59) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	c := Clock(nums[0]*60 + nums[1])
	if c > MinutesPerDay || (nums[0] == 24 && (nums[1] != 0 || (len(nums) == 3 && nums[2] != 0))) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return c, nil
}

// NewClock builds a Clock from hours and minutes.
func NewClock(hours, minutes int) Clock {
	return Clock(hours*60 + minutes)
}

// String renders the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:00", int(c)/60, int(c)%60)
}

// Hours returns the clock value as fractional hours.
func (c Clock) Hours() float64 {
	return float64(c) / 60
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Date is a calendar date in YYYY-MM-DD form. Dates order lexicographically.
type Date string

// ParseDate validates and normalizes a YYYY-MM-DD date. A full RFC 3339
// timestamp is accepted and truncated to its date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return "", fmt.Errorf("invalid date %q", s)
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight UTC of the date. Callers must only pass valid dates.
func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// ISOWeek identifies the ISO-8601 week the date falls in.
func (d Date) ISOWeek() string {
	y, w := d.Time().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func (d Date) Before(o Date) bool { return d < o }

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start Date `json:"startDate"`
	End   Date `json:"endDate"`
}

// Days returns the number of dates in the range.
func (r DateRange) Days() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End.Time().Sub(r.Start.Time()).Hours()/24) + 1
}

// Dates lists every date in the range in order.
func (r DateRange) Dates() []Date {
	n := r.Days()
	dates := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, r.Start.AddDays(i))
	}
	return dates
}

func (r DateRange) Contains(d Date) bool {
	return d >= r.Start && d <= r.End
}

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (i Interval) Minutes() int {
	if i.End <= i.Start {
		return 0
	}
	return int(i.End - i.Start)
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return o.Start >= i.Start && o.End <= i.End
}

// Intersect returns the overlap of i and o and whether it is non-empty.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	start, end := i.Start, i.End
	if o.Start > start {
		start = o.Start
	}
	if o.End < end {
		end = o.End
	}
	return Interval{Start: start, End: end}, start < end
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// MergeIntervals sorts and joins overlapping or touching intervals.
func MergeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
