package service

import (
	"context"
	"sort"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/validation"
)

// HeuristicSynthesizer builds schedules with a deterministic greedy fill.
//
// Windows are visited in date and open-time order. Required roles are filled
// first by matching roles to distinct employees, then whole-window shifts up to
// the minimum staff, then partial shifts for whatever is still understaffed.
// Among eligible employees it prefers the least overtime, then the fewest hours
// already worked that week, then the lowest employee id. Shifts that would
// breach an overtime ceiling are skipped.
//
// On a repair attempt, dates the prior report flagged for coverage or roles
// fill their most constrained windows first.
type HeuristicSynthesizer struct{}

// NewHeuristicSynthesizer creates the rule-based synthesizer
func NewHeuristicSynthesizer() *HeuristicSynthesizer {
	return &HeuristicSynthesizer{}
}

func (h *HeuristicSynthesizer) Name() string {
	return "heuristic"
}

func (h *HeuristicSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*domain.CandidateSchedule, error) {
	cs := req.Constraints
	p := &planner{
		cs:     cs,
		ledger: validation.NewLedger(cs.Overtime),
		booked: make(map[string][]domain.Interval),
	}

	flagged := shortDates(req.Prior)
	for _, d := range cs.StaffedDates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		windows := cs.Calendar.WindowsOn(d)
		sort.SliceStable(windows, func(i, j int) bool { return windows[i].Open < windows[j].Open })
		if flagged[d] {
			windows = p.mostConstrainedFirst(d, windows)
		}
		for _, w := range windows {
			p.fillWindow(d, w)
		}
	}

	return &domain.CandidateSchedule{
		Assignments: p.finalize(),
		Source:      h.Name(),
	}, nil
}

type planner struct {
	cs     *domain.ConstraintSet
	ledger *validation.Ledger
	booked map[string][]domain.Interval
	out    []domain.Assignment
}

type option struct {
	employee   domain.Employee
	assignment domain.Assignment
	accrual    validation.Accrual
}

func (p *planner) fillWindow(d domain.Date, w domain.OperatingWindow) {
	win := w.Interval()
	var placed []domain.Interval

	matched, unmatched := p.matchRoles(d, win, w.RequiredRoles)
	for _, opt := range matched {
		p.commit(opt)
		placed = append(placed, win)
	}
	for _, role := range unmatched {
		if opt, ok := p.bestPartial(d, win, []domain.Interval{win}, role); ok {
			p.commit(opt)
			placed = append(placed, opt.assignment.Interval())
		}
	}

	for countFull(placed, win) < w.MinStaff {
		opt, ok := p.best(d, win, "")
		if !ok {
			break
		}
		p.commit(opt)
		placed = append(placed, win)
	}

	// Partial shifts until every instant reaches the minimum or nobody helps.
	for w.MinStaff > 0 {
		gaps := gapsBelow(win, placed, w.MinStaff)
		if len(gaps) == 0 {
			break
		}
		opt, ok := p.bestPartial(d, win, gaps, "")
		if !ok {
			break
		}
		p.commit(opt)
		placed = append(placed, opt.assignment.Interval())
	}
}

// best picks the preferred employee able to work the whole window.
func (p *planner) best(d domain.Date, win domain.Interval, role string) (option, bool) {
	return pick(p.candidates(d, win, role))
}

// candidates lists the whole-window options for role in preference order.
func (p *planner) candidates(d domain.Date, win domain.Interval, role string) []option {
	var opts []option
	for _, e := range p.cs.Employees {
		if role != "" && !e.CanWork(role) {
			continue
		}
		if !p.free(e.ID, d, win) || !covers(p.slots(e.ID, d), win) {
			continue
		}
		if opt, ok := p.option(e, d, win, role); ok {
			opts = append(opts, opt)
		}
	}
	rank(opts)
	return opts
}

// matchRoles gives each required role a distinct employee for the whole
// window, maximizing the number of roles filled. Scarcer roles choose first and
// an earlier choice is moved to another employee when that frees someone for a
// later role. Roles nobody can take whole are returned unmatched.
func (p *planner) matchRoles(d domain.Date, win domain.Interval, roles []string) ([]option, []string) {
	if len(roles) == 0 {
		return nil, nil
	}
	opts := make([][]option, len(roles))
	order := make([]int, len(roles))
	for i, role := range roles {
		opts[i] = p.candidates(d, win, role)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return len(opts[order[a]]) < len(opts[order[b]]) })

	holder := make(map[string]int)
	chosen := make([]int, len(roles))
	for i := range chosen {
		chosen[i] = -1
	}

	var augment func(r int, seen map[string]bool) bool
	augment = func(r int, seen map[string]bool) bool {
		for k, o := range opts[r] {
			id := o.employee.ID
			if seen[id] {
				continue
			}
			seen[id] = true
			other, taken := holder[id]
			if !taken || augment(other, seen) {
				holder[id] = r
				chosen[r] = k
				return true
			}
		}
		return false
	}
	for _, r := range order {
		augment(r, make(map[string]bool))
	}

	var (
		matched   []option
		unmatched []string
	)
	for r, k := range chosen {
		if k < 0 {
			unmatched = append(unmatched, roles[r])
			continue
		}
		matched = append(matched, opts[r][k])
	}
	return matched, unmatched
}

// mostConstrainedFirst orders windows by how few employees can work them
// whole, keeping open-time order between equals.
func (p *planner) mostConstrainedFirst(d domain.Date, windows []domain.OperatingWindow) []domain.OperatingWindow {
	counts := make([]int, len(windows))
	idx := make([]int, len(windows))
	for i, w := range windows {
		counts[i] = len(p.candidates(d, w.Interval(), ""))
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return counts[idx[a]] < counts[idx[b]] })

	out := make([]domain.OperatingWindow, len(windows))
	for i, j := range idx {
		out[i] = windows[j]
	}
	return out
}

// shortDates lists the dates a report found understaffed or missing a role.
func shortDates(report *domain.ValidationReport) map[domain.Date]bool {
	out := make(map[domain.Date]bool)
	if report == nil {
		return out
	}
	for _, v := range report.Violations {
		switch v.Kind {
		case domain.ViolationCoverage, domain.ViolationRequiredRole:
			if v.AssignmentRef.Date != "" {
				out[v.AssignmentRef.Date] = true
			}
		}
	}
	return out
}

// bestPartial picks the employee whose available part of the window fills the
// most of gaps.
func (p *planner) bestPartial(d domain.Date, win domain.Interval, gaps []domain.Interval, role string) (option, bool) {
	var (
		opts  []option
		gains []int
	)
	for _, e := range p.cs.Employees {
		if role != "" && !e.CanWork(role) {
			continue
		}
		for _, slot := range p.slots(e.ID, d) {
			iv, ok := slot.Intersect(win)
			if !ok {
				continue
			}
			iv = trimBooked(iv, p.booked[bookKey(e.ID, d)])
			gain := overlapMinutes(iv, gaps)
			if gain == 0 {
				continue
			}
			if opt, ok := p.option(e, d, iv, role); ok {
				opts = append(opts, opt)
				gains = append(gains, gain)
			}
		}
	}
	if len(opts) == 0 {
		return option{}, false
	}

	bestGain := 0
	for _, g := range gains {
		bestGain = max(bestGain, g)
	}
	var top []option
	for i, o := range opts {
		if gains[i] == bestGain {
			top = append(top, o)
		}
	}
	return pick(top)
}

func (p *planner) option(e domain.Employee, d domain.Date, iv domain.Interval, role string) (option, bool) {
	a := domain.Assignment{
		EmployeeID: e.ID,
		Date:       d,
		Start:      iv.Start,
		End:        iv.End,
		Role:       role,
	}
	if rule := p.cs.Breaks; rule.Enabled() && iv.Minutes() > rule.ThresholdMinutes && iv.Minutes() > rule.MinBreakMinutes+1 {
		mid := iv.Start + domain.Clock((iv.Minutes()-rule.MinBreakMinutes)/2)
		a.Breaks = []domain.Interval{{Start: mid, End: mid + domain.Clock(rule.MinBreakMinutes)}}
	}

	acc := p.ledger.Preview(e.ID, d, a.WorkedMinutes())
	if len(p.ledger.Breaches(e, acc)) > 0 {
		return option{}, false
	}
	a.IsOvertime = acc.Overtime > 0
	return option{employee: e, assignment: a, accrual: acc}, true
}

func (p *planner) commit(o option) {
	a := o.assignment
	p.ledger.Add(a.EmployeeID, a.Date, a.WorkedMinutes())
	k := bookKey(a.EmployeeID, a.Date)
	p.booked[k] = append(p.booked[k], a.Interval())
	p.out = append(p.out, a)
}

// finalize replays the shifts in chronological order per employee so the
// overtime flags match how hours accrue, then orders them by date and start.
func (p *planner) finalize() []domain.Assignment {
	out := domain.CandidateSchedule{Assignments: p.out}.Sorted()
	ledger := validation.NewLedger(p.cs.Overtime)
	for i := range out {
		acc := ledger.Add(out[i].EmployeeID, out[i].Date, out[i].WorkedMinutes())
		out[i].IsOvertime = acc.Overtime > 0
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

func (p *planner) free(employeeID string, d domain.Date, iv domain.Interval) bool {
	for _, b := range p.booked[bookKey(employeeID, d)] {
		if b.Overlaps(iv) {
			return false
		}
	}
	return true
}

func (p *planner) slots(employeeID string, d domain.Date) []domain.Interval {
	var ivs []domain.Interval
	for _, s := range p.cs.SlotsFor(employeeID, d) {
		ivs = append(ivs, s.Interval())
	}
	return domain.MergeIntervals(ivs)
}

func pick(opts []option) (option, bool) {
	if len(opts) == 0 {
		return option{}, false
	}
	rank(opts)
	return opts[0], true
}

// rank sorts options by least overtime, then weekly hours, then employee id.
func rank(opts []option) {
	sort.SliceStable(opts, func(i, j int) bool {
		a, b := opts[i], opts[j]
		if a.accrual.Overtime != b.accrual.Overtime {
			return a.accrual.Overtime < b.accrual.Overtime
		}
		if a.accrual.WeekWorked != b.accrual.WeekWorked {
			return a.accrual.WeekWorked < b.accrual.WeekWorked
		}
		if a.employee.ID != b.employee.ID {
			return a.employee.ID < b.employee.ID
		}
		return a.assignment.Start < b.assignment.Start
	})
}

func bookKey(employeeID string, d domain.Date) string {
	return employeeID + "|" + string(d)
}

func covers(merged []domain.Interval, iv domain.Interval) bool {
	for _, m := range merged {
		if m.Contains(iv) {
			return true
		}
	}
	return false
}

func countFull(placed []domain.Interval, win domain.Interval) int {
	n := 0
	for _, iv := range placed {
		if iv.Contains(win) {
			n++
		}
	}
	return n
}

// gapsBelow returns the parts of win covered by fewer than need intervals.
func gapsBelow(win domain.Interval, placed []domain.Interval, need int) []domain.Interval {
	points := []domain.Clock{win.Start, win.End}
	for _, iv := range placed {
		points = append(points, iv.Start, iv.End)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var gaps []domain.Interval
	for k := 0; k+1 < len(points); k++ {
		seg := domain.Interval{Start: points[k], End: points[k+1]}
		if seg.Minutes() == 0 || !win.Contains(seg) {
			continue
		}
		n := 0
		for _, iv := range placed {
			if iv.Contains(seg) {
				n++
			}
		}
		if n < need {
			gaps = append(gaps, seg)
		}
	}
	return gaps
}

// trimBooked shrinks iv to its longest part that does not overlap booked.
func trimBooked(iv domain.Interval, booked []domain.Interval) domain.Interval {
	free := []domain.Interval{iv}
	for _, b := range booked {
		var next []domain.Interval
		for _, f := range free {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start > f.Start {
				next = append(next, domain.Interval{Start: f.Start, End: b.Start})
			}
			if b.End < f.End {
				next = append(next, domain.Interval{Start: b.End, End: f.End})
			}
		}
		free = next
	}

	var longest domain.Interval
	for _, f := range free {
		if f.Minutes() > longest.Minutes() {
			longest = f
		}
	}
	return longest
}

func overlapMinutes(iv domain.Interval, gaps []domain.Interval) int {
	n := 0
	for _, g := range gaps {
		if in, ok := iv.Intersect(g); ok {
			n += in.Minutes()
		}
	}
	return n
}
