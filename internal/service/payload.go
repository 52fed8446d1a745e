package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
)

// PayloadBuilder turns a validated candidate into the bulk-update payload.
type PayloadBuilder struct{}

// NewPayloadBuilder creates a new payload builder
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{}
}

// BuildInput carries everything needed to build one payload.
type BuildInput struct {
	Candidate    domain.CandidateSchedule
	Report       *domain.ValidationReport
	Constraints  *domain.ConstraintSet
	Attempts     int
	Elapsed      time.Duration
	ValidateOnly bool
}

// Build fails with BuildError when the candidate was not validated or is invalid.
// Output ordering is fixed: employees by id, shifts by date then start.
func (b *PayloadBuilder) Build(in BuildInput) (*domain.BuiltPayload, error) {
	switch {
	case in.Report == nil:
		return nil, &domain.BuildError{Reason: "candidate has no validation report"}
	case !in.Report.IsValid:
		return nil, &domain.BuildError{Reason: fmt.Sprintf("candidate has %d violations", len(in.Report.Violations))}
	case in.Report.CheckedAssignments != len(in.Candidate.Assignments):
		return nil, &domain.BuildError{Reason: fmt.Sprintf("report covers %d assignments, candidate has %d",
			in.Report.CheckedAssignments, len(in.Candidate.Assignments))}
	case in.Constraints == nil:
		return nil, &domain.BuildError{Reason: "missing constraint set"}
	}

	byEmployee := make(map[string][]domain.PayloadAssignment)
	for _, a := range in.Candidate.Sorted() {
		byEmployee[a.EmployeeID] = append(byEmployee[a.EmployeeID], domain.PayloadAssignment{
			Date:       a.Date,
			Start:      a.Start,
			End:        a.End,
			IsOvertime: a.IsOvertime,
		})
	}

	ids := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	schedules := make([]domain.EmployeeSchedule, 0, len(ids))
	for _, id := range ids {
		schedules = append(schedules, domain.EmployeeSchedule{EmployeeID: id, Assignments: byEmployee[id]})
	}

	return &domain.BuiltPayload{
		BulkUpdatePayload: domain.BulkUpdatePayload{
			EmployeeSchedules: schedules,
			ValidateOnly:      in.ValidateOnly,
		},
		GenerationMetadata: domain.GenerationMetadata{
			EmployeeCount: len(schedules),
			ScheduleCount: len(in.Candidate.Assignments),
			OperatingDays: len(in.Constraints.StaffedDates()),
			AttemptCount:  in.Attempts,
			ElapsedMs:     in.Elapsed.Milliseconds(),
		},
	}, nil
}
