package llm_test

import (
	"testing"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestBuildSchedulePrompt(t *testing.T) {
	req := llm.Request{
		TenantID:    "tenant-a",
		LocationID:  "loc-1",
		Window:      domain.DateRange{Start: "2026-03-02", End: "2026-03-15"},
		Intent:      "minimize overtime",
		Constraints: `{"employees":[{"employee_id":"e1"}]}`,
	}

	prompt := llm.BuildSchedulePrompt(req)

	for _, s := range []string{
		"loc-1",
		"2026-03-02",
		"2026-03-15",
		"minimize overtime",
		`"employee_id":"e1"`,
		"isOvertime",
	} {
		assert.Contains(t, prompt, s)
	}
	assert.NotContains(t, prompt, "previous schedule was rejected")
}

func TestBuildSchedulePrompt_WithFeedback(t *testing.T) {
	req := llm.Request{
		Attempt: 2,
		Feedback: []domain.Violation{
			{
				Kind:          domain.ViolationAvailability,
				AssignmentRef: domain.AssignmentRef{Index: 3, EmployeeID: "e7", Date: "2026-03-04"},
				Detail:        "09:00-18:00 is outside availability",
			},
			{
				Kind:          domain.ViolationCoverage,
				AssignmentRef: domain.AssignmentRef{Index: -1, Date: "2026-03-05"},
				Detail:        "window 08:00-16:00 needs 2 staff",
			},
		},
	}

	prompt := llm.BuildSchedulePrompt(req)

	assert.Contains(t, prompt, "Attempt 2")
	assert.Contains(t, prompt, "- [availability] assignment #3 employee e7 on 2026-03-04: 09:00-18:00 is outside availability")
	assert.Contains(t, prompt, "- [coverage] on 2026-03-05: window 08:00-16:00 needs 2 staff")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			"raw object",
			`{"assignments":[]}`,
			`{"assignments":[]}`,
		},
		{
			"surrounding whitespace",
			"  \n{\"assignments\":[]}\n ",
			`{"assignments":[]}`,
		},
		{
			"json fence",
			"```json\n{\"assignments\":[]}\n```",
			`{"assignments":[]}`,
		},
		{
			"bare fence with prose",
			"Here is the schedule:\n```\n{\"assignments\":[]}\n```\nLet me know.",
			`{"assignments":[]}`,
		},
		{
			"object in prose",
			`Sure! {"assignments":[{"note":"a } inside"}]} Hope this helps`,
			`{"assignments":[{"note":"a } inside"}]}`,
		},
		{
			"skips invalid leading braces",
			`{not json} then {"ok":true}`,
			`{"ok":true}`,
		},
		{
			"nothing",
			"I cannot build a schedule for this location.",
			"",
		},
		{
			"truncated",
			`{"assignments":[{"employeeId":"e1"`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, llm.ExtractJSON(tt.content))
		})
	}
}
