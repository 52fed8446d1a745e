package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is sent as the system message by providers that support one.
const SystemPrompt = "You are a hospital workforce scheduler. Respond with ONLY a JSON object, no explanations or markdown formatting."

// BuildSchedulePrompt creates a prompt for schedule generation
func BuildSchedulePrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a staff schedule for location %s (tenant %s) from %s to %s.\n\n",
		req.LocationID, req.TenantID, req.Window.Start, req.Window.End)

	if req.Intent != "" {
		fmt.Fprintf(&b, "Scheduling goal (preference only, never overrides a rule):\n%s\n\n", req.Intent)
	}

	b.WriteString(`Rules:
1. Use only employees, dates and operating windows present in the constraints
2. Every assignment must sit inside one availability slot of that employee on that date
3. Every operating window needs at least minStaff employees at every instant and one employee per required role
4. No employee may have two overlapping assignments on the same date
5. Do not schedule on holiday dates unless holidayOperating is true
6. Hours beyond the regular daily or weekly threshold must set "isOvertime": true and stay under the overtime ceilings
7. Assignments longer than the break threshold must include a break of at least the minimum break length
8. Times are "HH:MM" in the location time zone, dates are "YYYY-MM-DD"

`)

	b.WriteString("Constraints:\n")
	b.WriteString(req.Constraints)
	b.WriteString("\n\n")

	if len(req.Feedback) > 0 {
		fmt.Fprintf(&b, "Attempt %d. The previous schedule was rejected. Fix these violations:\n", req.Attempt)
		for _, v := range req.Feedback {
			ref := ""
			if v.AssignmentRef.Index >= 0 {
				ref = fmt.Sprintf(" assignment #%d", v.AssignmentRef.Index)
			}
			if v.AssignmentRef.EmployeeID != "" {
				ref += " employee " + v.AssignmentRef.EmployeeID
			}
			if v.AssignmentRef.Date != "" {
				ref += " on " + string(v.AssignmentRef.Date)
			}
			fmt.Fprintf(&b, "- [%s]%s: %s\n", v.Kind, ref, v.Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with this JSON shape:
{"assignments": [{"employeeId": "...", "date": "YYYY-MM-DD", "start": "HH:MM", "end": "HH:MM", "isOvertime": false, "role": "...", "breaks": [{"start": "HH:MM", "end": "HH:MM"}]}], "notes": "..."}

JSON:`)

	return b.String()
}

// ExtractJSON pulls the first JSON object out of a model response. It accepts
// raw JSON, fenced blocks and objects surrounded by prose. Returns "" when
// nothing parseable is found.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
		return content
	}

	for _, marker := range []string{"```json", "```JSON", "```"} {
		if block := extractFromCodeBlock(content, marker, "```"); block != "" && json.Valid([]byte(block)) {
			return block
		}
	}

	return firstObject(content)
}

func extractFromCodeBlock(content, startMarker, endMarker string) string {
	startIdx := strings.Index(content, startMarker)
	if startIdx == -1 {
		return ""
	}

	contentStart := startIdx + len(startMarker)
	endIdx := strings.Index(content[contentStart:], endMarker)
	if endIdx == -1 {
		return ""
	}

	return strings.TrimSpace(content[contentStart : contentStart+endIdx])
}

// firstObject scans for the first balanced {...} span that is valid JSON.
func firstObject(s string) string {
	for start := strings.IndexByte(s, '{'); start != -1; {
		depth, inString, escaped := 0, false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					if candidate := s[start : i+1]; json.Valid([]byte(candidate)) {
						return candidate
					}
					i = len(s)
				}
			}
		}

		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return ""
}
