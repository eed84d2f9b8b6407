// Package validator measures generated fields against their declared length bounds.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"illustrator/pkg/registry"
)

// Status tells which side of the bound a field fell on.
type Status string

const (
	StatusUnder Status = "under"
	StatusOver  Status = "over"
)

// Violation is one field whose visible length is outside its bound.
type Violation struct {
	Field        string `json:"field"`
	ActualLength int    `json:"actualLength"`
	Min          int    `json:"min"`
	Max          int    `json:"max"`
	Status       Status `json:"status"`
	Text         string `json:"-"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %d chars (%s, allowed %d-%d)", v.Field, v.ActualLength, v.Status, v.Min, v.Max)
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// MeasureVisible returns the rune count of text with inline markup tags removed.
func MeasureVisible(text string) int {
	return utf8.RuneCountInString(tagPattern.ReplaceAllString(text, ""))
}

// Validate checks every role present in fields and returns one violation per
// out-of-range field, ordered as roles. Roles absent from fields are not measured.
func Validate(fields map[string]string, roles []registry.FieldRole) []Violation {
	var violations []Violation
	for _, role := range roles {
		text, ok := fields[role.ID]
		if !ok {
			continue
		}
		n := MeasureVisible(text)
		switch {
		case n < role.Min:
			violations = append(violations, Violation{Field: role.ID, ActualLength: n, Min: role.Min, Max: role.Max, Status: StatusUnder, Text: text})
		case n > role.Max:
			violations = append(violations, Violation{Field: role.ID, ActualLength: n, Min: role.Min, Max: role.Max, Status: StatusOver, Text: text})
		}
	}
	return violations
}

// Missing returns the declared role IDs that fields does not provide, sorted.
func Missing(fields map[string]string, roles []registry.FieldRole) []string {
	var missing []string
	for _, role := range roles {
		if _, ok := fields[role.ID]; !ok {
			missing = append(missing, role.ID)
		}
	}
	sort.Strings(missing)
	return missing
}

// Summary is the aggregate view of one validation pass.
type Summary struct {
	Valid      bool        `json:"valid"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
}

// Summarize counts how many roles were measured and collects the violations.
func Summarize(fields map[string]string, roles []registry.FieldRole) Summary {
	checked := 0
	for _, role := range roles {
		if _, ok := fields[role.ID]; ok {
			checked++
		}
	}
	violations := Validate(fields, roles)
	if violations == nil {
		violations = []Violation{}
	}
	return Summary{Valid: len(violations) == 0, Checked: checked, Violations: violations}
}

// Report renders a summary as a multi-line string for logs.
func Report(s Summary) string {
	var sb strings.Builder
	if s.Valid {
		fmt.Fprintf(&sb, "All %d fields within bounds", s.Checked)
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d of %d fields out of bounds:", len(s.Violations), s.Checked)
	for _, v := range s.Violations {
		sb.WriteString("\n  - ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Feedback renders violations as correction hints for the next attempt.
func Feedback(violations []Violation) []string {
	hints := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Status == StatusOver {
			hints = append(hints, fmt.Sprintf("%s is %d characters; shorten it to at most %d", v.Field, v.ActualLength, v.Max))
		} else {
			hints = append(hints, fmt.Sprintf("%s is %d characters; expand it to at least %d", v.Field, v.ActualLength, v.Min))
		}
	}
	return hints
}
