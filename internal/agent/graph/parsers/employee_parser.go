package parsers

import (
	"fmt"
	"strings"
)

// Labels of the five-field employee record, in output order.
const (
	labelName       = "이름"
	labelEmail      = "이메일"
	labelDepartment = "부서"
	labelPosition   = "직책"
	labelDuties     = "담당업무"
)

// EmployeeRecord is the fixed five-field personnel record.
type EmployeeRecord struct {
	Name       string
	Email      string
	Department string
	Position   string
	Duties     string
}

// Complete reports whether every field is populated.
func (e EmployeeRecord) Complete() bool {
	return e.Name != "" && e.Email != "" && e.Department != "" && e.Position != "" && e.Duties != ""
}

// Format renders the record as "label: value" lines.
func (e EmployeeRecord) Format() string {
	return fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n%s: %s\n%s: %s",
		labelName, e.Name,
		labelEmail, e.Email,
		labelDepartment, e.Department,
		labelPosition, e.Position,
		labelDuties, e.Duties,
	)
}

// ParseEmployeeRecord reads the first occurrence of each "label: value" line.
// The remaining non-field lines after the record are returned as the rationale.
func ParseEmployeeRecord(text string) (EmployeeRecord, string) {
	var rec EmployeeRecord
	var rest []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			if trimmed != "" {
				rest = append(rest, trimmed)
			}
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), "-*• ")
		value = strings.TrimSpace(value)
		var slot *string
		switch key {
		case labelName:
			slot = &rec.Name
		case labelEmail:
			slot = &rec.Email
		case labelDepartment:
			slot = &rec.Department
		case labelPosition:
			slot = &rec.Position
		case labelDuties:
			slot = &rec.Duties
		}
		if slot == nil {
			rest = append(rest, trimmed)
			continue
		}
		if *slot == "" {
			*slot = value
		}
	}
	return rec, strings.TrimSpace(strings.Join(rest, "\n"))
}

// ParseEmployeeLine parses a directory line "name,email,department,position,duties".
// Duties may contain commas.
func ParseEmployeeLine(line string) (EmployeeRecord, bool) {
	parts := strings.SplitN(line, ",", 5)
	if len(parts) < 5 {
		return EmployeeRecord{}, false
	}
	rec := EmployeeRecord{
		Name:       strings.TrimSpace(parts[0]),
		Email:      strings.TrimSpace(parts[1]),
		Department: strings.TrimSpace(parts[2]),
		Position:   strings.TrimSpace(parts[3]),
		Duties:     strings.TrimSpace(parts[4]),
	}
	return rec, rec.Name != ""
}
