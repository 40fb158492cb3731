package models

import (
	"fmt"
	"strings"
)

// Grade is the outcome recorded on an enrollment. Only equality matters when filtering.
type Grade string

// Supported grades.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Grades lists every grade in declaration order.
func Grades() []Grade {
	return []Grade{GradeA, GradeB, GradeC, GradeD, GradeF}
}

// Valid reports whether g is one of the supported grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return true
	}
	return false
}

// ParseGrade accepts a grade letter in any case.
func ParseGrade(raw string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(raw)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown grade %q", raw)
	}
	return g, nil
}
