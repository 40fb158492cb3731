package models

import "strings"

// Student represents a learner. Enrollments is a read-only back reference that is
// only populated by the eager fetch; the student does not own those records.
type Student struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Age         int          `db:"age" json:"age"`
	Email       string       `db:"email" json:"email"`
	Enrollments []Enrollment `db:"-" json:"enrollments,omitempty"`
}

// Equal compares students by identity only.
func (s Student) Equal(other Student) bool {
	return s.ID == other.ID
}

// EnrollmentCount returns the number of loaded enrollments.
func (s Student) EnrollmentCount() int {
	return len(s.Enrollments)
}

// HasEnrollment reports whether any loaded enrollment satisfies match.
func (s Student) HasEnrollment(match func(Enrollment) bool) bool {
	for _, e := range s.Enrollments {
		if match(e) {
			return true
		}
	}
	return false
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// StudentIDs returns the identities of students in order.
func StudentIDs(students []Student) []string {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids
}
