package models

// Course hosts enrollments and owns them: saving a course saves its enrollments and
// deleting a course removes them.
type Course struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Credits     int          `db:"credits" json:"credits"`
	Enrollments []Enrollment `db:"-" json:"enrollments,omitempty"`
}

// Course credit bounds enforced by validation and the schema.
const (
	MinCredits = 1
	MaxCredits = 8
)
