package models

// Enrollment joins exactly one student to exactly one course.
type Enrollment struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	CourseID  string `db:"course_id" json:"course_id"`
	Grade     Grade  `db:"grade" json:"grade"`
	Notes     string `db:"notes" json:"notes"`

	// Course is populated by the eager student fetch.
	Course *Course `db:"-" json:"course,omitempty"`
}

// EnrollmentRow is the flattened enrollment + course projection read by the eager fetch.
type EnrollmentRow struct {
	Enrollment
	CourseName    string `db:"course_name"`
	CourseCredits int    `db:"course_credits"`
}

// CourseName returns the loaded course name or "" when the course was not loaded.
func (e Enrollment) CourseName() string {
	if e.Course == nil {
		return ""
	}
	return e.Course.Name
}
