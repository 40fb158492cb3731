package models

// StudentFilter holds independently optional criteria. A nil field leaves that
// dimension unconstrained. Values are never validated against each other: crossing
// bounds simply produce an empty result.
type StudentFilter struct {
	Name                        *string `json:"name,omitempty"`
	Email                       *string `json:"email,omitempty"`
	AgeGreaterThan              *int    `json:"ageGreaterThan,omitempty"`
	AgeLessThan                 *int    `json:"ageLessThan,omitempty"`
	EnrollmentsCountGreaterThan *int    `json:"enrollmentsCountGreaterThan,omitempty"`
	EnrollmentsCountLessThan    *int    `json:"enrollmentsCountLessThan,omitempty"`
	CourseName                  *string `json:"courseName,omitempty"`
	CourseGrade                 *Grade  `json:"courseGrade,omitempty"`
}

// PresentCount returns how many criteria are set.
func (f StudentFilter) PresentCount() int {
	n := 0
	for _, set := range []bool{
		f.Name != nil,
		f.Email != nil,
		f.AgeGreaterThan != nil,
		f.AgeLessThan != nil,
		f.EnrollmentsCountGreaterThan != nil,
		f.EnrollmentsCountLessThan != nil,
		f.CourseName != nil,
		f.CourseGrade != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no criterion is set.
func (f StudentFilter) IsEmpty() bool {
	return f.PresentCount() == 0
}

// StringPtr, IntPtr and GradePtr build optional filter values.
func StringPtr(v string) *string { return &v }

func IntPtr(v int) *int { return &v }

func GradePtr(v Grade) *Grade { return &v }
