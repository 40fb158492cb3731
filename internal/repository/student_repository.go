package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/enrollment-query-api/internal/models"
)

const (
	studentColumns = "s.id, s.name, s.age, s.email"
	studentOrder   = " ORDER BY s.id"

	enrolledStudentsBase = "SELECT DISTINCT " + studentColumns + ` FROM students s
        JOIN enrollments e ON e.student_id = s.id
        JOIN courses c ON c.id = e.course_id`
)

// StudentRepository manages persistence and narrowing lookups for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) selectStudents(ctx context.Context, op, query string, args ...interface{}) ([]models.Student, error) {
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return students, nil
}

// FindAll returns every student without associations.
func (r *StudentRepository) FindAll(ctx context.Context) ([]models.Student, error) {
	return r.selectStudents(ctx, "find all students",
		"SELECT "+studentColumns+" FROM students s"+studentOrder)
}

// FindWithEnrollments returns every student with enrollments and their courses loaded.
// Both reads share one repeatable-read snapshot.
func (r *StudentRepository) FindWithEnrollments(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := withTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sqlx.Tx) error {
		students = []models.Student{}
		if err := tx.SelectContext(ctx, &students, "SELECT "+studentColumns+" FROM students s"+studentOrder); err != nil {
			return fmt.Errorf("find students with enrollments: %w", err)
		}
		var rows []models.EnrollmentRow
		const query = `SELECT e.id, e.student_id, e.course_id, e.grade, e.notes, c.name AS course_name, c.credits AS course_credits
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        ORDER BY e.student_id, e.id`
		if err := tx.SelectContext(ctx, &rows, query); err != nil {
			return fmt.Errorf("load student enrollments: %w", err)
		}
		attachEnrollments(students, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func attachEnrollments(students []models.Student, rows []models.EnrollmentRow) {
	byStudent := make(map[string][]models.Enrollment, len(students))
	for _, row := range rows {
		enrollment := row.Enrollment
		enrollment.Course = &models.Course{ID: row.CourseID, Name: row.CourseName, Credits: row.CourseCredits}
		byStudent[row.StudentID] = append(byStudent[row.StudentID], enrollment)
	}
	for i := range students {
		students[i].Enrollments = byStudent[students[i].ID]
		if students[i].Enrollments == nil {
			students[i].Enrollments = []models.Enrollment{}
		}
	}
}

// FindByNameContainingIgnoreCase returns students whose name contains name.
func (r *StudentRepository) FindByNameContainingIgnoreCase(ctx context.Context, name string) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by name",
		"SELECT "+studentColumns+" FROM students s WHERE LOWER(s.name) LIKE $1"+studentOrder, containsPattern(name))
}

// FindByEmailContainingIgnoreCase returns students whose email contains email.
func (r *StudentRepository) FindByEmailContainingIgnoreCase(ctx context.Context, email string) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by email",
		"SELECT "+studentColumns+" FROM students s WHERE LOWER(s.email) LIKE $1"+studentOrder, containsPattern(email))
}

// FindByAgeGreaterThan returns students strictly older than age. The bound is compared
// as bigint so values outside the int4 column range still yield a result.
func (r *StudentRepository) FindByAgeGreaterThan(ctx context.Context, age int) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by age greater than",
		"SELECT "+studentColumns+" FROM students s WHERE s.age > $1::bigint"+studentOrder, age)
}

// FindByAgeLessThan returns students strictly younger than age, compared as bigint.
func (r *StudentRepository) FindByAgeLessThan(ctx context.Context, age int) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by age less than",
		"SELECT "+studentColumns+" FROM students s WHERE s.age < $1::bigint"+studentOrder, age)
}

// FindByEnrollmentsCourseNameContainingIgnoreCase returns students enrolled in a course
// whose name contains courseName.
func (r *StudentRepository) FindByEnrollmentsCourseNameContainingIgnoreCase(ctx context.Context, courseName string) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by course name",
		enrolledStudentsBase+" WHERE LOWER(c.name) LIKE $1"+studentOrder, containsPattern(courseName))
}

// FindByEnrollmentsGrade returns students holding at least one enrollment with grade.
func (r *StudentRepository) FindByEnrollmentsGrade(ctx context.Context, grade models.Grade) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by grade",
		enrolledStudentsBase+" WHERE e.grade = $1"+studentOrder, grade)
}

// FindByEnrollmentsCourseNameAndGrade returns students with a single enrollment that
// matches both the course name substring and the grade.
func (r *StudentRepository) FindByEnrollmentsCourseNameAndGrade(ctx context.Context, courseName string, grade models.Grade) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by course name and grade",
		enrolledStudentsBase+" WHERE LOWER(c.name) LIKE $1 AND e.grade = $2"+studentOrder, containsPattern(courseName), grade)
}

// FindByEnrollmentsSizeBetween returns students whose enrollment count lies strictly
// between min and max.
func (r *StudentRepository) FindByEnrollmentsSizeBetween(ctx context.Context, min, max int) ([]models.Student, error) {
	return r.selectStudents(ctx, "find students by enrollment count",
		"SELECT "+studentColumns+` FROM students s
        LEFT JOIN enrollments e ON e.student_id = s.id
        GROUP BY s.id, s.name, s.age, s.email
        HAVING COUNT(e.id) > $1 AND COUNT(e.id) < $2`+studentOrder, min, max)
}

// Count returns the number of stored students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// ExistingIDs returns the subset of ids that belong to stored students.
func (r *StudentRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	found := []string{}
	if len(ids) == 0 {
		return found, nil
	}
	if err := r.db.SelectContext(ctx, &found, "SELECT id FROM students WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find existing students: %w", err)
	}
	return found, nil
}

// SaveAll inserts students in one transaction, assigning IDs in place.
func (r *StudentRepository) SaveAll(ctx context.Context, students []models.Student) error {
	const query = `INSERT INTO students (id, name, age, email) VALUES (:id, :name, :age, :email)`
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		for i := range students {
			if students[i].ID == "" {
				students[i].ID = uuid.NewString()
			}
			if _, err := tx.NamedExecContext(ctx, query, &students[i]); err != nil {
				return fmt.Errorf("create student: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a student; its enrollments cascade. It reports whether a row was removed.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll removes every student and, by cascade, every enrollment.
func (r *StudentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students"); err != nil {
		return fmt.Errorf("delete students: %w", err)
	}
	return nil
}
