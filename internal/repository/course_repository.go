package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-query-api/internal/models"
)

// CourseRepository persists courses together with the enrollments they own.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// SaveAll inserts courses and their enrollments in one transaction. IDs are
// assigned in place and each enrollment is bound to its course.
func (r *CourseRepository) SaveAll(ctx context.Context, courses []models.Course) error {
	const courseQuery = `INSERT INTO courses (id, name, credits) VALUES (:id, :name, :credits)`
	const enrollmentQuery = `INSERT INTO enrollments (id, student_id, course_id, grade, notes)
        VALUES (:id, :student_id, :course_id, :grade, :notes)`
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		for i := range courses {
			course := &courses[i]
			if course.ID == "" {
				course.ID = uuid.NewString()
			}
			if _, err := tx.NamedExecContext(ctx, courseQuery, course); err != nil {
				return fmt.Errorf("create course: %w", err)
			}
			for j := range course.Enrollments {
				enrollment := &course.Enrollments[j]
				if enrollment.ID == "" {
					enrollment.ID = uuid.NewString()
				}
				enrollment.CourseID = course.ID
				if _, err := tx.NamedExecContext(ctx, enrollmentQuery, enrollment); err != nil {
					return fmt.Errorf("create enrollment: %w", err)
				}
			}
		}
		return nil
	})
}

// Count returns the number of stored courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// Exists reports whether a course with id is stored.
func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)", id); err != nil {
		return false, fmt.Errorf("check course: %w", err)
	}
	return exists, nil
}

// Delete removes a course and, by cascade, its enrollments.
func (r *CourseRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll removes every course and their enrollments.
func (r *CourseRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM courses"); err != nil {
		return fmt.Errorf("delete courses: %w", err)
	}
	return nil
}
