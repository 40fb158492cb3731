package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the enrollment schema. Enrollments cascade from both
// their student and their course.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        age INTEGER NOT NULL,
        email TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS courses (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        credits INTEGER NOT NULL CHECK (credits BETWEEN 1 AND 8)
    )`,
	`CREATE TABLE IF NOT EXISTS enrollments (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
        course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        grade TEXT NOT NULL CHECK (grade IN ('A','B','C','D','F')),
        notes TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_student_id ON enrollments(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_course_id ON enrollments(course_id)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
