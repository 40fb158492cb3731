package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
)

// memoryStore is an in-memory stand-in for the Postgres repositories. Students are kept
// in ID order, mirroring the ORDER BY of the SQL lookups.
type memoryStore struct {
	students    []models.Student
	courses     []models.Course
	enrollments []models.Enrollment
	calls       []string
	err         error
	nextID      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%04d", prefix, m.nextID)
}

func (m *memoryStore) course(id string) *models.Course {
	for i := range m.courses {
		if m.courses[i].ID == id {
			c := m.courses[i]
			return &c
		}
	}
	return nil
}

func (m *memoryStore) loaded() []models.Student {
	out := make([]models.Student, len(m.students))
	for i, st := range m.students {
		st.Enrollments = []models.Enrollment{}
		for _, e := range m.enrollments {
			if e.StudentID == st.ID {
				e.Course = m.course(e.CourseID)
				st.Enrollments = append(st.Enrollments, e)
			}
		}
		out[i] = st
	}
	return out
}

func (m *memoryStore) where(call string, keep func(models.Student) bool) ([]models.Student, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Student{}
	for _, st := range m.loaded() {
		if keep(st) {
			st.Enrollments = nil
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memoryStore) FindAll(ctx context.Context) ([]models.Student, error) {
	return m.where("FindAll", func(models.Student) bool { return true })
}

func (m *memoryStore) FindWithEnrollments(ctx context.Context) ([]models.Student, error) {
	m.calls = append(m.calls, "FindWithEnrollments")
	if m.err != nil {
		return nil, m.err
	}
	return m.loaded(), nil
}

func (m *memoryStore) FindByNameContainingIgnoreCase(ctx context.Context, name string) ([]models.Student, error) {
	return m.where("FindByNameContainingIgnoreCase", func(s models.Student) bool {
		return models.ContainsFold(s.Name, name)
	})
}

func (m *memoryStore) FindByEmailContainingIgnoreCase(ctx context.Context, email string) ([]models.Student, error) {
	return m.where("FindByEmailContainingIgnoreCase", func(s models.Student) bool {
		return models.ContainsFold(s.Email, email)
	})
}

func (m *memoryStore) FindByAgeGreaterThan(ctx context.Context, age int) ([]models.Student, error) {
	return m.where("FindByAgeGreaterThan", func(s models.Student) bool { return s.Age > age })
}

func (m *memoryStore) FindByAgeLessThan(ctx context.Context, age int) ([]models.Student, error) {
	return m.where("FindByAgeLessThan", func(s models.Student) bool { return s.Age < age })
}

func (m *memoryStore) FindByEnrollmentsCourseNameContainingIgnoreCase(ctx context.Context, courseName string) ([]models.Student, error) {
	return m.where("FindByEnrollmentsCourseNameContainingIgnoreCase", func(s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool { return models.ContainsFold(e.CourseName(), courseName) })
	})
}

func (m *memoryStore) FindByEnrollmentsGrade(ctx context.Context, grade models.Grade) ([]models.Student, error) {
	return m.where("FindByEnrollmentsGrade", func(s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool { return e.Grade == grade })
	})
}

func (m *memoryStore) FindByEnrollmentsCourseNameAndGrade(ctx context.Context, courseName string, grade models.Grade) ([]models.Student, error) {
	return m.where("FindByEnrollmentsCourseNameAndGrade", func(s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool {
			return models.ContainsFold(e.CourseName(), courseName) && e.Grade == grade
		})
	})
}

func (m *memoryStore) FindByEnrollmentsSizeBetween(ctx context.Context, min, max int) ([]models.Student, error) {
	return m.where("FindByEnrollmentsSizeBetween", func(s models.Student) bool {
		return s.EnrollmentCount() > min && s.EnrollmentCount() < max
	})
}

func (m *memoryStore) Count(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.students), nil
}

func (m *memoryStore) SaveAll(ctx context.Context, students []models.Student) error {
	if m.err != nil {
		return m.err
	}
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = m.id("s")
		}
		st := students[i]
		st.Enrollments = nil
		m.students = append(m.students, st)
	}
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for i, st := range m.students {
		if st.ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			m.dropEnrollments(func(e models.Enrollment) bool { return e.StudentID == id })
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	found := []string{}
	for _, st := range m.students {
		for _, id := range ids {
			if st.ID == id {
				found = append(found, id)
				break
			}
		}
	}
	return found, nil
}

func (m *memoryStore) dropEnrollments(drop func(models.Enrollment) bool) {
	kept := m.enrollments[:0]
	for _, e := range m.enrollments {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	m.enrollments = kept
}

// memoryCourses exposes the course side of a memoryStore.
type memoryCourses struct{ *memoryStore }

func (m memoryCourses) Count(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.courses), nil
}

func (m memoryCourses) SaveAll(ctx context.Context, courses []models.Course) error {
	if m.err != nil {
		return m.err
	}
	for i := range courses {
		course := &courses[i]
		if course.ID == "" {
			course.ID = m.id("c")
		}
		for j := range course.Enrollments {
			e := &course.Enrollments[j]
			if e.ID == "" {
				e.ID = m.id("e")
			}
			e.CourseID = course.ID
			m.enrollments = append(m.enrollments, *e)
		}
		stored := *course
		stored.Enrollments = nil
		m.courses = append(m.courses, stored)
	}
	return nil
}

func (m memoryCourses) Exists(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.course(id) != nil, nil
}

func (m memoryCourses) Delete(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for i, c := range m.courses {
		if c.ID == id {
			m.memoryStore.courses = append(m.courses[:i], m.courses[i+1:]...)
			m.dropEnrollments(func(e models.Enrollment) bool { return e.CourseID == id })
			return true, nil
		}
	}
	return false, nil
}

func (m memoryCourses) DeleteAll(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.memoryStore.courses = nil
	m.memoryStore.enrollments = nil
	return nil
}

// memoryEnrollments exposes enrollment aggregates of a memoryStore.
type memoryEnrollments struct{ *memoryStore }

func (m memoryEnrollments) Count(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.enrollments), nil
}

func (m memoryEnrollments) CountByStudent(ctx context.Context) (map[string]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := make(map[string]int)
	for _, e := range m.enrollments {
		counts[e.StudentID]++
	}
	return counts, nil
}

// seededStore fills a memoryStore the same way the seeding service fills Postgres.
func seededStore(t *testing.T, seed int64, n int) *memoryStore {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	store := newMemoryStore()
	students := generateStudents(rng, n)
	require.NoError(t, store.SaveAll(context.Background(), students))
	courses := enrollStudents(rng, generateCourses(), students)
	require.NoError(t, memoryCourses{store}.SaveAll(context.Background(), courses))
	store.calls = nil
	return store
}

// memoryCacheRepo is a map-backed CacheRepository.
type memoryCacheRepo struct {
	entries map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deleted = append(r.deleted, pattern)
	r.entries = make(map[string][]byte)
	return nil
}
