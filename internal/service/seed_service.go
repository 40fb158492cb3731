package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
)

// DefaultSeedStudentCount is the number of students generated when none is configured.
const DefaultSeedStudentCount = 99

var (
	seedStudentNames = []string{"John Doe", "Bob Doe", "Jane Smith", "Alice Brown", "Bob White", "Charlie Black"}
	seedEmailVendors = []string{"@gmail.com", "@yahoo.com", "@outlook.com", "@icloud.com", "@aol.com", "@zoho.com", "@protonmail.com"}
	seedCourseNames  = []string{
		"Intro to Chemistry",
		"Advanced Physics",
		"Fundamentals of Computer Science",
		"Principles of Economics",
		"Topics in Philosophy",
		"Advanced Maths",
		"Fundamentals of Economics",
		"Intro to Databases",
	}
)

const (
	seedMinAge   = 18
	seedAgeRange = 32
	seedNotes    = "some notes"
)

type seedStudentStore interface {
	Count(ctx context.Context) (int, error)
	SaveAll(ctx context.Context, students []models.Student) error
}

type seedCourseStore interface {
	Count(ctx context.Context) (int, error)
	SaveAll(ctx context.Context, courses []models.Course) error
	DeleteAll(ctx context.Context) error
}

type enrollmentCounter interface {
	Count(ctx context.Context) (int, error)
}

// SeedReport summarises the store after a seeding run.
type SeedReport struct {
	Seeded      bool `json:"seeded"`
	Students    int  `json:"students"`
	Courses     int  `json:"courses"`
	Enrollments int  `json:"enrollments"`
}

// SeedService populates an empty store with generated students, courses and enrollments.
type SeedService struct {
	students    seedStudentStore
	courses     seedCourseStore
	enrollments enrollmentCounter
	cache       *CacheService
	logger      *zap.Logger
	rng         *rand.Rand
	count       int
}

// NewSeedService constructs a seeding service. rng must not be shared across goroutines.
func NewSeedService(students seedStudentStore, courses seedCourseStore, enrollments enrollmentCounter, cache *CacheService, rng *rand.Rand, count int, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if count <= 0 {
		count = DefaultSeedStudentCount
	}
	return &SeedService{
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		logger:      logger,
		rng:         rng,
		count:       count,
	}
}

// Seed generates data only when no student is stored yet, then reports the store counts.
func (s *SeedService) Seed(ctx context.Context) (*SeedReport, error) {
	existing, err := s.students.Count(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count students")
	}

	report := &SeedReport{}
	if existing == 0 {
		students := generateStudents(s.rng, s.count)
		if err := s.students.SaveAll(ctx, students); err != nil {
			return nil, appErrors.Storage(err, "failed to save students")
		}
		if err := s.courses.DeleteAll(ctx); err != nil {
			return nil, appErrors.Storage(err, "failed to clear courses")
		}
		courses := enrollStudents(s.rng, generateCourses(), students)
		if err := s.courses.SaveAll(ctx, courses); err != nil {
			return nil, appErrors.Storage(err, "failed to save courses")
		}
		report.Seeded = true
		_ = s.cache.Invalidate(ctx, StudentCachePattern)
	}

	if report.Students, err = s.students.Count(ctx); err != nil {
		return nil, appErrors.Storage(err, "failed to count students")
	}
	if report.Courses, err = s.courses.Count(ctx); err != nil {
		return nil, appErrors.Storage(err, "failed to count courses")
	}
	if report.Enrollments, err = s.enrollments.Count(ctx); err != nil {
		return nil, appErrors.Storage(err, "failed to count enrollments")
	}

	s.logger.Info("seed completed",
		zap.Bool("seeded", report.Seeded),
		zap.Int("students", report.Students),
		zap.Int("courses", report.Courses),
		zap.Int("enrollments", report.Enrollments))
	return report, nil
}

// generateStudents builds n students numbered from 1 with ages 18..49.
func generateStudents(rng *rand.Rand, n int) []models.Student {
	students := make([]models.Student, 0, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("%s %d", seedStudentNames[rng.Intn(len(seedStudentNames))], i)
		email := strings.ToLower(strings.ReplaceAll(name, " ", "")) + seedEmailVendors[rng.Intn(len(seedEmailVendors))]
		students = append(students, models.Student{
			Name:  name,
			Age:   rng.Intn(seedAgeRange) + seedMinAge,
			Email: email,
		})
	}
	return students
}

// generateCourses returns the catalogue with credits 1..8 in order.
func generateCourses() []models.Course {
	courses := make([]models.Course, len(seedCourseNames))
	for i, name := range seedCourseNames {
		courses[i] = models.Course{Name: name, Credits: i + models.MinCredits}
	}
	return courses
}

// enrollStudents draws len(courses) random picks per student and enrolls the student
// once in each distinct course picked. Students must already carry their IDs.
func enrollStudents(rng *rand.Rand, courses []models.Course, students []models.Student) []models.Course {
	grades := models.Grades()
	for _, student := range students {
		picked := make([]bool, len(courses))
		order := make([]int, 0, len(courses))
		for range courses {
			idx := rng.Intn(len(courses))
			if !picked[idx] {
				picked[idx] = true
				order = append(order, idx)
			}
		}
		for _, idx := range order {
			courses[idx].Enrollments = append(courses[idx].Enrollments, models.Enrollment{
				StudentID: student.ID,
				Grade:     grades[rng.Intn(len(grades))],
				Notes:     seedNotes,
			})
		}
	}
	return courses
}
