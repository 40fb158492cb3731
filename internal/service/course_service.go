package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
)

type courseStore interface {
	SaveAll(ctx context.Context, courses []models.Course) error
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type studentAdminStore interface {
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CreateEnrollmentRequest enrolls an existing student in the course being created.
type CreateEnrollmentRequest struct {
	StudentID string       `json:"student_id" validate:"required"`
	Grade     models.Grade `json:"grade" validate:"required,oneof=A B C D F"`
	Notes     string       `json:"notes" validate:"max=1000"`
}

// CreateCourseRequest captures a course together with the enrollments it owns.
type CreateCourseRequest struct {
	Name        string                    `json:"name" validate:"required,max=255"`
	Credits     int                       `json:"credits" validate:"min=1,max=8"`
	Enrollments []CreateEnrollmentRequest `json:"enrollments" validate:"dive"`
}

// CourseService administers courses and students. Every mutation invalidates cached
// filter results.
type CourseService struct {
	courses   courseStore
	students  studentAdminStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates the administration service.
func NewCourseService(courses courseStore, students studentAdminStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, students: students, cache: cache, validator: validate, logger: logger}
}

// CreateCourse validates and stores a course with its enrollments.
func (s *CourseService) CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	req.Name = strings.TrimSpace(req.Name)
	for i := range req.Enrollments {
		req.Enrollments[i].StudentID = strings.TrimSpace(req.Enrollments[i].StudentID)
		req.Enrollments[i].Grade = models.Grade(strings.ToUpper(string(req.Enrollments[i].Grade)))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.ensureStudentsExist(ctx, req.Enrollments); err != nil {
		return nil, err
	}

	course := models.Course{Name: req.Name, Credits: req.Credits, Enrollments: make([]models.Enrollment, 0, len(req.Enrollments))}
	for _, e := range req.Enrollments {
		course.Enrollments = append(course.Enrollments, models.Enrollment{StudentID: e.StudentID, Grade: e.Grade, Notes: e.Notes})
	}

	courses := []models.Course{course}
	if err := s.courses.SaveAll(ctx, courses); err != nil {
		return nil, appErrors.Storage(err, "failed to create course")
	}
	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", courses[0].ID), zap.Int("enrollments", len(courses[0].Enrollments)))
	return &courses[0], nil
}

func (s *CourseService) ensureStudentsExist(ctx context.Context, enrollments []CreateEnrollmentRequest) error {
	if len(enrollments) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(enrollments))
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.StudentID]; ok {
			continue
		}
		seen[e.StudentID] = struct{}{}
		ids = append(ids, e.StudentID)
	}

	found, err := s.students.ExistingIDs(ctx, ids)
	if err != nil {
		return appErrors.Storage(err, "failed to check students")
	}
	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown students: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// DeleteCourse removes a course; its enrollments are removed with it.
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	deleted, err := s.courses.Delete(ctx, id)
	if err != nil {
		return appErrors.Storage(err, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	s.invalidate(ctx)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// DeleteStudent removes a student; its enrollments are removed with it.
func (s *CourseService) DeleteStudent(ctx context.Context, id string) error {
	deleted, err := s.students.Delete(ctx, id)
	if err != nil {
		return appErrors.Storage(err, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.invalidate(ctx)
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// CourseExists reports whether the course is stored.
func (s *CourseService) CourseExists(ctx context.Context, id string) (bool, error) {
	exists, err := s.courses.Exists(ctx, id)
	if err != nil {
		return false, appErrors.Storage(err, "failed to check course")
	}
	return exists, nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, StudentCachePattern); err != nil {
		s.logger.Warn("student cache not invalidated", zap.Error(err))
	}
}
