package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
)

// studentStore is the storage collaborator consumed by the query composer.
type studentStore interface {
	FindAll(ctx context.Context) ([]models.Student, error)
	FindWithEnrollments(ctx context.Context) ([]models.Student, error)
	FindByNameContainingIgnoreCase(ctx context.Context, name string) ([]models.Student, error)
	FindByEmailContainingIgnoreCase(ctx context.Context, email string) ([]models.Student, error)
	FindByAgeGreaterThan(ctx context.Context, age int) ([]models.Student, error)
	FindByAgeLessThan(ctx context.Context, age int) ([]models.Student, error)
	FindByEnrollmentsCourseNameContainingIgnoreCase(ctx context.Context, courseName string) ([]models.Student, error)
	FindByEnrollmentsGrade(ctx context.Context, grade models.Grade) ([]models.Student, error)
	FindByEnrollmentsCourseNameAndGrade(ctx context.Context, courseName string, grade models.Grade) ([]models.Student, error)
	FindByEnrollmentsSizeBetween(ctx context.Context, min, max int) ([]models.Student, error)
}

// Strategy selects how a filter is composed into a result set.
type Strategy string

const (
	// StrategyIntersection intersects one narrowing lookup per criterion. Enrollment
	// count bounds only apply when both are set.
	StrategyIntersection Strategy = "intersection"
	// StrategyChained fetches students eagerly and applies criteria in memory. Each
	// enrollment count bound applies on its own.
	StrategyChained Strategy = "chained"
)

// ParseStrategy maps user input onto a Strategy; empty input yields fallback.
func ParseStrategy(raw string, fallback Strategy) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return fallback, nil
	case StrategyIntersection, StrategyChained:
		return s, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown filter strategy %q", raw))
	}
}

// Open bounds used when a single enrollment count bound is served by the range lookup.
const (
	openLowerCount = -1
	openUpperCount = math.MaxInt32
)

type lookupFunc func(ctx context.Context, store studentStore, f models.StudentFilter) ([]models.Student, error)

// narrowingStep pairs a criterion with the storage lookup that serves it.
type narrowingStep struct {
	name    string
	present func(f models.StudentFilter) bool
	lookup  lookupFunc
}

// chainStep pairs a criterion with its in-memory predicate over an eagerly loaded student.
type chainStep struct {
	name    string
	present func(f models.StudentFilter) bool
	keep    func(f models.StudentFilter, s models.Student) bool
}

func hasName(f models.StudentFilter) bool { return f.Name != nil }
func hasEmail(f models.StudentFilter) bool { return f.Email != nil }
func hasAgeGreater(f models.StudentFilter) bool { return f.AgeGreaterThan != nil }
func hasAgeLess(f models.StudentFilter) bool { return f.AgeLessThan != nil }
func hasCountGreater(f models.StudentFilter) bool { return f.EnrollmentsCountGreaterThan != nil }
func hasCountLess(f models.StudentFilter) bool { return f.EnrollmentsCountLessThan != nil }
func hasCountRange(f models.StudentFilter) bool { return hasCountGreater(f) && hasCountLess(f) }
func hasCourseAndGrade(f models.StudentFilter) bool { return f.CourseName != nil && f.CourseGrade != nil }
func hasCourseOnly(f models.StudentFilter) bool { return f.CourseName != nil && f.CourseGrade == nil }
func hasGradeOnly(f models.StudentFilter) bool { return f.CourseName == nil && f.CourseGrade != nil }

var (
	byName = narrowingStep{"name", hasName, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByNameContainingIgnoreCase(ctx, *f.Name)
	}}
	byEmail = narrowingStep{"email", hasEmail, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEmailContainingIgnoreCase(ctx, *f.Email)
	}}
	byAgeGreater = narrowingStep{"age_greater_than", hasAgeGreater, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByAgeGreaterThan(ctx, *f.AgeGreaterThan)
	}}
	byAgeLess = narrowingStep{"age_less_than", hasAgeLess, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByAgeLessThan(ctx, *f.AgeLessThan)
	}}
	byCourseAndGrade = narrowingStep{"course_name_and_grade", hasCourseAndGrade, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsCourseNameAndGrade(ctx, *f.CourseName, *f.CourseGrade)
	}}
	byCourse = narrowingStep{"course_name", hasCourseOnly, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsCourseNameContainingIgnoreCase(ctx, *f.CourseName)
	}}
	byGrade = narrowingStep{"course_grade", hasGradeOnly, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsGrade(ctx, *f.CourseGrade)
	}}
	byCountRange = narrowingStep{"enrollments_count_between", hasCountRange, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsSizeBetween(ctx, *f.EnrollmentsCountGreaterThan, *f.EnrollmentsCountLessThan)
	}}
	byCountGreater = narrowingStep{"enrollments_count_greater_than", hasCountGreater, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsSizeBetween(ctx, *f.EnrollmentsCountGreaterThan, openUpperCount)
	}}
	byCountLess = narrowingStep{"enrollments_count_less_than", hasCountLess, func(ctx context.Context, st studentStore, f models.StudentFilter) ([]models.Student, error) {
		return st.FindByEnrollmentsSizeBetween(ctx, openLowerCount, *f.EnrollmentsCountLessThan)
	}}
)

// intersectionSteps is the criterion order of the intersection strategy. The three
// course steps are mutually exclusive.
var intersectionSteps = []narrowingStep{
	byName,
	byEmail,
	byAgeGreater,
	byAgeLess,
	byCourseAndGrade,
	byCourse,
	byGrade,
	byCountRange,
}

// singleCriterionSteps serve a filter with exactly one criterion set.
var singleCriterionSteps = []narrowingStep{
	byName,
	byEmail,
	byAgeGreater,
	byAgeLess,
	byCourse,
	byGrade,
	byCountGreater,
	byCountLess,
}

// chainSteps is the criterion order of the chained strategy.
var chainSteps = []chainStep{
	{"name", hasName, func(f models.StudentFilter, s models.Student) bool {
		return models.ContainsFold(s.Name, *f.Name)
	}},
	{"email", hasEmail, func(f models.StudentFilter, s models.Student) bool {
		return models.ContainsFold(s.Email, *f.Email)
	}},
	{"age_greater_than", hasAgeGreater, func(f models.StudentFilter, s models.Student) bool {
		return s.Age > *f.AgeGreaterThan
	}},
	{"age_less_than", hasAgeLess, func(f models.StudentFilter, s models.Student) bool {
		return s.Age < *f.AgeLessThan
	}},
	{"enrollments_count_greater_than", hasCountGreater, func(f models.StudentFilter, s models.Student) bool {
		return s.EnrollmentCount() > *f.EnrollmentsCountGreaterThan
	}},
	{"enrollments_count_less_than", hasCountLess, func(f models.StudentFilter, s models.Student) bool {
		return s.EnrollmentCount() < *f.EnrollmentsCountLessThan
	}},
	{"course_name_and_grade", hasCourseAndGrade, func(f models.StudentFilter, s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool {
			return models.ContainsFold(e.CourseName(), *f.CourseName) && e.Grade == *f.CourseGrade
		})
	}},
	{"course_name", hasCourseOnly, func(f models.StudentFilter, s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool {
			return models.ContainsFold(e.CourseName(), *f.CourseName)
		})
	}},
	{"course_grade", hasGradeOnly, func(f models.StudentFilter, s models.Student) bool {
		return s.HasEnrollment(func(e models.Enrollment) bool {
			return e.Grade == *f.CourseGrade
		})
	}},
}

// QueryResult is the outcome of a dispatched filter query.
type QueryResult struct {
	Strategy Strategy         `json:"strategy"`
	Students []models.Student `json:"students"`
	CacheHit bool             `json:"-"`
}

// StudentQueryService composes student filters into result sets. It holds no mutable
// state and is safe for concurrent use.
type StudentQueryService struct {
	store           studentStore
	cache           *CacheService
	metrics         *MetricsService
	logger          *zap.Logger
	defaultStrategy Strategy
	cacheTTL        time.Duration
}

// StudentQueryOptions carries optional collaborators of the query service.
type StudentQueryOptions struct {
	Cache           *CacheService
	Metrics         *MetricsService
	Logger          *zap.Logger
	DefaultStrategy Strategy
	CacheTTL        time.Duration
}

// NewStudentQueryService constructs the query service.
func NewStudentQueryService(store studentStore, opts StudentQueryOptions) *StudentQueryService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = StrategyIntersection
	}
	return &StudentQueryService{
		store:           store,
		cache:           opts.Cache,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		defaultStrategy: opts.DefaultStrategy,
		cacheTTL:        opts.CacheTTL,
	}
}

// DefaultStrategy returns the strategy used when callers do not pick one.
func (s *StudentQueryService) DefaultStrategy() Strategy {
	return s.defaultStrategy
}

// Find runs filter with the given strategy, serving from the result cache when enabled.
// An empty strategy selects the default.
func (s *StudentQueryService) Find(ctx context.Context, strategy Strategy, filter *models.StudentFilter) (*QueryResult, error) {
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if strategy != StrategyIntersection && strategy != StrategyChained {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown filter strategy %q", strategy))
	}
	start := time.Now()
	key, keyErr := cacheKey(strategy, filter)

	if keyErr == nil {
		var cached []models.Student
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			s.metrics.ObserveFilter(string(strategy), true, len(cached), time.Since(start))
			return &QueryResult{Strategy: strategy, Students: cached, CacheHit: true}, nil
		}
	}

	var (
		students []models.Student
		err      error
	)
	if strategy == StrategyChained {
		students, err = s.FindAllChained(ctx, filter)
	} else {
		students, err = s.FindAllIntersect(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	if keyErr == nil {
		_ = s.cache.Set(ctx, key, students, s.cacheTTL)
	}
	s.metrics.ObserveFilter(string(strategy), false, len(students), time.Since(start))
	return &QueryResult{Strategy: strategy, Students: students}, nil
}

// FindAllIntersect starts from every student and intersects, in a fixed order, the
// result of one narrowing lookup per present criterion. A nil filter returns every
// student. A single enrollment count bound is ignored.
func (s *StudentQueryService) FindAllIntersect(ctx context.Context, filter *models.StudentFilter) ([]models.Student, error) {
	results, err := s.lookup(ctx, "find_all", func(ctx context.Context) ([]models.Student, error) {
		return s.store.FindAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return results, nil
	}

	applied := 0
	for _, step := range intersectionSteps {
		if !step.present(*filter) {
			continue
		}
		step := step
		narrowed, err := s.lookup(ctx, step.name, func(ctx context.Context) ([]models.Student, error) {
			return step.lookup(ctx, s.store, *filter)
		})
		if err != nil {
			return nil, err
		}
		results = intersect(results, narrowed)
		applied++
	}

	s.logger.Debug("intersection filter applied",
		zap.Int("criteria", filter.PresentCount()),
		zap.Int("lookups", applied),
		zap.Int("results", len(results)))
	return results, nil
}

// FindAllChained serves a single criterion with its narrowing lookup and otherwise
// fetches every student with enrollments and applies the criteria in memory, each
// step filtering the output of the previous one. Nil and empty filters return every
// student.
func (s *StudentQueryService) FindAllChained(ctx context.Context, filter *models.StudentFilter) ([]models.Student, error) {
	if filter == nil || filter.IsEmpty() {
		return s.lookup(ctx, "find_all", func(ctx context.Context) ([]models.Student, error) {
			return s.store.FindAll(ctx)
		})
	}

	if filter.PresentCount() == 1 {
		for _, step := range singleCriterionSteps {
			if !step.present(*filter) {
				continue
			}
			step := step
			return s.lookup(ctx, step.name, func(ctx context.Context) ([]models.Student, error) {
				return step.lookup(ctx, s.store, *filter)
			})
		}
	}

	results, err := s.lookup(ctx, "find_with_enrollments", func(ctx context.Context) ([]models.Student, error) {
		return s.store.FindWithEnrollments(ctx)
	})
	if err != nil {
		return nil, err
	}
	for _, step := range chainSteps {
		if !step.present(*filter) {
			continue
		}
		results = keepMatching(results, func(st models.Student) bool { return step.keep(*filter, st) })
	}

	s.logger.Debug("chained filter applied",
		zap.Int("criteria", filter.PresentCount()),
		zap.Int("results", len(results)))
	return results, nil
}

// lookup times a storage call and wraps its failure as a storage error.
func (s *StudentQueryService) lookup(ctx context.Context, name string, fn func(context.Context) ([]models.Student, error)) ([]models.Student, error) {
	start := time.Now()
	students, err := fn(ctx)
	s.metrics.ObserveLookup(name, time.Since(start))
	if err != nil {
		s.logger.Error("student lookup failed", zap.String("lookup", name), zap.Error(err))
		return nil, appErrors.Storage(err, "failed to query students")
	}
	return students, nil
}

// intersect keeps the students of current whose identity appears in narrowed,
// preserving the order of current.
func intersect(current, narrowed []models.Student) []models.Student {
	ids := make(map[string]struct{}, len(narrowed))
	for _, st := range narrowed {
		ids[st.ID] = struct{}{}
	}
	return keepMatching(current, func(st models.Student) bool {
		_, ok := ids[st.ID]
		return ok
	})
}

func keepMatching(students []models.Student, keep func(models.Student) bool) []models.Student {
	out := make([]models.Student, 0, len(students))
	for _, st := range students {
		if keep(st) {
			out = append(out, st)
		}
	}
	return out
}

func cacheKey(strategy Strategy, filter *models.StudentFilter) (string, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	return "students:" + string(strategy) + ":" + string(raw), nil
}
