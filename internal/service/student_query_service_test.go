package service

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
)

func newQueryService(store studentStore) *StudentQueryService {
	return NewStudentQueryService(store, StudentQueryOptions{})
}

func idsOf(t *testing.T) func([]models.Student, error) []string {
	return func(students []models.Student, err error) []string {
		t.Helper()
		require.NoError(t, err)
		return models.StudentIDs(students)
	}
}

// twoStudentStore holds two students aged 20 and 40 enrolled in one course with
// grades A and B respectively.
func twoStudentStore(t *testing.T) (*memoryStore, []models.Student, models.Course) {
	t.Helper()
	ctx := context.Background()
	store := newMemoryStore()
	students := []models.Student{
		{Name: "Jane Smith 1", Age: 20, Email: "janesmith1@gmail.com"},
		{Name: "Bob Doe 2", Age: 40, Email: "bobdoe2@aol.com"},
	}
	require.NoError(t, store.SaveAll(ctx, students))
	courses := []models.Course{{
		Name:    "Fundamentals of Computer Science",
		Credits: 3,
		Enrollments: []models.Enrollment{
			{StudentID: students[0].ID, Grade: models.GradeA, Notes: "some notes"},
			{StudentID: students[1].ID, Grade: models.GradeB, Notes: "some notes"},
		},
	}}
	require.NoError(t, memoryCourses{store}.SaveAll(ctx, courses))
	store.calls = nil
	return store, students, courses[0]
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("", StrategyChained)
	require.NoError(t, err)
	assert.Equal(t, StrategyChained, s)

	s, err = ParseStrategy(" Intersection ", StrategyChained)
	require.NoError(t, err)
	assert.Equal(t, StrategyIntersection, s)

	_, err = ParseStrategy("union", StrategyChained)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestFindWithoutCriteriaReturnsEveryStudent(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 7, 40)
	svc := newQueryService(store)
	ctx := context.Background()
	all := ids(store.FindAll(ctx))
	require.Len(t, all, 40)

	for _, filter := range []*models.StudentFilter{nil, {}} {
		assert.Equal(t, all, ids(svc.FindAllIntersect(ctx, filter)))
		assert.Equal(t, all, ids(svc.FindAllChained(ctx, filter)))
	}
}

func TestSingleCriterionMatchesDirectLookup(t *testing.T) {
	store := seededStore(t, 11, 60)
	svc := newQueryService(store)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter models.StudentFilter
		direct func() ([]models.Student, error)
	}{
		{"name", models.StudentFilter{Name: models.StringPtr("doe")}, func() ([]models.Student, error) {
			return store.FindByNameContainingIgnoreCase(ctx, "doe")
		}},
		{"email", models.StudentFilter{Email: models.StringPtr("GMAIL")}, func() ([]models.Student, error) {
			return store.FindByEmailContainingIgnoreCase(ctx, "GMAIL")
		}},
		{"age greater than", models.StudentFilter{AgeGreaterThan: models.IntPtr(30)}, func() ([]models.Student, error) {
			return store.FindByAgeGreaterThan(ctx, 30)
		}},
		{"age less than", models.StudentFilter{AgeLessThan: models.IntPtr(25)}, func() ([]models.Student, error) {
			return store.FindByAgeLessThan(ctx, 25)
		}},
		{"course name", models.StudentFilter{CourseName: models.StringPtr("economics")}, func() ([]models.Student, error) {
			return store.FindByEnrollmentsCourseNameContainingIgnoreCase(ctx, "economics")
		}},
		{"course grade", models.StudentFilter{CourseGrade: models.GradePtr(models.GradeD)}, func() ([]models.Student, error) {
			return store.FindByEnrollmentsGrade(ctx, models.GradeD)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := idsOf(t)
			filter := tc.filter
			direct := ids(tc.direct())
			intersected := ids(svc.FindAllIntersect(ctx, &filter))

			store.calls = nil
			chained := ids(svc.FindAllChained(ctx, &filter))
			assert.Len(t, store.calls, 1, "a single criterion is served by one lookup")
			assert.NotContains(t, store.calls, "FindWithEnrollments")

			assert.Equal(t, direct, chained)
			assert.Equal(t, direct, intersected)
		})
	}
}

func TestSingleCountBoundUsesOpenEndedRangeInChainedStrategy(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 13, 50)
	svc := newQueryService(store)
	ctx := context.Background()

	greater := ids(svc.FindAllChained(ctx, &models.StudentFilter{EnrollmentsCountGreaterThan: models.IntPtr(4)}))
	assert.Equal(t, ids(store.FindByEnrollmentsSizeBetween(ctx, 4, openUpperCount)), greater)

	less := ids(svc.FindAllChained(ctx, &models.StudentFilter{EnrollmentsCountLessThan: models.IntPtr(5)}))
	assert.Equal(t, ids(store.FindByEnrollmentsSizeBetween(ctx, openLowerCount, 5)), less)
}

// randomCriterion sets one filter dimension to a random value. The course name and
// grade share one dimension since they must match the same enrollment, and both count
// bounds form one range.
type randomCriterion func(rng *rand.Rand, f *models.StudentFilter)

var randomCriteria = []randomCriterion{
	func(rng *rand.Rand, f *models.StudentFilter) {
		f.Name = models.StringPtr([]string{"doe", "JANE", "bob", "1", "white"}[rng.Intn(5)])
	},
	func(rng *rand.Rand, f *models.StudentFilter) {
		f.Email = models.StringPtr([]string{"gmail", "aol", "Proton", "2@", ".com"}[rng.Intn(5)])
	},
	func(rng *rand.Rand, f *models.StudentFilter) {
		f.AgeGreaterThan = models.IntPtr(seedMinAge + rng.Intn(seedAgeRange))
	},
	func(rng *rand.Rand, f *models.StudentFilter) {
		f.AgeLessThan = models.IntPtr(seedMinAge + rng.Intn(seedAgeRange))
	},
	func(rng *rand.Rand, f *models.StudentFilter) {
		grades := models.Grades()
		switch rng.Intn(3) {
		case 0:
			f.CourseName = models.StringPtr([]string{"intro", "Advanced", "economics", "physics"}[rng.Intn(4)])
		case 1:
			f.CourseGrade = models.GradePtr(grades[rng.Intn(len(grades))])
		default:
			f.CourseName = models.StringPtr([]string{"intro", "Advanced", "economics", "physics"}[rng.Intn(4)])
			f.CourseGrade = models.GradePtr(grades[rng.Intn(len(grades))])
		}
	},
	func(rng *rand.Rand, f *models.StudentFilter) {
		low := rng.Intn(5)
		f.EnrollmentsCountGreaterThan = models.IntPtr(low)
		f.EnrollmentsCountLessThan = models.IntPtr(low + 1 + rng.Intn(6))
	},
}

func TestCombinedCriteriaEqualIntersectionOfSingleCriteria(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 42, 99)
	svc := newQueryService(store)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2024))

	for i := 0; i < 300; i++ {
		perm := rng.Perm(len(randomCriteria))
		var first, second, combined models.StudentFilter
		randomCriteria[perm[0]](rng, &first)
		randomCriteria[perm[1]](rng, &second)
		combined = first
		mergeFilter(&combined, second)

		left, err := svc.FindAllIntersect(ctx, &first)
		require.NoError(t, err)
		right, err := svc.FindAllIntersect(ctx, &second)
		require.NoError(t, err)
		want := models.StudentIDs(intersect(left, right))

		assert.Equal(t, want, ids(svc.FindAllIntersect(ctx, &combined)), "intersection of %+v", combined)
		assert.Equal(t, want, ids(svc.FindAllChained(ctx, &combined)), "chained %+v", combined)
	}
}

func mergeFilter(dst *models.StudentFilter, src models.StudentFilter) {
	if src.Name != nil {
		dst.Name = src.Name
	}
	if src.Email != nil {
		dst.Email = src.Email
	}
	if src.AgeGreaterThan != nil {
		dst.AgeGreaterThan = src.AgeGreaterThan
	}
	if src.AgeLessThan != nil {
		dst.AgeLessThan = src.AgeLessThan
	}
	if src.EnrollmentsCountGreaterThan != nil {
		dst.EnrollmentsCountGreaterThan = src.EnrollmentsCountGreaterThan
	}
	if src.EnrollmentsCountLessThan != nil {
		dst.EnrollmentsCountLessThan = src.EnrollmentsCountLessThan
	}
	if src.CourseName != nil {
		dst.CourseName = src.CourseName
	}
	if src.CourseGrade != nil {
		dst.CourseGrade = src.CourseGrade
	}
}

func TestNameFilterIgnoresCase(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.SaveAll(context.Background(), []models.Student{
		{Name: "Jane Smith 42", Age: 30, Email: "janesmith42@zoho.com"},
		{Name: "Bob White 43", Age: 30, Email: "bobwhite43@zoho.com"},
	}))
	svc := newQueryService(store)
	filter := &models.StudentFilter{Name: models.StringPtr("jane")}

	for _, find := range []func(context.Context, *models.StudentFilter) ([]models.Student, error){svc.FindAllIntersect, svc.FindAllChained} {
		students, err := find(context.Background(), filter)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "Jane Smith 42", students[0].Name)
	}
}

func TestLoneCountBoundDivergesBetweenStrategies(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 5, 99)
	ctx := context.Background()
	unenrolled := []models.Student{{Name: "Bob Doe 100", Age: 19, Email: "bobdoe100@zoho.com"}}
	require.NoError(t, store.SaveAll(ctx, unenrolled))
	svc := newQueryService(store)
	filter := &models.StudentFilter{EnrollmentsCountGreaterThan: models.IntPtr(3)}

	all := ids(store.FindAll(ctx))
	intersected := ids(svc.FindAllIntersect(ctx, filter))
	assert.Equal(t, all, intersected, "intersection ignores a lone count bound")

	chained, err := svc.FindAllChained(ctx, filter)
	require.NoError(t, err)
	loaded := store.loaded()
	counts := make(map[string]int, len(loaded))
	for _, st := range loaded {
		counts[st.ID] = st.EnrollmentCount()
	}
	for _, st := range chained {
		assert.Greater(t, counts[st.ID], 3)
	}

	assert.Contains(t, intersected, unenrolled[0].ID)
	assert.NotContains(t, models.StudentIDs(chained), unenrolled[0].ID)
	assert.Less(t, len(chained), len(intersected))
}

func TestTwoStudentScenario(t *testing.T) {
	store, students, _ := twoStudentStore(t)
	svc := newQueryService(store)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter models.StudentFilter
		want   []string
	}{
		{"grade A", models.StudentFilter{CourseGrade: models.GradePtr(models.GradeA)}, []string{students[0].ID}},
		{"older than 25", models.StudentFilter{AgeGreaterThan: models.IntPtr(25)}, []string{students[1].ID}},
		{"older than 25 with grade A", models.StudentFilter{AgeGreaterThan: models.IntPtr(25), CourseGrade: models.GradePtr(models.GradeA)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := idsOf(t)
			filter := tc.filter
			assert.Equal(t, tc.want, ids(svc.FindAllIntersect(ctx, &filter)))
			assert.Equal(t, tc.want, ids(svc.FindAllChained(ctx, &filter)))
		})
	}
}

func TestCourseDeletionIsReflectedByCountFilters(t *testing.T) {
	ids := idsOf(t)
	ctx := context.Background()
	store := newMemoryStore()
	students := []models.Student{{Name: "Alice Brown 1", Age: 22, Email: "alicebrown1@icloud.com"}}
	require.NoError(t, store.SaveAll(ctx, students))
	courses := []models.Course{
		{Name: "Advanced Maths", Credits: 6, Enrollments: []models.Enrollment{{StudentID: students[0].ID, Grade: models.GradeC}}},
		{Name: "Topics in Philosophy", Credits: 5, Enrollments: []models.Enrollment{{StudentID: students[0].ID, Grade: models.GradeB}}},
	}
	require.NoError(t, memoryCourses{store}.SaveAll(ctx, courses))
	svc := newQueryService(store)

	moreThanOne := &models.StudentFilter{EnrollmentsCountGreaterThan: models.IntPtr(1)}
	exactlyOne := &models.StudentFilter{EnrollmentsCountGreaterThan: models.IntPtr(0), EnrollmentsCountLessThan: models.IntPtr(2)}

	assert.Equal(t, []string{students[0].ID}, ids(svc.FindAllChained(ctx, moreThanOne)))
	assert.Empty(t, ids(svc.FindAllIntersect(ctx, exactlyOne)))

	deleted, err := memoryCourses{store}.Delete(ctx, courses[0].ID)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.Empty(t, ids(svc.FindAllChained(ctx, moreThanOne)))
	assert.Equal(t, []string{students[0].ID}, ids(svc.FindAllIntersect(ctx, exactlyOne)))
	assert.Equal(t, []string{students[0].ID}, ids(svc.FindAllChained(ctx, exactlyOne)))
}

func TestChainedStrategyMatchesCourseAndGradeOnSameEnrollment(t *testing.T) {
	ids := idsOf(t)
	ctx := context.Background()
	store := newMemoryStore()
	students := []models.Student{{Name: "Charlie Black 1", Age: 33, Email: "charlieblack1@yahoo.com"}}
	require.NoError(t, store.SaveAll(ctx, students))
	require.NoError(t, memoryCourses{store}.SaveAll(ctx, []models.Course{
		{Name: "Advanced Physics", Credits: 2, Enrollments: []models.Enrollment{{StudentID: students[0].ID, Grade: models.GradeA}}},
		{Name: "Intro to Chemistry", Credits: 1, Enrollments: []models.Enrollment{{StudentID: students[0].ID, Grade: models.GradeF}}},
	}))
	svc := newQueryService(store)

	miss := &models.StudentFilter{CourseName: models.StringPtr("physics"), CourseGrade: models.GradePtr(models.GradeF)}
	hit := &models.StudentFilter{CourseName: models.StringPtr("PHYSICS"), CourseGrade: models.GradePtr(models.GradeA)}

	assert.Empty(t, ids(svc.FindAllIntersect(ctx, miss)))
	assert.Empty(t, ids(svc.FindAllChained(ctx, miss)))
	assert.Len(t, ids(svc.FindAllIntersect(ctx, hit)), 1)
	assert.Len(t, ids(svc.FindAllChained(ctx, hit)), 1)
}

func TestIntersectionIssuesOneLookupPerPresentStep(t *testing.T) {
	store, _, _ := twoStudentStore(t)
	svc := newQueryService(store)

	_, err := svc.FindAllIntersect(context.Background(), &models.StudentFilter{
		Name:                     models.StringPtr("a"),
		AgeLessThan:              models.IntPtr(50),
		CourseName:               models.StringPtr("science"),
		EnrollmentsCountLessThan: models.IntPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FindAll",
		"FindByNameContainingIgnoreCase",
		"FindByAgeLessThan",
		"FindByEnrollmentsCourseNameContainingIgnoreCase",
	}, store.calls)
}

func TestChainedStrategyFetchesOnceForSeveralCriteria(t *testing.T) {
	store, students, _ := twoStudentStore(t)
	svc := newQueryService(store)

	result, err := svc.FindAllChained(context.Background(), &models.StudentFilter{
		Email:                    models.StringPtr("@AOL"),
		EnrollmentsCountLessThan: models.IntPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"FindWithEnrollments"}, store.calls)
	assert.Equal(t, []string{students[1].ID}, models.StudentIDs(result))
}

func TestCrossingAgeBoundsYieldEmptyResult(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 3, 30)
	svc := newQueryService(store)
	filter := &models.StudentFilter{AgeGreaterThan: models.IntPtr(40), AgeLessThan: models.IntPtr(20)}

	assert.Empty(t, ids(svc.FindAllIntersect(context.Background(), filter)))
	assert.Empty(t, ids(svc.FindAllChained(context.Background(), filter)))
}

func TestAgeBoundsBeyondColumnRangeAgree(t *testing.T) {
	ids := idsOf(t)
	store := seededStore(t, 5, 30)
	svc := newQueryService(store)
	ctx := context.Background()

	tooOld := &models.StudentFilter{AgeGreaterThan: models.IntPtr(9999999999), Name: models.StringPtr("doe")}
	assert.Empty(t, ids(svc.FindAllIntersect(ctx, tooOld)))
	assert.Empty(t, ids(svc.FindAllChained(ctx, tooOld)))

	anyAge := &models.StudentFilter{AgeLessThan: models.IntPtr(9999999999), Name: models.StringPtr("doe")}
	want := ids(store.FindByNameContainingIgnoreCase(ctx, "doe"))
	assert.Equal(t, want, ids(svc.FindAllIntersect(ctx, anyAge)))
	assert.Equal(t, want, ids(svc.FindAllChained(ctx, anyAge)))
}

func TestStorageFailureIsWrapped(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	svc := newQueryService(store)

	_, err := svc.FindAllIntersect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.err))
	assert.True(t, errors.Is(err, appErrors.ErrStorageUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, appErrors.FromError(err).Status)

	_, err = svc.FindAllChained(context.Background(), &models.StudentFilter{Name: models.StringPtr("x"), Email: models.StringPtr("y")})
	assert.True(t, errors.Is(err, appErrors.ErrStorageUnavailable))
}

func TestFindUsesDefaultStrategyAndCache(t *testing.T) {
	store, students, _ := twoStudentStore(t)
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	metrics := NewMetricsService()
	svc := NewStudentQueryService(store, StudentQueryOptions{
		Cache:           cache,
		Metrics:         metrics,
		DefaultStrategy: StrategyChained,
	})
	ctx := context.Background()
	filter := &models.StudentFilter{AgeGreaterThan: models.IntPtr(25)}

	first, err := svc.Find(ctx, "", filter)
	require.NoError(t, err)
	assert.Equal(t, StrategyChained, first.Strategy)
	assert.False(t, first.CacheHit)
	assert.Equal(t, []string{students[1].ID}, models.StudentIDs(first.Students))
	assert.Contains(t, repo.entries, `students:chained:{"ageGreaterThan":25}`)

	calls := len(store.calls)
	second, err := svc.Find(ctx, StrategyChained, filter)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, models.StudentIDs(first.Students), models.StudentIDs(second.Students))
	assert.Len(t, store.calls, calls)

	third, err := svc.Find(ctx, StrategyIntersection, filter)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "student_filter_duration_seconds")
	assert.Contains(t, names, "student_lookup_duration_seconds")
}

func TestFindFallsBackToStorageWhenCacheFails(t *testing.T) {
	store, _, _ := twoStudentStore(t)
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis down")
	svc := NewStudentQueryService(store, StudentQueryOptions{Cache: NewCacheService(repo, nil, 0, nil, true)})

	result, err := svc.Find(context.Background(), StrategyIntersection, nil)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Len(t, result.Students, 2)
}

func TestFindRejectsUnknownStrategy(t *testing.T) {
	store, _, _ := twoStudentStore(t)
	_, err := newQueryService(store).Find(context.Background(), Strategy("union"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.calls)
}
