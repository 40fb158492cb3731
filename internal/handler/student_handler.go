package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-query-api/internal/middleware"
	"github.com/noah-isme/enrollment-query-api/internal/models"
	"github.com/noah-isme/enrollment-query-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
	"github.com/noah-isme/enrollment-query-api/pkg/export"
	"github.com/noah-isme/enrollment-query-api/pkg/response"
)

type studentQuerier interface {
	Find(ctx context.Context, strategy service.Strategy, filter *models.StudentFilter) (*service.QueryResult, error)
	DefaultStrategy() service.Strategy
}

type studentExporter interface {
	Export(ctx context.Context, format export.Format, strategy service.Strategy, filter *models.StudentFilter) (*service.ExportFile, error)
}

type studentRemover interface {
	DeleteStudent(ctx context.Context, id string) error
}

// StudentHandler exposes student filter endpoints.
type StudentHandler struct {
	queries studentQuerier
	exports studentExporter
	admin   studentRemover
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(queries studentQuerier, exports studentExporter, admin studentRemover) *StudentHandler {
	return &StudentHandler{queries: queries, exports: exports, admin: admin}
}

// List godoc
// @Summary Filter students
// @Description Returns the students matching every provided criterion.
// @Tags Students
// @Produce json
// @Param name query string false "Name contains (case-insensitive)"
// @Param email query string false "Email contains (case-insensitive)"
// @Param ageGreaterThan query int false "Age strictly greater than"
// @Param ageLessThan query int false "Age strictly less than"
// @Param enrollmentsCountGreaterThan query int false "Enrollment count strictly greater than"
// @Param enrollmentsCountLessThan query int false "Enrollment count strictly less than"
// @Param courseName query string false "Enrolled in a course whose name contains"
// @Param courseGrade query string false "Holds an enrollment with grade" Enums(A, B, C, D, F)
// @Param strategy query string false "Composition strategy" Enums(intersection, chained)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter, strategy, err := h.parseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.queries.Find(c.Request.Context(), strategy, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Students, map[string]interface{}{
		"strategy":  result.Strategy,
		"count":     len(result.Students),
		"cache_hit": result.CacheHit,
	})
}

// Export godoc
// @Summary Export filtered students
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format" Enums(csv, pdf)
// @Param name query string false "Name contains (case-insensitive)"
// @Param courseGrade query string false "Holds an enrollment with grade"
// @Param strategy query string false "Composition strategy" Enums(intersection, chained)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	filter, strategy, err := h.parseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Export(c.Request.Context(), format, strategy, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Delete godoc
// @Summary Delete student
// @Description Removes the student and its enrollments.
// @Tags Students
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.admin.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *StudentHandler) parseQuery(c *gin.Context) (*models.StudentFilter, service.Strategy, error) {
	strategy, err := service.ParseStrategy(c.Query("strategy"), h.queries.DefaultStrategy())
	if err != nil {
		return nil, "", err
	}
	c.Set(middleware.ContextStrategyKey, string(strategy))
	filter, err := parseStudentFilter(c)
	if err != nil {
		return nil, "", err
	}
	return filter, strategy, nil
}

// parseStudentFilter reads filter criteria from query parameters. Blank parameters
// are treated as absent; substring criteria keep their surrounding whitespace.
func parseStudentFilter(c *gin.Context) (*models.StudentFilter, error) {
	filter := &models.StudentFilter{
		Name:       rawQuery(c, "name"),
		Email:      rawQuery(c, "email"),
		CourseName: rawQuery(c, "courseName"),
	}

	ints := []struct {
		key  string
		dest **int
	}{
		{"ageGreaterThan", &filter.AgeGreaterThan},
		{"ageLessThan", &filter.AgeLessThan},
		{"enrollmentsCountGreaterThan", &filter.EnrollmentsCountGreaterThan},
		{"enrollmentsCountLessThan", &filter.EnrollmentsCountLessThan},
	}
	for _, p := range ints {
		raw := queryString(c, p.key)
		if raw == nil {
			continue
		}
		v, err := strconv.Atoi(*raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be an integer", p.key))
		}
		*p.dest = models.IntPtr(v)
	}

	if raw := queryString(c, "courseGrade"); raw != nil {
		grade, err := models.ParseGrade(*raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "courseGrade must be one of A, B, C, D, F")
		}
		filter.CourseGrade = models.GradePtr(grade)
	}
	return filter, nil
}

// rawQuery returns the parameter untouched, or nil when it is blank.
func rawQuery(c *gin.Context, key string) *string {
	raw := c.Query(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return &raw
}

func queryString(c *gin.Context, key string) *string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	return &raw
}
