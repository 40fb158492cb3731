package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	"github.com/noah-isme/enrollment-query-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
	"github.com/noah-isme/enrollment-query-api/pkg/response"
)

type courseAdmin interface {
	CreateCourse(ctx context.Context, req service.CreateCourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	CourseExists(ctx context.Context, id string) (bool, error)
}

// CourseHandler exposes course administration endpoints.
type CourseHandler struct {
	courses courseAdmin
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseAdmin) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Create godoc
// @Summary Create course
// @Description Creates a course together with the enrollments it owns.
// @Tags Courses
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Exists godoc
// @Summary Check course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 200
// @Failure 404
// @Router /courses/{id} [head]
func (h *CourseHandler) Exists(c *gin.Context) {
	exists, err := h.courses.CourseExists(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// Delete godoc
// @Summary Delete course
// @Description Removes the course and its enrollments.
// @Tags Courses
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.DeleteCourse(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
