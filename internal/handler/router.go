package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-query-api/internal/middleware"
	"github.com/noah-isme/enrollment-query-api/internal/models"
)

// Handlers groups the route handlers mounted by RegisterRoutes.
type Handlers struct {
	Students *StudentHandler
	Courses  *CourseHandler
	Metrics  *MetricsHandler
	AuditLog *zap.Logger
}

// RegisterRoutes mounts the API under prefix. Mutations require an ADMIN token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, tokens middleware.TokenValidator) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.GET("/students", h.Students.List)
	api.GET("/students/export", h.Students.Export)
	api.HEAD("/courses/:id", h.Courses.Exists)

	admin := api.Group("", middleware.JWT(tokens), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/courses", middleware.Audit(h.AuditLog, "CREATE", "course"), h.Courses.Create)
	admin.DELETE("/courses/:id", middleware.Audit(h.AuditLog, "DELETE", "course"), h.Courses.Delete)
	admin.DELETE("/students/:id", middleware.Audit(h.AuditLog, "DELETE", "student"), h.Students.Delete)
}
