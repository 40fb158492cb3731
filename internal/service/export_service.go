package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-query-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-query-api/pkg/errors"
	"github.com/noah-isme/enrollment-query-api/pkg/export"
)

type studentFinder interface {
	Find(ctx context.Context, strategy Strategy, filter *models.StudentFilter) (*QueryResult, error)
}

type enrollmentCountSource interface {
	CountByStudent(ctx context.Context) (map[string]int, error)
}

var exportHeaders = []string{"ID", "Name", "Age", "Email", "Enrollments"}

// ExportFile is a rendered export ready to be served as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
	Strategy    Strategy
}

// ExportService renders filter results as CSV or PDF documents.
type ExportService struct {
	finder    studentFinder
	counts    enrollmentCountSource
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(finder studentFinder, counts enrollmentCountSource, csv, pdf export.Renderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(3, 2.5, 0.8, 3, 1.2)
	}
	return &ExportService{
		finder:    finder,
		counts:    counts,
		renderers: map[export.Format]export.Renderer{export.FormatCSV: csv, export.FormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// Export runs the filter and renders the matching students with their enrollment counts.
func (s *ExportService) Export(ctx context.Context, format export.Format, strategy Strategy, filter *models.StudentFilter) (*ExportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	result, err := s.finder.Find(ctx, strategy, filter)
	if err != nil {
		return nil, err
	}
	counts, err := s.counts.CountByStudent(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count enrollments")
	}

	generatedAt := s.now().UTC()
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Students (%s) %s", result.Strategy, generatedAt.Format(time.RFC3339)),
		Headers: exportHeaders,
		Rows:    make([][]string, 0, len(result.Students)),
	}
	for _, st := range result.Students {
		dataset.Rows = append(dataset.Rows, []string{
			st.ID,
			st.Name,
			strconv.Itoa(st.Age),
			st.Email,
			strconv.Itoa(counts[st.ID]),
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Debug("students exported",
		zap.String("format", string(format)),
		zap.String("strategy", string(result.Strategy)),
		zap.Int("rows", len(dataset.Rows)))

	return &ExportFile{
		Filename:    fmt.Sprintf("students_%s_%s.%s", result.Strategy, generatedAt.Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
		Strategy:    result.Strategy,
	}, nil
}
