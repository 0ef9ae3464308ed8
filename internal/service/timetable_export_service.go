package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportHeaders = []string{"day", "period", "subject", "teacher", "room", "studentGroup"}

type timetableLoader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered timetable document.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TimetableExportService renders stored timetables as documents.
type TimetableExportService struct {
	repo   timetableLoader
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewTimetableExportService constructs the export service.
func NewTimetableExportService(repo timetableLoader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *TimetableExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableExportService{repo: repo, csv: csv, pdf: pdf, logger: logger}
}

// Export renders one row per placement in day, period order.
func (s *TimetableExportService) Export(ctx context.Context, id, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format").WithDetail("format", format)
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "timetable not found", "failed to load timetable")
	}
	schedule, err := decodeSchedule(record.Schedule)
	if err != nil {
		return nil, err
	}

	table := ScheduleTable(schedule)
	base := fmt.Sprintf("timetable_%s_s%d_%s_v%d", sanitizeFilePart(record.DepartmentID), record.Semester, sanitizeFilePart(record.Section), record.Version)

	var file ExportFile
	switch format {
	case ExportFormatPDF:
		title := fmt.Sprintf("Timetable %s %s", record.DepartmentID, record.Section)
		subtitle := fmt.Sprintf("Semester %d, %s, version %d (%s)", record.Semester, record.AcademicYear, record.Version, record.Status)
		content, err := s.pdf.Render(table, title, subtitle)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		file = ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}
	default:
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		file = ExportFile{Filename: base + ".csv", ContentType: "text/csv", Content: content}
	}

	s.logger.Info("timetable exported",
		zap.String("timetable_id", record.ID),
		zap.String("format", format),
		zap.Int("rows", len(table.Rows)),
	)
	return &file, nil
}

// ScheduleTable flattens a schedule into export rows.
func ScheduleTable(schedule models.Schedule) export.Table {
	rows := make([][]string, 0, schedule.AssignmentCount())
	schedule.Each(func(day models.Weekday, period int, a models.Assignment) {
		rows = append(rows, []string{string(day), strconv.Itoa(period), a.Subject, a.Teacher, a.Room, a.StudentGroup})
	})
	return export.Table{Headers: exportHeaders, Rows: rows}
}

func sanitizeFilePart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "na"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, value)
}
