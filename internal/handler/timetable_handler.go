package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableWorkflow interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.TimetableResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]dto.TimetableResponse, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.TimetableResponse, error)
	Conflicts(ctx context.Context, id string) ([]models.Conflict, error)
	ResolveConflict(ctx context.Context, id, conflictID string, resolution models.Resolution, actor string) (*dto.ResolveConflictResponse, error)
	Approve(ctx context.Context, id, actor string, markAsCurrent bool) (*dto.TimetableResponse, error)
	Reject(ctx context.Context, id, actor string, req dto.RejectTimetableRequest) (*dto.TimetableResponse, error)
	Publish(ctx context.Context, id string) (*dto.TimetableResponse, error)
	Utilization(ctx context.Context, id string) (*dto.UtilizationResponse, error)
	Delete(ctx context.Context, id string) error
}

type generationJobs interface {
	Submit(req dto.GenerateTimetableRequest, actor string) (*dto.GenerationJobResponse, error)
	Status(jobID string) (*dto.GenerationJobResponse, error)
}

type timetableExporter interface {
	Export(ctx context.Context, id, format string) (*service.ExportFile, error)
}

// TimetableHandler exposes the timetable lifecycle endpoints.
type TimetableHandler struct {
	service  timetableWorkflow
	jobs     generationJobs
	exporter timetableExporter
}

// NewTimetableHandler constructs the handler.
// A nil jobs service disables async generation.
func NewTimetableHandler(svc *service.TimetableService, jobs *service.GenerationJobService, exporter *service.TimetableExportService) *TimetableHandler {
	h := &TimetableHandler{service: svc, exporter: exporter}
	if jobs != nil {
		h.jobs = jobs
	}
	return h
}

// Generate godoc
// @Summary Generate a timetable
// @Description Runs the solver and stores the result as the next draft version. With "async": true the request is queued and a job id is returned.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	actor := actorFromContext(c)
	if req.Async {
		if h.jobs == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrSolverUnavailable, "async generation is disabled"))
			return
		}
		job, err := h.jobs.Submit(req, actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, job)
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// JobStatus godoc
// @Summary Get async generation job status
// @Tags Timetables
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{jobId} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "generation job not found"))
		return
	}
	job, err := h.jobs.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param departmentId query string false "Department ID"
// @Param semester query int false "Semester"
// @Param section query string false "Section"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(items))
	response.JSON(c, http.StatusOK, items, pagination, middleware.Meta(c))
}

// Get godoc
// @Summary Get a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary List stored conflicts, resolved ones included
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.service.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "unresolved", len(models.Unresolved(conflicts)))
	response.JSON(c, http.StatusOK, conflicts, nil, middleware.Meta(c))
}

// ResolveConflict godoc
// @Summary Resolve one conflict of a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param conflictId path string true "Conflict ID"
// @Param payload body dto.ResolveConflictRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/conflicts/{conflictId}/resolve [post]
func (h *TimetableHandler) ResolveConflict(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidResolution.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	result, err := h.service.ResolveConflict(c.Request.Context(), c.Param("id"), c.Param("conflictId"), req.Resolution, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Utilization godoc
// @Summary Utilization report with imbalance flags
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/utilization [get]
func (h *TimetableHandler) Utilization(c *gin.Context) {
	report, err := h.service.Utilization(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, nil, middleware.Meta(c))
}

// Approve godoc
// @Summary Approve a timetable pending approval
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ApproveTimetableRequest false "Approval options"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/approve [post]
func (h *TimetableHandler) Approve(c *gin.Context) {
	var req dto.ApproveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	item, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorFromContext(c), req.MarkAsCurrent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Reject godoc
// @Summary Reject a timetable pending approval
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.RejectTimetableRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/reject [post]
func (h *TimetableHandler) Reject(c *gin.Context) {
	var req dto.RejectTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	item, err := h.service.Reject(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Publish godoc
// @Summary Publish an approved timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	item, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Export godoc
// @Summary Export a timetable
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Content)
}
