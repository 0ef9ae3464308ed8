package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleEngine interface {
	Detect(req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error)
	Resolve(req dto.ResolveScheduleRequest) (*service.ResolutionResult, error)
	Analyze(req dto.AnalyzeUtilizationRequest) (*dto.UtilizationResponse, error)
}

// ScheduleEngineHandler exposes the stateless schedule engine.
type ScheduleEngineHandler struct {
	engine scheduleEngine
}

// NewScheduleEngineHandler constructs the handler.
func NewScheduleEngineHandler(engine *service.ScheduleEngineService) *ScheduleEngineHandler {
	return &ScheduleEngineHandler{engine: engine}
}

// DetectConflicts godoc
// @Summary Detect conflicts in a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.DetectConflictsRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts [post]
func (h *ScheduleEngineHandler) DetectConflicts(c *gin.Context) {
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	result, err := h.engine.Detect(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Resolve godoc
// @Summary Apply a resolution to a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ResolveScheduleRequest true "Schedule, conflict and resolution"
// @Success 200 {object} response.Envelope
// @Router /schedules/resolve [post]
func (h *ScheduleEngineHandler) Resolve(c *gin.Context) {
	var req dto.ResolveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolve payload"))
		return
	}
	result, err := h.engine.Resolve(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Utilization godoc
// @Summary Analyze utilization of a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.AnalyzeUtilizationRequest true "Schedule and teacher count"
// @Success 200 {object} response.Envelope
// @Router /schedules/utilization [post]
func (h *ScheduleEngineHandler) Utilization(c *gin.Context) {
	var req dto.AnalyzeUtilizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid utilization payload"))
		return
	}
	result, err := h.engine.Analyze(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
