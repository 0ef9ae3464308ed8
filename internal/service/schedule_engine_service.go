package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ScheduleEngineService runs detection, resolution and analysis over caller-supplied schedules.
type ScheduleEngineService struct {
	resolver *ConflictResolver
	metrics  conflictCounter
}

type conflictCounter interface {
	RecordConflicts(conflicts []models.Conflict)
}

// NewScheduleEngineService constructs the stateless engine.
func NewScheduleEngineService(validate *validator.Validate, metrics conflictCounter) *ScheduleEngineService {
	return &ScheduleEngineService{resolver: NewConflictResolver(validate), metrics: metrics}
}

// Detect lists the conflicts of the schedule.
func (s *ScheduleEngineService) Detect(req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error) {
	if err := checkSchedule(req.Schedule); err != nil {
		return nil, err
	}
	conflicts := DetectConflicts(req.Schedule)
	if s.metrics != nil {
		s.metrics.RecordConflicts(conflicts)
	}
	return &dto.DetectConflictsResponse{Conflicts: conflicts, Count: len(conflicts)}, nil
}

// Resolve applies one resolution and re-detects.
func (s *ScheduleEngineService) Resolve(req dto.ResolveScheduleRequest) (*ResolutionResult, error) {
	if err := checkSchedule(req.Schedule); err != nil {
		return nil, err
	}
	return s.resolver.Resolve(req.Schedule, req.Conflict, req.Resolution)
}

// Analyze reports utilization and imbalances. Without teacherIds the analysis uses the teachers
// present in the schedule; an omitted teacherCount defaults to the length of that list.
func (s *ScheduleEngineService) Analyze(req dto.AnalyzeUtilizationRequest) (*dto.UtilizationResponse, error) {
	if err := checkSchedule(req.Schedule); err != nil {
		return nil, err
	}
	if req.TeacherCount != nil && *req.TeacherCount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherCount must not be negative")
	}
	teachers := cleanIDs(req.TeacherIDs)
	if len(teachers) == 0 {
		teachers = scheduledTeachers(req.Schedule)
	}
	count := len(teachers)
	if req.TeacherCount != nil {
		count = *req.TeacherCount
	}
	return &dto.UtilizationResponse{
		UtilizationReport: AnalyzeUtilization(req.Schedule, count),
		Imbalances:        DetectImbalances(req.Schedule, teachers),
	}, nil
}

func checkSchedule(schedule models.Schedule) error {
	if schedule == nil {
		return appErrors.Clone(appErrors.ErrValidation, "schedule is required")
	}
	if err := schedule.Validate(); err != nil {
		return scheduleError(err, appErrors.ErrValidation, "invalid schedule")
	}
	return nil
}
