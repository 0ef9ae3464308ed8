package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// SubjectInput describes a subject to be placed by the solver.
type SubjectInput struct {
	ID                 string   `json:"id" validate:"required"`
	Name               string   `json:"name"`
	Code               string   `json:"code"`
	HoursPerWeek       int      `json:"hoursPerWeek" validate:"min=0,max=48"`
	IsLab              bool     `json:"isLab"`
	StudentGroup       string   `json:"studentGroup"`
	TeacherPreferences []string `json:"teacherPreferences"`
}

// TeacherInput describes an available teacher.
type TeacherInput struct {
	ID                  string   `json:"id" validate:"required"`
	Name                string   `json:"name"`
	MaxHours            int      `json:"maxHours" validate:"omitempty,min=1,max=48"`
	Qualifications      []string `json:"qualifications"`
	SubjectCompetencies []string `json:"subjectCompetencies"`
}

// PreferenceInput captures a teacher's availability wishes.
type PreferenceInput struct {
	TeacherID            string   `json:"teacherId" validate:"required"`
	PreferredDays        []string `json:"preferredDays"`
	PreferredPeriods     []int    `json:"preferredPeriods" validate:"omitempty,dive,min=1,max=8"`
	UnavailableDays      []string `json:"unavailableDays"`
	UnavailablePeriods   []int    `json:"unavailablePeriods" validate:"omitempty,dive,min=1,max=8"`
	MaxContinuousClasses int      `json:"maxContinuousClasses" validate:"omitempty,min=1,max=8"`
	MinGapBetweenClasses int      `json:"minGapBetweenClasses" validate:"omitempty,min=0,max=8"`
}

// LunchBreakInput is the daily break window in HH:MM.
type LunchBreakInput struct {
	Start string `json:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" validate:"required,datetime=15:04"`
}

// ConstraintsInput overrides the default hard limits. MinClassesPerDay is a pointer so an explicit 0 survives.
type ConstraintsInput struct {
	MaxClassesPerDay     int              `json:"maxClassesPerDay" validate:"omitempty,min=1,max=8"`
	MinClassesPerDay     *int             `json:"minClassesPerDay" validate:"omitempty,min=0,max=8"`
	MaxContinuousClasses int              `json:"maxContinuousClasses" validate:"omitempty,min=1,max=8"`
	LunchBreak           *LunchBreakInput `json:"lunchBreak" validate:"omitempty"`
}

// GenerateRequest is the solver-facing part of a generation request.
type GenerateRequest struct {
	Subjects    []SubjectInput    `json:"subjects" validate:"required,min=1,dive"`
	Teachers    []TeacherInput    `json:"teachers" validate:"required,min=1,dive"`
	Preferences []PreferenceInput `json:"preferences" validate:"omitempty,dive"`
	Constraints *ConstraintsInput `json:"constraints" validate:"omitempty"`
	Algorithm   string            `json:"algorithm" validate:"omitempty,oneof=genetic csp hybrid"`
}

// GenerationStats summarises a generated schedule.
type GenerationStats struct {
	TeacherUtilization   models.TeacherUtilization `json:"teacherUtilization"`
	RoomUtilization      map[string]float64        `json:"roomUtilization"`
	ConstraintsSatisfied bool                      `json:"constraintsSatisfied"`
	TeacherIDs           []string                  `json:"teacherIds,omitempty"`
	Solver               map[string]any            `json:"solver,omitempty"`
}

// GenerationResult is the orchestrator output.
type GenerationResult struct {
	Schedule  models.Schedule        `json:"schedule"`
	Conflicts []models.Conflict      `json:"conflicts"`
	Stats     GenerationStats        `json:"stats"`
	Status    models.TimetableStatus `json:"status"`
	Algorithm string                 `json:"algorithm"`
}

// GenerateTimetableRequest scopes a generation to a department, semester and section.
type GenerateTimetableRequest struct {
	GenerateRequest
	DepartmentID string `json:"departmentId" validate:"required"`
	Semester     int    `json:"semester" validate:"required,min=1,max=12"`
	Section      string `json:"section" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
	Async        bool   `json:"async"`
}

// TimetableQuery filters timetable listings.
type TimetableQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId"`
	Semester     int    `form:"semester" json:"semester" validate:"omitempty,min=1,max=12"`
	Section      string `form:"section" json:"section"`
	Status       string `form:"status" json:"status" validate:"omitempty,oneof=draft pending_approval approved rejected published"`
	Page         int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// TimetableResponse is the API view of a persisted timetable.
type TimetableResponse struct {
	ID              string                 `json:"id"`
	DepartmentID    string                 `json:"departmentId"`
	Semester        int                    `json:"semester"`
	Section         string                 `json:"section"`
	AcademicYear    string                 `json:"academicYear"`
	Version         int                    `json:"version"`
	Status          models.TimetableStatus `json:"status"`
	IsCurrent       bool                   `json:"isCurrent"`
	Algorithm       string                 `json:"algorithm"`
	Schedule        models.Schedule        `json:"schedule"`
	Conflicts       []models.Conflict      `json:"conflicts"`
	Stats           *GenerationStats       `json:"stats,omitempty"`
	GeneratedBy     string                 `json:"generatedBy"`
	ApprovedBy      *string                `json:"approvedBy,omitempty"`
	ApprovedAt      *string                `json:"approvedAt,omitempty"`
	PublishedAt     *string                `json:"publishedAt,omitempty"`
	RejectionReason *string                `json:"rejectionReason,omitempty"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

// ResolveConflictRequest carries the chosen remedy for a stored conflict.
type ResolveConflictRequest struct {
	models.Resolution
}

// ResolveConflictResponse reports the timetable after a resolution.
type ResolveConflictResponse struct {
	ResolvedConflict   models.Conflict        `json:"resolvedConflict"`
	NewConflicts       []models.Conflict      `json:"newConflicts"`
	RemainingConflicts int                    `json:"remainingConflicts"`
	Status             models.TimetableStatus `json:"status"`
}

// ApproveTimetableRequest approves a pending timetable.
type ApproveTimetableRequest struct {
	MarkAsCurrent bool `json:"markAsCurrent"`
}

// RejectTimetableRequest rejects a pending timetable.
type RejectTimetableRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// UtilizationResponse combines the utilization report with imbalance flags.
type UtilizationResponse struct {
	models.UtilizationReport
	Imbalances models.ImbalanceReport `json:"imbalances"`
	Cached     bool                   `json:"-"`
}

// DetectConflictsRequest runs the detector over an ad-hoc schedule.
type DetectConflictsRequest struct {
	Schedule models.Schedule `json:"schedule" validate:"required"`
}

// DetectConflictsResponse lists the detector output.
type DetectConflictsResponse struct {
	Conflicts []models.Conflict `json:"conflicts"`
	Count     int               `json:"count"`
}

// ResolveScheduleRequest resolves one conflict on an ad-hoc schedule.
type ResolveScheduleRequest struct {
	Schedule   models.Schedule   `json:"schedule" validate:"required"`
	Conflict   models.Conflict   `json:"conflict"`
	Resolution models.Resolution `json:"resolution"`
}

// AnalyzeUtilizationRequest analyzes an ad-hoc schedule.
type AnalyzeUtilizationRequest struct {
	Schedule     models.Schedule `json:"schedule" validate:"required"`
	TeacherCount *int            `json:"teacherCount"`
	TeacherIDs   []string        `json:"teacherIds"`
}

// GenerationJobResponse reports an async generation job.
type GenerationJobResponse struct {
	JobID       string `json:"jobId"`
	Status      string `json:"status"`
	TimetableID string `json:"timetableId,omitempty"`
	Error       string `json:"error,omitempty"`
	SubmittedAt string `json:"submittedAt"`
	UpdatedAt   string `json:"updatedAt"`
}
