package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	applog "github.com/noah-isme/sma-timetable-api/pkg/logger"
)

const (
	defaultTeacherMaxHours      = 20
	defaultMaxClassesPerDay     = 6
	defaultMinClassesPerDay     = 3
	defaultMaxContinuousClasses = 3
	defaultLunchStart           = "12:00"
	defaultLunchEnd             = "13:00"
	defaultAlgorithm            = "genetic"
)

// Generation outcomes recorded in metrics.
const (
	outcomeSucceeded   = "succeeded"
	outcomeInvalid     = "invalid"
	outcomeUnavailable = "unavailable"
	outcomeTimeout     = "timeout"
	outcomeSolverError = "solver_error"
	outcomeMalformed   = "malformed"
)

type generatorMetrics interface {
	SolverStarted()
	SolverFinished(algorithm, outcome string, duration time.Duration)
	RecordGeneration(outcome string)
	RecordConflicts(conflicts []models.Conflict)
}

// TimetableGeneratorConfig governs solver invocation.
type TimetableGeneratorConfig struct {
	Timeout          time.Duration
	MaxConcurrent    int64
	DefaultAlgorithm string

	// MinPreferenceCoverage is the share of teachers that must have submitted preferences
	// before the solver runs. Zero disables the check.
	MinPreferenceCoverage float64
}

// TimetableGeneratorService calls the solver and runs its candidate through detection and analysis.
// It holds no schedule state between calls.
type TimetableGeneratorService struct {
	solver    Solver
	health    SolverHealthChecker
	metrics   generatorMetrics
	validator *validator.Validate
	logger    *zap.Logger
	sem       *semaphore.Weighted
	cfg       TimetableGeneratorConfig
}

// NewTimetableGeneratorService wires generator dependencies. A nil health checker skips the check.
func NewTimetableGeneratorService(
	solver Solver,
	health SolverHealthChecker,
	metrics generatorMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = defaultAlgorithm
	}
	return &TimetableGeneratorService{
		solver:    solver,
		health:    health,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:       cfg,
	}
}

// Generate produces a candidate schedule with its conflicts and utilization stats.
// Solver failures are surfaced as typed errors and never retried here.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateRequest) (*dto.GenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.record(outcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if err := s.checkPreferenceCoverage(req); err != nil {
		s.record(outcomeInvalid)
		return nil, err
	}
	input := NormalizeRequest(req, s.cfg.DefaultAlgorithm)
	if c := input.Constraints; c.MinClassesPerDay > c.MaxClassesPerDay {
		s.record(outcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "minClassesPerDay must not exceed maxClassesPerDay").
			WithDetail("minClassesPerDay", c.MinClassesPerDay).
			WithDetail("maxClassesPerDay", c.MaxClassesPerDay)
	}

	if s.solver == nil {
		s.record(outcomeUnavailable)
		return nil, appErrors.Clone(appErrors.ErrSolverUnavailable, "no solver configured")
	}

	if err := s.checkHealth(ctx); err != nil {
		s.record(outcomeUnavailable)
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.record(outcomeTimeout)
			return nil, appErrors.Wrap(err, appErrors.ErrSolverTimeout.Code, appErrors.ErrSolverTimeout.Status, "timed out waiting for a solver slot")
		}
		s.record(outcomeUnavailable)
		return nil, appErrors.Wrap(err, appErrors.ErrSolverUnavailable.Code, appErrors.ErrSolverUnavailable.Status, "solver slot not acquired")
	}

	output, err := s.solve(ctx, input)
	if err != nil {
		return nil, err
	}

	schedule := *output.Schedule
	conflicts := DetectConflicts(schedule)
	report := AnalyzeUtilization(schedule, len(input.Teachers))

	if s.metrics != nil {
		s.metrics.RecordConflicts(conflicts)
	}
	s.record(outcomeSucceeded)
	applog.WithContext(ctx, s.logger).Info("timetable generated",
		zap.String("algorithm", input.Algorithm),
		zap.Int("assignments", schedule.AssignmentCount()),
		zap.Int("conflicts", len(conflicts)),
	)

	return &dto.GenerationResult{
		Schedule:  schedule,
		Conflicts: conflicts,
		Stats: dto.GenerationStats{
			TeacherUtilization:   report.TeacherUtilization,
			RoomUtilization:      report.RoomUtilization,
			ConstraintsSatisfied: len(conflicts) == 0,
			TeacherIDs:           teacherIDs(input.Teachers),
			Solver:               output.Stats,
		},
		Status:    models.StatusForConflicts(conflicts),
		Algorithm: input.Algorithm,
	}, nil
}

func (s *TimetableGeneratorService) checkHealth(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	health, err := s.health.Check(ctx)
	if err != nil {
		applog.WithContext(ctx, s.logger).Warn("solver health check failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrSolverUnavailable.Code, appErrors.ErrSolverUnavailable.Status, "solver environment check failed")
	}
	if !health.Valid {
		message := health.Message
		if message == "" {
			message = "solver environment is not properly configured"
		}
		applog.WithContext(ctx, s.logger).Warn("solver environment invalid", zap.String("reason", message))
		return appErrors.Clone(appErrors.ErrSolverUnavailable, message)
	}
	return nil
}

// checkPreferenceCoverage rejects requests where too few of the listed teachers submitted preferences.
func (s *TimetableGeneratorService) checkPreferenceCoverage(req dto.GenerateRequest) error {
	if s.cfg.MinPreferenceCoverage <= 0 || len(req.Teachers) == 0 {
		return nil
	}
	listed := make(map[string]struct{}, len(req.Teachers))
	for _, t := range req.Teachers {
		listed[strings.TrimSpace(t.ID)] = struct{}{}
	}
	covered := make(map[string]struct{}, len(req.Preferences))
	for _, p := range req.Preferences {
		id := strings.TrimSpace(p.TeacherID)
		if _, ok := listed[id]; ok {
			covered[id] = struct{}{}
		}
	}
	required := s.cfg.MinPreferenceCoverage * float64(len(listed))
	if float64(len(covered)) >= required {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "insufficient teacher preferences collected").
		WithDetail("teachers", len(listed)).
		WithDetail("teachers_with_preferences", len(covered)).
		WithDetail("min_coverage", s.cfg.MinPreferenceCoverage)
}

type solveResult struct {
	output *models.SolverOutput
	err    error
}

// solve runs the solver under the configured timeout. The caller must hold a semaphore slot;
// it is released once the solver call returns, even when that is after the deadline.
func (s *TimetableGeneratorService) solve(ctx context.Context, input models.SolverInput) (*models.SolverOutput, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.SolverStarted()
	}
	start := time.Now()
	done := make(chan solveResult, 1)
	go func() {
		defer s.sem.Release(1)
		output, err := s.solver.Solve(runCtx, input)
		done <- solveResult{output: output, err: err}
	}()

	var res solveResult
	select {
	case res = <-done:
	case <-runCtx.Done():
		res = solveResult{err: runCtx.Err()}
	}
	elapsed := time.Since(start)
	if runCtx.Err() != nil {
		// the deadline decides, whatever a late solver returned
		res = solveResult{err: runCtx.Err()}
	}

	outcome := outcomeSucceeded
	defer func() {
		if s.metrics != nil {
			s.metrics.SolverFinished(input.Algorithm, outcome, elapsed)
		}
	}()

	output, err := res.output, res.err
	var sve *models.ScheduleValidationError
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome = outcomeTimeout
		s.record(outcome)
		applog.WithContext(ctx, s.logger).Warn("solver timed out", zap.String("algorithm", input.Algorithm), zap.Duration("timeout", s.cfg.Timeout))
		return nil, appErrors.Wrap(err, appErrors.ErrSolverTimeout.Code, appErrors.ErrSolverTimeout.Status, appErrors.ErrSolverTimeout.Message).
			WithDetail("timeout", s.cfg.Timeout.String())
	case err != nil && errors.As(err, &sve):
		outcome = outcomeMalformed
		s.record(outcome)
		applog.WithContext(ctx, s.logger).Warn("solver returned an undecodable schedule", zap.String("algorithm", input.Algorithm), zap.Error(err))
		return nil, scheduleError(err, appErrors.ErrMalformedSchedule, appErrors.ErrMalformedSchedule.Message)
	case err != nil:
		outcome = outcomeSolverError
		s.record(outcome)
		applog.WithContext(ctx, s.logger).Warn("solver failed", zap.String("algorithm", input.Algorithm), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSolver.Code, appErrors.ErrSolver.Status, appErrors.ErrSolver.Message)
	case output == nil || output.Schedule == nil:
		outcome = outcomeSolverError
		s.record(outcome)
		return nil, appErrors.Clone(appErrors.ErrSolver, "solver output is missing the schedule key")
	}

	if verr := output.Schedule.Validate(); verr != nil {
		outcome = outcomeMalformed
		s.record(outcome)
		return nil, scheduleError(verr, appErrors.ErrMalformedSchedule, appErrors.ErrMalformedSchedule.Message)
	}

	applog.WithContext(ctx, s.logger).Info("solver finished", zap.String("algorithm", input.Algorithm), zap.Duration("duration", elapsed))
	return output, nil
}

func (s *TimetableGeneratorService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordGeneration(outcome)
	}
}

// NormalizeRequest maps a generation request onto the solver input. It is pure: identical
// requests always produce identical inputs, lists sorted by id and defaults filled in.
func NormalizeRequest(req dto.GenerateRequest, fallbackAlgorithm string) models.SolverInput {
	algorithm := strings.ToLower(strings.TrimSpace(req.Algorithm))
	if algorithm == "" {
		algorithm = strings.ToLower(strings.TrimSpace(fallbackAlgorithm))
	}
	if algorithm == "" {
		algorithm = defaultAlgorithm
	}

	subjects := make([]models.SolverSubject, 0, len(req.Subjects))
	for _, subj := range req.Subjects {
		subjects = append(subjects, models.SolverSubject{
			ID:                 strings.TrimSpace(subj.ID),
			Name:               strings.TrimSpace(subj.Name),
			Code:               strings.TrimSpace(subj.Code),
			HoursPerWeek:       subj.HoursPerWeek,
			IsLab:              subj.IsLab,
			StudentGroup:       strings.TrimSpace(subj.StudentGroup),
			TeacherPreferences: cleanIDs(subj.TeacherPreferences),
		})
	}
	sort.SliceStable(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })

	teachers := make([]models.SolverTeacher, 0, len(req.Teachers))
	for _, t := range req.Teachers {
		maxHours := t.MaxHours
		if maxHours <= 0 {
			maxHours = defaultTeacherMaxHours
		}
		teachers = append(teachers, models.SolverTeacher{
			ID:                  strings.TrimSpace(t.ID),
			Name:                strings.TrimSpace(t.Name),
			MaxHours:            maxHours,
			Qualifications:      cleanIDs(t.Qualifications),
			SubjectCompetencies: cleanIDs(t.SubjectCompetencies),
		})
	}
	sort.SliceStable(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })

	prefs := make([]models.SolverPreference, 0, len(req.Preferences))
	for _, p := range req.Preferences {
		prefs = append(prefs, models.SolverPreference{
			TeacherID:            strings.TrimSpace(p.TeacherID),
			PreferredDays:        canonicalDays(p.PreferredDays),
			PreferredPeriods:     sortedPeriods(p.PreferredPeriods),
			UnavailableDays:      canonicalDays(p.UnavailableDays),
			UnavailablePeriods:   sortedPeriods(p.UnavailablePeriods),
			MaxContinuousClasses: p.MaxContinuousClasses,
			MinGapBetweenClasses: p.MinGapBetweenClasses,
		})
	}
	sort.SliceStable(prefs, func(i, j int) bool { return prefs[i].TeacherID < prefs[j].TeacherID })

	return models.SolverInput{
		Subjects:    subjects,
		Teachers:    teachers,
		Preferences: prefs,
		Constraints: normalizeConstraints(req.Constraints),
		Algorithm:   algorithm,
	}
}

func normalizeConstraints(in *dto.ConstraintsInput) models.SolverConstraints {
	out := models.SolverConstraints{
		MaxClassesPerDay:     defaultMaxClassesPerDay,
		MinClassesPerDay:     defaultMinClassesPerDay,
		MaxContinuousClasses: defaultMaxContinuousClasses,
		LunchBreak:           models.LunchBreak{Start: defaultLunchStart, End: defaultLunchEnd},
	}
	if in == nil {
		return out
	}
	if in.MaxClassesPerDay > 0 {
		out.MaxClassesPerDay = in.MaxClassesPerDay
	}
	if in.MinClassesPerDay != nil {
		out.MinClassesPerDay = *in.MinClassesPerDay
	}
	if in.MaxContinuousClasses > 0 {
		out.MaxContinuousClasses = in.MaxContinuousClasses
	}
	if in.LunchBreak != nil {
		out.LunchBreak = models.LunchBreak{Start: strings.TrimSpace(in.LunchBreak.Start), End: strings.TrimSpace(in.LunchBreak.End)}
	}
	return out
}

func teacherIDs(teachers []models.SolverTeacher) []string {
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
	}
	return ids
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func canonicalDays(days []string) []string {
	out := make([]string, 0, len(days))
	for _, raw := range days {
		day, ok := models.ParseWeekday(raw)
		if !ok && string(day) == "" {
			continue
		}
		out = append(out, string(day))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dayRank(out[i]) < dayRank(out[j])
	})
	return out
}

func dayRank(name string) int {
	idx := models.Weekday(name).Index()
	if idx < 0 {
		return len(models.Weekdays)
	}
	return idx
}

func sortedPeriods(periods []int) []int {
	out := append(make([]int, 0, len(periods)), periods...)
	sort.Ints(out)
	return out
}

// scheduleError wraps a schedule validation failure, copying its coordinates into the details.
func scheduleError(verr error, base *appErrors.Error, message string) *appErrors.Error {
	appErr := appErrors.Wrap(verr, base.Code, base.Status, message)
	var sve *models.ScheduleValidationError
	if errors.As(verr, &sve) {
		appErr = appErr.WithDetail("day", string(sve.Day)).WithDetail("period", sve.Period).WithDetail("reason", sve.Reason)
	}
	return appErr
}
