package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	applog "github.com/noah-isme/sma-timetable-api/pkg/logger"
)

type timetableStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, id string, schedule, conflicts types.JSONText, status models.TimetableStatus) error
	MarkApproved(ctx context.Context, exec sqlx.ExtContext, id, approver string, at time.Time) error
	MarkRejected(ctx context.Context, exec sqlx.ExtContext, id, approver, reason string, at time.Time) error
	MarkPublished(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	SetCurrent(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	Delete(ctx context.Context, id string) error
}

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateRequest) (*dto.GenerationResult, error)
}

type utilizationCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableServiceConfig tunes the workflow service.
type TimetableServiceConfig struct {
	UtilizationTTL time.Duration
}

// TimetableService drives generated timetables through resolution, approval and publication.
type TimetableService struct {
	repo      timetableStore
	generator timetableGenerator
	resolver  *ConflictResolver
	cache     utilizationCache
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	now       func() time.Time
}

// NewTimetableService wires workflow dependencies.
func NewTimetableService(
	repo timetableStore,
	generator timetableGenerator,
	cache utilizationCache,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UtilizationTTL <= 0 {
		cfg.UtilizationTTL = 24 * time.Hour
	}
	return &TimetableService{
		repo:      repo,
		generator: generator,
		resolver:  NewConflictResolver(validate),
		cache:     cache,
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate runs the generator and stores the result as the next version of its scope.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.TimetableResponse, error) {
	result, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, req, result, actor)
}

// Prepare validates the request and runs the generator without persisting anything.
func (s *TimetableService) Prepare(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	return s.generator.Generate(ctx, req.GenerateRequest)
}

// Store persists a generation result as the next version of the request's scope.
func (s *TimetableService) Store(ctx context.Context, req dto.GenerateTimetableRequest, result *dto.GenerationResult, actor string) (*dto.TimetableResponse, error) {
	if result == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation result is missing")
	}
	scheduleJSON, err := encodeJSON(result.Schedule)
	if err != nil {
		return nil, err
	}
	conflictsJSON, err := encodeJSON(result.Conflicts)
	if err != nil {
		return nil, err
	}
	statsJSON, err := encodeJSON(result.Stats)
	if err != nil {
		return nil, err
	}

	record := &models.Timetable{
		DepartmentID: strings.TrimSpace(req.DepartmentID),
		Semester:     req.Semester,
		Section:      strings.TrimSpace(req.Section),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Status:       result.Status,
		Algorithm:    result.Algorithm,
		Schedule:     scheduleJSON,
		Conflicts:    conflictsJSON,
		Stats:        statsJSON,
		GeneratedBy:  actor,
	}

	if err := s.withTx(ctx, func(exec sqlx.ExtContext) error {
		return s.repo.CreateVersioned(ctx, exec, record)
	}); err != nil {
		if errors.Is(err, repository.ErrScopeConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable version was taken concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}

	applog.WithContext(ctx, s.logger).Info("timetable stored",
		zap.String("timetable_id", record.ID),
		zap.String("department_id", record.DepartmentID),
		zap.Int("semester", record.Semester),
		zap.String("section", record.Section),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return toTimetableResponse(record)
}

// List returns one page of timetables matching the query.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]dto.TimetableResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	records, total, err := s.repo.List(ctx, models.TimetableFilter{
		DepartmentID: query.DepartmentID,
		Semester:     query.Semester,
		Section:      query.Section,
		Status:       models.TimetableStatus(query.Status),
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	out := make([]dto.TimetableResponse, 0, len(records))
	for i := range records {
		resp, err := toTimetableResponse(&records[i])
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *resp)
	}
	return out, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get returns one timetable.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableResponse, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTimetableResponse(record)
}

// Conflicts returns the stored conflicts of a timetable, resolved ones included.
func (s *TimetableService) Conflicts(ctx context.Context, id string) ([]models.Conflict, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeConflicts(record.Conflicts)
}

// ResolveConflict applies a resolution to a draft timetable against a locked fresh snapshot.
func (s *TimetableService) ResolveConflict(ctx context.Context, id, conflictID string, resolution models.Resolution, actor string) (*dto.ResolveConflictResponse, error) {
	var resp *dto.ResolveConflictResponse

	err := s.withTx(ctx, func(exec sqlx.ExtContext) error {
		record, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return lookupError(err, "timetable not found", "failed to load timetable")
		}
		if record.Status != models.TimetableStatusDraft {
			return appErrors.Clone(appErrors.ErrConflict, "conflicts can only be resolved on draft timetables").
				WithDetail("status", string(record.Status))
		}

		schedule, err := decodeSchedule(record.Schedule)
		if err != nil {
			return err
		}
		stored, err := decodeConflicts(record.Conflicts)
		if err != nil {
			return err
		}

		target, found := findUnresolved(stored, conflictID)
		if !found {
			return appErrors.Clone(appErrors.ErrNotFound, "conflict not found or already resolved").
				WithDetail("conflictId", conflictID)
		}

		result, err := s.resolver.Resolve(schedule, target, resolution)
		if err != nil {
			return err
		}

		resolvedAt := s.now()
		resolved := result.ResolvedConflict
		resolved.ResolvedBy = actor
		resolved.ResolvedAt = &resolvedAt

		history := make([]models.Conflict, 0, len(stored)+len(result.NewConflicts)+1)
		for _, c := range stored {
			if c.Resolved {
				history = append(history, c)
			}
		}
		history = append(history, resolved)
		history = append(history, result.NewConflicts...)

		status := models.StatusForConflicts(result.NewConflicts)

		scheduleJSON, err := encodeJSON(result.Schedule)
		if err != nil {
			return err
		}
		conflictsJSON, err := encodeJSON(history)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateSchedule(ctx, exec, record.ID, scheduleJSON, conflictsJSON, status); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resolved timetable")
		}

		resp = &dto.ResolveConflictResponse{
			ResolvedConflict:   resolved,
			NewConflicts:       result.NewConflicts,
			RemainingConflicts: len(result.NewConflicts),
			Status:             status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	applog.WithContext(ctx, s.logger).Info("timetable conflict resolved",
		zap.String("timetable_id", id),
		zap.String("conflict_id", conflictID),
		zap.String("action", string(resp.ResolvedConflict.Resolution.Action)),
		zap.Int("remaining", resp.RemainingConflicts),
		zap.String("actor", actor),
	)
	return resp, nil
}

// Approve moves a pending timetable to approved, optionally marking it current for its scope.
func (s *TimetableService) Approve(ctx context.Context, id, actor string, markAsCurrent bool) (*dto.TimetableResponse, error) {
	var record *models.Timetable
	err := s.withTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		record, err = s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return lookupError(err, "timetable not found", "failed to load timetable")
		}
		if record.Status != models.TimetableStatusPendingApproval {
			return appErrors.Clone(appErrors.ErrConflict, "only timetables pending approval can be approved").
				WithDetail("status", string(record.Status))
		}

		at := s.now()
		if err := s.repo.MarkApproved(ctx, exec, record.ID, actor, at); err != nil {
			return transitionError(err, "failed to approve timetable")
		}
		record.Status = models.TimetableStatusApproved
		record.ApprovedBy = &actor
		record.ApprovedAt = &at

		if markAsCurrent {
			if err := s.repo.SetCurrent(ctx, exec, record); err != nil {
				if errors.Is(err, repository.ErrScopeConflict) {
					return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another timetable was marked current concurrently")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark timetable as current")
			}
			record.IsCurrent = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applog.WithContext(ctx, s.logger).Info("timetable approved", zap.String("timetable_id", id), zap.String("actor", actor), zap.Bool("current", markAsCurrent))
	return toTimetableResponse(record)
}

// Reject moves a pending timetable to rejected.
func (s *TimetableService) Reject(ctx context.Context, id, actor string, req dto.RejectTimetableRequest) (*dto.TimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TimetableStatusPendingApproval {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only timetables pending approval can be rejected").
			WithDetail("status", string(record.Status))
	}
	reason := strings.TrimSpace(req.Reason)
	if err := s.repo.MarkRejected(ctx, nil, record.ID, actor, reason, s.now()); err != nil {
		return nil, transitionError(err, "failed to reject timetable")
	}
	record.Status = models.TimetableStatusRejected
	record.ApprovedBy = &actor
	record.RejectionReason = &reason

	applog.WithContext(ctx, s.logger).Info("timetable rejected", zap.String("timetable_id", id), zap.String("actor", actor))
	return toTimetableResponse(record)
}

// Publish moves an approved timetable to published.
func (s *TimetableService) Publish(ctx context.Context, id string) (*dto.TimetableResponse, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TimetableStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only approved timetables can be published").
			WithDetail("status", string(record.Status))
	}
	at := s.now()
	if err := s.repo.MarkPublished(ctx, nil, record.ID, at); err != nil {
		return nil, transitionError(err, "failed to publish timetable")
	}
	record.Status = models.TimetableStatusPublished
	record.PublishedAt = &at

	applog.WithContext(ctx, s.logger).Info("timetable published", zap.String("timetable_id", id))
	return toTimetableResponse(record)
}

// Utilization analyzes the stored schedule. Results are cached per timetable version.
func (s *TimetableService) Utilization(ctx context.Context, id string) (*dto.UtilizationResponse, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	key := UtilizationCacheKey(record.ID, record.Version)
	if s.cache != nil {
		var cached dto.UtilizationResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	schedule, err := decodeSchedule(record.Schedule)
	if err != nil {
		return nil, err
	}
	teachers := storedTeacherIDs(record.Stats)
	if len(teachers) == 0 {
		teachers = scheduledTeachers(schedule)
	}

	resp := &dto.UtilizationResponse{
		UtilizationReport: AnalyzeUtilization(schedule, len(teachers)),
		Imbalances:        DetectImbalances(schedule, teachers),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cfg.UtilizationTTL); err != nil {
			applog.WithContext(ctx, s.logger).Warn("utilization cache write failed", zap.String("timetable_id", id), zap.Error(err))
		}
	}
	return resp, nil
}

// Delete removes a draft timetable.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		return lookupError(err, "timetable not found", "failed to delete timetable")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *TimetableService) load(ctx context.Context, id string) (*models.Timetable, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "timetable not found", "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, UtilizationCachePattern(id)); err != nil {
		applog.WithContext(ctx, s.logger).Warn("utilization cache invalidate failed", zap.String("timetable_id", id), zap.Error(err))
	}
}

func (s *TimetableService) withTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	if s.tx == nil {
		return fn(nil)
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

func lookupError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

// transitionError maps a status update that matched no row to a conflict: another request moved it first.
func transitionError(err error, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "timetable status changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func findUnresolved(conflicts []models.Conflict, id string) (models.Conflict, bool) {
	for _, c := range conflicts {
		if c.ID == id && !c.Resolved {
			return c, true
		}
	}
	return models.Conflict{}, false
}

func encodeJSON(v interface{}) (types.JSONText, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable payload")
	}
	return types.JSONText(raw), nil
}

func decodeSchedule(raw types.JSONText) (models.Schedule, error) {
	schedule := models.NewSchedule()
	if len(raw) == 0 {
		return schedule, nil
	}
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule is corrupt")
	}
	return schedule, nil
}

func decodeConflicts(raw types.JSONText) ([]models.Conflict, error) {
	conflicts := make([]models.Conflict, 0)
	if len(raw) == 0 {
		return conflicts, nil
	}
	if err := json.Unmarshal(raw, &conflicts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored conflicts are corrupt")
	}
	if conflicts == nil {
		conflicts = make([]models.Conflict, 0)
	}
	return conflicts, nil
}

func decodeStats(raw types.JSONText) *dto.GenerationStats {
	if len(raw) == 0 {
		return nil
	}
	var stats dto.GenerationStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func storedTeacherIDs(raw types.JSONText) []string {
	if stats := decodeStats(raw); stats != nil {
		return stats.TeacherIDs
	}
	return nil
}

func scheduledTeachers(schedule models.Schedule) []string {
	seen := make(map[string]struct{})
	schedule.Each(func(_ models.Weekday, _ int, a models.Assignment) {
		if a.Teacher != "" {
			seen[a.Teacher] = struct{}{}
		}
	})
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

func toTimetableResponse(t *models.Timetable) (*dto.TimetableResponse, error) {
	schedule, err := decodeSchedule(t.Schedule)
	if err != nil {
		return nil, err
	}
	conflicts, err := decodeConflicts(t.Conflicts)
	if err != nil {
		return nil, err
	}
	return &dto.TimetableResponse{
		ID:              t.ID,
		DepartmentID:    t.DepartmentID,
		Semester:        t.Semester,
		Section:         t.Section,
		AcademicYear:    t.AcademicYear,
		Version:         t.Version,
		Status:          t.Status,
		IsCurrent:       t.IsCurrent,
		Algorithm:       t.Algorithm,
		Schedule:        schedule,
		Conflicts:       conflicts,
		Stats:           decodeStats(t.Stats),
		GeneratedBy:     t.GeneratedBy,
		ApprovedBy:      t.ApprovedBy,
		ApprovedAt:      formatTime(t.ApprovedAt),
		PublishedAt:     formatTime(t.PublishedAt),
		RejectionReason: t.RejectionReason,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
