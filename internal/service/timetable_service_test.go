package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableStoreStub struct {
	mu         sync.Mutex
	records    map[string]*models.Timetable
	versions   map[string]int
	currentSet []string
	lockedIDs  []string
	createErr  error
	currentErr error
	lastFilter models.TimetableFilter
}

func newTimetableStoreStub() *timetableStoreStub {
	return &timetableStoreStub{records: map[string]*models.Timetable{}, versions: map[string]int{}}
}

func (s *timetableStoreStub) CreateVersioned(_ context.Context, _ sqlx.ExtContext, t *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	scope := t.DepartmentID + "|" + t.Section
	s.versions[scope]++
	t.Version = s.versions[scope]
	if t.ID == "" {
		t.ID = fmt.Sprintf("tt-%d", len(s.records)+1)
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	copied := *t
	s.records[t.ID] = &copied
	return nil
}

func (s *timetableStoreStub) FindByID(_ context.Context, id string) (*models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (s *timetableStoreStub) FindByIDForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Timetable, error) {
	s.mu.Lock()
	s.lockedIDs = append(s.lockedIDs, id)
	s.mu.Unlock()
	return s.FindByID(ctx, id)
}

func (s *timetableStoreStub) List(_ context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	out := make([]models.Timetable, 0)
	for _, r := range s.records {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (s *timetableStoreStub) UpdateSchedule(_ context.Context, _ sqlx.ExtContext, id string, schedule, conflicts types.JSONText, status models.TimetableStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.Schedule = schedule
	record.Conflicts = conflicts
	record.Status = status
	return nil
}

func (s *timetableStoreStub) transition(id string, from, to models.TimetableStatus, apply func(*models.Timetable)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok || record.Status != from {
		return sql.ErrNoRows
	}
	record.Status = to
	if apply != nil {
		apply(record)
	}
	return nil
}

func (s *timetableStoreStub) MarkApproved(_ context.Context, _ sqlx.ExtContext, id, approver string, at time.Time) error {
	return s.transition(id, models.TimetableStatusPendingApproval, models.TimetableStatusApproved, func(r *models.Timetable) {
		r.ApprovedBy = &approver
		r.ApprovedAt = &at
	})
}

func (s *timetableStoreStub) MarkRejected(_ context.Context, _ sqlx.ExtContext, id, approver, reason string, _ time.Time) error {
	return s.transition(id, models.TimetableStatusPendingApproval, models.TimetableStatusRejected, func(r *models.Timetable) {
		r.RejectionReason = &reason
	})
}

func (s *timetableStoreStub) MarkPublished(_ context.Context, _ sqlx.ExtContext, id string, at time.Time) error {
	return s.transition(id, models.TimetableStatusApproved, models.TimetableStatusPublished, func(r *models.Timetable) {
		r.PublishedAt = &at
	})
}

func (s *timetableStoreStub) SetCurrent(_ context.Context, _ sqlx.ExtContext, t *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentErr != nil {
		return s.currentErr
	}
	for _, r := range s.records {
		if r.DepartmentID == t.DepartmentID && r.Semester == t.Semester && r.Section == t.Section {
			r.IsCurrent = r.ID == t.ID
		}
	}
	s.currentSet = append(s.currentSet, t.ID)
	return nil
}

func (s *timetableStoreStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.records, id)
	return nil
}

type generatorStub struct {
	result *dto.GenerationResult
	err    error
	calls  int
}

func (g *generatorStub) Generate(context.Context, dto.GenerateRequest) (*dto.GenerationResult, error) {
	g.calls++
	return g.result, g.err
}

type cacheStub struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
	getErr      error
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string][]byte{}}
}

func (c *cacheStub) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheStub) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	c.entries = map[string][]byte{}
	return nil
}

func conflictedResult() *dto.GenerationResult {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R101", "MATH"),
		at(models.Monday, 1, "T1", "R102", "PHYS"),
		at(models.Tuesday, 2, "T2", "R101", "BIO"),
	)
	conflicts := DetectConflicts(schedule)
	report := AnalyzeUtilization(schedule, 2)
	return &dto.GenerationResult{
		Schedule:  schedule,
		Conflicts: conflicts,
		Stats: dto.GenerationStats{
			TeacherUtilization: report.TeacherUtilization,
			RoomUtilization:    report.RoomUtilization,
			TeacherIDs:         []string{"T1", "T2"},
		},
		Status:    models.StatusForConflicts(conflicts),
		Algorithm: "genetic",
	}
}

func timetableRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		GenerateRequest: sampleGenerateRequest(),
		DepartmentID:    "dept-1",
		Semester:        3,
		Section:         "A",
		AcademicYear:    "2024/2025",
	}
}

func newTimetableServiceFixture(gen *generatorStub) (*TimetableService, *timetableStoreStub, *cacheStub) {
	store := newTimetableStoreStub()
	cache := newCacheStub()
	svc := NewTimetableService(store, gen, cache, nil, nil, nil, TimetableServiceConfig{})
	return svc, store, cache
}

func TestTimetableServiceGenerateStoresDraft(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, store, _ := newTimetableServiceFixture(gen)

	resp, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	assert.Equal(t, models.TimetableStatusDraft, resp.Status)
	assert.Equal(t, 1, resp.Version)
	assert.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "coord-1", resp.GeneratedBy)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, []string{"T1", "T2"}, resp.Stats.TeacherIDs)

	second, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Len(t, store.records, 2)
}

func TestTimetableServiceListPaginates(t *testing.T) {
	svc, store, _ := newTimetableServiceFixture(&generatorStub{result: conflictedResult()})
	_, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	items, pagination, err := svc.List(context.Background(), dto.TimetableQuery{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, *pagination)
	assert.Equal(t, 20, store.lastFilter.PageSize)

	_, _, err = svc.List(context.Background(), dto.TimetableQuery{PageSize: 500})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestTimetableServiceGenerateValidatesScope(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, _, _ := newTimetableServiceFixture(gen)

	req := timetableRequest()
	req.DepartmentID = ""
	_, err := svc.Generate(context.Background(), req, "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, gen.calls)
}

func TestTimetableServiceGeneratePropagatesSolverErrors(t *testing.T) {
	gen := &generatorStub{err: appErrors.Clone(appErrors.ErrSolverTimeout, "solver timed out")}
	svc, store, _ := newTimetableServiceFixture(gen)

	_, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSolverTimeout.Code))
	assert.Empty(t, store.records)
}

func TestTimetableServiceGenerateStoreFailure(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, store, _ := newTimetableServiceFixture(gen)
	store.createErr = errors.New("duplicate key")

	_, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}

func TestTimetableServiceScopeConflictsAreConflicts(t *testing.T) {
	result := conflictedResult()
	result.Conflicts = []models.Conflict{}
	result.Status = models.TimetableStatusPendingApproval
	svc, store, _ := newTimetableServiceFixture(&generatorStub{result: result})

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	store.currentErr = fmt.Errorf("set current timetable: %w", repository.ErrScopeConflict)
	_, err = svc.Approve(context.Background(), created.ID, "admin-1", true)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	store.createErr = fmt.Errorf("insert timetable version 2: %w", repository.ErrScopeConflict)
	_, err = svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestTimetableServicePrepareDoesNotStore(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, store, _ := newTimetableServiceFixture(gen)

	result, err := svc.Prepare(context.Background(), timetableRequest())
	require.NoError(t, err)
	assert.Empty(t, store.records)

	stored, err := svc.Store(context.Background(), timetableRequest(), result, "coord-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, 1, gen.calls)

	_, err = svc.Store(context.Background(), timetableRequest(), nil, "coord-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}

func TestTimetableServiceResolveConflictWorkflow(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, store, cache := newTimetableServiceFixture(gen)
	svc.now = func() time.Time { return time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC) }

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	conflictID := created.Conflicts[0].ID

	resp, err := svc.ResolveConflict(context.Background(), created.ID, conflictID, models.Resolution{
		Action:    models.ActionReschedule,
		NewDay:    models.Wednesday,
		NewPeriod: 3,
	}, "coord-1")
	require.NoError(t, err)

	assert.Equal(t, models.TimetableStatusPendingApproval, resp.Status)
	assert.Zero(t, resp.RemainingConflicts)
	assert.True(t, resp.ResolvedConflict.Resolved)
	assert.Equal(t, "coord-1", resp.ResolvedConflict.ResolvedBy)
	require.NotNil(t, resp.ResolvedConflict.ResolvedAt)
	assert.Equal(t, []string{created.ID}, store.lockedIDs)
	assert.Contains(t, cache.invalidated, UtilizationCachePattern(created.ID))

	stored, err := svc.Conflicts(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Resolved)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	moved, ok := got.Schedule.Assignment(models.Wednesday, 3)
	require.True(t, ok)
	assert.Equal(t, "PHYS", moved.Subject)

	// the timetable left draft so further resolutions are refused
	_, err = svc.ResolveConflict(context.Background(), created.ID, conflictID, models.Resolution{Action: models.ActionCancel}, "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestTimetableServiceResolveConflictKeepsDraftWhileConflictsRemain(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R101", "MATH"),
		at(models.Monday, 1, "T1", "R102", "PHYS"),
		at(models.Tuesday, 2, "T1", "R103", "BIO"),
	)
	conflicts := DetectConflicts(schedule)
	require.Len(t, conflicts, 1)
	gen := &generatorStub{result: &dto.GenerationResult{
		Schedule:  schedule,
		Conflicts: conflicts,
		Stats:     dto.GenerationStats{TeacherIDs: []string{"T1"}},
		Status:    models.StatusForConflicts(conflicts),
		Algorithm: "csp",
	}}
	svc, _, _ := newTimetableServiceFixture(gen)

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	original := created.Conflicts[0].ID

	// T1 already teaches BIO on Tuesday 2
	resp, err := svc.ResolveConflict(context.Background(), created.ID, original, models.Resolution{
		Action:    models.ActionReschedule,
		NewDay:    models.Tuesday,
		NewPeriod: 2,
	}, "coord-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusDraft, resp.Status)
	require.Len(t, resp.NewConflicts, 1)
	assert.Equal(t, "teacher:Tuesday:2:T1", resp.NewConflicts[0].ID)

	_, err = svc.ResolveConflict(context.Background(), created.ID, original, models.Resolution{Action: models.ActionCancel}, "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	resp, err = svc.ResolveConflict(context.Background(), created.ID, "teacher:Tuesday:2:T1", models.Resolution{Action: models.ActionCancel}, "coord-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusPendingApproval, resp.Status)

	history, err := svc.Conflicts(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, c := range history {
		assert.True(t, c.Resolved, c.ID)
	}
}

func TestTimetableServiceResolveConflictErrors(t *testing.T) {
	gen := &generatorStub{result: conflictedResult()}
	svc, _, _ := newTimetableServiceFixture(gen)

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	_, err = svc.ResolveConflict(context.Background(), "missing", "x", models.Resolution{Action: models.ActionCancel}, "coord-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.ResolveConflict(context.Background(), created.ID, "room:Friday:1:R9", models.Resolution{Action: models.ActionCancel}, "coord-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.ResolveConflict(context.Background(), created.ID, created.Conflicts[0].ID, models.Resolution{Action: "swap"}, "coord-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidResolution.Code))
}

func TestTimetableServiceApprovePublishFlow(t *testing.T) {
	result := conflictedResult()
	result.Conflicts = []models.Conflict{}
	result.Status = models.TimetableStatusPendingApproval
	gen := &generatorStub{result: result}
	svc, store, _ := newTimetableServiceFixture(gen)

	first, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	_, err = svc.Publish(context.Background(), first.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	approved, err := svc.Approve(context.Background(), first.ID, "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusApproved, approved.Status)
	assert.True(t, approved.IsCurrent)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)

	_, err = svc.Approve(context.Background(), second.ID, "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, store.currentSet)
	assert.False(t, store.records[first.ID].IsCurrent)
	assert.True(t, store.records[second.ID].IsCurrent)

	_, err = svc.Approve(context.Background(), first.ID, "admin-1", false)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	published, err := svc.Publish(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)
}

func TestTimetableServiceReject(t *testing.T) {
	result := conflictedResult()
	result.Conflicts = []models.Conflict{}
	result.Status = models.TimetableStatusPendingApproval
	svc, _, _ := newTimetableServiceFixture(&generatorStub{result: result})

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), created.ID, "admin-1", dto.RejectTimetableRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	rejected, err := svc.Reject(context.Background(), created.ID, "admin-1", dto.RejectTimetableRequest{Reason: "  too many gaps "})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "too many gaps", *rejected.RejectionReason)

	_, err = svc.Reject(context.Background(), created.ID, "admin-1", dto.RejectTimetableRequest{Reason: "again"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestTimetableServiceUtilizationCaches(t *testing.T) {
	svc, _, cache := newTimetableServiceFixture(&generatorStub{result: conflictedResult()})

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	report, err := svc.Utilization(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"T1": 2, "T2": 1}, report.TeacherUtilization.ByTeacher)
	assert.InDelta(t, 3.0/60.0*100, report.TeacherUtilization.Average, 1e-9)
	require.Len(t, report.Imbalances.OverloadedTeachers, 1)
	assert.Equal(t, "T1", report.Imbalances.OverloadedTeachers[0].Teacher)

	key := UtilizationCacheKey(created.ID, created.Version)
	assert.Contains(t, cache.entries, key)

	cache.entries[key] = []byte(`{"teacherUtilization":{"average":99,"byTeacher":{}},"roomUtilization":{},"imbalances":{"overloadedTeachers":[],"underutilizedRooms":[]}}`)
	cached, err := svc.Utilization(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 99.0, cached.TeacherUtilization.Average)
	assert.True(t, cached.Cached)
	assert.False(t, report.Cached)
}

func TestTimetableServiceUtilizationSurvivesCacheFailure(t *testing.T) {
	svc, _, cache := newTimetableServiceFixture(&generatorStub{result: conflictedResult()})
	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	cache.getErr = errors.New("redis down")
	report, err := svc.Utilization(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TeacherUtilization.ByTeacher["T1"])
}

func TestTimetableServiceDeleteOnlyDrafts(t *testing.T) {
	result := conflictedResult()
	result.Conflicts = []models.Conflict{}
	result.Status = models.TimetableStatusPendingApproval
	svc, _, _ := newTimetableServiceFixture(&generatorStub{result: result})

	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	err = svc.Delete(context.Background(), created.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	draftSvc, store, _ := newTimetableServiceFixture(&generatorStub{result: conflictedResult()})
	draft, err := draftSvc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)
	require.NoError(t, draftSvc.Delete(context.Background(), draft.ID))
	assert.Empty(t, store.records)

	err = draftSvc.Delete(context.Background(), draft.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestTimetableServiceResolveRunsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	gen := &generatorStub{result: conflictedResult()}
	store := newTimetableStoreStub()
	svc := NewTimetableService(store, gen, nil, sqlxDB, nil, nil, TimetableServiceConfig{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Generate(context.Background(), timetableRequest(), "coord-1")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ResolveConflict(context.Background(), created.ID, created.Conflicts[0].ID, models.Resolution{Action: "bogus"}, "coord-1")
	require.Error(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ResolveConflict(context.Background(), created.ID, created.Conflicts[0].ID, models.Resolution{Action: models.ActionCancel}, "coord-1")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
