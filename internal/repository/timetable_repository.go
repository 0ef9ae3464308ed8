package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableColumns = `id, department_id, semester, section, academic_year, version, status, is_current, algorithm,
schedule, conflicts, stats, generated_by, approved_by, approved_at, published_at, rejection_reason, created_at, updated_at`

// ErrScopeConflict reports a unique-index collision inside one department/semester/section
// scope: two writers took the same version, or two rows were flagged current.
var ErrScopeConflict = errors.New("timetable scope changed concurrently")

const (
	pgUniqueViolation  = "23505"
	maxVersionAttempts = 3
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// TimetableRepository persists versioned timetables.
type TimetableRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// UseMetrics records query durations on observer.
func (r *TimetableRepository) UseMetrics(observer queryObserver) {
	r.metrics = observer
}

func (r *TimetableRepository) observe(label string, started time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(started))
	}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for its department/semester/section.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.DepartmentID == "" || timetable.Section == "" || timetable.Semester <= 0 {
		return fmt.Errorf("department_id, semester and section are required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Schedule) == 0 {
		timetable.Schedule = types.JSONText(`{}`)
	}
	if len(timetable.Conflicts) == 0 {
		timetable.Conflicts = types.JSONText(`[]`)
	}
	if len(timetable.Stats) == 0 {
		timetable.Stats = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	target := r.exec(exec)
	defer r.observe("timetable_create", time.Now())

	// Inside a transaction the scope lock serializes version allocation. A failed insert
	// aborts the transaction, so only autocommit writes can retry.
	_, inTx := target.(*sqlx.Tx)
	if inTx {
		const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`
		scope := fmt.Sprintf("timetables:%s:%d:%s", timetable.DepartmentID, timetable.Semester, timetable.Section)
		if _, err := target.ExecContext(ctx, lockQuery, scope); err != nil {
			return fmt.Errorf("lock timetable scope: %w", err)
		}
	}

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE department_id = $1 AND semester = $2 AND section = $3`
	const insertQuery = `
INSERT INTO timetables (id, department_id, semester, section, academic_year, version, status, is_current, algorithm,
schedule, conflicts, stats, generated_by, created_at, updated_at)
VALUES (:id, :department_id, :semester, :section, :academic_year, :version, :status, :is_current, :algorithm,
:schedule, :conflicts, :stats, :generated_by, :created_at, :updated_at)`
	for attempt := 1; ; attempt++ {
		if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.DepartmentID, timetable.Semester, timetable.Section); err != nil {
			return fmt.Errorf("compute next timetable version: %w", err)
		}
		_, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("insert timetable: %w", err)
		}
		if inTx || attempt >= maxVersionAttempts {
			return fmt.Errorf("insert timetable version %d: %w", timetable.Version, ErrScopeConflict)
		}
	}
}

// FindByID loads a timetable by identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	defer r.observe("timetable_find", time.Now())
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindByIDForUpdate loads a timetable and locks its row for the surrounding transaction.
func (r *TimetableRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1 FOR UPDATE`
	var timetable models.Timetable
	if err := sqlx.GetContext(ctx, r.exec(exec), &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// List returns one page of timetables matching the filter, newest first, with the total match count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	defer r.observe("timetable_list", time.Now())
	var (
		conditions []string
		args       []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.DepartmentID != "" {
		add("department_id = $%d", filter.DepartmentID)
	}
	if filter.Semester > 0 {
		add("semester = $%d", filter.Semester)
	}
	if filter.Section != "" {
		add("section = $%d", filter.Section)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = ` WHERE ` + strings.Join(conditions, " AND ")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM timetables%s ORDER BY created_at DESC, version DESC LIMIT %d OFFSET %d`, timetableColumns, where, size, offset)
	timetables := make([]models.Timetable, 0)
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timetables`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}
	return timetables, total, nil
}

// UpdateSchedule stores a resolved schedule, its conflicts and the resulting status.
func (r *TimetableRepository) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, id string, schedule, conflicts types.JSONText, status models.TimetableStatus) error {
	const query = `UPDATE timetables SET schedule = $1, conflicts = $2, status = $3, updated_at = $4 WHERE id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, schedule, conflicts, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable schedule: %w", err)
	}
	return expectAffected(result, "timetable schedule")
}

// MarkApproved moves a pending timetable to approved.
func (r *TimetableRepository) MarkApproved(ctx context.Context, exec sqlx.ExtContext, id, approver string, at time.Time) error {
	const query = `UPDATE timetables SET status = $1, approved_by = $2, approved_at = $3, updated_at = $3 WHERE id = $4 AND status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, models.TimetableStatusApproved, approver, at, id, models.TimetableStatusPendingApproval)
	if err != nil {
		return fmt.Errorf("approve timetable: %w", err)
	}
	return expectAffected(result, "timetable approval")
}

// MarkRejected moves a pending timetable to rejected with a reason.
func (r *TimetableRepository) MarkRejected(ctx context.Context, exec sqlx.ExtContext, id, approver, reason string, at time.Time) error {
	const query = `UPDATE timetables SET status = $1, approved_by = $2, rejection_reason = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	result, err := r.exec(exec).ExecContext(ctx, query, models.TimetableStatusRejected, approver, reason, at, id, models.TimetableStatusPendingApproval)
	if err != nil {
		return fmt.Errorf("reject timetable: %w", err)
	}
	return expectAffected(result, "timetable rejection")
}

// MarkPublished moves an approved timetable to published.
func (r *TimetableRepository) MarkPublished(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE timetables SET status = $1, published_at = $2, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.exec(exec).ExecContext(ctx, query, models.TimetableStatusPublished, at, id, models.TimetableStatusApproved)
	if err != nil {
		return fmt.Errorf("publish timetable: %w", err)
	}
	return expectAffected(result, "timetable publication")
}

// SetCurrent flags id as the current timetable of its scope and clears the flag on every sibling.
func (r *TimetableRepository) SetCurrent(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	target := r.exec(exec)
	const clearQuery = `UPDATE timetables SET is_current = FALSE, updated_at = $1 WHERE department_id = $2 AND semester = $3 AND section = $4 AND is_current AND id <> $5`
	now := time.Now().UTC()
	if _, err := target.ExecContext(ctx, clearQuery, now, timetable.DepartmentID, timetable.Semester, timetable.Section, timetable.ID); err != nil {
		return fmt.Errorf("clear current timetable: %w", err)
	}
	const setQuery = `UPDATE timetables SET is_current = TRUE, updated_at = $1 WHERE id = $2`
	result, err := target.ExecContext(ctx, setQuery, now, timetable.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("set current timetable: %w", ErrScopeConflict)
	}
	if err != nil {
		return fmt.Errorf("set current timetable: %w", err)
	}
	return expectAffected(result, "current timetable")
}

// Delete removes a draft timetable.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, models.TimetableStatusDraft)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return expectAffected(result, "timetable delete")
}

func expectAffected(result sql.Result, label string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", label, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
