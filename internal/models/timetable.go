package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusDraft           TimetableStatus = "draft"
	TimetableStatusPendingApproval TimetableStatus = "pending_approval"
	TimetableStatusApproved        TimetableStatus = "approved"
	TimetableStatusRejected        TimetableStatus = "rejected"
	TimetableStatusPublished       TimetableStatus = "published"
)

// StatusForConflicts picks the initial status of a freshly generated timetable.
func StatusForConflicts(conflicts []Conflict) TimetableStatus {
	if len(Unresolved(conflicts)) > 0 {
		return TimetableStatusDraft
	}
	return TimetableStatusPendingApproval
}

// Timetable is a versioned weekly schedule for a department/semester/section scope.
type Timetable struct {
	ID              string          `db:"id" json:"id"`
	DepartmentID    string          `db:"department_id" json:"department_id"`
	Semester        int             `db:"semester" json:"semester"`
	Section         string          `db:"section" json:"section"`
	AcademicYear    string          `db:"academic_year" json:"academic_year"`
	Version         int             `db:"version" json:"version"`
	Status          TimetableStatus `db:"status" json:"status"`
	IsCurrent       bool            `db:"is_current" json:"is_current"`
	Algorithm       string          `db:"algorithm" json:"algorithm"`
	Schedule        types.JSONText  `db:"schedule" json:"schedule"`
	Conflicts       types.JSONText  `db:"conflicts" json:"conflicts"`
	Stats           types.JSONText  `db:"stats" json:"stats"`
	GeneratedBy     string          `db:"generated_by" json:"generated_by"`
	ApprovedBy      *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	PublishedAt     *time.Time      `db:"published_at" json:"published_at,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	DepartmentID string
	Semester     int
	Section      string
	Status       TimetableStatus
	Page         int
	PageSize     int
}

// Pagination describes a page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
