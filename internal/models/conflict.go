package models

import (
	"fmt"
	"time"
)

// ConflictType names the resource dimension that was double-booked.
type ConflictType string

const (
	ConflictTeacher ConflictType = "teacher"
	ConflictRoom    ConflictType = "room"
	ConflictStudent ConflictType = "student"
)

// ConflictKey identifies a conflict across detector runs.
type ConflictKey struct {
	Type       ConflictType
	Day        Weekday
	Period     int
	ResourceID string
}

// String renders the key as the stable conflict id.
func (k ConflictKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.Type, k.Day, k.Period, k.ResourceID)
}

// Conflict reports one resource appearing twice in the same slot.
type Conflict struct {
	ID              string       `json:"id"`
	Type            ConflictType `json:"type"`
	Day             Weekday      `json:"day"`
	Period          int          `json:"period"`
	ResourceID      string       `json:"resourceId"`
	ConflictingWith string       `json:"conflictingWith"`
	Message         string       `json:"message"`
	Resolved        bool         `json:"resolved"`
	Resolution      *Resolution  `json:"resolution,omitempty"`
	ResolvedBy      string       `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
}

// Key returns the identity of the conflict.
func (c Conflict) Key() ConflictKey {
	return ConflictKey{Type: c.Type, Day: c.Day, Period: c.Period, ResourceID: c.ResourceID}
}

// ResolutionAction enumerates supported conflict remedies.
type ResolutionAction string

const (
	ActionReschedule ResolutionAction = "reschedule"
	ActionReassign   ResolutionAction = "reassign"
	ActionCancel     ResolutionAction = "cancel"
)

// ResourceKind names the assignment field a reassign replaces.
type ResourceKind string

const (
	ResourceTeacher ResourceKind = "teacher"
	ResourceRoom    ResourceKind = "room"
)

// Resolution is the remedy a coordinator picks for one conflict.
type Resolution struct {
	Action       ResolutionAction `json:"action" validate:"required,oneof=reschedule reassign cancel"`
	NewDay       Weekday          `json:"newDay,omitempty" validate:"required_if=Action reschedule"`
	NewPeriod    int              `json:"newPeriod,omitempty" validate:"required_if=Action reschedule"`
	ResourceType ResourceKind     `json:"resourceType,omitempty" validate:"required_if=Action reassign"`
	NewValue     string           `json:"newValue,omitempty" validate:"required_if=Action reassign"`
}

// Unresolved filters out conflicts that already carry a resolution.
func Unresolved(conflicts []Conflict) []Conflict {
	out := make([]Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}
