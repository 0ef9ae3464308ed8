package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ResolutionResult is the outcome of applying one remedy.
type ResolutionResult struct {
	Schedule         models.Schedule   `json:"schedule"`
	NewConflicts     []models.Conflict `json:"newConflicts"`
	ResolvedConflict models.Conflict   `json:"resolvedConflict"`
}

// ConflictResolver applies coordinator-chosen remedies to a schedule.
type ConflictResolver struct {
	validator *validator.Validate
}

// NewConflictResolver constructs a resolver.
func NewConflictResolver(validate *validator.Validate) *ConflictResolver {
	if validate == nil {
		validate = validator.New()
	}
	return &ConflictResolver{validator: validate}
}

// Resolve applies the resolution to the placement the conflict was reported against and
// re-runs detection on the result. The input schedule is never mutated. When the conflict
// no longer exists in the schedule the action is a no-op.
func (r *ConflictResolver) Resolve(schedule models.Schedule, conflict models.Conflict, resolution models.Resolution) (*ResolutionResult, error) {
	normalized, err := r.validate(resolution)
	if err != nil {
		return nil, err
	}

	updated := schedule.Clone()
	if updated == nil {
		updated = models.NewSchedule()
	}

	cell := updated[conflict.Day][conflict.Period]
	if idx := locateTarget(cell, conflict); idx >= 0 {
		switch normalized.Action {
		case models.ActionReschedule:
			moved := cell[idx]
			updated[conflict.Day][conflict.Period] = removePlacement(cell, idx)
			moved.Day = normalized.NewDay
			moved.Period = normalized.NewPeriod
			updated.Place(moved)
		case models.ActionReassign:
			target := cell[idx]
			switch normalized.ResourceType {
			case models.ResourceTeacher:
				target.Teacher = normalized.NewValue
			case models.ResourceRoom:
				target.Room = normalized.NewValue
			}
			cell[idx] = target
		case models.ActionCancel:
			updated[conflict.Day][conflict.Period] = removePlacement(cell, idx)
		}
	}

	resolved := conflict
	resolved.Resolved = true
	resolved.Resolution = &normalized

	return &ResolutionResult{
		Schedule:         updated,
		NewConflicts:     DetectConflicts(updated),
		ResolvedConflict: resolved,
	}, nil
}

func (r *ConflictResolver) validate(res models.Resolution) (models.Resolution, error) {
	res.Action = models.ResolutionAction(strings.ToLower(strings.TrimSpace(string(res.Action))))
	if err := r.validator.Struct(res); err != nil {
		return res, appErrors.Wrap(err, appErrors.ErrInvalidResolution.Code, appErrors.ErrInvalidResolution.Status, "invalid resolution").
			WithDetail("action", string(res.Action))
	}

	switch res.Action {
	case models.ActionReschedule:
		day, ok := models.ParseWeekday(string(res.NewDay))
		if !ok {
			return res, appErrors.Clone(appErrors.ErrInvalidResolution, fmt.Sprintf("unknown day %q", res.NewDay)).
				WithDetail("newDay", string(res.NewDay))
		}
		if !models.ValidPeriod(res.NewPeriod) {
			return res, appErrors.Clone(appErrors.ErrInvalidResolution, fmt.Sprintf("period must be between %d and %d", models.MinPeriod, models.MaxPeriod)).
				WithDetail("newPeriod", res.NewPeriod)
		}
		res.NewDay = day
	case models.ActionReassign:
		res.ResourceType = models.ResourceKind(strings.ToLower(strings.TrimSpace(string(res.ResourceType))))
		if res.ResourceType != models.ResourceTeacher && res.ResourceType != models.ResourceRoom {
			return res, appErrors.Clone(appErrors.ErrInvalidResolution, "resourceType must be teacher or room").
				WithDetail("resourceType", string(res.ResourceType))
		}
		res.NewValue = strings.TrimSpace(res.NewValue)
		if res.NewValue == "" {
			return res, appErrors.Clone(appErrors.ErrInvalidResolution, "newValue is required for reassign")
		}
	}
	return res, nil
}

// locateTarget returns the index of the latest placement in the cell holding the conflicting
// resource, or -1 when the resource is no longer booked twice there.
func locateTarget(cell models.Cell, conflict models.Conflict) int {
	if conflict.ResourceID == "" {
		return -1
	}
	target := -1
	seen := 0
	for i, a := range cell {
		if resourceOf(conflict.Type, a) != conflict.ResourceID {
			continue
		}
		seen++
		if seen >= 2 {
			target = i
		}
	}
	return target
}

func removePlacement(cell models.Cell, idx int) models.Cell {
	if len(cell) <= 1 {
		return nil
	}
	out := make(models.Cell, 0, len(cell)-1)
	out = append(out, cell[:idx]...)
	return append(out, cell[idx+1:]...)
}
