package service

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type resourceSlotKey struct {
	Resource string
	Day      models.Weekday
	Period   int
}

type resourceLedger map[resourceSlotKey]string

// claim records the subject holding the resource at the slot. It returns the earlier
// subject and true when the slot was already taken by another placement.
func (l resourceLedger) claim(key resourceSlotKey, subject string) (string, bool) {
	if earlier, taken := l[key]; taken {
		return earlier, true
	}
	l[key] = subject
	return "", false
}

// DetectConflicts scans the schedule for teachers, rooms and student groups booked twice in
// the same slot. It is pure and deterministic: days in grid order, periods ascending,
// placements in insertion order, and per placement the teacher, room then student check.
func DetectConflicts(schedule models.Schedule) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	teachers := resourceLedger{}
	rooms := resourceLedger{}
	groups := resourceLedger{}

	schedule.Each(func(day models.Weekday, period int, a models.Assignment) {
		if earlier, taken := teachers.claim(resourceSlotKey{a.Teacher, day, period}, a.Subject); taken {
			conflicts = append(conflicts, newConflict(models.ConflictTeacher, day, period, a.Teacher, earlier,
				fmt.Sprintf("Teacher %s double booked for %s %d", a.Teacher, day, period)))
		}

		if a.Room != "" {
			if earlier, taken := rooms.claim(resourceSlotKey{a.Room, day, period}, a.Subject); taken {
				conflicts = append(conflicts, newConflict(models.ConflictRoom, day, period, a.Room, earlier,
					fmt.Sprintf("Room %s double booked for %s %d", a.Room, day, period)))
			}
		}

		if a.StudentGroup != "" {
			if earlier, taken := groups.claim(resourceSlotKey{a.StudentGroup, day, period}, a.Subject); taken {
				conflicts = append(conflicts, newConflict(models.ConflictStudent, day, period, a.StudentGroup, earlier,
					fmt.Sprintf("Student group %s has overlapping classes", a.StudentGroup)))
			}
		}
	})

	return conflicts
}

func newConflict(kind models.ConflictType, day models.Weekday, period int, resource, earlier, message string) models.Conflict {
	c := models.Conflict{
		Type:            kind,
		Day:             day,
		Period:          period,
		ResourceID:      resource,
		ConflictingWith: earlier,
		Message:         message,
	}
	c.ID = c.Key().String()
	return c
}

// resourceOf returns the assignment field inspected by a conflict dimension.
func resourceOf(kind models.ConflictType, a models.Assignment) string {
	switch kind {
	case models.ConflictTeacher:
		return a.Teacher
	case models.ConflictRoom:
		return a.Room
	case models.ConflictStudent:
		return a.StudentGroup
	default:
		return ""
	}
}
