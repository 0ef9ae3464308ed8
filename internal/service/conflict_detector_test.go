package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func buildSchedule(placements ...models.Assignment) models.Schedule {
	s := models.NewSchedule()
	for _, a := range placements {
		s.Place(a)
	}
	return s
}

func at(day models.Weekday, period int, teacher, room, subject string) models.Assignment {
	return models.Assignment{Day: day, Period: period, Teacher: teacher, Room: room, Subject: subject}
}

func TestDetectConflictsEmptySchedule(t *testing.T) {
	conflicts := DetectConflicts(models.NewSchedule())
	require.NotNil(t, conflicts)
	assert.Empty(t, conflicts)

	assert.Empty(t, DetectConflicts(models.NewGrid(models.Weekdays, models.MaxPeriod)))
}

func TestDetectConflictsTeacherDoubleBooked(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 1, "T1", "R2", "B"),
	)

	conflicts := DetectConflicts(schedule)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, models.ConflictTeacher, c.Type)
	assert.Equal(t, models.Monday, c.Day)
	assert.Equal(t, 1, c.Period)
	assert.Equal(t, "T1", c.ResourceID)
	assert.Equal(t, "A", c.ConflictingWith)
	assert.Equal(t, "Teacher T1 double booked for Monday 1", c.Message)
	assert.Equal(t, "teacher:Monday:1:T1", c.ID)
	assert.False(t, c.Resolved)
	assert.Nil(t, c.Resolution)
}

func TestDetectConflictsRoomAndStudentGroup(t *testing.T) {
	first := at(models.Tuesday, 3, "T1", "R1", "Math")
	first.StudentGroup = "G1"
	second := at(models.Tuesday, 3, "T2", "R1", "Physics")
	second.StudentGroup = "G1"

	conflicts := DetectConflicts(buildSchedule(first, second))
	require.Len(t, conflicts, 2)

	assert.Equal(t, models.ConflictRoom, conflicts[0].Type)
	assert.Equal(t, "R1", conflicts[0].ResourceID)
	assert.Equal(t, "Math", conflicts[0].ConflictingWith)
	assert.Equal(t, "Room R1 double booked for Tuesday 3", conflicts[0].Message)

	assert.Equal(t, models.ConflictStudent, conflicts[1].Type)
	assert.Equal(t, "G1", conflicts[1].ResourceID)
	assert.Equal(t, "Student group G1 has overlapping classes", conflicts[1].Message)
}

func TestDetectConflictsSkipsEmptyRoomAndGroup(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 2, "T1", "", "A"),
		at(models.Monday, 2, "T2", "", "B"),
	)
	assert.Empty(t, DetectConflicts(schedule))
}

func TestDetectConflictsSameTeacherDifferentSlotsIsFine(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 2, "T1", "R1", "A"),
		at(models.Tuesday, 1, "T1", "R1", "A"),
	)
	assert.Empty(t, DetectConflicts(schedule))
}

func TestDetectConflictsIsDeterministic(t *testing.T) {
	schedule := buildSchedule(
		at(models.Friday, 4, "T3", "R9", "Art"),
		at(models.Friday, 4, "T3", "R9", "Music"),
		at(models.Monday, 2, "T1", "R1", "A"),
		at(models.Monday, 2, "T1", "R2", "B"),
		at(models.Wednesday, 6, "T2", "R1", "C"),
		at(models.Wednesday, 6, "T4", "R1", "D"),
	)

	first := DetectConflicts(schedule)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DetectConflicts(schedule))
	}

	ids := make([]string, 0, len(first))
	for _, c := range first {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{
		"teacher:Monday:2:T1",
		"room:Wednesday:6:R1",
		"teacher:Friday:4:T3",
		"room:Friday:4:R9",
	}, ids)
}

func TestDetectConflictsThreeWayBookingReportsEachLaterPlacement(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 1, "T1", "R2", "B"),
		at(models.Monday, 1, "T1", "R3", "C"),
	)
	conflicts := DetectConflicts(schedule)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "A", conflicts[0].ConflictingWith)
	assert.Equal(t, "A", conflicts[1].ConflictingWith)
}

func TestDetectConflictsDoesNotMutateInput(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 1, "T1", "R1", "B"),
	)
	before := schedule.Clone()
	DetectConflicts(schedule)
	assert.Equal(t, before, schedule)
}

func TestDetectConflictsFromWireFormat(t *testing.T) {
	payload := []byte(`{
		"monday": {
			"1": [{"teacher":"T1","room":"R1","subject":"A"},{"teacher":"T1","room":"R2","subject":"B"}],
			"2": {"teacher":"T2","room":"R1","subject":"C"},
			"3": null
		}
	}`)
	var schedule models.Schedule
	require.NoError(t, json.Unmarshal(payload, &schedule))

	conflicts := DetectConflicts(schedule)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.Monday, conflicts[0].Day)
	assert.Equal(t, "T1", conflicts[0].ResourceID)
}
