package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestAnalyzeUtilizationEmptySchedule(t *testing.T) {
	report := AnalyzeUtilization(models.NewSchedule(), 5)
	assert.Zero(t, report.TeacherUtilization.Average)
	assert.Empty(t, report.TeacherUtilization.ByTeacher)
	assert.Empty(t, report.RoomUtilization)
}

func TestAnalyzeUtilizationZeroTeacherCount(t *testing.T) {
	schedule := buildSchedule(at(models.Monday, 1, "T1", "R1", "A"))
	report := AnalyzeUtilization(schedule, 0)
	assert.Zero(t, report.TeacherUtilization.Average)
	assert.Equal(t, 1, report.TeacherUtilization.ByTeacher["T1"])
}

func TestAnalyzeUtilizationCounts(t *testing.T) {
	schedule := models.NewGrid([]models.Weekday{models.Monday, models.Tuesday}, 5)
	for _, a := range []models.Assignment{
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 2, "T1", "R1", "A"),
		at(models.Monday, 3, "T2", "R2", "B"),
		at(models.Tuesday, 1, "T1", "R1", "A"),
		at(models.Tuesday, 2, "T2", "", "B"),
	} {
		schedule.Place(a)
	}

	report := AnalyzeUtilization(schedule, 2)

	assert.Equal(t, map[string]int{"T1": 3, "T2": 2}, report.TeacherUtilization.ByTeacher)
	// 5 placements over 2 teachers * 30 slots
	assert.InDelta(t, 5.0/60.0*100, report.TeacherUtilization.Average, 1e-9)

	require.Len(t, report.RoomUtilization, 2)
	// 10 cells in the grid, free ones included
	assert.InDelta(t, 30.0, report.RoomUtilization["R1"], 1e-9)
	assert.InDelta(t, 10.0, report.RoomUtilization["R2"], 1e-9)
}

func TestAnalyzeUtilizationCountsDoubleBookedPlacements(t *testing.T) {
	schedule := buildSchedule(
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 1, "T1", "R1", "B"),
	)
	report := AnalyzeUtilization(schedule, 1)
	assert.Equal(t, 2, report.TeacherUtilization.ByTeacher["T1"])
	assert.InDelta(t, 200.0, report.RoomUtilization["R1"], 1e-9)
}

func TestDetectImbalances(t *testing.T) {
	grid := models.NewGrid([]models.Weekday{models.Monday}, 8)
	placements := []models.Assignment{
		at(models.Monday, 1, "T1", "R1", "A"),
		at(models.Monday, 2, "T1", "R1", "A"),
		at(models.Monday, 3, "T1", "R1", "A"),
		at(models.Monday, 4, "T1", "R1", "A"),
		at(models.Monday, 5, "T1", "R1", "A"),
		at(models.Monday, 6, "T2", "R1", "B"),
		at(models.Monday, 7, "T3", "R1", "C"),
		at(models.Monday, 8, "T3", "R2", "C"),
	}
	for _, a := range placements {
		grid.Place(a)
	}

	report := DetectImbalances(grid, []string{"T1", "T2", "T3", "T4"})

	// mean teacher load 8/4 = 2, threshold 2.6
	require.Len(t, report.OverloadedTeachers, 1)
	assert.Equal(t, models.TeacherImbalance{Teacher: "T1", Current: 5, Recommended: 2}, report.OverloadedTeachers[0])

	// mean room usage (7+1)/2 = 4, threshold 2.8
	require.Len(t, report.UnderutilizedRooms, 1)
	assert.Equal(t, "R2", report.UnderutilizedRooms[0].Room)
	assert.InDelta(t, 12.5, report.UnderutilizedRooms[0].Utilization, 1e-9)
	assert.Equal(t, 4, report.UnderutilizedRooms[0].Recommended)
}

func TestDetectImbalancesEmpty(t *testing.T) {
	report := DetectImbalances(models.NewSchedule(), nil)
	assert.NotNil(t, report.OverloadedTeachers)
	assert.NotNil(t, report.UnderutilizedRooms)
	assert.Empty(t, report.OverloadedTeachers)
	assert.Empty(t, report.UnderutilizedRooms)
}
