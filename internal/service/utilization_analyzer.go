package service

import (
	"math"
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// UtilizationSlotDenominator is the weekly slot count assumed per teacher when computing the
// average load percentage. It is kept fixed so averages stay comparable between runs.
const UtilizationSlotDenominator = 30

const (
	overloadFactor      = 1.3
	underutilizedFactor = 0.7
	roomTargetFactor    = 1.1
)

// AnalyzeUtilization derives per-teacher and per-room load from the schedule.
func AnalyzeUtilization(schedule models.Schedule, teacherCount int) models.UtilizationReport {
	byTeacher := make(map[string]int)
	roomUsage := make(map[string]int)
	total := 0

	schedule.Each(func(_ models.Weekday, _ int, a models.Assignment) {
		if a.Teacher != "" {
			byTeacher[a.Teacher]++
			total++
		}
		if a.Room != "" {
			roomUsage[a.Room]++
		}
	})

	average := 0.0
	if teacherCount > 0 && total > 0 {
		average = float64(total) / float64(teacherCount*UtilizationSlotDenominator) * 100
	}

	cells := schedule.CellCount()
	rooms := make(map[string]float64, len(roomUsage))
	for room, used := range roomUsage {
		if cells == 0 {
			rooms[room] = 0
			continue
		}
		rooms[room] = float64(used) / float64(cells) * 100
	}

	return models.UtilizationReport{
		TeacherUtilization: models.TeacherUtilization{Average: average, ByTeacher: byTeacher},
		RoomUtilization:    rooms,
	}
}

// DetectImbalances flags overloaded teachers and underutilized rooms. Teachers listed in
// teacherIDs count with zero load when they hold no placements. The output is advisory.
func DetectImbalances(schedule models.Schedule, teacherIDs []string) models.ImbalanceReport {
	teacherLoad := make(map[string]int, len(teacherIDs))
	for _, id := range teacherIDs {
		if id != "" {
			teacherLoad[id] = 0
		}
	}
	roomUsage := make(map[string]int)

	schedule.Each(func(_ models.Weekday, _ int, a models.Assignment) {
		if a.Teacher != "" {
			teacherLoad[a.Teacher]++
		}
		if a.Room != "" {
			roomUsage[a.Room]++
		}
	})

	report := models.ImbalanceReport{
		OverloadedTeachers: make([]models.TeacherImbalance, 0),
		UnderutilizedRooms: make([]models.RoomImbalance, 0),
	}

	if mean, ok := meanLoad(teacherLoad); ok {
		for _, id := range sortedKeys(teacherLoad) {
			if float64(teacherLoad[id]) > overloadFactor*mean {
				report.OverloadedTeachers = append(report.OverloadedTeachers, models.TeacherImbalance{
					Teacher:     id,
					Current:     teacherLoad[id],
					Recommended: int(math.Floor(mean)),
				})
			}
		}
	}

	cells := schedule.CellCount()
	if mean, ok := meanLoad(roomUsage); ok {
		for _, id := range sortedKeys(roomUsage) {
			if float64(roomUsage[id]) < underutilizedFactor*mean {
				utilization := 0.0
				if cells > 0 {
					utilization = float64(roomUsage[id]) / float64(cells) * 100
				}
				report.UnderutilizedRooms = append(report.UnderutilizedRooms, models.RoomImbalance{
					Room:        id,
					Utilization: utilization,
					Recommended: int(math.Round(mean * roomTargetFactor)),
				})
			}
		}
	}

	return report
}

func meanLoad(load map[string]int) (float64, bool) {
	if len(load) == 0 {
		return 0, false
	}
	sum := 0
	for _, v := range load {
		sum += v
	}
	return float64(sum) / float64(len(load)), true
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
