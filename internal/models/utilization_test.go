package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilizationPayloadsUseCamelCase(t *testing.T) {
	report, err := json.Marshal(UtilizationReport{
		TeacherUtilization: TeacherUtilization{Average: 10, ByTeacher: map[string]int{"T1": 3}},
		RoomUtilization:    map[string]float64{"R1": 50},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"teacherUtilization":{"average":10,"byTeacher":{"T1":3}},"roomUtilization":{"R1":50}}`, string(report))

	imbalances, err := json.Marshal(ImbalanceReport{
		OverloadedTeachers: []TeacherImbalance{{Teacher: "T1", Current: 9, Recommended: 4}},
		UnderutilizedRooms: []RoomImbalance{},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"overloadedTeachers":[{"teacher":"T1","current":9,"recommended":4}],"underutilizedRooms":[]}`, string(imbalances))
}
