package models

// TeacherUtilization aggregates teaching load across the grid.
type TeacherUtilization struct {
	Average   float64        `json:"average"`
	ByTeacher map[string]int `json:"byTeacher"`
}

// UtilizationReport is derived on demand and never stored.
type UtilizationReport struct {
	TeacherUtilization TeacherUtilization `json:"teacherUtilization"`
	RoomUtilization    map[string]float64 `json:"roomUtilization"`
}

// TeacherImbalance flags a teacher carrying more than the balanced share.
type TeacherImbalance struct {
	Teacher     string `json:"teacher"`
	Current     int    `json:"current"`
	Recommended int    `json:"recommended"`
}

// RoomImbalance flags a room used well below the average.
type RoomImbalance struct {
	Room        string  `json:"room"`
	Utilization float64 `json:"utilization"`
	Recommended int     `json:"recommended"`
}

// ImbalanceReport carries advisory balancing output.
type ImbalanceReport struct {
	OverloadedTeachers []TeacherImbalance `json:"overloadedTeachers"`
	UnderutilizedRooms []RoomImbalance    `json:"underutilizedRooms"`
}
