package models

// SolverSubject is the solver-facing view of a subject.
type SolverSubject struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Code               string   `json:"code"`
	HoursPerWeek       int      `json:"hours_per_week"`
	IsLab              bool     `json:"is_lab"`
	StudentGroup       string   `json:"student_group,omitempty"`
	TeacherPreferences []string `json:"teacher_preferences"`
}

// SolverTeacher is the solver-facing view of a teacher.
type SolverTeacher struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	MaxHours            int      `json:"max_hours"`
	Qualifications      []string `json:"qualifications"`
	SubjectCompetencies []string `json:"subject_competencies"`
}

// SolverPreference carries one teacher's availability wishes.
type SolverPreference struct {
	TeacherID            string   `json:"teacher_id"`
	PreferredDays        []string `json:"preferred_days"`
	PreferredPeriods     []int    `json:"preferred_periods"`
	UnavailableDays      []string `json:"unavailable_days"`
	UnavailablePeriods   []int    `json:"unavailable_periods"`
	MaxContinuousClasses int      `json:"max_continuous_classes"`
	MinGapBetweenClasses int      `json:"min_gap_between_classes"`
}

// LunchBreak is the daily window the solver keeps free.
type LunchBreak struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SolverConstraints are the hard limits passed to the solver.
type SolverConstraints struct {
	MaxClassesPerDay     int        `json:"max_classes_per_day"`
	MinClassesPerDay     int        `json:"min_classes_per_day"`
	MaxContinuousClasses int        `json:"max_continuous_classes"`
	LunchBreak           LunchBreak `json:"lunch_break"`
}

// SolverInput is the normalized payload handed to the solver.
type SolverInput struct {
	Subjects    []SolverSubject    `json:"subjects"`
	Teachers    []SolverTeacher    `json:"teachers"`
	Preferences []SolverPreference `json:"preferences"`
	Constraints SolverConstraints  `json:"constraints"`
	Algorithm   string             `json:"algorithm"`
}

// SolverOutput is what the solver returns. A nil Schedule means the key was missing.
type SolverOutput struct {
	Schedule *Schedule      `json:"schedule"`
	Stats    map[string]any `json:"stats,omitempty"`
}

// SolverHealth is the answer of the solver environment check.
type SolverHealth struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
