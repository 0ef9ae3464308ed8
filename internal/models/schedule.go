package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Weekday names a teaching day of the weekly grid.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

// Period bounds of a teaching day.
const (
	MinPeriod = 1
	MaxPeriod = 8
)

// Weekdays lists the teaching days in grid order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var weekdayIndex = map[Weekday]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
}

// Index returns the position of the day in the grid, or -1 when unknown.
func (d Weekday) Index() int {
	if idx, ok := weekdayIndex[d]; ok {
		return idx
	}
	return -1
}

// Valid reports whether d is one of the grid days.
func (d Weekday) Valid() bool {
	return d.Index() >= 0
}

// ParseWeekday resolves a day name case-insensitively.
func ParseWeekday(raw string) (Weekday, bool) {
	raw = strings.TrimSpace(raw)
	for _, day := range Weekdays {
		if strings.EqualFold(string(day), raw) {
			return day, true
		}
	}
	return Weekday(raw), false
}

// ValidPeriod reports whether p lies inside the daily period range.
func ValidPeriod(p int) bool {
	return p >= MinPeriod && p <= MaxPeriod
}

// Assignment binds a subject, teacher, room and optional student group to a slot.
type Assignment struct {
	Teacher      string  `json:"teacher"`
	Room         string  `json:"room,omitempty"`
	Subject      string  `json:"subject"`
	StudentGroup string  `json:"studentGroup,omitempty"`
	Day          Weekday `json:"day,omitempty"`
	Period       int     `json:"period,omitempty"`
}

// Cell holds the placements recorded for one (day, period) slot. An empty cell is a free period.
// More than one placement means independent placements landed on the same slot.
type Cell []Assignment

// MarshalJSON renders a free cell as null, a single placement as an object and several as an array.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch len(c) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(c[0])
	default:
		return json.Marshal([]Assignment(c))
	}
}

// UnmarshalJSON accepts null, a single assignment object or an array of assignments.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = nil
		return nil
	case trimmed[0] == '[':
		var items []Assignment
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = items
		return nil
	default:
		var item Assignment
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return err
		}
		*c = Cell{item}
		return nil
	}
}

// Schedule maps day -> period -> cell.
type Schedule map[Weekday]map[int]Cell

// NewSchedule returns an empty schedule.
func NewSchedule() Schedule {
	return make(Schedule)
}

// NewGrid returns a schedule with every day and period present as a free cell.
func NewGrid(days []Weekday, periods int) Schedule {
	s := make(Schedule, len(days))
	for _, day := range days {
		s[day] = make(map[int]Cell, periods)
		for p := MinPeriod; p <= periods; p++ {
			s[day][p] = nil
		}
	}
	return s
}

// UnmarshalJSON decodes the grid, canonicalises known day names and stamps every
// placement with the coordinates of its cell.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw map[string]map[int]Cell
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	// case variants of one day merge in key order so placement order is reproducible
	sort.Strings(names)
	out := make(Schedule, len(raw))
	for _, name := range names {
		periods := raw[name]
		day, _ := ParseWeekday(name)
		if out[day] == nil {
			out[day] = make(map[int]Cell, len(periods))
		}
		for period, cell := range periods {
			for i := range cell {
				cell[i].Day = day
				cell[i].Period = period
			}
			out[day][period] = append(out[day][period], cell...)
		}
	}
	*s = out
	return nil
}

// Assignment returns the first placement at the slot. A missing day or cell is a free period.
func (s Schedule) Assignment(day Weekday, period int) (Assignment, bool) {
	cell := s[day][period]
	if len(cell) == 0 {
		return Assignment{}, false
	}
	return cell[0], true
}

// Placements returns a copy of every placement at the slot.
func (s Schedule) Placements(day Weekday, period int) []Assignment {
	cell := s[day][period]
	if len(cell) == 0 {
		return nil
	}
	out := make([]Assignment, len(cell))
	copy(out, cell)
	return out
}

// Place appends the assignment to the cell named by its Day and Period.
func (s *Schedule) Place(a Assignment) {
	if *s == nil {
		*s = make(Schedule)
	}
	if (*s)[a.Day] == nil {
		(*s)[a.Day] = make(map[int]Cell)
	}
	(*s)[a.Day][a.Period] = append((*s)[a.Day][a.Period], a)
}

// Days returns the schedule days in grid order; unknown day keys follow, sorted by name.
func (s Schedule) Days() []Weekday {
	days := make([]Weekday, 0, len(s))
	for day := range s {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		ii, jj := days[i].Index(), days[j].Index()
		switch {
		case ii >= 0 && jj >= 0:
			return ii < jj
		case ii >= 0:
			return true
		case jj >= 0:
			return false
		default:
			return days[i] < days[j]
		}
	})
	return days
}

// Periods returns the period keys present for the day in ascending order.
func (s Schedule) Periods(day Weekday) []int {
	periods := make([]int, 0, len(s[day]))
	for p := range s[day] {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	return periods
}

// CellCount counts every (day, period) cell present, free ones included.
func (s Schedule) CellCount() int {
	total := 0
	for _, periods := range s {
		total += len(periods)
	}
	return total
}

// AssignmentCount counts placements across the whole grid.
func (s Schedule) AssignmentCount() int {
	total := 0
	for _, periods := range s {
		for _, cell := range periods {
			total += len(cell)
		}
	}
	return total
}

// Each visits every placement in day, period, insertion order.
func (s Schedule) Each(fn func(day Weekday, period int, a Assignment)) {
	for _, day := range s.Days() {
		for _, period := range s.Periods(day) {
			for _, a := range s[day][period] {
				fn(day, period, a)
			}
		}
	}
}

// Clone returns a deep copy so callers never share mutable cells.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for day, periods := range s {
		out[day] = make(map[int]Cell, len(periods))
		for period, cell := range periods {
			if cell == nil {
				out[day][period] = nil
				continue
			}
			copied := make(Cell, len(cell))
			copy(copied, cell)
			out[day][period] = copied
		}
	}
	return out
}

// ScheduleValidationError describes a structurally invalid schedule.
type ScheduleValidationError struct {
	Day    Weekday `json:"day,omitempty"`
	Period int     `json:"period,omitempty"`
	Reason string  `json:"reason"`
}

// Error implements the error interface.
func (e *ScheduleValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Period != 0 {
		return fmt.Sprintf("%s %d: %s", e.Day, e.Period, e.Reason)
	}
	if e.Day != "" {
		return fmt.Sprintf("%s: %s", e.Day, e.Reason)
	}
	return e.Reason
}

// Validate checks the grid shape: known days, periods in range and placements carrying
// a teacher and a subject.
func (s Schedule) Validate() error {
	for _, day := range s.Days() {
		if !day.Valid() {
			return &ScheduleValidationError{Day: day, Reason: "unknown weekday"}
		}
		for _, period := range s.Periods(day) {
			if !ValidPeriod(period) {
				return &ScheduleValidationError{Day: day, Period: period, Reason: fmt.Sprintf("period must be between %d and %d", MinPeriod, MaxPeriod)}
			}
			for _, a := range s[day][period] {
				if strings.TrimSpace(a.Teacher) == "" {
					return &ScheduleValidationError{Day: day, Period: period, Reason: "assignment is missing a teacher"}
				}
				if strings.TrimSpace(a.Subject) == "" {
					return &ScheduleValidationError{Day: day, Period: period, Reason: "assignment is missing a subject"}
				}
			}
		}
	}
	return nil
}
