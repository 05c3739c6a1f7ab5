// Package context keeps the shared state a planning session builds up:
// goal, task areas, TODOs, schedule and the conversation history. Agents
// read it through Snapshot, which only exposes the most recent history.
package context

import "time"

// Roles used in history entries.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Task is one TODO item inside a task area.
type Task struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	DurationDays int    `json:"duration_days" yaml:"duration_days"`
}

// AreaTodos is the ordered TODO list of one task area.
type AreaTodos struct {
	Area  string `json:"area" yaml:"area"`
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// ScheduledTask places a task on the calendar relative to the schedule start.
type ScheduledTask struct {
	Title          string `json:"title" yaml:"title"`
	Area           string `json:"area" yaml:"area"`
	DurationDays   int    `json:"duration_days" yaml:"duration_days"`
	StartDayOffset int    `json:"start_day_offset" yaml:"start_day_offset"`
}

// Schedule is the recommended calendar. A zero StartDate means no schedule.
type Schedule struct {
	StartDate time.Time       `json:"start_date" yaml:"start_date"`
	EndDate   time.Time       `json:"end_date" yaml:"end_date"`
	Tasks     []ScheduledTask `json:"tasks" yaml:"tasks"`
}

// IsZero reports whether no schedule has been set.
func (s Schedule) IsZero() bool { return s.StartDate.IsZero() }

// TotalDays sums task durations.
func (s Schedule) TotalDays() int {
	total := 0
	for _, t := range s.Tasks {
		total += t.DurationDays
	}
	return total
}

// Entry is one line of conversation history.
type Entry struct {
	Role      string    `json:"role" yaml:"role"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Snapshot is a read-only copy of the store handed to agents.
type Snapshot struct {
	Goal      string
	TaskAreas []string
	Todos     []AreaTodos
	Schedule  Schedule
	History   []Entry // most recent entries only, oldest first
}

// Data is the complete persisted form of a store, used to save and
// restore sessions.
type Data struct {
	Goal      string      `json:"goal" yaml:"goal"`
	TaskAreas []string    `json:"task_areas" yaml:"task_areas"`
	Todos     []AreaTodos `json:"todos" yaml:"todos"`
	Schedule  Schedule    `json:"schedule" yaml:"schedule"`
	History   []Entry     `json:"history" yaml:"history"`
}
