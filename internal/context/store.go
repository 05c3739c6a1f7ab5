package context

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imkarma/crew/internal/clock"
)

// DefaultHistoryLimit is how many history entries Snapshot exposes.
const DefaultHistoryLimit = 5

// Store holds the state of one planning session. Every mutation appends
// exactly one history entry. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	clock    clock.Clock
	limit    int
	goal     string
	areas    []string
	todos    []AreaTodos
	schedule Schedule
	history  []Entry
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for history timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithHistoryLimit sets how many entries Snapshot exposes.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock: clock.RealClock{},
		limit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetGoal records the user's goal.
func (s *Store) SetGoal(goal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goal = goal
	s.appendLocked(RoleUser, "Goal set: "+goal)
}

// SetTaskAreas replaces the task areas.
func (s *Store) SetTaskAreas(areas []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas = append([]string(nil), areas...)
	s.appendLocked(RoleSystem, "Task areas set: "+strings.Join(areas, ", "))
}

// AddTodo appends a task to an area, creating the area if needed. A task
// without an ID gets a fresh one. The stored task is returned.
func (s *Store) AddTodo(area string, task Task) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	i := s.areaIndexLocked(area)
	if i < 0 {
		s.todos = append(s.todos, AreaTodos{Area: area})
		i = len(s.todos) - 1
	}
	s.todos[i].Tasks = append(s.todos[i].Tasks, task)
	s.appendLocked(RoleSystem, fmt.Sprintf("Todo added (%s): %s", area, task.Title))
	return task
}

// ResetTodos clears every TODO so a regenerated list replaces the old one.
func (s *Store) ResetTodos() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos = nil
	s.appendLocked(RoleSystem, "Todos cleared")
}

// RemoveTodo deletes the first task titled title in area.
func (s *Store) RemoveTodo(area, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ai := s.areaIndexLocked(area)
	if ai < 0 {
		return false
	}
	tasks := s.todos[ai].Tasks
	for i, t := range tasks {
		if t.Title == title {
			s.todos[ai].Tasks = append(tasks[:i:i], tasks[i+1:]...)
			s.appendLocked(RoleSystem, fmt.Sprintf("Todo removed (%s): %s", area, title))
			return true
		}
	}
	return false
}

// SetTodoDuration changes the duration of the first task titled title in area.
func (s *Store) SetTodoDuration(area, title string, days int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ai := s.areaIndexLocked(area)
	if ai < 0 {
		return false
	}
	for i := range s.todos[ai].Tasks {
		if s.todos[ai].Tasks[i].Title == title {
			s.todos[ai].Tasks[i].DurationDays = days
			s.appendLocked(RoleSystem, fmt.Sprintf("Todo duration changed (%s): %s -> %s", area, title, dayCount(days)))
			return true
		}
	}
	return false
}

// SetSchedule stores the schedule. The end date is start plus the sum of
// task durations.
func (s *Store) SetSchedule(start time.Time, tasks []ScheduledTask) Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched := Schedule{
		StartDate: start,
		Tasks:     append([]ScheduledTask(nil), tasks...),
	}
	sched.EndDate = start.AddDate(0, 0, sched.TotalDays())
	s.schedule = sched
	s.appendLocked(RoleSystem, fmt.Sprintf("Schedule set: %s to %s",
		sched.StartDate.Format(dateLayout), sched.EndDate.Format(dateLayout)))
	return sched
}

// AddToHistory appends a free-form entry.
func (s *Store) AddToHistory(role, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(role, message)
}

// Snapshot returns a copy of the state with only the most recent history.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.history
	if len(recent) > s.limit {
		recent = recent[len(recent)-s.limit:]
	}
	return Snapshot{
		Goal:      s.goal,
		TaskAreas: append([]string(nil), s.areas...),
		Todos:     copyTodos(s.todos),
		Schedule:  copySchedule(s.schedule),
		History:   append([]Entry(nil), recent...),
	}
}

// History returns the full history, oldest first.
func (s *Store) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.history...)
}

// Goal returns the current goal.
func (s *Store) Goal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goal
}

// Todos returns a copy of the TODO lists in area order.
func (s *Store) Todos() []AreaTodos {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTodos(s.todos)
}

// Schedule returns a copy of the current schedule.
func (s *Store) Schedule() Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySchedule(s.schedule)
}

// Export returns everything needed to rebuild the store.
func (s *Store) Export() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Data{
		Goal:      s.goal,
		TaskAreas: append([]string(nil), s.areas...),
		Todos:     copyTodos(s.todos),
		Schedule:  copySchedule(s.schedule),
		History:   append([]Entry(nil), s.history...),
	}
}

// Restore replaces the store contents with d. It does not add history.
func (s *Store) Restore(d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goal = d.Goal
	s.areas = append([]string(nil), d.TaskAreas...)
	s.todos = copyTodos(d.Todos)
	s.schedule = copySchedule(d.Schedule)
	s.history = append([]Entry(nil), d.History...)
}

func (s *Store) appendLocked(role, message string) {
	s.history = append(s.history, Entry{
		Role:      role,
		Message:   message,
		Timestamp: s.clock.Now(),
	})
}

func (s *Store) areaIndexLocked(area string) int {
	for i, a := range s.todos {
		if a.Area == area {
			return i
		}
	}
	return -1
}

func copyTodos(in []AreaTodos) []AreaTodos {
	if in == nil {
		return nil
	}
	out := make([]AreaTodos, len(in))
	for i, a := range in {
		out[i] = AreaTodos{Area: a.Area, Tasks: append([]Task(nil), a.Tasks...)}
	}
	return out
}

func copySchedule(s Schedule) Schedule {
	s.Tasks = append([]ScheduledTask(nil), s.Tasks...)
	return s
}
