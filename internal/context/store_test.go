package context

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imkarma/crew/internal/clock"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testStore() *Store {
	return New(WithClock(clock.Fixed(day0)))
}

func TestMutationsAppendOneEntryEach(t *testing.T) {
	s := testStore()

	s.SetGoal("Build a portfolio site")
	s.SetTaskAreas([]string{"Design", "Build"})
	s.AddTodo("Design", Task{Title: "Wireframes", DurationDays: 2})
	s.SetSchedule(day0, []ScheduledTask{{Title: "Wireframes", Area: "Design", DurationDays: 2}})
	s.AddToHistory(RoleUser, "looks good")
	s.ResetTodos()

	h := s.History()
	if len(h) != 6 {
		t.Fatalf("expected 6 history entries, got %d", len(h))
	}
	if h[0].Role != RoleUser || h[0].Message != "Goal set: Build a portfolio site" {
		t.Errorf("entry 0: %+v", h[0])
	}
	if h[1].Message != "Task areas set: Design, Build" {
		t.Errorf("entry 1: %q", h[1].Message)
	}
	if h[2].Message != "Todo added (Design): Wireframes" {
		t.Errorf("entry 2: %q", h[2].Message)
	}
	if h[3].Message != "Schedule set: 2024-03-01 to 2024-03-03" {
		t.Errorf("entry 3: %q", h[3].Message)
	}
	if !h[4].Timestamp.Equal(day0) {
		t.Errorf("timestamp should come from the clock, got %v", h[4].Timestamp)
	}
}

func TestSnapshotHistoryIsCapped(t *testing.T) {
	s := testStore()
	for i := 0; i < 8; i++ {
		s.AddToHistory(RoleUser, fmt.Sprintf("m%d", i))
	}

	snap := s.Snapshot()
	if len(snap.History) != 5 {
		t.Fatalf("expected 5 entries in snapshot, got %d", len(snap.History))
	}
	if snap.History[0].Message != "m3" || snap.History[4].Message != "m7" {
		t.Errorf("snapshot should hold the most recent entries oldest first: %+v", snap.History)
	}
	if len(s.History()) != 8 {
		t.Errorf("full history must be preserved, got %d", len(s.History()))
	}
}

func TestSnapshotShortHistory(t *testing.T) {
	s := testStore()
	s.AddToHistory(RoleUser, "only")
	if got := len(s.Snapshot().History); got != 1 {
		t.Errorf("expected 1 entry, got %d", got)
	}
}

func TestWithHistoryLimit(t *testing.T) {
	s := New(WithHistoryLimit(2))
	for i := 0; i < 4; i++ {
		s.AddToHistory(RoleSystem, "x")
	}
	if got := len(s.Snapshot().History); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := testStore()
	s.SetTaskAreas([]string{"A"})
	s.AddTodo("A", Task{Title: "t1", DurationDays: 1})

	snap := s.Snapshot()
	snap.TaskAreas[0] = "mutated"
	snap.Todos[0].Tasks[0].Title = "mutated"

	again := s.Snapshot()
	if again.TaskAreas[0] != "A" || again.Todos[0].Tasks[0].Title != "t1" {
		t.Errorf("snapshot mutation leaked into the store: %+v", again)
	}
}

func TestAddTodoAssignsIDAndKeepsAreaOrder(t *testing.T) {
	s := testStore()
	a := s.AddTodo("Zeta", Task{Title: "z1"})
	s.AddTodo("Alpha", Task{Title: "a1"})
	s.AddTodo("Zeta", Task{Title: "z2", ID: "fixed"})

	if a.ID == "" {
		t.Error("expected generated ID")
	}
	todos := s.Todos()
	if len(todos) != 2 || todos[0].Area != "Zeta" || todos[1].Area != "Alpha" {
		t.Fatalf("areas out of insertion order: %+v", todos)
	}
	if todos[0].Tasks[1].ID != "fixed" {
		t.Errorf("explicit ID should be kept, got %q", todos[0].Tasks[1].ID)
	}
}

func TestSetScheduleEndDate(t *testing.T) {
	s := testStore()
	sched := s.SetSchedule(day0, []ScheduledTask{
		{Title: "a", DurationDays: 1},
		{Title: "b", DurationDays: 2},
		{Title: "c", DurationDays: 1},
	})

	want := day0.AddDate(0, 0, 4)
	if !sched.EndDate.Equal(want) {
		t.Errorf("end date: got %v, want %v", sched.EndDate, want)
	}
	if !s.Schedule().EndDate.Equal(want) {
		t.Errorf("stored end date: got %v", s.Schedule().EndDate)
	}
}

func TestRemoveAndModifyTodo(t *testing.T) {
	s := testStore()
	s.AddTodo("A", Task{Title: "keep", DurationDays: 1})
	s.AddTodo("A", Task{Title: "drop", DurationDays: 1})

	if !s.RemoveTodo("A", "drop") {
		t.Fatal("RemoveTodo should find the task")
	}
	if s.RemoveTodo("A", "drop") {
		t.Error("second RemoveTodo should report false")
	}
	if s.RemoveTodo("Missing", "keep") {
		t.Error("RemoveTodo on unknown area should report false")
	}
	if !s.SetTodoDuration("A", "keep", 3) {
		t.Fatal("SetTodoDuration should find the task")
	}

	todos := s.Todos()
	if len(todos[0].Tasks) != 1 || todos[0].Tasks[0].DurationDays != 3 {
		t.Errorf("unexpected todos: %+v", todos)
	}
	last := s.History()[len(s.History())-1]
	if last.Message != "Todo duration changed (A): keep -> 3 days" {
		t.Errorf("history: %q", last.Message)
	}
}

func TestExportRestore(t *testing.T) {
	s := testStore()
	s.SetGoal("g")
	s.SetTaskAreas([]string{"A"})
	s.AddTodo("A", Task{Title: "t", DurationDays: 2})
	s.SetSchedule(day0, []ScheduledTask{{Title: "t", Area: "A", DurationDays: 2}})

	data := s.Export()
	other := New()
	other.Restore(data)

	if other.Goal() != "g" || len(other.History()) != len(s.History()) {
		t.Errorf("restore lost data: goal=%q history=%d", other.Goal(), len(other.History()))
	}
	if other.FormatSchedule() != s.FormatSchedule() {
		t.Errorf("schedules differ after restore")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := testStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.AddTodo("A", Task{Title: fmt.Sprintf("t%d", i), DurationDays: 1})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
			_ = s.FormatTodos()
		}()
	}
	wg.Wait()

	if got := len(s.Todos()[0].Tasks); got != 20 {
		t.Errorf("expected 20 tasks, got %d", got)
	}
}

func TestFormatHistory(t *testing.T) {
	s := testStore()
	if s.FormatHistory() != "No history yet." {
		t.Errorf("empty history: %q", s.FormatHistory())
	}
	s.AddToHistory(RoleUser, "hello")
	if !strings.Contains(s.FormatHistory(), "- **[user]** 00:00:00 hello") {
		t.Errorf("got %q", s.FormatHistory())
	}
}
