package context

import (
	"strings"
	"testing"
)

func TestFormatTodos_Empty(t *testing.T) {
	if got := testStore().FormatTodos(); got != "No tasks yet." {
		t.Errorf("got %q", got)
	}
}

func TestFormatTodos(t *testing.T) {
	s := testStore()
	s.AddTodo("Design", Task{Title: "Wireframes", DurationDays: 2})
	s.AddTodo("Design", Task{Title: "Mockups", DurationDays: 1})
	s.AddTodo("Build", Task{Title: "Scaffold", DurationDays: 3})

	want := "### Design\n" +
		"- [ ] Wireframes (2 days)\n" +
		"- [ ] Mockups (1 day)\n" +
		"\n" +
		"### Build\n" +
		"- [ ] Scaffold (3 days)\n" +
		"\n"
	if got := s.FormatTodos(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatSchedule_Empty(t *testing.T) {
	if got := testStore().FormatSchedule(); got != "No schedule yet." {
		t.Errorf("got %q", got)
	}
}

func TestFormatSchedule_Contiguous(t *testing.T) {
	s := testStore()
	s.SetSchedule(day0, []ScheduledTask{
		{Title: "Plan", DurationDays: 1},
		{Title: "Build", DurationDays: 3},
		{Title: "Ship", DurationDays: 2},
	})

	got := s.FormatSchedule()
	wantLines := []string{
		"### Recommended schedule",
		"- Start: 2024-03-01",
		"- End: 2024-03-07",
		"",
		"- 2024-03-01 ~ 2024-03-01: Plan",
		"- 2024-03-02 ~ 2024-03-04: Build",
		"- 2024-03-05 ~ 2024-03-06: Ship",
	}
	if got != strings.Join(wantLines, "\n") {
		t.Errorf("got:\n%s", got)
	}
}

func TestFormatSchedule_CrossesMonth(t *testing.T) {
	s := testStore()
	start := day0.AddDate(0, 0, 28) // 2024-03-29
	s.SetSchedule(start, []ScheduledTask{{Title: "Long", DurationDays: 5}})

	if !strings.Contains(s.FormatSchedule(), "- 2024-03-29 ~ 2024-04-02: Long") {
		t.Errorf("got:\n%s", s.FormatSchedule())
	}
}
