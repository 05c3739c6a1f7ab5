package context

import (
	"fmt"
	"strings"
)

const dateLayout = "2006-01-02"

// FormatTodos renders the TODO lists as markdown checklists, one section
// per area.
func (s *Store) FormatTodos() string {
	return FormatTodos(s.Todos())
}

// FormatSchedule renders the schedule as markdown.
func (s *Store) FormatSchedule() string {
	return FormatSchedule(s.Schedule())
}

// FormatHistory renders the full history as a markdown list.
func (s *Store) FormatHistory() string {
	return FormatHistory(s.History())
}

// FormatTodos renders todos the same way Store.FormatTodos does.
func FormatTodos(todos []AreaTodos) string {
	if len(todos) == 0 {
		return "No tasks yet."
	}

	var sb strings.Builder
	for _, area := range todos {
		sb.WriteString("### " + area.Area + "\n")
		for _, t := range area.Tasks {
			sb.WriteString(fmt.Sprintf("- [ ] %s (%s)\n", t.Title, dayCount(t.DurationDays)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSchedule lays tasks out back to back from the start date: each
// task occupies DurationDays days and the next one starts the day after.
func FormatSchedule(sched Schedule) string {
	if sched.IsZero() {
		return "No schedule yet."
	}

	var sb strings.Builder
	sb.WriteString("### Recommended schedule\n")
	sb.WriteString("- Start: " + sched.StartDate.Format(dateLayout) + "\n")
	sb.WriteString("- End: " + sched.EndDate.Format(dateLayout) + "\n")
	sb.WriteString("\n")

	cur := sched.StartDate
	lines := make([]string, 0, len(sched.Tasks))
	for _, t := range sched.Tasks {
		end := cur.AddDate(0, 0, t.DurationDays-1)
		lines = append(lines, fmt.Sprintf("- %s ~ %s: %s", cur.Format(dateLayout), end.Format(dateLayout), t.Title))
		cur = end.AddDate(0, 0, 1)
	}
	sb.WriteString(strings.Join(lines, "\n"))
	return sb.String()
}

// FormatHistory renders entries as "- **[role]** message" lines.
func FormatHistory(entries []Entry) string {
	if len(entries) == 0 {
		return "No history yet."
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- **[%s]** %s %s\n", e.Role, e.Timestamp.Format("15:04:05"), e.Message))
	}
	return sb.String()
}

func dayCount(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
