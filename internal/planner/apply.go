package planner

import (
	"fmt"

	"github.com/imkarma/crew/internal/agent"
	agentctx "github.com/imkarma/crew/internal/context"
)

// ApplySuggestions applies review suggestions to the session's TODO list,
// matching tasks by area and title. It returns the updated state and how
// many suggestions took effect. The schedule is left as is; revise it with
// a schedule change request afterwards.
func ApplySuggestions(s State, suggestions []Suggestion) (State, int) {
	if s.Context == nil {
		return s, 0
	}

	applied := 0
	for _, sg := range suggestions {
		if applySuggestion(s.Context, sg) {
			applied++
		}
	}
	if applied > 0 {
		s.Context.AddToHistory(agentctx.RoleSystem, fmt.Sprintf("Applied %d review suggestion(s)", applied))
	}
	s.Todos = s.Context.Todos()
	return s, applied
}

func applySuggestion(store *agentctx.Store, sg Suggestion) bool {
	switch sg.Type {
	case agent.SuggestAdd:
		if sg.Task == nil || sg.Task.Title == "" {
			return false
		}
		t := *sg.Task
		t.ID = ""
		if t.DurationDays <= 0 {
			t.DurationDays = 1
		}
		store.AddTodo(sg.Area, t)
		return true
	case agent.SuggestRemove:
		return store.RemoveTodo(sg.Area, sg.TaskTitle)
	case agent.SuggestModifyDuration:
		if sg.NewDuration <= 0 {
			return false
		}
		return store.SetTodoDuration(sg.Area, sg.TaskTitle, sg.NewDuration)
	default:
		return false
	}
}
