// Package planner runs the goal → TODO → schedule → review pipeline and
// the revision loop around it.
package planner

import (
	"github.com/imkarma/crew/internal/agent"
	agentctx "github.com/imkarma/crew/internal/context"
)

// Shared plan types.
type (
	Task          = agentctx.Task
	AreaTodos     = agentctx.AreaTodos
	Schedule      = agentctx.Schedule
	ScheduledTask = agentctx.ScheduledTask
	ReviewResult  = agent.ReviewResult
	Suggestion    = agent.Suggestion
)

// Node names.
const (
	NodeAnalyzeGoal       = "analyze_goal"
	NodeGenerateTodos     = "generate_todos"
	NodeRecommendSchedule = "recommend_schedule"
	NodeReviewPlan        = "review_plan"
	NodeProcessHumanInput = "process_human_input"
	NodeFinalOutput       = "final_output"
)

// State is threaded through the planner graph. Context is shared by every
// copy of the state; the other fields are replaced node by node.
type State struct {
	SessionID   string       `json:"session_id" yaml:"session_id"`
	Goal        string       `json:"goal" yaml:"goal"`
	Analysis    string       `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	TaskAreas   []string     `json:"task_areas" yaml:"task_areas"`
	Todos       []AreaTodos  `json:"todos" yaml:"todos"`
	Schedule    Schedule     `json:"schedule" yaml:"schedule"`
	Review      ReviewResult `json:"review" yaml:"review"`
	CurrentNode string       `json:"current_node" yaml:"current_node"`
	HumanInput  string       `json:"human_input,omitempty" yaml:"human_input,omitempty"`
	Output      string       `json:"output" yaml:"output"`
	Next        string       `json:"next,omitempty" yaml:"next,omitempty"`
	// Degraded maps an agent name to the error that made it fall back
	// during the most recent run of its node.
	Degraded map[string]string `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	Context *agentctx.Store `json:"-" yaml:"-"`
}

// NewState returns the initial state for goal.
func NewState(sessionID, goal string, store *agentctx.Store) State {
	return State{
		SessionID: sessionID,
		Goal:      goal,
		Context:   store,
	}
}

// Finished reports whether the plan reached its final output.
func (s State) Finished() bool { return s.CurrentNode == NodeFinalOutput }

// AwaitingInput reports whether the pipeline halted after a review and can
// take a revision.
func (s State) AwaitingInput() bool { return s.CurrentNode == NodeReviewPlan }

func (s State) withDegraded(name string, cause error) State {
	m := make(map[string]string, len(s.Degraded)+1)
	for k, v := range s.Degraded {
		m[k] = v
	}
	if cause != nil {
		m[name] = cause.Error()
	} else {
		delete(m, name)
	}
	if len(m) == 0 {
		m = nil
	}
	s.Degraded = m
	return s
}
