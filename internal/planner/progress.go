package planner

import (
	"strings"

	"github.com/imkarma/crew/internal/graph"
)

// EventSink stores session events. *store.Store satisfies it.
type EventSink interface {
	AddEvent(sessionID, agent, eventType, content string)
}

var nodeAgents = map[string]string{
	NodeAnalyzeGoal:       "task_planner",
	NodeGenerateTodos:     "todo_generator",
	NodeRecommendSchedule: "scheduler",
	NodeReviewPlan:        "reviewer",
}

var nodeLabels = map[string]string{
	NodeAnalyzeGoal:       "Task planner",
	NodeGenerateTodos:     "TODO generator",
	NodeRecommendSchedule: "Scheduler",
	NodeReviewPlan:        "Reviewer",
	NodeProcessHumanInput: "Revision",
	NodeFinalOutput:       "Final plan",
}

// NodeLabel is a display name for node.
func NodeLabel(node string) string {
	if l, ok := nodeLabels[node]; ok {
		return l
	}
	return node
}

// NodeAgent is the agent that runs node, or "" for routing nodes.
func NodeAgent(node string) string { return nodeAgents[node] }

// Recorder returns an observer that stores every completed node as a
// session event and then calls next, if set.
func Recorder(sink EventSink, next graph.Observer[State]) graph.Observer[State] {
	return func(node string, s State) {
		if sink != nil && s.SessionID != "" {
			sink.AddEvent(s.SessionID, nodeAgents[node], "node", Summary(node, s))
		}
		if next != nil {
			next(node, s)
		}
	}
}

// Summary is a one-line description of what node produced.
func Summary(node string, s State) string {
	if node == NodeProcessHumanInput {
		return node + " -> " + s.Next
	}
	line, _, _ := strings.Cut(strings.TrimSpace(s.Output), "\n")
	return node + ": " + line
}
