package planner

import (
	"strings"

	"github.com/imkarma/crew/internal/graph"
)

var (
	modifyWords   = []string{"수정", "변경"}
	todoWords     = []string{"할일", "todo"}
	scheduleWords = []string{"일정", "스케줄"}
	reviewWords   = []string{"검토"}
	doneWords     = []string{"완료", "종료"}
)

// Route picks the node a revision request leads to. Matching is a
// case-insensitive substring test and modification requests are checked
// first.
func Route(input string) string {
	in := strings.ToLower(input)
	switch {
	case containsAny(in, modifyWords):
		switch {
		case containsAny(in, todoWords):
			return NodeGenerateTodos
		case containsAny(in, scheduleWords):
			return NodeRecommendSchedule
		default:
			return NodeReviewPlan
		}
	case containsAny(in, reviewWords):
		return NodeReviewPlan
	case containsAny(in, doneWords):
		return NodeFinalOutput
	default:
		return NodeReviewPlan
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// afterReview halts unless there is a revision to process.
func afterReview(s State) string {
	if strings.TrimSpace(s.HumanInput) != "" {
		return NodeProcessHumanInput
	}
	return graph.End
}

func afterHumanInput(s State) string {
	if s.Next == "" {
		return NodeReviewPlan
	}
	return s.Next
}
