package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPromptIDsRegistered(t *testing.T) {
	ids := []PromptID{
		TaskAreasSystem, TaskAreasUser, TodosSystem, TodosUser,
		ScheduleSystem, ScheduleUser, ReviewSystem, ReviewUser,
		RequirementAnalysisSystem, RequirementAnalysisUser,
		RequirementValidationSystem, RequirementValidationUser,
		ServiceFlowSystem, ServiceFlowUser, APISpecSystem, APISpecUser,
		APIValidationSystem, APIValidationUser,
		AnswerSystem, AnswerUser,
	}
	registered := make(map[PromptID]bool)
	for _, id := range List() {
		registered[id] = true
	}
	for _, id := range ids {
		assert.True(t, registered[id], "missing template %s", id)
	}
	assert.Len(t, List(), len(ids), "common templates must not be listed")
}

func TestRender_UnknownID(t *testing.T) {
	_, err := Render("nope/missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestRender_ExecutionError(t *testing.T) {
	// ScheduleData has no History field.
	_, err := Render(TaskAreasUser, ScheduleData{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateExecution))
}

func TestRender_TaskAreas(t *testing.T) {
	sys, usr, err := Pair(TaskAreasSystem, TaskAreasUser, GoalData{
		Goal: "Build a portfolio website in two weeks",
		History: []HistoryLine{
			{Role: "user", Message: "set goal"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, sys, `"task_areas"`)
	assert.Contains(t, sys, "single JSON object")
	assert.Contains(t, usr, "Build a portfolio website in two weeks")
	assert.Contains(t, usr, "- [user] set goal")
}

func TestRender_TodosListsAreas(t *testing.T) {
	out, err := Render(TodosUser, TodosData{
		Goal:      "Ship it",
		TaskAreas: []string{"Design", "Build"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- Design\n- Build")
	assert.NotContains(t, out, "Recent conversation")
}

func TestRender_Schedule(t *testing.T) {
	out, err := Render(ScheduleUser, ScheduleData{
		Goal:         "Ship it",
		DurationDays: 12,
		TodosJSON:    `{"Build":[]}`,
		Today:        "2024-03-01",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Target duration: 12 days")
	assert.Contains(t, out, "today (2024-03-01)")
	assert.Contains(t, out, `{"Build":[]}`)
}

func TestRender_ServiceFlowOmitsEmptyFeedback(t *testing.T) {
	out, err := Render(ServiceFlowUser, SpecData{RequirementSpec: "REQ"})
	require.NoError(t, err)
	assert.Contains(t, out, "REQ")
	assert.NotContains(t, out, "Validation feedback")

	out, err = Render(ServiceFlowUser, SpecData{RequirementSpec: "REQ", ValidationFeedback: "FB"})
	require.NoError(t, err)
	assert.Contains(t, out, "Validation feedback:\nFB")
}

func TestRender_AnswerNumbersPassages(t *testing.T) {
	out, err := Render(AnswerUser, AnswerData{
		Question: "What is the budget?",
		Passages: []Passage{
			{Source: "plan.md", Score: 0.91234, Text: "Budget is 10k."},
			{Source: "notes.md", Score: 0.5, Text: "Misc."},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "[1] source: plan.md (score 0.912)")
	assert.Contains(t, out, "[2] source: notes.md (score 0.500)")
	assert.True(t, strings.HasPrefix(out, "Question: What is the budget?"))
}

func TestRender_AnswerWithoutPassages(t *testing.T) {
	out, err := Render(AnswerUser, AnswerData{Question: "q"})
	require.NoError(t, err)
	assert.Contains(t, out, "(no passages were retrieved)")
}

func TestSource(t *testing.T) {
	src, err := Source(ReviewSystem)
	require.NoError(t, err)
	assert.Contains(t, src, "modify_duration")
}
