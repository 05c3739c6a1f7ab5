package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/clock"
	agentctx "github.com/imkarma/crew/internal/context"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/llm/llmtest"
	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/store"
)

var now = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func newModel(t *testing.T, st *store.Store) Model {
	t.Helper()
	m, err := New(Options{
		Deps:      agent.Deps{Client: llmtest.New(), Logger: zerolog.Nop(), Clock: clock.Fixed(now)},
		Store:     st,
		ExportDir: t.TempDir(),
	})
	require.NoError(t, err)
	return m
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func finishedState(goal string) planner.State {
	ctx := agentctx.New(agentctx.WithClock(clock.Fixed(now)))
	ctx.SetGoal(goal)
	ctx.AddTodo("design", agentctx.Task{Title: "Wireframes", DurationDays: 2})
	s := planner.NewState("s-1", goal, ctx)
	s.CurrentNode = planner.NodeFinalOutput
	s.Output = planner.FinalDocument(ctx)
	return s
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestGoal_EmptyIsRejected(t *testing.T) {
	m := newModel(t, nil)
	m, cmd := send(m, key("enter"))
	assert.Nil(t, cmd)
	assert.Equal(t, screenGoal, m.screen)
	assert.True(t, m.statusErr)
}

func TestGoal_StartsSession(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "crew.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := newModel(t, st)
	m.goalInput.SetValue("  portfolio site  ")
	m, cmd := send(m, key("enter"))
	assert.NotNil(t, cmd)
	assert.Equal(t, screenRunning, m.screen)
	assert.Equal(t, "portfolio site", m.goal)
	require.NotNil(t, m.session)

	sessions, err := st.ListSessions(store.KindPlan)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "portfolio site", sessions[0].Title)
}

func TestProgress_AppendsTranscript(t *testing.T) {
	m := newModel(t, nil)
	m.screen = screenRunning

	m, cmd := send(m, progressMsg{node: planner.NodeGenerateTodos, output: "Generated the TODO list:"})
	assert.NotNil(t, cmd, "keeps listening for progress")
	require.Len(t, m.transcript, 1)
	assert.Contains(t, m.transcript[0].content, "TODO generator")

	m, _ = send(m, progressMsg{node: planner.NodeProcessHumanInput, output: "Generated the TODO list:"})
	assert.Len(t, m.transcript, 1, "routing step adds no message")
}

func TestRunDone_ReviewThenResult(t *testing.T) {
	m := newModel(t, nil)
	m.screen = screenRunning

	s := finishedState("portfolio")
	s.CurrentNode = planner.NodeReviewPlan
	m, _ = send(m, runDoneMsg{state: s})
	assert.Equal(t, screenReview, m.screen)

	m.feedbackInput.SetValue("완료")
	m, cmd := send(m, key("enter"))
	assert.NotNil(t, cmd)
	assert.Equal(t, screenRunning, m.screen)
	require.NotEmpty(t, m.transcript)
	assert.Equal(t, "user", m.transcript[len(m.transcript)-1].role)

	m, _ = send(m, runDoneMsg{state: finishedState("portfolio")})
	assert.Equal(t, screenResult, m.screen)
	assert.Contains(t, m.viewport.View(), "Wireframes")
}

func TestRunDone_ErrorReturnsToGoal(t *testing.T) {
	m := newModel(t, nil)
	m.screen = screenRunning
	m, _ = send(m, runDoneMsg{err: errors.New("boom")})
	assert.Equal(t, screenGoal, m.screen)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "boom")
}

func TestResult_SaveMarkdown(t *testing.T) {
	m := newModel(t, nil)
	m, _ = send(m, runDoneMsg{state: finishedState("portfolio")})
	require.Equal(t, screenResult, m.screen)

	_, cmd := send(m, key("s"))
	require.NotNil(t, cmd)
	done, ok := cmd().(exportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, "todo_plan_20250310_143000.md", filepath.Base(done.path))

	data, err := os.ReadFile(done.path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "### Goal: portfolio"))

	m, _ = send(m, done)
	assert.Contains(t, m.statusMsg, "Saved to")
}

func TestResult_NewGoalResets(t *testing.T) {
	m := newModel(t, nil)
	m, _ = send(m, runDoneMsg{state: finishedState("portfolio")})
	m, _ = send(m, key("n"))
	assert.Equal(t, screenGoal, m.screen)
	assert.Empty(t, m.transcript)
	assert.Empty(t, m.goal)
}

func TestView_Screens(t *testing.T) {
	m := newModel(t, nil)
	assert.Contains(t, m.View(), "crew planner")

	m, _ = send(m, runDoneMsg{state: finishedState("portfolio")})
	assert.Contains(t, m.View(), "save markdown")

	m, _ = send(m, key("q"))
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}
