package planner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/clock"
	"github.com/imkarma/crew/internal/llm/llmtest"
	"github.com/imkarma/crew/internal/store"
)

func TestSaveLoad_ResumesRevision(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "crew.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := newPipeline(t, happyClient(), nil)
	sess, err := db.CreateSession(store.KindPlan, "portfolio")
	require.NoError(t, err)

	s := NewState(sess.ID, "portfolio", p.NewContext())
	s, err = p.Run(context.Background(), s)
	require.NoError(t, err)

	require.NoError(t, Save(sess, s))
	require.NoError(t, db.SaveSession(sess))

	loaded, err := db.GetSession(sess.ShortID())
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingInput, loaded.Status)
	assert.Equal(t, NodeReviewPlan, loaded.CurrentNode)

	p2 := newPipeline(t, happyClient(), nil)
	restored, err := p2.Load(loaded)
	require.NoError(t, err)
	assert.Equal(t, s.Goal, restored.Goal)
	assert.Equal(t, s.Todos, restored.Todos)
	assert.Equal(t, len(s.Context.History()), len(restored.Context.History()))
	assert.Equal(t, s.Context.FormatSchedule(), restored.Context.FormatSchedule())

	done, err := p2.Revise(context.Background(), restored, "완료")
	require.NoError(t, err)
	require.NoError(t, Save(loaded, done))
	assert.Equal(t, store.StatusFinished, loaded.Status)
}

func TestSave_DegradedList(t *testing.T) {
	c := scripted(llmtest.Fail("x"), llmtest.Text(todosJSON), llmtest.Text(scheduleJSON), llmtest.Fail("y"))
	s, err := newPipeline(t, c, nil).Start(context.Background(), "portfolio")
	require.NoError(t, err)

	var sess store.Session
	require.NoError(t, Save(&sess, s))
	assert.Equal(t, "reviewer,task_planner", sess.Degraded)
}

func TestLoad_WrongKind(t *testing.T) {
	p := newPipeline(t, happyClient(), nil)
	_, err := p.Load(&store.Session{ID: "abc", Kind: store.KindSpec})
	assert.Error(t, err)
}

func TestRestore_WithoutPipeline(t *testing.T) {
	p := newPipeline(t, happyClient(), nil)
	s, err := p.Start(context.Background(), "portfolio")
	require.NoError(t, err)

	sess := &store.Session{ID: s.SessionID, Kind: store.KindPlan, Title: "portfolio"}
	require.NoError(t, Save(sess, s))

	restored, err := Restore(sess)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, restored.SessionID)
	assert.Equal(t, s.Context.Todos(), restored.Context.Todos())
	assert.Equal(t, Document(s), Document(restored))
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "todo_plan_20250310_143005.md", ExportFileName(at))
}

func TestExport(t *testing.T) {
	p := newPipeline(t, happyClient(), nil)
	s, err := p.Start(context.Background(), "portfolio")
	require.NoError(t, err)
	dir := t.TempDir()

	path, err := Export(s, "", dir, runDate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ExportFileName(runDate)), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "### Goal: portfolio"))

	done, err := p.Finish(context.Background(), s)
	require.NoError(t, err)
	custom := filepath.Join(dir, "out", "plan.md")
	path, err = Export(done, custom, "", runDate)
	require.NoError(t, err)
	assert.Equal(t, custom, path)
	data, err = os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, done.Output, string(data))
}

func TestExportYAML(t *testing.T) {
	p := newPipeline(t, happyClient(), nil)
	s, err := p.Start(context.Background(), "portfolio")
	require.NoError(t, err)
	dir := t.TempDir()

	path, err := ExportYAML(s, "", dir, runDate)
	require.NoError(t, err)
	assert.Equal(t, "todo_plan_20250512_090000.yaml", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec record
	require.NoError(t, yaml.Unmarshal(data, &rec))
	assert.Equal(t, "portfolio", rec.State.Goal)
	assert.Equal(t, NodeReviewPlan, rec.State.CurrentNode)
	assert.Equal(t, s.Context.Todos(), rec.Context.Todos)
	assert.NotEmpty(t, rec.Context.History)
}

func TestExport_Empty(t *testing.T) {
	_, err := Export(State{SessionID: "s1"}, "", t.TempDir(), runDate)
	assert.Error(t, err)
}

func TestRecorder_StoresNodeEvents(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "crew.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sess, err := db.CreateSession(store.KindPlan, "portfolio")
	require.NoError(t, err)

	var seen []string
	p, err := New(Options{
		Deps:     agent.Deps{Client: happyClient(), Logger: zerolog.Nop(), Clock: clock.Fixed(runDate)},
		Observer: Recorder(db, func(node string, _ State) { seen = append(seen, node) }),
	})
	require.NoError(t, err)

	_, err = p.StartSession(context.Background(), sess.ID, "portfolio")
	require.NoError(t, err)
	assert.Equal(t, []string{NodeAnalyzeGoal, NodeGenerateTodos, NodeRecommendSchedule, NodeReviewPlan}, seen)

	events, err := db.GetEvents(sess.ID)
	require.NoError(t, err)
	var nodes []store.Event
	for _, e := range events {
		if e.Type == "node" {
			nodes = append(nodes, e)
		}
	}
	require.Len(t, nodes, 4)
	assert.Equal(t, "task_planner", nodes[0].Agent)
	assert.True(t, strings.HasPrefix(nodes[1].Content, "generate_todos: Generated the TODO list:"))
	assert.Equal(t, "reviewer", nodes[3].Agent)
}

func TestNodeLabel(t *testing.T) {
	assert.Equal(t, "Scheduler", NodeLabel(NodeRecommendSchedule))
	assert.Equal(t, "custom", NodeLabel("custom"))
	assert.Equal(t, "reviewer", NodeAgent(NodeReviewPlan))
	assert.Empty(t, NodeAgent(NodeProcessHumanInput))
}
