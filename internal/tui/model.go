// Package tui is the interactive planner: enter a goal, watch each agent
// finish, revise the plan in conversation and save the result.
package tui

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/clock"
	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/store"
)

// screen represents which step of the session the TUI is on.
type screen int

const (
	screenGoal    screen = iota // Goal entry
	screenRunning               // Agents working
	screenReview                // Review and revision input
	screenResult                // Final plan
)

// entry is one transcript message.
type entry struct {
	role    string // "assistant" or "user"
	content string
}

// Options configure the TUI.
type Options struct {
	Deps      agent.Deps
	Planner   planner.Options
	Store     *store.Store // optional; sessions are persisted when set
	ExportDir string
}

// Model is the top-level bubbletea model.
type Model struct {
	pipeline  *planner.Pipeline
	store     *store.Store
	exportDir string
	clock     clock.Clock
	events    chan tea.Msg

	width  int
	height int

	screen        screen
	goalInput     textinput.Model
	feedbackInput textinput.Model
	spinner       spinner.Model
	viewport      viewport.Model
	renderer      *glamour.TermRenderer

	goal       string
	transcript []entry
	state      planner.State
	session    *store.Session
	running    string // label of the step in progress

	// Status message at the bottom.
	statusMsg  string
	statusErr  bool
	statusTime time.Time

	quitting bool
}

// New creates a new TUI model with its own planner pipeline.
func New(opts Options) (Model, error) {
	events := make(chan tea.Msg, 16)

	popts := opts.Planner
	popts.Deps = opts.Deps
	var sink planner.EventSink
	if opts.Store != nil {
		sink = opts.Store
	}
	popts.Observer = planner.Recorder(sink, func(node string, s planner.State) {
		events <- progressMsg{node: node, output: s.Output}
	})
	p, err := planner.New(popts)
	if err != nil {
		return Model{}, err
	}

	gi := textinput.New()
	gi.Placeholder = "e.g. Build a portfolio website in two weeks"
	gi.CharLimit = 300
	gi.Width = 60
	gi.Focus()

	fi := textinput.New()
	fi.Placeholder = "Ask for changes (\"todo 수정\", \"일정 변경\") or type 완료 to finish"
	fi.CharLimit = 500
	fi.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	c := opts.Deps.Clock
	if c == nil {
		c = clock.RealClock{}
	}

	return Model{
		pipeline:      p,
		store:         opts.Store,
		exportDir:     opts.ExportDir,
		clock:         c,
		events:        events,
		screen:        screenGoal,
		goalInput:     gi,
		feedbackInput: fi,
		spinner:       sp,
		viewport:      viewport.New(80, 20),
		renderer:      newRenderer(76),
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// progressMsg reports a completed graph node.
type progressMsg struct {
	node   string
	output string
}

// runDoneMsg ends a pipeline run.
type runDoneMsg struct {
	state planner.State
	err   error
}

// exportDoneMsg reports a saved plan.
type exportDoneMsg struct {
	path string
	err  error
}

// run executes fn off the UI goroutine. Progress and the final state both
// arrive through m.events so they keep their order.
func (m Model) run(fn func(ctx context.Context) (planner.State, error)) tea.Cmd {
	events := m.events
	work := func() tea.Msg {
		s, err := fn(context.Background())
		events <- runDoneMsg{state: s, err: err}
		return nil
	}
	return tea.Batch(work, waitForEvent(events), m.spinner.Tick)
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m Model) startPlan(goal string) tea.Cmd {
	sessionID := ""
	if m.session != nil {
		sessionID = m.session.ID
	}
	p := m.pipeline
	return m.run(func(ctx context.Context) (planner.State, error) {
		if sessionID == "" {
			return p.Start(ctx, goal)
		}
		return p.StartSession(ctx, sessionID, goal)
	})
}

func (m Model) revise(input string) tea.Cmd {
	p, s := m.pipeline, m.state
	return m.run(func(ctx context.Context) (planner.State, error) {
		return p.Revise(ctx, s, input)
	})
}

func (m Model) export() tea.Cmd {
	s, dir, now := m.state, m.exportDir, m.clock.Now()
	sink := m.store
	return func() tea.Msg {
		path, err := planner.Export(s, "", dir, now)
		if err == nil && sink != nil && s.SessionID != "" {
			sink.AddEvent(s.SessionID, "", "exported", path)
		}
		return exportDoneMsg{path: path, err: err}
	}
}

// persist saves the current state when a store is configured.
func (m *Model) persist() {
	if m.store == nil || m.session == nil {
		return
	}
	if err := planner.Save(m.session, m.state); err != nil {
		m.setError("Save failed: " + err.Error())
		return
	}
	if err := m.store.SaveSession(m.session); err != nil {
		m.setError("Save failed: " + err.Error())
	}
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusErr = false
	m.statusTime = time.Now()
}

func (m *Model) setError(msg string) {
	m.statusMsg = msg
	m.statusErr = true
	m.statusTime = time.Now()
}

// newRenderer builds a markdown renderer; outside a terminal it uses the
// plain style.
func newRenderer(width int) *glamour.TermRenderer {
	style := glamour.WithAutoStyle()
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}
