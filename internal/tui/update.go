package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Leave room for header, input and footer.
		vw := m.width - 4
		vh := m.height - 8
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.viewport.Width = vw
		m.viewport.Height = vh
		if r := newRenderer(vw - 2); r != nil {
			m.renderer = r
		}
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if m.screen != screenRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		if msg.node != planner.NodeProcessHumanInput && strings.TrimSpace(msg.output) != "" {
			m.addEntry("assistant", fmt.Sprintf("**%s** finished:\n\n%s", planner.NodeLabel(msg.node), msg.output))
		}
		m.running = planner.NodeLabel(msg.node)
		return m, waitForEvent(m.events)

	case runDoneMsg:
		return m.handleRunDone(msg)

	case exportDoneMsg:
		if msg.err != nil {
			m.setError("Export failed: " + msg.err.Error())
		} else {
			m.setStatus("Saved to " + msg.path)
		}
		return m, nil
	}

	// Forward everything else to the transcript for scrolling.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleRunDone(msg runDoneMsg) (tea.Model, tea.Cmd) {
	m.running = ""
	if msg.err != nil {
		m.setError("Planning failed: " + msg.err.Error())
		if m.state.Context == nil {
			m.screen = screenGoal
			m.goalInput.Focus()
		} else {
			m.screen = screenReview
			m.feedbackInput.Focus()
		}
		return m, textinput.Blink
	}

	m.state = msg.state
	m.persist()
	if len(m.state.Degraded) > 0 {
		m.setError(fmt.Sprintf("%d agent(s) fell back to defaults", len(m.state.Degraded)))
	}

	if m.state.Finished() {
		m.screen = screenResult
		m.feedbackInput.Blur()
		m.viewport.SetContent(m.render(planner.Document(m.state)))
		m.viewport.GotoTop()
		return m, nil
	}
	m.screen = screenReview
	m.feedbackInput.Reset()
	m.feedbackInput.Focus()
	return m, textinput.Blink
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.screen {
	case screenGoal:
		return m.handleGoalKey(msg)
	case screenReview:
		return m.handleReviewKey(msg)
	case screenResult:
		return m.handleResultKey(msg)
	}
	return m, nil
}

// --- Goal screen keys ---

func (m Model) handleGoalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		goal := strings.TrimSpace(m.goalInput.Value())
		if goal == "" {
			m.setError("Goal cannot be empty")
			return m, nil
		}
		m.goal = goal
		m.transcript = nil
		m.state = planner.State{}
		m.session = nil
		if m.store != nil {
			sess, err := m.store.CreateSession(store.KindPlan, goal)
			if err != nil {
				m.setError("Could not create session: " + err.Error())
				return m, nil
			}
			m.session = sess
		}
		m.goalInput.Blur()
		m.screen = screenRunning
		m.running = planner.NodeLabel(planner.NodeAnalyzeGoal)
		m.refreshTranscript()
		return m, m.startPlan(goal)
	}

	var cmd tea.Cmd
	m.goalInput, cmd = m.goalInput.Update(msg)
	return m, cmd
}

// --- Review screen keys ---

func (m Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		input := strings.TrimSpace(m.feedbackInput.Value())
		if input == "" {
			m.setError("Type a revision, or 완료 to finish")
			return m, nil
		}
		m.addEntry("user", input)
		m.feedbackInput.Reset()
		m.feedbackInput.Blur()
		m.screen = screenRunning
		m.running = planner.NodeLabel(planner.NodeProcessHumanInput)
		if m.store != nil && m.state.SessionID != "" {
			m.store.AddEvent(m.state.SessionID, "", "revised", input)
		}
		return m, m.revise(input)
	}

	var cmd tea.Cmd
	m.feedbackInput, cmd = m.feedbackInput.Update(msg)
	return m, cmd
}

// --- Result screen keys ---

func (m Model) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "s":
		return m, m.export()
	case "n":
		m.screen = screenGoal
		m.goal = ""
		m.transcript = nil
		m.state = planner.State{}
		m.session = nil
		m.goalInput.Reset()
		m.goalInput.Focus()
		m.refreshTranscript()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// --- Transcript ---

func (m *Model) addEntry(role, content string) {
	m.transcript = append(m.transcript, entry{role: role, content: content})
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	if m.screen == screenResult {
		m.viewport.SetContent(m.render(planner.Document(m.state)))
		return
	}
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		if e.role == "user" {
			b.WriteString("**You:** ")
		}
		b.WriteString(e.content)
	}
	m.viewport.SetContent(m.render(b.String()))
	m.viewport.GotoBottom()
}

func (m Model) render(md string) string {
	if m.renderer == nil || md == "" {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// statusExpired reports whether the status line should be cleared.
func (m Model) statusExpired(now time.Time) bool {
	return m.statusMsg != "" && now.Sub(m.statusTime) > 5*time.Second
}
