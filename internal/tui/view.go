package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle     = lipgloss.NewStyle().Foreground(clrDim)
	spinnerStyle = lipgloss.NewStyle().Foreground(clrYellow)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(0, 1)

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenGoal:
		content = m.viewGoal()
	case screenRunning:
		content = m.viewRunning()
	case screenReview:
		content = m.viewReview()
	case screenResult:
		content = m.viewResult()
	}
	return content + "\n" + m.viewStatus()
}

func (m Model) viewGoal() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("crew planner") + dimStyle.Render("  goal → TODOs → schedule") + "\n\n")
	b.WriteString("What do you want to achieve?\n\n")
	b.WriteString(inputBoxStyle.Render(m.goalInput.View()) + "\n\n")
	b.WriteString(dimStyle.Render("  1. Enter a goal\n"))
	b.WriteString(dimStyle.Render("  2. The agents analyse it, list TODOs and suggest a schedule\n"))
	b.WriteString(dimStyle.Render("  3. Review the plan and ask for changes\n\n"))
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"enter", "start"},
		{"esc", "quit"},
	}))
	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder
	b.WriteString(m.header() + "\n")
	b.WriteString(transcriptStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(m.spinner.View() + " " + m.running + dimStyle.Render(" working...") + "\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"ctrl+c", "quit"},
	}))
	return b.String()
}

func (m Model) viewReview() string {
	var b strings.Builder
	b.WriteString(m.header() + "\n")
	b.WriteString(transcriptStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(inputBoxStyle.Render(m.feedbackInput.View()) + "\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"enter", "send"},
		{"pgup/pgdn", "scroll"},
		{"esc", "quit"},
	}))
	return b.String()
}

func (m Model) viewResult() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Final plan: ") + m.goal + "\n")
	b.WriteString(transcriptStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"s", "save markdown"},
		{"n", "new goal"},
		{"q", "quit"},
	}))
	return b.String()
}

func (m Model) header() string {
	h := titleStyle.Render("Goal: ") + m.goal
	if m.session != nil {
		h += dimStyle.Render("  session " + m.session.ShortID())
	}
	return h
}

func (m Model) viewStatus() string {
	if m.statusExpired(time.Now()) {
		return ""
	}
	if m.statusErr {
		return errorStyle.Render(m.statusMsg)
	}
	return statusStyle.Render(m.statusMsg)
}

func renderFooter(keys []struct{ key, desc string }) string {
	var parts []string
	for _, k := range keys {
		key := footerKeyStyle.Render(k.key)
		desc := footerDescStyle.Render(k.desc)
		parts = append(parts, key+" "+desc)
	}
	return "  " + strings.Join(parts, "  ")
}
