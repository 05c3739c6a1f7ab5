package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive planner",
	Long:  "Opens a terminal UI: enter a goal, watch each agent finish, ask for changes and save the final plan as markdown.",
	RunE:  runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := newDeps(cfg)
	if err != nil {
		return err
	}

	model, err := tui.New(tui.Options{
		Deps: deps,
		Planner: planner.Options{
			MaxSteps:     cfg.Planner.MaxSteps,
			HistoryLimit: cfg.Planner.HistoryLimit,
		},
		Store:     s,
		ExportDir: cfg.Planner.ExportDir,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
