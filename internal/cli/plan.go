package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Plan a goal into TODOs and a schedule",
	Long: `Runs the planner agents on a goal: the task planner splits it into areas,
the TODO generator lists tasks, the scheduler lays them out and the reviewer
checks the result. The session stops after the review so you can revise it:

  crew revise <session> "todo 수정: add a testing area"
  crew revise <session> 완료

Without a goal argument, crew asks for one interactively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

var planApplyCmd = &cobra.Command{
	Use:   "apply [session]",
	Short: "Apply the reviewer's suggestions to a plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanApply,
}

var planDays int

func init() {
	planCmd.Flags().IntVarP(&planDays, "days", "d", 0, "Target schedule length in days (default: sum of task durations)")
	planCmd.AddCommand(planApplyCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	goal := ""
	if len(args) > 0 {
		goal = strings.TrimSpace(args[0])
	}
	if goal == "" {
		var err error
		if goal, err = promptGoal(); err != nil {
			return err
		}
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, s, planDays)
	if err != nil {
		return err
	}

	sess, err := s.CreateSession(store.KindPlan, goal)
	if err != nil {
		return err
	}
	s.AddEvent(sess.ID, "", "created", goal)

	fmt.Printf("Planning: %s%s%s\n", colorBold, goal, colorReset)
	fmt.Printf("  Session: %s%s%s\n\n", colorYellow, sess.ShortID(), colorReset)

	ctx, cancel := signalContext()
	defer cancel()

	state, err := p.StartSession(ctx, sess.ID, goal)
	if err != nil {
		markFailed(s, sess, err)
		return fmt.Errorf("planning failed: %w", err)
	}
	if err := saveState(s, sess, state); err != nil {
		return err
	}
	printOutcome(sess, state)
	return nil
}

func runPlanApply(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, s, 0)
	if err != nil {
		return err
	}

	sess, state, err := loadPlan(s, p, args[0])
	if err != nil {
		return err
	}
	if len(state.Review.Suggestions) == 0 {
		fmt.Println("The review has no suggestions to apply.")
		return nil
	}

	state, applied := planner.ApplySuggestions(state, state.Review.Suggestions)
	if err := saveState(s, sess, state); err != nil {
		return err
	}
	s.AddEvent(sess.ID, "", "applied", fmt.Sprintf("%d of %d suggestion(s)", applied, len(state.Review.Suggestions)))

	fmt.Printf("%sApplied %d of %d suggestion(s)%s\n", colorGreen, applied, len(state.Review.Suggestions), colorReset)
	for _, sg := range state.Review.Suggestions {
		fmt.Printf("  %s\n", sg.String())
	}
	fmt.Printf("\nThe schedule is unchanged. Update it with: %screw revise %s \"일정 변경\"%s\n", colorCyan, sess.ShortID(), colorReset)
	return nil
}

// promptGoal asks for a goal on a terminal.
func promptGoal() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("goal is required: crew plan \"your goal\"")
	}
	var goal string
	field := huh.NewInput().
		Title("What do you want to achieve?").
		Placeholder("Build a portfolio website in two weeks").
		Value(&goal).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("goal cannot be empty")
			}
			return nil
		})
	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", fmt.Errorf("cancelled")
		}
		return "", err
	}
	return strings.TrimSpace(goal), nil
}

// newPipeline builds the planner with progress printed to stdout and
// every node stored as a session event.
func newPipeline(cfg *config.Config, s *store.Store, days int) (*planner.Pipeline, error) {
	deps, err := newDeps(cfg)
	if err != nil {
		return nil, err
	}
	return planner.New(planner.Options{
		Deps:         deps,
		MaxSteps:     cfg.Planner.MaxSteps,
		HistoryLimit: cfg.Planner.HistoryLimit,
		DurationDays: days,
		Observer:     planner.Recorder(s, printNode),
	})
}

func printNode(node string, state planner.State) {
	if node == planner.NodeProcessHumanInput {
		fmt.Printf("  %s→%s routed to %s\n", colorDim, colorReset, planner.NodeLabel(state.Next))
		return
	}
	mark := colorGreen + "✓" + colorReset
	if _, ok := state.Degraded[planner.NodeAgent(node)]; ok {
		mark = colorYellow + "!" + colorReset
	}
	fmt.Printf("  %s %s\n", mark, planner.NodeLabel(node))
}

// loadPlan finds a plan session by ID prefix and rebuilds its state.
func loadPlan(s *store.Store, p *planner.Pipeline, id string) (*store.Session, planner.State, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return nil, planner.State{}, err
	}
	state, err := p.Load(sess)
	if err != nil {
		return nil, planner.State{}, err
	}
	return sess, state, nil
}

func saveState(s *store.Store, sess *store.Session, state planner.State) error {
	if err := planner.Save(sess, state); err != nil {
		return err
	}
	return s.SaveSession(sess)
}

func markFailed(s *store.Store, sess *store.Session, cause error) {
	sess.Status = store.StatusFailed
	if err := s.SaveSession(sess); err == nil {
		s.AddEvent(sess.ID, "", "failed", cause.Error())
	}
}

// printOutcome shows the latest output and what to do next.
func printOutcome(sess *store.Session, state planner.State) {
	fmt.Println()
	fmt.Println(renderMarkdown(state.Output))

	if len(state.Degraded) > 0 {
		fmt.Printf("%s⚠  Fell back to defaults:%s\n", colorYellow+colorBold, colorReset)
		for name, cause := range state.Degraded {
			fmt.Printf("  %s%s%s: %s\n", colorYellow, name, colorReset, cause)
		}
		fmt.Println()
	}

	id := sess.ShortID()
	switch {
	case state.Finished():
		fmt.Printf("%sPlan finished.%s Save it with: %screw export %s%s\n", colorGreen+colorBold, colorReset, colorCyan, id, colorReset)
	case state.AwaitingInput():
		fmt.Println("Next:")
		fmt.Printf("  %screw revise %s \"todo 수정 ...\"%s   change the TODO list\n", colorCyan, id, colorReset)
		fmt.Printf("  %screw revise %s \"일정 변경 ...\"%s   change the schedule\n", colorCyan, id, colorReset)
		if len(state.Review.Suggestions) > 0 {
			fmt.Printf("  %screw plan apply %s%s            apply the review suggestions\n", colorCyan, id, colorReset)
		}
		fmt.Printf("  %screw revise %s 완료%s             finish the plan\n", colorCyan, id, colorReset)
	}
}
