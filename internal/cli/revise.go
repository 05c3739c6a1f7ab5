package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reviseCmd = &cobra.Command{
	Use:   "revise [session] [feedback]",
	Short: "Revise a plan after its review",
	Long: `Sends feedback to a plan waiting for review. The feedback is routed by
keyword, ignoring case:

  "수정" or "변경" with "할일" or "todo"    regenerate the TODO list
  "수정" or "변경" with "일정" or "스케줄"  recommend a new schedule
  "검토"                                  review the plan again
  "완료" or "종료"                          finish the plan

Anything else, including "수정" or "변경" without a target, is recorded
and the plan is reviewed again.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRevise,
}

func runRevise(cmd *cobra.Command, args []string) error {
	feedback := strings.TrimSpace(strings.Join(args[1:], " "))
	if feedback == "" {
		return fmt.Errorf("feedback cannot be empty")
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
	p, err := newPipeline(cfg, s, 0)
	if err != nil {
		return err
	}

	sess, state, err := loadPlan(s, p, args[0])
	if err != nil {
		return err
	}
	if state.Finished() {
		return fmt.Errorf("session %s is already finished. Start a new one with: crew plan", sess.ShortID())
	}

	s.AddEvent(sess.ID, "", "revised", feedback)
	fmt.Printf("Revising %s%s%s: %s\n\n", colorYellow, sess.ShortID(), colorReset, feedback)

	ctx, cancel := signalContext()
	defer cancel()

	state, err = p.Revise(ctx, state, feedback)
	if err != nil {
		return fmt.Errorf("revision failed: %w", err)
	}
	if err := saveState(s, sess, state); err != nil {
		return err
	}
	printOutcome(sess, state)
	return nil
}
