package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List plan sessions and spec runs",
	RunE:    runSessions,
}

var sessionsKind string

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsKind, "kind", "k", "", "Filter by kind: plan or spec")
}

func runSessions(cmd *cobra.Command, args []string) error {
	kind := store.SessionKind(sessionsKind)
	switch kind {
	case "", store.KindPlan, store.KindSpec:
	default:
		return fmt.Errorf("invalid kind %q (use plan or spec)", sessionsKind)
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sessions, err := s.ListSessions(kind)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Printf("No sessions. Run: %screw plan \"your goal\"%s\n", colorCyan, colorReset)
		return nil
	}

	counts := map[store.SessionStatus]int{}
	for _, sess := range sessions {
		counts[sess.Status]++
	}

	fmt.Printf("%sSessions: %d total%s\n\n", colorBold, len(sessions), colorReset)
	for _, sess := range sessions {
		fmt.Printf("  %s%s%s  %-5s %s%-15s%s %s  %s\n",
			colorYellow, sess.ShortID(), colorReset,
			sess.Kind,
			statusColor(sess.Status), sess.Status, colorReset,
			sess.UpdatedAt.Local().Format("2006-01-02 15:04"),
			truncate(sess.Title, 50))
		if sess.Degraded != "" {
			fmt.Printf("            %sfell back: %s%s\n", colorDim, sess.Degraded, colorReset)
		}
	}

	if n := counts[store.StatusAwaitingInput]; n > 0 {
		fmt.Printf("\n%s%d session(s) waiting for review.%s Continue with: %screw revise <session> \"feedback\"%s\n",
			colorYellow, n, colorReset, colorCyan, colorReset)
	}
	return nil
}
