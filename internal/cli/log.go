package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [session]",
	Short: "Show event log for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sess, err := s.GetSession(args[0])
	if err != nil {
		return err
	}

	events, err := s.GetEvents(sess.ID)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Printf("No events for session %s\n", sess.ShortID())
		return nil
	}

	fmt.Printf("Events for session %s (%s):\n\n", sess.ShortID(), truncate(sess.Title, 60))
	for _, e := range events {
		agent := ""
		if e.Agent != "" {
			agent = fmt.Sprintf("[%s] ", e.Agent)
		}
		fmt.Printf("  %s  %s%-10s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), agent, e.Type, truncate(e.Content, 100))
	}
	return nil
}
