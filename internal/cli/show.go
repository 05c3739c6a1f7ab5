package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imkarma/crew/internal/planner"
	"github.com/imkarma/crew/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show [session]",
	Short: "Show a plan or spec run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var showRaw bool

var (
	glamourRenderer     *glamour.TermRenderer
	glamourRendererOnce sync.Once
)

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print markdown without rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sess, err := s.GetSession(args[0])
	if err != nil {
		return err
	}

	var md string
	switch sess.Kind {
	case store.KindSpec:
		results, err := s.ListRelayResults(sess.ID)
		if err != nil {
			return err
		}
		md = specDocument(sess, results)
	default:
		md, err = planDocument(sess)
		if err != nil {
			return err
		}
	}

	fmt.Printf("%s%s%s  %s%s%s  %s\n", colorYellow, sess.ShortID(), colorReset,
		statusColor(sess.Status), sess.Status, colorReset, sess.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if showRaw {
		fmt.Println(md)
		return nil
	}
	fmt.Println(renderMarkdown(md))
	return nil
}

// planDocument is the plan's markdown without needing a completion client.
func planDocument(sess *store.Session) (string, error) {
	state, err := planner.Restore(sess)
	if err != nil {
		return "", err
	}
	if len(state.Context.Todos()) == 0 && state.Output == "" {
		return "### Goal: " + sess.Title + "\n\n_No plan yet._\n", nil
	}
	return planner.Document(state), nil
}

func specDocument(sess *store.Session, results []store.RelayResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	if len(results) == 0 {
		b.WriteString("_No results collected._\n")
		return b.String()
	}
	for _, r := range results {
		fmt.Fprintf(&b, "## %s (%s)\n\n", r.Agent, r.Status)
		if r.Error != "" {
			fmt.Fprintf(&b, "**Error:** %s\n\n", r.Error)
			continue
		}
		b.WriteString(r.Output)
		b.WriteString("\n\n")
	}
	return b.String()
}

func getGlamourRenderer() *glamour.TermRenderer {
	glamourRendererOnce.Do(func() {
		style := glamour.WithAutoStyle()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			style = glamour.WithStandardStyle("notty")
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
		if err == nil {
			glamourRenderer = r
		}
	})
	return glamourRenderer
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	r := getGlamourRenderer()
	if r == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
