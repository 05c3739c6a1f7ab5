package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/planner"
)

var exportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Save a plan as markdown",
	Long: `Writes the plan to todo_plan_YYYYMMDD_HHMMSS.md in planner.export_dir, or to
the file given with -o. With --yaml the whole session (state, TODOs,
schedule and history) is written as YAML instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportOutput string
	exportYAML   bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file")
	exportCmd.Flags().BoolVar(&exportYAML, "yaml", false, "Write a YAML snapshot of the session")
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := s.GetSession(args[0])
	if err != nil {
		return err
	}
	state, err := planner.Restore(sess)
	if err != nil {
		return err
	}

	export := planner.Export
	if exportYAML {
		export = planner.ExportYAML
	}
	path, err := export(state, exportOutput, cfg.Planner.ExportDir, time.Now())
	if err != nil {
		return err
	}
	s.AddEvent(sess.ID, "", "exported", path)

	if !state.Finished() {
		fmt.Printf("%sNote:%s session %s is not finished; exported the current draft.\n", colorYellow, colorReset, sess.ShortID())
	}
	fmt.Printf("%s✓%s Saved to %s\n", colorGreen, colorReset, path)
	return nil
}
