package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/logging"
)

var (
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:          "crew",
	Short:        "Agent pipelines for plans, API specs and document Q&A",
	Long:         "crew runs multi-agent pipelines from the command line.\nPlan a goal into TODOs and a schedule, turn a project into an API spec, or ask questions over your documents.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts := logging.Options{
			Verbose:  flagVerbose,
			Quiet:    flagQuiet,
			FileOnly: cmd.Name() == "ui",
		}
		if _, err := os.Stat(crewDirName); err == nil {
			opts.Dir = crewPath("logs")
			if cfg, err := config.Load(crewPath("config.yaml")); err == nil && cfg.Log.Dir != "" {
				opts.Dir = cfg.Log.Dir
				opts.MaxSizeMB = cfg.Log.MaxSizeMB
				opts.MaxBackups = cfg.Log.MaxBackups
				opts.MaxAgeDays = cfg.Log.MaxAgeDays
			}
		}
		logging.Init(opts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(specCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
}
