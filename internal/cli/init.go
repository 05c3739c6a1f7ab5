package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize crew in the current directory",
	Long:  "Creates a .crew/ directory with default config, database, log and index directories.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(crewDirName); err == nil {
		return fmt.Errorf("crew already initialized in this directory (.crew/ exists)")
	}

	for _, dir := range []string{crewPath("logs"), crewPath("index")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	cfg := config.DefaultConfig()
	if err := config.Save(crewPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create database by opening store (migration runs automatically).
	s, err := store.New(crewPath("crew.db"))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Println("Initialized crew in .crew/")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set %s and AOAI_ENDPOINT, or edit .crew/config.yaml\n", cfg.Completion.APIKeyEnv)
	fmt.Println("  2. Run: crew plan \"your goal\"")
	fmt.Println("  3. Or:  crew ui")

	return nil
}
