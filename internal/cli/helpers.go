package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/clock"
	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/llm"
	"github.com/imkarma/crew/internal/store"
)

const crewDirName = ".crew"

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// crewPath returns the path to a file inside .crew/.
func crewPath(parts ...string) string {
	elems := append([]string{crewDirName}, parts...)
	return filepath.Join(elems...)
}

// mustStore opens the store, returning an error if crew is not initialized.
func mustStore() (*store.Store, error) {
	dbPath := crewPath("crew.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("crew not initialized. Run: crew init")
	}
	return store.New(dbPath)
}

// loadConfig reads .crew/config.yaml; defaults and environment variables
// apply when the file is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(crewPath("config.yaml"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newDeps builds the completion client and the shared agent dependencies.
func newDeps(cfg *config.Config) (agent.Deps, error) {
	client, err := llm.New(cfg.Completion)
	if err != nil {
		return agent.Deps{}, err
	}
	return agent.Deps{
		Client: client,
		Logger: log.Logger,
		Clock:  clock.RealClock{},
	}, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func statusColor(s store.SessionStatus) string {
	switch s {
	case store.StatusFinished:
		return colorGreen
	case store.StatusAwaitingInput, store.StatusPartial:
		return colorYellow
	case store.StatusRunning:
		return colorBlue
	case store.StatusFailed:
		return colorRed
	}
	return colorReset
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
