package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/relay"
	"github.com/imkarma/crew/internal/store"
)

var specCmd = &cobra.Command{
	Use:   "spec [project]",
	Short: "Turn a project description into an API specification",
	Long: `Runs the five spec agents over the relay bus: requirement analysis,
requirement validation, service flow, API spec and API spec validation.
Each agent forwards its result to the next; the orchestrator collects
what each one reports until all are done or relay.timeout passes.

Use --bus redis to run over a Redis server (relay.redis_addr, with
relay.project_id or GCP_PROJECT_ID as namespace), or --sequential to
call the agents directly without a bus.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpec,
}

var (
	specSequential bool
	specBus        string
)

func init() {
	specCmd.Flags().BoolVar(&specSequential, "sequential", false, "Run the agents in-process, one after another")
	specCmd.Flags().StringVar(&specBus, "bus", "", "Message bus: memory or redis (default: relay.backend)")
}

func runSpec(cmd *cobra.Command, args []string) error {
	project := strings.TrimSpace(strings.Join(args, " "))
	if project == "" {
		return fmt.Errorf("project description cannot be empty")
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
	if specBus != "" {
		cfg.Relay.Backend = specBus
	}
	deps, err := newDeps(cfg)
	if err != nil {
		return err
	}

	o, err := relay.New(relay.Options{Config: cfg.Relay, Deps: deps, Sink: s})
	if err != nil {
		return err
	}
	defer o.Close()

	sess, err := s.CreateSession(store.KindSpec, project)
	if err != nil {
		return err
	}
	s.AddEvent(sess.ID, "", "created", project)

	mode := cfg.Relay.Backend + " bus"
	if specSequential {
		mode = "sequential"
	}
	fmt.Printf("Spec run %s%s%s (%s)\n", colorYellow, sess.ShortID(), colorReset, mode)
	fmt.Printf("  Agents: %s\n\n", strings.Join(o.Agents(), " → "))

	ctx, cancel := signalContext()
	defer cancel()

	var results relay.Results
	if specSequential {
		results, err = o.RunSequential(ctx, sess.ID, project)
	} else {
		results, err = o.Run(ctx, sess.ID, project)
	}

	ordered := o.Ordered(results)
	if saveErr := saveSpec(s, sess, ordered, len(o.Agents())); saveErr != nil && err == nil {
		err = saveErr
	}
	printSpecResults(ordered, len(o.Agents()))
	if err != nil {
		s.AddEvent(sess.ID, "", "failed", err.Error())
		return fmt.Errorf("spec run failed: %w", err)
	}

	fmt.Printf("\nFull output: %screw show %s%s\n", colorCyan, sess.ShortID(), colorReset)
	return nil
}

// saveSpec stores the collected results as the session state.
func saveSpec(s *store.Store, sess *store.Session, results []agent.StepResult, total int) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	sess.State = string(data)
	sess.Status = specStatus(results, total)
	if n := len(results); n > 0 {
		sess.CurrentNode = results[n-1].Agent
	}
	var failed []string
	for _, r := range results {
		if !r.Completed() {
			failed = append(failed, r.Agent)
		}
	}
	sess.Degraded = strings.Join(failed, ",")
	if err := s.SaveSession(sess); err != nil {
		return err
	}
	s.AddEvent(sess.ID, "", "relay", fmt.Sprintf("%d of %d agents reported", len(results), total))
	return nil
}

func specStatus(results []agent.StepResult, total int) store.SessionStatus {
	completed := 0
	for _, r := range results {
		if r.Completed() {
			completed++
		}
	}
	switch {
	case completed == total:
		return store.StatusFinished
	case completed == 0:
		return store.StatusFailed
	default:
		return store.StatusPartial
	}
}

func printSpecResults(results []agent.StepResult, total int) {
	for _, r := range results {
		if r.Completed() {
			first, _, _ := strings.Cut(strings.TrimSpace(r.Output()), "\n")
			fmt.Printf("  %s✓%s %-24s %s%s%s\n", colorGreen, colorReset, r.Agent, colorDim, truncate(first, 60), colorReset)
			continue
		}
		fmt.Printf("  %s✗%s %-24s %s%s%s\n", colorRed, colorReset, r.Agent, colorRed, truncate(r.Error, 60), colorReset)
	}
	if len(results) < total {
		fmt.Printf("\n%s⚠  %d of %d agents reported before the run ended.%s\n", colorYellow, len(results), total, colorReset)
	}
}
