package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/store"
)

// OrchestratorName is the agent name results are replied to.
const OrchestratorName = "orchestrator"

// Defaults applied when the relay config leaves them unset.
const (
	DefaultTopicPrefix  = "agent-communication"
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 300 * time.Second
)

// WorkflowStartID is the message id of the first chained request.
const WorkflowStartID = "workflow-start"

// Results maps agent name to its step result.
type Results map[string]agent.StepResult

// AgentStatus is a snapshot of one agent's inbox.
type AgentStatus struct {
	Queue int    `json:"queue_size"`
	State string `json:"status"` // running or idle
}

// ResultSink persists collected results. *store.Store satisfies it.
type ResultSink interface {
	AddRelayResult(r store.RelayResult) error
}

// Options configure an Orchestrator.
type Options struct {
	Config config.Relay
	Deps   agent.Deps
	Bus    Bus        // built from Config when nil
	Sink   ResultSink // optional
}

// Orchestrator runs the five spec agents over a Bus and collects what
// each produces.
type Orchestrator struct {
	cfg    config.Relay
	bus    Bus
	mgr    *Manager
	agents []*A2AAgent
	sink   ResultSink
	log    zerolog.Logger

	mu      sync.Mutex
	session string
	results Results
}

// NewBus builds the bus named by cfg.Backend.
func NewBus(cfg config.Relay) (Bus, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBus(DefaultQueueSize), nil
	case "redis":
		if cfg.ProjectID == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig,
				"relay.project_id is required for the redis backend (set it in .crew/config.yaml or GCP_PROJECT_ID)")
		}
		if cfg.RedisAddr == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig, "relay.redis_addr is required for the redis backend")
		}
		return NewRedisBus(cfg.RedisAddr, cfg.ProjectID), nil
	default:
		return nil, fmt.Errorf("relay: unsupported backend %q", cfg.Backend)
	}
}

// New validates the configuration and builds the agents. It fails with
// ErrMissingConfig before anything is published when the completion client
// or the bus settings are missing.
func New(opts Options) (*Orchestrator, error) {
	if opts.Deps.Client == nil {
		return nil, errors.Wrap(errors.ErrMissingConfig, "completion client is not configured (run 'crew init' and set an API key)")
	}

	cfg := opts.Config
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	bus := opts.Bus
	if bus == nil {
		var err error
		if bus, err = NewBus(cfg); err != nil {
			return nil, err
		}
	}

	log := opts.Deps.Logger.With().Str("component", "orchestrator").Logger()
	o := &Orchestrator{
		cfg:     cfg,
		bus:     bus,
		mgr:     NewManager(bus, cfg.TopicPrefix, opts.Deps.Logger),
		sink:    opts.Sink,
		log:     log,
		results: make(Results),
	}
	for _, step := range agent.SpecPipeline(opts.Deps) {
		o.agents = append(o.agents, NewA2AAgent(step, o.mgr, opts.Deps.Logger))
	}
	o.mgr.Register(CollectHandler, o.collect)
	return o, nil
}

// Agents lists the agent names in chain order.
func (o *Orchestrator) Agents() []string {
	names := make([]string, len(o.agents))
	for i, a := range o.agents {
		names[i] = a.Name()
	}
	return names
}

// Manager exposes the orchestrator's message manager.
func (o *Orchestrator) Manager() *Manager { return o.mgr }

// Setup ensures a topic for the orchestrator and every agent. Any bus
// error aborts the run.
func (o *Orchestrator) Setup(ctx context.Context) error {
	names := append([]string{OrchestratorName}, o.Agents()...)
	for _, name := range names {
		if err := o.mgr.EnsureTopic(ctx, name); err != nil {
			return err
		}
	}
	o.log.Info().Int("topics", len(names)).Msg("relay infrastructure ready")
	return nil
}

// Run analyses project directly, then hands the specification to the
// validator and lets the agents forward work to each other over the bus.
// It returns once every agent has reported or the configured timeout
// passes; a timeout yields the partial results without an error.
func (o *Orchestrator) Run(ctx context.Context, sessionID, project string) (Results, error) {
	if strings.TrimSpace(project) == "" {
		return nil, fmt.Errorf("project description: %w", errors.ErrEmptyValue)
	}
	o.reset(sessionID)
	if err := o.Setup(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return o.mgr.Listen(gctx, OrchestratorName) })
	for _, a := range o.agents {
		g.Go(func() error { return o.mgr.Listen(gctx, a.Name()) })
		g.Go(func() error { return a.Start(gctx) })
	}
	o.log.Info().Int("agents", len(o.agents)).Msg("agents started")

	first := o.agents[0]
	input := map[string]string{agent.FieldInput: project}
	res := first.Process(gctx, input)
	o.record(res)

	var kickErr error
	if payload := first.step.Forward(input, res); payload != nil {
		kickErr = first.SendTo(gctx, first.step.Next(), Message{
			MessageID:   WorkflowStartID,
			ReplyTo:     OrchestratorName,
			AutoForward: true,
			SessionID:   sessionID,
			Payload:     payload,
		})
		if kickErr == nil {
			o.wait(gctx)
		}
	} else {
		o.log.Warn().Str("error", res.Error).Msg("requirement analysis failed; chain not started")
	}

	cancel()
	err := g.Wait()
	results := o.snapshot()
	switch {
	case kickErr != nil:
		return results, kickErr
	case err != nil && !errors.Is(err, context.Canceled):
		return results, err
	}
	return results, ctx.Err()
}

// RunSequential runs the agents one after another in-process, stopping at
// the first failed step.
func (o *Orchestrator) RunSequential(ctx context.Context, sessionID, project string) (Results, error) {
	if strings.TrimSpace(project) == "" {
		return nil, fmt.Errorf("project description: %w", errors.ErrEmptyValue)
	}
	o.reset(sessionID)

	in := map[string]string{agent.FieldInput: project}
	for i, a := range o.agents {
		if err := ctx.Err(); err != nil {
			return o.snapshot(), err
		}
		o.log.Info().Int("step", i+1).Str("agent", a.Name()).Msg("running step")
		res := a.Process(ctx, in)
		o.record(res)
		if in = a.step.Forward(in, res); in == nil {
			break
		}
	}
	return o.snapshot(), nil
}

// Status reports each agent's inbox.
func (o *Orchestrator) Status() map[string]AgentStatus {
	status := make(map[string]AgentStatus, len(o.agents))
	for _, a := range o.agents {
		s := AgentStatus{Queue: a.Pending(), State: "idle"}
		if s.Queue > 0 {
			s.State = "running"
		}
		status[a.Name()] = s
	}
	return status
}

// Ordered returns the results present in r in chain order.
func (o *Orchestrator) Ordered(r Results) []agent.StepResult {
	var out []agent.StepResult
	for _, name := range o.Agents() {
		if res, ok := r[name]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Close releases the bus.
func (o *Orchestrator) Close() error {
	return o.bus.Close()
}

func (o *Orchestrator) collect(_ context.Context, msg Message) error {
	if msg.Result == nil || msg.Result.Agent == "" {
		return fmt.Errorf("%w: response without a result", errors.ErrParse)
	}
	o.mu.Lock()
	current := o.session
	o.mu.Unlock()
	if msg.SessionID != current {
		o.log.Debug().Str("session", msg.SessionID).Msg("dropping result from another run")
		return nil
	}
	o.record(*msg.Result)
	return nil
}

func (o *Orchestrator) record(res agent.StepResult) {
	o.mu.Lock()
	o.results[res.Agent] = res
	session := o.session
	o.mu.Unlock()

	o.log.Info().Str("agent", res.Agent).Str("status", string(res.Status)).Msg("result collected")
	if o.sink == nil || session == "" {
		return
	}
	err := o.sink.AddRelayResult(store.RelayResult{
		SessionID: session,
		Agent:     res.Agent,
		Status:    string(res.Status),
		Output:    res.Output(),
		Error:     res.Error,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("agent", res.Agent).Msg("could not persist result")
	}
}

func (o *Orchestrator) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.results)
}

func (o *Orchestrator) snapshot() Results {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(Results, len(o.results))
	for k, v := range o.results {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) reset(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session = sessionID
	o.results = make(Results)
}

func (o *Orchestrator) wait(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.cfg.Timeout)
	defer deadline.Stop()

	for {
		if o.count() >= len(o.agents) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			o.log.Warn().Int("collected", o.count()).Dur("timeout", o.cfg.Timeout).Msg("timed out waiting for agents; returning partial results")
			return
		case <-ticker.C:
		}
	}
}
