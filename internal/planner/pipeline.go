package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/clock"
	agentctx "github.com/imkarma/crew/internal/context"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/graph"
)

// Options configure a Pipeline.
type Options struct {
	Deps agent.Deps
	// MaxSteps bounds one run; 0 means graph.DefaultMaxSteps.
	MaxSteps int
	// HistoryLimit is the history window agents see; 0 means the store default.
	HistoryLimit int
	// DurationDays is the schedule target; 0 derives it from the TODOs.
	DurationDays int
	// Observer is told about every completed node.
	Observer graph.Observer[State]
}

// Pipeline is the compiled planner graph and its agents.
type Pipeline struct {
	graph        *graph.Graph[State]
	planner      *agent.TaskPlanner
	todos        *agent.TodoGenerator
	scheduler    *agent.Scheduler
	reviewer     *agent.Reviewer
	clock        clock.Clock
	historyLimit int
	durationDays int
	log          zerolog.Logger
}

// New builds the planner pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Deps.Client == nil {
		return nil, errors.Wrap(errors.ErrMissingConfig, "planner needs a completion client")
	}
	if opts.Deps.Clock == nil {
		opts.Deps.Clock = clock.RealClock{}
	}

	p := &Pipeline{
		planner:      agent.NewTaskPlanner(opts.Deps),
		todos:        agent.NewTodoGenerator(opts.Deps),
		scheduler:    agent.NewScheduler(opts.Deps),
		reviewer:     agent.NewReviewer(opts.Deps),
		clock:        opts.Deps.Clock,
		historyLimit: opts.HistoryLimit,
		durationDays: opts.DurationDays,
		log:          opts.Deps.Logger.With().Str("component", "planner").Logger(),
	}

	g, err := graph.New[State]().
		AddNode(NodeAnalyzeGoal, p.analyzeGoal).
		AddNode(NodeGenerateTodos, p.generateTodos).
		AddNode(NodeRecommendSchedule, p.recommendSchedule).
		AddNode(NodeReviewPlan, p.reviewPlan).
		AddNode(NodeProcessHumanInput, p.processHumanInput).
		AddNode(NodeFinalOutput, p.finalOutput).
		SetEntry(NodeAnalyzeGoal).
		AddEdge(NodeAnalyzeGoal, NodeGenerateTodos).
		AddEdge(NodeGenerateTodos, NodeRecommendSchedule).
		AddEdge(NodeRecommendSchedule, NodeReviewPlan).
		AddConditionalEdge(NodeReviewPlan, afterReview, NodeProcessHumanInput, graph.End).
		AddConditionalEdge(NodeProcessHumanInput, afterHumanInput,
			NodeGenerateTodos, NodeRecommendSchedule, NodeReviewPlan, NodeFinalOutput).
		AddEdge(NodeFinalOutput, graph.End).
		WithMaxSteps(opts.MaxSteps).
		WithObserver(opts.Observer).
		WithLogger(p.log).
		Build()
	if err != nil {
		return nil, err
	}
	p.graph = g
	return p, nil
}

// NewContext returns an empty context store configured like the pipeline.
func (p *Pipeline) NewContext() *agentctx.Store {
	return agentctx.New(agentctx.WithClock(p.clock), agentctx.WithHistoryLimit(p.historyLimit))
}

// Start plans a new goal and runs until the first review.
func (p *Pipeline) Start(ctx context.Context, goal string) (State, error) {
	return p.StartSession(ctx, uuid.NewString(), goal)
}

// StartSession is Start for a session whose id is already known, such as
// one created in the store.
func (p *Pipeline) StartSession(ctx context.Context, sessionID, goal string) (State, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return State{}, errors.Wrap(errors.ErrEmptyValue, "goal")
	}
	return p.Run(ctx, NewState(sessionID, goal, p.NewContext()))
}

// Run executes the graph from its entry.
func (p *Pipeline) Run(ctx context.Context, s State) (State, error) {
	if s.Context == nil {
		s.Context = p.NewContext()
	}
	p.log.Info().Str("session", s.SessionID).Str("goal", s.Goal).Msg("planning")
	return p.graph.Run(ctx, s)
}

// Revise feeds a human revision to a halted session and continues the
// graph from the node it stopped at.
func (p *Pipeline) Revise(ctx context.Context, s State, input string) (State, error) {
	if strings.TrimSpace(input) == "" {
		return s, errors.Wrap(errors.ErrEmptyValue, "revision")
	}
	if s.Context == nil {
		return s, fmt.Errorf("session %s has no context", s.SessionID)
	}
	s.HumanInput = input
	if s.CurrentNode == "" {
		return p.Run(ctx, s)
	}
	p.log.Info().Str("session", s.SessionID).Str("from", s.CurrentNode).Msg("revising")
	return p.graph.Continue(ctx, s, s.CurrentNode)
}

// Finish jumps straight to the final output.
func (p *Pipeline) Finish(ctx context.Context, s State) (State, error) {
	return p.graph.RunFrom(ctx, NodeFinalOutput, s)
}

// Nodes lists the graph's nodes in definition order.
func (p *Pipeline) Nodes() []string { return p.graph.Nodes() }

// --- nodes ---

func (p *Pipeline) analyzeGoal(ctx context.Context, s State) (State, error) {
	snap := s.Context.Snapshot()
	res := p.planner.Invoke(ctx, agent.GoalInput{Goal: s.Goal, History: snap.History})
	s = s.withDegraded(p.planner.Name(), res.Cause)

	s.Context.SetGoal(s.Goal)
	s.Context.SetTaskAreas(res.Value.TaskAreas)

	s.TaskAreas = append([]string(nil), res.Value.TaskAreas...)
	s.Analysis = res.Value.Analysis
	s.CurrentNode = NodeAnalyzeGoal
	s.Output = fmt.Sprintf("Analyzed the goal: %s\n\nTask areas: %s", res.Value.Analysis, strings.Join(s.TaskAreas, ", "))
	return s, nil
}

func (p *Pipeline) generateTodos(ctx context.Context, s State) (State, error) {
	snap := s.Context.Snapshot()
	res := p.todos.Invoke(ctx, agent.TodoInput{Goal: s.Goal, TaskAreas: s.TaskAreas, History: snap.History})
	s = s.withDegraded(p.todos.Name(), res.Cause)

	if len(snap.Todos) > 0 {
		s.Context.ResetTodos()
	}
	for _, area := range res.Value {
		for _, t := range area.Tasks {
			s.Context.AddTodo(area.Area, t)
		}
	}

	s.Todos = s.Context.Todos()
	s.CurrentNode = NodeGenerateTodos
	s.Output = "Generated the TODO list:\n\n" + s.Context.FormatTodos()
	return s, nil
}

func (p *Pipeline) recommendSchedule(ctx context.Context, s State) (State, error) {
	res := p.scheduler.Invoke(ctx, agent.ScheduleInput{Goal: s.Goal, Todos: s.Todos, DurationDays: p.durationDays})
	s = s.withDegraded(p.scheduler.Name(), res.Cause)

	s.Schedule = s.Context.SetSchedule(res.Value.StartDate, res.Value.Tasks)
	s.CurrentNode = NodeRecommendSchedule
	s.Output = "Recommended a schedule:\n\n" + s.Context.FormatSchedule()
	return s, nil
}

func (p *Pipeline) reviewPlan(ctx context.Context, s State) (State, error) {
	snap := s.Context.Snapshot()
	res := p.reviewer.Invoke(ctx, agent.ReviewInput{
		Goal:             s.Goal,
		TodosMarkdown:    s.Context.FormatTodos(),
		ScheduleMarkdown: s.Context.FormatSchedule(),
		History:          snap.History,
	})
	s = s.withDegraded(p.reviewer.Name(), res.Cause)

	s.Review = res.Value
	s.CurrentNode = NodeReviewPlan
	s.Output = FormatReview(res.Value)
	return s, nil
}

func (p *Pipeline) processHumanInput(_ context.Context, s State) (State, error) {
	input := strings.TrimSpace(s.HumanInput)
	s.Context.AddToHistory(agentctx.RoleUser, input)

	s.Next = Route(input)
	s.HumanInput = ""
	s.CurrentNode = NodeProcessHumanInput
	p.log.Debug().Str("input", input).Str("next", s.Next).Msg("routed revision")
	return s, nil
}

func (p *Pipeline) finalOutput(_ context.Context, s State) (State, error) {
	s.CurrentNode = NodeFinalOutput
	s.Output = FinalDocument(s.Context)
	return s, nil
}

// FormatReview renders a review as shown after the review node.
func FormatReview(r ReviewResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review result:\n\n%s\n\n", r.Comment)
	if len(r.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, sg := range r.Suggestions {
			b.WriteString(sg.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FinalDocument renders the finished plan as markdown.
func FinalDocument(store *agentctx.Store) string {
	return fmt.Sprintf("### Goal: %s\n\n%s\n\n%s", store.Goal(), store.FormatTodos(), store.FormatSchedule())
}
