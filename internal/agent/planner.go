package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	agentctx "github.com/imkarma/crew/internal/context"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/llm"
	"github.com/imkarma/crew/internal/prompts"
)

const dateLayout = "2006-01-02"

// --- Task planner ---

// GoalInput is what the task planner sees.
type GoalInput struct {
	Goal    string
	History []agentctx.Entry
}

// GoalAnalysis splits a goal into task areas.
type GoalAnalysis struct {
	TaskAreas []string `json:"task_areas"`
	Analysis  string   `json:"goal_analysis"`
}

// TaskPlanner extracts the core work areas of a goal.
type TaskPlanner struct{ base }

// NewTaskPlanner creates a task planner.
func NewTaskPlanner(deps Deps) *TaskPlanner {
	return &TaskPlanner{newBase("task_planner", deps)}
}

// Invoke analyzes the goal.
func (p *TaskPlanner) Invoke(ctx context.Context, in GoalInput) Result[GoalAnalysis] {
	var out GoalAnalysis
	data := prompts.GoalData{Goal: in.Goal, History: historyLines(in.History)}
	err := p.completeJSON(ctx, prompts.TaskAreasSystem, prompts.TaskAreasUser, data, &out)
	if err == nil {
		out.TaskAreas = cleanAreas(out.TaskAreas)
		if len(out.TaskAreas) == 0 {
			err = errors.Wrap(errors.ErrParse, "task_areas is empty")
		}
	}
	if err != nil {
		p.warnFallback(err)
		return Fallback(DefaultGoalAnalysis(in.Goal), err)
	}
	return Ok(out)
}

// DefaultGoalAnalysis is returned when the goal cannot be analyzed.
func DefaultGoalAnalysis(goal string) GoalAnalysis {
	return GoalAnalysis{
		TaskAreas: []string{"Planning", "Execution", "Review"},
		Analysis:  "goal analysis failed: " + goal,
	}
}

func cleanAreas(areas []string) []string {
	seen := make(map[string]bool, len(areas))
	out := make([]string, 0, len(areas))
	for _, a := range areas {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// --- TODO generator ---

// TodoInput is what the TODO generator sees.
type TodoInput struct {
	Goal      string
	TaskAreas []string
	History   []agentctx.Entry
}

// TodoGenerator produces a TODO list per task area.
type TodoGenerator struct{ base }

// NewTodoGenerator creates a TODO generator.
func NewTodoGenerator(deps Deps) *TodoGenerator {
	return &TodoGenerator{newBase("todo_generator", deps)}
}

// Invoke generates TODOs. The result follows the order of in.TaskAreas;
// areas the model invented are appended after them.
func (g *TodoGenerator) Invoke(ctx context.Context, in TodoInput) Result[[]agentctx.AreaTodos] {
	data := prompts.TodosData{Goal: in.Goal, TaskAreas: in.TaskAreas, History: historyLines(in.History)}

	todos, err := g.generate(ctx, data)
	if err == nil {
		todos = orderByAreas(todos, in.TaskAreas)
	}
	if err != nil {
		g.warnFallback(err)
		return Fallback(DefaultTodos(in.TaskAreas), err)
	}
	return Ok(todos)
}

func (g *TodoGenerator) generate(ctx context.Context, data prompts.TodosData) ([]agentctx.AreaTodos, error) {
	out, err := g.complete(ctx, prompts.TodosSystem, prompts.TodosUser, data, true)
	if err != nil {
		return nil, err
	}
	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	todos, err := decodeAreaTodos(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}
	if len(todos) == 0 {
		return nil, errors.Wrap(errors.ErrParse, "no todos in response")
	}
	return todos, nil
}

// DefaultTodos gives every area a planning, execution and review task.
func DefaultTodos(areas []string) []agentctx.AreaTodos {
	out := make([]agentctx.AreaTodos, 0, len(areas))
	for _, area := range areas {
		out = append(out, agentctx.AreaTodos{
			Area: area,
			Tasks: []agentctx.Task{
				{Title: area + " planning", Description: "Draw up the basic plan", DurationDays: 1},
				{Title: area + " execution", Description: "Carry out the plan", DurationDays: 2},
				{Title: area + " review", Description: "Review the results", DurationDays: 1},
			},
		})
	}
	return out
}

type rawTask struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DurationDays *int   `json:"duration_days"`
}

// decodeAreaTodos reads {"area": [task, ...], ...} keeping key order,
// which encoding/json maps would lose. Tasks without a duration get 1 day.
func decodeAreaTodos(raw string) ([]agentctx.AreaTodos, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object keyed by area")
	}

	var out []agentctx.AreaTodos
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		area, _ := tok.(string)

		var tasks []rawTask
		if err := dec.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("area %q: %w", area, err)
		}

		at := agentctx.AreaTodos{Area: strings.TrimSpace(area)}
		for _, t := range tasks {
			title := strings.TrimSpace(t.Title)
			if title == "" {
				continue
			}
			days := 1
			if t.DurationDays != nil && *t.DurationDays >= 0 {
				days = *t.DurationDays
			}
			at.Tasks = append(at.Tasks, agentctx.Task{Title: title, Description: t.Description, DurationDays: days})
		}
		if at.Area != "" && len(at.Tasks) > 0 {
			out = append(out, at)
		}
	}
	return out, nil
}

func orderByAreas(todos []agentctx.AreaTodos, areas []string) []agentctx.AreaTodos {
	rank := make(map[string]int, len(areas))
	for i, a := range areas {
		rank[a] = i
	}
	sort.SliceStable(todos, func(i, j int) bool {
		ri, iok := rank[todos[i].Area]
		rj, jok := rank[todos[j].Area]
		switch {
		case iok && jok:
			return ri < rj
		default:
			return iok && !jok
		}
	})
	return todos
}

// --- Scheduler ---

// ScheduleInput is what the scheduler sees. DurationDays of 0 means the
// target is derived from the TODO list.
type ScheduleInput struct {
	Goal         string
	Todos        []agentctx.AreaTodos
	DurationDays int
}

// ScheduleRecommendation is the scheduler's output.
type ScheduleRecommendation struct {
	StartDate time.Time
	Tasks     []agentctx.ScheduledTask
}

// Scheduler recommends a calendar for a TODO list.
type Scheduler struct{ base }

// NewScheduler creates a scheduler.
func NewScheduler(deps Deps) *Scheduler {
	return &Scheduler{newBase("scheduler", deps)}
}

// TargetDuration is 1.2 times the summed task durations, truncated.
func TargetDuration(todos []agentctx.AreaTodos) int {
	total := 0
	for _, a := range todos {
		for _, t := range a.Tasks {
			total += t.DurationDays
		}
	}
	return int(float64(total) * 1.2)
}

// Invoke recommends a schedule. Tasks are returned sorted by start offset.
func (s *Scheduler) Invoke(ctx context.Context, in ScheduleInput) Result[ScheduleRecommendation] {
	today := startOfDay(s.deps.Clock.Now())

	duration := in.DurationDays
	if duration <= 0 {
		duration = TargetDuration(in.Todos)
	}

	rec, err := s.recommend(ctx, in, duration, today)
	if err != nil {
		s.warnFallback(err)
		return Fallback(DefaultSchedule(in.Todos, today), err)
	}
	return Ok(rec)
}

func (s *Scheduler) recommend(ctx context.Context, in ScheduleInput, duration int, today time.Time) (ScheduleRecommendation, error) {
	todosJSON, err := json.MarshalIndent(in.Todos, "", "  ")
	if err != nil {
		return ScheduleRecommendation{}, err
	}
	data := prompts.ScheduleData{
		Goal:         in.Goal,
		DurationDays: duration,
		TodosJSON:    string(todosJSON),
		Today:        today.Format(dateLayout),
	}

	var out struct {
		StartDate string                   `json:"start_date"`
		Tasks     []agentctx.ScheduledTask `json:"tasks"`
	}
	if err := s.completeJSON(ctx, prompts.ScheduleSystem, prompts.ScheduleUser, data, &out); err != nil {
		return ScheduleRecommendation{}, err
	}

	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(out.StartDate), today.Location())
	if err != nil {
		return ScheduleRecommendation{}, errors.Wrap(errors.ErrParse, "start_date: "+err.Error())
	}
	if len(out.Tasks) == 0 {
		return ScheduleRecommendation{}, errors.Wrap(errors.ErrParse, "schedule has no tasks")
	}
	for i, t := range out.Tasks {
		switch {
		case t.DurationDays < 0 || t.StartDayOffset < 0:
			return ScheduleRecommendation{}, errors.Wrapf(errors.ErrParse, "task %q: negative duration or offset", t.Title)
		case t.DurationDays == 0:
			out.Tasks[i].DurationDays = 1
		}
	}

	sort.SliceStable(out.Tasks, func(i, j int) bool {
		return out.Tasks[i].StartDayOffset < out.Tasks[j].StartDayOffset
	})
	return ScheduleRecommendation{StartDate: start, Tasks: out.Tasks}, nil
}

// DefaultSchedule starts at start and runs every task back to back in
// area order. Tasks without a positive duration take one day.
func DefaultSchedule(todos []agentctx.AreaTodos, start time.Time) ScheduleRecommendation {
	rec := ScheduleRecommendation{StartDate: start}
	offset := 0
	for _, a := range todos {
		for _, t := range a.Tasks {
			days := t.DurationDays
			if days <= 0 {
				days = 1
			}
			rec.Tasks = append(rec.Tasks, agentctx.ScheduledTask{
				Title:          t.Title,
				Area:           a.Area,
				DurationDays:   days,
				StartDayOffset: offset,
			})
			offset += days
		}
	}
	return rec
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// --- Reviewer ---

// ReviewInput is what the reviewer sees.
type ReviewInput struct {
	Goal             string
	TodosMarkdown    string
	ScheduleMarkdown string
	History          []agentctx.Entry
}

// ReviewResult is the reviewer's assessment of a plan.
type ReviewResult struct {
	Sufficient  bool         `json:"is_sufficient" yaml:"is_sufficient"`
	Realistic   bool         `json:"is_realistic" yaml:"is_realistic"`
	Comment     string       `json:"review_comment" yaml:"review_comment"`
	Suggestions []Suggestion `json:"suggestions" yaml:"suggestions"`
}

// SuggestionType tags the Suggestion union.
type SuggestionType string

const (
	SuggestAdd            SuggestionType = "add"
	SuggestRemove         SuggestionType = "remove"
	SuggestModifyDuration SuggestionType = "modify_duration"
)

// Suggestion is one proposed change. Which fields are set depends on Type:
// add uses Task, remove uses TaskTitle, modify_duration uses TaskTitle and
// NewDuration.
type Suggestion struct {
	Type        SuggestionType `json:"type" yaml:"type"`
	Area        string         `json:"area" yaml:"area"`
	Task        *agentctx.Task `json:"task,omitempty" yaml:"task,omitempty"`
	TaskTitle   string         `json:"task_title,omitempty" yaml:"task_title,omitempty"`
	NewDuration int            `json:"new_duration,omitempty" yaml:"new_duration,omitempty"`
}

// String renders the suggestion as a markdown bullet.
func (s Suggestion) String() string {
	switch s.Type {
	case SuggestAdd:
		return fmt.Sprintf("- Add: '%s' to %s (%d days)", s.Task.Title, s.Area, s.Task.DurationDays)
	case SuggestRemove:
		return fmt.Sprintf("- Remove: '%s' from %s", s.TaskTitle, s.Area)
	case SuggestModifyDuration:
		return fmt.Sprintf("- Change: '%s' in %s to %d days", s.TaskTitle, s.Area, s.NewDuration)
	default:
		return ""
	}
}

func (s Suggestion) valid() bool {
	if strings.TrimSpace(s.Area) == "" {
		return false
	}
	switch s.Type {
	case SuggestAdd:
		return s.Task != nil && strings.TrimSpace(s.Task.Title) != ""
	case SuggestRemove:
		return strings.TrimSpace(s.TaskTitle) != ""
	case SuggestModifyDuration:
		return strings.TrimSpace(s.TaskTitle) != "" && s.NewDuration > 0
	default:
		return false
	}
}

// Reviewer evaluates a TODO list and schedule.
type Reviewer struct{ base }

// NewReviewer creates a reviewer.
func NewReviewer(deps Deps) *Reviewer {
	return &Reviewer{newBase("reviewer", deps)}
}

// Invoke reviews the plan. Suggestions of unknown type or missing their
// required fields are dropped.
func (r *Reviewer) Invoke(ctx context.Context, in ReviewInput) Result[ReviewResult] {
	data := prompts.ReviewData{
		Goal:             in.Goal,
		TodosMarkdown:    in.TodosMarkdown,
		ScheduleMarkdown: in.ScheduleMarkdown,
		History:          historyLines(in.History),
	}

	var out struct {
		Sufficient  *bool        `json:"is_sufficient"`
		Realistic   *bool        `json:"is_realistic"`
		Comment     string       `json:"review_comment"`
		Suggestions []Suggestion `json:"suggestions"`
	}
	err := r.completeJSON(ctx, prompts.ReviewSystem, prompts.ReviewUser, data, &out)
	if err == nil && (out.Sufficient == nil || out.Realistic == nil) {
		err = errors.Wrap(errors.ErrParse, "is_sufficient and is_realistic are required")
	}
	if err != nil {
		r.warnFallback(err)
		return Fallback(DefaultReview(), err)
	}

	res := ReviewResult{
		Sufficient: *out.Sufficient,
		Realistic:  *out.Realistic,
		Comment:    out.Comment,
	}
	for _, s := range out.Suggestions {
		if s.valid() {
			res.Suggestions = append(res.Suggestions, s)
		} else {
			r.log.Debug().Str("type", string(s.Type)).Msg("dropping malformed suggestion")
		}
	}
	return Ok(res)
}

// DefaultReview approves the plan without suggestions.
func DefaultReview() ReviewResult {
	return ReviewResult{
		Sufficient: true,
		Realistic:  true,
		Comment:    "The TODO list and schedule look reasonable.",
	}
}

var (
	_ Agent[GoalInput, GoalAnalysis]               = (*TaskPlanner)(nil)
	_ Agent[TodoInput, []agentctx.AreaTodos]       = (*TodoGenerator)(nil)
	_ Agent[ScheduleInput, ScheduleRecommendation] = (*Scheduler)(nil)
	_ Agent[ReviewInput, ReviewResult]             = (*Reviewer)(nil)
)
