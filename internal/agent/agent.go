// Package agent defines the LLM-backed agents crew pipelines are built
// from. Every agent renders its prompts, calls the completion service and
// parses the reply. When any of that fails it logs a warning and returns a
// default value marked as degraded, so pipelines always make progress.
package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/clock"
	agentctx "github.com/imkarma/crew/internal/context"
	"github.com/imkarma/crew/internal/llm"
	"github.com/imkarma/crew/internal/prompts"
)

// Agent is the common contract: one typed input, one typed outcome.
type Agent[In, Out any] interface {
	Name() string
	Invoke(ctx context.Context, in In) Result[Out]
}

// Result is an agent outcome. Degraded is set when Value is a default
// produced after Cause made the real answer unavailable.
type Result[T any] struct {
	Value    T
	Degraded bool
	Cause    error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fallback wraps a default value produced because of cause.
func Fallback[T any](v T, cause error) Result[T] {
	return Result[T]{Value: v, Degraded: true, Cause: cause}
}

// Deps are the collaborators every agent needs.
type Deps struct {
	Client llm.Client
	Logger zerolog.Logger
	Clock  clock.Clock
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	return d
}

// base implements the render-call part shared by all agents.
type base struct {
	name string
	deps Deps
	log  zerolog.Logger
}

func newBase(name string, deps Deps) base {
	deps = deps.withDefaults()
	return base{
		name: name,
		deps: deps,
		log:  deps.Logger.With().Str("agent", name).Logger(),
	}
}

func (b base) Name() string { return b.name }

// complete renders the system/user pair and returns the model text.
func (b base) complete(ctx context.Context, system, user prompts.PromptID, data any, json bool) (string, error) {
	sys, usr, err := prompts.Pair(system, user, data)
	if err != nil {
		return "", err
	}

	resp, err := b.deps.Client.Complete(ctx, llm.Request{System: sys, User: usr, JSON: json})
	if err != nil {
		return "", err
	}
	b.log.Debug().Dur("duration", resp.Duration).Int("chars", len(resp.Output)).Msg("completion received")
	return resp.Output, nil
}

// completeJSON calls the service in JSON mode and decodes the reply into v.
func (b base) completeJSON(ctx context.Context, system, user prompts.PromptID, data any, v any) error {
	out, err := b.complete(ctx, system, user, data, true)
	if err != nil {
		return err
	}
	return llm.DecodeJSON(out, v)
}

func (b base) warnFallback(err error) {
	b.log.Warn().Err(err).Msg("falling back to default output")
}

func historyLines(entries []agentctx.Entry) []prompts.HistoryLine {
	lines := make([]prompts.HistoryLine, len(entries))
	for i, e := range entries {
		lines[i] = prompts.HistoryLine{Role: e.Role, Message: e.Message}
	}
	return lines
}
