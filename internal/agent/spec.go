package agent

import (
	"context"
	"strings"

	"github.com/imkarma/crew/internal/prompts"
)

// Payload field names shared by the spec pipeline agents and the relay.
const (
	FieldInput              = "input"
	FieldRequirementSpec    = "requirement_spec"
	FieldValidationFeedback = "validation_feedback"
	FieldValidatorFeedback  = "validator_feedback"
	FieldServiceFlow        = "service_flow"
	FieldAPISpec            = "api_spec"
	FieldAPIValidation      = "api_validation"
)

// Spec pipeline agent names, in chain order. They double as relay topic
// suffixes.
const (
	RequirementAnalysis  = "requirement-analysis"
	RequirementValidator = "requirement-validator"
	ServiceFlowCreator   = "service-flow-creator"
	APISpecCreator       = "api-spec-creator"
	APISpecValidator     = "api-spec-validator"
)

// StepStatus reports whether a text agent produced its output.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
)

// StepResult is the outcome of one spec pipeline step. A failed step
// carries Error instead of output fields; it is never returned as a Go
// error.
type StepResult struct {
	Agent  string            `json:"agent" yaml:"agent"`
	Status StepStatus        `json:"status" yaml:"status"`
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Completed reports whether the step succeeded.
func (r StepResult) Completed() bool { return r.Status == StatusCompleted }

// Output returns the step's primary output field, if any.
func (r StepResult) Output() string {
	switch r.Agent {
	case RequirementAnalysis:
		return r.Fields[FieldRequirementSpec]
	case RequirementValidator:
		return r.Fields[FieldValidatorFeedback]
	case ServiceFlowCreator:
		return r.Fields[FieldServiceFlow]
	case APISpecCreator:
		return r.Fields[FieldAPISpec]
	case APISpecValidator:
		return r.Fields[FieldAPIValidation]
	}
	return ""
}

// TextAgent is a spec pipeline step: it turns a field map into free text
// and knows which agent comes next and what to send it.
type TextAgent struct {
	base
	system, user prompts.PromptID
	output       string
	next         string
	data         func(in map[string]string) prompts.SpecData
	carry        func(in map[string]string) map[string]string
	forward      func(in map[string]string, out string) map[string]string
}

// Next is the agent that receives this one's output, or "" for the last step.
func (a *TextAgent) Next() string { return a.next }

// Invoke runs the step. Service failures produce a failed StepResult.
func (a *TextAgent) Invoke(ctx context.Context, in map[string]string) Result[StepResult] {
	text, err := a.complete(ctx, a.system, a.user, a.data(in), false)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyOutput(a.name)
	}
	if err != nil {
		a.warnFallback(err)
		return Fallback(StepResult{Agent: a.name, Status: StatusFailed, Error: err.Error()}, err)
	}

	fields := map[string]string{a.output: text}
	if a.carry != nil {
		for k, v := range a.carry(in) {
			fields[k] = v
		}
	}
	return Ok(StepResult{Agent: a.name, Status: StatusCompleted, Fields: fields})
}

// Forward builds the payload for the next agent from this step's input and
// result. It returns nil for the last step or a failed result.
func (a *TextAgent) Forward(in map[string]string, res StepResult) map[string]string {
	if a.next == "" || a.forward == nil || !res.Completed() {
		return nil
	}
	return a.forward(in, res.Fields[a.output])
}

// NewRequirementAnalyst turns a project description into a requirements
// specification.
func NewRequirementAnalyst(deps Deps) *TextAgent {
	return &TextAgent{
		base:   newBase(RequirementAnalysis, deps),
		system: prompts.RequirementAnalysisSystem,
		user:   prompts.RequirementAnalysisUser,
		output: FieldRequirementSpec,
		next:   RequirementValidator,
		data: func(in map[string]string) prompts.SpecData {
			return prompts.SpecData{Input: in[FieldInput]}
		},
		forward: func(_ map[string]string, out string) map[string]string {
			return map[string]string{FieldInput: out}
		},
	}
}

// NewRequirementValidator reviews a requirements specification.
func NewRequirementValidator(deps Deps) *TextAgent {
	return &TextAgent{
		base:   newBase(RequirementValidator, deps),
		system: prompts.RequirementValidationSystem,
		user:   prompts.RequirementValidationUser,
		output: FieldValidatorFeedback,
		next:   ServiceFlowCreator,
		data: func(in map[string]string) prompts.SpecData {
			return prompts.SpecData{RequirementSpec: in[FieldInput]}
		},
		carry: func(in map[string]string) map[string]string {
			return map[string]string{FieldRequirementSpec: in[FieldInput]}
		},
		forward: func(in map[string]string, out string) map[string]string {
			return map[string]string{FieldInput: in[FieldInput], FieldValidationFeedback: out}
		},
	}
}

// NewFlowCreator designs the service flow for a specification.
func NewFlowCreator(deps Deps) *TextAgent {
	return &TextAgent{
		base:   newBase(ServiceFlowCreator, deps),
		system: prompts.ServiceFlowSystem,
		user:   prompts.ServiceFlowUser,
		output: FieldServiceFlow,
		next:   APISpecCreator,
		data: func(in map[string]string) prompts.SpecData {
			return prompts.SpecData{
				RequirementSpec:    in[FieldInput],
				ValidationFeedback: in[FieldValidationFeedback],
			}
		},
		carry: func(in map[string]string) map[string]string {
			return map[string]string{FieldRequirementSpec: in[FieldInput]}
		},
		forward: func(in map[string]string, out string) map[string]string {
			return map[string]string{FieldRequirementSpec: in[FieldInput], FieldServiceFlow: out}
		},
	}
}

// NewAPISpecCreator writes an API specification.
func NewAPISpecCreator(deps Deps) *TextAgent {
	return &TextAgent{
		base:   newBase(APISpecCreator, deps),
		system: prompts.APISpecSystem,
		user:   prompts.APISpecUser,
		output: FieldAPISpec,
		next:   APISpecValidator,
		data: func(in map[string]string) prompts.SpecData {
			return prompts.SpecData{
				RequirementSpec: in[FieldRequirementSpec],
				ServiceFlow:     in[FieldServiceFlow],
			}
		},
		carry: func(in map[string]string) map[string]string {
			return map[string]string{
				FieldRequirementSpec: in[FieldRequirementSpec],
				FieldServiceFlow:     in[FieldServiceFlow],
			}
		},
		forward: func(in map[string]string, out string) map[string]string {
			return map[string]string{
				FieldInput:           out,
				FieldRequirementSpec: in[FieldRequirementSpec],
				FieldServiceFlow:     in[FieldServiceFlow],
			}
		},
	}
}

// NewAPISpecValidator reviews an API specification. It is the last step.
func NewAPISpecValidator(deps Deps) *TextAgent {
	return &TextAgent{
		base:   newBase(APISpecValidator, deps),
		system: prompts.APIValidationSystem,
		user:   prompts.APIValidationUser,
		output: FieldAPIValidation,
		data: func(in map[string]string) prompts.SpecData {
			return prompts.SpecData{
				APISpec:         in[FieldInput],
				RequirementSpec: in[FieldRequirementSpec],
				ServiceFlow:     in[FieldServiceFlow],
			}
		},
		carry: func(in map[string]string) map[string]string {
			return map[string]string{FieldAPISpec: in[FieldInput]}
		},
	}
}

// SpecPipeline returns the five spec agents in chain order.
func SpecPipeline(deps Deps) []*TextAgent {
	return []*TextAgent{
		NewRequirementAnalyst(deps),
		NewRequirementValidator(deps),
		NewFlowCreator(deps),
		NewAPISpecCreator(deps),
		NewAPISpecValidator(deps),
	}
}

var _ Agent[map[string]string, StepResult] = (*TextAgent)(nil)
