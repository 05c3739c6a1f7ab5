package agent

import (
	"context"
	"strings"

	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/prompts"
)

// Question is a document Q&A request with its retrieved passages.
type Question struct {
	Text     string
	Passages []prompts.Passage
}

// DocumentQA answers a question from retrieved passages.
type DocumentQA struct{ base }

// NewDocumentQA creates a document Q&A agent.
func NewDocumentQA(deps Deps) *DocumentQA {
	return &DocumentQA{newBase("document_qa", deps)}
}

// Invoke answers the question.
func (q *DocumentQA) Invoke(ctx context.Context, in Question) Result[string] {
	data := prompts.AnswerData{Question: in.Text, Passages: in.Passages}
	out, err := q.complete(ctx, prompts.AnswerSystem, prompts.AnswerUser, data, false)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errEmptyOutput(q.name)
	}
	if err != nil {
		q.warnFallback(err)
		return Fallback(DefaultAnswer, err)
	}
	return Ok(strings.TrimSpace(out))
}

// DefaultAnswer is returned when the question cannot be answered.
const DefaultAnswer = "Sorry, I could not answer that question right now."

func errEmptyOutput(agent string) error {
	return errors.Wrapf(errors.ErrEmptyValue, "%s returned no text", agent)
}

var _ Agent[Question, string] = (*DocumentQA)(nil)
