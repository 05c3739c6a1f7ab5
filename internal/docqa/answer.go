package docqa

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/graph"
	"github.com/imkarma/crew/internal/prompts"
)

// NodeAnswer is the only node of the Q&A graph.
const NodeAnswer = "answer"

// Retriever finds passages for a question.
type Retriever interface {
	SearchWithScore(ctx context.Context, query string, k int) ([]Hit, error)
}

// State is threaded through the Q&A graph.
type State struct {
	Question string
	Hits     []Hit
	Answer   string
	Degraded bool
	Cause    error
}

// Answerer retrieves passages and answers questions over them.
type Answerer struct {
	retriever Retriever
	qa        *agent.DocumentQA
	graph     *graph.Graph[State]
	topK      int
	log       zerolog.Logger
}

// NewAnswerer builds the single-node answer graph.
func NewAnswerer(r Retriever, deps agent.Deps, topK int) *Answerer {
	if topK <= 0 {
		topK = 4
	}
	a := &Answerer{
		retriever: r,
		qa:        agent.NewDocumentQA(deps),
		topK:      topK,
		log:       deps.Logger.With().Str("component", "docqa").Logger(),
	}
	a.graph = graph.New[State]().
		AddNode(NodeAnswer, a.answer).
		SetEntry(NodeAnswer).
		AddEdge(NodeAnswer, graph.End).
		WithLogger(a.log).
		MustBuild()
	return a
}

// Ask answers question from the top-k retrieved passages.
func (a *Answerer) Ask(ctx context.Context, question string) (State, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return State{}, errors.Wrap(errors.ErrEmptyValue, "question")
	}

	hits, err := a.retriever.SearchWithScore(ctx, question, a.topK)
	if err != nil {
		return State{}, err
	}
	a.log.Debug().Int("hits", len(hits)).Msg("retrieved passages")

	return a.graph.Run(ctx, State{Question: question, Hits: hits})
}

func (a *Answerer) answer(ctx context.Context, s State) (State, error) {
	passages := make([]prompts.Passage, len(s.Hits))
	for i, h := range s.Hits {
		passages[i] = prompts.Passage{Source: h.Source, Score: h.Score, Text: h.Text}
	}

	res := a.qa.Invoke(ctx, agent.Question{Text: s.Question, Passages: passages})
	s.Answer = res.Value
	s.Degraded = res.Degraded
	s.Cause = res.Cause
	return s, nil
}
