package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	agentctx "github.com/imkarma/crew/internal/context"
	"github.com/imkarma/crew/internal/store"
)

// record is the persisted form of a session: the graph state plus the full
// context store, history included.
type record struct {
	State   State         `json:"state" yaml:"state"`
	Context agentctx.Data `json:"context" yaml:"context"`
}

func newRecord(s State) record {
	rec := record{State: s}
	if s.Context != nil {
		rec.Context = s.Context.Export()
	}
	return rec
}

// Save copies s into sess, ready for store.SaveSession.
func Save(sess *store.Session, s State) error {
	data, err := json.Marshal(newRecord(s))
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	sess.State = string(data)
	sess.CurrentNode = s.CurrentNode
	sess.Degraded = degradedList(s.Degraded)
	switch {
	case s.Finished():
		sess.Status = store.StatusFinished
	case s.AwaitingInput():
		sess.Status = store.StatusAwaitingInput
	default:
		sess.Status = store.StatusRunning
	}
	return nil
}

// Load rebuilds the state saved in sess, with a fresh context store
// configured like the pipeline.
func (p *Pipeline) Load(sess *store.Session) (State, error) {
	return Restore(sess, agentctx.WithClock(p.clock), agentctx.WithHistoryLimit(p.historyLimit))
}

// Restore rebuilds the state saved in sess. It needs no completion client,
// so read-only commands can show and export plans offline.
func Restore(sess *store.Session, opts ...agentctx.Option) (State, error) {
	if sess.Kind != store.KindPlan {
		return State{}, fmt.Errorf("session %s is a %s session, not a plan", sess.ShortID(), sess.Kind)
	}
	var rec record
	if sess.State != "" {
		if err := json.Unmarshal([]byte(sess.State), &rec); err != nil {
			return State{}, fmt.Errorf("decode session state: %w", err)
		}
	}

	s := rec.State
	s.SessionID = sess.ID
	if s.Goal == "" {
		s.Goal = sess.Title
	}
	s.Context = agentctx.New(opts...)
	s.Context.Restore(rec.Context)
	return s, nil
}

func degradedList(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
