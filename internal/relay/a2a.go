package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/agent"
)

// DefaultInboxSize bounds the messages an A2AAgent holds before its
// handler blocks.
const DefaultInboxSize = 100

// Step is the work an A2AAgent performs. *agent.TextAgent satisfies it.
type Step interface {
	Name() string
	Next() string
	Invoke(ctx context.Context, in map[string]string) agent.Result[agent.StepResult]
	Forward(in map[string]string, res agent.StepResult) map[string]string
}

// A2AAgent runs a Step for every message addressed to it, replies to the
// message's ReplyTo agent and forwards its output down the chain.
type A2AAgent struct {
	step  Step
	mgr   *Manager
	inbox chan Message
	log   zerolog.Logger
}

// NewA2AAgent wraps step and registers its process handler on mgr.
func NewA2AAgent(step Step, mgr *Manager, log zerolog.Logger) *A2AAgent {
	a := &A2AAgent{
		step:  step,
		mgr:   mgr,
		inbox: make(chan Message, DefaultInboxSize),
		log:   log.With().Str("agent", step.Name()).Logger(),
	}
	mgr.Register(ProcessHandler(step.Name()), a.enqueue)
	return a
}

// Name is the wrapped step's name.
func (a *A2AAgent) Name() string { return a.step.Name() }

// Pending is the number of messages waiting in the inbox.
func (a *A2AAgent) Pending() int { return len(a.inbox) }

func (a *A2AAgent) enqueue(ctx context.Context, msg Message) error {
	select {
	case a.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process runs the step on in.
func (a *A2AAgent) Process(ctx context.Context, in map[string]string) agent.StepResult {
	return a.step.Invoke(ctx, in).Value
}

// SendTo publishes msg to target's process handler.
func (a *A2AAgent) SendTo(ctx context.Context, target string, msg Message) error {
	msg.Handler = ProcessHandler(target)
	msg.Sender = a.Name()
	if msg.Type == "" {
		msg.Type = TypeRequest
	}
	_, err := a.mgr.Publish(ctx, target, msg)
	return err
}

// Start handles inbox messages until ctx is done. Failures while handling
// one message are logged and do not stop the loop.
func (a *A2AAgent) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.inbox:
			if err := a.handle(ctx, msg); err != nil {
				a.log.Error().Err(err).Str("message_id", msg.MessageID).Msg("message handling failed")
			}
		}
	}
}

func (a *A2AAgent) handle(ctx context.Context, msg Message) error {
	a.log.Info().Str("from", msg.Sender).Str("message_id", msg.MessageID).Msg("processing message")
	res := a.Process(ctx, msg.Payload)

	if msg.ReplyTo != "" {
		reply := Message{
			Handler:    CollectHandler,
			Sender:     a.Name(),
			Type:       TypeResponse,
			SessionID:  msg.SessionID,
			OriginalID: msg.MessageID,
			Result:     &res,
		}
		if _, err := a.mgr.Publish(ctx, msg.ReplyTo, reply); err != nil {
			return fmt.Errorf("reply to %s: %w", msg.ReplyTo, err)
		}
	}

	if !msg.AutoForward {
		return nil
	}
	payload := a.step.Forward(msg.Payload, res)
	if payload == nil {
		return nil
	}
	return a.SendTo(ctx, a.step.Next(), Message{
		MessageID:   uuid.NewString(),
		ReplyTo:     msg.ReplyTo,
		AutoForward: true,
		SessionID:   msg.SessionID,
		Payload:     payload,
	})
}
