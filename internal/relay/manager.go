package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// HandlerFunc handles one decoded message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Manager publishes messages to agent topics and dispatches pulled
// messages to registered handlers.
type Manager struct {
	bus    Bus
	prefix string
	log    zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewManager creates a manager whose topics are named <prefix>-<agent>.
func NewManager(bus Bus, prefix string, log zerolog.Logger) *Manager {
	return &Manager{
		bus:      bus,
		prefix:   prefix,
		log:      log.With().Str("component", "relay").Logger(),
		handlers: make(map[string]HandlerFunc),
	}
}

// Topic is the topic for agentName.
func (m *Manager) Topic(agentName string) string {
	return TopicName(m.prefix, agentName)
}

// Subscription is the subscription for agentName.
func (m *Manager) Subscription(agentName string) string {
	return SubscriptionName(m.prefix, agentName)
}

// EnsureTopic creates the topic and subscription for agentName.
func (m *Manager) EnsureTopic(ctx context.Context, agentName string) error {
	if err := m.bus.EnsureTopic(ctx, m.Topic(agentName)); err != nil {
		return fmt.Errorf("ensure topic for %s: %w", agentName, err)
	}
	m.log.Debug().Str("topic", m.Topic(agentName)).Msg("topic ready")
	return nil
}

// Publish sends msg to target's topic and returns the bus message id.
func (m *Manager) Publish(ctx context.Context, target string, msg Message) (string, error) {
	data, err := encodeMessage(msg)
	if err != nil {
		return "", err
	}
	id, err := m.bus.Publish(ctx, m.Topic(target), data)
	if err != nil {
		m.log.Error().Err(err).Str("target", target).Msg("publish failed")
		return "", fmt.Errorf("publish to %s: %w", target, err)
	}
	m.log.Info().Str("target", target).Str("handler", msg.Handler).Str("id", id).Msg("message published")
	return id, nil
}

// Register installs fn for messages whose Handler is name, replacing any
// previous handler.
func (m *Manager) Register(name string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = fn
}

func (m *Manager) handler(name string) (HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.handlers[name]
	return fn, ok
}

// Listen pulls agentName's subscription until ctx is done. Messages that
// fail to decode are nacked; messages for unknown handlers are acked and
// dropped. Handler errors are logged and the message is still acked.
func (m *Manager) Listen(ctx context.Context, agentName string) error {
	sub := m.Subscription(agentName)
	m.log.Info().Str("subscription", sub).Msg("listening")

	for {
		d, err := m.bus.Pull(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listen on %s: %w", sub, err)
		}
		m.dispatch(ctx, agentName, d)
	}
}

func (m *Manager) dispatch(ctx context.Context, agentName string, d *Delivery) {
	log := m.log.With().Str("agent", agentName).Str("id", d.ID).Logger()

	msg, err := decodeMessage(d.Data)
	if err != nil {
		log.Error().Err(err).Msg("bad message")
		if err := d.Nack(ctx); err != nil {
			log.Warn().Err(err).Msg("nack failed")
		}
		return
	}

	if fn, ok := m.handler(msg.Handler); ok {
		if err := fn(ctx, msg); err != nil {
			log.Error().Err(err).Str("handler", msg.Handler).Msg("handler failed")
		}
	} else {
		log.Warn().Str("handler", msg.Handler).Msg("no handler registered; dropping message")
	}

	if err := d.Ack(ctx); err != nil {
		log.Warn().Err(err).Msg("ack failed")
	}
}
