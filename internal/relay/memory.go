package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/imkarma/crew/internal/errors"
)

// DefaultQueueSize bounds how many undelivered messages a MemoryBus topic
// holds before Publish blocks.
const DefaultQueueSize = 100

// MemoryBus is an in-process Bus on buffered channels. Messages are lost
// when the process exits.
type MemoryBus struct {
	mu     sync.RWMutex
	size   int
	topics map[string]chan memoryMessage
}

type memoryMessage struct {
	id   string
	data []byte
}

// NewMemoryBus creates a bus whose topics buffer up to size messages.
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MemoryBus{size: size, topics: make(map[string]chan memoryMessage)}
}

// EnsureTopic creates topic if needed.
func (b *MemoryBus) EnsureTopic(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(chan memoryMessage, b.size)
	}
	return nil
}

// Publish queues data on topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	ch, err := b.queue(topic)
	if err != nil {
		return "", err
	}
	msg := memoryMessage{id: uuid.NewString(), data: append([]byte(nil), data...)}
	if err := b.push(ctx, ch, msg); err != nil {
		return "", err
	}
	return msg.id, nil
}

// Pull waits for the next message on subscription.
func (b *MemoryBus) Pull(ctx context.Context, subscription string) (*Delivery, error) {
	ch, err := b.queue(topicOf(subscription))
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-ch:
		return &Delivery{
			ID:   msg.id,
			Data: msg.data,
			nack: func(ctx context.Context) error { return b.push(ctx, ch, msg) },
		}, nil
	}
}

// Pending is the number of queued messages on topic.
func (b *MemoryBus) Pending(topic string) int {
	ch, err := b.queue(topic)
	if err != nil {
		return 0
	}
	return len(ch)
}

// Close is a no-op; queued messages are dropped with the bus.
func (b *MemoryBus) Close() error { return nil }

func (b *MemoryBus) queue(topic string) (chan memoryMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.topics[topic]
	if !ok {
		return nil, fmt.Errorf("%w: topic %q does not exist", errors.ErrTransport, topic)
	}
	return ch, nil
}

func (b *MemoryBus) push(ctx context.Context, ch chan memoryMessage, msg memoryMessage) error {
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Bus = (*MemoryBus)(nil)
