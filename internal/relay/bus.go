// Package relay passes spec pipeline work between agents over a message
// bus. Each agent owns a topic; a Manager decodes deliveries and
// dispatches them to registered handlers, and an Orchestrator wires the
// five spec agents into a chain and collects their results.
package relay

import (
	"context"
	"strings"
)

// SubscriptionSuffix turns a topic name into its subscription name.
const SubscriptionSuffix = "-sub"

// Bus is a topic based message queue with at-least-once delivery.
type Bus interface {
	// EnsureTopic creates the topic and its subscription if they do not
	// exist yet.
	EnsureTopic(ctx context.Context, topic string) error

	// Publish appends data to topic and returns the bus message id.
	Publish(ctx context.Context, topic string, data []byte) (string, error)

	// Pull blocks until a message is available on the subscription or ctx
	// is done.
	Pull(ctx context.Context, subscription string) (*Delivery, error)

	Close() error
}

// Delivery is a pulled message. It must be acked once handled or nacked
// to make it available again.
type Delivery struct {
	ID   string
	Data []byte

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// Ack marks the message as handled.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack returns the message to its topic for redelivery.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

// TopicName is the topic an agent listens on.
func TopicName(prefix, agent string) string {
	return prefix + "-" + agent
}

// SubscriptionName is the subscription an agent pulls from.
func SubscriptionName(prefix, agent string) string {
	return TopicName(prefix, agent) + SubscriptionSuffix
}

func topicOf(subscription string) string {
	return strings.TrimSuffix(subscription, SubscriptionSuffix)
}
