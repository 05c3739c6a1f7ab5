package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"github.com/imkarma/crew/internal/errors"
)

// pullTimeout is how long one BRPOPLPUSH waits before Pull rechecks ctx.
const pullTimeout = 1 // seconds

// RedisBus is a Bus on Redis lists. A topic is a list that producers
// RPUSH onto; a consumer moves the tail into the subscription's processing
// list with BRPOPLPUSH and removes it from there on Ack.
type RedisBus struct {
	pool      *redis.Pool
	namespace string
}

// envelope is the stored form of a message.
type envelope struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

// NewRedisBus connects lazily to the Redis server at addr. Keys are
// prefixed with "crew:<namespace>:".
func NewRedisBus(addr, namespace string) *RedisBus {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}
	return &RedisBus{pool: pool, namespace: namespace}
}

// EnsureTopic registers the topic and requeues messages a previous consumer
// pulled but never acked.
func (b *RedisBus) EnsureTopic(ctx context.Context, topic string) error {
	conn, err := b.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SADD", b.topicsKey(), topic); err != nil {
		return fmt.Errorf("%w: register topic %s: %v", errors.ErrTransport, topic, err)
	}
	processing := b.processingKey(topic + SubscriptionSuffix)
	for {
		_, err := redis.Bytes(redis.DoContext(conn, ctx, "RPOPLPUSH", processing, b.key(topic)))
		if err == redis.ErrNil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: requeue %s: %v", errors.ErrTransport, topic, err)
		}
	}
}

// Publish pushes data onto topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	known, err := redis.Bool(redis.DoContext(conn, ctx, "SISMEMBER", b.topicsKey(), topic))
	if err != nil {
		return "", fmt.Errorf("%w: lookup topic %s: %v", errors.ErrTransport, topic, err)
	}
	if !known {
		return "", fmt.Errorf("%w: topic %q does not exist", errors.ErrTransport, topic)
	}

	env := envelope{ID: uuid.NewString(), Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	if _, err := redis.DoContext(conn, ctx, "RPUSH", b.key(topic), raw); err != nil {
		return "", fmt.Errorf("%w: publish to %s: %v", errors.ErrTransport, topic, err)
	}
	return env.ID, nil
}

// Pull waits for the next message on subscription.
func (b *RedisBus) Pull(ctx context.Context, subscription string) (*Delivery, error) {
	topic := topicOf(subscription)
	processing := b.processingKey(subscription)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := b.pullOnce(ctx, topic, processing)
		if err == redis.ErrNil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: pull %s: %v", errors.ErrTransport, subscription, err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed entry; discard it.
			_ = b.remove(context.WithoutCancel(ctx), processing, raw)
			continue
		}
		return &Delivery{
			ID:   env.ID,
			Data: env.Data,
			ack: func(ctx context.Context) error {
				return b.remove(ctx, processing, raw)
			},
			nack: func(ctx context.Context) error {
				if err := b.remove(ctx, processing, raw); err != nil {
					return err
				}
				return b.push(ctx, topic, raw)
			},
		}, nil
	}
}

// Pending is the number of queued messages on topic.
func (b *RedisBus) Pending(ctx context.Context, topic string) (int, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return redis.Int(redis.DoContext(conn, ctx, "LLEN", b.key(topic)))
}

// Close releases pooled connections.
func (b *RedisBus) Close() error {
	return b.pool.Close()
}

func (b *RedisBus) pullOnce(ctx context.Context, topic, processing string) ([]byte, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.Bytes(redis.DoContext(conn, ctx, "BRPOPLPUSH", b.key(topic), processing, pullTimeout))
}

func (b *RedisBus) remove(ctx context.Context, processing string, raw []byte) error {
	conn, err := b.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := redis.DoContext(conn, ctx, "LREM", processing, 1, raw); err != nil {
		return fmt.Errorf("%w: ack: %v", errors.ErrTransport, err)
	}
	return nil
}

func (b *RedisBus) push(ctx context.Context, topic string, raw []byte) error {
	conn, err := b.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := redis.DoContext(conn, ctx, "RPUSH", b.key(topic), raw); err != nil {
		return fmt.Errorf("%w: requeue: %v", errors.ErrTransport, err)
	}
	return nil
}

func (b *RedisBus) conn(ctx context.Context) (redis.Conn, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to redis: %v", errors.ErrTransport, err)
	}
	return conn, nil
}

func (b *RedisBus) key(topic string) string {
	return "crew:" + b.namespace + ":" + topic
}

func (b *RedisBus) processingKey(subscription string) string {
	return b.key(subscription) + ":processing"
}

func (b *RedisBus) topicsKey() string {
	return "crew:" + b.namespace + ":topics"
}

var _ Bus = (*RedisBus)(nil)
