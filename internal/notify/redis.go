package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier fans out case events over Redis pub/sub so every API
// instance sees events published by any other.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, prefix: "case:"}, nil
}

// NewRedisNotifierWithClient creates a notifier from an existing Redis client
func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: "case:"}
}

func (n *RedisNotifier) channel(caseID string) string {
	return n.prefix + caseID
}

func (n *RedisNotifier) Publish(ctx context.Context, caseID, event string, payload any) error {
	env, err := envelope(caseID, event, payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel(caseID), body).Err(); err != nil {
		return fmt.Errorf("publish case event: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, caseID string) (<-chan Envelope, func(), error) {
	pubsub := n.client.Subscribe(ctx, n.channel(caseID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to case channel: %w", err)
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("notify: drop malformed event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
