// Package notify publishes marketplace domain events to Redis pub/sub so the
// Gateway can forward them over SSE.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jobmate/marketplace-service/internal/marketplace"
)

var _ marketplace.Publisher = (*RedisPublisher)(nil)

// RedisPublisher publishes each event on the channel named after its type.
type RedisPublisher struct {
	rdb redis.UniversalClient
}

// NewRedisPublisher returns a publisher on rdb.
func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish encodes e as JSON and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, e marketplace.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	if err := p.rdb.Publish(ctx, e.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe returns a subscription on the given event types. Used by the
// CLI to tail events.
func (p *RedisPublisher) Subscribe(ctx context.Context, types ...string) *redis.PubSub {
	return p.rdb.Subscribe(ctx, types...)
}

// AllEvents lists every event type the service publishes.
var AllEvents = []string{
	marketplace.EventApplicationSubmitted,
	marketplace.EventApplicationAccepted,
	marketplace.EventApplicationRejected,
	marketplace.EventJobCompleted,
	marketplace.EventCommentPosted,
	marketplace.EventJobDeadlinePassed,
}
