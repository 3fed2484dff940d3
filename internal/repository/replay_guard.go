package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard suppresses duplicate webhook deliveries. It is advisory:
// exactly-once semantics come from the registry's compare-and-set, the
// guard only saves gateway round trips when the payment processor retries.
type ReplayGuard interface {
	// FirstDelivery reports whether this event ID has not been seen before.
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
}

type redisReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayGuard builds a Redis-backed guard. Seen event IDs expire after
// the given TTL.
func NewReplayGuard(client *redis.Client, ttl time.Duration) ReplayGuard {
	return &redisReplayGuard{client: client, ttl: ttl}
}

func (g *redisReplayGuard) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return g.client.SetNX(ctx, "unlock:event:"+eventID, 1, g.ttl).Result()
}
