package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which sprints have a live websocket attached, across instances.
// A marker key is set with TTL on connect, refreshed while the socket is open,
// and removed on disconnect. A crashed instance's markers simply expire.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

// Acquire marks the sprint as attached. It returns false when another connection
// already holds the marker.
func (p *Presence) Acquire(ctx context.Context, sessionID, connID string) (bool, error) {
	return p.client.SetNX(ctx, p.key(sessionID), connID, p.ttl).Result()
}

// Refresh extends the marker if connID still owns it.
func (p *Presence) Refresh(ctx context.Context, sessionID, connID string) error {
	owner, err := p.client.Get(ctx, p.key(sessionID)).Result()
	if err != nil {
		return err
	}
	if owner != connID {
		return nil
	}
	return p.client.Expire(ctx, p.key(sessionID), p.ttl).Err()
}

// Release removes the marker if connID still owns it.
func (p *Presence) Release(ctx context.Context, sessionID, connID string) error {
	owner, err := p.client.Get(ctx, p.key(sessionID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != connID {
		return nil
	}
	return p.client.Del(ctx, p.key(sessionID)).Err()
}

func (p *Presence) key(sessionID string) string {
	return "sprint:presence:" + sessionID
}
