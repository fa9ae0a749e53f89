package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "redistbot:negotiation:"

// RedisRegistry stores negotiations as JSON values that expire after ttl.
type RedisRegistry struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisRegistry wraps a client. A zero ttl keeps entries until deleted.
func NewRedisRegistry(client redis.Cmdable, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) key(id string) string {
	return keyPrefix + id
}

// Put writes n and refreshes its expiry.
func (r *RedisRegistry) Put(ctx context.Context, n *Negotiation) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("negotiation: empty id")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation %s: %w", n.ID, err)
	}
	if err := r.client.Set(ctx, r.key(n.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save negotiation %s to redis: %w", n.ID, err)
	}
	return nil
}

// Get loads a negotiation, mapping a missing key to ErrNotFound.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Negotiation, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get negotiation %s from redis: %w", id, err)
	}
	var n Negotiation
	if err := json.Unmarshal(val, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal negotiation %s: %w", id, err)
	}
	return &n, nil
}

// Delete removes the key.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete negotiation %s from redis: %w", id, err)
	}
	return nil
}
