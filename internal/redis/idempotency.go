package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrKeyExists   = errors.New("idempotency key already exists")
	ErrKeyNotFound = errors.New("idempotency key not found")
)

const pendingMarker = "pending"

func (c *Client) idempotencyKey(key string) string {
	return c.prefixKey("idempotency:" + key)
}

// GetIdempotencyKey retrieves an existing idempotency key's value
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

// MarkIdempotencyComplete stores the response replayed to duplicate requests.
func (c *Client) MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.idempotencyKey(key), response, ttl).Err()
}

// MarkIdempotencyFailed drops the key so the client may retry.
func (c *Client) MarkIdempotencyFailed(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.idempotencyKey(key)).Err()
}

// CheckAndSetIdempotency claims key for a new operation. It returns the cached
// response when the operation already completed, ErrKeyExists while another
// request with the same key is still running, and (nil, nil) when the caller
// now owns the key.
func (c *Client) CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	prefixedKey := c.idempotencyKey(key)

	set, err := c.rdb.SetNX(ctx, prefixedKey, pendingMarker, ttl).Result()
	if err != nil {
		return nil, err
	}
	if set {
		return nil, nil
	}

	val, err := c.rdb.Get(ctx, prefixedKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return nil, ErrKeyExists
	}
	if err != nil {
		return nil, err
	}

	if val == pendingMarker {
		return nil, ErrKeyExists
	}

	return []byte(val), nil
}
