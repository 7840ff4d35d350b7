package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("lock already held")

// Lock represents a distributed lock
type Lock struct {
	client *Client
	key    string
	value  string
}

var releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// AcquireLock takes key with SET NX PX. It returns ErrLockHeld when another
// owner holds it; callers treat that as "someone else is doing the work".
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	prefixedKey := c.prefixKey("lock:" + key)
	value := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, prefixedKey, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{
		client: c,
		key:    prefixedKey,
		value:  value,
	}, nil
}

// Release releases the lock if it is still held by the owner
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.client.rdb.Eval(ctx, releaseScript, []string{l.key}, l.value).Result()
	return err
}
