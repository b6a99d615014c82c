package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker guards work that must run on one replica at a time.
type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// releaseScript deletes the lock only while owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockKey is the redis key for the named lock.
func (c *Client) LockKey(name string) string {
	return key("lock", name)
}

// AcquireLock takes the named lock for owner until ttl elapses.
func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}
	return c.SetNX(ctx, c.LockKey(name), owner, ttl)
}

// ReleaseLock is a no-op when the lock expired or passed to another owner.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return releaseScript.Run(ctx, cmd, []string{c.LockKey(name)}, owner).Err()
}
