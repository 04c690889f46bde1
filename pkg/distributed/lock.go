// Package distributed provides Redis-backed coordination primitives
// shared by relay instances.
package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the key expired or was taken
// over by another holder.
var ErrNotHeld = errors.New("lock is not held by this instance")

// unlockScript deletes the key only when it still carries our token, so
// an expired lock reclaimed by someone else is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a single-holder lease on a Redis key. The TTL bounds how long
// a crashed holder can block others; critical sections must stay well
// under it.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts a single acquisition.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Lock polls until the lease is acquired, the context ends, or the wait
// exceeds the lock TTL.
func (l *Lock) Lock(ctx context.Context) error {
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for lock %s", l.key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (l *Lock) Unlock(ctx context.Context) error {
	released, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if released == 0 {
		return ErrNotHeld
	}
	return nil
}

// LockManager mints locks under a shared key prefix.
type LockManager struct {
	client *redis.Client
	prefix string
}

func NewLockManager(client *redis.Client, prefix string) *LockManager {
	return &LockManager{client: client, prefix: prefix}
}

func (m *LockManager) AcquireLock(key string, ttl time.Duration) *Lock {
	return &Lock{
		client: m.client,
		key:    m.prefix + key,
		token:  newToken(),
		ttl:    ttl,
	}
}
