package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Lua script for safe lock release (only owner can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lock extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DistributedLock is an owner-tagged SET NX lock. Only the instance that acquired it can
// extend or release it.
type DistributedLock struct {
	client   redis.UniversalClient
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a lock on "lock:<key>". owner is stored as the lock value and
// is suffixed with a random token so two goroutines of one instance never share ownership.
func NewDistributedLock(client redis.UniversalClient, key, owner string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  owner + ":" + uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock once. It returns false when another owner holds it.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	// Use SET NX PX to atomically set the lock if it doesn't exist
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domainErrors.ErrLockAcquisitionFailed, err)
	}

	l.acquired = success
	return success, nil
}

// Extend resets the lock TTL
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return domainErrors.ErrLockNotHeld
	}

	result, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	if val, ok := result.(int64); !ok || val == 0 {
		l.acquired = false
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Release releases the lock if this instance still owns it
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}
	l.acquired = false

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if val, ok := result.(int64); !ok || val == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}

// LockFactory hands out job locks bound to one Redis client and instance id.
type LockFactory struct {
	client redis.UniversalClient
	owner  string
}

func NewLockFactory(client redis.UniversalClient, owner string) *LockFactory {
	return &LockFactory{client: client, owner: owner}
}

// TryLock acquires the named lock once. A nil lock with a nil error means it is held elsewhere.
func (f *LockFactory) TryLock(ctx context.Context, name string, ttl time.Duration) (*DistributedLock, error) {
	l := NewDistributedLock(f.client, name, f.owner, ttl)
	ok, err := l.Acquire(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return l, nil
}
