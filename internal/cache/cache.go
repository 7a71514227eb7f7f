package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alignkit/attribution-service/internal/config"
)

// RunLocker guards against overlapping runs of the same job. Locks are
// advisory: alignment upserts are idempotent, so a lost lock only costs
// duplicate work, never duplicate rows.
type RunLocker interface {
	// TryLock acquires the named lock for ttl. It returns false when the
	// lock is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases the named lock.
	Unlock(ctx context.Context, key string) error
}

// ValkeyLocker implements RunLocker on a Valkey/Redis instance.
type ValkeyLocker struct {
	client *redis.Client
}

// NewValkeyLocker creates a run locker backed by Valkey.
func NewValkeyLocker(ctx context.Context, cfg config.Valkey) (*ValkeyLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return &ValkeyLocker{client: client}, nil
}

// TryLock acquires the lock with SET NX.
func (l *ValkeyLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, "runlock:"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *ValkeyLocker) Unlock(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, "runlock:"+key).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (l *ValkeyLocker) Close() error {
	return l.client.Close()
}

// MemoryLocker is an in-process RunLocker used when no Valkey host is
// configured, and in tests. Entries expire lazily on the next TryLock.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewMemoryLocker creates an in-process run locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// TryLock acquires the lock unless a live entry exists.
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, held := l.locks[key]; held && l.now().Before(expires) {
		return false, nil
	}
	l.locks[key] = l.now().Add(ttl)
	return true, nil
}

// Unlock releases the lock.
func (l *MemoryLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}
