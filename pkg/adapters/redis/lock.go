package redis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Both scripts act only while the key still holds the caller's token, so a
// holder whose lease expired cannot touch its successor's.
var (
	unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// Locker implements ports.DistributedLocker with SET NX PX keys.
type Locker struct {
	client    *backend.Client
	prefix    string
	poll      time.Duration
	keepAlive time.Duration
	logger    *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithPollInterval sets how often a contended lock is retried (default 100ms).
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) { l.poll = d }
}

// WithKeepAlive renews held locks every d, so the TTL only bounds how long a
// crashed holder blocks the directory. Zero disables renewal.
func WithKeepAlive(d time.Duration) LockerOption {
	return func(l *Locker) { l.keepAlive = d }
}

// WithLockLogger sets the logger reporting lost leases.
func WithLockLogger(logger *slog.Logger) LockerOption {
	return func(l *Locker) { l.logger = logger }
}

// NewLocker creates a Redis locker. Keys are prefix + "lock:" + key.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newToken() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d:%d", host, os.Getpid(), time.Now().UnixNano())
}

// Lock acquires key, polling until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := newToken()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return l.held(lockKey, token, ttl), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// held starts the optional renewal loop and returns the matching unlock.
func (l *Locker) held(lockKey, token string, ttl time.Duration) ports.UnlockFunc {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	if l.keepAlive > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.renew(lockKey, token, ttl, stop)
		}()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
		return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}
}

func (l *Locker) renew(lockKey, token string, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(l.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		n, err := refreshScript.Run(context.Background(), l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
		switch {
		case err != nil:
			l.logger.Warn("failed to renew lock", "key", lockKey, "err", err)
		case n == 0:
			l.logger.Error("lock lost before release", "key", lockKey)
			return
		}
	}
}
