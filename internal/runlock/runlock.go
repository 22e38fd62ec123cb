// Package runlock guards against two import runs writing to the same case
// database at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/domain"
)

const keyPrefix = "anam:import:lock:"

// ErrLocked another run holds the lock
var ErrLocked = errors.New("an import is already running against this case database")

// releaseScript deletes the key only while it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock a held run lock
type Lock struct {
	Key     string
	Token   string
	release func(ctx context.Context) error
	once    sync.Once
}

// Release frees the lock. Later calls are no-ops.
func (l *Lock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() { err = l.release(ctx) })
	return err
}

// RedisLocker takes locks shared by every importer using the same Redis.
// A lock expires after ttl if its holder dies.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a Redis backed locker
func NewRedisLocker(client *goredis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock for key with SET NX PX
func (r *RedisLocker) Acquire(ctx context.Context, key string) (*Lock, error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
	if err != nil {
		return nil, &domain.ConnectionError{Target: "redis", Err: err}
	}
	if !ok {
		holder, _ := r.client.Get(ctx, redisKey).Result()
		r.logger.Warn("Run lock held by another import",
			zap.String("key", redisKey),
			zap.String("holder", holder))
		return nil, fmt.Errorf("%w (%s)", ErrLocked, key)
	}

	r.logger.Debug("Run lock acquired", zap.String("key", redisKey), zap.String("token", token))
	return &Lock{
		Key:   redisKey,
		Token: token,
		release: func(ctx context.Context) error {
			n, err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int()
			if err != nil {
				return fmt.Errorf("failed to release run lock: %w", err)
			}
			if n == 0 {
				r.logger.Warn("Run lock expired before release", zap.String("key", redisKey))
			}
			return nil
		},
	}, nil
}

// LocalLocker in-process locks, used when Redis is disabled
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]string
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]string)}
}

// Acquire takes the lock for key
func (l *LocalLocker) Acquire(ctx context.Context, key string) (*Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, key)
	}
	token := uuid.New().String()
	l.held[key] = token

	return &Lock{
		Key:   key,
		Token: token,
		release: func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
			return nil
		},
	}, nil
}
