package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
)

// unlockScript удаляет ключ, только если он всё ещё принадлежит нам.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker — блокировка диалога между репликами процессора (SET NX PX).
//
// TTL ограничивает время удержания, если процесс упал с захваченной блокировкой.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// RedisLockerConfig — настройки RedisLocker.
type RedisLockerConfig struct {
	Prefix string        // префикс ключей (default: "botflow:")
	TTL    time.Duration // время жизни блокировки (default: 30s)
	Retry  time.Duration // интервал повторных попыток (default: 50ms)
}

// NewRedisLocker создаёт RedisLocker.
func NewRedisLocker(client redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		retry:  cfg.Retry,
	}
	if l.prefix == "" {
		l.prefix = "botflow:"
	}
	if l.ttl <= 0 {
		l.ttl = defaultLockTTL
	}
	if l.retry <= 0 {
		l.retry = defaultLockRetry
	}
	return l
}

// Lock захватывает ключ, повторяя попытки до отмены ctx.
func (l *RedisLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
					return fmt.Errorf("redis unlock %s: %w", key, err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
