package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const retryInterval = 20 * time.Millisecond

// RedisLocker holds keys as SET NX PX entries owned by a random token.
type RedisLocker struct {
	client   *redis.Client
	script   *redis.Script
	settings func() Settings
	log      *zap.Logger
}

type Settings struct {
	TTL  time.Duration
	Wait time.Duration
}

func NewRedisLocker(client *redis.Client, settings func() Settings, log *zap.Logger) *RedisLocker {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client:   client,
		script:   redis.NewScript(lockReleaseScript),
		settings: settings,
		log:      log.Named("lock.redis"),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	ordered, err := sortedUnique(keys)
	if err != nil {
		return nil, err
	}
	settings := l.settings()
	deadline := time.Now().Add(settings.Wait)

	held := make(map[string]string, len(ordered))
	releaseAll := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for key, token := range held {
			if err := l.Release(releaseCtx, key, token); err != nil {
				l.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	for _, key := range ordered {
		for {
			token, ok, err := l.TryLock(ctx, key, settings.TTL)
			if err != nil {
				releaseAll()
				return nil, err
			}
			if ok {
				held[key] = token
				break
			}
			if time.Now().After(deadline) {
				releaseAll()
				return nil, ErrLockTimeout
			}
			select {
			case <-ctx.Done():
				releaseAll()
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}

	return releaseAll, nil
}

var _ Locker = (*RedisLocker)(nil)
