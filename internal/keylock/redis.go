package keylock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nftix/ticket-lifecycle/internal/config"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

const redisKeyPrefix = "lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`

var errLockTimeout = errors.New("lock wait timed out")

// RedisLocker serializes across service instances sharing one Redis.
type RedisLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	retry    time.Duration
	wait     time.Duration
	logger   *zap.Logger
	newToken func() string
}

// NewRedisLocker builds a locker on client.
func NewRedisLocker(client redis.Cmdable, cfg config.LockConfig, logger *zap.Logger) *RedisLocker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		retry:    retry,
		wait:     cfg.WaitTimeout,
		logger:   logger,
		newToken: uuid.NewString,
	}
}

// Lock polls SET NX until it wins, the wait timeout passes, or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	redisKey := redisKeyPrefix + key
	token := l.newToken()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, apperrors.NewLockUnavailable(key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperrors.NewLockUnavailable(key, errLockTimeout)
			}
			return nil, apperrors.NewLockUnavailable(key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) Unlock {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("release redis lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}
