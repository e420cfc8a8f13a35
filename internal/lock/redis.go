package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("slot lock timeout")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisSlotLocker serializes slot work across service instances with a
// SET NX PX lease. The TTL bounds how long a crashed holder blocks a slot.
type RedisSlotLocker struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
}

type Option func(*RedisSlotLocker)

func WithTTL(d time.Duration) Option { return func(l *RedisSlotLocker) { l.ttl = d } }

func WithRetryInterval(d time.Duration) Option { return func(l *RedisSlotLocker) { l.retry = d } }

func WithMaxWait(d time.Duration) Option { return func(l *RedisSlotLocker) { l.maxWait = d } }

func NewRedisSlotLocker(client redis.Cmdable, opts ...Option) *RedisSlotLocker {
	l := &RedisSlotLocker{
		client:  client,
		prefix:  "booking:slot-lock:",
		ttl:     10 * time.Second,
		retry:   25 * time.Millisecond,
		maxWait: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("acquire %s: %w", redisKey, ErrLockTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
