package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease based lock shared by every process that points at
// the same Redis key. The lease expires after ttl if the holder dies.
type RedisLocker struct {
	rdb        redis.UniversalClient
	key        string
	ttl        time.Duration
	retryEvery time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisLocker {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "appointments:ledger:lock"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl, retryEvery: 50 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			err := fmt.Errorf("could not acquire redis lock %s: %w", l.key, err)
			log.Error(err)
			return nil, err
		}
		if ok {
			log.Tracef("acquired redis lock %s", l.key)
			return func() { l.release(token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int64()
	if err != nil {
		log.Errorf("could not release redis lock %s: %v", l.key, err)
		return
	}
	if res == 0 {
		log.Warnf("redis lock %s expired before release", l.key)
	}
}
