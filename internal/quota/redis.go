package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "quota"

// The TTL is set only when INCR creates the key, so the retention window
// starts at the first recorded turn.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// Missing keys are left alone so a late release cannot create a counter
// without a TTL.
var decrScript = redis.NewScript(`
	local count = tonumber(redis.call('GET', KEYS[1]) or '0')
	if count <= 0 then
		return 0
	end
	return redis.call('DECR', KEYS[1])
`)

// RedisStore keeps counters in Redis strings.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses "quota".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// key length-prefixes the user id so ids containing ':' cannot collide.
func (s *RedisStore) key(k Key) string {
	return fmt.Sprintf("%s:%d:%s:%s", s.prefix, len(k.UserID), k.UserID, k.LessonID)
}

func (s *RedisStore) Count(ctx context.Context, key Key) (int64, error) {
	n, err := s.client.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Incr(ctx context.Context, key Key, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.client, []string{s.key(key)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Decr(ctx context.Context, key Key) (int64, error) {
	n, err := decrScript.Run(ctx, s.client, []string{s.key(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis decr: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
