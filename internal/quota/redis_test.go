package quota

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set TEST_REDIS_ADDR to run these against a live server.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	prefix := "quota-test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		client.Close()
	})
	return NewRedisStore(client, prefix)
}

func TestRedisStoreConcurrentIncr(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	key := Key{UserID: "u1", LessonID: "l1"}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Incr(ctx, key, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.Count(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, workers, count)

	ttl, err := store.client.PTTL(ctx, store.key(key)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStoreMissingKeyCountsZero(t *testing.T) {
	store := newTestRedisStore(t)
	count, err := store.Count(context.Background(), Key{UserID: "nobody", LessonID: "l1"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisKeySeparatesIDsContainingColons(t *testing.T) {
	store := NewRedisStore(nil, "p")

	a := store.key(Key{UserID: "a:b", LessonID: "c"})
	b := store.key(Key{UserID: "a", LessonID: "b:c"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "p:3:a:b:c", a)
}

func TestRedisStoreDecrNeverCreatesOrGoesNegative(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	key := Key{UserID: "u1", LessonID: "l1"}

	got, err := store.Decr(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
	exists, err := store.client.Exists(ctx, store.key(key)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, exists)

	_, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	_, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)

	got, err = store.Decr(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}
