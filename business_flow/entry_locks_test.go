package businessflow

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEntryLocker(t *testing.T) {
	l := NewLocalEntryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, 1)
	assert.False(t, ok)

	other, ok, _ := l.TryLock(ctx, 2)
	assert.True(t, ok)
	other()

	release()
	release()

	again, ok, _ := l.TryLock(ctx, 1)
	assert.True(t, ok)
	again()
}

func TestLocalEntryLocker_SingleHolder(t *testing.T) {
	l := NewLocalEntryLocker()
	var held, maxHeld int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok, _ := l.TryLock(context.Background(), 7)
			if !ok {
				return
			}
			n := atomic.AddInt32(&held, 1)
			for {
				m := atomic.LoadInt32(&maxHeld)
				if n <= m || atomic.CompareAndSwapInt32(&maxHeld, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&held, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxHeld)
}

func TestNewEntryLocker_WithoutRedis(t *testing.T) {
	_, ok := NewEntryLocker(nil, "test:", time.Minute).(*LocalEntryLocker)
	assert.True(t, ok)
}

func TestRedisEntryLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rc := redis.NewClient(opts)
	defer rc.Close()

	ctx := context.Background()
	l := NewRedisEntryLocker(rc, "test:", 5*time.Second)
	defer rc.Del(ctx, l.key(99))

	release, ok, err := l.TryLock(ctx, 99)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	again, ok, err := l.TryLock(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}
