package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultEntryLockTTL = 2 * time.Minute

// EntryLocker claims a price entry for one delivery attempt.
// ok is false when another worker holds the claim.
type EntryLocker interface {
	TryLock(ctx context.Context, entryID uint) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisEntryLocker shares claims between processes with SETNX and a TTL
type RedisEntryLocker struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisEntryLocker(rc *redis.Client, prefix string, ttl time.Duration) *RedisEntryLocker {
	if ttl <= 0 {
		ttl = defaultEntryLockTTL
	}
	return &RedisEntryLocker{rc: rc, prefix: prefix, ttl: ttl}
}

func (l *RedisEntryLocker) key(entryID uint) string {
	return l.prefix + fmt.Sprintf(utils.PriceEntrySyncLockKey, entryID)
}

func (l *RedisEntryLocker) TryLock(ctx context.Context, entryID uint) (func(), bool, error) {
	key := l.key(entryID)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim price entry %d: %w", entryID, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		_ = releaseScript.Run(context.Background(), l.rc, []string{key}, token).Err()
	}
	return release, true, nil
}

// LocalEntryLocker claims entries within this process only
type LocalEntryLocker struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func NewLocalEntryLocker() *LocalEntryLocker {
	return &LocalEntryLocker{held: make(map[uint]struct{})}
}

func (l *LocalEntryLocker) TryLock(_ context.Context, entryID uint) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[entryID]; busy {
		return nil, false, nil
	}
	l.held[entryID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, entryID)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}

// NewEntryLocker picks the redis locker when a client is available
func NewEntryLocker(rc *redis.Client, prefix string, ttl time.Duration) EntryLocker {
	if rc == nil {
		return NewLocalEntryLocker()
	}
	return NewRedisEntryLocker(rc, prefix, ttl)
}
