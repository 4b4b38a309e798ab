package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// APICachePrefix namespaces proxy cache keys in Redis.
const APICachePrefix = "ga-proxy-cache:"

// RedisCacheStore keeps cached responses in Redis with native key expiry.
type RedisCacheStore struct {
	rdb *redis.Client
}

func NewRedisCacheStore(rdb *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{rdb: rdb}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, APICachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, APICachePrefix+key, value, ttl).Err()
}

// Purge deletes every proxy cache key with SCAN + DEL and returns how many were removed.
func (s *RedisCacheStore) Purge(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, APICachePrefix+"*", 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCacheStore is the in-process fallback used when no Redis URL is configured.
// Expired entries are dropped lazily on read and swept on write.
type MemoryCacheStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	writes  int
}

const memorySweepEvery = 256

func NewMemoryCacheStore(now func() time.Time) *MemoryCacheStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCacheStore{entries: make(map[string]memoryEntry), now: now}
}

func (s *MemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: now.Add(ttl)}
	s.writes++
	if s.writes%memorySweepEvery == 0 {
		s.sweepLocked(now)
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryCacheStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *MemoryCacheStore) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *MemoryCacheStore) Purge(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = make(map[string]memoryEntry)
	return n, nil
}

// Len reports how many entries are held, expired ones included.
func (s *MemoryCacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
