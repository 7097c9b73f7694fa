package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the single shared mutable resource of the admission pipeline.
// IncrWithTTL must be atomic against concurrent callers on the same key:
// every caller sees a distinct post-increment value, no lost updates.
type Counter interface {
	// IncrWithTTL atomically increments key and returns the post-increment
	// value. The TTL is applied only when the increment created the key.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Snapshot reports the number of live keys under prefix and the sum of
	// their values. Monitoring only; never changes counter values, though
	// implementations may drop already-expired entries while scanning.
	Snapshot(ctx context.Context, prefix string) (buckets int64, total int64, err error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// RedisCounter backs the ledger with a Redis INCR per admission check.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to the store at the given URL and verifies it
// with a ping. Returns (nil, nil) when no URL is configured, which the
// ledger treats as "no limit enforced".
func NewRedisCounter(ctx context.Context, url string) (*RedisCounter, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCounter{client: client}, nil
}

func (r *RedisCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	used, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if used == 1 {
		// First hit of the bucket. If we crash between INCR and EXPIRE the
		// key leaks until manual cleanup; acceptable for day buckets.
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return used, err
		}
	}
	return used, nil
}

func (r *RedisCounter) Snapshot(ctx context.Context, prefix string) (int64, int64, error) {
	var buckets, total int64

	// SCAN instead of KEYS so monitoring never blocks admission traffic.
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, 0, err
	}
	if len(keys) == 0 {
		return 0, 0, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, 0, err
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		buckets++
		total += n
	}
	return buckets, total, nil
}

func (r *RedisCounter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisCounter) Close() error {
	return r.client.Close()
}

// MemoryCounter is the in-process twin of RedisCounter, used in tests and
// redis-less development. TTLs are honored lazily on access.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryCounter creates an empty in-memory counter store.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]*memoryEntry)}
}

var _ Counter = (*MemoryCounter)(nil)

func (m *MemoryCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	e, ok := m.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		m.entries[key] = e
	}
	e.value++
	return e.value, nil
}

func (m *MemoryCounter) Snapshot(_ context.Context, prefix string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var buckets, total int64
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			buckets++
			total += e.value
		}
	}
	return buckets, total, nil
}

func (m *MemoryCounter) Ping(context.Context) error {
	return nil
}
