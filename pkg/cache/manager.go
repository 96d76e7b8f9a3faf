package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			lookupsTotal.WithLabelValues(kindLabel(key), resultMiss).Inc()
			return nil, ErrCacheMiss
		}
		errorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		errorsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		lookupsTotal.WithLabelValues(kindLabel(key), resultExpired).Inc()
		return nil, ErrCacheMiss
	}

	observeHit(key, &entry)
	return &entry, nil
}

// Set stores an entry with a Redis TTL matching its Expires field.
// Entries that are already expired are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		errorsTotal.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		errorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	entryBytes.WithLabelValues(kindLabel(key)).Set(float64(len(data)))
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		errorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Lookup adapts a Manager to string-keyed JSON values of one store with a
// fixed TTL.
type Lookup struct {
	manager *Manager
	store   string
	ttl     time.Duration
}

// NewLookup creates a lookup namespaced by store.
func NewLookup(manager *Manager, store string, ttl time.Duration) *Lookup {
	return &Lookup{manager: manager, store: store, ttl: ttl}
}

func (l *Lookup) key(name string) Key {
	return Key{Store: l.store, Kind: name}
}

// Load decodes the value stored under name into dst and reports a hit.
// A miss is not an error.
func (l *Lookup) Load(ctx context.Context, name string, dst any) (bool, error) {
	entry, err := l.manager.Get(ctx, l.key(name))
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := entry.Decode(dst); err != nil {
		errorsTotal.WithLabelValues("decode").Inc()
		return false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return true, nil
}

// Store encodes value under name.
func (l *Lookup) Store(ctx context.Context, name string, value any) error {
	entry, err := NewEntry(value, l.ttl)
	if err != nil {
		errorsTotal.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return l.manager.Set(ctx, l.key(name), entry)
}

// Invalidate drops the value stored under name.
func (l *Lookup) Invalidate(ctx context.Context, name string) error {
	return l.manager.Delete(ctx, l.key(name))
}
