package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shrek82/torm/core"
)

// MemoryCacheMiddleware caches select results in memory.
// Reads are cached only when their context comes from WithCache. Every
// upsert or delete on a table invalidates the cached reads of that table.
// Concurrent misses for the same read share one round trip.
type MemoryCacheMiddleware struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration

	mu        sync.RWMutex
	items     map[string]memoryCacheEntry
	gens      map[string]uint64
	group     singleflight.Group
	stopClean chan struct{}
	stopOnce  sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

type memoryCacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

// NewMemoryCache creates a memory cache. The optional argument sets DefaultTTL,
// which is five minutes otherwise.
func NewMemoryCache(defaultTTL ...time.Duration) *MemoryCacheMiddleware {
	ttl := 5 * time.Minute
	if len(defaultTTL) > 0 {
		ttl = defaultTTL[0]
	}
	return &MemoryCacheMiddleware{
		DefaultTTL:      ttl,
		CleanupInterval: time.Minute,
		items:           make(map[string]memoryCacheEntry),
		gens:            make(map[string]uint64),
		stopClean:       make(chan struct{}),
	}
}

func (m *MemoryCacheMiddleware) Name() string {
	return "MemoryCache"
}

func (m *MemoryCacheMiddleware) Init(db *core.DB) error {
	go m.cleanupLoop()
	return nil
}

func (m *MemoryCacheMiddleware) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopClean) })
	return nil
}

// Stats returns the number of cache hits and misses so far.
func (m *MemoryCacheMiddleware) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

func (m *MemoryCacheMiddleware) cleanupLoop() {
	ticker := time.NewTicker(m.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCacheMiddleware) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCacheMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	if stmt.Kind.Writes() {
		// invalidate even on failure: the write may have reached the store
		defer m.invalidate(stmt.Table)
		return next(ctx, stmt)
	}
	if stmt.Kind != core.KindSelect {
		return next(ctx, stmt)
	}
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok {
		return next(ctx, stmt)
	}

	m.mu.RLock()
	gen := m.gens[stmt.Table]
	m.mu.RUnlock()
	key, err := cacheKey(stmt, gen)
	if err != nil {
		return next(ctx, stmt)
	}

	if res, ok := m.lookup(key); ok {
		m.hits.Add(1)
		return res, nil
	}
	m.misses.Add(1)

	v, err, _ := m.group.Do(key, func() (any, error) {
		res, err := next(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if data, err := encodeResult(res); err == nil {
			m.store(key, data, ttl)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Result), nil
}

func (m *MemoryCacheMiddleware) lookup(key string) (*core.Result, bool) {
	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()
	if !found {
		return nil, false
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false
	}
	res, err := decodeResult(entry.Data)
	if err != nil {
		return nil, false
	}
	return res, true
}

func (m *MemoryCacheMiddleware) store(key string, data []byte, ttl time.Duration) {
	entry := memoryCacheEntry{Data: data}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()
}

func (m *MemoryCacheMiddleware) invalidate(table string) {
	m.mu.Lock()
	m.gens[table]++
	m.mu.Unlock()
}
