package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Clock источник текущего времени, подменяется в тестах.
type Clock func() time.Time

// TTLCache in-memory кэш с TTL. Создаётся один раз в main и передаётся по ссылке.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        Clock
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// New создаёт кэш. Если clock == nil, используется time.Now.
func New(defaultTTL time.Duration, clock Clock) *TTLCache {
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        clock,
	}
}

// Get возвращает значение, если оно есть и не истекло.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Set сохраняет значение. ttl <= 0 означает TTL по умолчанию.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{data: value, expiresAt: c.now().Add(ttl)}
}

// SetNX сохраняет значение только если ключа нет или он истёк.
func (c *TTLCache) SetNX(key string, value interface{}, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		return false
	}
	c.entries[key] = cacheEntry{data: value, expiresAt: now.Add(ttl)}
	return true
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (c *TTLCache) InvalidateByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// GetOrSet возвращает значение из кэша или вычисляет и сохраняет его.
func (c *TTLCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(key, value, ttl)
	return value, nil
}

// Len количество записей, включая ещё не вычищенные истёкшие.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge удаляет истёкшие записи.
func (c *TTLCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// RunCleanup периодически вызывает Purge до отмены контекста.
func (c *TTLCache) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Purge()
		}
	}
}
