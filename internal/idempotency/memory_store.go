package idempotency

import (
	"context"
	"time"

	"github.com/ignatzorin/freelance-payments/internal/cache"
)

// MemoryStore хранилище для одной реплики и тестов, поверх TTLCache.
type MemoryStore struct {
	cache *cache.TTLCache
}

func NewMemoryStore(c *cache.TTLCache) *MemoryStore {
	return &MemoryStore{cache: c}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return "", ErrMiss
	}
	str, _ := value.(string)
	return str, nil
}

func (s *MemoryStore) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return s.cache.SetNX(key, value, ttl), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

func (s *MemoryStore) Key(scope, id string) string {
	return buildKey(scope, id)
}
