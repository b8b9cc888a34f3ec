package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store in process using ttlcache.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryStore creates an in-process store with automatic cleanup.
func NewMemoryStore() *MemoryStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()

	return &MemoryStore{cache: c}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
