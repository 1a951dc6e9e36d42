package idempotency

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is a single-process Store. Oldest keys are evicted once size is
// reached, so it only bounds duplicates within its window.
type MemoryStore struct {
	cache *expirable.LRU[string, struct{}]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	_, ok := s.cache.Get(key)
	return ok, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string) error {
	s.cache.Add(key, struct{}{})
	return nil
}
