package service

import (
	"context"
	"sync"
	"time"
)

// OnceMarker records a key the first time it is seen. Mark returns true only for the first call
// within ttl.
type OnceMarker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryOnce is a process-local OnceMarker.
type MemoryOnce struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryOnce() *MemoryOnce {
	return &MemoryOnce{seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryOnce) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = now.Add(ttl)
	return true, nil
}
