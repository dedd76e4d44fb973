// pkg/attempts/memory.go
package attempts

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	attempt   Attempt
	expiresAt time.Time
}

// memStore backs dev without Redis and the test suite.
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func NewMemoryStore() Store {
	return &memStore{entries: map[string]memEntry{}}
}

func (m *memStore) Create(ctx context.Context, nonce string, a Attempt, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[nonce] = memEntry{attempt: a, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memStore) Consume(ctx context.Context, nonce string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[nonce]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	delete(m.entries, nonce)
	if time.Now().After(e.expiresAt) {
		return Attempt{}, ErrNotFound
	}
	return e.attempt, nil
}
