// pkg/leases/memory.go
package leases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memEntry struct {
	token     string
	expiresAt time.Time
}

// memManager backs dev without Redis and the test suite.
type memManager struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func NewMemoryManager() Manager {
	return &memManager{entries: map[string]memEntry{}}
}

func (m *memManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	m.entries[key] = memEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return &memLease{mgr: m, key: key, token: token}, nil
}

type memLease struct {
	mgr   *memManager
	key   string
	token string
}

func (l *memLease) Extend(ctx context.Context, ttl time.Duration) error {
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	e, ok := l.mgr.entries[l.key]
	if !ok || e.token != l.token || time.Now().After(e.expiresAt) {
		return ErrLost
	}
	e.expiresAt = time.Now().Add(ttl)
	l.mgr.entries[l.key] = e
	return nil
}

func (l *memLease) Release(ctx context.Context) error {
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	if e, ok := l.mgr.entries[l.key]; ok && e.token == l.token {
		delete(l.mgr.entries, l.key)
	}
	return nil
}
