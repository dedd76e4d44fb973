// pkg/shops/memory.go
package shops

import (
	"context"
	"sync"
	"time"
)

// memStore backs dev without a database and the test suite.
type memStore struct {
	mu    sync.RWMutex
	byDom map[string]Shop
}

func NewMemoryStore() Store {
	return &memStore{byDom: map[string]Shop{}}
}

func (m *memStore) Upsert(ctx context.Context, shop Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if prev, ok := m.byDom[shop.Domain]; ok {
		shop.InstalledAt = prev.InstalledAt
	} else {
		shop.InstalledAt = now
	}
	shop.TokenRefreshedAt = now
	shop.Active = true
	m.byDom[shop.Domain] = shop
	return nil
}

func (m *memStore) Get(ctx context.Context, domain string) (Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byDom[domain]; ok {
		return s, nil
	}
	return Shop{}, ErrNotFound
}

func (m *memStore) GetActive(ctx context.Context, domain string) (Shop, error) {
	s, err := m.Get(ctx, domain)
	if err != nil || !s.Active {
		return Shop{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) Deactivate(ctx context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byDom[domain]; ok {
		s.Active = false
		m.byDom[domain] = s
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDom, domain)
	return nil
}
