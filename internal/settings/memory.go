package settings

import (
	"context"
	"sync"
)

// MemoryStore mantém preferências em memória; donos sem registro recebem os defaults.
type MemoryStore struct {
	mu          sync.RWMutex
	holdSeconds int
	items       map[string]Settings
}

func NewMemoryStore(defaultHoldSeconds int) *MemoryStore {
	return &MemoryStore{holdSeconds: defaultHoldSeconds, items: make(map[string]Settings)}
}

func (m *MemoryStore) Get(ctx context.Context, owner string) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.items[owner]; ok {
		return s, nil
	}
	return Defaults(m.holdSeconds), nil
}

func (m *MemoryStore) Save(ctx context.Context, owner string, s Settings) (Settings, error) {
	s, err := s.Validate()
	if err != nil {
		return Settings{}, err
	}
	m.mu.Lock()
	m.items[owner] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryStore) Reset(ctx context.Context, owner string) (Settings, error) {
	m.mu.Lock()
	delete(m.items, owner)
	m.mu.Unlock()
	return Defaults(m.holdSeconds), nil
}
