package user

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore guarda contas em memória.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore cria store vazio.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (m *MemoryStore) Create(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Username]; ok {
		return ErrDuplicateUsername
	}
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Username]; !ok {
		return ErrNotFound
	}
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; !ok {
		return ErrNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *MemoryStore) Replace(ctx context.Context, users []User) error {
	next := make(map[string]User, len(users))
	for _, u := range users {
		next[u.Username] = u
	}
	m.mu.Lock()
	m.users = next
	m.mu.Unlock()
	return nil
}
