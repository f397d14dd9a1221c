package contact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory mantém contatos em memória, por dono.
type MemoryDirectory struct {
	mu    sync.RWMutex
	items map[string][]Contact
	now   func() time.Time
}

// NewMemoryDirectory cria diretório vazio.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{items: make(map[string][]Contact), now: time.Now}
}

func (d *MemoryDirectory) List(ctx context.Context, owner string) ([]Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	src := d.items[owner]
	out := make([]Contact, len(src))
	copy(out, src)
	return out, nil
}

func (d *MemoryDirectory) Add(ctx context.Context, owner string, c Contact) (Contact, error) {
	c, err := Normalize(c)
	if err != nil {
		return Contact{}, err
	}
	c.ID = uuid.New()
	c.Owner = owner
	c.CreatedAt = d.now().UTC()

	d.mu.Lock()
	d.items[owner] = append(d.items[owner], c)
	d.mu.Unlock()
	return c, nil
}

func (d *MemoryDirectory) Update(ctx context.Context, owner string, c Contact) (Contact, error) {
	norm, err := Normalize(c)
	if err != nil {
		return Contact{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.items[owner]
	for i := range list {
		if list[i].ID == c.ID {
			norm.Owner = owner
			norm.CreatedAt = list[i].CreatedAt
			list[i] = norm
			return norm, nil
		}
	}
	return Contact{}, ErrNotFound
}

func (d *MemoryDirectory) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.items[owner]
	for i := range list {
		if list[i].ID == id {
			d.items[owner] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (d *MemoryDirectory) DeleteOwner(ctx context.Context, owner string) error {
	d.mu.Lock()
	delete(d.items, owner)
	d.mu.Unlock()
	return nil
}
