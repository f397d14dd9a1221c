package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/util"
)

var (
	// ErrInvalidCoordinates indica latitude/longitude fora da faixa.
	ErrInvalidCoordinates = errors.New("coordenadas inválidas")
	// ErrNotFound indica que o dono nunca registrou posição.
	ErrNotFound = errors.New("localização não registrada")
)

// Posição usada enquanto o aparelho não reporta nenhuma (Manila).
const (
	DefaultLat      = 14.5995
	DefaultLng      = 120.9842
	DefaultAccuracy = 50
)

// Snapshot é a última posição conhecida do usuário.
type Snapshot struct {
	Lat       float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lng       float64   `json:"lng" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate confere faixa das coordenadas.
func (s Snapshot) Validate() error {
	// NaN falha em gte/lte, então as tags também cobrem esse caso.
	if err := util.ValidateStruct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return nil
}

// Default devolve a posição padrão.
func Default() Snapshot {
	return Snapshot{Lat: DefaultLat, Lng: DefaultLng, Accuracy: DefaultAccuracy}
}

// Location converte para o formato gravado no alerta.
func (s Snapshot) Location() history.Location {
	return history.Location{Lat: s.Lat, Lng: s.Lng, Accuracy: s.Accuracy}
}

// Backend persiste a última posição por dono.
type Backend interface {
	Load(ctx context.Context, owner string) (Snapshot, error)
	Store(ctx context.Context, owner string, s Snapshot) error
	Delete(ctx context.Context, owner string) error
}

// Tracker expõe a posição atual e registra atualizações no histórico.
type Tracker struct {
	backend Backend
	log     history.Log
	now     func() time.Time
}

// NewTracker cria o provedor; log pode ser nil.
func NewTracker(backend Backend, log history.Log) *Tracker {
	return &Tracker{backend: backend, log: log, now: time.Now}
}

// Current devolve a última posição ou a padrão.
func (t *Tracker) Current(ctx context.Context, owner string) (Snapshot, error) {
	s, err := t.backend.Load(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Update grava nova posição e anexa evento "Location updated".
func (t *Tracker) Update(ctx context.Context, owner string, s Snapshot) (Snapshot, error) {
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	s.UpdatedAt = t.now().UTC()
	if err := t.backend.Store(ctx, owner, s); err != nil {
		return Snapshot{}, fmt.Errorf("gravar localização: %w", err)
	}
	if t.log != nil {
		_, err := t.log.Append(ctx, history.Event{
			Owner:     owner,
			Type:      history.TypeLocation,
			Title:     "Location updated",
			Details:   fmt.Sprintf("Lat: %.4f, Lng: %.4f (accuracy %.0fm)", s.Lat, s.Lng, s.Accuracy),
			Timestamp: s.UpdatedAt,
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("registrar histórico: %w", err)
		}
	}
	return s, nil
}

// Forget apaga a última posição do dono.
func (t *Tracker) Forget(ctx context.Context, owner string) error {
	return t.backend.Delete(ctx, owner)
}

// MemoryBackend guarda posições em memória.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]Snapshot
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]Snapshot)}
}

func (m *MemoryBackend) Load(ctx context.Context, owner string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[owner]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryBackend) Store(ctx context.Context, owner string, s Snapshot) error {
	m.mu.Lock()
	m.items[owner] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, owner string) error {
	m.mu.Lock()
	delete(m.items, owner)
	m.mu.Unlock()
	return nil
}
