package history

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safetap/api/internal/protocol"
)

// DateLayout é o formato legível exibido ao usuário.
const DateLayout = "January 02, 2006 - 15:04"

const (
	defaultLimit = 200
	maxLimit     = 1000
)

// ErrInvalidType indica tipo de evento fora da lista.
var ErrInvalidType = errors.New("tipo de evento inválido")

// EventType classifica entradas do histórico do usuário.
type EventType string

const (
	TypeAlert    EventType = "alert"
	TypeLocation EventType = "location"
	TypeSystem   EventType = "system"
	TypeTest     EventType = "test"
)

// ParseType aceita vazio (sem filtro) ou um dos tipos conhecidos.
func ParseType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "", TypeAlert, TypeLocation, TypeSystem, TypeTest:
		return t, nil
	}
	return "", ErrInvalidType
}

// Event é um registro imutável do histórico.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"-"`
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Seq       int64     `json:"cursor"`
}

// Filter restringe a leitura do histórico. Before é o cursor (Seq) exclusivo.
type Filter struct {
	Owner  string
	Type   EventType
	Search string
	Day    time.Time
	Before int64
	Limit  int
}

// Log é o histórico append-only, mais recente primeiro.
type Log interface {
	Append(ctx context.Context, e Event) (Event, error)
	// Query devolve sequência preguiçosa; cada iteração reexecuta a consulta.
	Query(ctx context.Context, f Filter) iter.Seq2[Event, error]
	Trim(ctx context.Context, owner string, keep int) (int, error)
	Clear(ctx context.Context, owner string) error
	Owners(ctx context.Context) ([]string, error)
}

// Location é a posição registrada no momento do alerta.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// PanicEvent é o registro de auditoria visto pelo painel administrativo.
type PanicEvent struct {
	ID            uuid.UUID              `json:"id"`
	Username      string                 `json:"username"`
	EmergencyType protocol.EmergencyType `json:"emergency_type"`
	Location      Location               `json:"location"`
	Timestamp     time.Time              `json:"timestamp"`
	Date          string                 `json:"date"`
}

// AuditFilter restringe a listagem de PanicEvents.
type AuditFilter struct {
	Username      string
	EmergencyType protocol.EmergencyType
	Since         time.Time
	Limit         int
}

// AuditLog guarda PanicEvents, mais recente primeiro.
type AuditLog interface {
	Record(ctx context.Context, e PanicEvent) (PanicEvent, error)
	List(ctx context.Context, f AuditFilter) ([]PanicEvent, error)
	Replace(ctx context.Context, events []PanicEvent) error
}

// Collect materializa a sequência.
func Collect(seq iter.Seq2[Event, error]) ([]Event, error) {
	var out []Event
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FormatDate devolve o texto exibido ao usuário, sempre em UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func prepare(e Event, now time.Time) Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Date = FormatDate(e.Timestamp)
	return e
}

func preparePanic(e PanicEvent, now time.Time) PanicEvent {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Date = FormatDate(e.Timestamp)
	return e
}

// NormalizeLimit devolve o tamanho de página efetivo: zero, negativo ou acima
// do máximo vira o padrão.
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func matches(e Event, f Filter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Before > 0 && e.Seq >= f.Before {
		return false
	}
	if !f.Day.IsZero() && !sameDay(e.Timestamp, f.Day) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		haystack := strings.ToLower(e.Title + " " + e.Details)
		if !strings.Contains(haystack, strings.ToLower(q)) {
			return false
		}
	}
	return true
}
