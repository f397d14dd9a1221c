package history

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

// MemoryLog guarda o histórico em memória, por dono.
type MemoryLog struct {
	mu     sync.RWMutex
	seq    int64
	events map[string][]Event
	now    func() time.Time
}

// NewMemoryLog cria histórico vazio.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{events: make(map[string][]Event), now: time.Now}
}

func (l *MemoryLog) Append(ctx context.Context, e Event) (Event, error) {
	if _, err := ParseType(string(e.Type)); err != nil || e.Type == "" {
		return Event{}, ErrInvalidType
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e = prepare(e, l.now())
	l.seq++
	e.Seq = l.seq
	// slice em ordem de inserção; leitura percorre de trás para frente
	l.events[e.Owner] = append(l.events[e.Owner], e)
	return e, nil
}

func (l *MemoryLog) Query(ctx context.Context, f Filter) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		l.mu.RLock()
		src := l.events[f.Owner]
		snapshot := make([]Event, len(src))
		copy(snapshot, src)
		l.mu.RUnlock()

		limit := NormalizeLimit(f.Limit)
		emitted := 0
		for i := len(snapshot) - 1; i >= 0 && emitted < limit; i-- {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			if !matches(snapshot[i], f) {
				continue
			}
			emitted++
			if !yield(snapshot[i], nil) {
				return
			}
		}
	}
}

func (l *MemoryLog) Trim(ctx context.Context, owner string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.events[owner]
	if len(list) <= keep {
		return 0, nil
	}
	removed := len(list) - keep
	kept := make([]Event, keep)
	copy(kept, list[removed:])
	l.events[owner] = kept
	return removed, nil
}

func (l *MemoryLog) Clear(ctx context.Context, owner string) error {
	l.mu.Lock()
	delete(l.events, owner)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLog) Owners(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.events))
	for owner := range l.events {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

// MemoryAudit guarda PanicEvents em memória.
type MemoryAudit struct {
	mu     sync.RWMutex
	events []PanicEvent // mais recente primeiro
	now    func() time.Time
}

// NewMemoryAudit cria auditoria vazia.
func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{now: time.Now}
}

func (a *MemoryAudit) Record(ctx context.Context, e PanicEvent) (PanicEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e = preparePanic(e, a.now())
	a.events = append([]PanicEvent{e}, a.events...)
	return e, nil
}

func (a *MemoryAudit) List(ctx context.Context, f AuditFilter) ([]PanicEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = len(a.events)
	}
	out := make([]PanicEvent, 0)
	for _, e := range a.events {
		if len(out) >= limit {
			break
		}
		if f.Username != "" && e.Username != f.Username {
			continue
		}
		if f.EmergencyType != "" && e.EmergencyType != f.EmergencyType {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *MemoryAudit) Replace(ctx context.Context, events []PanicEvent) error {
	now := a.now()
	replaced := make([]PanicEvent, len(events))
	for i, e := range events {
		replaced[i] = preparePanic(e, now)
	}
	sort.SliceStable(replaced, func(i, j int) bool {
		return replaced[i].Timestamp.After(replaced[j].Timestamp)
	})

	a.mu.Lock()
	a.events = replaced
	a.mu.Unlock()
	return nil
}
