package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/metrics"
	"github.com/safetap/api/internal/protocol"
)

// Dependencies reúne os colaboradores do motor.
type Dependencies struct {
	Clock      Clock
	Protocols  *protocol.Table
	Contacts   ContactLister
	Settings   SettingsSource
	Locations  LocationSource
	Log        history.Log
	Audit      history.AuditLog
	Deliveries Enqueuer
}

// Engine mantém no máximo uma sessão por ator e executa o dispatch no commit.
type Engine struct {
	clock      Clock
	protocols  *protocol.Table
	contacts   ContactLister
	settings   SettingsSource
	locations  LocationSource
	log        history.Log
	audit      history.AuditLog
	deliveries Enqueuer
	logger     zerolog.Logger

	cooldown    time.Duration
	lastCommits *gocache.Cache

	locks *keyedMutex

	mu       sync.RWMutex
	sessions map[string]Session
	// resultados de commits feitos pelo sweep, entregues no próximo poll
	pending map[string]pendingResult
	hooks   []func(Result)
}

// PendingTTL é por quanto tempo um commit feito pelo sweep aguarda o poll do ator.
const PendingTTL = 10 * time.Minute

type pendingResult struct {
	result Result
	at     time.Time
}

// NewEngine cria o motor. cooldown zero desativa o intervalo mínimo entre commits.
func NewEngine(deps Dependencies, cooldown time.Duration, logger zerolog.Logger) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Protocols == nil {
		deps.Protocols = protocol.DefaultTable()
	}
	e := &Engine{
		clock:      deps.Clock,
		protocols:  deps.Protocols,
		contacts:   deps.Contacts,
		settings:   deps.Settings,
		locations:  deps.Locations,
		log:        deps.Log,
		audit:      deps.Audit,
		deliveries: deps.Deliveries,
		logger:     logger,
		cooldown:   cooldown,
		locks:      newKeyedMutex(),
		sessions:   make(map[string]Session),
		pending:    make(map[string]pendingResult),
	}
	if cooldown > 0 {
		// o cache só libera memória; a decisão usa o relógio injetado
		e.lastCommits = gocache.New(2*cooldown, 2*cooldown)
	}
	return e
}

// OnCommit registra callback executado após cada commit bem-sucedido.
func (e *Engine) OnCommit(fn func(Result)) {
	e.mu.Lock()
	e.hooks = append(e.hooks, fn)
	e.mu.Unlock()
}

// Start entra em Holding com o tipo informado e o tempo de pressão atual do usuário.
func (e *Engine) Start(ctx context.Context, actor Actor, t protocol.EmergencyType) (Session, error) {
	if t == "" {
		t = protocol.General
	}
	if !t.Valid() {
		return Session{}, protocol.ErrUnknownEmergencyType
	}

	unlock := e.locks.Lock(actor.Key)
	defer unlock()

	e.mu.RLock()
	_, active := e.sessions[actor.Key]
	e.mu.RUnlock()
	if active {
		metrics.TrackAlert("rejected", string(t))
		return Session{}, ErrAlreadyActive
	}
	if e.inCooldown(actor.Key) {
		metrics.TrackAlert("rejected", string(t))
		return Session{}, ErrCooldown
	}

	prefs, err := e.settings.Get(ctx, actor.Key)
	if err != nil {
		return Session{}, fmt.Errorf("ler preferências: %w", err)
	}

	sess := Session{
		Actor:         actor,
		Owner:         actor.Key,
		EmergencyType: t,
		StartedAt:     e.clock.Now(),
		Required:      time.Duration(prefs.HoldDuration) * time.Second,
	}

	e.mu.Lock()
	e.sessions[actor.Key] = sess
	delete(e.pending, actor.Key)
	e.mu.Unlock()

	metrics.ActiveAlerts.Inc()
	metrics.TrackAlert("start", string(t))
	e.logger.Info().Str("owner", actor.Key).Str("emergency_type", string(t)).Dur("required", sess.Required).Msg("alert: holding")
	return sess, nil
}

// Cancel descarta a sessão sem efeitos colaterais.
func (e *Engine) Cancel(ctx context.Context, actor Actor) error {
	unlock := e.locks.Lock(actor.Key)
	defer unlock()

	e.mu.Lock()
	sess, ok := e.sessions[actor.Key]
	if ok {
		delete(e.sessions, actor.Key)
	}
	e.mu.Unlock()
	if !ok {
		return ErrNotActive
	}

	metrics.ActiveAlerts.Dec()
	metrics.TrackAlert("cancel", string(sess.EmergencyType))
	e.logger.Info().Str("owner", actor.Key).Msg("alert: cancelado")
	return nil
}

// Poll avalia o tempo decorrido. Antes do limite devolve Holding; no limite ou
// depois executa o commit uma única vez e devolve Committed com o resultado.
// Sem sessão devolve Idle.
func (e *Engine) Poll(ctx context.Context, actor Actor) (Status, *Result, error) {
	unlock := e.locks.Lock(actor.Key)
	defer unlock()

	e.mu.Lock()
	sess, ok := e.sessions[actor.Key]
	if !ok {
		p, swept := e.pending[actor.Key]
		delete(e.pending, actor.Key)
		e.mu.Unlock()
		if swept && e.clock.Now().Sub(p.at) < PendingTTL {
			res := p.result
			return Status{State: StateCommitted, EmergencyType: res.EmergencyType, Progress: 1}, &res, nil
		}
		return Status{State: StateIdle}, nil, nil
	}
	e.mu.Unlock()

	status := e.status(sess)
	if status.State == StateHolding {
		return status, nil, nil
	}

	res, err := e.commit(ctx, sess)
	if err != nil {
		return status, nil, err
	}
	return status, &res, nil
}

// Sweep comita todas as sessões que já atingiram o limite. Devolve quantas.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	now := e.clock.Now()
	var due []Actor
	e.mu.Lock()
	for key, p := range e.pending {
		if now.Sub(p.at) >= PendingTTL {
			delete(e.pending, key)
		}
	}
	for _, s := range e.sessions {
		if now.Sub(s.StartedAt) >= s.Required {
			due = append(due, s.Actor)
		}
	}
	e.mu.Unlock()

	var (
		committed int
		firstErr  error
	)
	for _, actor := range due {
		ok, err := e.sweepOne(ctx, actor)
		if err != nil {
			e.logger.Error().Err(err).Str("owner", actor.Key).Msg("alert: commit pelo sweep falhou")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			committed++
		}
	}
	return committed, firstErr
}

func (e *Engine) sweepOne(ctx context.Context, actor Actor) (bool, error) {
	unlock := e.locks.Lock(actor.Key)
	defer unlock()

	e.mu.RLock()
	sess, ok := e.sessions[actor.Key]
	e.mu.RUnlock()
	// Pode ter sido cancelada ou comitada por poll entre a varredura e o lock.
	if !ok || e.status(sess).State != StateCommitted {
		return false, nil
	}

	res, err := e.commit(ctx, sess)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	e.pending[actor.Key] = pendingResult{result: res, at: e.clock.Now()}
	e.mu.Unlock()
	return true, nil
}

// Discard apaga todo o estado do ator: sessão em andamento, resultado pendente
// e cooldown. Usado quando a conta é removida.
func (e *Engine) Discard(actor Actor) {
	unlock := e.locks.Lock(actor.Key)
	defer unlock()

	e.mu.Lock()
	sess, active := e.sessions[actor.Key]
	delete(e.sessions, actor.Key)
	delete(e.pending, actor.Key)
	e.mu.Unlock()
	if active {
		metrics.ActiveAlerts.Dec()
		metrics.TrackAlert("cancel", string(sess.EmergencyType))
	}
	if e.lastCommits != nil {
		e.lastCommits.Delete(actor.Key)
	}
}

func (e *Engine) inCooldown(key string) bool {
	if e.lastCommits == nil {
		return false
	}
	v, found := e.lastCommits.Get(key)
	if !found {
		return false
	}
	at, ok := v.(time.Time)
	return ok && e.clock.Now().Sub(at) < e.cooldown
}

// Active lista as sessões em Holding, mais antigas primeiro.
func (e *Engine) Active() []Session {
	e.mu.RLock()
	out := make([]Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Owner < out[j].Owner
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (e *Engine) status(sess Session) Status {
	elapsed := e.clock.Now().Sub(sess.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	st := Status{
		State:         StateHolding,
		EmergencyType: sess.EmergencyType,
		Elapsed:       elapsed.Seconds(),
		Required:      sess.Required.Seconds(),
		Progress:      1,
	}
	if sess.Required > 0 {
		st.Progress = min(float64(elapsed)/float64(sess.Required), 1)
	}
	if elapsed >= sess.Required {
		st.State = StateCommitted
	}
	return st
}

// commit deve ser chamado com o lock do ator. A sessão sai do mapa antes do
// dispatch: um erro no dispatch não reabre o alerta.
func (e *Engine) commit(ctx context.Context, sess Session) (Result, error) {
	e.mu.Lock()
	delete(e.sessions, sess.Actor.Key)
	e.mu.Unlock()
	metrics.ActiveAlerts.Dec()

	if e.lastCommits != nil {
		e.lastCommits.SetDefault(sess.Actor.Key, e.clock.Now())
	}

	res, err := e.dispatch(ctx, sess)
	if err != nil {
		metrics.TrackAlert("failed", string(sess.EmergencyType))
		return Result{}, err
	}

	metrics.TrackAlert("commit", string(sess.EmergencyType))
	metrics.AlertRecipients.Observe(float64(res.NotifiedCount))
	e.logger.Info().
		Str("owner", res.Owner).
		Str("emergency_type", string(res.EmergencyType)).
		Int("notified", res.NotifiedCount).
		Msg("alert: committed")

	e.mu.RLock()
	hooks := append([]func(Result){}, e.hooks...)
	e.mu.RUnlock()
	for _, fn := range hooks {
		fn(res)
	}
	return res, nil
}
