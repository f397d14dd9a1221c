package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/safetap/api/internal/metrics"
)

// JobFunc é uma tarefa periódica.
type JobFunc func(ctx context.Context) error

// Scheduler executa tarefas em expressões cron; execuções não se sobrepõem.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu     sync.Mutex
	jobs   map[string]JobFunc
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: c, logger: logger, jobs: make(map[string]JobFunc), ctx: ctx, cancel: cancel}
}

// Add registra a tarefa; expr aceita a sintaxe do robfig/cron ("@every 1s", "@hourly", "0 3 * * *").
func (s *Scheduler) Add(name, expr string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("tarefa %s já registrada", name)
	}
	if _, err := s.cron.AddFunc(expr, func() { s.run(name) }); err != nil {
		return fmt.Errorf("agenda %q inválida para %s: %w", expr, name, err)
	}
	s.jobs[name] = fn
	return nil
}

// Start inicia o relógio do cron.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler: iniciado")
}

// Stop cancela tarefas em andamento e aguarda o término.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler: encerrado")
}

// RunNow executa a tarefa imediatamente, fora da agenda.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("tarefa %s não registrada", name)
	}
	return fn(s.ctx)
}

func (s *Scheduler) run(name string) {
	s.mu.Lock()
	fn := s.jobs[name]
	s.mu.Unlock()
	if fn == nil {
		return
	}

	if err := fn(s.ctx); err != nil {
		metrics.SchedulerRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error().Err(err).Str("job", name).Msg("scheduler: execução falhou")
		return
	}
	metrics.SchedulerRuns.WithLabelValues(name, "ok").Inc()
}
