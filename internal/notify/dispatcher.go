package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/safetap/api/internal/config"
	"github.com/safetap/api/internal/metrics"
)

const maxBackoff = 30 * time.Second

// ErrQueueFull indica que a entrega foi descartada por falta de espaço.
var ErrQueueFull = errors.New("fila de entregas cheia")

// DeliveryFailedError descreve entrega que esgotou as tentativas.
type DeliveryFailedError struct {
	Contact  string
	Attempts int
	Err      error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("entrega para %s falhou após %d tentativas: %v", e.Contact, e.Attempts, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error { return e.Err }

// Dispatcher entrega mensagens em background com retry e throttle.
// Falhas nunca voltam para quem enfileirou.
type Dispatcher struct {
	notifier Notifier
	cfg      config.DeliveryConfig
	limiter  *rate.Limiter
	logger   zerolog.Logger

	// OnFailure é chamado após esgotar as tentativas; opcional.
	OnFailure func(msg Message, err *DeliveryFailedError)

	queue  chan Message
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(notifier Notifier, cfg config.DeliveryConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Dispatcher{
		notifier: notifier,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		queue:    make(chan Message, cfg.QueueSize),
	}
}

// Start sobe os workers. Seguro para chamar múltiplas vezes.
func (d *Dispatcher) Start(parent context.Context) {
	d.once.Do(func() {
		d.ctx, d.cancel = context.WithCancel(parent)
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
		d.logger.Info().Int("workers", d.cfg.Workers).Msg("notify: dispatcher iniciado")
	})
}

// Enqueue agenda entregas sem bloquear. Mensagens que não cabem na fila são descartadas.
func (d *Dispatcher) Enqueue(msgs ...Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var dropped int
	for _, msg := range msgs {
		if d.closed {
			dropped++
			continue
		}
		select {
		case d.queue <- msg:
			metrics.DeliveryQueueDepth.Inc()
		default:
			dropped++
			metrics.TrackDelivery("dropped")
			d.logger.Warn().Str("recipient", msg.Recipient.Name).Msg("notify: fila cheia, entrega descartada")
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d descartadas", ErrQueueFull, dropped)
	}
	return nil
}

// Stop fecha a fila e aguarda os workers; se ctx expirar, aborta entregas pendentes.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if d.cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		metrics.DeliveryQueueDepth.Dec()
		if err := d.deliver(d.ctx, msg); err != nil {
			var failed *DeliveryFailedError
			if errors.As(err, &failed) {
				metrics.TrackDelivery("failed")
				d.logger.Error().Err(err).Int("worker", id).Str("recipient", msg.Recipient.Name).Msg("notify: entrega falhou")
				if d.OnFailure != nil {
					d.OnFailure(msg, failed)
				}
			}
			continue
		}
		metrics.TrackDelivery("sent")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	attempts := d.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(d.cfg.RetryBackoff, attempt)); err != nil {
				lastErr = err
				break
			}
		}
		if err := d.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if d.cfg.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, d.cfg.RequestTimeout)
		}
		lastErr = d.notifier.Notify(reqCtx, msg)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			return nil
		}
		d.logger.Warn().Err(lastErr).Int("attempt", attempt+1).Str("recipient", msg.Recipient.Name).Msg("notify: tentativa falhou")
	}
	return &DeliveryFailedError{Contact: msg.Recipient.Name, Attempts: attempts, Err: lastErr}
}

// backoff dobra a espera a cada tentativa, limitado a maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
