package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAddValidatesExpression(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	if err := s.Add("sweep", "not a schedule", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatalf("esperava erro para expressão inválida")
	}
	if err := s.Add("sweep", "@every 1s", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("sweep", "@hourly", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatalf("nome duplicado deveria falhar")
	}
}

func TestRunNowAndRun(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	var calls atomic.Int32
	_ = s.Add("trim", "@hourly", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	_ = s.Add("broken", "@hourly", func(ctx context.Context) error {
		return errors.New("falhou")
	})

	if err := s.RunNow("trim"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	s.run("trim")
	s.run("broken")
	if calls.Load() != 2 {
		t.Fatalf("esperava 2 execuções, veio %d", calls.Load())
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatalf("tarefa inexistente deveria falhar")
	}

	s.Start()
	s.Stop()
}

func TestScheduledExecution(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	done := make(chan struct{}, 1)
	_ = s.Add("tick", "@every 1s", func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("tarefa agendada não executou")
	}
}
