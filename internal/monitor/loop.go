package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EgorLis/rwsclient/internal/rws"
)

// State — состояние цикла событий.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Channel — открытый канал подписки. Receive вызывает только цикл.
type Channel interface {
	Receive(ctx context.Context) (string, rws.Outcome, error)
	Close() error
}

// Decoder превращает кадр в строку для показа.
type Decoder func(frame string) (string, error)

// run — один запуск цикла: флаги пишет координатор, цикл их только читает,
// кроме собственного state.
type run struct {
	ch  Channel
	url string

	state   atomic.Int32
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (r *run) State() State { return State(r.state.Load()) }

// closeChannel закрывает канал один раз; повторные вызовы отдают ту же ошибку.
func (r *run) closeChannel() error {
	r.closeOnce.Do(func() { r.closeErr = r.ch.Close() })
	return r.closeErr
}

type loop struct {
	run     *run
	decode  Decoder
	onEvent func(summary string)
	retry   time.Duration
	logger  *slog.Logger
}

func (l *loop) exec(ctx context.Context) {
	defer func() {
		l.run.running.Store(false)
		l.run.state.Store(int32(StateStopped))
		close(l.run.done)
		l.logger.Info("event loop stopped")
	}()

	for {
		if ctx.Err() != nil || !l.run.running.Load() {
			l.run.state.Store(int32(StateDraining))
			return
		}

		frame, outcome, err := l.run.ch.Receive(ctx)
		switch outcome {
		case rws.OutcomeFrame:
			l.handle(frame)

		case rws.OutcomeCancelled:
			l.run.state.Store(int32(StateDraining))
			return

		case rws.OutcomeClosed:
			l.logger.Warn("event channel closed by remote", "err", err)
			return

		default:
			l.logger.Warn("receive failed, retrying", "err", err, "delay", l.retry)
			t := time.NewTimer(l.retry)
			select {
			case <-ctx.Done():
				t.Stop()
				l.run.state.Store(int32(StateDraining))
				return
			case <-t.C:
			}
		}
	}
}

// handle декодирует один кадр; ошибки и паники декодера цикл не останавливают.
func (l *loop) handle(frame string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event decoder panic", "panic", r)
		}
	}()

	summary := frame
	if l.decode != nil {
		s, err := l.decode(frame)
		if err != nil {
			l.logger.Warn("event decode failed", "err", err)
			return
		}
		summary = s
	}
	if l.onEvent != nil {
		l.onEvent(summary)
	}
}
