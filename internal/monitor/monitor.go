package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EgorLis/rwsclient/internal/rws"
)

const (
	DefaultStartGrace  = 500 * time.Millisecond
	DefaultRetryDelay  = time.Second
	DefaultStopTimeout = 3 * time.Second
)

var ErrAlreadyRunning = errors.New("monitor: already running")

// StopResult — чем закончилась остановка цикла.
type StopResult int

const (
	StopNotRunning StopResult = iota
	StopCompleted
	StopForced
)

func (r StopResult) String() string {
	switch r {
	case StopNotRunning:
		return "not running"
	case StopCompleted:
		return "completed"
	case StopForced:
		return "forced"
	default:
		return fmt.Sprintf("stop(%d)", int(r))
	}
}

// Transport — то, что монитору нужно от сессии RWS.
type Transport interface {
	CreateSubscription(ctx context.Context, resources []rws.Resource) (string, error)
	OpenChannel(ctx context.Context, url string) (Channel, error)
	Logout(ctx context.Context) error
	Close() error
}

type clientTransport struct {
	*rws.Client
}

// FromClient адаптирует *rws.Client к Transport.
func FromClient(c *rws.Client) Transport {
	return clientTransport{c}
}

func (t clientTransport) OpenChannel(ctx context.Context, url string) (Channel, error) {
	ch, err := t.OpenEventChannel(ctx, url)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

type Options struct {
	StartGrace  time.Duration
	RetryDelay  time.Duration
	StopTimeout time.Duration

	// Decode вызывается на каждый кадр; nil — кадр отдаётся как есть.
	Decode Decoder
	// OnEvent получает результат Decode. Вызывается из горутины цикла.
	OnEvent func(summary string)
	Logger  *slog.Logger
}

func (o *Options) setDefaults() {
	if o.StartGrace <= 0 {
		o.StartGrace = DefaultStartGrace
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Monitor держит подписку и цикл событий одной сессии: запуск, остановку
// с ограниченным ожиданием и закрытие сессии.
type Monitor struct {
	tr     Transport
	opts   Options
	logger *slog.Logger

	mu  sync.Mutex // Start/Stop/Shutdown по очереди
	cur atomic.Pointer[run]
}

func New(tr Transport, opts Options) *Monitor {
	opts.setDefaults()
	return &Monitor{
		tr:     tr,
		opts:   opts,
		logger: opts.Logger.With("component", "monitor"),
	}
}

// State не блокируется: до первого Start — StateIdle.
func (m *Monitor) State() State {
	if r := m.cur.Load(); r != nil {
		return r.State()
	}
	return StateIdle
}

// ChannelURL — адрес текущего канала или "".
func (m *Monitor) ChannelURL() string {
	if r := m.cur.Load(); r != nil {
		return r.url
	}
	return ""
}

// Start создаёт подписку, открывает канал и запускает цикл. Первого события
// не ждёт: после StartGrace возвращает управление.
func (m *Monitor) Start(ctx context.Context, resources []rws.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.cur.Load(); prev != nil {
		if prev.State() != StateStopped {
			return ErrAlreadyRunning
		}
		prev.cancel()
		if err := prev.closeChannel(); err != nil {
			m.logger.Warn("close previous channel failed", "err", err)
		}
	}

	url, err := m.tr.CreateSubscription(ctx, resources)
	if err != nil {
		return unavailable(err)
	}
	ch, err := m.tr.OpenChannel(ctx, url)
	if err != nil {
		return unavailable(err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{ch: ch, url: url, cancel: cancel, done: make(chan struct{})}
	r.running.Store(true)
	r.state.Store(int32(StateRunning))
	m.cur.Store(r)

	l := &loop{
		run:     r,
		decode:  m.opts.Decode,
		onEvent: m.opts.OnEvent,
		retry:   m.opts.RetryDelay,
		logger:  m.logger.With("channel", url),
	}
	go l.exec(loopCtx)

	t := time.NewTimer(m.opts.StartGrace)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.done:
	}
	m.logger.Info("subscription started", "resources", len(resources), "state", r.State())
	return nil
}

// Stop снимает флаг, отменяет контекст цикла и ждёт его не дольше timeout.
// По таймауту возвращает StopForced; цикл выйдет сам, канал при этом
// остаётся открытым до Shutdown. Для уже остановленного цикла ничего не
// делает: канал закроют следующий Start или Shutdown.
func (m *Monitor) Stop(timeout time.Duration) StopResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop(timeout)
}

func (m *Monitor) stop(timeout time.Duration) StopResult {
	r := m.cur.Load()
	if r == nil {
		return StopNotRunning
	}
	if r.State() == StateStopped {
		return StopNotRunning
	}
	if timeout <= 0 {
		timeout = m.opts.StopTimeout
	}

	r.running.Store(false)
	r.cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.done:
		if err := r.closeChannel(); err != nil {
			m.logger.Warn("close channel failed", "err", err)
		}
		m.logger.Info("event loop joined")
		return StopCompleted
	case <-t.C:
		m.logger.Warn("event loop did not stop in time", "timeout", timeout, "state", r.State())
		return StopForced
	}
}

// Shutdown: Stop, закрытие канала, logout, закрытие транспорта. Ошибка
// шага пишется в лог и не мешает следующим.
func (m *Monitor) Shutdown(ctx context.Context) StopResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := m.stop(m.opts.StopTimeout)

	if r := m.cur.Load(); r != nil {
		if err := r.closeChannel(); err != nil {
			m.logger.Error("close channel failed", "err", err)
		}
	}
	if err := m.tr.Logout(ctx); err != nil {
		m.logger.Error("logout failed", "err", err)
	}
	if err := m.tr.Close(); err != nil {
		m.logger.Error("close transport failed", "err", err)
	}

	m.logger.Info("shutdown complete", "stop", res)
	return res
}

func unavailable(err error) error {
	if errors.Is(err, rws.ErrSubscriptionUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", rws.ErrSubscriptionUnavailable, err)
}
