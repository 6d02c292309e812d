package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/rwsclient/internal/rws"
)

var testResources = []rws.Resource{{Path: "/rw/iosystem/signals/DO1;state", Priority: rws.PriorityMedium}}

type step struct {
	frame   string
	outcome rws.Outcome
	err     error
}

// fakeChannel отдаёт шаги по порядку, затем блокируется до отмены.
type fakeChannel struct {
	mu    sync.Mutex
	steps []step

	receives atomic.Int32
	closes   atomic.Int32
	// inDecode выставляет декодер теста; Receive во время декодирования — нарушение
	inDecode   atomic.Bool
	overlapped atomic.Bool
	onClose    func()
}

func (f *fakeChannel) Receive(ctx context.Context) (string, rws.Outcome, error) {
	f.receives.Add(1)
	if f.inDecode.Load() {
		f.overlapped.Store(true)
	}

	f.mu.Lock()
	if len(f.steps) > 0 {
		s := f.steps[0]
		f.steps = f.steps[1:]
		f.mu.Unlock()
		return s.frame, s.outcome, s.err
	}
	f.mu.Unlock()

	<-ctx.Done()
	return "", rws.OutcomeCancelled, ctx.Err()
}

func (f *fakeChannel) Close() error {
	f.closes.Add(1)
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) CreateSubscription(ctx context.Context, resources []rws.Resource) (string, error) {
	args := m.Called(ctx, resources)
	return args.String(0), args.Error(1)
}

func (m *mockTransport) OpenChannel(ctx context.Context, url string) (Channel, error) {
	args := m.Called(ctx, url)
	ch, _ := args.Get(0).(Channel)
	return ch, args.Error(1)
}

func (m *mockTransport) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transportFor(ch Channel) *mockTransport {
	tr := &mockTransport{}
	tr.On("CreateSubscription", mock.Anything, testResources).Return("ws://ctrl/poll/1", nil)
	tr.On("OpenChannel", mock.Anything, "ws://ctrl/poll/1").Return(ch, nil)
	return tr
}

type eventLog struct {
	mu   sync.Mutex
	list []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	e.list = append(e.list, s)
	e.mu.Unlock()
}

func (e *eventLog) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func TestFramesDecodedSequentially(t *testing.T) {
	ch := &fakeChannel{}
	for _, f := range []string{"a", "b", "c", "d", "e"} {
		ch.steps = append(ch.steps, step{frame: f, outcome: rws.OutcomeFrame})
	}
	delays := map[string]time.Duration{"a": 30 * time.Millisecond, "c": 10 * time.Millisecond, "d": 40 * time.Millisecond}

	var got eventLog
	m := New(transportFor(ch), Options{
		StartGrace: 10 * time.Millisecond,
		Logger:     discard(),
		Decode: func(frame string) (string, error) {
			ch.inDecode.Store(true)
			defer ch.inDecode.Store(false)
			time.Sleep(delays[frame])
			return "ev:" + frame, nil
		},
		OnEvent: got.add,
	})

	require.NoError(t, m.Start(context.Background(), testResources))
	assert.Eventually(t, func() bool { return len(got.get()) == 5 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StopCompleted, m.Stop(time.Second))
	assert.Equal(t, []string{"ev:a", "ev:b", "ev:c", "ev:d", "ev:e"}, got.get())
	assert.False(t, ch.overlapped.Load())
	assert.Equal(t, StateStopped, m.State())
	assert.EqualValues(t, 1, ch.closes.Load())
}

func TestStartGraceDoesNotWaitForEvents(t *testing.T) {
	ch := &fakeChannel{}
	m := New(transportFor(ch), Options{Logger: discard()})

	start := time.Now()
	require.NoError(t, m.Start(context.Background(), testResources))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, DefaultStartGrace)
	assert.Less(t, elapsed, DefaultStartGrace+time.Second)
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, "ws://ctrl/poll/1", m.ChannelURL())

	assert.ErrorIs(t, m.Start(context.Background(), testResources), ErrAlreadyRunning)
	assert.Equal(t, StopCompleted, m.Stop(time.Second))
}

func TestCancelDuringRetryWait(t *testing.T) {
	ch := &fakeChannel{steps: []step{{outcome: rws.OutcomeTransient, err: errors.New("bad frame")}}}
	m := New(transportFor(ch), Options{StartGrace: 10 * time.Millisecond, Logger: discard()})

	require.NoError(t, m.Start(context.Background(), testResources))
	require.Eventually(t, func() bool { return ch.receives.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	res := m.Stop(DefaultStopTimeout)
	assert.Equal(t, StopCompleted, res)
	assert.LessOrEqual(t, time.Since(start), DefaultRetryDelay)
	assert.Equal(t, StateStopped, m.State())
	assert.EqualValues(t, 1, ch.receives.Load())
}

func TestTransientErrorIsRetried(t *testing.T) {
	ch := &fakeChannel{steps: []step{
		{outcome: rws.OutcomeTransient, err: errors.New("binary frame")},
		{frame: "after", outcome: rws.OutcomeFrame},
	}}
	var got eventLog
	m := New(transportFor(ch), Options{
		StartGrace: 10 * time.Millisecond,
		RetryDelay: 20 * time.Millisecond,
		Logger:     discard(),
		OnEvent:    got.add,
	})

	require.NoError(t, m.Start(context.Background(), testResources))
	assert.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, got.get())
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, StopCompleted, m.Stop(time.Second))
}

func TestClosedStopsWithoutRetry(t *testing.T) {
	ch := &fakeChannel{steps: []step{{outcome: rws.OutcomeClosed, err: rws.ErrChannelClosed}}}
	m := New(transportFor(ch), Options{
		StartGrace: 10 * time.Millisecond,
		RetryDelay: 5 * time.Second,
		Logger:     discard(),
	})

	start := time.Now()
	require.NoError(t, m.Start(context.Background(), testResources))
	assert.Eventually(t, func() bool { return m.State() == StateStopped }, 500*time.Millisecond, 2*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, ch.receives.Load())

	assert.Equal(t, StopNotRunning, m.Stop(time.Second))
	assert.EqualValues(t, 0, ch.closes.Load())
}

func TestStopAfterClosedIsNoop(t *testing.T) {
	ch := &fakeChannel{steps: []step{{outcome: rws.OutcomeClosed, err: rws.ErrChannelClosed}}}
	tr := transportFor(ch)
	tr.On("Logout", mock.Anything).Return(nil)
	tr.On("Close").Return(nil)
	m := New(tr, Options{StartGrace: 10 * time.Millisecond, Logger: discard()})

	require.NoError(t, m.Start(context.Background(), testResources))
	assert.Eventually(t, func() bool { return m.State() == StateStopped }, 500*time.Millisecond, 2*time.Millisecond)

	assert.Equal(t, StopNotRunning, m.Stop(time.Second))
	assert.Equal(t, StopNotRunning, m.Stop(time.Second))
	assert.EqualValues(t, 0, ch.closes.Load())
	assert.Equal(t, StateStopped, m.State())

	assert.Equal(t, StopNotRunning, m.Shutdown(context.Background()))
	assert.EqualValues(t, 1, ch.closes.Load())
	tr.AssertExpectations(t)
}

func TestDecoderFailuresDoNotStopLoop(t *testing.T) {
	ch := &fakeChannel{steps: []step{
		{frame: "bad", outcome: rws.OutcomeFrame},
		{frame: "boom", outcome: rws.OutcomeFrame},
		{frame: "ok", outcome: rws.OutcomeFrame},
	}}
	var got eventLog
	m := New(transportFor(ch), Options{
		StartGrace: 10 * time.Millisecond,
		Logger:     discard(),
		Decode: func(frame string) (string, error) {
			switch frame {
			case "bad":
				return "", errors.New("not xhtml")
			case "boom":
				panic("decoder bug")
			}
			return frame, nil
		},
		OnEvent: got.add,
	})

	require.NoError(t, m.Start(context.Background(), testResources))
	assert.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ok"}, got.get())
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, StopCompleted, m.Stop(time.Second))
}

func TestStopStuckLoopIsForced(t *testing.T) {
	ch := &fakeChannel{steps: []step{{frame: "slow", outcome: rws.OutcomeFrame}}}
	release := make(chan struct{})
	entered := make(chan struct{})
	m := New(transportFor(ch), Options{
		StartGrace: 10 * time.Millisecond,
		Logger:     discard(),
		Decode: func(frame string) (string, error) {
			close(entered)
			<-release
			return frame, nil
		},
	})

	require.NoError(t, m.Start(context.Background(), testResources))
	<-entered

	start := time.Now()
	var res StopResult
	assert.NotPanics(t, func() { res = m.Stop(DefaultStopTimeout) })
	elapsed := time.Since(start)

	assert.Equal(t, StopForced, res)
	assert.GreaterOrEqual(t, elapsed, DefaultStopTimeout)
	assert.Less(t, elapsed, DefaultStopTimeout+time.Second)
	assert.Equal(t, StateRunning, m.State())
	assert.EqualValues(t, 0, ch.closes.Load())

	close(release)
	assert.Eventually(t, func() bool { return m.State() == StateStopped }, time.Second, 5*time.Millisecond)
}

func TestStopWhenNotStarted(t *testing.T) {
	m := New(&mockTransport{}, Options{Logger: discard()})
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, StopNotRunning, m.Stop(time.Second))
}

func TestStartFailureKeepsIdle(t *testing.T) {
	t.Run("subscription", func(t *testing.T) {
		tr := &mockTransport{}
		tr.On("CreateSubscription", mock.Anything, testResources).
			Return("", errors.New("connection refused"))

		m := New(tr, Options{Logger: discard()})
		err := m.Start(context.Background(), testResources)
		assert.ErrorIs(t, err, rws.ErrSubscriptionUnavailable)
		assert.Equal(t, StateIdle, m.State())
		tr.AssertNotCalled(t, "OpenChannel", mock.Anything, mock.Anything)
	})

	t.Run("channel", func(t *testing.T) {
		tr := &mockTransport{}
		tr.On("CreateSubscription", mock.Anything, testResources).Return("ws://ctrl/poll/1", nil)
		tr.On("OpenChannel", mock.Anything, "ws://ctrl/poll/1").
			Return(nil, rws.ErrSubscriptionUnavailable)

		m := New(tr, Options{Logger: discard()})
		err := m.Start(context.Background(), testResources)
		assert.ErrorIs(t, err, rws.ErrSubscriptionUnavailable)
		assert.Equal(t, StateIdle, m.State())
	})
}

func TestRestartAfterClosed(t *testing.T) {
	first := &fakeChannel{steps: []step{{outcome: rws.OutcomeClosed, err: rws.ErrChannelClosed}}}
	second := &fakeChannel{}

	tr := &mockTransport{}
	tr.On("CreateSubscription", mock.Anything, testResources).Return("ws://ctrl/poll/1", nil).Once()
	tr.On("CreateSubscription", mock.Anything, testResources).Return("ws://ctrl/poll/2", nil).Once()
	tr.On("OpenChannel", mock.Anything, "ws://ctrl/poll/1").Return(first, nil)
	tr.On("OpenChannel", mock.Anything, "ws://ctrl/poll/2").Return(second, nil)

	m := New(tr, Options{StartGrace: 10 * time.Millisecond, Logger: discard()})
	require.NoError(t, m.Start(context.Background(), testResources))
	require.Eventually(t, func() bool { return m.State() == StateStopped }, time.Second, 2*time.Millisecond)

	require.NoError(t, m.Start(context.Background(), testResources))
	assert.EqualValues(t, 1, first.closes.Load())
	assert.Equal(t, "ws://ctrl/poll/2", m.ChannelURL())
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, StopCompleted, m.Stop(time.Second))
}

func TestShutdownOrderAndIsolation(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	ch := &fakeChannel{onClose: func() { record("channel") }}
	tr := transportFor(ch)
	tr.On("Logout", mock.Anything).Return(errors.New("logout: status 500")).
		Run(func(mock.Arguments) { record("logout") })
	tr.On("Close").Return(nil).
		Run(func(mock.Arguments) { record("transport") })

	m := New(tr, Options{StartGrace: 10 * time.Millisecond, Logger: discard()})
	require.NoError(t, m.Start(context.Background(), testResources))

	res := m.Shutdown(context.Background())
	assert.Equal(t, StopCompleted, res)
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, []string{"channel", "logout", "transport"}, order)
	assert.EqualValues(t, 1, ch.closes.Load())
	tr.AssertExpectations(t)
}

func TestShutdownWithoutSubscription(t *testing.T) {
	tr := &mockTransport{}
	tr.On("Logout", mock.Anything).Return(nil)
	tr.On("Close").Return(errors.New("already closed"))

	m := New(tr, Options{Logger: discard()})
	assert.Equal(t, StopNotRunning, m.Shutdown(context.Background()))
	tr.AssertExpectations(t)
}
