package wsclient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddress      = "wss://example.com/api/v1/ws"
	testRetryDelay   = 2 * time.Second
	testPingInterval = 30 * time.Second

	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeSession struct {
	events chan Event
	open   atomic.Bool

	mu     sync.Mutex
	sent   [][]byte
	closed int
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 16)}
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) IsOpen() bool { return s.open.Load() }

func (s *fakeSession) Send(data []byte) error {
	if !s.open.Load() {
		return errors.WithStack(errs.Closed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, data)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.open.Store(false)
	return nil
}

func (s *fakeSession) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		msgs = append(msgs, string(m))
	}
	return msgs
}

func (s *fakeSession) closeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) signalOpened() {
	s.open.Store(true)
	s.events <- Event{Type: EventOpened}
}

func (s *fakeSession) signalMessage(data string) {
	s.events <- Event{Type: EventMessage, Data: []byte(data)}
}

func (s *fakeSession) signalError(err error) {
	s.events <- Event{Type: EventError, Err: err}
}

func (s *fakeSession) signalClosed(code int, reason string) {
	s.open.Store(false)
	s.events <- Event{Type: EventClosed, Code: code, Reason: reason}
}

type fakeDialer struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	addresses []string
}

func (d *fakeDialer) Open(address string) Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := newFakeSession()
	d.sessions = append(d.sessions, s)
	d.addresses = append(d.addresses, address)
	return s
}

func (d *fakeDialer) opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) HandleMessage(_ context.Context, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(data))
}

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

type testHarness struct {
	client  *Client
	dialer  *fakeDialer
	handler *recordingHandler
	clock   *clock.Mock
	result  chan error
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		dialer:  &fakeDialer{},
		handler: &recordingHandler{},
		clock:   clock.NewMock(),
		result:  make(chan error, 1),
	}
	opts = append([]Option{
		WithClock(h.clock),
		WithRetryDelay(testRetryDelay),
		WithPingInterval(testPingInterval),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	h.client = New(testAddress, h.dialer, h.handler, opts...)
	return h
}

func (h *testHarness) start(t *testing.T) {
	t.Helper()
	go func() {
		h.result <- h.client.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = h.client.ShutdownWithTimeout(waitFor)
	})
	require.Eventually(t, func() bool { return h.dialer.opens() == 1 }, waitFor, tick)
}

func (h *testHarness) open(t *testing.T, i int) *fakeSession {
	t.Helper()
	require.Eventually(t, func() bool { return h.dialer.opens() > i }, waitFor, tick)
	s := h.dialer.session(i)
	s.signalOpened()
	require.Eventually(t, func() bool {
		return h.client.State() == StateOpen && h.client.KeepAliveActive()
	}, waitFor, tick)
	return s
}

func TestNewDoesNotConnect(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, StateIdle, h.client.State())
	assert.Equal(t, 0, h.dialer.opens())
	assert.Equal(t, int64(0), h.client.Connects())
	assert.False(t, h.client.KeepAliveActive())
	assert.Equal(t, testAddress, h.client.Address())
}

func TestRunOpensSessionBoundToAddress(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	assert.Equal(t, StateConnecting, h.client.State())
	assert.Equal(t, []string{testAddress}, h.dialer.addresses)
	assert.False(t, h.client.KeepAliveActive())
}

func TestOpenedStartsKeepAlive(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	assert.Empty(t, s.sentMessages())

	h.clock.Add(testPingInterval)
	require.Eventually(t, func() bool { return len(s.sentMessages()) == 1 }, waitFor, tick)
	assert.Equal(t, `{"type":"ping"}`, s.sentMessages()[0])

	h.clock.Add(testPingInterval)
	require.Eventually(t, func() bool { return len(s.sentMessages()) == 2 }, waitFor, tick)
}

func TestCustomPingMessage(t *testing.T) {
	h := newHarness(t, WithPingMessage([]byte("ping")))
	h.start(t)
	s := h.open(t, 0)

	h.clock.Add(testPingInterval)
	require.Eventually(t, func() bool { return len(s.sentMessages()) == 1 }, waitFor, tick)
	assert.Equal(t, "ping", s.sentMessages()[0])
}

func TestPingSkippedWhenSessionNotOpen(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	// transport reports closed status, but the close event hasn't been delivered yet
	s.open.Store(false)
	h.clock.Add(testPingInterval)

	assert.Never(t, func() bool { return len(s.sentMessages()) > 0 }, 50*time.Millisecond, tick)
	assert.Equal(t, StateOpen, h.client.State())
}

func TestClosedSchedulesExactlyOneReconnect(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	s.signalClosed(1006, "going away")
	require.Eventually(t, func() bool { return h.client.State() == StateReconnectScheduled }, waitFor, tick)
	assert.False(t, h.client.KeepAliveActive())
	assert.Equal(t, 1, s.closeCalls())

	h.clock.Add(testRetryDelay - time.Millisecond)
	assert.Never(t, func() bool { return h.dialer.opens() > 1 }, 50*time.Millisecond, tick)

	h.clock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return h.dialer.opens() == 2 }, waitFor, tick)
	assert.Equal(t, StateConnecting, h.client.State())
	assert.Equal(t, int64(2), h.client.Connects())

	// only one reconnect per closure
	h.clock.Add(10 * testRetryDelay)
	assert.Never(t, func() bool { return h.dialer.opens() > 2 }, 50*time.Millisecond, tick)
}

func TestReconnectIsUnbounded(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	for i := 0; i < 5; i++ {
		s := h.dialer.session(i)
		s.signalClosed(1006, "refused")
		require.Eventually(t, func() bool { return h.client.State() == StateReconnectScheduled }, waitFor, tick)
		h.clock.Add(testRetryDelay)
		want := i + 2
		require.Eventually(t, func() bool { return h.dialer.opens() == want }, waitFor, tick)
	}
}

func TestErrorWhileOpenKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	s.signalError(errors.New("network hiccup"))

	assert.Never(t, func() bool { return h.client.State() != StateOpen }, 50*time.Millisecond, tick)
	assert.True(t, h.client.KeepAliveActive())
	assert.Equal(t, 1, h.dialer.opens())
	assert.Equal(t, 0, s.closeCalls())

	s.signalMessage("ok")
	require.Eventually(t, func() bool { return len(h.handler.received()) == 1 }, waitFor, tick)
}

func TestErrorBeforeOpenSchedulesReconnect(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.dialer.session(0)

	s.signalError(errors.New("dial refused"))
	require.Eventually(t, func() bool { return h.client.State() == StateReconnectScheduled }, waitFor, tick)
	assert.Equal(t, 1, s.closeCalls())
	assert.False(t, h.client.KeepAliveActive())

	h.clock.Add(testRetryDelay)
	require.Eventually(t, func() bool { return h.dialer.opens() == 2 }, waitFor, tick)
}

func TestEventStreamEndTreatedAsClosed(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	close(s.events)
	require.Eventually(t, func() bool { return h.client.State() == StateReconnectScheduled }, waitFor, tick)
	assert.False(t, h.client.KeepAliveActive())
}

func TestMessagesForwardedInOrder(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	s.signalMessage("ok")
	s.signalMessage(`{"msg_type":"Mempool"}`)
	s.signalMessage("third")

	require.Eventually(t, func() bool { return len(h.handler.received()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{"ok", `{"msg_type":"Mempool"}`, "third"}, h.handler.received())
}

func TestHandlerPanicDoesNotStopClient(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(_ context.Context, data []byte) {
		calls.Add(1)
		if string(data) == "boom" {
			panic("boom")
		}
	})
	mock := clock.NewMock()
	dialer := &fakeDialer{}
	client := New(testAddress, dialer, handler,
		WithClock(mock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	go func() { _ = client.Run(context.Background()) }()
	t.Cleanup(func() { _ = client.ShutdownWithTimeout(waitFor) })

	require.Eventually(t, func() bool { return dialer.opens() == 1 }, waitFor, tick)
	s := dialer.session(0)
	s.signalOpened()
	s.signalMessage("boom")
	s.signalMessage("fine")

	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
	assert.Equal(t, StateOpen, client.State())
}

func TestShutdownReleasesResourcesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	require.NoError(t, h.client.Shutdown())
	require.NoError(t, h.client.Shutdown())

	select {
	case err := <-h.result:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after shutdown")
	}

	assert.Equal(t, StateIdle, h.client.State())
	assert.False(t, h.client.KeepAliveActive())
	assert.Equal(t, 1, s.closeCalls())
	assert.Equal(t, 1, h.dialer.opens())

	h.clock.Add(10 * testPingInterval)
	assert.Empty(t, s.sentMessages())
	assert.Equal(t, 1, h.dialer.opens())
}

func TestShutdownCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	s := h.open(t, 0)

	s.signalClosed(1001, "going away")
	require.Eventually(t, func() bool { return h.client.State() == StateReconnectScheduled }, waitFor, tick)

	require.NoError(t, h.client.Shutdown())
	h.clock.Add(10 * testRetryDelay)

	assert.Never(t, func() bool { return h.dialer.opens() > 1 }, 50*time.Millisecond, tick)
	assert.Equal(t, StateIdle, h.client.State())
}

func TestShutdownBeforeRunPreventsConnect(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.Shutdown())
	require.NoError(t, h.client.Run(context.Background()))

	assert.Equal(t, 0, h.dialer.opens())
	assert.Equal(t, StateIdle, h.client.State())
}

func TestRunTwiceReturnsConflict(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	err := h.client.Run(context.Background())
	assert.ErrorIs(t, err, errs.Conflict)
	assert.Equal(t, 1, h.dialer.opens())
}

func TestContextCancelStopsClient(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.result <- h.client.Run(ctx)
	}()
	require.Eventually(t, func() bool { return h.dialer.opens() == 1 }, waitFor, tick)
	s := h.dialer.session(0)
	s.signalOpened()
	require.Eventually(t, func() bool { return h.client.State() == StateOpen }, waitFor, tick)

	cancel()

	select {
	case err := <-h.result:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after context cancel")
	}
	assert.Equal(t, StateIdle, h.client.State())
	assert.Equal(t, 1, s.closeCalls())
	assert.NoError(t, h.client.Shutdown())
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:               "idle",
		StateConnecting:         "connecting",
		StateOpen:               "open",
		StateClosing:            "closing",
		StateReconnectScheduled: "reconnect_scheduled",
		State(99):               "unknown",
	}
	for state, expected := range tests {
		assert.Equal(t, expected, state.String())
	}
}
