// Package wsclient provides a long-lived WebSocket subscription that reconnects
// on closure and keeps the session alive with periodic pings.
//
// A Client drives a single logical connection through the states
//
//	Idle -> Connecting -> Open -> (closed) -> ReconnectScheduled -> Connecting ...
//
// on one goroutine (Run). Transport signals and timer firings are consumed from
// channels by that goroutine only, so no state is shared with the transport.
//
// Reconnect is unconditional with a fixed delay: there is no backoff growth and
// no retry limit. A transport error alone never triggers a reconnect, only a
// closure does.
package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
)

const (
	DefaultRetryDelay   = 2 * time.Second
	DefaultPingInterval = 30 * time.Second

	// CloseAbnormal is reported when a session's event stream ends without a close event.
	CloseAbnormal = 1006
)

// DefaultPingMessage is the keep-alive payload sent on every ping tick.
var DefaultPingMessage = []byte(`{"type":"ping"}`)

// Handler receives inbound messages of the open session.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte)
}

// HandlerFunc is an adapter to allow the use of ordinary functions as Handler.
type HandlerFunc func(ctx context.Context, data []byte)

func (f HandlerFunc) HandleMessage(ctx context.Context, data []byte) {
	f(ctx, data)
}

type Option func(*Client)

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithPingMessage(msg []byte) Option {
	return func(c *Client) {
		if len(msg) > 0 {
			c.pingMessage = msg
		}
	}
}

// WithClock replaces the clock used for the ping ticker and the reconnect timer.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is a resilient event-stream client. A Client runs at most once.
type Client struct {
	address      string
	dialer       Dialer
	handler      Handler
	clock        clock.Clock
	logger       *slog.Logger
	retryDelay   time.Duration
	pingInterval time.Duration
	pingMessage  []byte

	state     atomic.Int32
	connects  atomic.Int64
	keepAlive atomic.Bool
	running   atomic.Bool

	// owned by the Run goroutine
	session        Session
	pingTicker     *clock.Ticker
	reconnectTimer *clock.Timer

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// New creates a client for the given address. It doesn't open a connection until Run is called.
func New(address string, dialer Dialer, handler Handler, opts ...Option) *Client {
	c := &Client{
		address:      address,
		dialer:       dialer,
		handler:      handler,
		clock:        clock.New(),
		retryDelay:   DefaultRetryDelay,
		pingInterval: DefaultPingInterval,
		pingMessage:  DefaultPingMessage,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.With(slogx.String("package", "wsclient"))
	}
	return c
}

// Address returns the target address of the client.
func (c *Client) Address() string {
	return c.address
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connects returns the number of sessions opened so far.
func (c *Client) Connects() int64 {
	return c.connects.Load()
}

// KeepAliveActive reports whether the ping ticker is running.
func (c *Client) KeepAliveActive() bool {
	return c.keepAlive.Load()
}

// Run opens the first session and drives the connection until ctx is done
// or Shutdown is called. On return every session and timer has been released.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.Wrap(errs.Conflict, "client is already running or has been stopped")
	}
	defer close(c.done)
	defer c.teardown(ctx)

	select {
	case <-c.quit:
		return nil
	default:
	}

	c.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context done, stopping stream client")
			return nil
		case <-c.quit:
			c.logger.InfoContext(ctx, "Got quit signal, stopping stream client")
			return nil
		case event, ok := <-c.events():
			if !ok {
				event = Event{Type: EventClosed, Code: CloseAbnormal, Reason: "event stream ended"}
			}
			c.handleEvent(ctx, event)
		case <-c.pingTick():
			c.ping(ctx)
		case <-c.reconnectFired():
			c.reconnectTimer = nil
			c.connect(ctx)
		}
	}
}

// Shutdown stops the client and waits for the run loop to release its resources.
func (c *Client) Shutdown() error {
	return c.ShutdownWithContext(context.Background())
}

func (c *Client) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.ShutdownWithContext(ctx)
}

// ShutdownWithContext is idempotent. Calling it before Run prevents Run from connecting.
func (c *Client) ShutdownWithContext(ctx context.Context) (err error) {
	c.quitOnce.Do(func() {
		close(c.quit)
	})
	if !c.running.Load() {
		return nil
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "stream client shutdown context canceled")
	}
	return err
}

func (c *Client) events() <-chan Event {
	if c.session == nil {
		return nil
	}
	return c.session.Events()
}

func (c *Client) pingTick() <-chan time.Time {
	if c.pingTicker == nil {
		return nil
	}
	return c.pingTicker.C
}

func (c *Client) reconnectFired() <-chan time.Time {
	if c.reconnectTimer == nil {
		return nil
	}
	return c.reconnectTimer.C
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) connect(ctx context.Context) {
	c.setState(StateConnecting)
	c.session = c.dialer.Open(c.address)
	attempt := c.connects.Add(1)
	c.logger.DebugContext(ctx, "Connecting to WebSocket",
		slogx.String("address", c.address),
		slogx.Int64("attempt", attempt),
	)
}

func (c *Client) handleEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventOpened:
		if c.State() != StateConnecting {
			return
		}
		c.setState(StateOpen)
		c.logger.InfoContext(ctx, "Connected to WebSocket", slogx.String("address", c.address))
		c.startPinging()
	case EventMessage:
		c.dispatch(ctx, event.Data)
	case EventError:
		c.logger.ErrorContext(ctx, "WebSocket error", slogx.Error(event.Err), slogx.Stringer("state", c.State()))
		if c.State() == StateConnecting {
			c.dropSession(ctx)
			c.scheduleReconnect(ctx)
		}
	case EventClosed:
		c.logger.WarnContext(ctx, "WebSocket connection closed",
			slogx.Int("code", event.Code),
			slogx.String("reason", event.Reason),
		)
		c.stopPinging()
		c.dropSession(ctx)
		c.scheduleReconnect(ctx)
	}
}

// dispatch forwards a message to the handler. A panicking handler must not take the loop down.
func (c *Client) dispatch(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Recovered from panic in message handler", slogx.Any("panic", r))
		}
	}()
	c.handler.HandleMessage(ctx, data)
}

func (c *Client) scheduleReconnect(ctx context.Context) {
	c.reconnectTimer = c.clock.Timer(c.retryDelay)
	c.setState(StateReconnectScheduled)
	c.logger.InfoContext(ctx, fmt.Sprintf("Reconnecting in %s", c.retryDelay), slogx.String("address", c.address))
}

func (c *Client) startPinging() {
	c.stopPinging()
	c.pingTicker = c.clock.Ticker(c.pingInterval)
	c.keepAlive.Store(true)
}

func (c *Client) stopPinging() {
	ticker := c.pingTicker
	c.pingTicker = nil
	c.keepAlive.Store(false)
	if ticker != nil {
		ticker.Stop()
	}
}

func (c *Client) ping(ctx context.Context) {
	if c.session == nil || !c.session.IsOpen() {
		return
	}
	if err := c.session.Send(c.pingMessage); err != nil {
		c.logger.DebugContext(ctx, "Failed to send keep-alive ping", slogx.Error(err))
	}
}

func (c *Client) dropSession(ctx context.Context) {
	session := c.session
	c.session = nil
	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		c.logger.DebugContext(ctx, "Failed to close WebSocket session", slogx.Error(err))
	}
}

func (c *Client) teardown(ctx context.Context) {
	c.setState(StateClosing)
	c.stopPinging()
	timer := c.reconnectTimer
	c.reconnectTimer = nil
	if timer != nil {
		timer.Stop()
	}
	c.dropSession(ctx)
	c.setState(StateIdle)
}
