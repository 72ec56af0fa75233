package wsclient

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second

	eventBufferSize = 16
)

// Make sure to implement the Dialer interface
var _ Dialer = (*GorillaDialer)(nil)

// GorillaDialer opens WebSocket sessions with github.com/gorilla/websocket.
type GorillaDialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	readLimit    int64
}

type GorillaOption func(*GorillaDialer)

func WithHandshakeTimeout(d time.Duration) GorillaOption {
	return func(g *GorillaDialer) {
		if d > 0 {
			g.dialer.HandshakeTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) GorillaOption {
	return func(g *GorillaDialer) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound message.
func WithReadLimit(n int64) GorillaOption {
	return func(g *GorillaDialer) {
		g.readLimit = n
	}
}

// WithHeader sets the HTTP headers sent with the opening handshake (e.g. Origin, User-Agent).
func WithHeader(header http.Header) GorillaOption {
	return func(g *GorillaDialer) {
		g.header = header.Clone()
	}
}

func NewGorillaDialer(opts ...GorillaOption) *GorillaDialer {
	g := &GorillaDialer{
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  DefaultHandshakeTimeout,
			EnableCompression: true,
		},
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open starts the opening handshake in the background and returns the session immediately.
func (g *GorillaDialer) Open(address string) Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &gorillaSession{
		dialer:       g.dialer,
		header:       g.header,
		writeTimeout: g.writeTimeout,
		readLimit:    g.readLimit,
		events:       make(chan Event, eventBufferSize),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	go s.run(address)
	return s
}

type gorillaSession struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	readLimit    int64

	events chan Event

	// done is closed when Close is requested; the reader stops emitting after it.
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// mu guards conn and serializes writes.
	mu   sync.Mutex
	conn *websocket.Conn
	open atomic.Bool
}

func (s *gorillaSession) Events() <-chan Event {
	return s.events
}

func (s *gorillaSession) IsOpen() bool {
	return s.open.Load()
}

func (s *gorillaSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.open.Load() {
		return errors.Wrap(errs.Closed, "session is not open")
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return errors.Wrap(err, "can't set write deadline")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "can't write message")
	}
	return nil
}

func (s *gorillaSession) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.open.Store(false)
		if s.conn == nil {
			return
		}
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.writeTimeout),
		)
		if closeErr := s.conn.Close(); closeErr != nil {
			err = errors.Wrap(closeErr, "can't close connection")
		}
	})
	return err
}

// emit delivers an event unless the session has been closed by the owner.
func (s *gorillaSession) emit(event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

func (s *gorillaSession) run(address string) {
	defer close(s.events)
	defer s.cancel()

	conn, resp, err := s.dialer.DialContext(s.ctx, address, s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if s.emit(Event{Type: EventError, Err: errors.Wrapf(err, "can't dial %s", address)}) {
			s.emit(Event{Type: EventClosed, Code: CloseAbnormal, Reason: "dial failed"})
		}
		return
	}
	if s.readLimit > 0 {
		conn.SetReadLimit(s.readLimit)
	}

	s.mu.Lock()
	select {
	case <-s.done:
		// closed during the handshake
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	s.conn = conn
	s.open.Store(true)
	s.mu.Unlock()

	if !s.emit(Event{Type: EventOpened}) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.open.Store(false)
			code, reason := closeDetails(err)
			if code == CloseAbnormal {
				if !s.emit(Event{Type: EventError, Err: errors.Wrap(err, "can't read message")}) {
					return
				}
			}
			s.emit(Event{Type: EventClosed, Code: code, Reason: reason})
			_ = conn.Close()
			return
		}
		if !s.emit(Event{Type: EventMessage, Data: data}) {
			return
		}
	}
}

func closeDetails(err error) (int, string) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, closeErr.Text
	}
	return CloseAbnormal, err.Error()
}
