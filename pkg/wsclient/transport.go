package wsclient

// EventType is the kind of a transport session event.
type EventType int

const (
	EventOpened EventType = iota + 1
	EventMessage
	EventError
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a single signal emitted by a transport session.
//
//   - EventOpened: the session is usable.
//   - EventMessage: Data holds the received payload.
//   - EventError: Err holds the transport error. The session may still be open.
//   - EventClosed: Code and Reason describe the closure. No event follows it.
type Event struct {
	Type   EventType
	Data   []byte
	Err    error
	Code   int
	Reason string
}

// Session is a single transport session bound to an address.
// Events are delivered in the order the transport produces them:
// opened, then zero or more message/error, then at most one closed.
type Session interface {
	// Events returns the ordered event stream of the session.
	Events() <-chan Event

	// Send writes a text message to the session.
	Send(data []byte) error

	// Close requests closure of the session. It is safe to call more than once.
	Close() error

	// IsOpen reports whether the session is currently open.
	IsOpen() bool
}

// Dialer opens transport sessions.
//
// Open must not block on the network: the handshake result is reported
// asynchronously through the session's event stream.
type Dialer interface {
	Open(address string) Session
}
