// Package mtp implements the message transfer protocols the agent can
// reach its controller over. Each transport runs its own connect and
// reconnect loop and reports everything that happens as events on a
// shared channel, so the agent consumes all transports from one place.
package mtp

import (
	"context"

	"github.com/acsense/uspagent/session"
)

// EventKind classifies a transport event.
type EventKind int

const (
	// Connected: a session opened; Event.Session is live from now on.
	Connected EventKind = iota
	// Frame: raw record bytes arrived on the session.
	Frame
	// Disconnected: the session ended; Err carries the cause when the
	// close was not requested.
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Frame:
		return "frame"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event is one transport occurrence delivered to the agent loop.
type Event struct {
	Kind    EventKind
	Session *Session
	Data    []byte
	Err     error
}

// Session is a live connection to the controller. Send and Close are
// safe to call from the agent loop; after Close the transport emits
// Disconnected and begins reconnecting.
type Session struct {
	Ctx       *session.Context
	Transport string

	send  func(data []byte) error
	close func()
}

// NewSession binds a session context to transport send and close
// functions. Transports call this once per connection.
func NewSession(ctx *session.Context, transport string, send func([]byte) error, close func()) *Session {
	return &Session{Ctx: ctx, Transport: transport, send: send, close: close}
}

// Send writes one encoded record to the peer.
func (s *Session) Send(data []byte) error {
	return s.send(data)
}

// Close tears the connection down intentionally.
func (s *Session) Close() {
	s.close()
}

// Transport is a controller connection driver. Run blocks until ctx is
// cancelled, reconnecting with backoff whenever the connection drops,
// and posts every session event to events.
type Transport interface {
	Name() string
	Run(ctx context.Context, events chan<- Event)
}
