// Package session tracks per-connection protocol state: the message-id
// sequencer and the negotiated protocol version. A Context is created
// when a transport session opens and discarded when it closes; the
// sequence counter restarts with each new session.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/acsense/uspagent/wire"
)

// Sequencer issues strictly increasing message ids within one session.
// It is the sole id source, so no two in-flight requests in a session
// can share an id.
type Sequencer struct {
	mu sync.Mutex
	n  uint64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Context is the per-session protocol state.
type Context struct {
	// ID is unique per session, prefixed with the transport name.
	ID string

	seq Sequencer

	mu      sync.RWMutex
	version string
}

// New creates a fresh session context for a transport connection.
func New(transport string) *Context {
	return &Context{
		ID:      transport + "-" + uuid.NewString(),
		version: wire.DefaultProtoVersion,
	}
}

// NextMsgID allocates a message id for an outgoing request.
func (c *Context) NextMsgID() string {
	return fmt.Sprintf("m-%d", c.seq.Next())
}

// Version returns the protocol version applied to outgoing records.
func (c *Context) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetVersion records the negotiated protocol version; all subsequent
// outgoing records on this session carry it.
func (c *Context) SetVersion(v string) {
	if v == "" {
		return
	}
	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
}
