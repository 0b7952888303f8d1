package mtp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acsense/uspagent/cred"
	"github.com/acsense/uspagent/endpoint"
	"github.com/acsense/uspagent/session"
	"github.com/acsense/uspagent/wire"
)

// Subprotocol is offered during the WebSocket handshake and must be
// echoed by the controller.
const Subprotocol = "v1.usp"

const wsWriteTimeout = 10 * time.Second

// WebSocketTransport maintains one persistent WebSocket connection to
// the controller, reconnecting with backoff on any failure.
type WebSocketTransport struct {
	URL          string
	AgentID      endpoint.ID
	ControllerID string
	Store        *cred.Store
	Backoff      *Backoff
}

func (t *WebSocketTransport) Name() string { return "websocket" }

// Run dials in a loop until ctx is cancelled. Each successful connect
// resets the backoff; each failure sleeps the next delay.
func (t *WebSocketTransport) Run(ctx context.Context, events chan<- Event) {
	if t.Backoff == nil {
		t.Backoff = NewBackoff(0, 0)
	}
	log := slog.With("transport", t.Name(), "url", t.URL)
	for {
		if err := t.serve(ctx, events); err != nil && ctx.Err() == nil {
			log.Warn("connection failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		delay := t.Backoff.Next()
		log.Info("reconnecting", "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (t *WebSocketTransport) serve(ctx context.Context, events chan<- Event) error {
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 30 * time.Second,
	}
	if strings.HasPrefix(t.URL, "wss://") {
		cfg, err := clientTLSConfig(t.Store)
		if err != nil {
			return err
		}
		dialer.TLSClientConfig = cfg
	}

	conn, resp, err := dialer.DialContext(ctx, t.URL, http.Header{})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if got := conn.Subprotocol(); got != Subprotocol {
		return fmt.Errorf("subprotocol not echoed: got %q, want %q", got, Subprotocol)
	}

	var writeMu sync.Mutex
	sess := NewSession(session.New(t.Name()), t.Name(),
		func(data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return conn.WriteMessage(websocket.BinaryMessage, data)
		},
		func() { conn.Close() })

	hello, err := wire.EncodeRecord(
		wire.NewWebSocketConnectRecord(string(t.AgentID), t.ControllerID))
	if err != nil {
		return fmt.Errorf("encode connect record: %w", err)
	}
	if err := sess.Send(hello); err != nil {
		return fmt.Errorf("send connect record: %w", err)
	}

	t.Backoff.Reset()
	slog.Info("websocket session open", "session", sess.Ctx.ID)
	events <- Event{Kind: Connected, Session: sess}

	// Close the socket when ctx ends so the read loop unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			events <- Event{Kind: Disconnected, Session: sess, Err: err}
			return nil
		}
		if kind != websocket.BinaryMessage {
			slog.Warn("dropping non-binary websocket frame", "type", kind)
			continue
		}
		events <- Event{Kind: Frame, Session: sess, Data: data}
	}
}
