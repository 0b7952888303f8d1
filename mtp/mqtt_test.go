package mtp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acsense/uspagent/endpoint"
	"github.com/acsense/uspagent/session"
)

func TestSanitiseTopic(t *testing.T) {
	id := endpoint.ID("oui:00005A:AABBCCDDEEFF")
	want := "usp/v1/agent/oui%3A00005A%3AAABBCCDDEEFF"
	if got := AgentTopic(id); got != want {
		t.Fatalf("AgentTopic = %q, want %q", got, want)
	}
	if got := sanitiseTopic("a#b+c"); got != "a%23b%2Bc" {
		t.Fatalf("sanitiseTopic = %q", got)
	}
}

// mqttLoop models one serve invocation's channels and session, wired
// the way serve wires them, without a broker behind it.
type mqttLoop struct {
	sess   *Session
	frames chan []byte
	lost   chan error
	done   chan struct{}
	events chan Event
}

func newMQTTLoop() *mqttLoop {
	l := &mqttLoop{
		frames: make(chan []byte, 16),
		lost:   make(chan error, 1),
		done:   make(chan struct{}),
		events: make(chan Event, 8),
	}
	var once sync.Once
	stop := func() { once.Do(func() { close(l.done) }) }
	l.sess = NewSession(session.New("mqtt"), "mqtt",
		func([]byte) error { return nil },
		stop)
	return l
}

func (l *mqttLoop) run(ctx context.Context) chan error {
	tr := &MQTTTransport{}
	ret := make(chan error, 1)
	go func() {
		ret <- tr.pump(ctx, l.sess, l.frames, l.lost, l.done, l.events)
	}()
	return ret
}

func TestMQTTCloseEmitsDisconnected(t *testing.T) {
	l := newMQTTLoop()
	ret := l.run(context.Background())

	l.sess.Close()

	ev := waitEvent(t, l.events, Disconnected)
	if ev.Session != l.sess {
		t.Fatalf("disconnected event for wrong session: %+v", ev)
	}
	select {
	case <-ret:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not return after Session.Close")
	}
}

func TestMQTTConnectionLostEmitsDisconnectedWithCause(t *testing.T) {
	l := newMQTTLoop()
	l.run(context.Background())

	l.lost <- fmt.Errorf("broker went away")

	ev := waitEvent(t, l.events, Disconnected)
	if ev.Err == nil {
		t.Fatal("connection loss reported without a cause")
	}
}

func TestMQTTFramesRelayedUntilClose(t *testing.T) {
	l := newMQTTLoop()
	l.run(context.Background())

	l.frames <- []byte("record-bytes")
	ev := waitEvent(t, l.events, Frame)
	if string(ev.Data) != "record-bytes" {
		t.Fatalf("frame data = %q", ev.Data)
	}

	// A delivery callback blocked on a full frames channel must
	// unblock once the session closes.
	for i := 0; i < cap(l.frames); i++ {
		l.frames <- []byte("fill")
	}
	delivered := make(chan struct{})
	go func() {
		select {
		case l.frames <- []byte("overflow"):
		case <-l.done:
		}
		close(delivered)
	}()

	l.sess.Close()
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery goroutine still blocked after close")
	}
}
