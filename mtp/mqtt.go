package mtp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/acsense/uspagent/cred"
	"github.com/acsense/uspagent/endpoint"
	"github.com/acsense/uspagent/session"
	"github.com/acsense/uspagent/wire"
)

// Topic roots; one segment per endpoint, so the endpoint id must not
// contain MQTT topic metacharacters.
const (
	agentTopicRoot      = "usp/v1/agent/"
	controllerTopicRoot = "usp/v1/controller/"
)

var topicSanitiser = strings.NewReplacer(":", "%3A", "#", "%23", "+", "%2B")

func sanitiseTopic(id string) string { return topicSanitiser.Replace(id) }

// AgentTopic is the topic an agent receives records on.
func AgentTopic(id endpoint.ID) string { return agentTopicRoot + sanitiseTopic(string(id)) }

// ControllerTopic is the topic a controller receives records on.
func ControllerTopic(id string) string { return controllerTopicRoot + sanitiseTopic(id) }

const mqttOpTimeout = 10 * time.Second

// MQTTTransport connects to a broker, subscribes to the agent topic and
// publishes outgoing records to the controller topic at QoS 1. The
// client's built-in reconnect is disabled; this transport owns the
// reconnect loop so a fresh session context is minted per connection.
type MQTTTransport struct {
	BrokerURL    string
	AgentID      endpoint.ID
	ControllerID string
	Store        *cred.Store
	Backoff      *Backoff
}

func (t *MQTTTransport) Name() string { return "mqtt" }

func (t *MQTTTransport) Run(ctx context.Context, events chan<- Event) {
	if t.Backoff == nil {
		t.Backoff = NewBackoff(0, 0)
	}
	log := slog.With("transport", t.Name(), "broker", t.BrokerURL)
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

func (t *MQTTTransport) serve(ctx context.Context, events chan<- Event) error {
	frames := make(chan []byte, 16)
	lost := make(chan error, 1)

	// paho does not fire OnConnectionLost for a requested Disconnect,
	// so an intentional close signals the loop through done instead.
	// done also unblocks delivery goroutines stuck on frames.
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	defer stop()

	opts := mqtt.NewClientOptions().
		AddBroker(t.BrokerURL).
		SetClientID(sanitiseTopic(string(t.AgentID))).
		SetAutoReconnect(false).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})
	if strings.HasPrefix(t.BrokerURL, "ssl://") || strings.HasPrefix(t.BrokerURL, "tls://") ||
		strings.HasPrefix(t.BrokerURL, "mqtts://") {
		cfg, err := clientTLSConfig(t.Store)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(cfg)
	}

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(mqttOpTimeout) || tok.Error() != nil {
		return fmt.Errorf("connect: %w", tokenErr(tok))
	}
	defer client.Disconnect(250)

	inbound := AgentTopic(t.AgentID)
	tok := client.Subscribe(inbound, 1, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case frames <- m.Payload():
		case <-done:
		}
	})
	if !tok.WaitTimeout(mqttOpTimeout) || tok.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", inbound, tokenErr(tok))
	}

	outbound := ControllerTopic(t.ControllerID)
	sess := NewSession(session.New(t.Name()), t.Name(),
		func(data []byte) error {
			tok := client.Publish(outbound, 1, false, data)
			if !tok.WaitTimeout(mqttOpTimeout) || tok.Error() != nil {
				return fmt.Errorf("publish %s: %w", outbound, tokenErr(tok))
			}
			return nil
		},
		func() {
			stop()
			client.Disconnect(250)
		})

	hello, err := wire.EncodeRecord(
		wire.NewMQTTConnectRecord(string(t.AgentID), t.ControllerID, inbound))
	if err != nil {
		return fmt.Errorf("encode connect record: %w", err)
	}
	if err := sess.Send(hello); err != nil {
		return fmt.Errorf("send connect record: %w", err)
	}

	t.Backoff.Reset()
	slog.Info("mqtt session open", "session", sess.Ctx.ID, "topic", inbound)
	events <- Event{Kind: Connected, Session: sess}

	return t.pump(ctx, sess, frames, lost, done, events)
}

// pump relays broker traffic until the connection ends: context
// cancellation, an unrequested connection loss, or an intentional
// Session.Close, each of which produces a Disconnected event so the
// reconnect loop runs again.
func (t *MQTTTransport) pump(ctx context.Context, sess *Session, frames <-chan []byte, lost <-chan error, done <-chan struct{}, events chan<- Event) error {
	for {
		select {
		case <-ctx.Done():
			events <- Event{Kind: Disconnected, Session: sess}
			return nil
		case <-done:
			events <- Event{Kind: Disconnected, Session: sess}
			return nil
		case err := <-lost:
			events <- Event{Kind: Disconnected, Session: sess, Err: err}
			return nil
		case data := <-frames:
			events <- Event{Kind: Frame, Session: sess, Data: data}
		}
	}
}

func tokenErr(tok mqtt.Token) error {
	if err := tok.Error(); err != nil {
		return err
	}
	return fmt.Errorf("operation timed out")
}
