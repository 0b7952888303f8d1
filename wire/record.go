package wire

// DefaultProtoVersion is the protocol version stamped on outgoing
// records before version negotiation completes.
const DefaultProtoVersion = "1.3"

// Record is the outer envelope framing a Msg over any transport. The
// codec does not inspect addressing; discarding records whose ToID does
// not match the local endpoint is the receiver's job.
type Record struct {
	Version         string `cbor:"version"`
	ToID            string `cbor:"to_id"`
	FromID          string `cbor:"from_id"`
	PayloadSecurity uint8  `cbor:"payload_security,omitempty"`
	MACSignature    []byte `cbor:"mac_signature,omitempty"`
	SenderCert      []byte `cbor:"sender_cert,omitempty"`

	// Exactly one of the following is set.
	NoSessionContext *NoSessionContextRecord `cbor:"no_session_context,omitempty"`
	SessionContext   *SessionContextRecord   `cbor:"session_context,omitempty"`
	WebSocketConnect *WebSocketConnectRecord `cbor:"websocket_connect,omitempty"`
	MQTTConnect      *MQTTConnectRecord      `cbor:"mqtt_connect,omitempty"`
	Disconnect       *DisconnectRecord       `cbor:"disconnect,omitempty"`
}

// NoSessionContextRecord carries a single encoded Msg; ordering is left
// to the transport.
type NoSessionContextRecord struct {
	Payload []byte `cbor:"payload"`
}

// SessionContextRecord carries Msg payloads with explicit sequence
// numbering for transports without ordered delivery.
type SessionContextRecord struct {
	SessionID  uint64   `cbor:"session_id"`
	SequenceID uint64   `cbor:"sequence_id"`
	ExpectedID uint64   `cbor:"expected_id"`
	Payload    [][]byte `cbor:"payload"`
}

// WebSocketConnectRecord identifies the agent once per WebSocket
// connection, before any Msg traffic.
type WebSocketConnectRecord struct{}

// MQTTConnectRecord identifies the agent to the controller and tells it
// which topic to publish replies on.
type MQTTConnectRecord struct {
	Version         uint8  `cbor:"version,omitempty"`
	SubscribedTopic string `cbor:"subscribed_topic"`
}

// DisconnectRecord signals an intentional session teardown.
type DisconnectRecord struct {
	Reason     string `cbor:"reason,omitempty"`
	ReasonCode uint32 `cbor:"reason_code,omitempty"`
}

// EncodeRecord serialises a record for the wire.
func EncodeRecord(r *Record) ([]byte, error) {
	return encMode.Marshal(r)
}

// DecodeRecord parses raw transport bytes into a Record. A record that
// parses but carries zero or multiple record-type variants is malformed.
func DecodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, decodeErr("record", err)
	}
	n := 0
	if r.NoSessionContext != nil {
		n++
	}
	if r.SessionContext != nil {
		n++
	}
	if r.WebSocketConnect != nil {
		n++
	}
	if r.MQTTConnect != nil {
		n++
	}
	if r.Disconnect != nil {
		n++
	}
	if n != 1 {
		return nil, decodeErrf("record", "expected exactly one record type, got %d", n)
	}
	return &r, nil
}

// MsgPayload returns the encoded Msg carried by the record, if any.
// Connect and disconnect records carry none.
func (r *Record) MsgPayload() ([]byte, bool) {
	switch {
	case r.NoSessionContext != nil:
		return r.NoSessionContext.Payload, true
	case r.SessionContext != nil && len(r.SessionContext.Payload) > 0:
		return r.SessionContext.Payload[0], true
	}
	return nil, false
}

// NewNoSessionRecord frames encoded Msg bytes in a NoSessionContext
// record. version should be the negotiated protocol version, or
// DefaultProtoVersion before negotiation completes.
func NewNoSessionRecord(fromID, toID string, msgBytes []byte, version string) *Record {
	return &Record{
		Version:          version,
		ToID:             toID,
		FromID:           fromID,
		NoSessionContext: &NoSessionContextRecord{Payload: msgBytes},
	}
}

// NewWebSocketConnectRecord builds the session-open record sent once
// per WebSocket connection.
func NewWebSocketConnectRecord(fromID, toID string) *Record {
	return &Record{
		Version:          DefaultProtoVersion,
		ToID:             toID,
		FromID:           fromID,
		WebSocketConnect: &WebSocketConnectRecord{},
	}
}

// NewMQTTConnectRecord builds the session-open record published once
// per MQTT connection; subscribedTopic is the agent's inbound topic.
func NewMQTTConnectRecord(fromID, toID, subscribedTopic string) *Record {
	return &Record{
		Version:     DefaultProtoVersion,
		ToID:        toID,
		FromID:      fromID,
		MQTTConnect: &MQTTConnectRecord{SubscribedTopic: subscribedTopic},
	}
}

// NewDisconnectRecord builds an intentional session-teardown record.
func NewDisconnectRecord(fromID, toID, reason string, code uint32) *Record {
	return &Record{
		Version:    DefaultProtoVersion,
		ToID:       toID,
		FromID:     fromID,
		Disconnect: &DisconnectRecord{Reason: reason, ReasonCode: code},
	}
}
