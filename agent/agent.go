// Package agent runs the device-side protocol loop: it consumes events
// from every configured transport on one channel, answers controller
// requests through the parameter-tree dispatcher, and originates the
// boot notification, version negotiation and periodic telemetry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acsense/uspagent/dm"
	"github.com/acsense/uspagent/endpoint"
	"github.com/acsense/uspagent/mtp"
	"github.com/acsense/uspagent/provision"
	"github.com/acsense/uspagent/sysinfo"
	"github.com/acsense/uspagent/wire"
)

// SessionState tracks the protocol lifecycle of one transport session.
type SessionState int

const (
	// Negotiating: boot notification sent, version answer outstanding.
	Negotiating SessionState = iota
	// Active: version negotiated, normal request traffic.
	Active
)

func (s SessionState) String() string {
	if s == Active {
		return "active"
	}
	return "negotiating"
}

// BootSubscriptionID labels the agent-originated boot and telemetry
// notifications; controllers use it to correlate unsolicited traffic.
const BootSubscriptionID = "default-subscription"

// Agent wires transports, the dispatcher and the provisioning machine
// together. Run owns all session state from a single goroutine; the
// only cross-goroutine signal is the provisioning callback, which sets
// a flag consumed on the same loop iteration that sent the response.
type Agent struct {
	ID           endpoint.ID
	ControllerID string
	Dispatcher   *dm.Dispatcher
	Machine      *provision.Machine
	Info         *sysinfo.Reader
	Transports   []mtp.Transport

	TelemetryInterval time.Duration
	TelemetryPaths    []string

	mu       sync.Mutex
	sessions map[*mtp.Session]SessionState

	pendingClose  bool
	lastTelemetry time.Time
}

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	EndpointID        string            `json:"endpoint_id"`
	ControllerID      string            `json:"controller_id"`
	ProvisioningState string            `json:"provisioning_state"`
	Sessions          map[string]string `json:"sessions"`
	LastTelemetry     time.Time         `json:"last_telemetry,omitzero"`
}

// Run drives the agent until ctx is cancelled. Transports reconnect on
// their own; the loop only reacts to what they report.
func (a *Agent) Run(ctx context.Context) error {
	if len(a.Transports) == 0 {
		return fmt.Errorf("agent: no transports configured")
	}
	a.mu.Lock()
	a.sessions = make(map[*mtp.Session]SessionState)
	a.mu.Unlock()

	if a.Machine != nil {
		a.Machine.OnProvisioned(func() { a.pendingClose = true })
	}

	events := make(chan mtp.Event, 32)
	for _, t := range a.Transports {
		go t.Run(ctx, events)
	}

	interval := a.TelemetryInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("agent running", "endpoint", a.ID, "transports", len(a.Transports))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			a.handleEvent(ev)
		case <-ticker.C:
			a.sendTelemetry()
		}
	}
}

func (a *Agent) handleEvent(ev mtp.Event) {
	switch ev.Kind {
	case mtp.Connected:
		a.mu.Lock()
		a.sessions[ev.Session] = Negotiating
		a.mu.Unlock()
		a.startSession(ev.Session)
	case mtp.Frame:
		a.handleFrame(ev.Session, ev.Data)
	case mtp.Disconnected:
		a.mu.Lock()
		delete(a.sessions, ev.Session)
		a.mu.Unlock()
		slog.Info("session closed", "session", ev.Session.Ctx.ID, "error", ev.Err)
	}
}

// startSession announces the agent on a fresh session: the boot
// notification goes out first, then the version negotiation request.
func (a *Agent) startSession(sess *mtp.Session) {
	log := slog.With("session", sess.Ctx.ID)
	log.Info("session open, announcing")

	boot := wire.NewBootNotify(sess.Ctx.NextMsgID(), BootSubscriptionID, a.bootParams())
	if err := a.send(sess, boot); err != nil {
		log.Warn("boot notify failed", "error", err)
		return
	}
	nego := wire.NewGetSupportedProto(sess.Ctx.NextMsgID(), wire.DefaultProtoVersion)
	if err := a.send(sess, nego); err != nil {
		log.Warn("version negotiation failed", "error", err)
	}
}

func (a *Agent) bootParams() map[string]string {
	params := map[string]string{
		"Cause":           "LocalReboot",
		"FirmwareUpdated": "false",
	}
	if a.Info != nil {
		if v := a.Info.FirmwareVersion(); v != "" {
			params["Device.DeviceInfo.SoftwareVersion"] = v
		}
		if v := a.Info.Hostname(); v != "" {
			params["Device.DeviceInfo.HostName"] = v
		}
	}
	return params
}

func (a *Agent) handleFrame(sess *mtp.Session, data []byte) {
	log := slog.With("session", sess.Ctx.ID)

	rec, err := wire.DecodeRecord(data)
	if err != nil {
		log.Warn("dropping undecodable record", "error", err)
		return
	}
	if rec.ToID != string(a.ID) {
		log.Warn("dropping misaddressed record", "to_id", rec.ToID)
		return
	}
	payload, ok := rec.MsgPayload()
	if !ok {
		log.Debug("record carries no message", "from_id", rec.FromID)
		return
	}
	msg, err := wire.DecodeMsg(payload)
	if err != nil {
		log.Warn("dropping undecodable message", "error", err)
		return
	}

	reply := a.handleMsg(sess, msg)
	if reply != nil {
		if err := a.send(sess, reply); err != nil {
			log.Warn("send response failed", "msg_id", reply.Header.MsgID, "error", err)
		}
	}

	// Provisioning completed inside this request: the response is on
	// the wire, reconnect with the issued credential.
	if a.pendingClose {
		a.pendingClose = false
		log.Info("closing session to pick up issued credentials")
		sess.Close()
	}
}

// handleMsg produces the reply for one inbound message, or nil when the
// message needs no answer. Responses reuse the request's msg id.
func (a *Agent) handleMsg(sess *mtp.Session, msg *wire.Msg) *wire.Msg {
	id := msg.Header.MsgID
	log := slog.With("session", sess.Ctx.ID, "msg_id", id, "msg_type", msg.Header.MsgType.String())
	log.Debug("handling message")

	req := msg.Body.Request

	switch msg.Header.MsgType {
	case wire.MsgTypeGet:
		if req == nil || req.Get == nil {
			return wire.NewError(id, wire.ErrCodeMessageNotUnderstood, "GET carries no get body")
		}
		return wire.NewGetResp(id, a.Dispatcher.Get(req.Get.ParamPaths, req.Get.MaxDepth))

	case wire.MsgTypeSet:
		if req == nil || req.Set == nil {
			return wire.NewError(id, wire.ErrCodeMessageNotUnderstood, "SET carries no set body")
		}
		return wire.NewSetResp(id, a.Dispatcher.Set(req.Set.UpdateObjs))

	case wire.MsgTypeOperate:
		if req == nil || req.Operate == nil {
			return wire.NewError(id, wire.ErrCodeMessageNotUnderstood, "OPERATE carries no operate body")
		}
		op := req.Operate
		out, err := a.Dispatcher.Operate(op.Command, op.InputArgs)
		switch {
		case errors.Is(err, dm.ErrCommandNotFound):
			return wire.NewError(id, wire.ErrCodeOperateFailure,
				fmt.Sprintf("unknown command %s", op.Command))
		case err != nil:
			return wire.NewOperateFailure(id, op.Command, op.CommandKey,
				wire.ErrCodeOperateFailure, err.Error())
		}
		return wire.NewOperateResp(id, op.Command, op.CommandKey, out)

	case wire.MsgTypeNotify:
		if req == nil || req.Notify == nil {
			return wire.NewError(id, wire.ErrCodeMessageNotUnderstood, "NOTIFY carries no notify body")
		}
		return wire.NewNotifyResp(id, req.Notify.SubscriptionID)

	case wire.MsgTypeGetSupportedProto:
		return wire.NewGetSupportedProtoResp(id, wire.DefaultProtoVersion)

	case wire.MsgTypeGetSupportedProtoResp:
		if resp := msg.Body.Response; resp != nil && resp.GetSupportedProtoResp != nil {
			sess.Ctx.SetVersion(firstVersion(resp.GetSupportedProtoResp.AgentSupportedProtoVersions))
		}
		a.mu.Lock()
		a.sessions[sess] = Active
		a.mu.Unlock()
		log.Info("version negotiated", "version", sess.Ctx.Version())
		return nil

	case wire.MsgTypeNotifyResp, wire.MsgTypeError,
		wire.MsgTypeGetResp, wire.MsgTypeSetResp, wire.MsgTypeOperateResp:
		// Answers to agent-originated traffic; nothing outstanding
		// requires them.
		log.Debug("response acknowledged")
		return nil

	case wire.MsgTypeAdd, wire.MsgTypeDelete,
		wire.MsgTypeGetInstances, wire.MsgTypeGetSupportedDM:
		return wire.NewError(id, wire.ErrCodeNotSupported, "NOT_SUPPORTED")
	}

	return wire.NewError(id, wire.ErrCodeMessageNotUnderstood,
		fmt.Sprintf("message type %d not understood", msg.Header.MsgType))
}

// firstVersion picks the first entry of a comma-separated version list.
func firstVersion(versions string) string {
	for i := 0; i < len(versions); i++ {
		if versions[i] == ',' {
			return versions[:i]
		}
	}
	return versions
}

func (a *Agent) send(sess *mtp.Session, msg *wire.Msg) error {
	payload, err := wire.EncodeMsg(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	rec := wire.NewNoSessionRecord(string(a.ID), a.ControllerID, payload, sess.Ctx.Version())
	data, err := wire.EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return sess.Send(data)
}

// sendTelemetry pushes one value-change notification per configured
// path to every active session. Values come from the same dispatcher
// that serves controller GETs.
func (a *Agent) sendTelemetry() {
	if len(a.TelemetryPaths) == 0 {
		return
	}
	a.mu.Lock()
	active := make([]*mtp.Session, 0, len(a.sessions))
	for sess, state := range a.sessions {
		if state == Active {
			active = append(active, sess)
		}
	}
	a.mu.Unlock()
	if len(active) == 0 {
		return
	}

	for _, path := range a.TelemetryPaths {
		value, ok := a.telemetryValue(path)
		if !ok {
			continue
		}
		for _, sess := range active {
			msg := wire.NewValueChangeNotify(sess.Ctx.NextMsgID(), BootSubscriptionID, path, value)
			if err := a.send(sess, msg); err != nil {
				slog.Warn("telemetry send failed", "session", sess.Ctx.ID, "path", path, "error", err)
			}
		}
	}
	a.mu.Lock()
	a.lastTelemetry = time.Now()
	a.mu.Unlock()
}

func (a *Agent) telemetryValue(path string) (string, bool) {
	results := a.Dispatcher.Get([]string{path}, 0)
	if len(results) == 0 || results[0].ErrCode != 0 {
		return "", false
	}
	for _, rp := range results[0].ResolvedPathResults {
		if v, ok := rp.ResultParams[path]; ok {
			return v, true
		}
	}
	return "", false
}

// Snapshot returns the current status for the web status endpoint.
func (a *Agent) Snapshot() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		EndpointID:    string(a.ID),
		ControllerID:  a.ControllerID,
		Sessions:      make(map[string]string, len(a.sessions)),
		LastTelemetry: a.lastTelemetry,
	}
	if a.Machine != nil {
		st.ProvisioningState = a.Machine.State().String()
	}
	for sess, state := range a.sessions {
		st.Sessions[sess.Ctx.ID] = state.String()
	}
	return st
}
