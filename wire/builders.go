package wire

// Builders for the messages the agent originates or answers with. Every
// builder takes the msg id explicitly: requests get theirs from the
// session sequencer, responses reuse the request's id for correlation.

// BootEventName is the event carried by the once-per-session boot
// notification.
const BootEventName = "Boot!"

// NewBootNotify builds the boot notification sent immediately after a
// session opens. params must include Cause and FirmwareUpdated.
func NewBootNotify(msgID, subscriptionID string, params map[string]string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeNotify},
		Body: Body{Request: &Request{Notify: &Notify{
			SubscriptionID: subscriptionID,
			Event: &Event{
				ObjPath:   "Device.",
				EventName: BootEventName,
				Params:    params,
			},
		}}},
	}
}

// NewValueChangeNotify builds a periodic telemetry notification for one
// parameter path.
func NewValueChangeNotify(msgID, subscriptionID, paramPath, paramValue string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeNotify},
		Body: Body{Request: &Request{Notify: &Notify{
			SubscriptionID: subscriptionID,
			ValueChange:    &ValueChange{ParamPath: paramPath, ParamValue: paramValue},
		}}},
	}
}

// NewGetSupportedProto builds the version negotiation request.
func NewGetSupportedProto(msgID, versions string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeGetSupportedProto},
		Body: Body{Request: &Request{GetSupportedProto: &GetSupportedProto{
			ControllerSupportedProtoVersions: versions,
		}}},
	}
}

// NewGetSupportedProtoResp answers a controller-initiated negotiation
// request with the agent's supported versions.
func NewGetSupportedProtoResp(msgID, versions string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeGetSupportedProtoResp},
		Body: Body{Response: &Response{GetSupportedProtoResp: &GetSupportedProtoResp{
			AgentSupportedProtoVersions: versions,
		}}},
	}
}

// NewGetResp wraps per-path results in a GET response.
func NewGetResp(msgID string, results []RequestedPathResult) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeGetResp},
		Body:   Body{Response: &Response{GetResp: &GetResp{ReqPathResults: results}}},
	}
}

// NewSetResp wraps per-object results in a SET response.
func NewSetResp(msgID string, results []UpdatedObjectResult) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeSetResp},
		Body:   Body{Response: &Response{SetResp: &SetResp{UpdatedObjResults: results}}},
	}
}

// NewOperateResp builds a successful OPERATE response carrying output
// arguments for the executed command.
func NewOperateResp(msgID, command, commandKey string, outputArgs map[string]string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeOperateResp},
		Body: Body{Response: &Response{OperateResp: &OperateResp{
			CommandKey: commandKey,
			Results: []OperationResult{{
				ExecutedCommand: command,
				OutputArgs:      outputArgs,
			}},
		}}},
	}
}

// NewOperateFailure builds an OPERATE response whose single result
// reports a command failure. Invocable failures travel here, never as a
// protocol-level Error.
func NewOperateFailure(msgID, command, commandKey string, errCode uint32, errMsg string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeOperateResp},
		Body: Body{Response: &Response{OperateResp: &OperateResp{
			CommandKey: commandKey,
			Results: []OperationResult{{
				ExecutedCommand: command,
				CmdFailure:      &CommandFailure{ErrCode: errCode, ErrMsg: errMsg},
			}}},
		}},
	}
}

// NewNotifyResp acknowledges a controller-originated Notify.
func NewNotifyResp(msgID, subscriptionID string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeNotifyResp},
		Body:   Body{Response: &Response{NotifyResp: &NotifyResp{SubscriptionID: subscriptionID}}},
	}
}

// NewError builds a protocol-level Error response.
func NewError(msgID string, errCode uint32, errMsg string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: MsgTypeError},
		Body:   Body{Error: &Error{ErrCode: errCode, ErrMsg: errMsg}},
	}
}
