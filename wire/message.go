package wire

// MsgType identifies the request or response kind carried in a Msg
// header. Values are stable wire constants.
type MsgType uint8

const (
	MsgTypeUnknown MsgType = iota
	MsgTypeGet
	MsgTypeGetResp
	MsgTypeSet
	MsgTypeSetResp
	MsgTypeOperate
	MsgTypeOperateResp
	MsgTypeNotify
	MsgTypeNotifyResp
	MsgTypeGetSupportedDM
	MsgTypeGetSupportedDMResp
	MsgTypeAdd
	MsgTypeAddResp
	MsgTypeDelete
	MsgTypeDeleteResp
	MsgTypeGetInstances
	MsgTypeGetInstancesResp
	MsgTypeGetSupportedProto
	MsgTypeGetSupportedProtoResp
	MsgTypeError
)

var msgTypeNames = map[MsgType]string{
	MsgTypeGet:                   "GET",
	MsgTypeGetResp:               "GET_RESP",
	MsgTypeSet:                   "SET",
	MsgTypeSetResp:               "SET_RESP",
	MsgTypeOperate:               "OPERATE",
	MsgTypeOperateResp:           "OPERATE_RESP",
	MsgTypeNotify:                "NOTIFY",
	MsgTypeNotifyResp:            "NOTIFY_RESP",
	MsgTypeGetSupportedDM:        "GET_SUPPORTED_DM",
	MsgTypeGetSupportedDMResp:    "GET_SUPPORTED_DM_RESP",
	MsgTypeAdd:                   "ADD",
	MsgTypeAddResp:               "ADD_RESP",
	MsgTypeDelete:                "DELETE",
	MsgTypeDeleteResp:            "DELETE_RESP",
	MsgTypeGetInstances:          "GET_INSTANCES",
	MsgTypeGetInstancesResp:      "GET_INSTANCES_RESP",
	MsgTypeGetSupportedProto:     "GET_SUPPORTED_PROTO",
	MsgTypeGetSupportedProtoResp: "GET_SUPPORTED_PROTO_RESP",
	MsgTypeError:                 "ERROR",
}

func (t MsgType) String() string {
	if s, ok := msgTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Protocol error codes carried in Error bodies and per-path results.
const (
	ErrCodeMessageNotUnderstood uint32 = 7000
	ErrCodeInternalError        uint32 = 7003
	ErrCodeNotSupported         uint32 = 7004
	ErrCodeInvalidPath          uint32 = 7026
	ErrCodeSetFailure           uint32 = 7200
	ErrCodeOperateFailure       uint32 = 7800
)

// Msg is the inner protocol message: a header plus a body that is a
// tagged union over request, response, and error.
type Msg struct {
	Header Header `cbor:"header"`
	Body   Body   `cbor:"body"`
}

type Header struct {
	MsgID   string  `cbor:"msg_id"`
	MsgType MsgType `cbor:"msg_type"`
}

// Body carries exactly one of Request, Response, or Error.
type Body struct {
	Request  *Request  `cbor:"request,omitempty"`
	Response *Response `cbor:"response,omitempty"`
	Error    *Error    `cbor:"error,omitempty"`
}

// Request carries at most one request variant; the header's MsgType
// selects which one is meaningful. A request whose declared type has no
// matching variant is answered by the agent, not rejected by the codec.
type Request struct {
	Get               *Get               `cbor:"get,omitempty"`
	Set               *Set               `cbor:"set,omitempty"`
	Operate           *Operate           `cbor:"operate,omitempty"`
	Notify            *Notify            `cbor:"notify,omitempty"`
	GetSupportedProto *GetSupportedProto `cbor:"get_supported_proto,omitempty"`
}

type Response struct {
	GetResp               *GetResp               `cbor:"get_resp,omitempty"`
	SetResp               *SetResp               `cbor:"set_resp,omitempty"`
	OperateResp           *OperateResp           `cbor:"operate_resp,omitempty"`
	NotifyResp            *NotifyResp            `cbor:"notify_resp,omitempty"`
	GetSupportedProtoResp *GetSupportedProtoResp `cbor:"get_supported_proto_resp,omitempty"`
}

type Error struct {
	ErrCode   uint32       `cbor:"err_code"`
	ErrMsg    string       `cbor:"err_msg,omitempty"`
	ParamErrs []ParamError `cbor:"param_errs,omitempty"`
}

type ParamError struct {
	ParamPath string `cbor:"param_path"`
	ErrCode   uint32 `cbor:"err_code"`
	ErrMsg    string `cbor:"err_msg,omitempty"`
}

// ── Requests ─────────────────────────────────────────────────────────

type Get struct {
	ParamPaths []string `cbor:"param_paths"`
	// MaxDepth bounds expansion below each requested path, counted in
	// path segments. 0 returns the requested path only.
	MaxDepth uint32 `cbor:"max_depth,omitempty"`
}

type Set struct {
	AllowPartial bool           `cbor:"allow_partial,omitempty"`
	UpdateObjs   []UpdateObject `cbor:"update_objs"`
}

type UpdateObject struct {
	ObjPath       string         `cbor:"obj_path"`
	ParamSettings []ParamSetting `cbor:"param_settings"`
}

type ParamSetting struct {
	Param    string `cbor:"param"`
	Value    string `cbor:"value"`
	Required bool   `cbor:"required,omitempty"`
}

type Operate struct {
	Command    string            `cbor:"command"`
	CommandKey string            `cbor:"command_key,omitempty"`
	SendResp   bool              `cbor:"send_resp,omitempty"`
	InputArgs  map[string]string `cbor:"input_args,omitempty"`
}

type Notify struct {
	SubscriptionID string `cbor:"subscription_id,omitempty"`
	SendResp       bool   `cbor:"send_resp,omitempty"`

	// One of:
	Event       *Event       `cbor:"event,omitempty"`
	ValueChange *ValueChange `cbor:"value_change,omitempty"`
}

type Event struct {
	ObjPath    string            `cbor:"obj_path"`
	EventName  string            `cbor:"event_name"`
	CommandKey string            `cbor:"command_key,omitempty"`
	Params     map[string]string `cbor:"params,omitempty"`
}

type ValueChange struct {
	ParamPath  string `cbor:"param_path"`
	ParamValue string `cbor:"param_value"`
}

type GetSupportedProto struct {
	ControllerSupportedProtoVersions string `cbor:"controller_supported_proto_versions"`
}

// ── Responses ────────────────────────────────────────────────────────

type GetResp struct {
	ReqPathResults []RequestedPathResult `cbor:"req_path_results"`
}

// RequestedPathResult reports the outcome of one requested path. A
// non-zero ErrCode is scoped to this path only; sibling paths in the
// same GET succeed or fail independently.
type RequestedPathResult struct {
	RequestedPath       string               `cbor:"requested_path"`
	ErrCode             uint32               `cbor:"err_code,omitempty"`
	ErrMsg              string               `cbor:"err_msg,omitempty"`
	ResolvedPathResults []ResolvedPathResult `cbor:"resolved_path_results,omitempty"`
}

type ResolvedPathResult struct {
	ResolvedPath string            `cbor:"resolved_path"`
	ResultParams map[string]string `cbor:"result_params"`
}

type SetResp struct {
	UpdatedObjResults []UpdatedObjectResult `cbor:"updated_obj_results"`
}

// UpdatedObjectResult reports one affected object path, not one leaf
// parameter. ErrCode zero means success.
type UpdatedObjectResult struct {
	RequestedPath string            `cbor:"requested_path"`
	ErrCode       uint32            `cbor:"err_code,omitempty"`
	ErrMsg        string            `cbor:"err_msg,omitempty"`
	UpdatedParams map[string]string `cbor:"updated_params,omitempty"`
}

type OperateResp struct {
	CommandKey string            `cbor:"command_key,omitempty"`
	Results    []OperationResult `cbor:"operation_results"`
}

type OperationResult struct {
	ExecutedCommand string            `cbor:"executed_command"`
	OutputArgs      map[string]string `cbor:"output_args,omitempty"`
	CmdFailure      *CommandFailure   `cbor:"cmd_failure,omitempty"`
}

type CommandFailure struct {
	ErrCode uint32 `cbor:"err_code"`
	ErrMsg  string `cbor:"err_msg,omitempty"`
}

type NotifyResp struct {
	SubscriptionID string `cbor:"subscription_id,omitempty"`
}

type GetSupportedProtoResp struct {
	AgentSupportedProtoVersions string `cbor:"agent_supported_proto_versions"`
}

// ── Encode / decode ──────────────────────────────────────────────────

// EncodeMsg serialises a Msg for embedding in a record payload.
func EncodeMsg(m *Msg) ([]byte, error) {
	return encMode.Marshal(m)
}

// DecodeMsg parses an inner record payload into a Msg. A body carrying
// zero or multiple of request/response/error, or a union with more than
// one variant set, is malformed.
func DecodeMsg(data []byte) (*Msg, error) {
	var m Msg
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, decodeErr("message", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Msg) validate() error {
	n := 0
	if m.Body.Request != nil {
		n++
	}
	if m.Body.Response != nil {
		n++
	}
	if m.Body.Error != nil {
		n++
	}
	if n != 1 {
		return decodeErrf("message", "expected exactly one body variant, got %d", n)
	}
	if req := m.Body.Request; req != nil {
		n = 0
		if req.Get != nil {
			n++
		}
		if req.Set != nil {
			n++
		}
		if req.Operate != nil {
			n++
		}
		if req.Notify != nil {
			n++
		}
		if req.GetSupportedProto != nil {
			n++
		}
		if n > 1 {
			return decodeErrf("message", "request carries %d variants", n)
		}
	}
	if resp := m.Body.Response; resp != nil {
		n = 0
		if resp.GetResp != nil {
			n++
		}
		if resp.SetResp != nil {
			n++
		}
		if resp.OperateResp != nil {
			n++
		}
		if resp.NotifyResp != nil {
			n++
		}
		if resp.GetSupportedProtoResp != nil {
			n++
		}
		if n > 1 {
			return decodeErrf("message", "response carries %d variants", n)
		}
	}
	return nil
}
