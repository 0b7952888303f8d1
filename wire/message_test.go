package wire

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, msg *Msg) *Msg {
	t.Helper()
	data, err := EncodeMsg(msg)
	if err != nil {
		t.Fatalf("EncodeMsg: %v", err)
	}
	got, err := DecodeMsg(data)
	if err != nil {
		t.Fatalf("DecodeMsg: %v", err)
	}
	again, err := EncodeMsg(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("round trip not stable for %s", msg.Header.MsgType)
	}
	return got
}

func TestMsgRoundTrip(t *testing.T) {
	msgs := []*Msg{
		NewBootNotify("m-1", "boot", map[string]string{
			"Cause":           "LocalReboot",
			"FirmwareUpdated": "false",
		}),
		NewValueChangeNotify("m-2", "status", "Device.DeviceInfo.UpTime", "0d 1h 2m 3s"),
		NewGetSupportedProto("m-3", "1.3"),
		NewGetSupportedProtoResp("m-3", "1.3"),
		NewGetResp("m-4", []RequestedPathResult{{
			RequestedPath: "Device.DeviceInfo.",
			ResolvedPathResults: []ResolvedPathResult{{
				ResolvedPath: "Device.DeviceInfo.",
				ResultParams: map[string]string{"Device.DeviceInfo.UpTime": "5"},
			}},
		}}),
		NewSetResp("m-5", []UpdatedObjectResult{{RequestedPath: "Device.WiFi."}}),
		NewOperateResp("m-6", "Device.X_ACS_Security.IssueCert()", "k", map[string]string{"CSR": "pem"}),
		NewOperateFailure("m-7", "Device.X_ACS_Camera.1.Capture()", "", ErrCodeOperateFailure, "capture failed"),
		NewNotifyResp("m-8", "status"),
		NewError("m-9", ErrCodeNotSupported, "NOT_SUPPORTED"),
		{
			Header: Header{MsgID: "m-10", MsgType: MsgTypeGet},
			Body: Body{Request: &Request{Get: &Get{
				ParamPaths: []string{"Device.DeviceInfo.", "Device.WiFi."},
				MaxDepth:   2,
			}}},
		},
		{
			Header: Header{MsgID: "m-11", MsgType: MsgTypeSet},
			Body: Body{Request: &Request{Set: &Set{
				UpdateObjs: []UpdateObject{{
					ObjPath:       "Device.WiFi.SSID.1.",
					ParamSettings: []ParamSetting{{Param: "SSID", Value: "lab"}},
				}},
			}}},
		},
	}
	for _, m := range msgs {
		got := roundTrip(t, m)
		if got.Header.MsgID != m.Header.MsgID {
			t.Errorf("msg id %q != %q", got.Header.MsgID, m.Header.MsgID)
		}
		if got.Header.MsgType != m.Header.MsgType {
			t.Errorf("msg type %s != %s", got.Header.MsgType, m.Header.MsgType)
		}
	}
}

func TestDecodeMsgRejectsAmbiguousBody(t *testing.T) {
	// Request and Error at the same time.
	bad := &Msg{
		Header: Header{MsgID: "m-1", MsgType: MsgTypeGet},
		Body: Body{
			Request: &Request{Get: &Get{ParamPaths: []string{"Device."}}},
			Error:   &Error{ErrCode: ErrCodeInternalError},
		},
	}
	data, err := EncodeMsg(bad)
	if err != nil {
		t.Fatalf("EncodeMsg: %v", err)
	}
	if _, err := DecodeMsg(data); err == nil {
		t.Error("expected error for body with two variants")
	}

	// Empty body.
	data, err = EncodeMsg(&Msg{Header: Header{MsgID: "m-2", MsgType: MsgTypeGet}})
	if err != nil {
		t.Fatalf("EncodeMsg: %v", err)
	}
	if _, err := DecodeMsg(data); err == nil {
		t.Error("expected error for empty body")
	}

	// Two request variants.
	bad = &Msg{
		Header: Header{MsgID: "m-3", MsgType: MsgTypeGet},
		Body: Body{Request: &Request{
			Get: &Get{ParamPaths: []string{"Device."}},
			Set: &Set{},
		}},
	}
	data, err = EncodeMsg(bad)
	if err != nil {
		t.Fatalf("EncodeMsg: %v", err)
	}
	if _, err := DecodeMsg(data); err == nil {
		t.Error("expected error for request with two variants")
	}
}

func TestRequestWithoutVariantIsDecodable(t *testing.T) {
	// A request kind the agent does not implement arrives with a typed
	// header and an empty request body. It must decode so the agent can
	// answer with an Error rather than dropping the frame.
	msg := &Msg{
		Header: Header{MsgID: "m-1", MsgType: MsgTypeAdd},
		Body:   Body{Request: &Request{}},
	}
	data, err := EncodeMsg(msg)
	if err != nil {
		t.Fatalf("EncodeMsg: %v", err)
	}
	got, err := DecodeMsg(data)
	if err != nil {
		t.Fatalf("DecodeMsg: %v", err)
	}
	if got.Header.MsgType != MsgTypeAdd {
		t.Errorf("msg type = %s, want ADD", got.Header.MsgType)
	}
}
