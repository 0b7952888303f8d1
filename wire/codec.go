package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is configured with Core Deterministic Encoding so the same
// logical record always produces identical bytes on the wire.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown fields are ignored so newer
// controllers can add fields without breaking older agents.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeError is returned for any frame that cannot be parsed into a
// well-formed Record or Msg. It is always recoverable: the caller drops
// the frame and keeps going.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: malformed %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("wire: malformed %s", e.What)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(what string, err error) *DecodeError {
	return &DecodeError{What: what, Err: err}
}

func decodeErrf(what, format string, args ...any) *DecodeError {
	return &DecodeError{What: what, Err: fmt.Errorf(format, args...)}
}
