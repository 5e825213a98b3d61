package bgp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNeedMore is returned by a decoder when the supplied buffer does not
// yet hold a complete message. It is never wrapped with the usual
// context chain since there is nothing wrong with the input, only with
// how much of it has arrived so far.
var ErrNeedMore = errors.New("bgp: need more data")

// ErrorClass distinguishes the NOTIFICATION error-code families defined
// by RFC 4271 §6 so that callers can recover the (code, subcode) pair
// without re-parsing an error string.
type ErrorClass int

const (
	ClassFraming ErrorClass = iota
	ClassOpen
	ClassUpdate
	ClassHoldTimer
	ClassFSM
	ClassCease
)

// ProtocolError is a BGP protocol violation that maps directly onto a
// NOTIFICATION (Error Code, Error Subcode, Data) triple. Every
// NOTIFICATION the FSM ever sends is synthesized from one of these.
type ProtocolError struct {
	Class   ErrorClass
	Code    byte
	Subcode byte
	Data    []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bgp: protocol error code=%d subcode=%d", e.Code, e.Subcode)
}

// NewFramingError builds the ProtocolError for a Message Header Error
// (marker, length, or type violation detected by the framer).
func NewFramingError(subcode byte) *ProtocolError {
	return &ProtocolError{Class: ClassFraming, Code: ErrMessageHeader, Subcode: subcode}
}

// NewOpenError builds the ProtocolError for an OPEN Message Error.
// data carries the RFC-prescribed diagnostic payload, e.g. the
// largest locally-supported version number for UnsupportedVersionNumber.
func NewOpenError(subcode byte, data []byte) *ProtocolError {
	return &ProtocolError{Class: ClassOpen, Code: ErrOpenMessage, Subcode: subcode, Data: data}
}

// NewUpdateError builds the ProtocolError for an UPDATE Message Error.
func NewUpdateError(subcode byte) *ProtocolError {
	return &ProtocolError{Class: ClassUpdate, Code: ErrUpdateMessage, Subcode: subcode}
}

// NewHoldTimerExpired builds the ProtocolError sent when the Hold Timer
// expires without a KEEPALIVE or UPDATE resetting it.
func NewHoldTimerExpired() *ProtocolError {
	return &ProtocolError{Class: ClassHoldTimer, Code: ErrHoldTimerExpired, Subcode: NoSubcode}
}

// NewFSMError builds the ProtocolError sent when an event arrives that
// is not valid in the FSM's current state.
func NewFSMError() *ProtocolError {
	return &ProtocolError{Class: ClassFSM, Code: ErrFiniteStateMachine, Subcode: NoSubcode}
}

// NewCeaseError builds the ProtocolError sent on administrative
// shutdown (ManualStop).
func NewCeaseError() *ProtocolError {
	return &ProtocolError{Class: ClassCease, Code: ErrCease, Subcode: NoSubcode}
}

// AsProtocolError unwraps err (following any github.com/pkg/errors
// wrapping) looking for the originating *ProtocolError.
func AsProtocolError(err error) (*ProtocolError, bool) {
	pe, ok := errors.Cause(err).(*ProtocolError)
	return pe, ok
}
