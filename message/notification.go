package message

import (
	"bytes"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/stream"
)

// A NOTIFICATION message is sent when an error condition is detected.
// The BGP connection is closed immediately after it is sent. Error
// Code and Error Subcode values are enumerated in bgp.ErrX /
// bgp.SubcodeX (RFC 4271 §6); the Data field's interpretation depends
// on which code/subcode it accompanies.
type Notification struct {
	Code    byte
	Subcode byte
	Data    []byte
}

// NewNotification builds a Notification directly from a
// *bgp.ProtocolError, the representation the FSM reasons about
// internally. It is the single place the wire message is derived from
// a protocol violation.
func NewNotification(pe *bgp.ProtocolError) Notification {
	return Notification{Code: pe.Code, Subcode: pe.Subcode, Data: pe.Data}
}

// Type implements Message.
func (n Notification) Type() bgp.Type { return bgp.NOTIFICATION }

// Encode implements Message.
func (n Notification) Encode() []byte {
	length := uint16(bgp.HeaderLength + 2 + len(n.Data))
	buf := encodeHeader(length, bgp.NOTIFICATION)
	buf = append(buf, n.Code, n.Subcode)
	buf = append(buf, n.Data...)
	return buf
}

func decodeNotification(body []byte) (Message, error) {
	buf := bytes.NewBuffer(body)
	code := stream.ReadByte(buf)
	subcode := stream.ReadByte(buf)
	var data []byte
	if buf.Len() > 0 {
		data = stream.ReadBytes(buf.Len(), buf)
	}
	return Notification{Code: code, Subcode: subcode, Data: data}, nil
}
