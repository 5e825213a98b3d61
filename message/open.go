package message

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/stream"
)

// After a TCP connection is established, the first message sent by
// each side is an OPEN message. If the OPEN message is acceptable, a
// KEEPALIVE message confirming the OPEN is sent back.
//
// This speaker does not implement capability negotiation (spec.md
// §1), so it never emits optional parameters, and a received OPEN
// with a non-zero optional-parameters length is rejected outright at
// decode time with UnsupportedOptionalParameter rather than parsed,
// per the Open Question resolution in spec.md §9.
type Open struct {
	Version    bgp.Version
	MyAS       bgp.ASN
	HoldTime   uint16
	Identifier bgp.Identifier
}

// NewOpen builds an Open to send, always at the current protocol
// version.
func NewOpen(myAS bgp.ASN, holdTime uint16, id bgp.Identifier) Open {
	return Open{
		Version:    bgp.CurrentVersion,
		MyAS:       myAS,
		HoldTime:   holdTime,
		Identifier: id,
	}
}

// Type implements Message.
func (o Open) Type() bgp.Type { return bgp.OPEN }

// Encode implements Message.
func (o Open) Encode() []byte {
	length := uint16(bgp.HeaderLength + 10)
	buf := encodeHeader(length, bgp.OPEN)

	body := make([]byte, 10)
	body[0] = byte(o.Version)
	binary.BigEndian.PutUint16(body[1:3], uint16(o.MyAS))
	binary.BigEndian.PutUint16(body[3:5], o.HoldTime)
	binary.BigEndian.PutUint32(body[5:9], uint32(o.Identifier))
	body[9] = 0 // opt_param_len: always zero, no optional parameters emitted

	return append(buf, body...)
}

func decodeOpen(body []byte) (Message, error) {
	if len(body) < 10 {
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode OPEN")
	}
	buf := bytes.NewBuffer(body)
	o := Open{
		Version:    bgp.Version(stream.ReadByte(buf)),
		MyAS:       bgp.ASN(stream.ReadUint16(buf)),
		HoldTime:   stream.ReadUint16(buf),
		Identifier: bgp.Identifier(stream.ReadUint32(buf)),
	}
	optParamLen := stream.ReadByte(buf)
	if optParamLen != 0 {
		return nil, errors.Wrap(
			bgp.NewOpenError(bgp.SubcodeUnsupportedOptionalParameter, nil),
			"message: decode OPEN optional parameters",
		)
	}
	if buf.Len() != 0 {
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode OPEN trailing bytes")
	}
	return o, nil
}

// ValidateConfig describes the locally-configured values an incoming
// OPEN is checked against, matching the OpenSent validation spec.md
// §4.3 assigns to the FSM.
type ValidateConfig struct {
	LocalIdentifier  bgp.Identifier
	ExpectedRemoteAS bgp.ASN // 0 means "any remote AS is accepted"
}

// Validate checks a received OPEN against the local configuration,
// implementing the OPEN Message Error Handling rules of RFC 4271
// §6.2. It returns the *bgp.ProtocolError to send as a NOTIFICATION,
// or nil if the OPEN is acceptable.
func (o Open) Validate(cfg ValidateConfig) *bgp.ProtocolError {
	if o.Version != bgp.CurrentVersion {
		data := []byte{0, byte(bgp.CurrentVersion)}
		return bgp.NewOpenError(bgp.SubcodeUnsupportedVersionNumber, data)
	}
	if cfg.ExpectedRemoteAS != 0 && o.MyAS != cfg.ExpectedRemoteAS {
		return bgp.NewOpenError(bgp.SubcodeBadPeerAS, nil)
	}
	if o.HoldTime != 0 && o.HoldTime < 3 {
		return bgp.NewOpenError(bgp.SubcodeUnacceptableHoldTime, nil)
	}
	if o.Identifier == cfg.LocalIdentifier || o.Identifier == 0 {
		return bgp.NewOpenError(bgp.SubcodeBadBGPIdentifier, nil)
	}
	return nil
}

// NegotiatedHoldTime returns min(local, remote), the value the FSM
// uses as its Hold Time once OPEN has been exchanged (RFC 4271 §4.2).
func NegotiatedHoldTime(local, remote uint16) uint16 {
	if local < remote {
		return local
	}
	return remote
}
