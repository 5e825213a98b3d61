// Package message implements the bit-exact BGP-4 wire codec: the fixed
// 19-octet header, the four message bodies, nested path attributes,
// and variable-length IP prefix encodings (RFC 4271 §4). Encode and
// Decode are pure functions — bytes in, typed value out and back —
// with no knowledge of the transport or the peer FSM.
package message

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
)

// decodeHeader validates and parses the fixed 19-octet header at the
// front of buf. It does not assume buf has already been through a
// stream.Framer: every rule in spec.md §4.1 is re-checked here so that
// Decode is safe to call directly on an arbitrary byte buffer.
func decodeHeader(buf []byte) (length uint16, typ bgp.Type, err error) {
	if len(buf) < bgp.HeaderLength {
		return 0, 0, bgp.ErrNeedMore
	}
	if string(buf[:bgp.MarkerLength]) != string(bgp.Marker[:]) {
		return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeConnectionNotSynchronized), "message: decode header")
	}
	length = binary.BigEndian.Uint16(buf[bgp.MarkerLength : bgp.MarkerLength+2])
	if length < bgp.HeaderLength || length > bgp.MaxMessageLength {
		return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode header")
	}
	typ = bgp.Type(buf[bgp.MarkerLength+2])
	switch typ {
	case bgp.OPEN:
		if length < bgp.MinOpenLength {
			return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode OPEN header")
		}
	case bgp.UPDATE:
		if length < bgp.MinUpdateLength {
			return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode UPDATE header")
		}
	case bgp.NOTIFICATION:
		if length < bgp.MinNotificationLength {
			return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode NOTIFICATION header")
		}
	case bgp.KEEPALIVE:
		if length != bgp.MinKeepaliveLength {
			return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode KEEPALIVE header")
		}
	default:
		return 0, 0, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageType), "message: decode header")
	}
	if len(buf) < int(length) {
		return 0, 0, bgp.ErrNeedMore
	}
	return length, typ, nil
}

// encodeHeader writes the 19-octet header for a body of the given type
// whose total on-wire length (header included) is length.
func encodeHeader(length uint16, typ bgp.Type) []byte {
	buf := make([]byte, bgp.HeaderLength)
	copy(buf, bgp.Marker[:])
	binary.BigEndian.PutUint16(buf[bgp.MarkerLength:], length)
	buf[bgp.MarkerLength+2] = byte(typ)
	return buf
}
