package message

import (
	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
)

// Message is implemented by the four BGP message bodies. Encode
// produces the full wire form (header included); Type identifies which
// of the four bodies it is.
type Message interface {
	Type() bgp.Type
	Encode() []byte
}

// Decode consumes exactly the declared-length prefix of buf and
// returns the typed message, or bgp.ErrNeedMore if buf is too short,
// or a wrapped *bgp.ProtocolError describing the framing/validation
// failure. Trailing bytes beyond the declared length are ignored by
// Decode itself (the caller, typically a stream.Framer, is
// responsible for not handing Decode more than one frame at a time).
func Decode(buf []byte) (Message, error) {
	length, typ, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	body := buf[bgp.HeaderLength:length]
	switch typ {
	case bgp.OPEN:
		return decodeOpen(body)
	case bgp.UPDATE:
		return decodeUpdate(body, length)
	case bgp.NOTIFICATION:
		return decodeNotification(body)
	case bgp.KEEPALIVE:
		return decodeKeepalive(body)
	default:
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageType), "message: decode")
	}
}

// Encode is a convenience wrapper equivalent to calling m.Encode().
func Encode(m Message) []byte {
	return m.Encode()
}
