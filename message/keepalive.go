package message

import (
	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
)

// BGP does not use any TCP-based keep-alive mechanism to determine if
// peers are reachable. Instead, KEEPALIVE messages are exchanged
// between peers often enough not to cause the Hold Timer to expire. A
// Keepalive consists of only the message header: 19 octets, no body.
type Keepalive struct{}

// NewKeepalive returns the single KEEPALIVE value; there is nothing to
// configure since it carries no body.
func NewKeepalive() Keepalive {
	return Keepalive{}
}

// Type implements Message.
func (k Keepalive) Type() bgp.Type { return bgp.KEEPALIVE }

// Encode implements Message.
func (k Keepalive) Encode() []byte {
	return encodeHeader(bgp.HeaderLength, bgp.KEEPALIVE)
}

func decodeKeepalive(body []byte) (Message, error) {
	if len(body) != 0 {
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode KEEPALIVE")
	}
	return Keepalive{}, nil
}
