package message

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/stream"
)

// Prefix is a variable-length IP address prefix as it appears in the
// WITHDRAWN ROUTES and NLRI fields of an UPDATE message (RFC 4271
// §4.3): a bit length followed by the minimum number of octets needed
// to hold that many bits.
//
// Octets is kept exactly as received, trailing pad bits included,
// rather than re-derived from a parsed net.IPNet: RFC 4271 leaves the
// pad bits' value unspecified, and this decoder never discards bytes
// it was handed.
type Prefix struct {
	Length byte // bits
	Octets []byte
}

func prefixOctetCount(bits byte) int {
	return (int(bits) + 7) / 8
}

func encodePrefix(p Prefix) []byte {
	buf := make([]byte, 1+len(p.Octets))
	buf[0] = p.Length
	copy(buf[1:], p.Octets)
	return buf
}

func decodePrefix(buf *bytes.Buffer) (Prefix, error) {
	if buf.Len() < 1 {
		return Prefix{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode prefix")
	}
	length := stream.ReadByte(buf)
	if length > 32 {
		// spec.md §4.1 pins this specific case to MalformedAttributeList
		// rather than RFC 4271's more specific InvalidNetworkField.
		return Prefix{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode prefix length")
	}
	n := prefixOctetCount(length)
	if buf.Len() < n {
		return Prefix{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode prefix octets")
	}
	return Prefix{Length: length, Octets: stream.ReadBytes(n, buf)}, nil
}

// decodePrefixes reads <length, prefix> tuples out of raw until every
// byte has been consumed. The UPDATE decoder hands it exactly the
// withdrawn-routes or NLRI slice, whose length is already known from
// the surrounding length fields (RFC 4271 §4.3's NLRI length
// derivation), so running to exhaustion is the correct stopping rule.
func decodePrefixes(raw []byte) ([]Prefix, error) {
	buf := bytes.NewBuffer(raw)
	var prefixes []Prefix
	for buf.Len() > 0 {
		p, err := decodePrefix(buf)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}
