package message

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/stream"
)

// UPDATE messages advertise feasible routes and withdraw unfeasible
// ones. A single UPDATE can do either, both, or neither (a pure
// KEEPALIVE-equivalent with nothing to say is never sent, but an
// UPDATE with empty withdrawn routes and empty NLRI is well-formed).
type Update struct {
	WithdrawnRoutes []Prefix
	PathAttributes  []Attribute
	NLRI            []Prefix
}

// Type implements Message.
func (u Update) Type() bgp.Type { return bgp.UPDATE }

// Encode implements Message.
func (u Update) Encode() []byte {
	var withdrawn bytes.Buffer
	for _, p := range u.WithdrawnRoutes {
		withdrawn.Write(encodePrefix(p))
	}
	var attrs bytes.Buffer
	for _, a := range u.PathAttributes {
		attrs.Write(a.encode())
	}
	var nlri bytes.Buffer
	for _, p := range u.NLRI {
		nlri.Write(encodePrefix(p))
	}

	length := uint16(bgp.HeaderLength + 2 + withdrawn.Len() + 2 + attrs.Len() + nlri.Len())
	buf := encodeHeader(length, bgp.UPDATE)

	wl := make([]byte, 2)
	binary.BigEndian.PutUint16(wl, uint16(withdrawn.Len()))
	buf = append(buf, wl...)
	buf = append(buf, withdrawn.Bytes()...)

	al := make([]byte, 2)
	binary.BigEndian.PutUint16(al, uint16(attrs.Len()))
	buf = append(buf, al...)
	buf = append(buf, attrs.Bytes()...)

	buf = append(buf, nlri.Bytes()...)
	return buf
}

// decodeUpdate implements the three-segment exact-length decode
// algorithm of RFC 4271 §4.3: the Withdrawn Routes Length and Total
// Path Attribute Length fields each bound an exactly-sized segment,
// and whatever remains after both is the NLRI — its length is never
// encoded explicitly.
func decodeUpdate(body []byte, _ uint16) (Message, error) {
	buf := bytes.NewBuffer(body)

	if buf.Len() < 2 {
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode UPDATE withdrawn length")
	}
	withdrawnLen := int(stream.ReadUint16(buf))
	if buf.Len() < withdrawnLen {
		return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode UPDATE withdrawn routes")
	}
	withdrawn, err := decodePrefixes(stream.ReadBytes(withdrawnLen, buf))
	if err != nil {
		return nil, err
	}

	if buf.Len() < 2 {
		return nil, errors.Wrap(bgp.NewFramingError(bgp.SubcodeBadMessageLength), "message: decode UPDATE attribute length")
	}
	attrLen := int(stream.ReadUint16(buf))
	if buf.Len() < attrLen {
		return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode UPDATE path attributes")
	}
	attrs, err := decodeAttributes(stream.ReadBytes(attrLen, buf))
	if err != nil {
		return nil, err
	}

	nlri, err := decodePrefixes(buf.Bytes())
	if err != nil {
		return nil, err
	}

	return Update{WithdrawnRoutes: withdrawn, PathAttributes: attrs, NLRI: nlri}, nil
}
