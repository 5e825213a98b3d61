package message

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/stream"
)

// Flags is the Attribute Flags octet of a path attribute (RFC 4271
// §4.3): Optional, Transitive, Partial and Extended Length, top to
// bottom. The low four bits are unused; Attribute.encode always writes
// them as zero.
type Flags byte

const (
	FlagOptional       Flags = 1 << 7
	FlagTransitive     Flags = 1 << 6
	FlagPartial        Flags = 1 << 5
	FlagExtendedLength Flags = 1 << 4
)

func (f Flags) Optional() bool       { return f&FlagOptional != 0 }
func (f Flags) WellKnown() bool      { return !f.Optional() }
func (f Flags) Transitive() bool     { return f&FlagTransitive != 0 }
func (f Flags) NonTransitive() bool  { return !f.Transitive() }
func (f Flags) Partial() bool        { return f&FlagPartial != 0 }
func (f Flags) Complete() bool       { return !f.Partial() }
func (f Flags) ExtendedLength() bool { return f&FlagExtendedLength != 0 }

func (f *Flags) SetOptional()        { *f |= FlagOptional }
func (f *Flags) SetWellKnown()       { *f &^= FlagOptional }
func (f *Flags) SetTransitive()      { *f |= FlagTransitive }
func (f *Flags) SetNonTransitive()   { *f &^= FlagTransitive }
func (f *Flags) SetPartial()         { *f |= FlagPartial }
func (f *Flags) SetComplete()        { *f &^= FlagPartial }
func (f *Flags) SetExtendedLength()  { *f |= FlagExtendedLength }
func (f *Flags) SetNotExtendedLength() { *f &^= FlagExtendedLength }

// AttributeCode identifies the meaning of a path attribute's value
// (RFC 4271 §5). Codes outside this set are carried as Opaque.
type AttributeCode byte

const (
	AttrOrigin          AttributeCode = 1
	AttrASPath          AttributeCode = 2
	AttrNextHop         AttributeCode = 3
	AttrMultiExitDisc   AttributeCode = 4
	AttrLocalPref       AttributeCode = 5
	AttrAtomicAggregate AttributeCode = 6
	AttrAggregator      AttributeCode = 7
)

func isRecognizedCode(code AttributeCode) bool {
	switch code {
	case AttrOrigin, AttrASPath, AttrNextHop, AttrMultiExitDisc, AttrLocalPref, AttrAtomicAggregate, AttrAggregator:
		return true
	default:
		return false
	}
}

// AttributeValue is implemented by every recognized path attribute
// value type, plus Opaque for everything else.
type AttributeValue interface {
	encode() []byte
}

// Attribute is one <flags, code, value> path attribute triple carried
// in an UPDATE message's Path Attributes field.
type Attribute struct {
	Flags Flags
	Code  AttributeCode
	Value AttributeValue
}

func (a Attribute) encode() []byte {
	value := a.Value.encode()
	flags := a.Flags &^ 0x0f
	var lengthBytes []byte
	if len(value) > 255 {
		flags.SetExtendedLength()
		lengthBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(lengthBytes, uint16(len(value)))
	} else {
		flags.SetNotExtendedLength()
		lengthBytes = []byte{byte(len(value))}
	}
	buf := []byte{byte(flags), byte(a.Code)}
	buf = append(buf, lengthBytes...)
	buf = append(buf, value...)
	return buf
}

func decodeAttributes(raw []byte) ([]Attribute, error) {
	buf := bytes.NewBuffer(raw)
	var attrs []Attribute
	for buf.Len() > 0 {
		a, err := decodeAttribute(buf)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func decodeAttribute(buf *bytes.Buffer) (Attribute, error) {
	if buf.Len() < 2 {
		return Attribute{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedAttributeList), "message: decode attribute header")
	}
	flags := Flags(stream.ReadByte(buf))
	code := AttributeCode(stream.ReadByte(buf))

	var length int
	if flags.ExtendedLength() {
		if buf.Len() < 2 {
			return Attribute{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode attribute length")
		}
		length = int(stream.ReadUint16(buf))
	} else {
		if buf.Len() < 1 {
			return Attribute{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode attribute length")
		}
		length = int(stream.ReadByte(buf))
	}
	if buf.Len() < length {
		return Attribute{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode attribute value")
	}
	raw := stream.ReadBytes(length, buf)

	if !isRecognizedCode(code) {
		if !flags.Optional() {
			return Attribute{}, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeUnrecognizedWellKnownAttribute), "message: decode attribute")
		}
		return Attribute{Flags: flags, Code: code, Value: Opaque(raw)}, nil
	}

	value, err := decodeAttributeValue(code, raw)
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{Flags: flags, Code: code, Value: value}, nil
}

func decodeAttributeValue(code AttributeCode, raw []byte) (AttributeValue, error) {
	switch code {
	case AttrOrigin:
		if len(raw) != 1 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeInvalidOriginAttribute), "message: decode ORIGIN")
		}
		o := Origin(raw[0])
		if o != OriginIGP && o != OriginEGP && o != OriginIncomplete {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeInvalidOriginAttribute), "message: decode ORIGIN value")
		}
		return o, nil
	case AttrASPath:
		return decodeASPath(raw)
	case AttrNextHop:
		if len(raw) != 4 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeInvalidNextHopAttribute), "message: decode NEXT_HOP")
		}
		return NextHop(net.IPv4(raw[0], raw[1], raw[2], raw[3]).To4()), nil
	case AttrMultiExitDisc:
		if len(raw) != 4 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode MULTI_EXIT_DISC")
		}
		return MultiExitDisc(binary.BigEndian.Uint32(raw)), nil
	case AttrLocalPref:
		if len(raw) != 4 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode LOCAL_PREF")
		}
		return LocalPref(binary.BigEndian.Uint32(raw)), nil
	case AttrAtomicAggregate:
		if len(raw) != 0 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode ATOMIC_AGGREGATE")
		}
		return AtomicAggregate{}, nil
	case AttrAggregator:
		if len(raw) != 6 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeAttributeLengthError), "message: decode AGGREGATOR")
		}
		return Aggregator{
			AS:         bgp.ASN(binary.BigEndian.Uint16(raw[0:2])),
			Identifier: bgp.Identifier(binary.BigEndian.Uint32(raw[2:6])),
		}, nil
	default:
		return Opaque(raw), nil
	}
}

// Origin is a well-known mandatory attribute giving the origin of the
// path information (RFC 4271 §5.1.1).
type Origin byte

const (
	OriginIGP        Origin = 0
	OriginEGP        Origin = 1
	OriginIncomplete Origin = 2
)

func (o Origin) encode() []byte { return []byte{byte(o)} }

// ASPathSegmentType distinguishes an unordered AS_SET from an ordered
// AS_SEQUENCE within an AS_PATH attribute.
type ASPathSegmentType byte

const (
	ASSet      ASPathSegmentType = 1
	ASSequence ASPathSegmentType = 2
)

// ASPathSegment is one <type, length, value> segment of an AS_PATH.
type ASPathSegment struct {
	Type ASPathSegmentType
	ASNs []bgp.ASN
}

// ASPath is the well-known mandatory AS_PATH attribute: a sequence of
// segments recording the autonomous systems a route has traversed
// (RFC 4271 §5.1.2).
type ASPath []ASPathSegment

func (p ASPath) encode() []byte {
	var buf bytes.Buffer
	for _, seg := range p {
		buf.WriteByte(byte(seg.Type))
		buf.WriteByte(byte(len(seg.ASNs)))
		for _, as := range seg.ASNs {
			b := make([]byte, 2)
			binary.BigEndian.PutUint16(b, uint16(as))
			buf.Write(b)
		}
	}
	return buf.Bytes()
}

func decodeASPath(raw []byte) (ASPath, error) {
	buf := bytes.NewBuffer(raw)
	var path ASPath
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedASPath), "message: decode AS_PATH segment header")
		}
		segType := ASPathSegmentType(stream.ReadByte(buf))
		segLen := int(stream.ReadByte(buf))
		if segType != ASSet && segType != ASSequence {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedASPath), "message: decode AS_PATH segment type")
		}
		if buf.Len() < segLen*2 {
			return nil, errors.Wrap(bgp.NewUpdateError(bgp.SubcodeMalformedASPath), "message: decode AS_PATH segment value")
		}
		asns := make([]bgp.ASN, segLen)
		for i := range asns {
			asns[i] = bgp.ASN(stream.ReadUint16(buf))
		}
		path = append(path, ASPathSegment{Type: segType, ASNs: asns})
	}
	return path, nil
}

// NextHop is the well-known mandatory IPv4 address of the router to
// use as the next hop toward the NLRI this UPDATE carries (RFC 4271
// §5.1.3).
type NextHop net.IP

func (n NextHop) encode() []byte {
	ip := net.IP(n).To4()
	return []byte{ip[0], ip[1], ip[2], ip[3]}
}

// MultiExitDisc is the optional non-transitive MULTI_EXIT_DISC
// attribute used to discriminate among multiple entry points to a
// neighboring AS (RFC 4271 §5.1.4).
type MultiExitDisc uint32

func (m MultiExitDisc) encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(m))
	return b
}

// LocalPref is the well-known LOCAL_PREF attribute a speaker uses to
// tell its internal peers how strongly it prefers an advertised route
// (RFC 4271 §5.1.5).
type LocalPref uint32

func (l LocalPref) encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(l))
	return b
}

// AtomicAggregate is the well-known discretionary, zero-length
// attribute marking that a route is an aggregate formed by discarding
// some AS_PATH information (RFC 4271 §5.1.6).
type AtomicAggregate struct{}

func (AtomicAggregate) encode() []byte { return []byte{} }

// Aggregator is the optional transitive attribute naming the AS and
// speaker that formed an aggregate route (RFC 4271 §5.1.7).
type Aggregator struct {
	AS         bgp.ASN
	Identifier bgp.Identifier
}

func (a Aggregator) encode() []byte {
	b := make([]byte, 6)
	binary.BigEndian.PutUint16(b[0:2], uint16(a.AS))
	binary.BigEndian.PutUint32(b[2:6], uint32(a.Identifier))
	return b
}

// Opaque carries an attribute value this speaker does not recognize,
// preserved verbatim so it can be re-advertised unmodified.
type Opaque []byte

func (o Opaque) encode() []byte { return o }
