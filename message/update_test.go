package message

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/routeware/bgpd/bgp"
)

func TestFlagsOptionalWellKnown(t *testing.T) {
	var f Flags
	require.True(t, f.WellKnown())
	require.False(t, f.Optional())

	f.SetOptional()
	require.True(t, f.Optional())
	require.False(t, f.WellKnown())

	f.SetWellKnown()
	require.True(t, f.WellKnown())
}

func TestFlagsTransitive(t *testing.T) {
	var f Flags
	require.True(t, f.NonTransitive())

	f.SetTransitive()
	require.True(t, f.Transitive())
	require.False(t, f.NonTransitive())

	f.SetNonTransitive()
	require.True(t, f.NonTransitive())
}

func TestFlagsPartial(t *testing.T) {
	var f Flags
	require.True(t, f.Complete())

	f.SetPartial()
	require.True(t, f.Partial())
	require.False(t, f.Complete())
}

func TestFlagsExtendedLength(t *testing.T) {
	var f Flags
	require.False(t, f.ExtendedLength())

	f.SetExtendedLength()
	require.True(t, f.ExtendedLength())

	f.SetNotExtendedLength()
	require.False(t, f.ExtendedLength())
}

func TestFlagsIndependentBits(t *testing.T) {
	var f Flags
	f.SetOptional()
	f.SetTransitive()
	f.SetPartial()
	f.SetNotExtendedLength()

	f.SetComplete()
	require.True(t, f.Optional())
	require.True(t, f.Transitive())
	require.False(t, f.ExtendedLength())
}

func TestOriginAttributeRoundTrip(t *testing.T) {
	attr := Attribute{Flags: FlagTransitive, Code: AttrOrigin, Value: OriginIGP}
	encoded := attr.encode()

	attrs, err := decodeAttributes(encoded)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, AttrOrigin, attrs[0].Code)
	require.Equal(t, OriginIGP, attrs[0].Value)
}

func TestASPathRoundTrip(t *testing.T) {
	path := ASPath{
		{Type: ASSequence, ASNs: []bgp.ASN{65001, 65002}},
		{Type: ASSet, ASNs: []bgp.ASN{65003}},
	}
	attr := Attribute{Flags: FlagTransitive, Code: AttrASPath, Value: path}
	attrs, err := decodeAttributes(attr.encode())
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, path, attrs[0].Value)
}

func TestNextHopRoundTrip(t *testing.T) {
	nh := NextHop(net.IPv4(10, 0, 0, 1).To4())
	attr := Attribute{Flags: FlagTransitive, Code: AttrNextHop, Value: nh}
	attrs, err := decodeAttributes(attr.encode())
	require.NoError(t, err)
	require.Equal(t, []byte(nh), []byte(attrs[0].Value.(NextHop)))
}

func TestUnrecognizedWellKnownAttributeRejected(t *testing.T) {
	raw := []byte{byte(FlagTransitive), 200, 1, 0xff}
	_, err := decodeAttributes(raw)
	require.Error(t, err)
	pe, ok := bgp.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, bgp.SubcodeUnrecognizedWellKnownAttribute, pe.Subcode)
}

func TestUnrecognizedOptionalAttributeKeptOpaque(t *testing.T) {
	raw := []byte{byte(FlagTransitive | FlagOptional), 200, 1, 0xff}
	attrs, err := decodeAttributes(raw)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, Opaque{0xff}, attrs[0].Value)
}

func TestUpdateEncodeDecodeRoundTrip(t *testing.T) {
	u := Update{
		WithdrawnRoutes: []Prefix{{Length: 24, Octets: []byte{10, 0, 0}}},
		PathAttributes: []Attribute{
			{Flags: FlagTransitive, Code: AttrOrigin, Value: OriginIGP},
			{Flags: FlagTransitive, Code: AttrASPath, Value: ASPath{{Type: ASSequence, ASNs: []bgp.ASN{65001}}}},
			{Flags: FlagTransitive, Code: AttrNextHop, Value: NextHop(net.IPv4(192, 0, 2, 1).To4())},
		},
		NLRI: []Prefix{{Length: 16, Octets: []byte{172, 16}}},
	}
	encoded := u.Encode()

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	got, ok := decoded.(Update)
	require.True(t, ok)
	require.Equal(t, u.WithdrawnRoutes, got.WithdrawnRoutes)
	require.Equal(t, u.NLRI, got.NLRI)
	require.Len(t, got.PathAttributes, 3)
}

func TestUpdateEmptyIsWellFormed(t *testing.T) {
	u := Update{}
	decoded, err := Decode(u.Encode())
	require.NoError(t, err)
	got := decoded.(Update)
	require.Empty(t, got.WithdrawnRoutes)
	require.Empty(t, got.PathAttributes)
	require.Empty(t, got.NLRI)
}
