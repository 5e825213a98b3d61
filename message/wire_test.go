package message

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/routeware/bgpd/bgp"
)

// hexBytes turns a space-separated hex dump (as used throughout
// spec.md's scenario list) into a byte slice, expanding "FF16" shorthand
// for 16 octets of 0xFF.
func hexBytes(t *testing.T, dump string) []byte {
	t.Helper()
	dump = strings.ReplaceAll(dump, "FF16", strings.Repeat("FF", 16))
	dump = strings.ReplaceAll(dump, " ", "")
	b, err := hex.DecodeString(dump)
	require.NoError(t, err)
	return b
}

// S1 KEEPALIVE round-trip. encode(KEEPALIVE) = FF16 0013 04. Length = 19.
func TestS1KeepaliveEncode(t *testing.T) {
	want := hexBytes(t, "FF16 0013 04")
	require.Equal(t, want, NewKeepalive().Encode())
	require.Len(t, want, 19)

	decoded, err := Decode(want)
	require.NoError(t, err)
	require.Equal(t, Keepalive{}, decoded)
}

// S2 OPEN encode. my_as=65000, hold_time=3, router_id=10.0.0.1, no capabilities.
func TestS2OpenEncode(t *testing.T) {
	o := NewOpen(65000, 3, 0x0A000001)
	want := hexBytes(t, "FF16 001D 01 04 FDE8 0003 0A000001 00")
	require.Equal(t, want, o.Encode())
	require.Len(t, want, 29)

	decoded, err := Decode(want)
	require.NoError(t, err)
	require.Equal(t, o, decoded)
}

// S3 NOTIFICATION (HeaderError/BadMessageType) encode.
func TestS3NotificationEncode(t *testing.T) {
	n := NewNotification(bgp.NewFramingError(bgp.SubcodeBadMessageType))
	want := hexBytes(t, "FF16 0015 03 01 03")
	require.Equal(t, want, n.Encode())
	require.Len(t, want, 21)

	decoded, err := Decode(want)
	require.NoError(t, err)
	require.Equal(t, n, decoded)
}

// S4 UPDATE with two withdrawn prefixes, no attributes, no NLRI.
func TestS4UpdateWithdrawnOnly(t *testing.T) {
	u := Update{
		WithdrawnRoutes: []Prefix{
			{Length: 23, Octets: []byte{0x0A, 0x00, 0x01}},
			{Length: 15, Octets: []byte{0xB4, 0x80}},
		},
	}
	want := hexBytes(t, "FF16 001E 02 0007 170A00010FB480 0000")
	require.Equal(t, want, u.Encode())
	require.Len(t, want, 30)

	decoded, err := Decode(want)
	require.NoError(t, err)
	got := decoded.(Update)
	require.Equal(t, u.WithdrawnRoutes, got.WithdrawnRoutes)
	require.Empty(t, got.PathAttributes)
	require.Empty(t, got.NLRI)
}

// S5 UPDATE with a full path-attribute set; checks only the declared
// lengths spec.md pins down, since the attribute encoding order isn't
// separately specified beyond "path-attr blob length must equal ...".
func TestS5UpdateFullAttributeSet(t *testing.T) {
	u := Update{
		PathAttributes: []Attribute{
			{Flags: FlagTransitive, Code: AttrOrigin, Value: OriginIGP},
			{Flags: FlagTransitive, Code: AttrASPath, Value: ASPath{
				{Type: ASSequence, ASNs: []bgp.ASN{123, 2345}},
			}},
			{Flags: FlagTransitive, Code: AttrNextHop, Value: NextHop([]byte{10, 16, 23, 19})},
			{Flags: FlagOptional, Code: AttrMultiExitDisc, Value: MultiExitDisc(200)},
			{Flags: FlagTransitive, Code: AttrLocalPref, Value: LocalPref(50)},
			{Flags: FlagTransitive, Code: AttrAtomicAggregate, Value: AtomicAggregate{}},
			{Flags: FlagOptional | FlagTransitive, Code: AttrAggregator, Value: Aggregator{AS: 65100, Identifier: 0x1E000101}},
		},
	}
	encoded := u.Encode()
	require.Len(t, encoded, 69)
	require.Equal(t, uint16(0x0045), uint16(len(encoded)))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	got := decoded.(Update)
	require.Len(t, got.PathAttributes, 7)
	require.Equal(t, OriginIGP, got.PathAttributes[0].Value)
}

func TestPropertyEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		NewKeepalive(),
		NewOpen(65000, 90, 0x0A000001),
		NewNotification(bgp.NewHoldTimerExpired()),
		Update{NLRI: []Prefix{{Length: 32, Octets: []byte{1, 2, 3, 4}}}},
	}
	for _, m := range messages {
		encoded := m.Encode()
		require.GreaterOrEqual(t, len(encoded), bgp.HeaderLength)
		require.LessOrEqual(t, len(encoded), bgp.MaxMessageLength)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, m, decoded)
	}
}

func TestEncodeLengthMatchesDeclaredLength(t *testing.T) {
	m := NewOpen(1, 2, 3)
	encoded := m.Encode()
	declared := int(encoded[bgp.MarkerLength])<<8 | int(encoded[bgp.MarkerLength+1])
	require.Equal(t, len(encoded), declared)
}
