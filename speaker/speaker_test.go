package speaker

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/fsm"
	"github.com/routeware/bgpd/peer"
)

func TestNewHasNoPeersUntilConfigured(t *testing.T) {
	sp := New(Config{LocalAS: 65000, LocalIdentifier: 0x0a000001}, zerolog.Nop())
	require.Empty(t, sp.Peers())
}

func TestPeerFillsInLocalConfigFromSpeaker(t *testing.T) {
	sp := New(Config{LocalAS: 65000, LocalIdentifier: 0x0a000001}, zerolog.Nop())
	p := sp.Peer(peer.Config{
		FSM:        fsm.Config{HoldTime: 90, ConnectRetryTime: time.Minute},
		RemoteAddr: "203.0.113.1:179",
		RemoteAS:   65001,
	})

	require.Len(t, sp.Peers(), 1)
	require.EqualValues(t, 65000, p.State().Config.LocalAS)
	require.EqualValues(t, 0x0a000001, p.State().Config.LocalIdentifier)
	require.EqualValues(t, 65001, p.State().Config.ExpectedRemoteAS)
}

// TestListenDispatchesToMatchingPeer checks the address-match dispatch
// spec.md §4.5 assigns to the Speaker, grounded on
// transitorykris-kbgp's Speaker.handleConnection: an inbound
// connection from a configured peer's address is handed to that
// peer's FSM instead of being rejected.
func TestListenDispatchesToMatchingPeer(t *testing.T) {
	sp := New(Config{LocalAS: 65000, LocalIdentifier: 0x0a000001, ListenAddr: "127.0.0.1:0"}, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	sp.listener = ln
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		sp.handleConnection(conn)
	}()

	p := sp.Peer(peer.Config{
		FSM:        fsm.Config{HoldTime: 9, ConnectRetryTime: time.Minute, PassiveTCPEstablishment: true},
		RemoteAddr: ln.Addr().(*net.TCPAddr).IP.String(),
		RemoteAS:   65001,
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// PassiveTCPEstablishment takes the peer straight to Active on
	// ManualStart; reaching OpenSent only happens once the dispatcher
	// has matched the inbound connection and called AttachConn.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.State().Phase != bgp.OpenSent {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, bgp.OpenSent, p.State().Phase)

	ln.Close()
}
