package peer

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/fsm"
	"github.com/routeware/bgpd/rib"
)

// waitForPhase polls p's FSM phase until it reaches want or the
// deadline passes, the same style as the teacher's timer_test.go uses
// to synchronize on a background goroutine's effect.
func waitForPhase(t *testing.T, p *Peer, want bgp.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.State().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("peer never reached phase %s, stuck in %s", want, p.State().Phase)
}

// TestTwoPeersReachEstablished drives two Peer runtimes over a
// net.Pipe and checks they both complete the S6 handshake scenario
// from spec.md: ManualStart, OPEN exchange, KEEPALIVE exchange,
// Established on both ends with the negotiated hold time and peer
// type each expects.
func TestTwoPeersReachEstablished(t *testing.T) {
	connA, connB := net.Pipe()

	cfgA := Config{
		FSM: fsm.Config{
			LocalAS:                 65000,
			LocalIdentifier:         0x0a000001,
			ExpectedRemoteAS:        65001,
			HoldTime:                9,
			ConnectRetryTime:        time.Second,
			PassiveTCPEstablishment: true,
		},
		RemoteAddr: "198.51.100.2",
		RemoteAS:   65001,
	}
	cfgB := Config{
		FSM: fsm.Config{
			LocalAS:                 65001,
			LocalIdentifier:         0x0a000002,
			ExpectedRemoteAS:        65000,
			HoldTime:                12,
			ConnectRetryTime:        time.Second,
			PassiveTCPEstablishment: true,
		},
		RemoteAddr: "198.51.100.1",
		RemoteAS:   65000,
	}

	log := zerolog.Nop()
	peerA := New(cfgA, rib.New(), log)
	peerB := New(cfgB, rib.New(), log)

	peerA.Start()
	peerB.Start()
	peerA.AttachConn(connA)
	peerB.AttachConn(connB)

	waitForPhase(t, peerA, bgp.Established)
	waitForPhase(t, peerB, bgp.Established)

	require.EqualValues(t, 9, peerA.State().NegotiatedHoldTime)
	require.EqualValues(t, 9, peerB.State().NegotiatedHoldTime)
	require.Equal(t, bgp.PeerExternal, peerA.State().PeerType)
	require.Equal(t, bgp.PeerExternal, peerB.State().PeerType)

	peerA.Stop()
	peerB.Stop()
}

// TestManualStopClosesConnection exercises ManualStop as the
// cancellation primitive spec.md §5 describes: it must close the
// transport so the remote side observes EOF.
func TestManualStopClosesConnection(t *testing.T) {
	connA, connB := net.Pipe()

	cfg := Config{
		FSM: fsm.Config{
			LocalAS:                 65000,
			LocalIdentifier:         0x0a000001,
			HoldTime:                9,
			ConnectRetryTime:        time.Second,
			PassiveTCPEstablishment: true,
		},
		RemoteAddr: "198.51.100.2",
	}
	p := New(cfg, rib.New(), zerolog.Nop())
	p.Start()
	p.AttachConn(connA)

	waitForPhase(t, p, bgp.OpenSent)
	p.Stop()

	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	for {
		_, err := connB.Read(buf)
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
	}
}
