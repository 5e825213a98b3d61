// Package speaker owns the listening socket for a BGP router with
// zero or more configured peers, and dispatches each accepted
// connection to the peer whose remote address it matches — the same
// job transitorykris-kbgp's Speaker.handleConnection does, restated
// around this module's peer.Peer/fsm.State types instead of a single
// monolithic struct with an undefined FSM dependency.
package speaker

import (
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/message"
	"github.com/routeware/bgpd/network"
	"github.com/routeware/bgpd/peer"
	"github.com/routeware/bgpd/rib"
)

// Config configures a Speaker: its own AS/identifier and the address
// to listen on.
type Config struct {
	LocalAS         bgp.ASN
	LocalIdentifier bgp.Identifier
	ListenAddr      string // empty means "0.0.0.0:179"
}

// Speaker accepts inbound BGP sessions and dispatches them to a
// statically configured set of peers.
type Speaker struct {
	cfg      Config
	rib      *rib.RIB
	log      zerolog.Logger
	listener net.Listener
	peers    []*peer.Peer
}

// New creates a Speaker. Call Listen to start accepting connections.
func New(cfg Config, log zerolog.Logger) *Speaker {
	return &Speaker{
		cfg: cfg,
		rib: rib.New(),
		log: log,
	}
}

// Peer registers a statically configured peer and starts its FSM.
func (s *Speaker) Peer(pc peer.Config) *peer.Peer {
	pc.FSM.LocalAS = s.cfg.LocalAS
	pc.FSM.LocalIdentifier = s.cfg.LocalIdentifier
	pc.FSM.ExpectedRemoteAS = pc.RemoteAS
	p := peer.New(pc, s.rib, s.log)
	s.peers = append(s.peers, p)
	p.Start()
	return p
}

// Peers returns every configured peer.
func (s *Speaker) Peers() []*peer.Peer {
	return s.peers
}

// Listen opens the listening socket and accepts connections until
// Close is called. It blocks the calling goroutine.
func (s *Speaker) Listen() error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = net.JoinHostPort("0.0.0.0", "179")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "speaker: listen")
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "speaker: accept")
		}
		go s.handleConnection(conn)
	}
}

// Close stops accepting new connections. Already-attached peer
// sessions are unaffected.
func (s *Speaker) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConnection matches an accepted connection's remote address
// against the configured peer table and attaches it, the same
// dispatch transitorykris-kbgp's Speaker.handleConnection does.
// Matching here is address-only since the remote AS isn't known until
// its OPEN arrives; message.Open.Validate (driven by the FSM's
// OpenSent transition) is what rejects a peer presenting the wrong AS.
func (s *Speaker) handleConnection(conn net.Conn) {
	host, _ := network.ParseAddr(conn.RemoteAddr())
	for _, p := range s.peers {
		if peerHost(p) == host {
			p.AttachConn(conn)
			return
		}
	}
	s.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("no matching peer configured, rejecting connection")
	notif := message.NewNotification(bgp.NewCeaseError())
	if _, err := conn.Write(notif.Encode()); err != nil {
		s.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("write of rejection NOTIFICATION failed")
	}
	conn.Close()
}

// peerHost strips an optional ":port" suffix from a configured peer's
// RemoteAddr so it compares directly against network.ParseAddr's host
// half.
func peerHost(p *peer.Peer) string {
	addr := p.RemoteAddr()
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
