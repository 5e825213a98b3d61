// Package peer owns the transport side of a single BGP session: one
// net.Conn, the byte-level Framer, and the fsm.State the Peer drives.
// It is the concurrency boundary spec.md §5 describes: a reader
// goroutine and a timer goroutine both push events into a single
// serialized inbox, and one run-loop goroutine drains it, calls
// fsm.Step, and executes the returned Actions. This is the same three-
// goroutine shape as the teacher's fsm.dial/fsm.reader/fsm.sendEvent
// split, restated as the explicit event/action boundary spec.md §9's
// REDESIGN FLAG calls for.
package peer

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/fsm"
	"github.com/routeware/bgpd/message"
	"github.com/routeware/bgpd/queue"
	"github.com/routeware/bgpd/rib"
	"github.com/routeware/bgpd/stream"
	"github.com/routeware/bgpd/timer"
)

// Config describes a statically configured peer: the FSM parameters
// plus the remote address a Speaker dials out to or matches an
// inbound connection against.
type Config struct {
	FSM        fsm.Config
	RemoteAddr string
	RemoteAS   bgp.ASN
}

// event is the single type pushed through the Inbox; reader and timer
// goroutines each produce it, the run loop is the only consumer.
type event struct {
	kind    bgp.Event
	payload any
}

// Peer runs one BGP session end to end: dialing or accepting the TCP
// connection, framing and decoding inbound bytes, driving fsm.Step,
// and executing its Actions.
type Peer struct {
	cfg Config
	rib *rib.RIB
	log zerolog.Logger

	inbox  *queue.Inbox
	framer *stream.Framer

	connectRetryTimer *timer.Timer
	holdTimer         *timer.Timer
	keepaliveTimer    *timer.Timer

	mu    sync.Mutex
	state fsm.State
	conn  net.Conn
}

// New creates a Peer in Idle. Call Start to begin running it.
func New(cfg Config, r *rib.RIB, log zerolog.Logger) *Peer {
	return &Peer{
		cfg:    cfg,
		rib:    r,
		log:    log.With().Str("peer", cfg.RemoteAddr).Logger(),
		inbox:  queue.NewInbox(16),
		framer: stream.NewFramer(),
		state:  fsm.New(cfg.FSM),
	}
}

// Start drives the FSM from Idle via ManualStart and runs the event
// loop until the Inbox is closed by Stop.
func (p *Peer) Start() {
	go p.run()
	p.inbox.Push(event{kind: bgp.ManualStart})
}

// Stop injects ManualStop and tears down the run loop once it has
// processed it.
func (p *Peer) Stop() {
	p.inbox.Push(event{kind: bgp.ManualStop})
	p.inbox.Close()
}

// AttachConn hands the Peer a connection — the outcome of either this
// Peer dialing out or a Speaker matching an inbound Accept to this
// peer's configuration — and starts the reader goroutine over it.
func (p *Peer) AttachConn(conn net.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	go p.readLoop(conn)
	p.inbox.Push(event{kind: bgp.TcpConnectionConfirmed})
}

func (p *Peer) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			p.framer.Push(buf[:n])
			p.drainFrames()
		}
		if err != nil {
			p.inbox.Push(event{kind: bgp.TcpConnectionFails})
			return
		}
	}
}

func (p *Peer) drainFrames() {
	for {
		frame, err := p.framer.Next()
		if errors.Cause(err) == bgp.ErrNeedMore {
			return
		}
		if err != nil {
			if pe, ok := bgp.AsProtocolError(err); ok {
				p.inbox.Push(event{kind: bgp.BgpHeaderErr, payload: pe})
			}
			return
		}
		msg, decErr := message.Decode(frame)
		if decErr != nil {
			if pe, ok := bgp.AsProtocolError(decErr); ok {
				p.inbox.Push(event{kind: classifyDecodeError(pe), payload: pe})
			}
			continue
		}
		p.inbox.Push(p.toEvent(msg))
	}
}

func classifyDecodeError(pe *bgp.ProtocolError) bgp.Event {
	switch pe.Class {
	case bgp.ClassOpen:
		return bgp.BgpOpenMsgErr
	case bgp.ClassUpdate:
		return bgp.BgpUpdateMsgErr
	default:
		return bgp.BgpHeaderErr
	}
}

func (p *Peer) toEvent(msg message.Message) event {
	switch m := msg.(type) {
	case message.Open:
		return event{kind: bgp.BgpOpen, payload: m}
	case message.Update:
		return event{kind: bgp.BgpUpdate, payload: m}
	case message.Keepalive:
		return event{kind: bgp.BgpKeepalive}
	case message.Notification:
		return event{kind: bgp.BgpNotification, payload: m}
	default:
		return event{kind: bgp.BgpHeaderErr}
	}
}

func (p *Peer) run() {
	for raw := range p.inbox.Events() {
		ev := raw.(event)
		p.mu.Lock()
		cur := p.state
		p.mu.Unlock()

		next, actions := fsm.Step(cur, ev.kind, ev.payload)

		p.mu.Lock()
		p.state = next
		p.mu.Unlock()

		for _, a := range actions {
			p.apply(a)
		}
	}
}

func (p *Peer) apply(a fsm.Action) {
	switch a.Kind {
	case fsm.ActionSend:
		p.write(a.Send)
	case fsm.ActionDialOut:
		go p.dial()
	case fsm.ActionListenPassive:
		// Accepting the inbound connection is the Speaker's job; a
		// passively-configured peer just waits for AttachConn.
	case fsm.ActionClose:
		p.closeConn()
	case fsm.ActionArmHold:
		p.arm(&p.holdTimer, a.ArmHold, bgp.HoldTimerExpires)
	case fsm.ActionArmKeepalive:
		p.arm(&p.keepaliveTimer, a.ArmKeepalive, bgp.KeepaliveTimerExpires)
	case fsm.ActionArmConnectRetry:
		p.arm(&p.connectRetryTimer, a.ArmConnect, bgp.ConnectRetryTimerExpires)
	case fsm.ActionDeliverUpdate:
		p.rib.OnUpdate(p.cfg.RemoteAddr, a.Update)
	}
}

// arm (re)arms one of the three named timers to fire ev into the
// Inbox, or stops it when d is zero (spec.md §4.3: a zero negotiated
// Hold Time disables the Hold and Keepalive timers entirely).
func (p *Peer) arm(slot **timer.Timer, d time.Duration, ev bgp.Event) {
	if d == 0 {
		if *slot != nil {
			(*slot).Stop()
		}
		return
	}
	if *slot == nil {
		*slot = timer.New(d, func() { p.inbox.Push(event{kind: ev}) })
		return
	}
	(*slot).Reset(d)
}

func (p *Peer) write(m message.Message) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(m.Encode()); err != nil {
		p.log.Warn().Err(err).Str("type", m.Type().String()).Msg("write failed")
	}
}

func (p *Peer) dial() {
	conn, err := net.Dial("tcp", p.cfg.RemoteAddr)
	if err != nil {
		p.log.Debug().Err(err).Msg("dial failed, awaiting ConnectRetryTimerExpires")
		return
	}
	p.AttachConn(conn)
}

func (p *Peer) closeConn() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	p.rib.Clear(p.cfg.RemoteAddr)
}

// State returns a snapshot of the Peer's current FSM state.
func (p *Peer) State() fsm.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RemoteAddr returns the address this peer was configured with, the
// value a Speaker matches an accepted connection's remote address
// against.
func (p *Peer) RemoteAddr() string {
	return p.cfg.RemoteAddr
}
