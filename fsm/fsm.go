// Package fsm implements the per-peer BGP state machine (RFC 4271 §8)
// as a pure transition function: Step consumes the current State and
// one Event and returns the next State plus the Actions the caller
// must perform (send a message, arm or disarm a timer, close the
// transport, hand an UPDATE to the RIB). Step never blocks, never
// touches a network connection or a clock, and has no knowledge of
// goroutines — all of that lives one layer up, in package peer. This
// replaces the teacher's `fsm.fsm` struct, whose state transitions
// were spread across direct calls to dial/send/timer methods against
// the struct as implicit shared state.
package fsm

import (
	"time"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/counter"
	"github.com/routeware/bgpd/message"
)

// Config carries the locally-configured, connection-lifetime values a
// State is built from. The optional session attributes RFC 4271 §8
// lists beyond the mandatory ones are included as boolean fields,
// defaulted off, mirroring the teacher's fsm struct field set even
// though the core transition table below only actively branches on a
// handful of them.
type Config struct {
	LocalAS         bgp.ASN
	LocalIdentifier bgp.Identifier
	// ExpectedRemoteAS constrains which remote AS is accepted in the
	// peer's OPEN; zero means any AS is accepted.
	ExpectedRemoteAS bgp.ASN
	HoldTime         uint16
	ConnectRetryTime time.Duration

	AcceptConnectionsUnconfiguredPeers bool
	DampPeerOscillations               bool
	DelayOpen                          bool
	PassiveTCPEstablishment            bool
	TrackTCPState                      bool
}

// State is the full mandatory and optional session state of one peer
// FSM instance (RFC 4271 §8). It is passed by value into Step and a
// new value is returned; callers own its lifetime.
type State struct {
	Config Config

	Phase               bgp.State
	ConnectRetryCounter *counter.Counter
	PeerType            bgp.PeerType
	NegotiatedHoldTime  uint16
	KeepaliveInterval   time.Duration
}

// New returns the Idle-state starting point for a configured peer.
func New(cfg Config) State {
	return State{Config: cfg, Phase: bgp.Idle, ConnectRetryCounter: counter.New()}
}

// Action is one side effect Step asks the caller to perform. Exactly
// one of the typed fields relevant to Kind is populated.
type Action struct {
	Kind ActionKind

	Send         message.Message
	ArmHold      time.Duration
	ArmKeepalive time.Duration
	ArmConnect   time.Duration
	Update       message.Update
}

// ActionKind discriminates the Action union.
type ActionKind int

const (
	// ActionSend writes Send.Encode() to the transport.
	ActionSend ActionKind = iota
	// ActionDialOut asks the runtime to initiate an outbound TCP connection.
	ActionDialOut
	// ActionListenPassive asks the runtime to accept a passive inbound connection.
	ActionListenPassive
	// ActionClose closes the transport.
	ActionClose
	// ActionArmHold (re)arms the Hold Timer to ArmHold, or disarms it if ArmHold == 0.
	ActionArmHold
	// ActionArmKeepalive (re)arms the Keepalive Timer to ArmKeepalive, or disarms it if 0.
	ActionArmKeepalive
	// ActionArmConnectRetry (re)arms the ConnectRetry Timer to ArmConnect.
	ActionArmConnectRetry
	// ActionDeliverUpdate hands a decoded UPDATE to the RIB collaborator.
	ActionDeliverUpdate
)

func send(m message.Message) Action { return Action{Kind: ActionSend, Send: m} }
func armHold(d time.Duration) Action {
	return Action{Kind: ActionArmHold, ArmHold: d}
}
func armKeepalive(d time.Duration) Action {
	return Action{Kind: ActionArmKeepalive, ArmKeepalive: d}
}
func armConnectRetry(d time.Duration) Action {
	return Action{Kind: ActionArmConnectRetry, ArmConnect: d}
}
func closeTransport() Action { return Action{Kind: ActionClose} }
func deliverUpdate(u message.Update) Action {
	return Action{Kind: ActionDeliverUpdate, Update: u}
}

// notification builds the ActionSend wrapping a NOTIFICATION derived
// from a protocol error, the one place a *bgp.ProtocolError becomes a
// wire message.
func notification(pe *bgp.ProtocolError) Action {
	return send(message.NewNotification(pe))
}

// fail is the shared "protocol violation" tail: emit the matching
// NOTIFICATION, close, and land in Idle, per spec.md's uniform
// failure semantics.
func fail(s State, pe *bgp.ProtocolError) (State, []Action) {
	next := s
	next.Phase = bgp.Idle
	next.PeerType = bgp.PeerUnknown
	next.NegotiatedHoldTime = 0
	return next, []Action{notification(pe), closeTransport()}
}

// idleDefault is the catch-all for an event that is not valid in the
// current state: send FSMError, close, go to Idle (spec.md §4.3's
// "defaults for unlisted events").
func idleDefault(s State) (State, []Action) {
	return fail(s, bgp.NewFSMError())
}

// Step is the single pure transition function. event must be one of
// the bgp.Event values; for BgpOpen/BgpUpdate, payload carries the
// decoded message.Message the caller already ran through message.Decode.
func Step(s State, event bgp.Event, payload any) (State, []Action) {
	// Decode-time protocol violations (bad header, bad OPEN, bad
	// UPDATE) are reported the same way in every state: NOTIFICATION
	// with the specific (code, subcode) the decoder already
	// determined, then close, then Idle. Idle itself never receives
	// these events since nothing is connected yet to decode from.
	switch event {
	case bgp.BgpHeaderErr, bgp.BgpOpenMsgErr, bgp.BgpUpdateMsgErr:
		if pe, ok := payload.(*bgp.ProtocolError); ok {
			return fail(s, pe)
		}
		return fail(s, bgp.NewFSMError())
	}

	switch s.Phase {
	case bgp.Idle:
		return stepIdle(s, event)
	case bgp.Connect:
		return stepConnect(s, event)
	case bgp.Active:
		return stepActive(s, event)
	case bgp.OpenSent:
		return stepOpenSent(s, event, payload)
	case bgp.OpenConfirm:
		return stepOpenConfirm(s, event)
	case bgp.Established:
		return stepEstablished(s, event, payload)
	default:
		return idleDefault(s)
	}
}

func stepIdle(s State, event bgp.Event) (State, []Action) {
	if event != bgp.ManualStart {
		return s, nil // Idle ignores everything but ManualStart; there is nothing to tear down.
	}
	next := s
	next.ConnectRetryCounter = counter.New()
	if next.Config.PassiveTCPEstablishment {
		next.Phase = bgp.Active
		return next, []Action{armConnectRetry(next.Config.ConnectRetryTime), {Kind: ActionListenPassive}}
	}
	next.Phase = bgp.Connect
	return next, []Action{armConnectRetry(next.Config.ConnectRetryTime), {Kind: ActionDialOut}}
}

func stepConnect(s State, event bgp.Event) (State, []Action) {
	switch event {
	case bgp.TcpConnectionConfirmed:
		return openSentOnConnect(s)
	case bgp.ConnectRetryTimerExpires:
		next := s
		next.ConnectRetryCounter.Increment()
		return next, []Action{armConnectRetry(next.Config.ConnectRetryTime), {Kind: ActionDialOut}}
	case bgp.TcpConnectionFails:
		next := s
		next.Phase = bgp.Active
		return next, nil
	case bgp.ManualStop:
		return toIdleCease(s)
	default:
		return idleDefault(s)
	}
}

func stepActive(s State, event bgp.Event) (State, []Action) {
	switch event {
	case bgp.TcpConnectionConfirmed:
		return openSentOnConnect(s)
	case bgp.ConnectRetryTimerExpires:
		next := s
		next.ConnectRetryCounter.Increment()
		actions := []Action{armConnectRetry(next.Config.ConnectRetryTime)}
		if next.Config.PassiveTCPEstablishment {
			actions = append(actions, Action{Kind: ActionListenPassive})
		} else {
			actions = append(actions, Action{Kind: ActionDialOut})
		}
		return next, actions
	case bgp.TcpConnectionFails:
		return s, nil // stays in Active, matching spec.md §4.3
	case bgp.ManualStop:
		return toIdleCease(s)
	default:
		return idleDefault(s)
	}
}

// openSentOnConnect is the Connect/Active → OpenSent transition both
// states share on TcpConnectionConfirmed.
func openSentOnConnect(s State) (State, []Action) {
	next := s
	next.Phase = bgp.OpenSent
	open := message.NewOpen(next.Config.LocalAS, next.Config.HoldTime, next.Config.LocalIdentifier)
	return next, []Action{send(open), armHold(bgp.LargeHoldTime)}
}

func toIdleCease(s State) (State, []Action) {
	next := s
	next.Phase = bgp.Idle
	return next, []Action{notification(bgp.NewCeaseError()), closeTransport()}
}

func stepOpenSent(s State, event bgp.Event, payload any) (State, []Action) {
	switch event {
	case bgp.BgpOpen:
		open, _ := payload.(message.Open)
		cfg := message.ValidateConfig{LocalIdentifier: s.Config.LocalIdentifier, ExpectedRemoteAS: s.Config.ExpectedRemoteAS}
		if pe := open.Validate(cfg); pe != nil {
			return fail(s, pe)
		}
		return openConfirmOnValidOpen(s, open)
	case bgp.HoldTimerExpires:
		return fail(s, bgp.NewHoldTimerExpired())
	case bgp.BgpNotification:
		next := s
		next.Phase = bgp.Idle
		return next, []Action{closeTransport()}
	case bgp.ManualStop:
		return toIdleCease(s)
	default:
		return idleDefault(s)
	}
}

func openConfirmOnValidOpen(s State, open message.Open) (State, []Action) {
	next := s
	negotiated := message.NegotiatedHoldTime(s.Config.HoldTime, open.HoldTime)
	next.NegotiatedHoldTime = negotiated

	actions := []Action{send(message.NewKeepalive())}

	if negotiated > 0 {
		next.KeepaliveInterval = time.Duration(negotiated) * time.Second / 3
		if next.KeepaliveInterval < bgp.MinKeepaliveInterval {
			next.KeepaliveInterval = bgp.MinKeepaliveInterval
		}
		actions = append(actions,
			armHold(time.Duration(negotiated)*time.Second),
			armKeepalive(next.KeepaliveInterval),
		)
	} else {
		next.KeepaliveInterval = 0
		actions = append(actions, armHold(0), armKeepalive(0))
	}

	if open.MyAS == s.Config.LocalAS {
		next.PeerType = bgp.PeerInternal
	} else {
		next.PeerType = bgp.PeerExternal
	}

	next.Phase = bgp.OpenConfirm
	return next, actions
}

func stepOpenConfirm(s State, event bgp.Event) (State, []Action) {
	switch event {
	case bgp.BgpKeepalive:
		next := s
		next.Phase = bgp.Established
		next.ConnectRetryCounter = counter.New()
		return next, holdResetActions(s)
	case bgp.BgpNotification:
		next := s
		next.Phase = bgp.Idle
		return next, []Action{closeTransport()}
	case bgp.KeepaliveTimerExpires:
		if s.KeepaliveInterval == 0 {
			return s, nil
		}
		return s, []Action{send(message.NewKeepalive()), armKeepalive(s.KeepaliveInterval)}
	case bgp.HoldTimerExpires:
		return fail(s, bgp.NewHoldTimerExpired())
	case bgp.ManualStop:
		return toIdleCease(s)
	default:
		return idleDefault(s)
	}
}

func holdResetActions(s State) []Action {
	if s.NegotiatedHoldTime == 0 {
		return nil
	}
	return []Action{armHold(time.Duration(s.NegotiatedHoldTime) * time.Second)}
}

func stepEstablished(s State, event bgp.Event, payload any) (State, []Action) {
	switch event {
	case bgp.BgpKeepalive:
		return s, holdResetActions(s)
	case bgp.BgpUpdate:
		update, _ := payload.(message.Update)
		actions := append([]Action{deliverUpdate(update)}, holdResetActions(s)...)
		return s, actions
	case bgp.BgpNotification:
		next := s
		next.Phase = bgp.Idle
		return next, []Action{closeTransport()}
	case bgp.KeepaliveTimerExpires:
		if s.KeepaliveInterval == 0 {
			return s, nil
		}
		return s, []Action{send(message.NewKeepalive()), armKeepalive(s.KeepaliveInterval)}
	case bgp.HoldTimerExpires:
		return fail(s, bgp.NewHoldTimerExpired())
	case bgp.ManualStop:
		return toIdleCease(s)
	default:
		return idleDefault(s)
	}
}
