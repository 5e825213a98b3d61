// Package rib is the storage-only collaborator the peer FSM calls into
// on a BGP_UPDATE event (spec.md §6.3). It keeps the most recently
// installed path-attribute set per prefix, per peer; it does not
// implement the BGP Decision Process (best-path selection, route
// preference, next-hop resolution) — that remains out of scope per
// spec.md's Non-goals, same as the distilled spec's stub collaborator.
package rib

import (
	"sync"

	"github.com/armon/go-radix"

	"github.com/routeware/bgpd/message"
)

// Update is one prefix's worth of change to apply to a peer's RIB: a
// withdrawal if Attributes is nil, an install/replace otherwise.
type Update struct {
	Peer       string
	Prefix     message.Prefix
	Attributes []message.Attribute
}

// entry is the value stored in the radix tree under a prefix key.
type entry struct {
	peer       string
	attributes []message.Attribute
}

// RIB is a longest-prefix-match store of installed routes, one radix
// tree per peer. It is safe for concurrent use: a Speaker shares one
// RIB among the run loops of all its peers.
type RIB struct {
	mu    sync.RWMutex
	trees map[string]*radix.Tree
}

// New returns an empty RIB.
func New() *RIB {
	return &RIB{trees: make(map[string]*radix.Tree)}
}

// prefixKey renders a prefix as its bit string ("101010..."), with no
// trailing pad bits. go-radix's LongestPrefix matches on common byte
// prefix of the key, so storing exactly the significant bits (rather
// than the padded octets) makes tree lookups correspond directly to
// IP longest-prefix-match semantics.
func prefixKey(p message.Prefix) string {
	bits := make([]byte, p.Length)
	for i := range bits {
		octet := i / 8
		shift := uint(7 - i%8)
		var bit byte
		if octet < len(p.Octets) {
			bit = (p.Octets[octet] >> shift) & 1
		}
		if bit == 1 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return string(bits)
}

func (r *RIB) treeFor(peer string) *radix.Tree {
	t, ok := r.trees[peer]
	if !ok {
		t = radix.New()
		r.trees[peer] = t
	}
	return t
}

// OnUpdate applies a single decoded UPDATE's worth of withdrawals and
// advertisements to the RIB. It is the function a peer's FSM run loop
// calls on a BgpUpdate event once decode has succeeded.
func (r *RIB) OnUpdate(peer string, u message.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.treeFor(peer)
	for _, w := range u.WithdrawnRoutes {
		t.Delete(prefixKey(w))
	}
	for _, n := range u.NLRI {
		t.Insert(prefixKey(n), entry{peer: peer, attributes: u.PathAttributes})
	}
}

// Lookup returns the path attributes of the longest-prefix-match route
// installed for p in the given peer's RIB. p is turned into a bit-string
// key the same way OnUpdate builds its keys.
func (r *RIB) Lookup(peer string, p message.Prefix) ([]message.Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trees[peer]
	if !ok {
		return nil, false
	}
	_, v, ok := t.LongestPrefix(prefixKey(p))
	if !ok {
		return nil, false
	}
	return v.(entry).attributes, true
}

// Clear drops every route installed for peer, used when a session
// transitions out of Established (RFC 4271 §3.1: closing the
// connection implicitly withdraws everything learned from that peer).
func (r *RIB) Clear(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trees, peer)
}

// Len reports how many routes are currently installed for peer.
func (r *RIB) Len(peer string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trees[peer]
	if !ok {
		return 0
	}
	return t.Len()
}
