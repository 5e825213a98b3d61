// Package network supplies the host-facing helpers the FSM and
// speaker need but that have nothing to do with the wire protocol
// itself: picking a default BGP Identifier from the host's
// interfaces, and splitting a net.Addr into the IP a configured peer
// is matched against.
package network

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
)

// FindBGPIdentifier picks the first globally routable IPv4 address
// configured on the host to use as the speaker's BGP Identifier. The
// selection is arbitrary among candidates, as RFC 4271 does not
// constrain which local address a speaker picks.
func FindBGPIdentifier() (bgp.Identifier, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return 0, errors.Wrap(err, "network: list interfaces")
	}
	for _, v := range ifs {
		addrs, err := v.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			if ip.To4() == nil {
				continue
			}
			if ip.IsGlobalUnicast() {
				return ipToIdentifier(ip), nil
			}
		}
	}
	return 0, errors.New("network: no valid BGP identifier found")
}

func ipToIdentifier(ip net.IP) bgp.Identifier {
	ip4 := ip.To4()
	return bgp.Identifier(binary.BigEndian.Uint32(ip4))
}

// IdentifierToIP converts a bgp.Identifier back to its dotted-decimal
// IPv4 address, the inverse of ipToIdentifier.
func IdentifierToIP(id bgp.Identifier) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, uint32(id))
	return ip
}

// ParseAddr splits a net.Addr (as returned by net.Conn.RemoteAddr)
// into its host and port, the form a speaker's peer table matches
// against when dispatching an accepted connection.
func ParseAddr(a net.Addr) (string, uint16) {
	addr := strings.Split(a.String(), ":")
	host := addr[0]
	if len(addr) < 2 {
		return host, 0
	}
	port, err := strconv.Atoi(addr[1])
	if err != nil {
		port = 0
	}
	return host, uint16(port)
}

