package addrbook

import (
	"fmt"
	"net/netip"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
)

// Multiaddr renders the record's socket address as /ip4/<a>/tcp/<port> or
// /ip6/<a>/tcp/<port>.
func (r Record) Multiaddr() (ma.Multiaddr, error) {
	return AddrPortMultiaddr(r.AddrPort())
}

// AddrPortMultiaddr converts a socket address to a TCP multiaddr.
func AddrPortMultiaddr(ap netip.AddrPort) (ma.Multiaddr, error) {
	a := ap.Addr().Unmap()
	proto := "ip6"
	if a.Is4() {
		proto = "ip4"
	}
	return ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%d", proto, a.WithZone("").String(), ap.Port()))
}

// ParseMultiaddr parses an /ip4 or /ip6 TCP multiaddr into a socket address.
// Other transports and DNS names are rejected.
func ParseMultiaddr(s string) (netip.AddrPort, error) {
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parse multiaddr %q: %w", s, err)
	}

	host, err := m.ValueForProtocol(ma.P_IP4)
	if err != nil {
		host, err = m.ValueForProtocol(ma.P_IP6)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("multiaddr %q: no ip4 or ip6 component", s)
		}
	}
	portStr, err := m.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("multiaddr %q: no tcp component", s)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("multiaddr %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("multiaddr %q: bad port: %w", s, err)
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}
