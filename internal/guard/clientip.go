package guard

import (
	"net"
	"net/netip"
	"strings"
)

// ResolveClientIP returns the address of the client behind remote, the peer of
// the connection. Forwarding headers are only read when remote is in trusted.
// X-Forwarded-For is then walked from the right, skipping trusted proxies, and
// the first address not in trusted is the client; entries to its left were
// written by the client and are ignored. X-Real-IP is used when there is no
// X-Forwarded-For.
func ResolveClientIP(remote string, forwardedFor []string, realIP string, trusted []netip.Prefix) string {
	peer, ok := parseIP(remote)
	if !ok {
		return strings.TrimSpace(remote)
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}

	var hops []string
	for _, v := range forwardedFor {
		hops = append(hops, strings.Split(v, ",")...)
	}
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseIP(hops[i])
		if !ok {
			break
		}
		client = ip
		if !isTrusted(ip, trusted) {
			return ip.String()
		}
	}
	if len(hops) > 0 {
		return client.String()
	}
	if ip, ok := parseIP(realIP); ok {
		return ip.String()
	}
	return peer.String()
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// parseIP accepts a bare address, host:port, or a bracketed IPv6 address, with
// an optional zone.
func parseIP(raw string) (netip.Addr, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
