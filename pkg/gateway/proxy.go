package gateway

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies lists the peers whose forwarding headers are believed.
// A nil or empty list trusts nobody: the client is always the TCP peer.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts IP addresses and CIDR prefixes
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	p := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

// Trusts reports whether addr is a trusted proxy
func (p *TrustedProxies) Trusts(addr netip.Addr) bool {
	if p == nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address used for rate limiting and audit. Forwarding
// headers count only when the TCP peer is trusted; X-Forwarded-For is then
// read right to left and the first untrusted hop wins.
func (p *TrustedProxies) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remote = host
	}

	peer, err := netip.ParseAddr(remote)
	if err != nil || !p.Trusts(peer) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				return remote
			}
			if !p.Trusts(addr) || i == 0 {
				return addr.Unmap().String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return remote
}
