package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP rewrites r.RemoteAddr to the client address reported by
// X-Real-IP or X-Forwarded-For, but only when the connection itself comes
// from one of the configured proxy networks. The archive API usually sits
// behind a site gateway, and both the rate limiter and the request log key
// on whatever address this middleware settles on, so forwarding headers
// from anyone else are ignored.
func ClientIP(proxies []string) func(http.Handler) http.Handler {
	nets := parseProxyNets(proxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := peerAddr(r.RemoteAddr); ok && fromProxy(peer, nets) {
				if client, ok := forwardedClient(r.Header); ok {
					r.RemoteAddr = client.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseProxyNets accepts CIDR notation and bare addresses; a bare address
// becomes a single-host prefix. Unparseable values are logged and skipped
// rather than silently widening trust.
func parseProxyNets(proxies []string) []netip.Prefix {
	var nets []netip.Prefix
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if pfx, err := netip.ParsePrefix(p); err == nil {
			nets = append(nets, pfx.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil {
			nets = append(nets, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		slog.Warn("realip: skipping unparseable trusted proxy", "proxy", p)
	}
	return nets
}

// peerAddr parses the connection source out of a host:port or bare address.
func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr, true
	}
	return netip.Addr{}, false
}

func fromProxy(addr netip.Addr, nets []netip.Prefix) bool {
	for _, n := range nets {
		if n.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// forwardedClient returns the client address a proxy reported: X-Real-IP
// when present, otherwise the first hop of the X-Forwarded-For chain.
// Values that do not parse as an address are rejected.
func forwardedClient(h http.Header) (netip.Addr, bool) {
	candidate := strings.TrimSpace(h.Get("X-Real-IP"))
	if candidate == "" {
		candidate = h.Get("X-Forwarded-For")
		if i := strings.IndexByte(candidate, ','); i >= 0 {
			candidate = candidate[:i]
		}
		candidate = strings.TrimSpace(candidate)
	}
	if candidate == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
