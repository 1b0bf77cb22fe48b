package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig names the proxy sources whose forwarding headers are believed.
// The lockout audit trail keys on client IP, so a spoofable IP would let an
// attacker smear their attempts across invented addresses.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
}

// ExtractClientIP resolves the client address for a request. X-Forwarded-For
// and X-Real-IP are honored only when the direct peer is a trusted proxy;
// any other caller gets their socket address, whatever headers they sent.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := peerAddr(r)

	if config == nil || !withinTrustedProxies(peer, config.TrustedProxies) {
		return peer
	}

	// Leftmost valid entry wins: that is the address the first trusted hop
	// recorded for the original client.
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		candidate = strings.TrimSpace(candidate)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}

	return peer
}

// peerAddr strips the port from RemoteAddr.
func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func withinTrustedProxies(addr string, trusted []string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	for _, cidr := range trusted {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}
