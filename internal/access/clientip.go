package access

import (
	"net"
	"net/http"
	"strings"
)

// Header names consulted when resolving the client address.
const (
	HeaderRealIP       = "X-Real-IP"
	HeaderForwardedFor = "X-Forwarded-For"
)

// UnknownIP is returned when no source yields an address.
const UnknownIP = "unknown"

// ClientIP resolves the originating client address of r.
//
// Precedence: X-Real-IP, then the first X-Forwarded-For hop, then the
// transport peer. Header values are not validated; malformed values simply
// fail to match any allowlist entry.
func ClientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderRealIP)); v != "" {
		return v
	}

	if v := r.Header.Get(HeaderForwardedFor); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	return peerIP(r.RemoteAddr)
}

// peerIP strips the port from a RemoteAddr value.
func peerIP(remoteAddr string) string {
	if remoteAddr == "" {
		return UnknownIP
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	if host == "" {
		return UnknownIP
	}
	return host
}
