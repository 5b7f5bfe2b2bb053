package middleware

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the host part of RemoteAddr. The router runs chi's RealIP
// first, so proxy headers have already been applied.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
