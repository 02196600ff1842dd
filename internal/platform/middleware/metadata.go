package middleware

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"
)

// maxForwardedHeaderLength bounds X-Forwarded-For and X-Real-IP values so an
// oversized header cannot pollute the audit log.
const maxForwardedHeaderLength = 500

// ClientMetadata is what the audit trail records about the caller's client.
type ClientMetadata struct {
	IP        string
	UserAgent string
	// Client is a compact human-readable rendering of the user agent,
	// e.g. "Firefox 143.0 (Linux)". Shown in the admin log viewer.
	Client string
}

type clientMetadataKey struct{}

// GetClientMetadata retrieves client metadata from the context. The zero
// value is returned when the metadata middleware did not run.
func GetClientMetadata(ctx context.Context) ClientMetadata {
	if md, ok := ctx.Value(clientMetadataKey{}).(ClientMetadata); ok {
		return md
	}
	return ClientMetadata{}
}

// Metadata extracts the client IP and user agent and stores them in the
// request context for audit attribution. trustedProxies lists the CIDR
// prefixes allowed to set forwarding headers; when empty, forwarding headers
// are ignored.
func Metadata(trustedProxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("User-Agent")
			md := ClientMetadata{
				IP:        clientIP(r, trustedProxies),
				UserAgent: raw,
				Client:    describeUserAgent(raw),
			}
			ctx := context.WithValue(r.Context(), clientMetadataKey{}, md)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func describeUserAgent(raw string) string {
	if raw == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" (")
		b.WriteString(os)
		b.WriteString(")")
	}
	return b.String()
}

// clientIP resolves the caller address, trusting forwarding headers only when
// the direct peer is a known proxy.
func clientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP := stripPort(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}
	if !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := r.Header.Get("X-Real-IP"); xri != "" && len(xri) <= maxForwardedHeaderLength {
			return strings.TrimSpace(xri)
		}
		return remoteIP
	}
	if len(xff) > maxForwardedHeaderLength {
		return remoteIP
	}

	first := xff
	if before, _, ok := strings.Cut(xff, ","); ok {
		first = before
	}
	first = strings.TrimSpace(first)
	if _, err := netip.ParseAddr(first); err != nil {
		return remoteIP
	}
	return first
}

func isTrustedProxy(ip string, trustedProxies []netip.Prefix) bool {
	if len(trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// stripPort extracts the IP from a host:port RemoteAddr.
func stripPort(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(remoteAddr, "[]")
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
