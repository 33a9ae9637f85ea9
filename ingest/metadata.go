package ingest

import (
	"net"
	"net/http"
	"strings"
)

// Metadata is the derived request context captured alongside a Submission.
type Metadata struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Referer   string `json:"referer,omitempty"`
}

// ExtractMetadata builds a Metadata value from the request headers and peer
// address, resolving the client IP against the trusted-proxy list.
func ExtractMetadata(headers http.Header, peerIP string, trustedProxies []*net.IPNet) Metadata {
	return Metadata{
		IP:        ResolveClientIP(headers, peerIP, trustedProxies),
		UserAgent: headers.Get("User-Agent"),
		Referer:   headers.Get("Referer"),
	}
}

// ResolveClientIP returns the socket peer address unless it falls within a
// trusted proxy CIDR, in which case it parses X-Forwarded-For left-to-right
// and returns the first address that is not itself a trusted proxy. If no
// such address exists, it falls back to the peer address.
func ResolveClientIP(headers http.Header, peerIP string, trustedProxies []*net.IPNet) string {
	if len(trustedProxies) == 0 {
		return peerIP
	}

	peer := net.ParseIP(peerIP)
	if peer == nil || !containsIP(trustedProxies, peer) {
		return peerIP
	}

	xff := headers.Get("X-Forwarded-For")
	if xff == "" {
		return peerIP
	}

	for _, part := range strings.Split(xff, ",") {
		candidate := net.ParseIP(strings.TrimSpace(part))
		if candidate == nil {
			continue
		}
		if !containsIP(trustedProxies, candidate) {
			return candidate.String()
		}
	}

	return peerIP
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
