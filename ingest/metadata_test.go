package ingest

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func trustedNets(t *testing.T, cidrs ...string) []*net.IPNet {
	t.Helper()
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			t.Fatalf("bad CIDR %q: %v", c, err)
		}
		nets = append(nets, n)
	}
	return nets
}

func TestResolveClientIP_NoTrustedProxiesUsesPeer(t *testing.T) {
	ip := ResolveClientIP(http.Header{"X-Forwarded-For": []string{"9.9.9.9"}}, "1.2.3.4", nil)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestResolveClientIP_PeerNotTrustedUsesPeer(t *testing.T) {
	nets := trustedNets(t, "10.0.0.0/8")
	ip := ResolveClientIP(http.Header{"X-Forwarded-For": []string{"9.9.9.9"}}, "1.2.3.4", nets)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestResolveClientIP_TrustedPeerUsesFirstNonTrustedXFF(t *testing.T) {
	nets := trustedNets(t, "10.0.0.0/8")
	headers := http.Header{"X-Forwarded-For": []string{"203.0.113.5, 10.0.0.2"}}
	ip := ResolveClientIP(headers, "10.0.0.1", nets)
	assert.Equal(t, "203.0.113.5", ip)
}

func TestResolveClientIP_AllXFFHopsTrustedFallsBackToPeer(t *testing.T) {
	nets := trustedNets(t, "10.0.0.0/8")
	headers := http.Header{"X-Forwarded-For": []string{"10.0.0.2, 10.0.0.3"}}
	ip := ResolveClientIP(headers, "10.0.0.1", nets)
	assert.Equal(t, "10.0.0.1", ip)
}

func TestExtractMetadata_CapturesUserAgentAndReferer(t *testing.T) {
	headers := http.Header{
		"User-Agent": []string{"curl/8.0"},
		"Referer":    []string{"https://example.com"},
	}
	meta := ExtractMetadata(headers, "1.2.3.4", nil)
	assert.Equal(t, "1.2.3.4", meta.IP)
	assert.Equal(t, "curl/8.0", meta.UserAgent)
	assert.Equal(t, "https://example.com", meta.Referer)
}
