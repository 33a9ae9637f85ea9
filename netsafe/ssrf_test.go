package netsafe

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubResolver(ips ...string) func(context.Context, string) ([]net.IP, error) {
	parsed := make([]net.IP, 0, len(ips))
	for _, s := range ips {
		parsed = append(parsed, net.ParseIP(s))
	}
	return func(context.Context, string) ([]net.IP, error) {
		return parsed, nil
	}
}

func TestValidateURL_RejectsUnsupportedScheme(t *testing.T) {
	p, err := NewPolicy("strict", nil)
	require.NoError(t, err)

	err = p.ValidateURL(context.Background(), "ftp://example.com/hook")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestValidateURL_StrictRejectsPrivateIP(t *testing.T) {
	p, err := NewPolicy("strict", nil)
	require.NoError(t, err)
	p.Resolver = stubResolver("10.0.0.5")

	err = p.ValidateURL(context.Background(), "http://internal.example.com/hook")
	assert.ErrorContains(t, err, "private/reserved")
}

func TestValidateURL_StrictAllowsPublicIP(t *testing.T) {
	p, err := NewPolicy("strict", nil)
	require.NoError(t, err)
	p.Resolver = stubResolver("93.184.216.34")

	err = p.ValidateURL(context.Background(), "https://example.com/hook")
	assert.NoError(t, err)
}

func TestValidateURL_AllowListOverridesPrivateRange(t *testing.T) {
	p, err := NewPolicy("strict", []string{"10.0.0.0/8"})
	require.NoError(t, err)
	p.Resolver = stubResolver("10.1.2.3")

	err = p.ValidateURL(context.Background(), "http://internal.example.com/hook")
	assert.NoError(t, err)
}

func TestValidateURL_RelaxedSkipsAddressCheck(t *testing.T) {
	p, err := NewPolicy("relaxed", nil)
	require.NoError(t, err)
	p.Resolver = stubResolver("127.0.0.1")

	err = p.ValidateURL(context.Background(), "http://localhost/hook")
	assert.NoError(t, err)
}

func TestValidateURL_LiteralIP(t *testing.T) {
	p, err := NewPolicy("strict", nil)
	require.NoError(t, err)

	err = p.ValidateURL(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.ErrorContains(t, err, "private/reserved")
}

func TestIsPrivateIP_IPv4Ranges(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":       true,
		"10.0.0.1":        true,
		"172.16.0.1":      true,
		"192.168.1.1":     true,
		"169.254.1.1":     true,
		"255.255.255.255": true,
		"0.0.0.0":         true,
		"100.64.0.1":      true,
		"198.18.0.1":      true,
		"8.8.8.8":         false,
		"93.184.216.34":   false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, isPrivateIP(net.ParseIP(addr)), addr)
	}
}

func TestIsPrivateIP_IPv6Ranges(t *testing.T) {
	cases := map[string]bool{
		"::1":                  true,
		"::":                   true,
		"fc00::1":              true,
		"fe80::1":              true,
		"2001:4860:4860::8888": false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, isPrivateIP(net.ParseIP(addr)), addr)
	}
}

func TestNewPolicy_RejectsUnknownMode(t *testing.T) {
	_, err := NewPolicy("yolo", nil)
	assert.Error(t, err)
}

func TestNewPolicy_RejectsInvalidCIDR(t *testing.T) {
	_, err := NewPolicy("strict", []string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestValidateURL_MissingHost(t *testing.T) {
	p, err := NewPolicy("strict", nil)
	require.NoError(t, err)

	err = p.ValidateURL(context.Background(), "http://")
	assert.Error(t, err)
}
