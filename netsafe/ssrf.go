// Package netsafe enforces an SSRF policy on outbound webhook URLs: resolve
// the host, reject private/reserved address ranges unless explicitly
// allow-listed, and always reject non-HTTP(S) schemes.
package netsafe

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// Mode selects how strictly outbound URLs are checked.
type Mode string

const (
	// ModeStrict resolves the host and rejects private/reserved addresses.
	ModeStrict Mode = "strict"
	// ModeRelaxed only enforces the URL scheme; address-class checks are
	// skipped. Intended for trusted internal deployments / local testing.
	ModeRelaxed Mode = "relaxed"
)

// Policy validates candidate webhook URLs against a Mode and an allow-list
// of CIDR blocks that are permitted even though they fall in a private
// range (e.g. an operator's own internal webhook receiver).
type Policy struct {
	Mode         Mode
	AllowedCIDRs []*net.IPNet
	// Resolver is used to resolve hostnames; overridable in tests.
	Resolver func(ctx context.Context, host string) ([]net.IP, error)
}

// NewPolicy builds a Policy from a mode string and a list of CIDR strings.
// An unknown mode or an unparseable CIDR fails startup rather than silently
// weakening the policy.
func NewPolicy(mode string, allowCIDRs []string) (*Policy, error) {
	m := Mode(mode)
	if m != ModeStrict && m != ModeRelaxed {
		return nil, fmt.Errorf("netsafe: unknown mode %q", mode)
	}

	nets := make([]*net.IPNet, 0, len(allowCIDRs))
	for _, c := range allowCIDRs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("netsafe: invalid allow-list CIDR %q: %w", c, err)
		}
		nets = append(nets, ipnet)
	}

	return &Policy{
		Mode:         m,
		AllowedCIDRs: nets,
		Resolver:     defaultResolve,
	}, nil
}

func defaultResolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// ValidateURL parses rawURL, enforces scheme restrictions, and — in
// ModeStrict — resolves the host and rejects private/reserved addresses
// that aren't covered by AllowedCIDRs. There is an unavoidable TOCTOU gap
// between this check and the later TCP connect; callers should not treat
// ValidateURL as a substitute for network-layer egress controls.
func (p *Policy) ValidateURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	if p.Mode == ModeRelaxed {
		return nil
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("webhook URL must have a host")
	}

	addrs, err := p.Resolver(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("could not resolve host: %s", host)
	}

	for _, addr := range addrs {
		if isPrivateIP(addr) && !p.allowed(addr) {
			return fmt.Errorf("webhook URL resolves to private/reserved IP: %s", addr)
		}
	}

	return nil
}

func (p *Policy) allowed(ip net.IP) bool {
	for _, cidr := range p.AllowedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// isPrivateIP classifies an address as private/reserved per the ranges
// excluded from outbound webhook delivery.
func isPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		return isPrivateIPv4(v4)
	}
	return isPrivateIPv6(ip)
}

func isPrivateIPv4(v4 net.IP) bool {
	switch {
	case v4.IsLoopback(): // 127.0.0.0/8
		return true
	case v4.IsPrivate(): // 10/8, 172.16/12, 192.168/16
		return true
	case v4.IsLinkLocalUnicast(): // 169.254.0.0/16
		return true
	case v4.Equal(net.IPv4bcast): // 255.255.255.255
		return true
	case v4.IsUnspecified(): // 0.0.0.0
		return true
	case v4[0] == 100 && (v4[1]&0xC0) == 64: // CGNAT 100.64.0.0/10
		return true
	case v4[0] == 198 && (v4[1]&0xFE) == 18: // benchmarks 198.18.0.0/15
		return true
	default:
		return false
	}
}

func isPrivateIPv6(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if (ip[0] & 0xFE) == 0xFC { // unique-local fc00::/7
		return true
	}
	if ip[0] == 0xFE && (ip[1]&0xC0) == 0x80 { // link-local fe80::/10
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		return isPrivateIPv4(v4)
	}
	return false
}
