// SPDX-License-Identifier: MIT

package guard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrBadScheme indicates a target URL with a scheme other than http(s).
	ErrBadScheme = errors.New("scheme not allowed")
	// ErrBlockedHost indicates a target host on the SSRF block list.
	ErrBlockedHost = errors.New("host blocked")
)

var blockedNames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata":                 {},
}

var blockedSuffixes = []string{".internal", ".local", ".localhost"}

var (
	numericHostRe = regexp.MustCompile(`^[0-9]+$`)
	dottedDigitRe = regexp.MustCompile(`^[0-9.]+$`)
)

// NormalizeHost lowercases and IDNA-encodes a hostname for comparison.
// IP literals come back in their canonical text form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return ascii, nil
}

// HostBlockReason applies the syntactic block rules to a normalized host.
// Returns the reason and true when blocked.
func HostBlockReason(host string) (string, bool) {
	if _, hit := blockedNames[host]; hit {
		return "blocked name", true
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return "blocked suffix " + suffix, true
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		if blockedIP(ip) {
			return "blocked ip range", true
		}
		return "", false
	}
	// Hosts that are nothing but digits, or digit/dot strings the IP parser
	// rejected, are decimal/octal encodings of an address.
	if numericHostRe.MatchString(host) {
		return "numeric host", true
	}
	if dottedDigitRe.MatchString(host) {
		return "octal ip encoding", true
	}
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "0x") {
			return "hex ip encoding", true
		}
	}
	return "", false
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

// CheckTarget validates raw as an upstream fetch target: http(s) scheme,
// hostname off the block list, and no resolved address inside a blocked
// range. Hostnames that fail to resolve pass; the fetch itself will surface
// that. The returned error wraps ErrBadScheme or ErrBlockedHost so callers
// can pick their own status mapping.
func CheckTarget(ctx context.Context, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedHost)
	}
	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedHost, err)
	}
	if reason, blocked := HostBlockReason(host); blocked {
		return fmt.Errorf("%w: %s (%s)", ErrBlockedHost, host, reason)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if blockedIP(addr.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlockedHost, host, addr.IP)
		}
	}
	return nil
}
