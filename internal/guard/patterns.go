// SPDX-License-Identifier: MIT

// Package guard holds the request-validation primitives used by the API
// middleware: multi-layer decoding of URL-encoded input, the blocked-pattern
// sets, and SSRF screening of upstream targets.
package guard

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxDecodeLayers bounds how many nested layers of URL-encoding are
// unwrapped before matching. Attackers double- and triple-encode payloads;
// five layers is beyond anything a legitimate client produces.
const MaxDecodeLayers = 5

// DecodeLayers repeatedly URL-decodes s until it stops changing or the
// layer cap is hit. Undecodable input is returned as-is from the last
// good layer.
func DecodeLayers(s string) string {
	for i := 0; i < MaxDecodeLayers; i++ {
		decoded, err := url.QueryUnescape(s)
		if err != nil || decoded == s {
			return s
		}
		s = decoded
	}
	return s
}

// Rule names for blocked-pattern matches, used as log fields and metric
// labels.
const (
	RuleTraversal = "traversal"
	RuleNul       = "nul"
	RuleCRLF      = "crlf"
	RuleShell     = "shell"
	RuleXSS       = "xss"
	RuleSQL       = "sql"
)

var (
	shellPatterns = []string{"`", "$(", "${", "&&", "||"}

	xssLiterals = []string{
		"<script", "javascript:", "<iframe", "<object", "<embed",
		"expression(", "data:text/html",
	}
	xssEventRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)

	sqlRe = regexp.MustCompile(`(?i)(union\s+select|or\s+1\s*=\s*1|';\s*--|drop\s+table|insert\s+into|delete\s+from)`)
)

// FindPattern tests already-decoded input against the blocked-pattern sets
// and returns the name of the first rule hit, or "" when the input is clean.
func FindPattern(decoded string) string {
	lower := strings.ToLower(decoded)

	if strings.Contains(decoded, "../") || strings.Contains(decoded, `..\`) {
		return RuleTraversal
	}
	if strings.ContainsRune(decoded, 0) {
		return RuleNul
	}
	if strings.ContainsAny(decoded, "\r\n") {
		return RuleCRLF
	}
	for _, p := range shellPatterns {
		if strings.Contains(decoded, p) {
			return RuleShell
		}
	}
	for _, p := range xssLiterals {
		if strings.Contains(lower, p) {
			return RuleXSS
		}
	}
	if xssEventRe.MatchString(decoded) {
		return RuleXSS
	}
	if sqlRe.MatchString(decoded) {
		return RuleSQL
	}
	return ""
}

// Screen decodes s and runs it through the pattern sets in one step.
func Screen(s string) string {
	return FindPattern(DecodeLayers(s))
}
