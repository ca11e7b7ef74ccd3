// SPDX-License-Identifier: MIT

// Package cookies normalizes credential material from the three formats in
// circulation (Netscape cookies.txt, JSON browser exports, raw Cookie
// headers) into one canonical header string, and keeps per-platform server
// cookies loaded and fresh.
package cookies

import (
	"encoding/json"
	"strings"
)

type pair struct {
	name  string
	value string
}

// Canonical parses input in any supported format and returns the canonical
// "name=value; name2=value2" form. Pairs with empty values are dropped and
// input order is preserved. Returns "" for empty or unparseable input.
func Canonical(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	var pairs []pair
	switch {
	case strings.HasPrefix(input, "[") || strings.HasPrefix(input, "{"):
		pairs = parseJSONExport(input)
	case looksLikeNetscape(input):
		pairs = parseNetscape(input)
	default:
		pairs = parseHeader(input)
	}
	var b strings.Builder
	for _, p := range pairs {
		if p.name == "" || p.value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.name)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// Value returns the value of the named cookie inside a canonical header
// string, or "" when absent.
func Value(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return v
		}
	}
	return ""
}

func looksLikeNetscape(input string) bool {
	if strings.HasPrefix(input, "# Netscape") || strings.HasPrefix(input, "# HTTP Cookie File") {
		return true
	}
	for _, line := range strings.Split(input, "\n") {
		if strings.Count(line, "\t") >= 6 {
			return true
		}
	}
	return false
}

// parseNetscape handles the tab-delimited cookies.txt layout:
// domain flag path secure expiration name value. Lines flagged
// #HttpOnly_ are real cookies, not comments.
func parseNetscape(input string) []pair {
	var pairs []pair
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		pairs = append(pairs, pair{name: parts[5], value: parts[6]})
	}
	return pairs
}

// parseJSONExport handles browser-extension exports, either a bare array of
// cookie objects or an object wrapping one under "cookies".
func parseJSONExport(input string) []pair {
	type exported struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	var list []exported
	if err := json.Unmarshal([]byte(input), &list); err != nil {
		var wrapped struct {
			Cookies []exported `json:"cookies"`
		}
		if err := json.Unmarshal([]byte(input), &wrapped); err != nil {
			return nil
		}
		list = wrapped.Cookies
	}
	pairs := make([]pair, 0, len(list))
	for _, c := range list {
		pairs = append(pairs, pair{name: c.Name, value: c.Value})
	}
	return pairs
}

func parseHeader(input string) []pair {
	var pairs []pair
	for _, part := range strings.Split(input, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		pairs = append(pairs, pair{name: strings.TrimSpace(name), value: strings.TrimSpace(value)})
	}
	return pairs
}
