// SPDX-License-Identifier: MIT

package scrape

import (
	"regexp"
	"strings"
)

// ExtractFragment returns the substring of text between the start and end
// markers, excluding the markers themselves. With an empty end marker the
// fragment runs from just after start for at most maxLen bytes. A positive
// maxLen also caps delimited fragments. Returns "" when start is absent.
func ExtractFragment(text, start, end string, maxLen int) string {
	idx := strings.Index(text, start)
	if idx < 0 {
		return ""
	}
	begin := idx + len(start)
	rest := text[begin:]
	if end != "" {
		if stop := strings.Index(rest, end); stop >= 0 {
			rest = rest[:stop]
		}
	}
	if maxLen > 0 && len(rest) > maxLen {
		rest = rest[:maxLen]
	}
	return rest
}

var scriptOpenRe = regexp.MustCompile(`(?is)<script\b[^>]*>`)

// ExtractScriptContent returns the inner text of the first <script> element
// whose opening tag or body contains idOrMarker. Returns "" when no script
// matches.
func ExtractScriptContent(text, idOrMarker string) string {
	offset := 0
	for {
		loc := scriptOpenRe.FindStringIndex(text[offset:])
		if loc == nil {
			return ""
		}
		openStart := offset + loc[0]
		bodyStart := offset + loc[1]
		closeIdx := strings.Index(text[bodyStart:], "</script")
		if closeIdx < 0 {
			// Unterminated tail, likely cut off by the window. Use what is there.
			closeIdx = len(text) - bodyStart
		}
		openTag := text[openStart:bodyStart]
		body := text[bodyStart : bodyStart+closeIdx]
		if idOrMarker == "" || strings.Contains(openTag, idOrMarker) || strings.Contains(body, idOrMarker) {
			return body
		}
		offset = bodyStart + closeIdx
	}
}

// Meta carries the page-level tags pulled out of an HTML head fragment.
type Meta struct {
	Title   string
	OGTitle string
	OGDesc  string
	OGImage string
	OGURL   string
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaTagRe  = regexp.MustCompile(`(?is)<meta\s[^>]*?>`)
	metaAttrRe = regexp.MustCompile(`(?i)(property|name|content)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// ExtractMetaTags scans an HTML fragment for the document title and the
// common OpenGraph tags. Attribute order inside each <meta> tag does not
// matter and values are entity-decoded.
func ExtractMetaTags(text string) Meta {
	var m Meta
	if t := titleRe.FindStringSubmatch(text); t != nil {
		m.Title = strings.TrimSpace(DecodeHTMLEntities(t[1]))
	}
	for _, tag := range metaTagRe.FindAllString(text, -1) {
		var key, content string
		for _, attr := range metaAttrRe.FindAllStringSubmatch(tag, -1) {
			val := attr[2]
			if val == "" {
				val = attr[3]
			}
			switch strings.ToLower(attr[1]) {
			case "property", "name":
				key = strings.ToLower(val)
			case "content":
				content = val
			}
		}
		if content == "" {
			continue
		}
		content = strings.TrimSpace(DecodeHTMLEntities(content))
		switch key {
		case "og:title":
			if m.OGTitle == "" {
				m.OGTitle = content
			}
		case "og:description", "description":
			if m.OGDesc == "" {
				m.OGDesc = content
			}
		case "og:image", "og:image:url":
			if m.OGImage == "" {
				m.OGImage = content
			}
		case "og:url":
			if m.OGURL == "" {
				m.OGURL = content
			}
		}
	}
	return m
}

// ExtractAll returns up to limit matches of re in text. When the pattern has
// a capture group the first group is returned, otherwise the whole match.
// A non-positive limit means no cap.
func ExtractAll(text string, re *regexp.Regexp, limit int) []string {
	if limit <= 0 {
		limit = -1
	}
	matches := re.FindAllStringSubmatch(text, limit)
	if matches == nil {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		} else {
			out = append(out, m[0])
		}
	}
	return out
}

// ExtractJSON returns the first balanced JSON object found at or after
// startMarker (after the first "{" when the marker is empty). Braces inside
// string literals do not count toward the balance. Returns "" when no
// complete object is present.
func ExtractJSON(text, startMarker string) string {
	if startMarker != "" {
		idx := strings.Index(text, startMarker)
		if idx < 0 {
			return ""
		}
		text = text[idx+len(startMarker):]
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

var urlRe = regexp.MustCompile(`https?://[^\s"'<>\\^` + "`" + `{}\[\]]+`)

// URLFilter narrows ExtractURLs results. Protocol matches the scheme
// ("https"), Domain must appear in the host part.
type URLFilter struct {
	Protocol string
	Domain   string
}

// ExtractURLs returns the deduplicated URLs found in text, in first-seen
// order, optionally narrowed by filter. Trailing punctuation that commonly
// clings to URLs in prose or JSON is trimmed.
func ExtractURLs(text string, filter URLFilter) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range urlRe.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ".,;:!?)'\"")
		if filter.Protocol != "" && !strings.HasPrefix(u, filter.Protocol+"://") {
			continue
		}
		if filter.Domain != "" {
			host := u[strings.Index(u, "://")+3:]
			if slash := strings.IndexByte(host, '/'); slash >= 0 {
				host = host[:slash]
			}
			if !strings.Contains(host, filter.Domain) {
				continue
			}
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
