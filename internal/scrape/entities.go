// SPDX-License-Identifier: MIT

package scrape

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// DecodeHTMLEntities decodes JavaScript string escapes (\uXXXX including
// surrogate pairs, \xHH, \/, \", \\) followed by HTML entities, both named
// and numeric. The JS pass runs first so doubly encoded values like &amp;
// come out fully decoded.
func DecodeHTMLEntities(s string) string {
	if strings.IndexByte(s, '\\') >= 0 {
		s = decodeJSEscapes(s)
	}
	if strings.IndexByte(s, '&') >= 0 {
		s = html.UnescapeString(s)
	}
	return s
}

func decodeJSEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		switch s[i+1] {
		case 'u':
			r, n := decodeUnicodeEscape(s[i:])
			if n == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteRune(r)
			i += n
		case 'x':
			if i+4 <= len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
					b.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			b.WriteByte(c)
			i++
		case '/':
			b.WriteByte('/')
			i += 2
		case '"':
			b.WriteByte('"')
			i += 2
		case '\\':
			b.WriteByte('\\')
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// decodeUnicodeEscape decodes the \uXXXX escape at the head of s, combining
// surrogate pairs into one rune. Returns the rune and the number of bytes
// consumed, or (0, 0) when the escape is malformed.
func decodeUnicodeEscape(s string) (rune, int) {
	if len(s) < 6 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, 0
	}
	r := rune(v)
	if utf16.IsSurrogate(r) {
		if len(s) >= 12 && s[6] == '\\' && s[7] == 'u' {
			v2, err2 := strconv.ParseUint(s[8:12], 16, 32)
			if err2 == nil {
				if paired := utf16.DecodeRune(r, rune(v2)); paired != utf8.RuneError {
					return paired, 12
				}
			}
		}
		return utf8.RuneError, 6
	}
	return r, 6
}
