// SPDX-License-Identifier: MIT

package media

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	authorBudget = 20
	titleBudget  = 40
)

// illegal holds the characters no mainstream filesystem accepts.
const illegal = `<>:"/\|?*`

// Sanitize makes a string safe for use inside a filename: NFC normalized,
// control and filesystem-illegal characters dropped, whitespace runs
// collapsed to a single underscore, truncated to budget runes. Unicode
// letters survive untouched.
func Sanitize(s string, budget int) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // swallow leading separators
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			continue
		case strings.ContainsRune(illegal, r):
			continue
		case unicode.IsSpace(r) || r == '_':
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if budget > 0 {
		runes := []rune(out)
		if len(runes) > budget {
			out = strings.TrimRight(string(runes[:budget]), "_")
		}
	}
	return out
}

// BuildFilename assembles the download filename:
//
//	author_contentType_title[_N]_quality.ext
//
// The item index is included only for multi-item results, 1-based. Empty
// segments collapse away so the name never carries doubled underscores.
func BuildFilename(author, contentType, title, quality, ext string, index, total int) string {
	parts := make([]string, 0, 5)
	if a := Sanitize(author, authorBudget); a != "" {
		parts = append(parts, a)
	}
	if c := Sanitize(contentType, 0); c != "" {
		parts = append(parts, c)
	}
	if t := Sanitize(title, titleBudget); t != "" {
		parts = append(parts, t)
	}
	if total > 1 {
		parts = append(parts, fmt.Sprintf("%d", index+1))
	}
	if q := Sanitize(quality, 0); q != "" {
		parts = append(parts, q)
	}
	name := strings.Join(parts, "_")
	if name == "" {
		name = "media"
	}
	if ext == "" {
		ext = "mp4"
	}
	return name + "." + ext
}
