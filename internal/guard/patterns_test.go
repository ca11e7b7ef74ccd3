// SPDX-License-Identifier: MIT

package guard

import "testing"

func TestDecodeLayers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a%20b", "a b"},
		{"%252e%252e%252f", "../"},
		{"%25252e%25252e%25252f", "../"},
		{"%zz-broken", "%zz-broken"},
	}
	for _, tt := range tests {
		if got := DecodeLayers(tt.in); got != tt.want {
			t.Errorf("DecodeLayers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindPattern(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean path", "/api/extract", ""},
		{"clean query value", "https://www.instagram.com/p/Cxyz123/", ""},
		{"traversal", "/files/../../etc/passwd", RuleTraversal},
		{"windows traversal", `..\windows\system32`, RuleTraversal},
		{"nul byte", "a\x00b", RuleNul},
		{"crlf injection", "value\r\nSet-Cookie: x=1", RuleCRLF},
		{"backtick", "x`id`", RuleShell},
		{"subshell", "a$(whoami)", RuleShell},
		{"var expansion", "a${PATH}", RuleShell},
		{"chained and", "a&&rm", RuleShell},
		{"script tag", "<SCRIPT>alert(1)</script>", RuleXSS},
		{"js scheme", "javascript:alert(1)", RuleXSS},
		{"event handler", `<img onerror= "x">`, RuleXSS},
		{"iframe", "<IFRAME src=x>", RuleXSS},
		{"css expression", "width:expression(alert(1))", RuleXSS},
		{"data uri", "data:text/html;base64,xx", RuleXSS},
		{"union select", "1 UNION SELECT password", RuleSQL},
		{"tautology", "x' OR 1=1", RuleSQL},
		{"drop", "x; DROP TABLE users", RuleSQL},
		{"season param is not an event handler", "?season=2&episode=3", ""},
		{"double dash slug ok", "/p/my--post", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPattern(tt.in); got != tt.want {
				t.Errorf("FindPattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScreenDecodesBeforeMatching(t *testing.T) {
	// "../" hidden under two layers of encoding.
	if got := Screen("%252e%252e%252fetc"); got != RuleTraversal {
		t.Errorf("Screen = %q, want %q", got, RuleTraversal)
	}
	if got := Screen("https%3A%2F%2Fexample.com%2Fv.mp4"); got != "" {
		t.Errorf("encoded benign url flagged: %q", got)
	}
}
