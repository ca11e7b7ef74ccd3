// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessGate_PublicRoutesOpen(t *testing.T) {
	gate := AccessGate([]string{"secret"}, []string{"https://app.example.com"})
	h := gate(okHandler())

	for _, path := range []string{
		"/extract", "/stream", "/download", "/thumbnail",
		"/hls-proxy", "/hls-stream", "/merge", "/health",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without credentials, got %d", path, w.Code)
		}
	}
}

func TestAccessGate_GatedRouteRefusedWithoutCredentials(t *testing.T) {
	gate := AccessGate([]string{"secret"}, []string{"https://app.example.com"})
	h := gate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	env := decodeRefusal(t, w)
	if env.Error.Code != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN, got %q", env.Error.Code)
	}
}

func TestAccessGate_APIKeyOpensGatedRoute(t *testing.T) {
	gate := AccessGate([]string{"secret"}, nil)
	h := gate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(HeaderAPIKey, "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
}

func TestAccessGate_WrongKeyRefused(t *testing.T) {
	gate := AccessGate([]string{"secret"}, nil)
	h := gate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(HeaderAPIKey, "guess")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong key, got %d", w.Code)
	}
}

func TestAccessGate_AllowedOriginOpensGatedRoute(t *testing.T) {
	gate := AccessGate(nil, []string{"https://app.example.com"})
	h := gate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with allowed origin, got %d", w.Code)
	}
}

func TestAccessGate_RefererFallback(t *testing.T) {
	gate := AccessGate(nil, []string{"https://app.example.com"})
	h := gate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Referer", "https://app.example.com/watch?v=123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with allowed referer, got %d", w.Code)
	}
}

func TestKeyValid_EmptyHeaderNeverMatches(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if KeyValid(req, []string{""}) {
		t.Error("empty presented key must not match an empty configured key")
	}
}
