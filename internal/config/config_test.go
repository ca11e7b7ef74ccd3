// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Profile != ProfileFull {
		t.Errorf("default profile = %q, want full", cfg.Profile)
	}
	if cfg.WrapperURL != "http://127.0.0.1:5000" {
		t.Errorf("default wrapper URL = %q", cfg.WrapperURL)
	}
	if cfg.RateLimitMax != 100 || cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("rate limit defaults = %d/%s, want 100/60s", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.RegistryTTL != 5*time.Minute {
		t.Errorf("registry TTL default = %s, want 5m", cfg.RegistryTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
listenAddr: ":9999"
profile: vercel
rateLimitMax: 50
rateLimitWindow: 30s
requestTimeout: 10
cookies:
  twitter: "auth_token=abc; ct0=def"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LISTEN_ADDR", ":7777")
	t.Setenv("RATE_LIMIT_MAX", "75")

	cfg, err := Load(path, "test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":7777" {
		t.Errorf("env must beat file: ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.RateLimitMax != 75 {
		t.Errorf("env must beat file: RateLimitMax = %d", cfg.RateLimitMax)
	}
	if cfg.Profile != ProfileVercel {
		t.Errorf("file must beat default: Profile = %q", cfg.Profile)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("file duration not applied: %s", cfg.RateLimitWindow)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("bare-seconds duration not applied: %s", cfg.RequestTimeout)
	}
	if got := cfg.ServerCookie("twitter"); got != "auth_token=abc; ct0=def" {
		t.Errorf("cookie from file = %q", got)
	}
}

func TestLoadRejectsBadProfile(t *testing.T) {
	t.Setenv("EXTRACTOR_PROFILE", "desktop")
	if _, err := Load("", "test"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.RegistryBackend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without addr must fail validation")
	}
	cfg.RegistryRedisAddr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis backend with addr should validate: %v", err)
	}

	cfg = Defaults()
	cfg.RegistryBackend = "badger"
	if err := cfg.Validate(); err == nil {
		t.Error("badger backend without dir must fail validation")
	}
}

func TestParseDurationAcceptsBareSeconds(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "45")
	if got := ParseDuration("REQUEST_TIMEOUT", time.Second); got != 45*time.Second {
		t.Errorf("ParseDuration bare seconds = %s, want 45s", got)
	}

	t.Setenv("REQUEST_TIMEOUT", "2m")
	if got := ParseDuration("REQUEST_TIMEOUT", time.Second); got != 2*time.Minute {
		t.Errorf("ParseDuration go syntax = %s, want 2m", got)
	}
}

func TestParseList(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example ,")
	got := ParseList("ALLOWED_ORIGINS", nil)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("ParseList = %v", got)
	}
}
