// SPDX-License-Identifier: MIT

// Package config resolves gateway configuration with the precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"time"
)

// Profile selects the deployment mode. Under ProfileVercel the wrapper-backed
// platforms are not routable and yield PLATFORM_UNAVAILABLE_ON_DEPLOYMENT.
type Profile string

const (
	ProfileVercel Profile = "vercel"
	ProfileFull   Profile = "full"
)

// CookiePlatforms are the platforms for which a server-side (Tier B) cookie
// can be configured, via <PLATFORM>_COOKIE or a COOKIES_DIR file.
var CookiePlatforms = []string{"twitter", "instagram", "facebook", "pixiv"}

// Config is the resolved gateway configuration. It is read-only after Load.
type Config struct {
	ListenAddr  string `yaml:"listenAddr"`
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
	Version     string `yaml:"-"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	APIKeys        []string `yaml:"apiKeys"`

	Profile          Profile `yaml:"profile"`
	WrapperURL       string  `yaml:"wrapperUrl"`
	WrapperURLPublic string  `yaml:"wrapperUrlPublic"`
	TikTokAPIURL     string  `yaml:"tiktokApiUrl"`

	RateLimitEnabled bool          `yaml:"rateLimitEnabled"`
	RateLimitMax     int           `yaml:"rateLimitMax"`
	RateLimitWindow  time.Duration `yaml:"rateLimitWindow"`
	ExtractRateMax   int           `yaml:"extractRateMax"`

	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Cookies maps platform name to the raw Tier B cookie material
	// (either a cookie string or a path to a cookie file).
	Cookies    map[string]string `yaml:"cookies"`
	CookiesDir string            `yaml:"cookiesDir"`

	RegistryBackend       string        `yaml:"registryBackend"`
	RegistryTTL           time.Duration `yaml:"registryTTL"`
	RegistryRedisAddr     string        `yaml:"registryRedisAddr"`
	RegistryRedisPassword string        `yaml:"registryRedisPassword"`
	RegistryRedisDB       int           `yaml:"registryRedisDB"`
	RegistryDir           string        `yaml:"registryDir"`

	HistoryDB string `yaml:"historyDB"`

	// ResultCacheTTL is how long extraction envelopes may be served from
	// cache. Zero disables the cache.
	ResultCacheTTL time.Duration `yaml:"resultCacheTTL"`

	MuxerPath    string        `yaml:"muxerPath"`
	MuxerTimeout time.Duration `yaml:"muxerTimeout"`
	YTDLPPath    string        `yaml:"ytdlpPath"`
	YTDLPTimeout time.Duration `yaml:"ytdlpTimeout"`

	TraceEndpoint string  `yaml:"traceEndpoint"`
	TraceExporter string  `yaml:"traceExporter"`
	TraceSample   float64 `yaml:"traceSample"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		Profile:          ProfileFull,
		WrapperURL:       "http://127.0.0.1:5000",
		TikTokAPIURL:     "http://127.0.0.1:3035/api/hybrid/video_data",
		RateLimitEnabled: true,
		RateLimitMax:     100,
		RateLimitWindow:  60 * time.Second,
		ExtractRateMax:   10,
		RequestTimeout:   30 * time.Second,
		Cookies:          map[string]string{},
		RegistryBackend:  "memory",
		RegistryTTL:      5 * time.Minute,
		ResultCacheTTL:   5 * time.Minute,
		MuxerTimeout:     60 * time.Second,
		YTDLPPath:        "yt-dlp",
		YTDLPTimeout:     3 * time.Minute,
		TraceExporter:    "grpc",
		TraceSample:      1.0,
	}
}

// Load resolves the configuration. When path is non-empty the YAML file is
// applied over the defaults before the environment overrides both.
func Load(path, version string) (*Config, error) {
	cfg := Defaults()
	cfg.Version = version

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Each helper call uses the
// current value as the fallback, which yields ENV > file > defaults.
func applyEnv(cfg *Config) {
	cfg.ListenAddr = ParseString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = ParseString("LOG_LEVEL", cfg.LogLevel)

	cfg.AllowedOrigins = ParseList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.APIKeys = ParseList("API_KEYS", cfg.APIKeys)

	cfg.Profile = Profile(ParseString("EXTRACTOR_PROFILE", string(cfg.Profile)))
	// The bridge target prefers the private address over the public one.
	if v := ParseString("PYTHON_API_URL", ""); v != "" {
		cfg.WrapperURL = v
	} else if v := ParseString("PYTHON_API_URL_PUBLIC", ""); v != "" {
		cfg.WrapperURL = v
	}
	cfg.WrapperURLPublic = ParseString("PYTHON_API_URL_PUBLIC", cfg.WrapperURLPublic)
	cfg.TikTokAPIURL = ParseString("TIKTOK_API_URL", cfg.TikTokAPIURL)

	cfg.RateLimitEnabled = ParseBool("RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitMax = ParseInt("RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.RateLimitWindow = ParseDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.ExtractRateMax = ParseInt("EXTRACT_RATE_MAX", cfg.ExtractRateMax)

	cfg.RequestTimeout = ParseDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)

	if cfg.Cookies == nil {
		cfg.Cookies = map[string]string{}
	}
	for _, platform := range CookiePlatforms {
		key, hasKey := cookieEnvKey(platform)
		if !hasKey {
			continue
		}
		if v := ParseString(key, cfg.Cookies[platform]); v != "" {
			cfg.Cookies[platform] = v
		}
	}
	cfg.CookiesDir = ParseString("COOKIES_DIR", cfg.CookiesDir)

	cfg.RegistryBackend = ParseString("REGISTRY_BACKEND", cfg.RegistryBackend)
	cfg.RegistryTTL = ParseDuration("REGISTRY_TTL", cfg.RegistryTTL)
	cfg.RegistryRedisAddr = ParseString("REGISTRY_REDIS_ADDR", cfg.RegistryRedisAddr)
	cfg.RegistryRedisPassword = ParseString("REGISTRY_REDIS_PASSWORD", cfg.RegistryRedisPassword)
	cfg.RegistryRedisDB = ParseInt("REGISTRY_REDIS_DB", cfg.RegistryRedisDB)
	cfg.RegistryDir = ParseString("REGISTRY_DIR", cfg.RegistryDir)

	cfg.HistoryDB = ParseString("HISTORY_DB", cfg.HistoryDB)

	cfg.ResultCacheTTL = ParseDuration("RESULT_CACHE_TTL", cfg.ResultCacheTTL)

	cfg.MuxerPath = ParseString("MUXER_PATH", cfg.MuxerPath)
	cfg.MuxerTimeout = ParseDuration("MUXER_TIMEOUT", cfg.MuxerTimeout)
	cfg.YTDLPPath = ParseString("YTDLP_PATH", cfg.YTDLPPath)
	cfg.YTDLPTimeout = ParseDuration("YTDLP_TIMEOUT", cfg.YTDLPTimeout)

	cfg.TraceEndpoint = ParseString("TRACE_ENDPOINT", cfg.TraceEndpoint)
	cfg.TraceExporter = ParseString("TRACE_EXPORTER", cfg.TraceExporter)
	cfg.TraceSample = ParseFloat("TRACE_SAMPLE", cfg.TraceSample)
}

func cookieEnvKey(platform string) (string, bool) {
	switch platform {
	case "twitter":
		return "TWITTER_COOKIE", true
	case "instagram":
		return "INSTAGRAM_COOKIE", true
	case "facebook":
		return "FACEBOOK_COOKIE", true
	case "pixiv":
		return "PIXIV_COOKIE", true
	}
	return "", false
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileVercel, ProfileFull:
	default:
		return fmt.Errorf("EXTRACTOR_PROFILE must be %q or %q, got %q", ProfileVercel, ProfileFull, c.Profile)
	}

	switch c.RegistryBackend {
	case "memory":
	case "redis":
		if c.RegistryRedisAddr == "" {
			return fmt.Errorf("REGISTRY_BACKEND=redis requires REGISTRY_REDIS_ADDR")
		}
	case "badger":
		if c.RegistryDir == "" {
			return fmt.Errorf("REGISTRY_BACKEND=badger requires REGISTRY_DIR")
		}
	default:
		return fmt.Errorf("REGISTRY_BACKEND must be memory, redis or badger, got %q", c.RegistryBackend)
	}

	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.RegistryTTL <= 0 {
		return fmt.Errorf("REGISTRY_TTL must be positive, got %s", c.RegistryTTL)
	}
	if c.ResultCacheTTL < 0 {
		return fmt.Errorf("RESULT_CACHE_TTL must not be negative, got %s", c.ResultCacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.TraceSample < 0 || c.TraceSample > 1 {
		return fmt.Errorf("TRACE_SAMPLE must be within [0,1], got %g", c.TraceSample)
	}
	return nil
}

// ServerCookie returns the configured Tier B cookie material for a platform.
func (c *Config) ServerCookie(platform string) string {
	return c.Cookies[platform]
}
