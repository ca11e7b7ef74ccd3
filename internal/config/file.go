// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Durations accept Go syntax
// ("30s") and bare seconds; pointer fields distinguish "absent" from zero.
type fileConfig struct {
	ListenAddr  *string `yaml:"listenAddr"`
	MetricsAddr *string `yaml:"metricsAddr"`
	LogLevel    *string `yaml:"logLevel"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	APIKeys        []string `yaml:"apiKeys"`

	Profile          *string `yaml:"profile"`
	WrapperURL       *string `yaml:"wrapperUrl"`
	WrapperURLPublic *string `yaml:"wrapperUrlPublic"`

	RateLimitEnabled *bool     `yaml:"rateLimitEnabled"`
	RateLimitMax     *int      `yaml:"rateLimitMax"`
	RateLimitWindow  *duration `yaml:"rateLimitWindow"`
	ExtractRateMax   *int      `yaml:"extractRateMax"`

	RequestTimeout *duration `yaml:"requestTimeout"`

	Cookies    map[string]string `yaml:"cookies"`
	CookiesDir *string           `yaml:"cookiesDir"`

	RegistryBackend       *string   `yaml:"registryBackend"`
	RegistryTTL           *duration `yaml:"registryTTL"`
	RegistryRedisAddr     *string   `yaml:"registryRedisAddr"`
	RegistryRedisPassword *string   `yaml:"registryRedisPassword"`
	RegistryRedisDB       *int      `yaml:"registryRedisDB"`
	RegistryDir           *string   `yaml:"registryDir"`

	HistoryDB *string `yaml:"historyDB"`

	MuxerPath    *string   `yaml:"muxerPath"`
	MuxerTimeout *duration `yaml:"muxerTimeout"`
	YTDLPPath    *string   `yaml:"ytdlpPath"`

	TraceEndpoint *string  `yaml:"traceEndpoint"`
	TraceExporter *string  `yaml:"traceExporter"`
	TraceSample   *float64 `yaml:"traceSample"`
}

type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		var secs int
		if err2 := node.Decode(&secs); err2 == nil && secs > 0 {
			*d = duration(time.Duration(secs) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = duration(parsed)
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *duration) {
		if src != nil {
			*dst = time.Duration(*src)
		}
	}

	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.APIKeys != nil {
		cfg.APIKeys = fc.APIKeys
	}
	if fc.Profile != nil {
		cfg.Profile = Profile(*fc.Profile)
	}
	setString(&cfg.WrapperURL, fc.WrapperURL)
	setString(&cfg.WrapperURLPublic, fc.WrapperURLPublic)
	if fc.RateLimitEnabled != nil {
		cfg.RateLimitEnabled = *fc.RateLimitEnabled
	}
	if fc.RateLimitMax != nil {
		cfg.RateLimitMax = *fc.RateLimitMax
	}
	setDur(&cfg.RateLimitWindow, fc.RateLimitWindow)
	if fc.ExtractRateMax != nil {
		cfg.ExtractRateMax = *fc.ExtractRateMax
	}
	setDur(&cfg.RequestTimeout, fc.RequestTimeout)
	for platform, cookie := range fc.Cookies {
		cfg.Cookies[platform] = cookie
	}
	setString(&cfg.CookiesDir, fc.CookiesDir)
	setString(&cfg.RegistryBackend, fc.RegistryBackend)
	setDur(&cfg.RegistryTTL, fc.RegistryTTL)
	setString(&cfg.RegistryRedisAddr, fc.RegistryRedisAddr)
	setString(&cfg.RegistryRedisPassword, fc.RegistryRedisPassword)
	if fc.RegistryRedisDB != nil {
		cfg.RegistryRedisDB = *fc.RegistryRedisDB
	}
	setString(&cfg.RegistryDir, fc.RegistryDir)
	setString(&cfg.HistoryDB, fc.HistoryDB)
	setString(&cfg.MuxerPath, fc.MuxerPath)
	setDur(&cfg.MuxerTimeout, fc.MuxerTimeout)
	setString(&cfg.YTDLPPath, fc.YTDLPPath)
	setString(&cfg.TraceEndpoint, fc.TraceEndpoint)
	setString(&cfg.TraceExporter, fc.TraceExporter)
	if fc.TraceSample != nil {
		cfg.TraceSample = *fc.TraceSample
	}
	return nil
}
