// SPDX-License-Identifier: MIT

package config

import "time"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout bounds response writes; 0 means no timeout, which the
	// streaming endpoints require.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes caps the request header size
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

const (
	defaultReadTimeout     = 60 * time.Second
	defaultWriteTimeout    = 0 // streaming and muxed responses have no bound
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultShutdownTimeout = 15 * time.Second
)

// ParseServerConfig reads server tuning from the environment around the
// resolved listen address.
func ParseServerConfig(listenAddr string) ServerConfig {
	cfg := ServerConfig{
		ListenAddr:      listenAddr,
		ReadTimeout:     ParseDuration("SERVER_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout:    ParseDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
		IdleTimeout:     ParseDuration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		MaxHeaderBytes:  ParseInt("SERVER_MAX_HEADER_BYTES", defaultMaxHeaderBytes),
		ShutdownTimeout: ParseDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.ShutdownTimeout < 3*time.Second {
		cfg.ShutdownTimeout = 3 * time.Second
	}
	return cfg
}
