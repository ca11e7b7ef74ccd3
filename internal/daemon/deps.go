// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the manager's injected dependencies.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler serves the gateway routes.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on its own listener.
	// Nil or an empty MetricsAddr disables the metrics server.
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Validate checks the dependencies before the manager starts.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
