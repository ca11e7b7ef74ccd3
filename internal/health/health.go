// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness probes. Liveness only
// proves the process is serving; readiness aggregates component checkers
// (muxer binary, extraction service, URL registry backend) so orchestrators
// hold traffic until the gateway can actually deliver.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/log"
)

// Status grades a component check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LivenessResponse is the /health body.
type LivenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse is the /ready body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one readiness component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a component. Not safe to call once serving started.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Ready runs every checker. Ready is false only when a component is
// unhealthy; degraded components keep serving traffic.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	}
	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	hasUnhealthy := false
	hasDegraded := false
	for _, c := range m.checkers {
		result := c.Check(ctx)
		resp.Checks[c.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}
	return resp
}

// ServeHealth answers the liveness probe. Always 200: reaching this handler
// is the proof of life.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(LivenessResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		logger := log.WithComponent("health")
		logger.Error().Err(err).Msg("encode liveness response")
	}
}

// ServeReady answers the readiness probe with 200 or 503.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("health")
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("encode readiness response")
	}

	logger.Debug().
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// MuxerChecker reports whether the conversion binary was discovered. A
// missing muxer only degrades: extraction and plain proxying still work,
// the conversion endpoints answer 501.
type MuxerChecker struct {
	available func() bool
}

func NewMuxerChecker(available func() bool) *MuxerChecker {
	return &MuxerChecker{available: available}
}

func (c *MuxerChecker) Name() string { return "muxer" }

func (c *MuxerChecker) Check(context.Context) CheckResult {
	if c.available() {
		return CheckResult{Status: StatusHealthy, Message: "muxer binary discovered"}
	}
	return CheckResult{
		Status:  StatusDegraded,
		Message: "no muxer binary, conversion endpoints disabled",
	}
}

// ServiceChecker probes a sibling HTTP service's health endpoint. An
// unreachable service degrades: only its bridged platforms are affected.
type ServiceChecker struct {
	name   string
	url    string
	client *fetch.Client
}

func NewServiceChecker(name, healthURL string, client *fetch.Client) *ServiceChecker {
	return &ServiceChecker{name: name, url: healthURL, client: client}
}

func (c *ServiceChecker) Name() string { return c.name }

func (c *ServiceChecker) Check(ctx context.Context) CheckResult {
	_, err := c.client.FetchText(ctx, c.url, fetch.Options{Timeout: 3 * time.Second})
	if err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "service unreachable",
			Error:   err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "service reachable"}
}

// RegistryChecker pings the URL registry backend. Without the registry no
// delivery endpoint can resolve fingerprints, so failure is unhealthy.
type RegistryChecker struct {
	count func(ctx context.Context) (int, error)
}

func NewRegistryChecker(count func(ctx context.Context) (int, error)) *RegistryChecker {
	return &RegistryChecker{count: count}
}

func (c *RegistryChecker) Name() string { return "registry" }

func (c *RegistryChecker) Check(ctx context.Context) CheckResult {
	n, err := c.count(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "registry backend unreachable",
			Error:   err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d entries", n)}
}
