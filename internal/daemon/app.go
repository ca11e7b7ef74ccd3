// SPDX-License-Identifier: MIT

// Package daemon owns the serve lifecycle: listeners, background
// subsystems and the graceful shutdown chain.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mediagate/mediagate/internal/cookies"
	"github.com/mediagate/mediagate/internal/registry"
)

// App runs the long-lived subsystems (cookie watcher, registry sweeper,
// reload signal) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cookies      *cookies.Store
	registry     *registry.Registry
	reloadSignal os.Signal
}

// NewApp wires the runtime orchestrator. cookieStore and reg may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cookieStore *cookies.Store, reg *registry.Registry) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cookies:      cookieStore,
		registry:     reg,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts the owned subsystems and blocks until ctx is cancelled or a
// fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Cookie watcher is best-effort: a failed watch means edits need a
	// SIGHUP instead.
	if a.cookies != nil {
		if err := a.cookies.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "cookies.watcher_start_failed").
				Msg("failed to start cookie watcher")
		}
	}

	// Registry sweeper stops via ctx.
	if a.registry != nil {
		a.registry.Start(ctx)
	}

	// SIGHUP rescans the cookie directory.
	if a.cookies != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "cookies.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, rescanning cookies")
					a.cookies.Reload()
				}
			}
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// WaitForShutdown returns a context cancelled by SIGINT or SIGTERM.
func WaitForShutdown() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
