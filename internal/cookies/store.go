// SPDX-License-Identifier: MIT

package cookies

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Env maps platform name to raw cookie material as configured. A value
	// may be the cookie content itself (any supported format) or a path to
	// a file holding it.
	Env map[string]string
	// Dir, when set, is scanned for per-platform cookie files named
	// <platform>.<ext>. Files there win over Env values and are reloaded
	// when the directory changes.
	Dir       string
	Platforms []string
	Logger    zerolog.Logger
}

// Store holds canonical server-side cookies per platform. Reads are cheap
// and concurrent; reloads swap the whole map under a write lock.
type Store struct {
	mu        sync.RWMutex
	byPlat    map[string]string
	env       map[string]string
	dir       string
	platforms []string
	watcher   *fsnotify.Watcher
	logger    zerolog.Logger
}

// NewStore builds a store and performs the initial load. Missing or broken
// sources leave the platform without a cookie rather than failing startup.
func NewStore(opts StoreOptions) *Store {
	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = []string{"twitter", "instagram", "facebook", "pixiv"}
	}
	s := &Store{
		byPlat:    map[string]string{},
		env:       opts.Env,
		dir:       opts.Dir,
		platforms: platforms,
		logger:    opts.Logger,
	}
	s.Reload()
	return s
}

// Get returns the canonical cookie header for a platform, or "".
func (s *Store) Get(platform string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byPlat[strings.ToLower(platform)]
}

// Loaded lists the platforms that currently have a cookie.
func (s *Store) Loaded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byPlat))
	for _, p := range s.platforms {
		if s.byPlat[p] != "" {
			out = append(out, p)
		}
	}
	return out
}

// Reload re-reads every source. Environment values load first, then files
// from the cookie directory override them.
func (s *Store) Reload() {
	next := make(map[string]string, len(s.platforms))
	for _, platform := range s.platforms {
		if raw := s.env[platform]; raw != "" {
			next[platform] = Canonical(resolveMaterial(raw))
		}
	}
	if s.dir != "" {
		s.loadDir(next)
	}
	s.mu.Lock()
	s.byPlat = next
	s.mu.Unlock()

	for platform, v := range next {
		if v != "" {
			s.logger.Debug().Str("platform", platform).Int("pairs", strings.Count(v, "=")).Msg("server cookie loaded")
		}
	}
}

func (s *Store) loadDir(dst map[string]string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", s.dir).Msg("cookie directory unreadable")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if !s.knownPlatform(base) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name())) // #nosec G304
		if err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("cookie file unreadable")
			continue
		}
		if canonical := Canonical(string(data)); canonical != "" {
			dst[base] = canonical
		}
	}
}

func (s *Store) knownPlatform(name string) bool {
	for _, p := range s.platforms {
		if p == name {
			return true
		}
	}
	return false
}

// resolveMaterial treats a configured value as a file path when it names a
// readable file, otherwise as the cookie content itself.
func resolveMaterial(raw string) string {
	if strings.ContainsAny(raw, "=\t\n") {
		return raw
	}
	if info, err := os.Stat(raw); err == nil && !info.IsDir() {
		if data, err := os.ReadFile(raw); err == nil { // #nosec G304
			return string(data)
		}
	}
	return raw
}

// StartWatcher watches the cookie directory and reloads on change. A no-op
// when no directory is configured.
func (s *Store) StartWatcher(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch cookie dir %s: %w", s.dir, err)
	}
	s.watcher = watcher
	s.logger.Info().Str("dir", s.dir).Msg("watching cookie directory")
	go s.watchLoop(ctx)
	return nil
}

func (s *Store) watchLoop(ctx context.Context) {
	// Debounce so editors that write in several steps trigger one reload.
	var debounce *time.Timer
	const settle = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = s.watcher.Close()
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(settle, func() {
					s.logger.Info().Str("op", event.Op.String()).Msg("cookie directory changed, reloading")
					s.Reload()
				})
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("cookie watcher error")
		}
	}
}

// Stop closes the directory watcher if one is running.
func (s *Store) Stop() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}
