// SPDX-License-Identifier: MIT

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/log"
	"github.com/mediagate/mediagate/internal/mux"
)

// PerformStartupChecks validates the environment before the listeners open.
// Hard failures stop the boot; missing optional binaries only warn, the
// affected endpoints degrade at runtime instead.
func PerformStartupChecks(cfg *config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddrs(logger, cfg); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if err := checkServiceURLs(logger, cfg); err != nil {
		return fmt.Errorf("service URL check failed: %w", err)
	}
	if err := checkStorage(logger, cfg); err != nil {
		return fmt.Errorf("storage check failed: %w", err)
	}
	checkBinaries(logger, cfg)

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddrs(logger zerolog.Logger, cfg *config.Config) error {
	for _, addr := range []string{cfg.ListenAddr, cfg.MetricsAddr} {
		if addr == "" {
			continue
		}
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid listen port %q in %q", port, addr)
		}
	}
	logger.Info().Str("addr", cfg.ListenAddr).Msg("listen addresses are valid")
	return nil
}

func checkServiceURLs(logger zerolog.Logger, cfg *config.Config) error {
	if cfg.Profile == config.ProfileFull && cfg.WrapperURL == "" {
		logger.Warn().Msg("no wrapper service configured; bridged platforms are disabled")
	}
	for name, raw := range map[string]string{
		"PYTHON_API_URL": cfg.WrapperURL,
		"TIKTOK_API_URL": cfg.TikTokAPIURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s scheme must be http or https, got %q", name, u.Scheme)
		}
	}
	return nil
}

func checkStorage(logger zerolog.Logger, cfg *config.Config) error {
	if cfg.RegistryBackend == "badger" {
		if err := ensureWritableDir(cfg.RegistryDir); err != nil {
			return fmt.Errorf("registry directory: %w", err)
		}
		warnIfUnderTemp(logger, "registry directory", cfg.RegistryDir)
		logger.Info().Str("path", cfg.RegistryDir).Msg("registry directory is writable")
	}
	if cfg.HistoryDB != "" {
		if err := ensureWritableDir(filepath.Dir(cfg.HistoryDB)); err != nil {
			return fmt.Errorf("history database directory: %w", err)
		}
	}
	if cfg.CookiesDir != "" {
		info, err := os.Stat(cfg.CookiesDir)
		switch {
		case err != nil:
			logger.Warn().Str("path", cfg.CookiesDir).Err(err).
				Msg("cookies directory unreadable; authenticated extraction disabled")
		case !info.IsDir():
			return fmt.Errorf("cookies path is not a directory: %s", cfg.CookiesDir)
		}
	}
	return nil
}

// checkBinaries never fails the boot. The conversion endpoints answer 501
// without a muxer and the download fast path falls back to proxying.
func checkBinaries(logger zerolog.Logger, cfg *config.Config) {
	switch bin := cfg.MuxerPath; {
	case bin != "":
		if _, err := os.Stat(bin); err != nil {
			logger.Warn().Str("path", bin).Err(err).
				Msg("configured muxer binary missing; conversion endpoints will answer 501")
		} else {
			logger.Info().Str("muxer", bin).Msg("muxer binary available")
		}
	default:
		if found, err := mux.Lookup(); err != nil {
			logger.Warn().Msg("no muxer binary found; conversion endpoints will answer 501")
		} else {
			logger.Info().Str("muxer", found).Msg("muxer binary available")
		}
	}

	ytBin := cfg.YTDLPPath
	if ytBin == "" {
		ytBin = "yt-dlp"
	}
	if _, err := exec.LookPath(ytBin); err != nil {
		logger.Debug().Str("bin", ytBin).Msg("yt-dlp not found; download fast path disabled")
	}
}

func ensureWritableDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}

func warnIfUnderTemp(logger zerolog.Logger, what, path string) {
	tempDir := filepath.Clean(os.TempDir())
	dir := filepath.Clean(path)
	if tempDir != "." && (dir == tempDir || strings.HasPrefix(dir, tempDir+string(filepath.Separator))) {
		logger.Warn().Str("path", path).
			Msgf("%s is under temp; stored URLs may be lost on reboot", what)
	}
}
