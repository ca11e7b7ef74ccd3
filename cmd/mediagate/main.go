// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediagate/mediagate/internal/api"
	"github.com/mediagate/mediagate/internal/cache"
	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/cookies"
	"github.com/mediagate/mediagate/internal/daemon"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/extract/facebook"
	"github.com/mediagate/mediagate/internal/extract/instagram"
	"github.com/mediagate/mediagate/internal/extract/pixiv"
	"github.com/mediagate/mediagate/internal/extract/tiktok"
	"github.com/mediagate/mediagate/internal/extract/twitter"
	"github.com/mediagate/mediagate/internal/extract/wrapper"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/health"
	"github.com/mediagate/mediagate/internal/history"
	"github.com/mediagate/mediagate/internal/log"
	"github.com/mediagate/mediagate/internal/media"
	"github.com/mediagate/mediagate/internal/mux"
	"github.com/mediagate/mediagate/internal/registry"
	"github.com/mediagate/mediagate/internal/telemetry"
	"github.com/mediagate/mediagate/internal/ytdlp"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "mediagate",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(strings.TrimSpace(*configPath), version)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "mediagate",
		Version: cfg.Version,
	})

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Str("profile", string(cfg.Profile)).
		Msg("starting mediagate")

	// Tracing goes first so every later constructor sees the global provider.
	tele, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TraceEndpoint != "",
		ServiceName:    "mediagate",
		ServiceVersion: version,
		Environment:    string(cfg.Profile),
		ExporterType:   cfg.TraceExporter,
		Endpoint:       cfg.TraceEndpoint,
		SamplingRate:   cfg.TraceSample,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialise tracing")
	}

	client := fetch.New(fetch.Config{
		Timeout: cfg.RequestTimeout,
		Logger:  log.WithComponent("fetch"),
	})

	cookieStore := cookies.NewStore(cookies.StoreOptions{
		Env:    cfg.Cookies,
		Dir:    cfg.CookiesDir,
		Logger: log.WithComponent("cookies"),
	})

	reg, err := registry.Open(registry.Options{
		Backend:       cfg.RegistryBackend,
		TTL:           cfg.RegistryTTL,
		RedisAddr:     cfg.RegistryRedisAddr,
		RedisPassword: cfg.RegistryRedisPassword,
		RedisDB:       cfg.RegistryRedisDB,
		Dir:           cfg.RegistryDir,
		Logger:        log.WithComponent("registry"),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "registry.open_failed").
			Str("backend", cfg.RegistryBackend).
			Msg("failed to open url registry")
	}

	var hist *history.Store
	if cfg.HistoryDB != "" {
		hist, err = history.Open(cfg.HistoryDB, log.WithComponent("history"))
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event", "history.open_failed").
				Str("path", cfg.HistoryDB).
				Msg("extraction history disabled")
			hist = nil
		}
	}

	muxer := mux.New(mux.Config{
		BinPath: cfg.MuxerPath,
		Timeout: cfg.MuxerTimeout,
		Logger:  log.WithComponent("mux"),
	})
	downloader := ytdlp.New(ytdlp.Config{
		BinPath: cfg.YTDLPPath,
		Timeout: cfg.YTDLPTimeout,
		Logger:  log.WithComponent("ytdlp"),
	})

	env := extract.Env{
		Client:  client,
		Cookies: cookieStore,
		Logger:  log.WithComponent("extract"),
	}
	native := []extract.Extractor{
		facebook.New(env),
		instagram.New(env),
		tiktok.New(env, cfg.TikTokAPIURL),
		twitter.New(env),
		pixiv.New(env),
	}
	var bridged extract.Extractor
	if cfg.WrapperURL != "" {
		bridged = wrapper.New(env, cfg.WrapperURL)
	}
	extractors := extract.NewRegistry(cfg.Profile, env, native, bridged)

	var results cache.Cache[extract.Result]
	var resultsMem *cache.Memory[extract.Result]
	if cfg.ResultCacheTTL > 0 {
		resultsMem = cache.NewMemory[extract.Result](time.Minute)
		results = resultsMem
	}

	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewMuxerChecker(muxer.Available))
	healthMgr.RegisterChecker(health.NewRegistryChecker(reg.Ping))
	if cfg.Profile == config.ProfileFull && cfg.WrapperURL != "" {
		healthMgr.RegisterChecker(health.NewServiceChecker(
			"wrapper", strings.TrimRight(cfg.WrapperURL, "/")+"/health", client))
	}

	srv, err := api.New(api.Deps{
		Config:     cfg,
		Logger:     log.WithComponent("api"),
		Extractor:  extractors,
		Normalizer: media.NewNormalizer(reg, log.WithComponent("normalizer")),
		Registry:   reg,
		Client:     client,
		Muxer:      muxer,
		Health:     healthMgr,
		Results:    results,
		History:    hist,
		Downloader: downloader,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.build_failed").
			Msg("failed to build api server")
	}

	logger.Info().Msgf("→ Platforms: %s", strings.Join(extractors.SupportedPlatforms(), ", "))
	logger.Info().Msgf("→ Registry: %s (TTL %s)", cfg.RegistryBackend, cfg.RegistryTTL)
	if loaded := cookieStore.Loaded(); len(loaded) > 0 {
		logger.Info().Msgf("→ Cookies: %s", strings.Join(loaded, ", "))
	} else {
		logger.Info().Msg("→ Cookies: none (guest-tier extraction only)")
	}
	if len(cfg.APIKeys) > 0 {
		logger.Info().Msg("→ API keys: configured")
	} else {
		logger.Warn().Msg("→ API keys: NOT configured, keyed endpoints need ALLOWED_ORIGINS callers")
	}
	if !muxer.Available() {
		logger.Warn().Msg("→ Muxer: missing, conversion endpoints answer 501")
	}

	serverCfg := config.ParseServerConfig(cfg.ListenAddr)

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    strings.TrimSpace(cfg.MetricsAddr),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Hooks run LIFO: caches and stores close before the trace flush.
	mgr.RegisterShutdownHook("telemetry", tele.Shutdown)
	mgr.RegisterShutdownHook("registry", func(context.Context) error { return reg.Close() })
	if hist != nil {
		mgr.RegisterShutdownHook("history", func(context.Context) error { return hist.Close() })
	}
	if resultsMem != nil {
		mgr.RegisterShutdownHook("result-cache", func(context.Context) error { return resultsMem.Close() })
	}
	mgr.RegisterShutdownHook("cookies", func(context.Context) error { cookieStore.Stop(); return nil })

	app := daemon.NewApp(logger, mgr, cookieStore, reg)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
