// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/config"
	"github.com/olegiv/socmon/internal/geoip"
	"github.com/olegiv/socmon/internal/handler"
	"github.com/olegiv/socmon/internal/logging"
	"github.com/olegiv/socmon/internal/metrics"
	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/notify"
	"github.com/olegiv/socmon/internal/render"
	"github.com/olegiv/socmon/internal/scheduler"
	"github.com/olegiv/socmon/internal/service"
	"github.com/olegiv/socmon/internal/session"
	"github.com/olegiv/socmon/internal/store"
	"github.com/olegiv/socmon/internal/version"
	"github.com/olegiv/socmon/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// geoIPReloadSchedule picks up monthly GeoLite2 updates.
const geoIPReloadSchedule = "30 3 * * *"

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "socmon - login monitoring with brute-force detection\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_SESSION_SECRET         CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_DB_PATH                SQLite database path (default: ./data/socmon.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_SERVER_PORT            Server port (default: 3000)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_ENV                    Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_BRUTE_FORCE_THRESHOLD  Failed logins that open an incident (default: 3)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_ADMIN_PASSWORD         Seed an admin account when set\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_WEBHOOK_URL            Incident webhook endpoint (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SOCMON_REDIS_URL              Redis URL for incident pub/sub (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	slog.Info("starting", "version", info.Version, "commit", info.GitCommit, "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st := store.NewSQLStore(db)

	// Metrics
	var (
		appMetrics *metrics.Metrics
		svcMetrics service.Metrics
		observer   notify.DeliveryObserver
	)
	if cfg.MetricsEnabled {
		appMetrics, err = metrics.New(metrics.Options{
			Registerer: prometheus.DefaultRegisterer,
			Gatherer:   prometheus.DefaultGatherer,
		})
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		svcMetrics, observer = appMetrics, appMetrics
	}

	// GeoIP
	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("geoip disabled", "error", err)
		geo, _ = geoip.Open("")
	}
	defer func() { _ = geo.Close() }()

	// Notification sinks
	var sinks []notify.Sink
	if cfg.WebhookEnabled() {
		sinks = append(sinks, notify.NewWebhookSink(notify.WebhookConfig{
			URL:        cfg.WebhookURL,
			Secret:     cfg.WebhookSecret,
			MaxRetries: 3,
		}))
		slog.Info("incident webhook enabled")
	}
	if cfg.RedisEnabled() {
		redisSink, err := notify.NewRedisSink(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			slog.Warn("redis notifications disabled", "error", err)
		} else {
			defer func() { _ = redisSink.Close() }()
			sinks = append(sinks, redisSink)
			slog.Info("redis notifications enabled", "channel", cfg.RedisChannel)
		}
	}
	dispatcher := notify.NewDispatcher(sinks, geo, observer, logger, notify.DefaultConfig())
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Stop()

	// Credentials
	creds := auth.NewCredentials(st, auth.NewArgon2Hasher(auth.DefaultArgon2Params), logger)
	if err := creds.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	// Sessions and services
	sessionManager := session.New(db, cfg.IsDevelopment())
	alerts := session.NewAlerts(sessionManager)

	attempts := service.NewAttemptLogger(st, svcMetrics, logger)
	detector := service.NewDetector(st, service.DetectorConfig{
		Threshold:      cfg.BruteForceThreshold,
		ResetOnSuccess: cfg.ResetOnSuccess,
	}, svcMetrics, dispatcher, logger)
	tracker := service.NewIncidentTracker(st, svcMetrics, logger)
	login := service.NewLoginService(creds, attempts, detector, alerts, logger)
	slog.Info("brute-force detector ready", "threshold", detector.Threshold(), "reset_on_success", cfg.ResetOnSuccess)

	// Scheduled jobs
	sched := scheduler.New(logger)
	if cfg.DigestEnabled() {
		if err := sched.Add("incident-digest", cfg.DigestSchedule, scheduler.DigestJob(tracker, dispatcher, logger)); err != nil {
			return err
		}
	}
	if geo.Enabled() {
		if err := sched.Add("geoip-reload", geoIPReloadSchedule, geo.Reload); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// Templates
	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: templatesFS, Alerts: alerts})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	loginProtection := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit: cfg.LoginRateLimit,
		IPBurst:     cfg.LoginBurst,
	})
	defer loginProtection.Close()

	router := handler.NewRouter(handler.RouterConfig{
		SessionManager:  sessionManager,
		Users:           st,
		Auth:            handler.NewAuthHandler(creds, login, renderer, sessionManager),
		Pages:           handler.NewPagesHandler(tracker, renderer),
		Logs:            handler.NewLogsHandler(tracker, geo, renderer),
		Health:          handler.NewHealthHandler(db),
		Metrics:         appMetrics,
		LoginProtection: loginProtection,
		CSRF:            middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr()),
		Security:        middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment()),
		RequestTimeout:  30 * time.Second,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
