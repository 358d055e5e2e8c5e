// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/cache"
	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/config"
	"github.com/ajwan-web/ajwan-admin/internal/handler"
	"github.com/ajwan-web/ajwan-admin/internal/imaging"
	"github.com/ajwan-web/ajwan-admin/internal/logging"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/middleware"
	"github.com/ajwan-web/ajwan-admin/internal/render"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/scheduler"
	"github.com/ajwan-web/ajwan-admin/internal/session"
	"github.com/ajwan-web/ajwan-admin/internal/store"
	"github.com/ajwan-web/ajwan-admin/internal/version"
	"github.com/ajwan-web/ajwan-admin/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	workspaceSweepInterval = 5 * time.Minute
	loginSweepInterval     = 10 * time.Minute
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Ajwan Admin - bilingual content dashboard\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_SESSION_SECRET     Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_CMS_URL            CMS origin (default: http://localhost:1337)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_CMS_API_PATH       CMS REST prefix (default: /api)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_ADMIN_ROLE_ID      CMS role allowed in (default: 3)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_PRIMARY_LOCALE     Primary language (default: en)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_SECONDARY_LOCALE   Secondary language (default: ar-SA)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_DB_PATH            SQLite database path (default: ./data/ajwan-admin.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_SERVER_PORT        Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_ENV                Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AJWAN_REDIS_URL          Redis URL for the role cache (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("ajwan-admin %s\n", version.Info{
			Version:   appVersion,
			GitCommit: appGitCommit,
			BuildTime: appBuildTime,
		})
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	locales, err := cfg.Locales()
	if err != nil {
		return fmt.Errorf("loading locales: %w", err)
	}

	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	consoleHandler := newConsoleHandler(cfg)
	slog.SetDefault(slog.New(consoleHandler))

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Warnings and errors also land in the activity log from here on.
	logger := slog.New(logging.NewEventLogHandler(consoleHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	queries := store.New(db)

	sessionManager := session.New(db, cfg.IsDevelopment())
	sessions := session.NewStore(sessionManager)

	client := cms.New(cms.Config{
		BaseURL:       cfg.CMSURL,
		APIPath:       cfg.CMSAPIPath,
		Timeout:       cfg.CMSTimeout,
		UploadTimeout: cfg.CMSUploadTimeout,
		Logger:        logger,
	}, sessions)
	slog.Info("cms client configured", "url", cfg.CMSURL, "api_path", cfg.CMSAPIPath)

	roleStore, backend := cache.NewCache(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.RoleCacheTTL,
		MaxSize:    cfg.CacheMaxSize,
	}, logger)
	defer func() { _ = roleStore.Close() }()
	roles := cache.NewRoleCache(roleStore, cfg.RoleCacheTTL)
	slog.Info("role cache initialized", "backend", backend, "ttl", cfg.RoleCacheTTL.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := admin.NewRegistry(admin.Config{
		Deps: resource.Deps{
			API:         client,
			Activity:    store.NewActivityLog(db, sessions.Username),
			Locales:     locales,
			Normalizer:  media.NewNormalizer(client.Origin()),
			Logger:      logger,
			MaxFileSize: cfg.MaxUploadBytes,
		},
		Idle:   cfg.WorkspaceIdle,
		Logger: logger,
	})
	registry.WatchExpiry(sessions)
	go registry.Run(ctx, workspaceSweepInterval)

	loginProtection := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		MaxFailedAttempts: cfg.LoginMaxAttempts,
		LockoutDuration:   time.Duration(cfg.LoginLockoutMinutes) * time.Minute,
	})
	go loginProtection.Run(ctx, loginSweepInterval)

	sched := scheduler.New(logger)
	if err := sched.Add(scheduler.PruneEventsJob(queries, cfg.EventRetention(), logger)); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS: templatesFS,
		Flashes:     sessions,
		Locales:     locales,
		IsDev:       cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	base := handler.Base{Renderer: renderer, Sessions: sessions, Registry: registry, Locales: locales}
	handlers := handler.Handlers{
		Auth: handler.NewAuthHandler(handler.AuthConfig{
			Auth:            client,
			Renderer:        renderer,
			Sessions:        sessions,
			Users:           roles,
			Registry:        registry,
			LoginProtection: loginProtection,
			AdminRoleID:     cfg.AdminRoleID,
		}),
		Dashboard:     handler.NewDashboardHandler(base, queries, sched),
		Collections:   handler.NewCollectionHandler(base, imaging.NewPreviewer(0)),
		Notifications: handler.NewNotificationsHandler(base),
		Health:        handler.NewHealthHandler(db, versionInfo, registry.Len),
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(chimw.StripSlashes)

	securityConfig := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())
	r.Use(middleware.SecurityHeaders(securityConfig))
	r.Use(middleware.RequestPath)
	r.Use(sessionManager.LoadAndSave)

	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr())))
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	gate := middleware.RequireAdmin(middleware.GateConfig{
		Sessions:    sessions,
		Users:       roles,
		Me:          client.Me,
		AdminRoleID: cfg.AdminRoleID,
	})
	handlers.RegisterRoutes(r, gate, loginProtection.Middleware())

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.CMSUploadTimeout + 30*time.Second, // uploads are forwarded to the CMS
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newConsoleHandler logs text in development and JSON in production.
func newConsoleHandler(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsDevelopment() {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}
