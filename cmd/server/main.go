package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/api"
	"github.com/p-n-ai/pai-curriculum/internal/binding"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/editor"
	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
	"github.com/p-n-ai/pai-curriculum/internal/platform/config"
	"github.com/p-n-ai/pai-curriculum/internal/platform/database"
	"github.com/p-n-ai/pai-curriculum/internal/reference"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     app.handler.Routes(),
		ReadTimeout: 10 * time.Minute, // large video uploads
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired service and the resources it must release.
type app struct {
	handler *api.Handler
	manager *editor.Manager
	closers []func()
}

func (a *app) close() {
	if a.manager != nil {
		a.manager.CloseAll()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, the upload collaborator, reference data and the
// session manager. Without a database URL curricula live in memory; without a
// cache URL upload status and reference data stay process-local.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var checks []api.Check

	deps := editor.Deps{
		Upload: upload.Config{
			MaxDocumentBytes:  cfg.Upload.MaxDocumentBytes,
			MaxVideoBytes:     cfg.Upload.MaxVideoBytes,
			VideoTypes:        cfg.Upload.VideoTypes,
			DocumentTypes:     cfg.Upload.DocumentTypes,
			PollInterval:      cfg.Upload.PollInterval,
			ProcessingTimeout: cfg.Upload.ProcessingTimeout,
		},
		UploadTTL: cfg.Cache.UploadTTL,
		Hub:       binding.NewHub(),
	}

	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := database.Migrate(ctx, db.Pool); err != nil {
			a.close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		store, err := curriculum.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Store = store
		deps.Events = editor.NewPostgresEventLogger(db.Pool)
		checks = append(checks, api.Check{Name: "database", Ping: db.HealthCheck})
		slog.Info("using postgres store")
	} else {
		deps.Store = curriculum.NewMemoryStore()
		deps.Events = editor.NewMemoryEventLogger()
		slog.Warn("LEARN_DATABASE_URL not set, curricula are kept in memory")
	}

	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing cache", "error", err)
			}
		})
		deps.Cache = c
		checks = append(checks, api.Check{Name: "cache", Ping: c.HealthCheck})
	}

	if cfg.Upload.Mock {
		deps.Uploader = upload.NewMockUploader("")
		slog.Warn("LEARN_UPLOAD_MOCK set, uploads complete locally")
	} else {
		deps.Uploader = upload.NewHTTPUploader(cfg.Upload.Endpoint, cfg.Upload.Token, cfg.Upload.RequestTimeout)
	}

	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		slog.Warn("curriculum templates unavailable", "error", err)
	} else {
		deps.Templates = loader
	}

	catalog := newCatalog(cfg, deps.Cache)
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, cfg.Reference.Timeout*2)
		defer cancel()
		if err := catalog.Refresh(refreshCtx); err != nil {
			slog.Warn("reference data refresh failed", "error", err)
		}
	}()

	a.manager = editor.NewManager(deps)
	maxUpload := max(cfg.Upload.MaxDocumentBytes, cfg.Upload.MaxVideoBytes)
	a.handler = api.New(a.manager, catalog, api.WithChecks(checks...), api.WithMaxUpload(maxUpload))
	return a, nil
}

func newCatalog(cfg *config.Config, c *cache.Cache) *reference.Catalog {
	var sources []reference.Source
	if cfg.Reference.BaseURL != "" {
		var src reference.Source = reference.NewHTTPSource(cfg.Reference.BaseURL, cfg.Reference.Timeout)
		if c != nil {
			src = reference.NewCachedSource(src, c, cfg.Reference.CacheTTL)
		}
		sources = append(sources, src)
	} else {
		slog.Warn("LEARN_REFERENCE_URL not set, serving fallback reference data")
	}
	return reference.NewCatalog(cfg.Reference.CacheTTL, reference.DefaultFallback(), sources...)
}
