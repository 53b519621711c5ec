// Entry point for the canvasd control plane — chi router, canvas store,
// notification sink, sqlite audit trail.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/canvasd/audit"
	"github.com/hazyhaar/canvasd/canvas"
	"github.com/hazyhaar/canvasd/notify"
	"github.com/hazyhaar/canvasd/server"
	"github.com/hazyhaar/canvasd/shield"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Audit DB.
	auditDB, err := audit.Open(cfg.AuditDB)
	if err != nil {
		slog.Error("audit db", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	auditLogger := audit.NewLogger(auditDB)
	if err := auditLogger.Init(); err != nil {
		slog.Error("audit init", "error", err)
		os.Exit(1)
	}
	if _, err := auditDB.Exec(shield.RateLimitSchema); err != nil {
		slog.Error("rate limit schema", "error", err)
		os.Exit(1)
	}

	// Retention cleanup loop.
	go func() {
		tick := time.NewTicker(cfg.Audit.Interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				err := audit.Cleanup(ctx, auditDB, audit.RetentionConfig{
					RequestLogsDays: cfg.Audit.RequestLogsDays,
					EventLogsDays:   cfg.Audit.EventLogsDays,
				})
				if err != nil {
					slog.Warn("audit cleanup", "error", err)
				}
			}
		}
	}()

	// Canvas store and notification sink.
	store := canvas.NewStore()
	var sink notify.Sink = &notify.Log{Logger: logger}
	if cfg.Webhook.URL != "" {
		var opts []notify.WebhookOption
		if cfg.Webhook.Secret != "" {
			opts = append(opts, notify.WithSecret(cfg.Webhook.Secret))
		}
		sink = notify.NewWebhook(cfg.Webhook.URL, opts...)
		slog.Info("webhook sink configured", "url", cfg.Webhook.URL)
	}

	handlers := server.New(store, sink,
		server.WithLogger(logger),
		server.WithAudit(auditLogger),
	)

	// Router.
	rl := shield.NewRateLimiter(auditDB, "/health")
	done := make(chan struct{})
	defer close(done)
	rl.StartReloader(done)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(shield.TraceID)
	r.Use(shield.CORS)
	r.Use(shield.MaxBody(cfg.MaxBody))
	r.Use(shield.AccessLog(auditLogger))
	r.Use(rl.Middleware)
	handlers.RegisterHTTP(r)

	slog.Info("canvasd starting", "listen", cfg.Listen)
	if err := server.ListenAndServe(ctx, cfg.Listen, r); err != nil {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
	slog.Info("canvasd stopped")
}
