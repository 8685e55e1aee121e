package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	amhttp "github.com/research-developer/agentmux/internal/adapter/http"
	"github.com/research-developer/agentmux/internal/adapter/jsonl"
	"github.com/research-developer/agentmux/internal/adapter/mcp"
	amnats "github.com/research-developer/agentmux/internal/adapter/nats"
	"github.com/research-developer/agentmux/internal/adapter/otel"
	"github.com/research-developer/agentmux/internal/adapter/postgres"
	"github.com/research-developer/agentmux/internal/adapter/ristretto"
	"github.com/research-developer/agentmux/internal/adapter/ws"
	"github.com/research-developer/agentmux/internal/config"
	"github.com/research-developer/agentmux/internal/logger"
	"github.com/research-developer/agentmux/internal/port/journal"
	"github.com/research-developer/agentmux/internal/registry"
	"github.com/research-developer/agentmux/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLogger := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLogger.Close()

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Persistence.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Telemetry ---

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := otel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Error("telemetry shutdown failed", "error", err)
			}
		}()
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Persistence ---

	var journals *journal.Set
	switch cfg.Persistence.Backend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("postgres connected, migrations applied")

		journals = postgres.NewSet(pool, log)
	default:
		journals, err = jsonl.OpenSet(cfg.Persistence.Dir, log)
		if err != nil {
			return fmt.Errorf("open journals: %w", err)
		}
	}
	defer func() { _ = journals.Close() }()

	// --- Registry (replays the journals) ---

	store, err := registry.New(ctx, journals, registry.Options{
		DedupCapacity: cfg.Registry.DedupWindow,
		DispatchTail:  cfg.Registry.DispatchTail,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if n := store.ReplayWarnings(); n > 0 && metrics != nil {
		metrics.ReplayWarnings.Add(ctx, int64(n))
	}

	// --- Infrastructure ---

	hub := ws.NewHub()

	svcOpts := service.Options{
		Hub:      hub,
		CacheTTL: cfg.Cache.TTL,
		Metrics:  metrics,
		Logger:   log,
	}

	if cfg.NATS.Enabled {
		queue, err := amnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		svcOpts.Queue = queue
		log.Info("nats connected", "url", cfg.NATS.URL)
	}

	permCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer permCache.Close()
	svcOpts.Cache = permCache

	// --- Service ---

	svc := service.New(store, svcOpts)

	// --- HTTP ---

	handlers := amhttp.NewHandlers(svc, hub)
	mcpServer := mcp.NewServer(svc, log)

	r := chi.NewRouter()

	r.Use(amhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(amhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware("agentmux"))
	}

	amhttp.MountRoutes(r, handlers)
	r.Mount("/mcp", mcpServer.HTTPHandler())

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if cfg.Persistence.CompactOnShutdown {
		if err := svc.CompactJournals(shutdownCtx); err != nil {
			log.Error("journal compaction failed", "error", err)
		} else {
			log.Info("journals compacted")
		}
	}

	return nil
}
