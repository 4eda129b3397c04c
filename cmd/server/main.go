// authchat front-end server: auth views and chat proxied to the backend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/authchat/internal/api"
	"github.com/ashureev/authchat/internal/backend"
	"github.com/ashureev/authchat/internal/chatws"
	"github.com/ashureev/authchat/internal/config"
	"github.com/ashureev/authchat/internal/logger"
	"github.com/ashureev/authchat/internal/middleware"
	"github.com/ashureev/authchat/internal/probe"
	"github.com/ashureev/authchat/internal/session"
	"github.com/ashureev/authchat/internal/store"
	"github.com/ashureev/authchat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	log, closeLog := logger.Init(logger.Config{Format: "json"})
	defer func() { _ = closeLog() }()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "backend", cfg.BackendURL, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	client, err := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  log.With("component", "backend"),
	})
	if err != nil {
		slog.Error("Failed to initialize backend client", "error", err)
		os.Exit(1)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		slog.Error("Failed to parse templates", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services.
	sessions := session.NewManager(repo, client, cfg.BackendURL)
	registry := chatws.NewRegistry()
	sessions.OnEvict(registry.CloseDevice)
	limiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, cfg.AuthRateWindow)

	// Initialize handlers.
	pages := api.NewPageHandler(renderer)
	healthHandler := api.NewHealthHandler(repo, client)
	wsHandler := chatws.NewHandler(client, registry, sessions, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/static/*", web.StaticHandler())

	// Views run inside a device session; auth submissions are rate limited.
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(sessions, cfg.IsDevelopment()))
		r.Use(middleware.RateLimit(limiter, middleware.ClientIP, http.HandlerFunc(pages.Limited)))
		pages.RegisterRoutes(r)
		wsHandler.RegisterRoutes(r)
	})

	// The chat view is a long-lived websocket, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartSweeper(ctx, sessions, cfg.SessionSweep, cfg.SessionTTL)

	var healthProbe *probe.Server
	if cfg.GRPCHealthAddr != "" {
		healthProbe = probe.New(cfg.ProbeInterval,
			probe.Check{Name: "store", Pinger: repo},
			probe.Check{Name: "backend", Pinger: client},
		)
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "addr", cfg.GRPCHealthAddr, "error", err)
			os.Exit(1)
		}
		go healthProbe.Run(ctx)
		go func() {
			if err := healthProbe.Serve(lis); err != nil {
				slog.Error("gRPC health probe failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	if healthProbe != nil {
		healthProbe.Stop()
	}
	// Hijacked websocket connections are not drained by Shutdown.
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
