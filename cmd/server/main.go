// CurioLoop - conversational self-experimentation coach server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/avezina/curioloop/internal/api"
	"github.com/avezina/curioloop/internal/bot"
	"github.com/avezina/curioloop/internal/completion"
	"github.com/avezina/curioloop/internal/config"
	"github.com/avezina/curioloop/internal/identity"
	"github.com/avezina/curioloop/internal/middleware"
	"github.com/avezina/curioloop/internal/store"
	"github.com/avezina/curioloop/internal/ws"
	"github.com/avezina/curioloop/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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

	// Completion service is optional. Without an API key the bot runs
	// on its deterministic templates.
	var completer bot.Completer
	if cfg.Completion.Enabled() {
		client, err := completion.NewClient(completion.Config{
			BaseURL:     cfg.Completion.BaseURL,
			APIKey:      cfg.Completion.APIKey,
			Model:       cfg.Completion.Model,
			Temperature: cfg.Completion.Temperature,
			MaxTokens:   cfg.Completion.MaxTokens,
			Timeout:     cfg.Completion.Timeout,
		})
		if err != nil {
			slog.Warn("Failed to initialize completion client, AI features will be disabled", "error", err)
		} else {
			completer = client
			slog.Info("Completion client initialized", "model", cfg.Completion.Model)
		}
	}
	if completer == nil {
		slog.Info("AI features disabled (OPENAI_API_KEY not set)")
	}

	botService := bot.NewService(completer, bot.WithTimeout(cfg.Completion.Timeout))

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, botService)
	chatHandler := api.NewChatHandler(baseHandler, cfg)
	experimentHandler := api.NewExperimentHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, cfg)
	wsHandler := ws.NewChatHandler(chatHandler, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// All routes use identity middleware (no auth needed).
	chatHandler.RegisterRoutes(r)
	experimentHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket chat sessions are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
