package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	database "usersvc/app/db"
	appLogger "usersvc/app/logger"
	"usersvc/app/observability/metrics"
	"usersvc/config"
	"usersvc/internal/api"
	"usersvc/internal/api/user"
	apiRouter "usersvc/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(&cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database Setup ---
	client, err := database.Init(ctx, &cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize MongoDB client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect MongoDB client", slog.Any("error", err))
		}
	}()

	if !database.WaitForDB(ctx, client, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	db := client.Database(cfg.Repositories.Mongo.Database)

	// --- Dependency Injection ---
	mongoRepo := user.NewMongoUserRepo(db, logger)
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		logger.Error("Failed to ensure user indexes", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := user.NewCachedUserRepo(mongoRepo, cfg.Cache.StatsTTL, logger)
	userService := user.NewUserService(userRepo, logger)
	responder := api.NewResponder(logger, cfg.IsProduction())
	userHandler := user.NewHandlerImpl(userService, responder, logger)

	appMetrics := metrics.InitAppMetrics()

	// --- Router Setup ---
	mainRouter := apiRouter.SetupRouter(&apiRouter.Config{
		UserHandler: userHandler,
		Responder:   responder,
		APIPrefix:   cfg.API.Prefix,
	})

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(appMetrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server",
			slog.String("address", serverAddress),
			slog.String("mode", cfg.Mode),
			slog.String("prefix", cfg.API.Prefix))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		return slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
	}

	// Colored logs for development
	tintOpts := &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}
	return slog.New(tint.NewHandler(os.Stdout, tintOpts))
}
