package main

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"

	database "github.com/sdyoon0928/final-pj3/app/db"
	appLogger "github.com/sdyoon0928/final-pj3/app/logger"
	appMiddleware "github.com/sdyoon0928/final-pj3/app/middleware"
	"github.com/sdyoon0928/final-pj3/app/observability/metrics"
	"github.com/sdyoon0928/final-pj3/app/tracer"
	"github.com/sdyoon0928/final-pj3/config"
	"github.com/sdyoon0928/final-pj3/internal/api/chat"
	"github.com/sdyoon0928/final-pj3/internal/api/geo"
	"github.com/sdyoon0928/final-pj3/internal/api/itinerary"
	"github.com/sdyoon0928/final-pj3/internal/api/reconcile"
	"github.com/sdyoon0928/final-pj3/internal/api/route"
	"github.com/sdyoon0928/final-pj3/internal/router"
)

func main() {
	// Standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsHandler, err := tracer.InitTracingAndMetrics()
	if err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency wiring ---
	validator := geo.New(logger)
	store := itinerary.NewStore(validator, logger)

	itineraryRepo := itinerary.NewRepository(pool, logger)
	itineraryService := itinerary.NewService(store, itineraryRepo, logger)
	itineraryHandler := itinerary.NewHandler(itineraryService, cfg.Slot.PollInterval, logger)

	aiClient, err := chat.NewAIClient(ctx, cfg.Chat.Model)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		os.Exit(1)
	}
	chatRepo := chat.NewRepository(pool, logger)
	chatService := chat.NewService(chatRepo, aiClient, validator, logger)
	chatHandler := chat.NewHandler(chatService, logger)

	handoff := reconcile.NewHandoffStore(cfg.Reconcile.HandoffTTL)
	reconciler := reconcile.NewReconciler(store, handoff, itineraryService, itineraryService, logger)
	reconcileHandler := reconcile.NewHandler(reconciler, handoff, logger)

	routeService := route.NewService(route.NewKakaoProvider(logger), route.NewGoogleProvider(logger), logger)
	routeHandler := route.NewHandler(routeService, logger)

	mainRouter := router.SetupRouter(&router.Config{
		ChatHandler:            chatHandler,
		ItineraryHandler:       itineraryHandler,
		ReconcileHandler:       reconcileHandler,
		RouteHandler:           routeHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate,
		OptionalAuthMiddleware: appMiddleware.AuthenticateOptional,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	apiSrv := &http.Server{
		Addr:         cfg.Handlers.ExternalAPI.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	metricsMux := chi.NewMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{
		Addr:    cfg.Handlers.Prometheus.Port,
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting metrics server", slog.String("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server graceful shutdown failed", slog.Any("error", err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures the application logger: colored text in development,
// JSON elsewhere.
func setupLogger() *slog.Logger {
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		return slog.New(tint.NewHandler(os.Stdout, tintOpts))
	}

	jsonOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
}
