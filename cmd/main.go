package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sportcomp/competition-system/config"
	"github.com/sportcomp/competition-system/db"
	"github.com/sportcomp/competition-system/handlers"
	"github.com/sportcomp/competition-system/realtime"
	"github.com/sportcomp/competition-system/repositories"
	api "github.com/sportcomp/competition-system/routes"
	"github.com/sportcomp/competition-system/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Hub temps réel (un seul processus, état en mémoire)
	hub := realtime.NewHub(cfg.JWTSecretKey, logger)
	go hub.Run()
	logger.Info("realtime hub started")

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	participationRepo := repositories.NewPostgresParticipationRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	logger.Info("repositories initialized")

	// Services
	notifier := services.NewNotificationFanout(notificationRepo, participationRepo, hub, logger)
	statusEngine := services.NewStatusUpdateEngine(competitionRepo, notifier, hub, logger)
	competitionService := services.NewCompetitionService(competitionRepo, notifier, hub, logger)
	participationService := services.NewParticipationService(participationRepo, competitionRepo, userRepo, notifier, logger)
	notificationService := services.NewNotificationService(notificationRepo)
	logger.Info("services initialized")

	// Planificateur de mise à jour automatique des statuts
	scheduler := services.NewScheduler(statusEngine, logger)
	scheduler.Start(context.Background(), cfg.StatusUpdateInterval)
	defer scheduler.Stop()

	// Handlers HTTP
	competitionHandler := handlers.NewCompetitionHandler(competitionService)
	participationHandler := handlers.NewParticipationHandler(participationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, logger)
	broadcastHandler := handlers.NewBroadcastHandler(hub, cfg.ServerPort)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		cfg.CORSAllowedOrigins,
		competitionHandler,
		participationHandler,
		notificationHandler,
		webSocketHandler,
		broadcastHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		scheduler.Stop()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
