package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tortshark/backend/internal/api"
	"github.com/tortshark/backend/internal/config"
	"github.com/tortshark/backend/internal/database"
	"github.com/tortshark/backend/internal/health"
	"github.com/tortshark/backend/internal/jobs"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/migrations"
	"github.com/tortshark/backend/internal/services"
	"github.com/tortshark/backend/internal/websocket"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to access underlying sql.DB")
	}
	if err := migrations.Run(sqlDB, "tortshark"); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to auto-migrate models")
	}

	redisClient := database.ConnectRedis(cfg.RedisURL)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	svc, err := services.NewContainer(cfg, db, redisClient, wsHub)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}

	scheduler := jobs.NewScheduler(svc)
	scheduler.Start()

	server := api.NewServer(svc)

	checker := health.NewChecker(db, redisClient)
	checker.RegisterRoutes(server.Router())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		checker.SetReady(true)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")
	checker.SetReady(false)
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Forced shutdown")
	}

	logger.Info().Msg("Server exited")
}
