// Command migrate applies or rolls back the SQL schema without starting the
// server. Used by deploy pipelines; the server also migrates on boot.
package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/tortshark/backend/internal/config"
	"github.com/tortshark/backend/internal/database"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	down := flag.Bool("down", false, "roll back one migration instead of applying")
	status := flag.Bool("status", false, "print current migration version and exit")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to access underlying sql.DB")
	}

	switch {
	case *status:
		version, dirty, err := migrations.Status(sqlDB, "tortshark")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to read migration status")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Migration status")

	case *down:
		if err := migrations.Rollback(sqlDB, "tortshark"); err != nil {
			logger.Fatal().Err(err).Msg("Rollback failed")
		}
		logger.Info().Msg("Rolled back one migration")

	default:
		if err := migrations.Run(sqlDB, "tortshark"); err != nil {
			logger.Fatal().Err(err).Msg("Migration failed")
		}
		logger.Info().Msg("Migrations applied")
	}

	os.Exit(0)
}
