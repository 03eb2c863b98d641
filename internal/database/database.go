package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/models"
)

func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// Migrate runs gorm AutoMigrate for all models. Production schemas are
// managed by the SQL migrations; this keeps dev databases in step.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Team
		&models.User{},

		// Connections
		&models.OAuthCredential{},

		// Campaigns and mappings
		&models.Campaign{},
		&models.ExternalCampaign{},
		&models.CampaignMapping{},

		// Stats pipeline
		&models.DailyStat{},
		&models.RawLead{},
		&models.SyncRun{},

		// Buyers
		&models.Buyer{},

		// Change log
		&audit.ChangeLog{},
	)
}

func ConnectRedis(redisURL string) *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis URL, using default")
		opt = &redis.Options{
			Addr: "localhost:6379",
		}
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis connection failed")
	}

	return client
}
