package services

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tortshark/backend/internal/config"
	"github.com/tortshark/backend/internal/websocket"
)

// testSchema mirrors the production migration minus the Postgres-only pieces
// (gen_random_uuid defaults, jsonb, foreign keys), so the full service stack
// runs against an in-memory database.
var testSchema = []string{
	`CREATE TABLE oauth_credentials (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		access_token TEXT,
		refresh_token_enc TEXT,
		refresh_token_iv TEXT,
		expires_at DATETIME,
		scope TEXT,
		email TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (user_id, platform)
	)`,
	`CREATE TABLE campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tort_type TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		description TEXT,
		target_cpa REAL NOT NULL DEFAULT 0,
		case_value REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE campaign_mappings (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		external_account_id TEXT NOT NULL DEFAULT '',
		external_campaign_id TEXT NOT NULL,
		external_name TEXT,
		active NUMERIC NOT NULL DEFAULT 1,
		linked_at DATETIME,
		unlinked_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE daily_stats (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		stat_date TEXT NOT NULL,
		leads INTEGER NOT NULL DEFAULT 0,
		cases INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		duplicated INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		revenue REAL NOT NULL DEFAULT 0,
		ad_spend REAL NOT NULL DEFAULT 0,
		media_spend REAL NOT NULL DEFAULT 0,
		impressions INTEGER NOT NULL DEFAULT 0,
		clicks INTEGER NOT NULL DEFAULT 0,
		cpc REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (campaign_id, stat_date)
	)`,
	`CREATE TABLE raw_leads (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		external_id TEXT NOT NULL,
		external_campaign_id TEXT,
		status TEXT,
		cost REAL NOT NULL DEFAULT 0,
		revenue REAL NOT NULL DEFAULT 0,
		lead_at DATETIME,
		payload TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (platform, external_id)
	)`,
	`CREATE TABLE sync_runs (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		campaign_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		dry_run NUMERIC NOT NULL DEFAULT 0,
		leads_fetched INTEGER NOT NULL DEFAULT 0,
		rows_written INTEGER NOT NULL DEFAULT 0,
		rows_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		triggered_by TEXT,
		enqueued_at DATETIME,
		started_at DATETIME,
		finished_at DATETIME
	)`,
	`CREATE TABLE change_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		platform TEXT,
		entity_type TEXT,
		entity_id TEXT,
		result TEXT NOT NULL,
		error_message TEXT,
		before TEXT,
		after TEXT,
		created_at DATETIME
	)`,
}

// newTestContainer builds a full service container on miniredis and an
// in-memory SQLite database. cfg may be nil for defaults; platform clients
// are only registered for the keys the caller sets.
func newTestContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection: each SQLite :memory: connection is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range testSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.EncryptionKey == "" {
		cfg.EncryptionKey = "test-master-key"
	}
	if cfg.SyncTimezone == "" {
		cfg.SyncTimezone = "America/New_York"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-jwt-secret"
	}

	container, err := NewContainer(cfg, db, redisClient, websocket.NewHub())
	require.NoError(t, err)
	return container
}
