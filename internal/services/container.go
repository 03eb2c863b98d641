package services

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/auth"
	"github.com/tortshark/backend/internal/config"
	"github.com/tortshark/backend/internal/locks"
	"github.com/tortshark/backend/internal/platforms"
	"github.com/tortshark/backend/internal/queue"
	"github.com/tortshark/backend/internal/vault"
	"github.com/tortshark/backend/internal/websocket"
)

// Container holds all service instances
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	WSHub  *websocket.Hub

	// Infrastructure
	Locks *locks.LockManager
	Queue *queue.SyncQueue
	Audit *audit.Service
	Vault *vault.Box

	// Platform clients
	GoogleAds   *platforms.GoogleAdsClient
	LeadProsper *platforms.LeadProsperClient
	Hyros       *platforms.HyrosClient
	ClickMagick *platforms.ClickMagickClient

	// Core Services
	Auth      *auth.AuthService
	Token     *TokenService
	Campaign  *CampaignService
	Mapping   *MappingService
	Stats     *StatsService
	Sync      *SyncService
	Buyer     *BuyerService
	Dashboard *DashboardService
}

func NewContainer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, wsHub *websocket.Hub) (*Container, error) {
	box, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		WSHub:  wsHub,
		Vault:  box,
	}

	// Infrastructure first (no cross-service dependencies)
	container.Locks = locks.NewLockManager(redisClient)
	container.Queue = queue.NewSyncQueue(redisClient)
	container.Audit = audit.NewService(db)

	container.registerPlatformClients(cfg)

	// Services
	container.Auth = auth.NewAuthService(db, cfg.JWTSecret)
	container.Token = NewTokenService(container)
	container.Campaign = NewCampaignService(container)
	container.Mapping = NewMappingService(container)
	container.Stats = NewStatsService(container)
	container.Sync = NewSyncService(container)
	container.Buyer = NewBuyerService(container)
	container.Dashboard = NewDashboardService(container)

	return container, nil
}

// registerPlatformClients builds one client per configured external platform.
func (c *Container) registerPlatformClients(cfg *config.Config) {
	opts := platforms.DefaultFetchOptions()
	if cfg.SyncPageSize > 0 {
		opts.PageSize = cfg.SyncPageSize
	}
	if cfg.SyncMaxPages > 0 {
		opts.MaxPages = cfg.SyncMaxPages
	}

	c.GoogleAds = platforms.NewGoogleAdsClient(platforms.GoogleAdsConfig{
		ClientID:       cfg.GoogleClientID,
		ClientSecret:   cfg.GoogleClientSecret,
		DeveloperToken: cfg.GoogleDeveloperToken,
		APIVersion:     cfg.GoogleAdsAPIVersion,
	})

	if cfg.LeadProsperAPIKey != "" {
		c.LeadProsper = platforms.NewLeadProsperClient(cfg.LeadProsperBaseURL, cfg.LeadProsperAPIKey, cfg.SyncTimezone, opts)
	}
	if cfg.HyrosAPIKey != "" {
		c.Hyros = platforms.NewHyrosClient(cfg.HyrosBaseURL, cfg.HyrosAPIKey, opts)
	}
	if cfg.ClickMagickAPIKey != "" {
		c.ClickMagick = platforms.NewClickMagickClient(cfg.ClickMagickBaseURL, cfg.ClickMagickAPIKey)
	}
}
