package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/aggregate"
	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/platforms"
)

var (
	ErrMappingNotFound = errors.New("mapping not found")
	// ErrAlreadyMapped means the external campaign is actively linked to a
	// different internal campaign. Unlink it there first.
	ErrAlreadyMapped = errors.New("external campaign is already mapped to another campaign")
	ErrNoLister      = errors.New("no campaign lister configured for platform")
)

// MappingService links external platform campaigns to internal campaigns.
// Links are append-only: unlinking flips Active off and stamps UnlinkedAt, so
// the full mapping history is queryable.
type MappingService struct {
	container *Container
}

func NewMappingService(container *Container) *MappingService {
	return &MappingService{container: container}
}

// CreateMappingRequest represents a link request
type CreateMappingRequest struct {
	CampaignID         uuid.UUID       `json:"campaign_id" binding:"required"`
	Platform           models.Platform `json:"platform" binding:"required"`
	ExternalAccountID  string          `json:"external_account_id"`
	ExternalCampaignID string          `json:"external_campaign_id" binding:"required"`
	ExternalName       string          `json:"external_name"`
}

// Create links an external campaign to an internal one. Re-linking an
// identical active pair returns the existing row unchanged; linking an
// external campaign that is active elsewhere is rejected.
func (s *MappingService) Create(ctx context.Context, userID uuid.UUID, req *CreateMappingRequest) (*models.CampaignMapping, error) {
	if _, err := s.container.Campaign.Get(ctx, req.CampaignID); err != nil {
		return nil, err
	}

	var existing models.CampaignMapping
	err := s.container.DB.WithContext(ctx).
		Where("platform = ? AND external_account_id = ? AND external_campaign_id = ? AND active = ?",
			req.Platform, req.ExternalAccountID, req.ExternalCampaignID, true).
		First(&existing).Error
	if err == nil {
		if existing.CampaignID == req.CampaignID {
			return &existing, nil
		}
		return nil, ErrAlreadyMapped
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	mapping := &models.CampaignMapping{
		ID:                 uuid.New(),
		CampaignID:         req.CampaignID,
		Platform:           req.Platform,
		ExternalAccountID:  req.ExternalAccountID,
		ExternalCampaignID: req.ExternalCampaignID,
		ExternalName:       req.ExternalName,
		Active:             true,
		LinkedAt:           time.Now(),
	}

	if err := s.container.DB.WithContext(ctx).Create(mapping).Error; err != nil {
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionMapCampaign,
		Platform:   string(req.Platform),
		EntityType: "campaign_mapping",
		EntityID:   mapping.ID.String(),
		Result:     audit.ResultSuccess,
		After:      mapping,
	})

	return mapping, nil
}

// Unlink soft-deletes a mapping. Unlinking an already-inactive mapping is a
// no-op, not an error.
func (s *MappingService) Unlink(ctx context.Context, userID, mappingID uuid.UUID) error {
	var mapping models.CampaignMapping
	err := s.container.DB.WithContext(ctx).First(&mapping, "id = ?", mappingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMappingNotFound
		}
		return err
	}

	if !mapping.Active {
		return nil
	}

	now := time.Now()
	err = s.container.DB.WithContext(ctx).Model(&mapping).
		Updates(map[string]interface{}{"active": false, "unlinked_at": now}).Error
	if err != nil {
		return err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionUnmapCampaign,
		Platform:   string(mapping.Platform),
		EntityType: "campaign_mapping",
		EntityID:   mapping.ID.String(),
		Result:     audit.ResultSuccess,
		Before:     mapping,
	})
	return nil
}

// ListForCampaign returns a campaign's mappings, active-only by default.
func (s *MappingService) ListForCampaign(ctx context.Context, campaignID uuid.UUID, includeInactive bool) ([]models.CampaignMapping, error) {
	query := s.container.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("linked_at DESC")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}

	var mappings []models.CampaignMapping
	if err := query.Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// ActiveMappings returns every active mapping for a platform, optionally
// narrowed to one internal campaign. This is the sync fan-out set.
func (s *MappingService) ActiveMappings(ctx context.Context, platform models.Platform, campaignID *uuid.UUID) ([]models.CampaignMapping, error) {
	query := s.container.DB.WithContext(ctx).
		Where("platform = ? AND active = ?", platform, true)
	if campaignID != nil {
		query = query.Where("campaign_id = ?", *campaignID)
	}

	var mappings []models.CampaignMapping
	if err := query.Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// ResolverFor builds the external-to-internal campaign resolver the
// aggregator consumes, from the current active mappings of one platform.
func (s *MappingService) ResolverFor(ctx context.Context, platform models.Platform, campaignID *uuid.UUID) (aggregate.MapFunc, error) {
	mappings, err := s.ActiveMappings(ctx, platform, campaignID)
	if err != nil {
		return nil, err
	}

	byExternal := make(map[string]uuid.UUID, len(mappings))
	for _, m := range mappings {
		byExternal[m.ExternalCampaignID] = m.CampaignID
	}

	return func(externalCampaignID string) (uuid.UUID, bool) {
		id, ok := byExternal[externalCampaignID]
		return id, ok
	}, nil
}

// SpendResolverFor is the spend-path resolver. Spend records carry the ad
// account, and the same external campaign ID can exist under two accounts, so
// the lookup keys on the pair.
func (s *MappingService) SpendResolverFor(ctx context.Context, platform models.Platform, campaignID *uuid.UUID) (aggregate.SpendMapFunc, error) {
	mappings, err := s.ActiveMappings(ctx, platform, campaignID)
	if err != nil {
		return nil, err
	}

	type extKey struct {
		accountID  string
		campaignID string
	}
	byExternal := make(map[extKey]uuid.UUID, len(mappings))
	for _, m := range mappings {
		byExternal[extKey{m.ExternalAccountID, m.ExternalCampaignID}] = m.CampaignID
	}

	return func(externalAccountID, externalCampaignID string) (uuid.UUID, bool) {
		id, ok := byExternal[extKey{externalAccountID, externalCampaignID}]
		return id, ok
	}, nil
}

// ListExternal fetches the platform's campaigns, refreshes the local cache,
// and returns them for the mapping picker.
func (s *MappingService) ListExternal(ctx context.Context, userID uuid.UUID, platform models.Platform, accountID string) ([]platforms.ExternalCampaign, error) {
	lister, accessToken, err := s.listerFor(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	listed, err := lister.ListCampaigns(ctx, accessToken, accountID)
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, platform, accountID, listed)
	return listed, nil
}

func (s *MappingService) listerFor(ctx context.Context, userID uuid.UUID, platform models.Platform) (platforms.CampaignLister, string, error) {
	switch platform {
	case models.PlatformGoogleAds:
		token, err := s.container.Token.GetValidAccessToken(ctx, userID, platform)
		if err != nil {
			return nil, "", err
		}
		return s.container.GoogleAds, token, nil
	case models.PlatformLeadProsper:
		if s.container.LeadProsper == nil {
			return nil, "", ErrNoLister
		}
		return s.container.LeadProsper, "", nil
	case models.PlatformHyros:
		if s.container.Hyros == nil {
			return nil, "", ErrNoLister
		}
		return s.container.Hyros, "", nil
	case models.PlatformClickMagick:
		if s.container.ClickMagick == nil {
			return nil, "", ErrNoLister
		}
		return s.container.ClickMagick, "", nil
	default:
		return nil, "", ErrNoLister
	}
}

// refreshCache upserts the listed campaigns into the local mirror. Cache
// failures are logged by the caller's request logger, never surfaced: listing
// must work even when the mirror write fails.
func (s *MappingService) refreshCache(ctx context.Context, platform models.Platform, accountID string, listed []platforms.ExternalCampaign) {
	now := time.Now()
	for _, ec := range listed {
		row := models.ExternalCampaign{
			Platform:    platform,
			AccountID:   accountID,
			ExternalID:  ec.ExternalID,
			AccountName: ec.AccountName,
			Name:        ec.Name,
			Status:      ec.Status,
			LastSeenAt:  now,
		}

		var existing models.ExternalCampaign
		err := s.container.DB.WithContext(ctx).
			Where("platform = ? AND account_id = ? AND external_id = ?", platform, accountID, ec.ExternalID).
			First(&existing).Error
		if err == nil {
			s.container.DB.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"name":         ec.Name,
				"status":       ec.Status,
				"account_name": ec.AccountName,
				"last_seen_at": now,
			})
			continue
		}
		row.ID = uuid.New()
		s.container.DB.WithContext(ctx).Create(&row)
	}
}
