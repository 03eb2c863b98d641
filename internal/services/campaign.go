package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/models"
)

var ErrCampaignNotFound = errors.New("campaign not found")

// CampaignService manages internal tort campaigns.
type CampaignService struct {
	container *Container
}

func NewCampaignService(container *Container) *CampaignService {
	return &CampaignService{container: container}
}

// CreateCampaignRequest represents campaign creation data
type CreateCampaignRequest struct {
	Name        string  `json:"name" binding:"required"`
	TortType    string  `json:"tort_type" binding:"required"`
	Description string  `json:"description"`
	TargetCPA   float64 `json:"target_cpa"`
	CaseValue   float64 `json:"case_value"`
}

// UpdateCampaignRequest represents campaign update data
type UpdateCampaignRequest struct {
	Name        *string                `json:"name"`
	TortType    *string                `json:"tort_type"`
	Status      *models.CampaignStatus `json:"status"`
	Description *string                `json:"description"`
	TargetCPA   *float64               `json:"target_cpa"`
	CaseValue   *float64               `json:"case_value"`
}

func (s *CampaignService) Create(ctx context.Context, userID uuid.UUID, req *CreateCampaignRequest) (*models.Campaign, error) {
	campaign := &models.Campaign{
		ID:          uuid.New(),
		Name:        req.Name,
		TortType:    req.TortType,
		Status:      models.CampaignActive,
		Description: req.Description,
		TargetCPA:   req.TargetCPA,
		CaseValue:   req.CaseValue,
	}

	if err := s.container.DB.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionCampaignCreate,
		EntityType: "campaign",
		EntityID:   campaign.ID.String(),
		Result:     audit.ResultSuccess,
		After:      campaign,
	})

	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.container.DB.WithContext(ctx).
		Preload("Mappings", "active = ?", true).
		First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// List returns campaigns, optionally filtered by status and tort type.
func (s *CampaignService) List(ctx context.Context, status models.CampaignStatus, tortType string) ([]models.Campaign, error) {
	query := s.container.DB.WithContext(ctx).Model(&models.Campaign{}).Order("name ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if tortType != "" {
		query = query.Where("tort_type = ?", tortType)
	}

	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *CampaignService) Update(ctx context.Context, userID, id uuid.UUID, req *UpdateCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *campaign

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.TortType != nil {
		updates["tort_type"] = *req.TortType
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.TargetCPA != nil {
		updates["target_cpa"] = *req.TargetCPA
	}
	if req.CaseValue != nil {
		updates["case_value"] = *req.CaseValue
	}

	if len(updates) > 0 {
		if err := s.container.DB.WithContext(ctx).Model(campaign).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionCampaignUpdate,
		EntityType: "campaign",
		EntityID:   id.String(),
		Result:     audit.ResultSuccess,
		Before:     before,
		After:      campaign,
	})

	return campaign, nil
}

// Delete soft-deletes a campaign and deactivates its mappings so future syncs
// stop attributing leads to it.
func (s *CampaignService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.container.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc()
		if err := tx.Model(&models.CampaignMapping{}).
			Where("campaign_id = ? AND active = ?", id, true).
			Updates(map[string]interface{}{"active": false, "unlinked_at": now}).Error; err != nil {
			return err
		}
		return tx.Delete(campaign).Error
	})
	if err != nil {
		return err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionCampaignDelete,
		EntityType: "campaign",
		EntityID:   id.String(),
		Result:     audit.ResultSuccess,
		Before:     campaign,
	})
	return nil
}
