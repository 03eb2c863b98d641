package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/models"
)

var ErrBuyerNotFound = errors.New("buyer not found")

// BuyerService manages the case-buyer waterfall: the priority-ordered list of
// active buyers cases are offered to.
type BuyerService struct {
	container *Container
}

func NewBuyerService(container *Container) *BuyerService {
	return &BuyerService{container: container}
}

// BuyerRequest is the create/update payload.
type BuyerRequest struct {
	Name          string  `json:"name" binding:"required"`
	ContactEmail  string  `json:"contact_email"`
	TortType      string  `json:"tort_type"`
	PayoutPerCase float64 `json:"payout_per_case"`
	Priority      int     `json:"priority"`
	Active        *bool   `json:"active"`
	Notes         string  `json:"notes"`
}

func (s *BuyerService) Create(ctx context.Context, userID uuid.UUID, req *BuyerRequest) (*models.Buyer, error) {
	buyer := &models.Buyer{
		ID:            uuid.New(),
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		TortType:      req.TortType,
		PayoutPerCase: req.PayoutPerCase,
		Priority:      req.Priority,
		Active:        true,
		Notes:         req.Notes,
	}
	if req.Active != nil {
		buyer.Active = *req.Active
	}

	if err := s.container.DB.WithContext(ctx).Create(buyer).Error; err != nil {
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionBuyerCreate,
		EntityType: "buyer",
		EntityID:   buyer.ID.String(),
		Result:     audit.ResultSuccess,
		After:      buyer,
	})
	return buyer, nil
}

func (s *BuyerService) Get(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	var buyer models.Buyer
	err := s.container.DB.WithContext(ctx).First(&buyer, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBuyerNotFound
		}
		return nil, err
	}
	return &buyer, nil
}

// List returns buyers ordered by priority; tortType narrows to one tort.
func (s *BuyerService) List(ctx context.Context, tortType string, activeOnly bool) ([]models.Buyer, error) {
	query := s.container.DB.WithContext(ctx).Model(&models.Buyer{}).
		Order("priority ASC, name ASC")
	if tortType != "" {
		query = query.Where("tort_type = ?", tortType)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var buyers []models.Buyer
	if err := query.Find(&buyers).Error; err != nil {
		return nil, err
	}
	return buyers, nil
}

// Waterfall returns the active buyers for a tort in offer order.
func (s *BuyerService) Waterfall(ctx context.Context, tortType string) ([]models.Buyer, error) {
	return s.List(ctx, tortType, true)
}

func (s *BuyerService) Update(ctx context.Context, userID, id uuid.UUID, req *BuyerRequest) (*models.Buyer, error) {
	buyer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *buyer

	updates := map[string]interface{}{
		"name":            req.Name,
		"contact_email":   req.ContactEmail,
		"tort_type":       req.TortType,
		"payout_per_case": req.PayoutPerCase,
		"priority":        req.Priority,
		"notes":           req.Notes,
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := s.container.DB.WithContext(ctx).Model(buyer).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionBuyerUpdate,
		EntityType: "buyer",
		EntityID:   id.String(),
		Result:     audit.ResultSuccess,
		Before:     before,
		After:      buyer,
	})
	return buyer, nil
}

func (s *BuyerService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	buyer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.container.DB.WithContext(ctx).Delete(buyer).Error; err != nil {
		return err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionBuyerDelete,
		EntityType: "buyer",
		EntityID:   id.String(),
		Result:     audit.ResultSuccess,
		Before:     buyer,
	})
	return nil
}

// Reorder rewrites the waterfall order: ids[i] gets priority i.
func (s *BuyerService) Reorder(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	err := s.container.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Model(&models.Buyer{}).Where("id = ?", id).Update("priority", i)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrBuyerNotFound
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionBuyerUpdate,
		EntityType: "buyer",
		Result:     audit.ResultSuccess,
		After:      ids,
	})
	return nil
}
