package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/logger"
)

// Action represents an auditable action
type Action string

const (
	// Connection actions
	ActionConnect Action = "connection_create"
	ActionRefresh Action = "token_refresh"
	ActionRevoke  Action = "connection_revoke"

	// Mapping actions
	ActionMapCampaign   Action = "mapping_create"
	ActionUnmapCampaign Action = "mapping_unlink"

	// Campaign / buyer changes
	ActionCampaignCreate Action = "campaign_create"
	ActionCampaignUpdate Action = "campaign_update"
	ActionCampaignDelete Action = "campaign_delete"
	ActionBuyerCreate    Action = "buyer_create"
	ActionBuyerUpdate    Action = "buyer_update"
	ActionBuyerDelete    Action = "buyer_delete"

	// Sync lifecycle
	ActionSyncEnqueued  Action = "sync_enqueued"
	ActionSyncCompleted Action = "sync_completed"
	ActionSyncFailed    Action = "sync_failed"

	// Team actions
	ActionLogin    Action = "login"
	ActionRegister Action = "register"
)

// Result represents the outcome of an action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultPartial Result = "partial"
)

// ChangeLog is one entry in the dashboard change log: who did what to which
// entity, with before/after snapshots where they exist.
type ChangeLog struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	// Who. Nil for scheduler-triggered events.
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`

	// What
	Action     Action `gorm:"size:50;not null;index" json:"action"`
	Platform   string `gorm:"size:30;index" json:"platform,omitempty"`
	EntityType string `gorm:"size:50" json:"entity_type,omitempty"`
	EntityID   string `gorm:"size:200;index" json:"entity_id,omitempty"`

	Result       Result `gorm:"size:20;not null;index" json:"result"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	Before string `gorm:"type:jsonb" json:"before,omitempty"`
	After  string `gorm:"type:jsonb" json:"after,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Entry is the write-side shape; snapshots are marshaled on insert.
type Entry struct {
	UserID       *uuid.UUID
	Action       Action
	Platform     string
	EntityType   string
	EntityID     string
	Result       Result
	ErrorMessage string
	Before       interface{}
	After        interface{}
}

// Service writes and reads the change log.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Log records one entry. Failures are logged and swallowed: the change log
// must never fail the operation it describes.
func (s *Service) Log(ctx context.Context, entry Entry) {
	row := &ChangeLog{
		ID:           uuid.New(),
		UserID:       entry.UserID,
		Action:       entry.Action,
		Platform:     entry.Platform,
		EntityType:   entry.EntityType,
		EntityID:     entry.EntityID,
		Result:       entry.Result,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    time.Now(),
	}

	if entry.Before != nil {
		if b, err := json.Marshal(entry.Before); err == nil {
			row.Before = string(b)
		}
	}
	if entry.After != nil {
		if b, err := json.Marshal(entry.After); err == nil {
			row.After = string(b)
		}
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).
			Str("action", string(entry.Action)).
			Msg("Failed to write change log entry")
	}
}

// ListFilter narrows List results.
type ListFilter struct {
	UserID     *uuid.UUID
	Action     Action
	EntityType string
	Limit      int
}

// List returns recent entries, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]ChangeLog, error) {
	query := s.db.WithContext(ctx).Model(&ChangeLog{}).Order("created_at DESC")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []ChangeLog
	if err := query.Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
