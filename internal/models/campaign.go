package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CampaignStatus string

const (
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
)

// Campaign is an internal tort campaign that external ad/lead campaigns map onto.
type Campaign struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	TortType    string         `gorm:"size:100" json:"tort_type"` // e.g. "mva", "camp-lejeune"
	Status      CampaignStatus `gorm:"size:30;default:'active'" json:"status"`
	Description string         `gorm:"type:text" json:"description"`

	// Economics used by forecasting and leaderboards
	TargetCPA float64 `json:"target_cpa"`
	CaseValue float64 `json:"case_value"`

	Mappings []CampaignMapping `gorm:"foreignKey:CampaignID" json:"mappings,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ExternalCampaign is a locally cached mirror of a remote platform campaign.
// Rows are refreshed on every listing call and never authored here.
type ExternalCampaign struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Platform    Platform  `gorm:"size:30;not null;uniqueIndex:idx_ext_campaign" json:"platform"`
	AccountID   string    `gorm:"size:100;uniqueIndex:idx_ext_campaign" json:"account_id"`
	ExternalID  string    `gorm:"size:100;not null;uniqueIndex:idx_ext_campaign" json:"external_id"`
	AccountName string    `gorm:"size:200" json:"account_name"`
	Name        string    `gorm:"size:300" json:"name"`
	Status      string    `gorm:"size:50" json:"status"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// CampaignMapping associates an external platform campaign with an internal
// campaign. Unmapping is always a soft delete: Active goes false and
// UnlinkedAt is stamped, so the link history survives for audit.
type CampaignMapping struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CampaignID uuid.UUID `gorm:"type:uuid;not null;index" json:"campaign_id"`

	Platform           Platform `gorm:"size:30;not null;index:idx_mapping_external" json:"platform"`
	ExternalAccountID  string   `gorm:"size:100;index:idx_mapping_external" json:"external_account_id"`
	ExternalCampaignID string   `gorm:"size:100;not null;index:idx_mapping_external" json:"external_campaign_id"`
	ExternalName       string   `gorm:"size:300" json:"external_name"`

	Active     bool       `gorm:"default:true;index" json:"active"`
	LinkedAt   time.Time  `json:"linked_at"`
	UnlinkedAt *time.Time `json:"unlinked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
