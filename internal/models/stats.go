package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyStat holds the aggregated totals for one campaign on one calendar day.
// (campaign_id, stat_date) is the natural key; writes go through an atomic
// upsert on that key, never read-then-write. Values are absolute day totals.
type DailyStat struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CampaignID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_campaign_date" json:"campaign_id"`
	StatDate   string    `gorm:"type:date;not null;uniqueIndex:idx_campaign_date" json:"stat_date"` // YYYY-MM-DD

	Leads      int `json:"leads"`
	Cases      int `json:"cases"`
	Accepted   int `json:"accepted"`
	Duplicated int `json:"duplicated"`
	Failed     int `json:"failed"`

	Revenue float64 `json:"revenue"`

	// AdSpend is lead acquisition cost reported by the lead platform.
	// MediaSpend is ad-platform spend. The lead sync writes the former, the
	// spend sync the latter; neither touches the other's column.
	AdSpend    float64 `json:"ad_spend"`
	MediaSpend float64 `json:"media_spend"`

	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CPC         float64 `json:"cpc"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawLead is an ingested per-lead record from a lead platform, deduplicated
// by the provider-assigned ID. Re-syncs overwrite in place.
type RawLead struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Platform   Platform  `gorm:"size:30;not null;uniqueIndex:idx_lead_external" json:"platform"`
	ExternalID string    `gorm:"size:100;not null;uniqueIndex:idx_lead_external" json:"external_id"`

	ExternalCampaignID string    `gorm:"size:100;index" json:"external_campaign_id"`
	Status             string    `gorm:"size:50" json:"status"`
	Cost               float64   `json:"cost"`
	Revenue            float64   `json:"revenue"`
	LeadAt             time.Time `json:"lead_at"`
	Payload            string    `gorm:"type:jsonb" json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncRun is the persisted record of one sync invocation. It exists so an
// in-progress sync is observable and a crashed one is re-runnable: the upsert
// path makes re-invocation idempotent.
type SyncRun struct {
	ID       uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Platform Platform   `gorm:"size:30;not null;index" json:"platform"`
	Status   SyncStatus `gorm:"size:20;default:'pending';index" json:"status"`

	// Optional filter: sync a single internal campaign instead of all mappings.
	CampaignID *uuid.UUID `gorm:"type:uuid" json:"campaign_id,omitempty"`

	StartDate string `gorm:"type:date;not null" json:"start_date"`
	EndDate   string `gorm:"type:date;not null" json:"end_date"`
	DryRun    bool   `gorm:"default:false" json:"dry_run"`

	LeadsFetched int    `json:"leads_fetched"`
	RowsWritten  int    `json:"rows_written"`
	RowsFailed   int    `json:"rows_failed"`
	Error        string `gorm:"type:text" json:"error,omitempty"`

	TriggeredBy *uuid.UUID `gorm:"type:uuid" json:"triggered_by,omitempty"` // nil for scheduled runs

	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
