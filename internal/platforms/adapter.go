package platforms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tortshark/backend/internal/models"
)

// Common errors
var (
	ErrNotSupported    = errors.New("operation not supported by this platform")
	ErrMissingToken    = errors.New("access token required")
	ErrInvalidResponse = errors.New("unexpected response shape from platform")
)

// ProviderError is a non-2xx reply from an external API, kept verbatim so the
// dashboard can show the raw diagnostic.
type ProviderError struct {
	Platform   models.Platform
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// RateLimitedError means the 429 retry ceiling was exhausted. Records holds
// whatever was fetched before giving up; callers must treat the result as
// possibly incomplete.
type RateLimitedError struct {
	Platform models.Platform
	Attempts int
	Records  []LeadRecord
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited after %d retries (%d records fetched)", e.Platform, e.Attempts, len(e.Records))
}

// Account is a remote ad/lead account the connected user can access.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExternalCampaign mirrors a remote campaign for listing and mapping.
type ExternalCampaign struct {
	ExternalID  string          `json:"external_id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Platform    models.Platform `json:"platform"`
}

// LeadRecord is one raw lead as returned by a lead platform.
type LeadRecord struct {
	ID                 string    `json:"id"`
	ExternalCampaignID string    `json:"external_campaign_id"`
	Status             string    `json:"status"`
	Cost               float64   `json:"cost"`
	Revenue            float64   `json:"revenue"`
	LeadAt             time.Time `json:"lead_at"`
	Payload            string    `json:"payload,omitempty"`
}

// SpendRecord is one day of ad spend for one external campaign. The account
// matters: the same campaign ID can recur under different ad accounts.
// Platforms without account scoping leave ExternalAccountID empty.
type SpendRecord struct {
	ExternalAccountID  string  `json:"external_account_id,omitempty"`
	ExternalCampaignID string  `json:"external_campaign_id"`
	Date               string  `json:"date"` // YYYY-MM-DD
	Cost               float64 `json:"cost"`
	Impressions        int64   `json:"impressions"`
	Clicks             int64   `json:"clicks"`
}

// CampaignLister enumerates remote campaigns for the mapping UI.
type CampaignLister interface {
	Platform() models.Platform
	ListCampaigns(ctx context.Context, accessToken, accountID string) ([]ExternalCampaign, error)
}

// LeadFetcher pulls raw leads for a date range, paginating internally.
type LeadFetcher interface {
	Platform() models.Platform
	FetchLeads(ctx context.Context, externalCampaignID, startDate, endDate string) ([]LeadRecord, error)
}

// FetchOptions bound pagination and retry behavior for lead fetchers.
type FetchOptions struct {
	PageSize     int
	MaxPages     int           // safety valve against a misbehaving API
	RetryCeiling int           // 429 retries before giving up
	BackoffBase  time.Duration // first 429 wait; doubles per attempt
	PageDelay    time.Duration // fixed spacing between page requests
}

// DefaultFetchOptions matches the production sync behavior: pages of 500,
// hard stop at 50 pages, three 1s/2s/4s retries, 150ms between pages.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		PageSize:     500,
		MaxPages:     50,
		RetryCeiling: 3,
		BackoffBase:  time.Second,
		PageDelay:    150 * time.Millisecond,
	}
}
