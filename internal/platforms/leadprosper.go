package platforms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/models"
)

// LeadProsperClient talks to the LeadProsper public API. Auth is a static
// account-level bearer token, not per-user OAuth.
type LeadProsperClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timezone   string
	opts       FetchOptions

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(time.Duration)
}

func NewLeadProsperClient(baseURL, apiKey, timezone string, opts FetchOptions) *LeadProsperClient {
	if timezone == "" {
		timezone = "America/New_York"
	}
	return &LeadProsperClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		timezone:   timezone,
		opts:       opts,
		sleep:      time.Sleep,
	}
}

func (c *LeadProsperClient) Platform() models.Platform {
	return models.PlatformLeadProsper
}

type lpCampaign struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Status string      `json:"status"`
}

type lpLead struct {
	ID         json.Number `json:"id"`
	CampaignID json.Number `json:"campaign_id"`
	Status     string      `json:"status"`
	Cost       float64     `json:"cost"`
	Revenue    float64     `json:"revenue"`
	LeadDateMs int64       `json:"lead_date_ms"`
}

// lpLeadsPage is the one accepted response schema. The old client probed
// three shapes (bare array, data, leads); a mismatch is now a hard error.
type lpLeadsPage struct {
	Data []lpLead `json:"data"`
}

// ListCampaigns returns every campaign on the account in a single call.
func (c *LeadProsperClient) ListCampaigns(ctx context.Context, _, _ string) ([]ExternalCampaign, error) {
	body, _, err := c.get(ctx, "/public/campaigns", nil)
	if err != nil {
		return nil, err
	}

	var listed []lpCampaign
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, ErrInvalidResponse
	}

	campaigns := make([]ExternalCampaign, 0, len(listed))
	for _, lc := range listed {
		campaigns = append(campaigns, ExternalCampaign{
			ExternalID: lc.ID.String(),
			Name:       lc.Name,
			Status:     lc.Status,
			Platform:   models.PlatformLeadProsper,
		})
	}
	return campaigns, nil
}

// FetchLeads pulls every lead for one campaign in [startDate, endDate],
// paging until a short page or the page ceiling. 429s back off exponentially
// (1s, 2s, 4s); once the ceiling is hit the partial result rides along on the
// returned RateLimitedError.
func (c *LeadProsperClient) FetchLeads(ctx context.Context, externalCampaignID, startDate, endDate string) ([]LeadRecord, error) {
	log := logger.FromContext(ctx)
	var records []LeadRecord

	for page := 1; page <= c.opts.MaxPages; page++ {
		if page > 1 {
			c.sleep(c.opts.PageDelay)
		}

		leads, err := c.fetchPage(ctx, externalCampaignID, startDate, endDate, page)
		if err != nil {
			if rl, ok := err.(*RateLimitedError); ok {
				rl.Records = records
				return records, rl
			}
			// Non-429 failure mid-pagination aborts the remaining pages.
			// The caller must treat what it already has as incomplete.
			return records, err
		}

		for _, l := range leads {
			records = append(records, LeadRecord{
				ID:                 l.ID.String(),
				ExternalCampaignID: l.CampaignID.String(),
				Status:             l.Status,
				Cost:               l.Cost,
				Revenue:            l.Revenue,
				LeadAt:             time.UnixMilli(l.LeadDateMs).UTC(),
			})
		}

		log.Debug().
			Str("campaign", externalCampaignID).
			Int("page", page).
			Int("page_leads", len(leads)).
			Int("total_leads", len(records)).
			Msg("LeadProsper page fetched")

		if len(leads) < c.opts.PageSize {
			break
		}
	}

	return records, nil
}

func (c *LeadProsperClient) fetchPage(ctx context.Context, campaignID, startDate, endDate string, page int) ([]lpLead, error) {
	params := url.Values{
		"start_date": {startDate},
		"end_date":   {endDate},
		"campaign":   {campaignID},
		"timezone":   {c.timezone},
		"page":       {strconv.Itoa(page)},
		"per_page":   {strconv.Itoa(c.opts.PageSize)},
	}

	wait := c.opts.BackoffBase
	for attempt := 1; ; attempt++ {
		body, status, err := c.get(ctx, "/public/leads", params)
		if err == nil {
			var parsed lpLeadsPage
			if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil || parsed.Data == nil {
				return nil, ErrInvalidResponse
			}
			return parsed.Data, nil
		}

		if status != http.StatusTooManyRequests {
			return nil, err
		}

		// Every 429 waits out its backoff slot, the last one included, so
		// three consecutive 429s wait 1s, 2s, 4s before giving up.
		log := logger.FromContext(ctx)
		log.Warn().
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("LeadProsper rate limited, backing off")
		c.sleep(wait)
		wait *= 2

		if attempt >= c.opts.RetryCeiling {
			return nil, &RateLimitedError{Platform: models.PlatformLeadProsper, Attempts: c.opts.RetryCeiling}
		}
	}
}

func (c *LeadProsperClient) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &ProviderError{Platform: models.PlatformLeadProsper, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, resp.StatusCode, nil
}
