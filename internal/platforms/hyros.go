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

// HyrosClient pulls attributed sales/leads from HYROS. API-key auth.
type HyrosClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	opts       FetchOptions
	sleep      func(time.Duration)
}

func NewHyrosClient(baseURL, apiKey string, opts FetchOptions) *HyrosClient {
	return &HyrosClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		opts:       opts,
		sleep:      time.Sleep,
	}
}

func (c *HyrosClient) Platform() models.Platform {
	return models.PlatformHyros
}

type hyrosSource struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type hyrosLead struct {
	ID          json.Number `json:"id"`
	SourceID    json.Number `json:"source_id"`
	Status      string      `json:"status"`
	Cost        float64     `json:"cost"`
	Revenue     float64     `json:"revenue"`
	CreatedAtMs int64       `json:"created_at_ms"`
}

type hyrosPage struct {
	Data []hyrosLead `json:"data"`
}

// ListCampaigns lists HYROS traffic sources, which play the role of external
// campaigns in the mapping table.
func (c *HyrosClient) ListCampaigns(ctx context.Context, _, _ string) ([]ExternalCampaign, error) {
	body, _, err := c.get(ctx, "/sources", nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []hyrosSource `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Data == nil {
		return nil, ErrInvalidResponse
	}

	campaigns := make([]ExternalCampaign, 0, len(parsed.Data))
	for _, s := range parsed.Data {
		campaigns = append(campaigns, ExternalCampaign{
			ExternalID: s.ID.String(),
			Name:       s.Name,
			Platform:   models.PlatformHyros,
		})
	}
	return campaigns, nil
}

// FetchLeads pages through attributed leads for one source. Same pagination
// and 429 contract as the LeadProsper fetcher.
func (c *HyrosClient) FetchLeads(ctx context.Context, externalCampaignID, startDate, endDate string) ([]LeadRecord, error) {
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
			return records, err
		}

		for _, l := range leads {
			records = append(records, LeadRecord{
				ID:                 l.ID.String(),
				ExternalCampaignID: l.SourceID.String(),
				Status:             l.Status,
				Cost:               l.Cost,
				Revenue:            l.Revenue,
				LeadAt:             time.UnixMilli(l.CreatedAtMs).UTC(),
			})
		}

		log.Debug().
			Str("source", externalCampaignID).
			Int("page", page).
			Int("page_leads", len(leads)).
			Msg("HYROS page fetched")

		if len(leads) < c.opts.PageSize {
			break
		}
	}

	return records, nil
}

func (c *HyrosClient) fetchPage(ctx context.Context, sourceID, startDate, endDate string, page int) ([]hyrosLead, error) {
	params := url.Values{
		"from":     {startDate},
		"to":       {endDate},
		"source":   {sourceID},
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(c.opts.PageSize)},
	}

	wait := c.opts.BackoffBase
	for attempt := 1; ; attempt++ {
		body, status, err := c.get(ctx, "/leads", params)
		if err == nil {
			var parsed hyrosPage
			if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil || parsed.Data == nil {
				return nil, ErrInvalidResponse
			}
			return parsed.Data, nil
		}

		if status != http.StatusTooManyRequests {
			return nil, err
		}

		// Same retry contract as LeadProsper: wait out every backoff slot,
		// then fail once the ceiling is reached.
		c.sleep(wait)
		wait *= 2

		if attempt >= c.opts.RetryCeiling {
			return nil, &RateLimitedError{Platform: models.PlatformHyros, Attempts: c.opts.RetryCeiling}
		}
	}
}

func (c *HyrosClient) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &ProviderError{Platform: models.PlatformHyros, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, resp.StatusCode, nil
}
