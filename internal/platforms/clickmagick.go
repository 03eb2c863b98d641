package platforms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tortshark/backend/internal/models"
)

// ClickMagickClient reads click-tracking stats. ClickMagick has no lead
// records; it contributes clicks and tracked cost per campaign link.
type ClickMagickClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClickMagickClient(baseURL, apiKey string) *ClickMagickClient {
	return &ClickMagickClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *ClickMagickClient) Platform() models.Platform {
	return models.PlatformClickMagick
}

type cmLink struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// ListCampaigns lists tracking links; these are the mappable units.
func (c *ClickMagickClient) ListCampaigns(ctx context.Context, _, _ string) ([]ExternalCampaign, error) {
	body, err := c.get(ctx, "/links", nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []cmLink `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Data == nil {
		return nil, ErrInvalidResponse
	}

	campaigns := make([]ExternalCampaign, 0, len(parsed.Data))
	for _, l := range parsed.Data {
		campaigns = append(campaigns, ExternalCampaign{
			ExternalID: l.ID.String(),
			Name:       l.Name,
			Platform:   models.PlatformClickMagick,
		})
	}
	return campaigns, nil
}

// FetchDailyClicks returns per-day click totals for one link.
func (c *ClickMagickClient) FetchDailyClicks(ctx context.Context, linkID, startDate, endDate string) ([]SpendRecord, error) {
	params := url.Values{
		"link":       {linkID},
		"start_date": {startDate},
		"end_date":   {endDate},
		"group_by":   {"date"},
	}

	body, err := c.get(ctx, "/stats", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Date   string  `json:"date"`
			Clicks int64   `json:"clicks"`
			Cost   float64 `json:"cost"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Data == nil {
		return nil, ErrInvalidResponse
	}

	records := make([]SpendRecord, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		records = append(records, SpendRecord{
			ExternalCampaignID: linkID,
			Date:               row.Date,
			Clicks:             row.Clicks,
			Cost:               row.Cost,
		})
	}
	return records, nil
}

func (c *ClickMagickClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Platform: models.PlatformClickMagick, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
