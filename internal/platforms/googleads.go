package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tortshark/backend/internal/models"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// GoogleAdsClient talks to the Google Ads REST API and the Google OAuth token
// endpoint. Access tokens are per-user and passed into each call; the
// developer token is an application-level credential.
type GoogleAdsClient struct {
	httpClient     *http.Client
	clientID       string
	clientSecret   string
	developerToken string
	apiVersion     string
	baseURL        string
	tokenURL       string
}

type GoogleAdsConfig struct {
	ClientID       string
	ClientSecret   string
	DeveloperToken string
	APIVersion     string
	BaseURL        string // override for tests
	TokenURL       string // override for tests
}

func NewGoogleAdsClient(cfg GoogleAdsConfig) *GoogleAdsClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v16"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://googleads.googleapis.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = googleTokenURL
	}
	return &GoogleAdsClient{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		developerToken: cfg.DeveloperToken,
		apiVersion:     cfg.APIVersion,
		baseURL:        cfg.BaseURL,
		tokenURL:       cfg.TokenURL,
	}
}

func (c *GoogleAdsClient) Platform() models.Platform {
	return models.PlatformGoogleAds
}

// TokenResponse is the Google OAuth token endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// ExchangeCode trades an authorization code for tokens (OAuth callback).
func (c *GoogleAdsClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}
	return c.tokenCall(ctx, form)
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// A failure here is terminal for the call: the stored grant is revoked or
// invalid and the user must reconnect.
func (c *GoogleAdsClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	return c.tokenCall(ctx, form)
}

func (c *GoogleAdsClient) tokenCall(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Platform: models.PlatformGoogleAds, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrInvalidResponse
	}
	return &token, nil
}

// ListAccessibleAccounts enumerates the customer accounts the token can see.
func (c *GoogleAdsClient) ListAccessibleAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	var listed struct {
		ResourceNames []string `json:"resourceNames"`
	}
	path := fmt.Sprintf("/%s/customers:listAccessibleCustomers", c.apiVersion)
	if err := c.apiGet(ctx, accessToken, path, &listed); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(listed.ResourceNames))
	for _, rn := range listed.ResourceNames {
		id := strings.TrimPrefix(rn, "customers/")

		var customer struct {
			ID              string `json:"id"`
			DescriptiveName string `json:"descriptiveName"`
		}
		if err := c.apiGet(ctx, accessToken, fmt.Sprintf("/%s/customers/%s", c.apiVersion, id), &customer); err != nil {
			// A single inaccessible customer (e.g. canceled account) should not
			// sink the whole listing.
			accounts = append(accounts, Account{ID: id, Name: id})
			continue
		}
		name := customer.DescriptiveName
		if name == "" {
			name = id
		}
		accounts = append(accounts, Account{ID: id, Name: name})
	}
	return accounts, nil
}

// ListCampaigns runs a single-page GAQL search. Removed campaigns are
// filtered server-side; 10000 covers every real account we have seen.
func (c *GoogleAdsClient) ListCampaigns(ctx context.Context, accessToken, accountID string) ([]ExternalCampaign, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	query := `SELECT campaign.id, campaign.name, campaign.status
		FROM campaign
		WHERE campaign.status != 'REMOVED'
		ORDER BY campaign.name`

	results, err := c.search(ctx, accessToken, accountID, query)
	if err != nil {
		return nil, err
	}

	campaigns := make([]ExternalCampaign, 0, len(results))
	for _, row := range results {
		campaigns = append(campaigns, ExternalCampaign{
			ExternalID: row.Campaign.ID,
			Name:       row.Campaign.Name,
			Status:     row.Campaign.Status,
			AccountID:  accountID,
			Platform:   models.PlatformGoogleAds,
		})
	}
	return campaigns, nil
}

// FetchDailySpend returns per-day cost/impressions/clicks for one campaign.
func (c *GoogleAdsClient) FetchDailySpend(ctx context.Context, accessToken, accountID, externalCampaignID, startDate, endDate string) ([]SpendRecord, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	query := fmt.Sprintf(`SELECT campaign.id, segments.date, metrics.cost_micros, metrics.impressions, metrics.clicks
		FROM campaign
		WHERE campaign.id = %s AND segments.date BETWEEN '%s' AND '%s'`,
		externalCampaignID, startDate, endDate)

	results, err := c.search(ctx, accessToken, accountID, query)
	if err != nil {
		return nil, err
	}

	records := make([]SpendRecord, 0, len(results))
	for _, row := range results {
		records = append(records, SpendRecord{
			ExternalAccountID:  accountID,
			ExternalCampaignID: row.Campaign.ID,
			Date:               row.Segments.Date,
			Cost:               float64(row.Metrics.CostMicros) / 1e6,
			Impressions:        row.Metrics.Impressions,
			Clicks:             row.Metrics.Clicks,
		})
	}
	return records, nil
}

type searchRow struct {
	Campaign struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"campaign"`
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
	Metrics struct {
		CostMicros  int64 `json:"costMicros,string"`
		Impressions int64 `json:"impressions,string"`
		Clicks      int64 `json:"clicks,string"`
	} `json:"metrics"`
}

func (c *GoogleAdsClient) search(ctx context.Context, accessToken, accountID, query string) ([]searchRow, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"query":    query,
		"pageSize": 10000,
	})

	path := fmt.Sprintf("/%s/customers/%s/googleAds:search", c.apiVersion, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Platform: models.PlatformGoogleAds, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Results []searchRow `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return result.Results, nil
}

func (c *GoogleAdsClient) apiGet(ctx context.Context, accessToken, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Platform: models.PlatformGoogleAds, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.Unmarshal(body, v)
}

func (c *GoogleAdsClient) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("developer-token", c.developerToken)
}
