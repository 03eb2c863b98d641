package platforms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/models"
)

func newTestGoogleClient(apiURL, tokenURL string) *GoogleAdsClient {
	return NewGoogleAdsClient(GoogleAdsConfig{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		DeveloperToken: "dev-token",
		BaseURL:        apiURL,
		TokenURL:       tokenURL,
	})
}

func TestRefreshAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "stored-refresh", r.Form.Get("refresh_token"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))

		fmt.Fprint(w, `{"access_token": "fresh-token", "expires_in": 3600, "token_type": "Bearer"}`)
	}))
	defer server.Close()

	client := newTestGoogleClient("", server.URL)
	token, err := client.RefreshAccessToken(context.Background(), "stored-refresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token.AccessToken)
	assert.Equal(t, 3600, token.ExpiresIn)
}

func TestRefreshAccessTokenRejectedGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))
	defer server.Close()

	client := newTestGoogleClient("", server.URL)
	_, err := client.RefreshAccessToken(context.Background(), "revoked-refresh")

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, models.PlatformGoogleAds, providerErr.Platform)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "invalid_grant")
}

func TestListCampaignsRequiresToken(t *testing.T) {
	client := newTestGoogleClient("http://unused", "http://unused")
	_, err := client.ListCampaigns(context.Background(), "", "123")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestListCampaignsParsesSearchRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v16/customers/123/googleAds:search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))

		fmt.Fprint(w, `{"results": [
			{"campaign": {"id": "111", "name": "MVA Search", "status": "ENABLED"}},
			{"campaign": {"id": "222", "name": "Paused Brand", "status": "PAUSED"}}
		]}`)
	}))
	defer server.Close()

	client := newTestGoogleClient(server.URL, "")
	campaigns, err := client.ListCampaigns(context.Background(), "tok", "123")
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "111", campaigns[0].ExternalID)
	assert.Equal(t, "123", campaigns[0].AccountID)
	assert.Equal(t, models.PlatformGoogleAds, campaigns[0].Platform)
}

func TestFetchDailySpendConvertsMicros(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [
			{"campaign": {"id": "111"}, "segments": {"date": "2026-03-10"},
			 "metrics": {"costMicros": "52370000", "impressions": "1500", "clicks": "120"}}
		]}`)
	}))
	defer server.Close()

	client := newTestGoogleClient(server.URL, "")
	records, err := client.FetchDailySpend(context.Background(), "tok", "123", "111", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "123", records[0].ExternalAccountID)
	assert.Equal(t, "111", records[0].ExternalCampaignID)
	assert.Equal(t, "2026-03-10", records[0].Date)
	assert.InDelta(t, 52.37, records[0].Cost, 1e-9)
	assert.Equal(t, int64(1500), records[0].Impressions)
	assert.Equal(t, int64(120), records[0].Clicks)
}

func TestListAccessibleAccountsToleratesBadCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v16/customers:listAccessibleCustomers":
			fmt.Fprint(w, `{"resourceNames": ["customers/111", "customers/222"]}`)
		case "/v16/customers/111":
			fmt.Fprint(w, `{"id": "111", "descriptiveName": "Main Account"}`)
		default:
			// 222 is a canceled account the API refuses to describe.
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": "CUSTOMER_NOT_ENABLED"}`)
		}
	}))
	defer server.Close()

	client := newTestGoogleClient(server.URL, "")
	accounts, err := client.ListAccessibleAccounts(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Main Account", accounts[0].Name)
	assert.Equal(t, "222", accounts[1].Name) // falls back to the bare ID
}
