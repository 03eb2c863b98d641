package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/models"
)

func testFetchOptions() FetchOptions {
	return FetchOptions{
		PageSize:     3,
		MaxPages:     5,
		RetryCeiling: 3,
		BackoffBase:  time.Second,
		PageDelay:    150 * time.Millisecond,
	}
}

func newTestLPClient(serverURL string) *LeadProsperClient {
	c := NewLeadProsperClient(serverURL, "test-key", "America/New_York", testFetchOptions())
	c.sleep = func(time.Duration) {} // tests never wait out real backoff
	return c
}

func lpPage(count, offset int) string {
	leads := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		leads = append(leads, map[string]interface{}{
			"id":           offset + i,
			"campaign_id":  77,
			"status":       "accepted",
			"cost":         12.5,
			"revenue":      90.0,
			"lead_date_ms": time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC).UnixMilli(),
		})
	}
	body, _ := json.Marshal(map[string]interface{}{"data": leads})
	return string(body)
}

func TestFetchLeadsStopsOnShortPage(t *testing.T) {
	var pages []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pages = append(pages, page)

		// Two full pages then a short one.
		if page < 3 {
			fmt.Fprint(w, lpPage(3, page*10))
			return
		}
		fmt.Fprint(w, lpPage(1, 100))
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	assert.Len(t, records, 7)
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestFetchLeadsRespectsPageCeiling(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, lpPage(3, calls*10)) // always a full page
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 5, calls) // MaxPages
	assert.Len(t, records, 15)
}

func TestFetchLeadsRateLimitBackoff(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, lpPage(1, 0))
	}))
	defer server.Close()

	var waits []time.Duration
	client := newTestLPClient(server.URL)
	client.sleep = func(d time.Duration) { waits = append(waits, d) }

	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	// Two 429s: 1s then 2s.
	require.Len(t, waits, 2)
	assert.Equal(t, time.Second, waits[0])
	assert.Equal(t, 2*time.Second, waits[1])
}

func TestFetchLeadsRateLimitExhaustionWaitsThreeTimes(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var waits []time.Duration
	client := newTestLPClient(server.URL)
	client.sleep = func(d time.Duration) { waits = append(waits, d) }

	_, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")

	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 3, rateErr.Attempts)
	assert.Equal(t, 3, calls)

	// Three straight 429s: every attempt backs off, the final one included.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits)
}

func TestFetchLeadsRateLimitCeilingReturnsPartial(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := r.URL.Query().Get("page")
		if page == "1" {
			fmt.Fprint(w, lpPage(3, 0)) // full first page
			return
		}
		w.WriteHeader(http.StatusTooManyRequests) // page 2 never succeeds
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")

	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, models.PlatformLeadProsper, rateErr.Platform)
	assert.Equal(t, 3, rateErr.Attempts)

	// The first page's records survive on both return paths.
	assert.Len(t, records, 3)
	assert.Len(t, rateErr.Records, 3)
}

func TestFetchLeadsProviderErrorAbortsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, lpPage(3, 0))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"boom"}`)
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusInternalServerError, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "boom")
	assert.Len(t, records, 3)
}

func TestFetchLeadsRejectsUnknownSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The legacy bare-array shape is no longer accepted.
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	_, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestFetchLeadsConvertsTimestamps(t *testing.T) {
	leadAt := time.Date(2026, 3, 10, 23, 45, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"data": []map[string]interface{}{{
				"id":           9001,
				"campaign_id":  77,
				"status":       "duplicate",
				"cost":         3.5,
				"revenue":      0.0,
				"lead_date_ms": leadAt.UnixMilli(),
			}},
		})
		w.Write(body)
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	records, err := client.FetchLeads(context.Background(), "77", "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "9001", records[0].ID)
	assert.Equal(t, "77", records[0].ExternalCampaignID)
	assert.Equal(t, "duplicate", records[0].Status)
	assert.True(t, records[0].LeadAt.Equal(leadAt))
}

func TestListCampaigns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/campaigns", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id": 77, "name": "MVA - FL", "status": "active"}]`)
	}))
	defer server.Close()

	client := newTestLPClient(server.URL)
	campaigns, err := client.ListCampaigns(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "77", campaigns[0].ExternalID)
	assert.Equal(t, "MVA - FL", campaigns[0].Name)
	assert.Equal(t, models.PlatformLeadProsper, campaigns[0].Platform)
}
