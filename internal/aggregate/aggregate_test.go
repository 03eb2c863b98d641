package aggregate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/platforms"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func resolverFor(m map[string]uuid.UUID) MapFunc {
	return func(externalID string) (uuid.UUID, bool) {
		id, ok := m[externalID]
		return id, ok
	}
}

func TestLeadsFullDay(t *testing.T) {
	campaignID := uuid.New()
	resolve := resolverFor(map[string]uuid.UUID{"cm-1": campaignID})
	loc := eastern(t)

	// 10 leads on one Eastern day: 6 accepted, 1 duplicate, 2 rejected,
	// 1 with an unknown status.
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	statuses := []string{
		"accepted", "accepted", "accepted", "accepted", "accepted", "ACCEPTED",
		"duplicate", "rejected", "failed", "under_review",
	}

	records := make([]platforms.LeadRecord, 0, len(statuses))
	for i, status := range statuses {
		records = append(records, platforms.LeadRecord{
			ID:                 uuid.NewString(),
			ExternalCampaignID: "cm-1",
			Status:             status,
			Cost:               12.0,
			Revenue:            90.0,
			LeadAt:             day.Add(time.Duration(i) * time.Minute),
		})
	}

	buckets := Leads(records, resolve, loc)
	require.Len(t, buckets, 1)

	totals := buckets[Key{CampaignID: campaignID, Date: "2026-03-10"}]
	require.NotNil(t, totals)
	assert.Equal(t, 10, totals.Leads)
	assert.Equal(t, 6, totals.Accepted)
	assert.Equal(t, 1, totals.Duplicated)
	assert.Equal(t, 2, totals.Failed)
	assert.InDelta(t, 120.0, totals.AdSpend, 1e-9)
	assert.InDelta(t, 900.0, totals.Revenue, 1e-9)
}

func TestLeadsBucketsByEasternDay(t *testing.T) {
	campaignID := uuid.New()
	resolve := resolverFor(map[string]uuid.UUID{"cm-1": campaignID})
	loc := eastern(t)

	// 03:30 UTC on March 11 is 23:30 Eastern on March 10: the lead belongs
	// to the earlier calendar day.
	records := []platforms.LeadRecord{
		{ID: "a", ExternalCampaignID: "cm-1", Status: "accepted",
			LeadAt: time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC)},
		{ID: "b", ExternalCampaignID: "cm-1", Status: "accepted",
			LeadAt: time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)},
	}

	buckets := Leads(records, resolve, loc)
	require.Len(t, buckets, 2)
	assert.Equal(t, 1, buckets[Key{CampaignID: campaignID, Date: "2026-03-10"}].Leads)
	assert.Equal(t, 1, buckets[Key{CampaignID: campaignID, Date: "2026-03-11"}].Leads)
}

func TestLeadsDropsUnmappedRecords(t *testing.T) {
	campaignID := uuid.New()
	resolve := resolverFor(map[string]uuid.UUID{"cm-1": campaignID})

	records := []platforms.LeadRecord{
		{ID: "a", ExternalCampaignID: "cm-1", Status: "accepted", LeadAt: time.Now()},
		{ID: "b", ExternalCampaignID: "cm-unmapped", Status: "accepted", LeadAt: time.Now()},
	}

	buckets := Leads(records, resolve, time.UTC)
	require.Len(t, buckets, 1)
	for _, totals := range buckets {
		assert.Equal(t, 1, totals.Leads)
	}
}

func TestLeadsNilLocationDefaultsToUTC(t *testing.T) {
	campaignID := uuid.New()
	resolve := resolverFor(map[string]uuid.UUID{"cm-1": campaignID})

	records := []platforms.LeadRecord{
		{ID: "a", ExternalCampaignID: "cm-1", Status: "accepted",
			LeadAt: time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC)},
	}

	buckets := Leads(records, resolve, nil)
	_, ok := buckets[Key{CampaignID: campaignID, Date: "2026-03-11"}]
	assert.True(t, ok)
}

func TestLeadsStatusMatchingIsCaseInsensitive(t *testing.T) {
	campaignID := uuid.New()
	resolve := resolverFor(map[string]uuid.UUID{"cm-1": campaignID})

	records := []platforms.LeadRecord{
		{ID: "a", ExternalCampaignID: "cm-1", Status: "  Accepted ", LeadAt: time.Now()},
		{ID: "b", ExternalCampaignID: "cm-1", Status: "REJECTED", LeadAt: time.Now()},
		{ID: "c", ExternalCampaignID: "cm-1", Status: "Duplicate", LeadAt: time.Now()},
	}

	buckets := Leads(records, resolve, time.UTC)
	for _, totals := range buckets {
		assert.Equal(t, 1, totals.Accepted)
		assert.Equal(t, 1, totals.Failed)
		assert.Equal(t, 1, totals.Duplicated)
	}
}

func spendResolverFor(m map[string]uuid.UUID) SpendMapFunc {
	return func(accountID, externalID string) (uuid.UUID, bool) {
		id, ok := m[accountID+"/"+externalID]
		return id, ok
	}
}

func TestSpendAggregation(t *testing.T) {
	campaignID := uuid.New()
	resolve := spendResolverFor(map[string]uuid.UUID{"123/g-1": campaignID})

	records := []platforms.SpendRecord{
		{ExternalAccountID: "123", ExternalCampaignID: "g-1", Date: "2026-03-10", Cost: 50, Impressions: 1000, Clicks: 80},
		{ExternalAccountID: "123", ExternalCampaignID: "g-1", Date: "2026-03-10", Cost: 25, Impressions: 500, Clicks: 20},
		{ExternalAccountID: "123", ExternalCampaignID: "g-1", Date: "2026-03-11", Cost: 10, Impressions: 200, Clicks: 0},
		{ExternalAccountID: "123", ExternalCampaignID: "g-unmapped", Date: "2026-03-10", Cost: 999},
	}

	buckets := Spend(records, resolve)
	require.Len(t, buckets, 2)

	day1 := buckets[Key{CampaignID: campaignID, Date: "2026-03-10"}]
	require.NotNil(t, day1)
	assert.InDelta(t, 75.0, day1.Cost, 1e-9)
	assert.Equal(t, int64(1500), day1.Impressions)
	assert.Equal(t, int64(100), day1.Clicks)
	assert.InDelta(t, 0.75, day1.CPC(), 1e-9)

	day2 := buckets[Key{CampaignID: campaignID, Date: "2026-03-11"}]
	require.NotNil(t, day2)
	assert.Zero(t, day2.CPC())
}

func TestSpendSeparatesSameCampaignIDAcrossAccounts(t *testing.T) {
	mainCampaign := uuid.New()
	otherCampaign := uuid.New()
	resolve := spendResolverFor(map[string]uuid.UUID{
		"111/g-1": mainCampaign,
		"222/g-1": otherCampaign,
	})

	// Two ad accounts both run a campaign with the external ID "g-1"; each
	// account's spend must land on its own internal campaign.
	records := []platforms.SpendRecord{
		{ExternalAccountID: "111", ExternalCampaignID: "g-1", Date: "2026-03-10", Cost: 40},
		{ExternalAccountID: "222", ExternalCampaignID: "g-1", Date: "2026-03-10", Cost: 60},
	}

	buckets := Spend(records, resolve)
	require.Len(t, buckets, 2)
	assert.InDelta(t, 40.0, buckets[Key{CampaignID: mainCampaign, Date: "2026-03-10"}].Cost, 1e-9)
	assert.InDelta(t, 60.0, buckets[Key{CampaignID: otherCampaign, Date: "2026-03-10"}].Cost, 1e-9)
}
