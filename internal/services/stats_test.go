package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/models"
)

func TestSummarizeKPIs(t *testing.T) {
	campaignID := uuid.New()
	rows := []models.DailyStat{
		{CampaignID: campaignID, StatDate: "2026-03-10", Leads: 10, Cases: 6, AdSpend: 120, Revenue: 900},
		{CampaignID: campaignID, StatDate: "2026-03-11", Leads: 10, Cases: 4, AdSpend: 80, Revenue: 300},
	}

	summary := summarize(campaignID, "2026-03-10", "2026-03-11", rows)

	assert.Equal(t, 20, summary.Leads)
	assert.Equal(t, 10, summary.Cases)
	assert.InDelta(t, 200.0, summary.AdSpend, 1e-9)
	assert.InDelta(t, 1200.0, summary.Revenue, 1e-9)
	assert.InDelta(t, 1000.0, summary.Profit, 1e-9)
	assert.InDelta(t, 10.0, summary.CPL, 1e-9)  // 200 / 20 leads
	assert.InDelta(t, 20.0, summary.CPA, 1e-9)  // 200 / 10 cases
	assert.InDelta(t, 6.0, summary.ROAS, 1e-9)  // 1200 / 200
	assert.InDelta(t, 0.5, summary.WinRate, 1e-9)
}

func TestSummarizeEmptyRangeAvoidsDivideByZero(t *testing.T) {
	summary := summarize(uuid.New(), "2026-03-10", "2026-03-11", nil)

	assert.Zero(t, summary.Leads)
	assert.Zero(t, summary.CPL)
	assert.Zero(t, summary.CPA)
	assert.Zero(t, summary.ROAS)
	assert.Zero(t, summary.WinRate)
	assert.Zero(t, summary.Profit)
}

func TestSummarizeSpendWithoutRevenue(t *testing.T) {
	// A campaign still ramping: spend but no signed cases yet.
	summary := summarize(uuid.New(), "2026-03-10", "2026-03-10", []models.DailyStat{
		{StatDate: "2026-03-10", Leads: 5, AdSpend: 250},
	})

	assert.InDelta(t, 50.0, summary.CPL, 1e-9)
	assert.Zero(t, summary.CPA)
	assert.Zero(t, summary.ROAS)
	assert.InDelta(t, -250.0, summary.Profit, 1e-9)
}

func TestSummarizeCombinesLeadAndMediaSpend(t *testing.T) {
	summary := summarize(uuid.New(), "2026-03-10", "2026-03-10", []models.DailyStat{
		{StatDate: "2026-03-10", Leads: 10, Cases: 6, AdSpend: 120, MediaSpend: 80, Revenue: 900},
	})

	// Total acquisition cost is lead cost plus ad-platform spend.
	assert.InDelta(t, 200.0, summary.AdSpend, 1e-9)
	assert.InDelta(t, 700.0, summary.Profit, 1e-9)
	assert.InDelta(t, 20.0, summary.CPL, 1e-9)
	assert.InDelta(t, 4.5, summary.ROAS, 1e-9)
}

func TestUpsertColumnSetsAreDisjoint(t *testing.T) {
	leadOwned := make(map[string]bool, len(statColumns))
	for _, col := range statColumns {
		if col != "updated_at" {
			leadOwned[col] = true
		}
	}
	for _, col := range spendColumns {
		if col == "updated_at" {
			continue
		}
		assert.False(t, leadOwned[col], "column %q is written by both sync paths", col)
	}
}

func TestSpendUpsertPreservesLeadTotals(t *testing.T) {
	container := newTestContainer(t, nil)
	ctx := context.Background()
	campaignID := uuid.New()

	require.NoError(t, container.Stats.UpsertDailyStats(ctx, []models.DailyStat{
		{CampaignID: campaignID, StatDate: "2026-03-10",
			Leads: 10, Cases: 6, Accepted: 6, Duplicated: 1, Failed: 2,
			AdSpend: 120, Revenue: 900},
	}))
	require.NoError(t, container.Stats.UpsertSpend(ctx, []models.DailyStat{
		{CampaignID: campaignID, StatDate: "2026-03-10",
			MediaSpend: 52.37, Impressions: 1500, Clicks: 120, CPC: 0.44},
	}))

	rows, err := container.Stats.GetRange(ctx, campaignID, "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 10, row.Leads)
	assert.InDelta(t, 120.0, row.AdSpend, 1e-9)
	assert.InDelta(t, 900.0, row.Revenue, 1e-9)
	assert.InDelta(t, 52.37, row.MediaSpend, 1e-9)
	assert.Equal(t, int64(1500), row.Impressions)

	// A nightly lead re-sync must not zero the spend sync's metrics.
	require.NoError(t, container.Stats.UpsertDailyStats(ctx, []models.DailyStat{
		{CampaignID: campaignID, StatDate: "2026-03-10",
			Leads: 12, Cases: 7, Accepted: 7, Duplicated: 1, Failed: 2,
			AdSpend: 144, Revenue: 1050},
	}))

	rows, err = container.Stats.GetRange(ctx, campaignID, "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 12, rows[0].Leads)
	assert.InDelta(t, 144.0, rows[0].AdSpend, 1e-9)
	assert.InDelta(t, 52.37, rows[0].MediaSpend, 1e-9)
	assert.Equal(t, int64(1500), rows[0].Impressions)
	assert.InDelta(t, 0.44, rows[0].CPC, 1e-9)
}
