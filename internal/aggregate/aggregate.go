// Package aggregate groups raw lead records into per-campaign per-day totals.
// It is pure: no storage, no network, deterministic for a given input.
package aggregate

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tortshark/backend/internal/platforms"
)

// Key identifies one daily stat bucket.
type Key struct {
	CampaignID uuid.UUID
	Date       string // YYYY-MM-DD in the reference zone
}

// DailyTotals is the accumulated result for one bucket.
type DailyTotals struct {
	Leads      int
	Accepted   int
	Duplicated int
	Failed     int
	AdSpend    float64
	Revenue    float64
}

// Status buckets. Matching is case-insensitive; anything outside these sets
// counts toward Leads only.
var (
	acceptedStatuses  = map[string]bool{"accepted": true}
	duplicateStatuses = map[string]bool{"duplicate": true}
	failedStatuses    = map[string]bool{"rejected": true, "failed": true}
)

// MapFunc resolves an external campaign ID to the internal campaign it is
// actively mapped to. Records that resolve to false are dropped.
type MapFunc func(externalCampaignID string) (uuid.UUID, bool)

// Leads buckets records by (internal campaign, calendar day in loc), summing
// cost into AdSpend and revenue into Revenue and counting one lead per record.
func Leads(records []platforms.LeadRecord, resolve MapFunc, loc *time.Location) map[Key]*DailyTotals {
	if loc == nil {
		loc = time.UTC
	}

	out := make(map[Key]*DailyTotals)
	for _, r := range records {
		campaignID, ok := resolve(r.ExternalCampaignID)
		if !ok {
			continue
		}

		key := Key{
			CampaignID: campaignID,
			Date:       r.LeadAt.In(loc).Format("2006-01-02"),
		}
		totals := out[key]
		if totals == nil {
			totals = &DailyTotals{}
			out[key] = totals
		}

		totals.Leads++
		totals.AdSpend += r.Cost
		totals.Revenue += r.Revenue

		switch status := strings.ToLower(strings.TrimSpace(r.Status)); {
		case acceptedStatuses[status]:
			totals.Accepted++
		case duplicateStatuses[status]:
			totals.Duplicated++
		case failedStatuses[status]:
			totals.Failed++
		}
	}
	return out
}

// SpendMapFunc resolves an (ad account, external campaign) pair to the
// internal campaign it is actively mapped to. Spend records carry the account
// because the same campaign ID can exist under two accounts.
type SpendMapFunc func(externalAccountID, externalCampaignID string) (uuid.UUID, bool)

// Spend buckets per-day spend records by (internal campaign, date). The
// provider already reports calendar days, so no timezone conversion happens.
func Spend(records []platforms.SpendRecord, resolve SpendMapFunc) map[Key]*SpendTotals {
	out := make(map[Key]*SpendTotals)
	for _, r := range records {
		campaignID, ok := resolve(r.ExternalAccountID, r.ExternalCampaignID)
		if !ok {
			continue
		}

		key := Key{CampaignID: campaignID, Date: r.Date}
		totals := out[key]
		if totals == nil {
			totals = &SpendTotals{}
			out[key] = totals
		}

		totals.Cost += r.Cost
		totals.Impressions += r.Impressions
		totals.Clicks += r.Clicks
	}
	return out
}

// SpendTotals is the accumulated ad-platform result for one bucket.
type SpendTotals struct {
	Cost        float64
	Impressions int64
	Clicks      int64
}

// CPC returns cost per click, zero when there are no clicks.
func (s *SpendTotals) CPC() float64 {
	if s.Clicks == 0 {
		return 0
	}
	return s.Cost / float64(s.Clicks)
}
