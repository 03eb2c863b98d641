package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/tortshark/backend/internal/models"
)

// StatsService reads and writes the daily performance rows. All writes go
// through an atomic upsert on (campaign_id, stat_date); there is no
// read-modify-write path, so concurrent syncs cannot interleave stale rows.
type StatsService struct {
	container *Container
}

func NewStatsService(container *Container) *StatsService {
	return &StatsService{container: container}
}

// statColumns are the columns the lead sync owns. Values are absolute day
// totals, never increments. ad_spend is lead acquisition cost from the lead
// platform.
var statColumns = []string{
	"leads", "cases", "accepted", "duplicated", "failed",
	"revenue", "ad_spend", "updated_at",
}

// spendColumns are the columns the ad-platform sync owns. The two sets are
// disjoint outside updated_at: a nightly lead sync must never zero the spend
// sync's metrics, and vice versa.
var spendColumns = []string{
	"media_spend", "impressions", "clicks", "cpc", "updated_at",
}

// UpsertDailyStats writes the rows in one statement per batch: insert new
// (campaign, date) pairs, overwrite existing ones.
func (s *StatsService) UpsertDailyStats(ctx context.Context, rows []models.DailyStat) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		rows[i].UpdatedAt = now
	}

	return s.container.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "stat_date"}},
		DoUpdates: clause.AssignmentColumns(statColumns),
	}).Create(&rows).Error
}

// UpsertSpend merges ad-platform spend into existing rows without touching
// lead counts: spend and lead data arrive from different platforms on
// different schedules.
func (s *StatsService) UpsertSpend(ctx context.Context, rows []models.DailyStat) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		rows[i].UpdatedAt = now
	}

	return s.container.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "stat_date"}},
		DoUpdates: clause.AssignmentColumns(spendColumns),
	}).Create(&rows).Error
}

// GetRange returns a campaign's daily rows in [startDate, endDate], oldest
// first. Dates are YYYY-MM-DD.
func (s *StatsService) GetRange(ctx context.Context, campaignID uuid.UUID, startDate, endDate string) ([]models.DailyStat, error) {
	var rows []models.DailyStat
	err := s.container.DB.WithContext(ctx).
		Where("campaign_id = ? AND stat_date BETWEEN ? AND ?", campaignID, startDate, endDate).
		Order("stat_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// KPISummary is the derived performance of one campaign over a range.
type KPISummary struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Name       string    `json:"name,omitempty"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`

	Leads   int     `json:"leads"`
	Cases   int     `json:"cases"`
	Revenue float64 `json:"revenue"`
	AdSpend float64 `json:"ad_spend"`
	Profit  float64 `json:"profit"`
	CPL     float64 `json:"cpl"`  // spend per lead
	CPA     float64 `json:"cpa"`  // spend per signed case
	ROAS    float64 `json:"roas"` // revenue / spend
	WinRate float64 `json:"win_rate"`
}

func summarize(campaignID uuid.UUID, startDate, endDate string, rows []models.DailyStat) KPISummary {
	summary := KPISummary{CampaignID: campaignID, StartDate: startDate, EndDate: endDate}
	for _, row := range rows {
		summary.Leads += row.Leads
		summary.Cases += row.Cases
		summary.Revenue += row.Revenue
		// Total acquisition cost: lead purchase cost plus ad-platform spend.
		summary.AdSpend += row.AdSpend + row.MediaSpend
	}

	summary.Profit = summary.Revenue - summary.AdSpend
	if summary.Leads > 0 {
		summary.CPL = summary.AdSpend / float64(summary.Leads)
		summary.WinRate = float64(summary.Cases) / float64(summary.Leads)
	}
	if summary.Cases > 0 {
		summary.CPA = summary.AdSpend / float64(summary.Cases)
	}
	if summary.AdSpend > 0 {
		summary.ROAS = summary.Revenue / summary.AdSpend
	}
	return summary
}

// Summary computes the KPI rollup for one campaign over a range.
func (s *StatsService) Summary(ctx context.Context, campaignID uuid.UUID, startDate, endDate string) (*KPISummary, error) {
	rows, err := s.GetRange(ctx, campaignID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	summary := summarize(campaignID, startDate, endDate, rows)
	return &summary, nil
}

// Leaderboard ranks active campaigns by profit over the range.
func (s *StatsService) Leaderboard(ctx context.Context, startDate, endDate string) ([]KPISummary, error) {
	campaigns, err := s.container.Campaign.List(ctx, models.CampaignActive, "")
	if err != nil {
		return nil, err
	}

	summaries := make([]KPISummary, 0, len(campaigns))
	for _, campaign := range campaigns {
		rows, err := s.GetRange(ctx, campaign.ID, startDate, endDate)
		if err != nil {
			return nil, err
		}
		summary := summarize(campaign.ID, startDate, endDate, rows)
		summary.Name = campaign.Name
		summaries = append(summaries, summary)
	}

	// Highest profit first
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Profit > summaries[j].Profit
	})
	return summaries, nil
}
