package services

import (
	"context"
	"time"

	"github.com/tortshark/backend/internal/models"
)

// DashboardService assembles the overview page in one call.
type DashboardService struct {
	container *Container
}

func NewDashboardService(container *Container) *DashboardService {
	return &DashboardService{container: container}
}

// Overview is the dashboard landing payload.
type Overview struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	Totals      KPISummary       `json:"totals"`
	Leaderboard []KPISummary     `json:"leaderboard"`
	RecentRuns  []models.SyncRun `json:"recent_runs"`
	QueueDepth  int64            `json:"queue_depth"`
}

// Overview aggregates KPIs across all active campaigns for the range plus the
// latest sync activity.
func (s *DashboardService) Overview(ctx context.Context, startDate, endDate string) (*Overview, error) {
	if startDate == "" || endDate == "" {
		// Default to the trailing 30 days in the sync timezone.
		loc := s.container.Sync.location()
		today := time.Now().In(loc)
		endDate = today.Format(dateLayout)
		startDate = today.AddDate(0, 0, -29).Format(dateLayout)
	}

	leaderboard, err := s.container.Stats.Leaderboard(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	totals := KPISummary{StartDate: startDate, EndDate: endDate}
	for _, summary := range leaderboard {
		totals.Leads += summary.Leads
		totals.Cases += summary.Cases
		totals.Revenue += summary.Revenue
		totals.AdSpend += summary.AdSpend
	}
	totals.Profit = totals.Revenue - totals.AdSpend
	if totals.Leads > 0 {
		totals.CPL = totals.AdSpend / float64(totals.Leads)
		totals.WinRate = float64(totals.Cases) / float64(totals.Leads)
	}
	if totals.Cases > 0 {
		totals.CPA = totals.AdSpend / float64(totals.Cases)
	}
	if totals.AdSpend > 0 {
		totals.ROAS = totals.Revenue / totals.AdSpend
	}

	runs, err := s.container.Sync.ListRuns(ctx, RunFilter{Limit: 10})
	if err != nil {
		return nil, err
	}

	depth, err := s.container.Queue.Depth(ctx)
	if err != nil {
		depth = -1 // redis hiccup should not blank the dashboard
	}

	return &Overview{
		StartDate:   startDate,
		EndDate:     endDate,
		Totals:      totals,
		Leaderboard: leaderboard,
		RecentRuns:  runs,
		QueueDepth:  depth,
	}, nil
}
