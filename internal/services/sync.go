package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tortshark/backend/internal/aggregate"
	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/locks"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/platforms"
	"github.com/tortshark/backend/internal/websocket"
)

var (
	ErrRunNotFound        = errors.New("sync run not found")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrPlatformNotSynced  = errors.New("platform does not support syncing")
	ErrPlatformNotEnabled = errors.New("platform client is not configured")
)

const dateLayout = "2006-01-02"

// SyncService orchestrates the reconciliation pipeline: fetch raw platform
// data for every active mapping, aggregate it into per-campaign daily
// buckets, and upsert the result. Every invocation is a persisted SyncRun, so
// in-flight work is observable and a crashed run is visible as stuck
// "running" rather than silently gone.
type SyncService struct {
	container *Container
}

func NewSyncService(container *Container) *SyncService {
	return &SyncService{container: container}
}

// RunRequest describes one requested sync.
type RunRequest struct {
	Platform    models.Platform `json:"platform" binding:"required"`
	CampaignID  *uuid.UUID      `json:"campaign_id,omitempty"`
	StartDate   string          `json:"start_date" binding:"required"`
	EndDate     string          `json:"end_date" binding:"required"`
	DryRun      bool            `json:"dry_run"`
	TriggeredBy *uuid.UUID      `json:"-"`
}

func (r *RunRequest) validate() error {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return ErrInvalidDateRange
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return ErrInvalidDateRange
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}

// dedupeKey encodes the identity of a run: two requests with the same
// platform, campaign filter, and range are the same work.
func dedupeKey(platform models.Platform, campaignID *uuid.UUID, startDate, endDate string) string {
	campaign := "all"
	if campaignID != nil {
		campaign = campaignID.String()
	}
	return fmt.Sprintf("%s:%s:%s:%s", platform, campaign, startDate, endDate)
}

// EnqueueRun persists a pending SyncRun and queues it for a worker. Identical
// pending or running requests collapse into the existing run.
func (s *SyncService) EnqueueRun(ctx context.Context, req *RunRequest) (*models.SyncRun, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	switch req.Platform {
	case models.PlatformLeadProsper, models.PlatformHyros,
		models.PlatformGoogleAds, models.PlatformClickMagick:
	default:
		return nil, ErrPlatformNotSynced
	}

	run := &models.SyncRun{
		ID:          uuid.New(),
		Platform:    req.Platform,
		Status:      models.SyncPending,
		CampaignID:  req.CampaignID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		DryRun:      req.DryRun,
		TriggeredBy: req.TriggeredBy,
		EnqueuedAt:  time.Now(),
	}

	if err := s.container.DB.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}

	key := dedupeKey(run.Platform, run.CampaignID, run.StartDate, run.EndDate)
	if err := s.container.Queue.Enqueue(ctx, run.ID, key); err != nil {
		// Undo the record so a rejected duplicate leaves no orphan row.
		s.container.DB.WithContext(ctx).Delete(run)
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     req.TriggeredBy,
		Action:     audit.ActionSyncEnqueued,
		Platform:   string(req.Platform),
		EntityType: "sync_run",
		EntityID:   run.ID.String(),
		Result:     audit.ResultSuccess,
		After:      run,
	})

	return run, nil
}

// Backfill enqueues a run covering the last `days` calendar days, today
// inclusive, in the sync timezone.
func (s *SyncService) Backfill(ctx context.Context, platform models.Platform, campaignID *uuid.UUID, days int, triggeredBy *uuid.UUID) (*models.SyncRun, error) {
	if days < 1 {
		days = 1
	}
	loc := s.location()
	today := time.Now().In(loc)

	return s.EnqueueRun(ctx, &RunRequest{
		Platform:    platform,
		CampaignID:  campaignID,
		StartDate:   today.AddDate(0, 0, -(days - 1)).Format(dateLayout),
		EndDate:     today.Format(dateLayout),
		TriggeredBy: triggeredBy,
	})
}

// Execute runs one queued sync to completion. Safe to call twice with the
// same ID: the second call finds the run past pending and does nothing.
func (s *SyncService) Execute(ctx context.Context, runID uuid.UUID) error {
	return locks.WithLock(ctx, s.container.Locks, locks.ResourceSyncRun, runID.String(),
		30*time.Minute, func() error {
			return s.execute(ctx, runID)
		})
}

func (s *SyncService) execute(ctx context.Context, runID uuid.UUID) error {
	ctx = logger.WithSyncRunID(ctx, runID)
	log := logger.FromContext(ctx)

	var run models.SyncRun
	if err := s.container.DB.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRunNotFound
		}
		return err
	}
	if run.Status != models.SyncPending {
		log.Warn().Str("status", string(run.Status)).Msg("Sync run already claimed, skipping")
		return nil
	}

	now := time.Now()
	run.Status = models.SyncRunning
	run.StartedAt = &now
	if err := s.container.DB.WithContext(ctx).Model(&run).
		Updates(map[string]interface{}{"status": run.Status, "started_at": now}).Error; err != nil {
		return err
	}

	s.container.WSHub.Broadcast(websocket.Event{Type: "sync:started", Payload: run})
	log.Info().
		Str("platform", string(run.Platform)).
		Str("start", run.StartDate).
		Str("end", run.EndDate).
		Bool("dry_run", run.DryRun).
		Msg("Sync run started")

	var execErr error
	switch run.Platform {
	case models.PlatformLeadProsper, models.PlatformHyros:
		execErr = s.syncLeads(ctx, &run)
	case models.PlatformGoogleAds, models.PlatformClickMagick:
		execErr = s.syncSpend(ctx, &run)
	default:
		execErr = ErrPlatformNotSynced
	}

	s.finish(ctx, &run, execErr)
	return execErr
}

// syncLeads is the lead-platform path: fetch, persist raw leads, aggregate
// into daily buckets, upsert. A rate-limited fetch keeps its partial records
// and the run is finished as failed so a retry picks up the missing tail.
func (s *SyncService) syncLeads(ctx context.Context, run *models.SyncRun) error {
	log := logger.FromContext(ctx)

	fetcher, err := s.fetcherFor(run.Platform)
	if err != nil {
		return err
	}

	mappings, err := s.container.Mapping.ActiveMappings(ctx, run.Platform, run.CampaignID)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		log.Info().Msg("No active mappings for platform, nothing to sync")
		return nil
	}

	// Fan out per distinct external campaign; a mapping re-link within the
	// range must not fetch the same campaign twice.
	seen := make(map[string]bool, len(mappings))
	var records []platforms.LeadRecord
	var fetchErr error
	for _, mapping := range mappings {
		if seen[mapping.ExternalCampaignID] {
			continue
		}
		seen[mapping.ExternalCampaignID] = true

		fetched, err := fetcher.FetchLeads(ctx, mapping.ExternalCampaignID, run.StartDate, run.EndDate)
		records = append(records, fetched...)
		if err != nil {
			// Partial results still count; remaining campaigns are skipped
			// because a rate limit or provider outage will hit them too.
			fetchErr = err
			log.Warn().Err(err).
				Str("external_campaign", mapping.ExternalCampaignID).
				Int("partial_records", len(fetched)).
				Msg("Lead fetch aborted, keeping partial results")
			break
		}

		s.container.WSHub.Broadcast(websocket.Event{Type: "sync:progress", Payload: map[string]interface{}{
			"run_id":            run.ID,
			"external_campaign": mapping.ExternalCampaignID,
			"leads_fetched":     len(records),
		}})
	}
	run.LeadsFetched = len(records)

	if !run.DryRun {
		if err := s.persistRawLeads(ctx, run.Platform, records); err != nil {
			log.Error().Err(err).Msg("Failed to persist raw leads")
		}
	}

	resolve, err := s.container.Mapping.ResolverFor(ctx, run.Platform, run.CampaignID)
	if err != nil {
		return err
	}

	buckets := aggregate.Leads(records, resolve, s.location())
	rows := make([]models.DailyStat, 0, len(buckets))
	for key, totals := range buckets {
		rows = append(rows, models.DailyStat{
			CampaignID: key.CampaignID,
			StatDate:   key.Date,
			Leads:      totals.Leads,
			Cases:      totals.Accepted, // a signed case is an accepted lead
			Accepted:   totals.Accepted,
			Duplicated: totals.Duplicated,
			Failed:     totals.Failed,
			AdSpend:    totals.AdSpend,
			Revenue:    totals.Revenue,
		})
	}

	if run.DryRun {
		log.Info().Int("would_write", len(rows)).Msg("Dry run, skipping writes")
		return fetchErr
	}

	run.RowsWritten, run.RowsFailed = s.writeRows(ctx, rows, s.container.Stats.UpsertDailyStats)
	return fetchErr
}

// syncSpend is the ad-platform path: per-day spend rows merged into existing
// stats without touching lead counts.
func (s *SyncService) syncSpend(ctx context.Context, run *models.SyncRun) error {
	log := logger.FromContext(ctx)

	mappings, err := s.container.Mapping.ActiveMappings(ctx, run.Platform, run.CampaignID)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		log.Info().Msg("No active mappings for platform, nothing to sync")
		return nil
	}

	var accessToken string
	if run.Platform == models.PlatformGoogleAds {
		if run.TriggeredBy != nil {
			accessToken, err = s.container.Token.GetValidAccessToken(ctx, *run.TriggeredBy, run.Platform)
		} else {
			accessToken, err = s.container.Token.AnyValidAccessToken(ctx, run.Platform)
		}
		if err != nil {
			return err
		}
	}

	var records []platforms.SpendRecord
	var fetchErr error
	// Spend fan-out is keyed by (account, campaign): the same campaign ID can
	// exist under two ad accounts and both must be fetched.
	seen := make(map[string]bool, len(mappings))
	for _, mapping := range mappings {
		seenKey := mapping.ExternalAccountID + "/" + mapping.ExternalCampaignID
		if seen[seenKey] {
			continue
		}
		seen[seenKey] = true

		var fetched []platforms.SpendRecord
		switch run.Platform {
		case models.PlatformGoogleAds:
			fetched, err = s.container.GoogleAds.FetchDailySpend(ctx, accessToken,
				mapping.ExternalAccountID, mapping.ExternalCampaignID, run.StartDate, run.EndDate)
		case models.PlatformClickMagick:
			if s.container.ClickMagick == nil {
				return ErrPlatformNotEnabled
			}
			fetched, err = s.container.ClickMagick.FetchDailyClicks(ctx,
				mapping.ExternalCampaignID, run.StartDate, run.EndDate)
		}
		records = append(records, fetched...)
		if err != nil {
			fetchErr = err
			log.Warn().Err(err).
				Str("external_campaign", mapping.ExternalCampaignID).
				Msg("Spend fetch aborted, keeping partial results")
			break
		}
	}

	resolve, err := s.container.Mapping.SpendResolverFor(ctx, run.Platform, run.CampaignID)
	if err != nil {
		return err
	}

	buckets := aggregate.Spend(records, resolve)
	rows := make([]models.DailyStat, 0, len(buckets))
	for key, totals := range buckets {
		rows = append(rows, models.DailyStat{
			CampaignID:  key.CampaignID,
			StatDate:    key.Date,
			MediaSpend:  totals.Cost,
			Impressions: totals.Impressions,
			Clicks:      totals.Clicks,
			CPC:         totals.CPC(),
		})
	}

	if run.DryRun {
		log.Info().Int("would_write", len(rows)).Msg("Dry run, skipping writes")
		return fetchErr
	}

	run.RowsWritten, run.RowsFailed = s.writeRows(ctx, rows, s.container.Stats.UpsertSpend)
	return fetchErr
}

// writeRows upserts per campaign under that campaign's lock, so two
// overlapping runs never interleave writes to the same campaign.
func (s *SyncService) writeRows(ctx context.Context, rows []models.DailyStat, upsert func(context.Context, []models.DailyStat) error) (written, failed int) {
	byCampaign := make(map[uuid.UUID][]models.DailyStat)
	for _, row := range rows {
		byCampaign[row.CampaignID] = append(byCampaign[row.CampaignID], row)
	}

	log := logger.FromContext(ctx)
	for campaignID, campaignRows := range byCampaign {
		rows := campaignRows
		err := locks.WithLockRetry(ctx, s.container.Locks, locks.ResourceCampaign,
			campaignID.String(), time.Minute, 30*time.Second, func() error {
				return upsert(ctx, rows)
			})
		if err != nil {
			failed += len(rows)
			log.Error().Err(err).
				Str("campaign_id", campaignID.String()).
				Int("rows", len(rows)).
				Msg("Failed to upsert daily stats")
			continue
		}
		written += len(rows)
	}
	return written, failed
}

func (s *SyncService) persistRawLeads(ctx context.Context, platform models.Platform, records []platforms.LeadRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.RawLead, 0, len(records))
	for _, r := range records {
		rows = append(rows, models.RawLead{
			ID:                 uuid.New(),
			Platform:           platform,
			ExternalID:         r.ID,
			ExternalCampaignID: r.ExternalCampaignID,
			Status:             r.Status,
			Cost:               r.Cost,
			Revenue:            r.Revenue,
			LeadAt:             r.LeadAt,
			Payload:            r.Payload,
			UpdatedAt:          now,
		})
	}

	return s.container.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_campaign_id", "status", "cost", "revenue", "lead_at", "updated_at",
		}),
	}).CreateInBatches(&rows, 500).Error
}

// finish closes out the run record and clears the queue dedupe slot.
func (s *SyncService) finish(ctx context.Context, run *models.SyncRun, execErr error) {
	log := logger.FromContext(ctx)
	now := time.Now()

	updates := map[string]interface{}{
		"leads_fetched": run.LeadsFetched,
		"rows_written":  run.RowsWritten,
		"rows_failed":   run.RowsFailed,
		"finished_at":   now,
	}
	if execErr != nil {
		run.Status = models.SyncFailed
		run.Error = execErr.Error()
		updates["error"] = run.Error
	} else {
		run.Status = models.SyncCompleted
	}
	updates["status"] = run.Status
	run.FinishedAt = &now

	if err := s.container.DB.WithContext(ctx).Model(run).Updates(updates).Error; err != nil {
		log.Error().Err(err).Msg("Failed to finalize sync run record")
	}

	key := dedupeKey(run.Platform, run.CampaignID, run.StartDate, run.EndDate)
	if err := s.container.Queue.Done(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Failed to clear sync dedupe key")
	}

	action := audit.ActionSyncCompleted
	result := audit.ResultSuccess
	eventType := "sync:completed"
	if execErr != nil {
		action = audit.ActionSyncFailed
		eventType = "sync:failed"
		result = audit.ResultFailed
		if run.LeadsFetched > 0 || run.RowsWritten > 0 {
			result = audit.ResultPartial
		}
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:       run.TriggeredBy,
		Action:       action,
		Platform:     string(run.Platform),
		EntityType:   "sync_run",
		EntityID:     run.ID.String(),
		Result:       result,
		ErrorMessage: run.Error,
		After:        run,
	})
	s.container.WSHub.Broadcast(websocket.Event{Type: eventType, Payload: run})

	log.Info().
		Str("status", string(run.Status)).
		Int("leads_fetched", run.LeadsFetched).
		Int("rows_written", run.RowsWritten).
		Int("rows_failed", run.RowsFailed).
		Msg("Sync run finished")
}

func (s *SyncService) fetcherFor(platform models.Platform) (platforms.LeadFetcher, error) {
	switch platform {
	case models.PlatformLeadProsper:
		if s.container.LeadProsper == nil {
			return nil, ErrPlatformNotEnabled
		}
		return s.container.LeadProsper, nil
	case models.PlatformHyros:
		if s.container.Hyros == nil {
			return nil, ErrPlatformNotEnabled
		}
		return s.container.Hyros, nil
	default:
		return nil, ErrPlatformNotSynced
	}
}

func (s *SyncService) location() *time.Location {
	loc, err := time.LoadLocation(s.container.Config.SyncTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetRun fetches one run record.
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.container.DB.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Platform models.Platform
	Status   models.SyncStatus
	Limit    int
}

// ListRuns returns recent runs, newest first.
func (s *SyncService) ListRuns(ctx context.Context, filter RunFilter) ([]models.SyncRun, error) {
	query := s.container.DB.WithContext(ctx).Model(&models.SyncRun{}).Order("enqueued_at DESC")
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var runs []models.SyncRun
	if err := query.Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
