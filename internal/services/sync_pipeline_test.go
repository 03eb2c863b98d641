package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/config"
	"github.com/tortshark/backend/internal/models"
)

// leadDay serves one LeadProsper page of 10 leads on a single Eastern day:
// 6 accepted (one upper-cased), 1 duplicate, 1 rejected, 1 failed, 1 with an
// unknown status. Cost 12 each, revenue 150 on the accepted ones.
func leadDayHandler(t *testing.T) http.HandlerFunc {
	leadAt := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) // 11:00 Eastern
	statuses := []string{
		"accepted", "accepted", "accepted", "accepted", "accepted", "ACCEPTED",
		"duplicate", "rejected", "failed", "under_review",
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/leads" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "77", r.URL.Query().Get("campaign"))

		leads := make([]map[string]interface{}, 0, len(statuses))
		for i, status := range statuses {
			revenue := 0.0
			if i < 6 {
				revenue = 150.0
			}
			leads = append(leads, map[string]interface{}{
				"id":           9000 + i,
				"campaign_id":  77,
				"status":       status,
				"cost":         12.0,
				"revenue":      revenue,
				"lead_date_ms": leadAt.UnixMilli(),
			})
		}
		body, _ := json.Marshal(map[string]interface{}{"data": leads})
		w.Write(body)
	}
}

func newLeadSyncEnv(t *testing.T) (*Container, uuid.UUID) {
	t.Helper()

	server := httptest.NewServer(leadDayHandler(t))
	t.Cleanup(server.Close)

	container := newTestContainer(t, &config.Config{
		LeadProsperAPIKey:  "test-key",
		LeadProsperBaseURL: server.URL,
	})

	campaignID := uuid.New()
	require.NoError(t, container.DB.Create(&models.Campaign{
		ID:       campaignID,
		Name:     "MVA - FL",
		TortType: "mva",
		Status:   models.CampaignActive,
	}).Error)
	require.NoError(t, container.DB.Create(&models.CampaignMapping{
		ID:                 uuid.New(),
		CampaignID:         campaignID,
		Platform:           models.PlatformLeadProsper,
		ExternalCampaignID: "77",
		Active:             true,
		LinkedAt:           time.Now(),
	}).Error)

	return container, campaignID
}

func runLeadSync(t *testing.T, container *Container) *models.SyncRun {
	t.Helper()
	ctx := context.Background()

	run, err := container.Sync.EnqueueRun(ctx, &RunRequest{
		Platform:  models.PlatformLeadProsper,
		StartDate: "2024-05-01",
		EndDate:   "2024-05-01",
	})
	require.NoError(t, err)
	require.NoError(t, container.Sync.Execute(ctx, run.ID))

	finished, err := container.Sync.GetRun(ctx, run.ID)
	require.NoError(t, err)
	return finished
}

func TestLeadSyncWritesOneDailyRow(t *testing.T) {
	container, campaignID := newLeadSyncEnv(t)

	run := runLeadSync(t, container)
	assert.Equal(t, models.SyncCompleted, run.Status)
	assert.Equal(t, 10, run.LeadsFetched)
	assert.Equal(t, 1, run.RowsWritten)
	assert.Zero(t, run.RowsFailed)

	rows, err := container.Stats.GetRange(context.Background(), campaignID, "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 10, row.Leads)
	assert.Equal(t, 6, row.Cases)
	assert.Equal(t, 6, row.Accepted)
	assert.Equal(t, 1, row.Duplicated)
	assert.Equal(t, 2, row.Failed)
	assert.InDelta(t, 120.0, row.AdSpend, 1e-9)
	assert.InDelta(t, 900.0, row.Revenue, 1e-9)
	assert.Zero(t, row.MediaSpend)
}

func TestLeadSyncReRunIsIdempotent(t *testing.T) {
	container, campaignID := newLeadSyncEnv(t)
	ctx := context.Background()

	first := runLeadSync(t, container)
	assert.Equal(t, models.SyncCompleted, first.Status)

	// The same range again: the finished run released its dedupe slot, and
	// the upsert overwrites the row with identical absolute totals.
	second := runLeadSync(t, container)
	assert.Equal(t, models.SyncCompleted, second.Status)
	assert.Equal(t, 10, second.LeadsFetched)

	rows, err := container.Stats.GetRange(ctx, campaignID, "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].Leads)
	assert.Equal(t, 6, rows[0].Cases)
	assert.InDelta(t, 120.0, rows[0].AdSpend, 1e-9)
	assert.InDelta(t, 900.0, rows[0].Revenue, 1e-9)

	var rawLeads int64
	require.NoError(t, container.DB.Model(&models.RawLead{}).Count(&rawLeads).Error)
	assert.EqualValues(t, 10, rawLeads)
}

func TestEnqueueRunRejectsDuplicateWhilePending(t *testing.T) {
	container, _ := newLeadSyncEnv(t)
	ctx := context.Background()

	req := &RunRequest{
		Platform:  models.PlatformLeadProsper,
		StartDate: "2024-05-01",
		EndDate:   "2024-05-01",
	}
	_, err := container.Sync.EnqueueRun(ctx, req)
	require.NoError(t, err)

	_, err = container.Sync.EnqueueRun(ctx, req)
	assert.Error(t, err)

	var pending int64
	require.NoError(t, container.DB.Model(&models.SyncRun{}).Count(&pending).Error)
	assert.EqualValues(t, 1, pending)
}
