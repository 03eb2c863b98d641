package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/services"
)

type SyncHandler struct {
	services *services.Container
}

func NewSyncHandler(s *services.Container) *SyncHandler {
	return &SyncHandler{services: s}
}

// Enqueue queues a sync run. The response is the pending run record; progress
// streams over the websocket and the run endpoints.
func (h *SyncHandler) Enqueue(c *gin.Context) {
	var req services.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := getUserID(c)
	req.TriggeredBy = &userID

	run, err := h.services.Sync.EnqueueRun(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// Backfill queues a run covering the trailing N days.
func (h *SyncHandler) Backfill(c *gin.Context) {
	var req struct {
		Platform   models.Platform `json:"platform" binding:"required"`
		CampaignID *uuid.UUID      `json:"campaign_id"`
		Days       int             `json:"days" binding:"required,min=1,max=365"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := getUserID(c)

	run, err := h.services.Sync.Backfill(c.Request.Context(), req.Platform, req.CampaignID, req.Days, &userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// SpendNow queues an immediate Google Ads spend sync for today, on top of the
// scheduler's 15-minute cadence.
func (h *SyncHandler) SpendNow(c *gin.Context) {
	userID := getUserID(c)

	run, err := h.services.Sync.Backfill(c.Request.Context(), models.PlatformGoogleAds, nil, 1, &userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// ListRuns returns recent sync runs, newest first.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := services.RunFilter{
		Platform: models.Platform(c.Query("platform")),
		Status:   models.SyncStatus(c.Query("status")),
		Limit:    limit,
	}

	runs, err := h.services.Sync.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one run record.
func (h *SyncHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	run, err := h.services.Sync.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
