package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/services"
)

type DashboardHandler struct {
	services *services.Container
}

func NewDashboardHandler(s *services.Container) *DashboardHandler {
	return &DashboardHandler{services: s}
}

// Overview returns the landing-page payload: range totals, leaderboard,
// recent sync activity.
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, err := h.services.Dashboard.Overview(c.Request.Context(),
		c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Leaderboard ranks campaigns by profit over a range.
func (h *DashboardHandler) Leaderboard(c *gin.Context) {
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return
	}

	leaderboard, err := h.services.Stats.Leaderboard(c.Request.Context(), startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": leaderboard})
}

// ChangeLog lists recent audited changes.
func (h *DashboardHandler) ChangeLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.services.Audit.List(c.Request.Context(), audit.ListFilter{
		Action:     audit.Action(c.Query("action")),
		EntityType: c.Query("entity_type"),
		Limit:      limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
