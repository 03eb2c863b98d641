package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/services"
)

type ConnectionHandler struct {
	services *services.Container
}

func NewConnectionHandler(s *services.Container) *ConnectionHandler {
	return &ConnectionHandler{services: s}
}

// List returns the connection state of every platform for the settings page.
func (h *ConnectionHandler) List(c *gin.Context) {
	statuses, err := h.services.Token.Connections(c.Request.Context(), getUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": statuses})
}

// ConnectGoogle completes the Google OAuth callback.
func (h *ConnectionHandler) ConnectGoogle(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := h.services.Token.ConnectGoogle(c.Request.Context(), getUserID(c), req.Code, req.RedirectURI)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"platform":   cred.Platform,
		"expires_at": cred.ExpiresAt,
	})
}

// Refresh forces a token refresh for a platform connection.
func (h *ConnectionHandler) Refresh(c *gin.Context) {
	platform := models.Platform(c.Param("platform"))
	cred, err := h.services.Token.ForceRefresh(c.Request.Context(), getUserID(c), platform)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"platform":   cred.Platform,
		"expires_at": cred.ExpiresAt,
	})
}

// Revoke drops the stored connection for a platform.
func (h *ConnectionHandler) Revoke(c *gin.Context) {
	platform := models.Platform(c.Param("platform"))
	if err := h.services.Token.Revoke(c.Request.Context(), getUserID(c), platform); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": platform})
}

// Accounts lists the Google Ads accounts the connection can access.
func (h *ConnectionHandler) Accounts(c *gin.Context) {
	ctx := c.Request.Context()
	userID := getUserID(c)

	token, err := h.services.Token.GetValidAccessToken(ctx, userID, models.PlatformGoogleAds)
	if err != nil {
		respondError(c, err)
		return
	}

	accounts, err := h.services.GoogleAds.ListAccessibleAccounts(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// ExternalCampaigns lists a platform's campaigns for the mapping picker.
func (h *ConnectionHandler) ExternalCampaigns(c *gin.Context) {
	platform := models.Platform(c.Param("platform"))
	accountID := c.Query("account_id")

	listed, err := h.services.Mapping.ListExternal(c.Request.Context(), getUserID(c), platform, accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": listed})
}
