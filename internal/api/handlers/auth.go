package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/auth"
	"github.com/tortshark/backend/internal/services"
)

type AuthHandler struct {
	services *services.Container
}

func NewAuthHandler(s *services.Container) *AuthHandler {
	return &AuthHandler{services: s}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.services.Audit.Log(c.Request.Context(), audit.Entry{
		UserID:     &resp.User.ID,
		Action:     audit.ActionRegister,
		EntityType: "user",
		EntityID:   resp.User.ID.String(),
		Result:     audit.ResultSuccess,
	})

	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, auth.ErrUserDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.services.Audit.Log(c.Request.Context(), audit.Entry{
		UserID:     &resp.User.ID,
		Action:     audit.ActionLogin,
		EntityType: "user",
		EntityID:   resp.User.ID.String(),
		Result:     audit.ResultSuccess,
	})

	c.JSON(http.StatusOK, resp)
}
