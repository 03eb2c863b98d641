package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tortshark/backend/internal/auth"
	"github.com/tortshark/backend/internal/platforms"
	"github.com/tortshark/backend/internal/queue"
	"github.com/tortshark/backend/internal/services"
)

func getUserID(c *gin.Context) uuid.UUID {
	id, _ := auth.GetUserID(c)
	return id
}

// respondError maps the service error taxonomy onto HTTP statuses. Provider
// failures surface as 502 with the upstream diagnostic; rate limits as 429.
func respondError(c *gin.Context, err error) {
	var providerErr *platforms.ProviderError
	var rateErr *platforms.RateLimitedError

	switch {
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrMappingNotFound),
		errors.Is(err, services.ErrBuyerNotFound),
		errors.Is(err, services.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrAlreadyMapped),
		errors.Is(err, queue.ErrDuplicateRun):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrNotConnected),
		errors.Is(err, services.ErrRefreshFailed),
		errors.Is(err, platforms.ErrMissingToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrNotOAuth),
		errors.Is(err, services.ErrPlatformNotSynced):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.As(err, &rateErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})

	case errors.As(err, &providerErr), errors.Is(err, platforms.ErrInvalidResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
