package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tortshark/backend/internal/services"
)

type MappingHandler struct {
	services *services.Container
}

func NewMappingHandler(s *services.Container) *MappingHandler {
	return &MappingHandler{services: s}
}

// Create links an external campaign to an internal campaign.
func (h *MappingHandler) Create(c *gin.Context) {
	var req services.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mapping, err := h.services.Mapping.Create(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

// Unlink soft-deletes a mapping.
func (h *MappingHandler) Unlink(c *gin.Context) {
	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping ID"})
		return
	}

	if err := h.services.Mapping.Unlink(c.Request.Context(), getUserID(c), mappingID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlinked": mappingID})
}
