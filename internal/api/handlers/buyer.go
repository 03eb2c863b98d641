package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tortshark/backend/internal/services"
)

type BuyerHandler struct {
	services *services.Container
}

func NewBuyerHandler(s *services.Container) *BuyerHandler {
	return &BuyerHandler{services: s}
}

func (h *BuyerHandler) List(c *gin.Context) {
	tortType := c.Query("tort_type")
	activeOnly := c.Query("active") == "true"

	buyers, err := h.services.Buyer.List(c.Request.Context(), tortType, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buyers": buyers})
}

// Waterfall returns active buyers for a tort in offer order.
func (h *BuyerHandler) Waterfall(c *gin.Context) {
	tortType := c.Query("tort_type")
	if tortType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tort_type is required"})
		return
	}

	buyers, err := h.services.Buyer.Waterfall(c.Request.Context(), tortType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buyers": buyers})
}

func (h *BuyerHandler) Create(c *gin.Context) {
	var req services.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyer, err := h.services.Buyer.Create(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buyer)
}

func (h *BuyerHandler) Update(c *gin.Context) {
	buyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid buyer ID"})
		return
	}

	var req services.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyer, err := h.services.Buyer.Update(c.Request.Context(), getUserID(c), buyerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buyer)
}

func (h *BuyerHandler) Delete(c *gin.Context) {
	buyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid buyer ID"})
		return
	}

	if err := h.services.Buyer.Delete(c.Request.Context(), getUserID(c), buyerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": buyerID})
}

// Reorder rewrites the waterfall priorities to match the posted ID order.
func (h *BuyerHandler) Reorder(c *gin.Context) {
	var req struct {
		BuyerIDs []uuid.UUID `json:"buyer_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Buyer.Reorder(c.Request.Context(), getUserID(c), req.BuyerIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": len(req.BuyerIDs)})
}
