// internal/interfaces/http/handlers/purchase.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchase"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// PurchaseHandler handles purchase history endpoints
type PurchaseHandler struct {
	purchaseService *purchase.Service
	userService     *user.Service
	config          *config.Config
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(db *gorm.DB, cfg *config.Config, provider payment.Provider) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchase.NewService(db, cfg, provider, nil),
		userService:     user.NewService(db, cfg),
		config:          cfg,
	}
}

// UpdateStatusRequest represents a fulfillment status update
type UpdateStatusRequest struct {
	Status purchase.Status `json:"status" binding:"required"`
}

// ListUserPurchases handles GET /purchases
func (h *PurchaseHandler) ListUserPurchases(c *gin.Context) {
	authID, _ := middleware.GetAuthIDFromContext(c)
	dbUser, err := h.userService.GetByAuthID(authID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not provisioned"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		}
		return
	}

	var req purchase.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	response, err := h.purchaseService.GetUserPurchases(dbUser.ID, &req)
	if err != nil {
		h.respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Purchases retrieved successfully",
		"data":    response,
	})
}

// ListAllPurchases handles GET /admin/purchases
func (h *PurchaseHandler) ListAllPurchases(c *gin.Context) {
	var req purchase.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	response, err := h.purchaseService.GetPurchases(&req)
	if err != nil {
		h.respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Purchases retrieved successfully",
		"data":    response,
	})
}

// UpdateStatus handles PUT /admin/purchases/:id/status
func (h *PurchaseHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	updated, err := h.purchaseService.UpdateStatus(id, req.Status)
	if err != nil {
		h.respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Purchase status updated successfully",
		"data":    updated,
	})
}

func (h *PurchaseHandler) respondPurchaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, purchase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
	case errors.Is(err, purchase.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase status"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process purchase request"})
	}
}
