// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchase"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// CheckoutHandler handles checkout session and reconciliation endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	purchaseService *purchase.Service
	userService     *user.Service
	config          *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(db *gorm.DB, cfg *config.Config, provider payment.Provider) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkout.NewService(db, cfg, provider),
		purchaseService: purchase.NewService(db, cfg, provider, nil),
		userService:     user.NewService(db, cfg),
		config:          cfg,
	}
}

// CompleteRequest represents a reconciliation request from the success page
type CompleteRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// CreateSession handles POST /checkout
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	dbUser, ok := h.requireUser(c)
	if !ok {
		return
	}

	session, err := h.checkoutService.CreateSession(c.Request.Context(), dbUser.ID)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout session created successfully",
		"data":    session,
	})
}

// RedirectToSession handles GET /checkout/sessions/:id by redirecting the
// client to the provider-hosted payment page
func (h *CheckoutHandler) RedirectToSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session id required"})
		return
	}

	url, err := h.checkoutService.GetSessionURL(c.Request.Context(), sessionID)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

// Complete handles POST /checkout/complete: verifies the payment and converts
// the cart into purchase records exactly once per payment.
func (h *CheckoutHandler) Complete(c *gin.Context) {
	dbUser, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.purchaseService.Reconcile(c.Request.Context(), dbUser.ID, req.SessionID)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	// Repeated callbacks land here with created=false; that is a success, not
	// an error
	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout completed successfully",
		"data":    result,
	})
}

// Private helper methods

func (h *CheckoutHandler) requireUser(c *gin.Context) (*user.User, bool) {
	authID, exists := middleware.GetAuthIDFromContext(c)
	if !exists || authID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	dbUser, err := h.userService.GetByAuthID(authID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not provisioned"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		}
		return nil, false
	}
	return dbUser, true
}

func (h *CheckoutHandler) respondCheckoutError(c *gin.Context, err error) {
	var providerErr *payment.ProviderError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, purchase.ErrPaymentIncomplete):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment not completed"})
	case errors.Is(err, purchase.ErrCartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
	case errors.Is(err, user.ErrNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not provisioned"})
	case errors.Is(err, cart.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not provisioned"})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process checkout request"})
	}
}
