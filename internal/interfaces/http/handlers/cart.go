// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// guestCartCookie is the cookie holding the anonymous cart line list as JSON.
// All reads and writes of it go through this handler; the mutation semantics
// live in the cart domain.
const guestCartCookie = "cart"

const guestCartMaxAge = 30 * 24 * 60 * 60 // 30 days

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
	config      *config.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(db *gorm.DB, cfg *config.Config) *CartHandler {
	return &CartHandler{
		cartService: cart.NewService(db, cfg),
		config:      cfg,
	}
}

// AddItemRequest represents an add-to-cart request
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// UpdateItemRequest represents a quantity update request
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	authID, _ := middleware.GetAuthIDFromContext(c)

	resolved, err := h.cartService.Resolve(authID, h.readGuestCart(c))
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	var cartResponse *cart.CartResponse
	if resolved.Anonymous() {
		cartResponse, err = h.cartService.GetGuestCart(resolved.Lines)
	} else {
		cartResponse, err = h.cartService.GetCart(*resolved.UserID)
	}
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    cartResponse,
	})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	authID, _ := middleware.GetAuthIDFromContext(c)
	resolved, err := h.cartService.Resolve(authID, h.readGuestCart(c))
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	if resolved.Anonymous() {
		if err := h.cartService.ValidateProduct(req.ProductID); err != nil {
			h.respondCartError(c, err)
			return
		}
		lines, err := resolved.Lines.Add(req.ProductID, req.Quantity)
		if err != nil {
			h.respondCartError(c, err)
			return
		}
		h.writeGuestCart(c, lines)
		h.respondGuestCart(c, lines, "Item added to cart successfully")
		return
	}

	cartResponse, err := h.cartService.AddItem(*resolved.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    cartResponse,
	})
}

// UpdateItem handles PUT /cart/items/:id. For signed-in users the id is the
// cart item id; for guests it is the product id (cookie lines have no row ids).
func (h *CartHandler) UpdateItem(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	authID, _ := middleware.GetAuthIDFromContext(c)
	resolved, err := h.cartService.Resolve(authID, h.readGuestCart(c))
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	if resolved.Anonymous() {
		lines, err := resolved.Lines.UpdateQuantity(id, req.Quantity)
		if err != nil {
			h.respondCartError(c, err)
			return
		}
		h.writeGuestCart(c, lines)
		h.respondGuestCart(c, lines, "Cart item updated successfully")
		return
	}

	cartResponse, err := h.cartService.UpdateItemQuantity(*resolved.UserID, id, req.Quantity)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    cartResponse,
	})
}

// RemoveItem handles DELETE /cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	authID, _ := middleware.GetAuthIDFromContext(c)
	resolved, err := h.cartService.Resolve(authID, h.readGuestCart(c))
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	if resolved.Anonymous() {
		lines, err := resolved.Lines.Remove(id)
		if err != nil {
			h.respondCartError(c, err)
			return
		}
		h.writeGuestCart(c, lines)
		h.respondGuestCart(c, lines, "Item removed from cart successfully")
		return
	}

	cartResponse, err := h.cartService.RemoveItem(*resolved.UserID, id)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    cartResponse,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	authID, _ := middleware.GetAuthIDFromContext(c)
	resolved, err := h.cartService.Resolve(authID, nil)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	if resolved.Anonymous() {
		h.expireGuestCart(c)
	} else if err := h.cartService.ClearCart(*resolved.UserID); err != nil {
		h.respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// MergeCart handles POST /cart/merge: folds the guest cookie cart into the
// signed-in user's persisted cart and expires the cookie.
func (h *CartHandler) MergeCart(c *gin.Context) {
	authID, _ := middleware.GetAuthIDFromContext(c)
	resolved, err := h.cartService.Resolve(authID, nil)
	if err != nil {
		h.respondCartError(c, err)
		return
	}
	if resolved.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return
	}

	guest := h.readGuestCart(c)
	cartResponse, err := h.cartService.MergeGuestLines(*resolved.UserID, guest)
	if err != nil {
		h.respondCartError(c, err)
		return
	}
	h.expireGuestCart(c)

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart merged successfully",
		"data":    cartResponse,
	})
}

// Private helper methods

func (h *CartHandler) readGuestCart(c *gin.Context) cart.LineList {
	raw, err := c.Cookie(guestCartCookie)
	if err != nil || raw == "" {
		return cart.LineList{}
	}

	var lines cart.LineList
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		// Malformed cookie; start over with an empty cart
		return cart.LineList{}
	}
	return lines
}

func (h *CartHandler) writeGuestCart(c *gin.Context, lines cart.LineList) {
	data, err := json.Marshal(lines)
	if err != nil {
		return
	}
	c.SetCookie(guestCartCookie, string(data), guestCartMaxAge, "/", "", h.config.IsProduction(), false)
}

func (h *CartHandler) expireGuestCart(c *gin.Context) {
	c.SetCookie(guestCartCookie, "", -1, "/", "", h.config.IsProduction(), false)
}

func (h *CartHandler) respondGuestCart(c *gin.Context, lines cart.LineList, message string) {
	cartResponse, err := h.cartService.GetGuestCart(lines)
	if err != nil {
		h.respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    cartResponse,
	})
}

func (h *CartHandler) respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not provisioned"})
	case errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
	case errors.Is(err, cart.ErrProductNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product not found or inactive"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process cart request"})
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	idParam := c.Param("id")
	id, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid id",
		})
		return 0, false
	}
	return uint(id), true
}
