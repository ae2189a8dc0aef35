// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// AuthHandler handles identity mapping endpoints. Authentication itself is the
// identity provider's job; these endpoints only map its subject to an internal
// user record.
type AuthHandler struct {
	userService *user.Service
	config      *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		userService: user.NewService(db, cfg),
		config:      cfg,
	}
}

// Provision handles POST /auth/provision: creates the internal user for the
// authenticated subject on first call, returns the existing record afterwards.
func (h *AuthHandler) Provision(c *gin.Context) {
	authID, _ := middleware.GetAuthIDFromContext(c)
	email, _ := middleware.GetUserEmailFromContext(c)
	name, _ := middleware.GetUserNameFromContext(c)

	dbUser, err := h.userService.Provision(authID, email, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User provisioned successfully",
		"data":    dbUser,
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{
		"message": "User retrieved successfully",
		"data":    dbUser,
	})
}
