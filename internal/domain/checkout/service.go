// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"gorm.io/gorm"
)

// ErrEmptyCart is returned when checkout is attempted with no cart lines.
// The guard runs before any provider call.
var ErrEmptyCart = errors.New("cart is empty")

// Service turns a resolved cart into a payment-provider checkout session
type Service struct {
	db          *gorm.DB
	config      *config.Config
	provider    payment.Provider
	cartService *cart.Service
	userService *user.Service
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, cfg *config.Config, provider payment.Provider) *Service {
	return &Service{
		db:          db,
		config:      cfg,
		provider:    provider,
		cartService: cart.NewService(db, cfg),
		userService: user.NewService(db, cfg),
	}
}

// SessionResponse carries the provider's session identifier back to the client
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession builds one provider line item per cart line from the product's
// current title, image and price, and opens a checkout session. Retry policy on
// provider failures belongs to the caller.
func (s *Service) CreateSession(ctx context.Context, userID uint) (*SessionResponse, error) {
	dbUser, err := s.userService.GetByID(userID)
	if err != nil {
		return nil, err
	}

	cartResponse, err := s.cartService.GetCart(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	if len(cartResponse.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lineItems := make([]payment.LineItem, len(cartResponse.Items))
	for i, item := range cartResponse.Items {
		imageURL := item.ImageURL
		if imageURL == "" {
			imageURL = s.config.Checkout.PlaceholderImageURL
		}
		lineItems[i] = payment.LineItem{
			Name:       item.Title,
			ImageURL:   imageURL,
			UnitAmount: item.Price,
			Quantity:   item.Quantity,
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, &payment.CheckoutSessionParams{
		LineItems:     lineItems,
		SuccessURL:    s.config.GetCheckoutSuccessURL(),
		CancelURL:     s.config.GetCheckoutCancelURL(),
		CustomerEmail: dbUser.Email,
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	return &SessionResponse{SessionID: session.ID}, nil
}

// GetSessionURL returns the provider-hosted payment page URL for a session,
// used by the redirect endpoint after session creation.
func (s *Service) GetSessionURL(ctx context.Context, sessionID string) (string, error) {
	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.URL == "" {
		return "", fmt.Errorf("session %s has no redirect URL", sessionID)
	}
	return session.URL, nil
}
