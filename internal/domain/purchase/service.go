// internal/domain/purchase/service.go
package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/product"
	"gorm.io/gorm"
)

var (
	// ErrPaymentIncomplete means the provider reports a non-paid status for the
	// session; no purchases are created
	ErrPaymentIncomplete = errors.New("payment not completed")
	// ErrCartNotFound means the cart disappeared before materialization
	ErrCartNotFound = errors.New("cart not found")
	// ErrInvalidStatus means an unknown purchase status was requested
	ErrInvalidStatus = errors.New("invalid purchase status")
	// ErrNotFound means the purchase does not exist
	ErrNotFound = errors.New("purchase not found")
)

// Service converts completed checkout sessions into purchase records
type Service struct {
	db       *gorm.DB
	config   *config.Config
	provider payment.Provider
	logger   *logrus.Logger
}

// NewService creates a new purchase service
func NewService(db *gorm.DB, cfg *config.Config, provider payment.Provider, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		db:       db,
		config:   cfg,
		provider: provider,
		logger:   logger,
	}
}

// ReconcileResult reports whether this call materialized purchases and how many
// exist for the payment either way.
type ReconcileResult struct {
	Created bool `json:"created"`
	Count   int  `json:"count"`
}

// Reconcile verifies the session's payment, materializes one purchase per cart
// line exactly once per payment, and clears the cart. The idempotency key is the
// provider's payment identifier, not the session id: the payment id is stable
// across duplicate callbacks. Check, create and clear run in one transaction;
// a concurrent duplicate that slips past the check hits the unique index on
// (stripe_payment_id, product_id) and is folded into the idempotent outcome.
func (s *Service) Reconcile(ctx context.Context, userID uint, sessionID string) (*ReconcileResult, error) {
	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus != payment.PaymentStatusPaid || session.PaymentIntentID == "" {
		return nil, ErrPaymentIncomplete
	}
	paymentID := session.PaymentIntentID

	result, err := s.reconcilePayment(userID, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a concurrent reconciliation for the same payment; the winner
			// already materialized, so report its rows as the existing batch
			return s.existingBatch(userID, paymentID)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"payment_id": paymentID,
		"created":    result.Created,
		"count":      result.Count,
	}).Info("checkout reconciled")

	return result, nil
}

// reconcilePayment runs the check-then-materialize-then-clear sequence in a
// single transaction keyed by the payment identifier
func (s *Service) reconcilePayment(userID uint, paymentID string) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existingCount int64
		if err := tx.Model(&Purchase{}).Where("stripe_payment_id = ?", paymentID).Count(&existingCount).Error; err != nil {
			return fmt.Errorf("failed to check existing purchases: %w", err)
		}

		if existingCount > 0 {
			// Already materialized. Re-issue the clear so a crash between
			// materialization and clearing still converges to an empty cart.
			if err := clearCartLines(tx, userID); err != nil {
				return err
			}
			result = &ReconcileResult{Created: false, Count: int(existingCount)}
			return nil
		}

		var c cart.Cart
		err := tx.Preload("Items").Where("user_id = ?", userID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to retrieve cart: %w", err)
		}

		purchases := make([]Purchase, 0, len(c.Items))
		for _, item := range c.Items {
			var p product.Product
			if err := tx.Where("id = ?", item.ProductID).First(&p).Error; err != nil {
				return fmt.Errorf("failed to load product %d: %w", item.ProductID, err)
			}
			purchases = append(purchases, Purchase{
				UserID:          userID,
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				Amount:          p.Price,
				Status:          StatusCompleted,
				StripePaymentID: paymentID,
			})
		}

		if len(purchases) > 0 {
			if err := tx.Create(&purchases).Error; err != nil {
				return err
			}
		}

		// Purchases are durable once this transaction commits; only then do the
		// cart lines go away
		if err := clearCartLines(tx, userID); err != nil {
			return err
		}

		result = &ReconcileResult{Created: true, Count: len(purchases)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) existingBatch(userID uint, paymentID string) (*ReconcileResult, error) {
	var count int64
	if err := s.db.Model(&Purchase{}).Where("stripe_payment_id = ?", paymentID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count existing purchases: %w", err)
	}
	if err := clearCartLines(s.db, userID); err != nil {
		return nil, err
	}
	return &ReconcileResult{Created: false, Count: int(count)}, nil
}

func clearCartLines(tx *gorm.DB, userID uint) error {
	sub := tx.Model(&cart.Cart{}).Select("id").Where("user_id = ?", userID)
	if err := tx.Where("cart_id IN (?)", sub).Delete(&cart.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ListRequest represents purchase list query parameters
type ListRequest struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Status Status `form:"status"`
}

// ListResponse represents a paginated purchase listing
type ListResponse struct {
	Purchases  []Purchase `json:"purchases"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// GetPurchases returns purchases across all users, newest first
func (s *Service) GetPurchases(req *ListRequest) (*ListResponse, error) {
	return s.listPurchases(req, nil)
}

// GetUserPurchases returns one user's purchases, newest first
func (s *Service) GetUserPurchases(userID uint, req *ListRequest) (*ListResponse, error) {
	return s.listPurchases(req, &userID)
}

func (s *Service) listPurchases(req *ListRequest, userID *uint) (*ListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Status != "" && !req.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	query := s.db.Model(&Purchase{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count purchases: %w", err)
	}

	var purchases []Purchase
	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve purchases: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))

	return &ListResponse{
		Purchases: purchases,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// UpdateStatus moves a purchase to a new fulfillment status. Amount, quantity
// and payment id stay frozen.
func (s *Service) UpdateStatus(id uint, status Status) (*Purchase, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	var p Purchase
	err := s.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve purchase: %w", err)
	}

	p.Status = status
	if err := s.db.Save(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to update purchase status: %w", err)
	}
	return &p, nil
}
