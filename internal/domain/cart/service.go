// internal/domain/cart/service.go
package cart

import (
	"errors"
	"fmt"

	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/product"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated means the identity provider claims a subject but no
	// internal user record exists yet (provision first)
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrItemNotFound means the cart line does not exist
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity means a quantity below 1 was requested
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrProductNotFound means the product does not exist or is inactive
	ErrProductNotFound = errors.New("product not found or inactive")
)

// Service handles cart business logic
type Service struct {
	db          *gorm.DB
	config      *config.Config
	userService *user.Service
}

// NewService creates a new cart service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		config:      cfg,
		userService: user.NewService(db, cfg),
	}
}

// ResolvedCart is the active cart for a request: persisted when a user is
// signed in, the verbatim cookie list otherwise.
type ResolvedCart struct {
	UserID *uint    `json:"user_id,omitempty"`
	Lines  LineList `json:"lines"`
}

// Anonymous reports whether the cart is the cookie-backed guest cart
func (r *ResolvedCart) Anonymous() bool {
	return r.UserID == nil
}

// ItemResponse represents a cart line with live product details
type ItemResponse struct {
	ID        uint   `json:"id"` // cart item id; 0 for guest lines
	ProductID uint   `json:"product_id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"` // current product price, minor units
	ImageURL  string `json:"image_url"`
	Unit      string `json:"unit"`
	Stock     int    `json:"stock"`
	Quantity  int    `json:"quantity"`
}

// Totals represents calculated cart totals
type Totals struct {
	ItemCount     int   `json:"item_count"`     // Number of unique items
	TotalQuantity int   `json:"total_quantity"` // Sum of all quantities
	Subtotal      int64 `json:"subtotal"`       // Sum of price * quantity, minor units
}

// CartResponse represents a cart with items and totals
type CartResponse struct {
	UserID *uint          `json:"user_id,omitempty"`
	Items  []ItemResponse `json:"items"`
	Totals Totals         `json:"totals"`
}

// Resolve determines the active cart for a request. With an external subject id
// it loads the persisted cart (no lazy creation here; that happens on first add).
// Without one it returns the guest lines verbatim and performs no I/O.
func (s *Service) Resolve(authID string, guest LineList) (*ResolvedCart, error) {
	if authID == "" {
		return &ResolvedCart{Lines: guest}, nil
	}

	dbUser, err := s.userService.GetByAuthID(authID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	var c Cart
	err = s.db.Preload("Items").Where("user_id = ?", dbUser.ID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ResolvedCart{UserID: &dbUser.ID, Lines: LineList{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	lines := make(LineList, len(c.Items))
	for i, item := range c.Items {
		lines[i] = Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	return &ResolvedCart{UserID: &dbUser.ID, Lines: lines}, nil
}

// GetCart returns the persisted cart with live product details and totals.
// A user without a cart row gets an empty response.
func (s *Service) GetCart(userID uint) (*CartResponse, error) {
	var c Cart
	err := s.db.Preload("Items").Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CartResponse{UserID: &userID, Items: []ItemResponse{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	items := make([]ItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, ItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	items, err = s.loadProductDetails(items)
	if err != nil {
		return nil, err
	}

	return &CartResponse{
		UserID: &userID,
		Items:  items,
		Totals: calculateTotals(items),
	}, nil
}

// GetGuestCart builds a cart view for cookie lines, loading live product details
func (s *Service) GetGuestCart(guest LineList) (*CartResponse, error) {
	items := make([]ItemResponse, 0, len(guest))
	for _, line := range guest {
		items = append(items, ItemResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	items, err := s.loadProductDetails(items)
	if err != nil {
		return nil, err
	}

	return &CartResponse{
		Items:  items,
		Totals: calculateTotals(items),
	}, nil
}

// AddItem upserts a line on the user's persisted cart: an existing line for the
// product gets its quantity incremented, otherwise a new line is created. The
// cart row itself is created lazily.
func (s *Service) AddItem(userID, productID uint, quantity int) (*CartResponse, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if err := s.ValidateProduct(productID); err != nil {
		return nil, err
	}

	c, err := s.getOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	var existing CartItem
	err = s.db.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := CartItem{CartID: c.ID, ProductID: productID, Quantity: quantity}
		if err := s.db.Create(&item).Error; err != nil {
			// Lost a concurrent insert on (cart, product); fold into an increment
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				incErr := s.db.Model(&CartItem{}).
					Where("cart_id = ? AND product_id = ?", c.ID, productID).
					Update("quantity", gorm.Expr("quantity + ?", quantity)).Error
				if incErr != nil {
					return nil, fmt.Errorf("failed to add cart item: %w", incErr)
				}
			} else {
				return nil, fmt.Errorf("failed to add cart item: %w", err)
			}
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	default:
		existing.Quantity += quantity
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	}

	return s.GetCart(userID)
}

// UpdateItemQuantity sets a line's quantity. Quantities below 1 are rejected;
// use RemoveItem to delete a line.
func (s *Service) UpdateItemQuantity(userID, itemID uint, quantity int) (*CartResponse, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	result := s.db.Model(&CartItem{}).
		Where("id = ? AND cart_id IN (?)", itemID, s.userCartIDs(userID)).
		Update("quantity", quantity)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.GetCart(userID)
}

// RemoveItem deletes a line unconditionally
func (s *Service) RemoveItem(userID, itemID uint) (*CartResponse, error) {
	result := s.db.Where("id = ? AND cart_id IN (?)", itemID, s.userCartIDs(userID)).
		Delete(&CartItem{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.GetCart(userID)
}

// ClearCart removes all lines from the user's cart. Clearing an absent or
// already-empty cart is a no-op.
func (s *Service) ClearCart(userID uint) error {
	return s.db.Where("cart_id IN (?)", s.userCartIDs(userID)).Delete(&CartItem{}).Error
}

// MergeGuestLines folds a guest cookie cart into the user's persisted cart on
// sign-in, using the same upsert semantics as AddItem. Unknown products are
// skipped rather than failing the whole merge.
func (s *Service) MergeGuestLines(userID uint, guest LineList) (*CartResponse, error) {
	for _, line := range guest {
		if line.Quantity < 1 {
			continue
		}
		if _, err := s.AddItem(userID, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return nil, err
		}
	}
	return s.GetCart(userID)
}

// ComputeTotal returns the cart subtotal from live product prices
func (s *Service) ComputeTotal(userID uint) (int64, error) {
	resp, err := s.GetCart(userID)
	if err != nil {
		return 0, err
	}
	return resp.Totals.Subtotal, nil
}

// ValidateProduct checks the product exists and is active
func (s *Service) ValidateProduct(productID uint) error {
	var p product.Product
	err := s.db.Where("id = ? AND is_active = ?", productID, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to validate product: %w", err)
	}
	return nil
}

// Private helper methods

func (s *Service) getOrCreateCart(userID uint) (*Cart, error) {
	var c Cart
	err := s.db.Where("user_id = ?", userID).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	c = Cart{UserID: userID}
	if err := s.db.Create(&c).Error; err != nil {
		// Another request created the cart first
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
				return nil, fmt.Errorf("failed to retrieve cart: %w", err)
			}
			return &c, nil
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &c, nil
}

// userCartIDs returns a subquery selecting the user's cart id
func (s *Service) userCartIDs(userID uint) *gorm.DB {
	return s.db.Model(&Cart{}).Select("id").Where("user_id = ?", userID)
}

// loadProductDetails resolves lines against the live catalog. Lines whose
// product has been removed are dropped rather than priced at zero; any other
// lookup failure aborts, so a degraded database never yields a zero-priced cart.
func (s *Service) loadProductDetails(items []ItemResponse) ([]ItemResponse, error) {
	resolved := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		var p product.Product
		err := s.db.Where("id = ?", item.ProductID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load product %d: %w", item.ProductID, err)
		}
		item.Title = p.Title
		item.Price = p.Price
		item.ImageURL = p.ImageURL
		item.Unit = p.Unit
		item.Stock = p.Stock
		resolved = append(resolved, item)
	}
	return resolved, nil
}

func calculateTotals(items []ItemResponse) Totals {
	var totals Totals
	totals.ItemCount = len(items)
	for _, item := range items {
		totals.TotalQuantity += item.Quantity
		totals.Subtotal += item.Price * int64(item.Quantity)
	}
	return totals
}
