// internal/domain/purchase/service_test.go
package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/product"
	"github.com/your-org/marketplace-backend/internal/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sessionStub returns a fixed session for any id
type sessionStub struct {
	session *payment.CheckoutSession
	err     error
}

func (s *sessionStub) CreateCheckoutSession(ctx context.Context, params *payment.CheckoutSessionParams) (*payment.CheckoutSession, error) {
	return s.session, s.err
}

func (s *sessionStub) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	return s.session, s.err
}

func paidSession(paymentID string) *sessionStub {
	return &sessionStub{
		session: &payment.CheckoutSession{
			ID:              "cs_test_123",
			PaymentStatus:   payment.PaymentStatusPaid,
			PaymentIntentID: paymentID,
		},
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&user.User{}, &product.Product{}, &cart.Cart{}, &cart.CartItem{}, &Purchase{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{}
}

type fixture struct {
	user     *user.User
	products []*product.Product
}

// seedCheckout creates a user with a two-line cart: 2 x 1000 and 1 x 500
func seedCheckout(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	u := &user.User{AuthID: "auth_1", Email: "buyer@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	p1 := &product.Product{Title: "Tomatoes", Price: 1000, Stock: 10, IsActive: true}
	p2 := &product.Product{Title: "Eggs", Price: 500, Stock: 10, IsActive: true}
	if err := db.Create(&[]*product.Product{p1, p2}).Error; err != nil {
		t.Fatalf("failed to seed products: %v", err)
	}

	c := &cart.Cart{UserID: u.ID}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("failed to seed cart: %v", err)
	}
	items := []cart.CartItem{
		{CartID: c.ID, ProductID: p1.ID, Quantity: 2},
		{CartID: c.ID, ProductID: p2.ID, Quantity: 1},
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("failed to seed cart items: %v", err)
	}

	return &fixture{user: u, products: []*product.Product{p1, p2}}
}

func cartItemCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&cart.CartItem{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count cart items: %v", err)
	}
	return count
}

func TestReconcileMaterializesPurchases(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	result, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.Created {
		t.Error("expected created=true on first reconcile")
	}
	if result.Count != 2 {
		t.Errorf("expected 2 purchases, got %d", result.Count)
	}

	var purchases []Purchase
	if err := db.Order("product_id").Find(&purchases).Error; err != nil {
		t.Fatalf("failed to load purchases: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("expected 2 purchase rows, got %d", len(purchases))
	}

	for _, p := range purchases {
		if p.UserID != fx.user.ID {
			t.Errorf("unexpected user id %d", p.UserID)
		}
		if p.Status != StatusCompleted {
			t.Errorf("expected status COMPLETED, got %s", p.Status)
		}
		if p.StripePaymentID != "pi_test_1" {
			t.Errorf("expected payment id pi_test_1, got %s", p.StripePaymentID)
		}
	}

	// Amount freezes the unit price, not the line total
	if purchases[0].Amount != 1000 || purchases[0].Quantity != 2 {
		t.Errorf("unexpected first purchase: amount=%d quantity=%d", purchases[0].Amount, purchases[0].Quantity)
	}
	if purchases[1].Amount != 500 || purchases[1].Quantity != 1 {
		t.Errorf("unexpected second purchase: amount=%d quantity=%d", purchases[1].Amount, purchases[1].Quantity)
	}

	if count := cartItemCount(t, db); count != 0 {
		t.Errorf("expected cart cleared, %d items remain", count)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	if _, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123"); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	result, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if result.Created {
		t.Error("expected created=false on repeat reconcile")
	}
	if result.Count != 2 {
		t.Errorf("expected existing count 2, got %d", result.Count)
	}

	var count int64
	db.Model(&Purchase{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 purchase rows after repeat, got %d", count)
	}
}

func TestReconcileRejectsUnpaidSession(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	stub := &sessionStub{
		session: &payment.CheckoutSession{
			ID:              "cs_test_123",
			PaymentStatus:   "unpaid",
			PaymentIntentID: "pi_test_1",
		},
	}
	service := NewService(db, testConfig(), stub, nil)

	_, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	if !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("expected ErrPaymentIncomplete, got %v", err)
	}

	var count int64
	db.Model(&Purchase{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no purchases for unpaid session, got %d", count)
	}
	if count := cartItemCount(t, db); count != 2 {
		t.Errorf("expected cart untouched, got %d items", count)
	}
}

func TestReconcileRejectsMissingPaymentIntent(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	stub := &sessionStub{
		session: &payment.CheckoutSession{
			ID:            "cs_test_123",
			PaymentStatus: payment.PaymentStatusPaid,
		},
	}
	service := NewService(db, testConfig(), stub, nil)

	if _, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123"); !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("expected ErrPaymentIncomplete, got %v", err)
	}
}

func TestReconcileMissingCart(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	u := &user.User{AuthID: "auth_1"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	if _, err := service.Reconcile(context.Background(), u.ID, "cs_test_123"); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestReconcilePropagatesProviderError(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	providerErr := &payment.ProviderError{StatusCode: 502, Message: "boom"}
	service := NewService(db, testConfig(), &sessionStub{err: providerErr}, nil)

	_, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	var pe *payment.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

// A crash after materialization but before the clear leaves purchase rows and a
// populated cart. The next reconcile must converge to an empty cart without
// duplicating rows.
func TestReconcileConvergesAfterPartialFailure(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	existing := []Purchase{
		{UserID: fx.user.ID, ProductID: fx.products[0].ID, Quantity: 2, Amount: 1000, Status: StatusCompleted, StripePaymentID: "pi_test_1"},
		{UserID: fx.user.ID, ProductID: fx.products[1].ID, Quantity: 1, Amount: 500, Status: StatusCompleted, StripePaymentID: "pi_test_1"},
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("failed to seed purchases: %v", err)
	}

	result, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Created {
		t.Error("expected created=false when rows already exist")
	}
	if result.Count != 2 {
		t.Errorf("expected existing count 2, got %d", result.Count)
	}

	var count int64
	db.Model(&Purchase{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 purchase rows, got %d", count)
	}
	if count := cartItemCount(t, db); count != 0 {
		t.Errorf("expected cart cleared on converging reconcile, got %d items", count)
	}
}

// Losing the uniqueness race must fold into the idempotent outcome, not an
// error. The pre-check counts only visible rows, but the unique index guards
// every row, so a batch that conflicts with rows the pre-check cannot see (a
// concurrent commit, or here a voided batch for the same payment) drives
// materialization into the duplicate-key branch.
func TestReconcileFoldsLostUniquenessRace(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCheckout(t, db)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	voided := Purchase{
		UserID:          fx.user.ID,
		ProductID:       fx.products[0].ID,
		Quantity:        2,
		Amount:          1000,
		Status:          StatusFailed,
		StripePaymentID: "pi_test_1",
		DeletedAt:       gorm.DeletedAt{Time: time.Now(), Valid: true},
	}
	if err := db.Create(&voided).Error; err != nil {
		t.Fatalf("failed to seed conflicting purchase: %v", err)
	}

	result, err := service.Reconcile(context.Background(), fx.user.ID, "cs_test_123")
	if err != nil {
		t.Fatalf("expected lost race to fold into success, got %v", err)
	}
	if result.Created {
		t.Error("expected created=false after losing the race")
	}

	// The failed transaction left no rows behind
	var count int64
	db.Model(&Purchase{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no visible purchase rows, got %d", count)
	}
	if count := cartItemCount(t, db); count != 0 {
		t.Errorf("expected cart cleared after fold, got %d items", count)
	}
}

func TestGetPurchasesListsAllUsers(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	rows := []Purchase{
		{UserID: 1, ProductID: 1, Quantity: 1, Amount: 100, Status: StatusCompleted, StripePaymentID: "pi_a"},
		{UserID: 1, ProductID: 2, Quantity: 1, Amount: 200, Status: StatusShipped, StripePaymentID: "pi_b"},
		{UserID: 2, ProductID: 1, Quantity: 1, Amount: 100, Status: StatusCompleted, StripePaymentID: "pi_c"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("failed to seed purchases: %v", err)
	}

	resp, err := service.GetPurchases(&ListRequest{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Purchases) != 3 {
		t.Errorf("expected 3 purchases across users, got %d", len(resp.Purchases))
	}
	if resp.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Pagination.Total)
	}

	resp, err = service.GetPurchases(&ListRequest{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(resp.Purchases) != 2 {
		t.Errorf("expected 2 completed purchases, got %d", len(resp.Purchases))
	}
}

func TestGetUserPurchasesFiltersByUser(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	rows := []Purchase{
		{UserID: 1, ProductID: 1, Quantity: 1, Amount: 100, Status: StatusCompleted, StripePaymentID: "pi_a"},
		{UserID: 1, ProductID: 2, Quantity: 1, Amount: 200, Status: StatusShipped, StripePaymentID: "pi_b"},
		{UserID: 2, ProductID: 1, Quantity: 1, Amount: 100, Status: StatusCompleted, StripePaymentID: "pi_c"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("failed to seed purchases: %v", err)
	}

	resp, err := service.GetUserPurchases(1, &ListRequest{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Purchases) != 2 {
		t.Errorf("expected 2 purchases for user 1, got %d", len(resp.Purchases))
	}
	if resp.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Pagination.Total)
	}

	resp, err = service.GetUserPurchases(1, &ListRequest{Status: StatusShipped})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(resp.Purchases) != 1 {
		t.Errorf("expected 1 shipped purchase, got %d", len(resp.Purchases))
	}

	if _, err := service.GetUserPurchases(1, &ListRequest{Status: "BOGUS"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, testConfig(), paidSession("pi_test_1"), nil)

	row := Purchase{UserID: 1, ProductID: 1, Quantity: 1, Amount: 100, Status: StatusCompleted, StripePaymentID: "pi_a"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	updated, err := service.UpdateStatus(row.ID, StatusShipped)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != StatusShipped {
		t.Errorf("expected status SHIPPED, got %s", updated.Status)
	}
	// The financial fields stay frozen
	if updated.Amount != 100 || updated.Quantity != 1 || updated.StripePaymentID != "pi_a" {
		t.Errorf("financial fields changed: %+v", updated)
	}

	if _, err := service.UpdateStatus(row.ID, "BOGUS"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := service.UpdateStatus(9999, StatusShipped); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
