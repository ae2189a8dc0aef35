// internal/domain/payment/stripe_client_test.go
package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/your-org/marketplace-backend/internal/config"
)

func newTestClient(baseURL string) *StripeClient {
	cfg := &config.Config{}
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.BaseURL = baseURL
	cfg.Stripe.Currency = "inr"
	return NewStripeClient(cfg)
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotForm map[string][]string
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		username, _, _ := r.BasicAuth()
		gotAuth = username
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_123","url":"https://pay.example.com/cs_test_123","payment_status":"unpaid"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{
		LineItems: []LineItem{
			{Name: "Tomatoes", ImageURL: "https://img.example.com/t.jpg", UnitAmount: 1000, Quantity: 2},
			{Name: "Eggs", UnitAmount: 500, Quantity: 1},
		},
		SuccessURL:    "https://shop.example.com/success",
		CancelURL:     "https://shop.example.com/cart",
		CustomerEmail: "buyer@example.com",
		Metadata:      map[string]string{"user_id": "7"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	if session.ID != "cs_test_123" {
		t.Errorf("expected session id cs_test_123, got %s", session.ID)
	}
	if session.URL != "https://pay.example.com/cs_test_123" {
		t.Errorf("unexpected session url: %s", session.URL)
	}
	if gotAuth != "sk_test_123" {
		t.Errorf("expected basic auth with secret key, got %s", gotAuth)
	}

	expect := map[string]string{
		"mode":                                           "payment",
		"payment_method_types[0]":                        "card",
		"success_url":                                    "https://shop.example.com/success",
		"cancel_url":                                     "https://shop.example.com/cart",
		"customer_email":                                 "buyer@example.com",
		"metadata[user_id]":                              "7",
		"line_items[0][price_data][currency]":            "inr",
		"line_items[0][price_data][product_data][name]":  "Tomatoes",
		"line_items[0][price_data][product_data][images][0]": "https://img.example.com/t.jpg",
		"line_items[0][price_data][unit_amount]":         "1000",
		"line_items[0][quantity]":                        "2",
		"line_items[1][price_data][product_data][name]":  "Eggs",
		"line_items[1][price_data][unit_amount]":         "500",
		"line_items[1][quantity]":                        "1",
	}
	for key, want := range expect {
		if got := gotForm[key]; len(got) != 1 || got[0] != want {
			t.Errorf("form field %s: expected %q, got %v", key, want, got)
		}
	}
	// No image means no images field at all
	if _, ok := gotForm["line_items[1][price_data][product_data][images][0]"]; ok {
		t.Error("unexpected images field for item without image")
	}
}

func TestGetCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/checkout/sessions/cs_test_123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_123","payment_status":"paid","payment_intent":"pi_test_1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session, err := client.GetCheckoutSession(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}

	if session.PaymentStatus != PaymentStatusPaid {
		t.Errorf("expected payment status paid, got %s", session.PaymentStatus)
	}
	if session.PaymentIntentID != "pi_test_1" {
		t.Errorf("expected payment intent pi_test_1, got %s", session.PaymentIntentID)
	}
}

func TestAPIErrorBecomesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout session"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetCheckoutSession(context.Background(), "cs_missing")

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", providerErr.StatusCode)
	}
	if providerErr.Type != "invalid_request_error" {
		t.Errorf("unexpected error type: %s", providerErr.Type)
	}
	if providerErr.Message != "No such checkout session" {
		t.Errorf("unexpected error message: %s", providerErr.Message)
	}
}
