package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func testOrder() domain.Order {
	owner, _ := domain.NewAuthenticatedIdentity("customer-1")
	return domain.Order{
		ID:         "order-1",
		Owner:      owner,
		Status:     domain.StatusPending,
		Currency:   "USD",
		TotalMinor: 22500,
	}
}

func TestRedirectGateway_RequestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.OrderID != "order-1" || req.AmountMinor != 22500 {
			t.Errorf("unexpected request payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(sessionResponse{
			OK:          true,
			RedirectURL: "https://pay.example/p/abc",
			Authority:   "auth-abc",
		})
	}))
	defer server.Close()

	gw := NewRedirectGateway(RedirectConfig{BaseURL: server.URL, MerchantID: "m-1"}, nil)

	result, err := gw.Request(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if result.RedirectURL != "https://pay.example/p/abc" {
		t.Fatalf("unexpected redirect url: %s", result.RedirectURL)
	}
	if result.Authority != "auth-abc" {
		t.Fatalf("unexpected authority: %s", result.Authority)
	}
}

func TestRedirectGateway_RequestRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionResponse{OK: false, ErrorCode: "MERCHANT_BLOCKED"})
	}))
	defer server.Close()

	gw := NewRedirectGateway(RedirectConfig{BaseURL: server.URL}, nil)

	_, err := gw.Request(context.Background(), testOrder())
	if !errors.Is(err, domain.ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed, got %v", err)
	}
}

func TestRedirectGateway_VerifyConfirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/verify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{
			OK:          true,
			Confirmed:   true,
			AmountMinor: 22500,
			ReferenceID: "ref-42",
		})
	}))
	defer server.Close()

	gw := NewRedirectGateway(RedirectConfig{BaseURL: server.URL}, nil)

	result, err := gw.Verify(context.Background(), domain.Payment{ID: "payment-1"}, "auth-abc")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Confirmed || result.SettledAmountMinor != 22500 || result.ReferenceID != "ref-42" {
		t.Fatalf("unexpected verify result: %+v", result)
	}
}

func TestRedirectGateway_VerifyDeclinedWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(verifyResponse{OK: true, Confirmed: false})
	}))
	defer server.Close()

	gw := NewRedirectGateway(RedirectConfig{BaseURL: server.URL}, nil)

	result, err := gw.Verify(context.Background(), domain.Payment{ID: "payment-1"}, "auth-abc")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Confirmed {
		t.Fatal("expected unconfirmed result")
	}
}

func TestRedirectGateway_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(verifyResponse{OK: true, Confirmed: true})
	}))
	defer server.Close()

	gw := NewRedirectGateway(RedirectConfig{BaseURL: server.URL}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Verify(ctx, domain.Payment{ID: "payment-1"}, "auth-abc")
	if !errors.Is(err, domain.ErrGatewayVerifyFailed) {
		t.Fatalf("expected ErrGatewayVerifyFailed on timeout, got %v", err)
	}
}

func TestRegistry_ByKind(t *testing.T) {
	mock := NewMockGateway(domain.GatewayFastPay)
	registry := NewRegistry(mock, NewManualGateway())

	gw, err := registry.ByKind(domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if gw.Kind() != domain.GatewayFastPay {
		t.Fatalf("unexpected gateway kind: %s", gw.Kind())
	}

	if _, err := registry.ByKind("unknown"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown kind, got %v", err)
	}
}

func TestManualGateway_RequestIssuesAuthority(t *testing.T) {
	gw := NewManualGateway()

	result, err := gw.Request(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if result.Authority == "" {
		t.Fatal("expected authority to be issued")
	}
	if result.RedirectURL != "" {
		t.Fatalf("expected empty redirect url, got %s", result.RedirectURL)
	}

	if _, err := gw.Verify(context.Background(), domain.Payment{ID: "payment-1"}, result.Authority); !errors.Is(err, domain.ErrGatewayVerifyFailed) {
		t.Fatalf("expected ErrGatewayVerifyFailed, got %v", err)
	}
}
