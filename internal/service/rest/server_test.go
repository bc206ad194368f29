package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway"
	cartsvc "github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/service/rest"
	"github.com/vladislavdragonenkov/checkout/internal/service/shipping"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

const (
	adminToken  = "admin-secret"
	shippingFee = int64(700)
)

type testServer struct {
	store      *memory.Store
	fastpay    *gateway.MockGateway
	handler    http.Handler
	uploadsDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.SeedProducts([]domain.Product{
		{ID: "product-a", Title: "Widget A", SKU: "sku-a", PriceMinor: 10000, Stock: 10, Available: true, Visible: true, Active: true},
		{ID: "product-b", Title: "Widget B", SKU: "sku-b", PriceMinor: 5000, Stock: 5, Available: true, Visible: true, Active: true},
	})
	store.SeedPromotions([]domain.PromotionCode{
		{Code: "TEN-PERCENT", Kind: domain.DiscountPercentage, Percent: 10, Active: true},
	})

	carts := cartsvc.NewService(store, store.Catalog(), nil)
	orders := checkout.NewService(store, shipping.NewFlatFeeQuoter(shippingFee), "RUB", nil)

	fastpay := gateway.NewMockGateway(domain.GatewayFastPay)
	registry := gateway.NewRegistry(fastpay, gateway.NewManualGateway())
	coordinator := payment.NewCoordinator(store, registry, orders, nil)

	uploadsDir := t.TempDir()
	server := rest.NewServer(rest.Config{
		UploadsDir: uploadsDir,
		AdminToken: adminToken,
	}, carts, orders, coordinator, store.Idempotency(), nil)

	return &testServer{
		store:      store,
		fastpay:    fastpay,
		handler:    server.Handler(),
		uploadsDir: uploadsDir,
	}
}

// do выполняет запрос; body != nil сериализуется в JSON.
func (ts *testServer) do(t *testing.T, method, path string, headers map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func customer(id string) map[string]string {
	return map[string]string{"X-Customer-ID": id}
}

func anonymous(token string) map[string]string {
	return map[string]string{"X-Anonymous-Token": token}
}

func admin() map[string]string {
	return map[string]string{"X-Admin-Token": adminToken}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), into), "body: %s", rr.Body.String())
}

type cartBody struct {
	ID            string `json:"id"`
	PromotionCode string `json:"promotion_code"`
	SubtotalMinor int64  `json:"subtotal_minor"`
	DiscountMinor int64  `json:"discount_minor"`
	TotalMinor    int64  `json:"total_minor"`
	Lines         []struct {
		ProductID      string `json:"product_id"`
		Qty            int32  `json:"qty"`
		PriceMinor     int64  `json:"price_minor"`
		LineTotalMinor int64  `json:"line_total_minor"`
	} `json:"lines"`
}

type orderBody struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	SubtotalMinor int64  `json:"subtotal_minor"`
	DiscountMinor int64  `json:"discount_minor"`
	ShippingMinor int64  `json:"shipping_minor"`
	TotalMinor    int64  `json:"total_minor"`
	TrackingCode  string `json:"tracking_code"`
	History       []struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Actor string `json:"actor"`
	} `json:"history"`
}

type paymentBody struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Gateway     string `json:"gateway"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	FailureCode string `json:"failure_code"`
}

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		ProductID string `json:"product_id"`
		Reason    string `json:"reason"`
	} `json:"details"`
}

// fillCart наполняет корзину покупателя через API: 2×product-a + 1×product-b.
func (ts *testServer) fillCart(t *testing.T, headers map[string]string) {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", headers, map[string]interface{}{"product_id": "product-a", "qty": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = ts.do(t, http.MethodPost, "/api/v1/cart/items", headers, map[string]interface{}{"product_id": "product-b", "qty": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

// checkout оформляет заказ и возвращает его тело.
func (ts *testServer) checkout(t *testing.T, headers map[string]string) orderBody {
	t.Helper()
	ts.fillCart(t, headers)
	rr := ts.do(t, http.MethodPost, "/api/v1/cart/checkout", headers, map[string]string{
		"shipping_address": "Москва, Тверская 1",
		"phone_number":     "+79990001122",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var order orderBody
	decode(t, rr, &order)
	return order
}

func TestIdentityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body errBody
	decode(t, rr, &body)
	assert.Equal(t, "IDENTITY_REQUIRED", body.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/cart", map[string]string{
		"X-Customer-ID":     "c1",
		"X-Anonymous-Token": "anon-1",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	decode(t, rr, &body)
	assert.Equal(t, "IDENTITY_CONFLICT", body.Code)
}

func TestCartEndpoints(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", hdr, map[string]interface{}{"product_id": "product-a", "qty": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cart cartBody
	decode(t, rr, &cart)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(20000), cart.SubtotalMinor)
	assert.Equal(t, int64(20000), cart.Lines[0].LineTotalMinor)

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/promotion", hdr, map[string]string{"code": "TEN-PERCENT"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &cart)
	assert.Equal(t, "TEN-PERCENT", cart.PromotionCode)
	assert.Equal(t, int64(2000), cart.DiscountMinor)
	assert.Equal(t, int64(18000), cart.TotalMinor)

	// Скидка пересчитывается после изменения количества.
	rr = ts.do(t, http.MethodPatch, "/api/v1/cart/items/product-a", hdr, map[string]interface{}{"qty": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &cart)
	assert.Equal(t, int64(10000), cart.SubtotalMinor)
	assert.Equal(t, int64(1000), cart.DiscountMinor)

	rr = ts.do(t, http.MethodDelete, "/api/v1/cart/items/product-a", hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &cart)
	assert.Empty(t, cart.Lines)

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/items", hdr, map[string]interface{}{"product_id": "no-such", "qty": 1})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/clear", hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCartMerge(t *testing.T) {
	ts := newTestServer(t)
	anonHdr := anonymous("anon-42")
	custHdr := customer("customer-1")

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", anonHdr, map[string]interface{}{"product_id": "product-a", "qty": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = ts.do(t, http.MethodPost, "/api/v1/cart/items", custHdr, map[string]interface{}{"product_id": "product-a", "qty": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Слияние доступно только аутентифицированному покупателю.
	rr = ts.do(t, http.MethodPost, "/api/v1/cart/merge", anonHdr, map[string]string{"anonymous_token": "anon-42"})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/merge", custHdr, map[string]string{"anonymous_token": "anon-42"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cart cartBody
	decode(t, rr, &cart)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int32(3), cart.Lines[0].Qty)

	// Анонимная корзина перестала существовать: resolve создаёт пустую новую.
	rr = ts.do(t, http.MethodGet, "/api/v1/cart", anonHdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &cart)
	assert.Empty(t, cart.Lines)
}

func TestCheckoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")

	order := ts.checkout(t, hdr)
	assert.Equal(t, "PENDING", order.Status)
	assert.Equal(t, int64(25000), order.SubtotalMinor)
	assert.Equal(t, shippingFee, order.ShippingMinor)
	assert.Equal(t, int64(25700), order.TotalMinor)

	// Корзина уничтожена: следующий запрос видит пустую.
	rr := ts.do(t, http.MethodGet, "/api/v1/cart", hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cart cartBody
	decode(t, rr, &cart)
	assert.Empty(t, cart.Lines)

	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var detailed orderBody
	decode(t, rr, &detailed)
	require.Len(t, detailed.History, 1)
	assert.Equal(t, "CART", detailed.History[0].From)
	assert.Equal(t, "PENDING", detailed.History[0].To)

	// Чужой заказ неотличим от несуществующего.
	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, customer("intruder"), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/orders", hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Orders []orderBody `json:"orders"`
	}
	decode(t, rr, &list)
	require.Len(t, list.Orders, 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/checkout", customer("customer-1"), map[string]string{
		"shipping_address": "Москва",
		"phone_number":     "+79990001122",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body errBody
	decode(t, rr, &body)
	assert.Equal(t, "CHECKOUT_VALIDATION", body.Code)
}

func TestCheckoutIdempotency(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	ts.fillCart(t, hdr)

	payload := map[string]string{
		"shipping_address": "Москва, Тверская 1",
		"phone_number":     "+79990001122",
	}
	withKey := map[string]string{
		"X-Customer-ID":   "customer-1",
		"Idempotency-Key": "checkout-1",
	}

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/checkout", withKey, payload)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var first orderBody
	decode(t, rr, &first)

	// Повтор с тем же ключом и телом не выполняет checkout второй раз:
	// корзина уже пуста, живое исполнение вернуло бы 400.
	rr = ts.do(t, http.MethodPost, "/api/v1/cart/checkout", withKey, payload)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "true", rr.Header().Get("Idempotency-Replayed"))
	var second orderBody
	decode(t, rr, &second)
	assert.Equal(t, first.ID, second.ID)

	// Тот же ключ, другое тело — ошибка клиента.
	rr = ts.do(t, http.MethodPost, "/api/v1/cart/checkout", withKey, map[string]string{
		"shipping_address": "Санкт-Петербург",
		"phone_number":     "+79990001122",
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	var body errBody
	decode(t, rr, &body)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", body.Code)
}

func TestPaymentFlow(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)
	ts.fastpay.VerifyResult.SettledAmountMinor = order.TotalMinor

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payments", hdr, map[string]string{"gateway": "fastpay"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var initiated struct {
		Payment     paymentBody `json:"payment"`
		RedirectURL string      `json:"redirect_url"`
	}
	decode(t, rr, &initiated)
	assert.Equal(t, "https://pay.example/redirect", initiated.RedirectURL)
	assert.Equal(t, "PENDING", initiated.Payment.Status)
	assert.Equal(t, order.TotalMinor, initiated.Payment.AmountMinor)

	// Callback шлюза не требует аутентификации и всегда отвечает 200.
	rr = ts.do(t, http.MethodPost, "/api/v1/payments/callback/fastpay/auth-mock", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var confirmed orderBody
	decode(t, rr, &confirmed)
	assert.Equal(t, "CONFIRMED", confirmed.Status)

	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID+"/invoice", hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var invoice struct {
		Number     string `json:"number"`
		TotalMinor int64  `json:"total_minor"`
	}
	decode(t, rr, &invoice)
	assert.Equal(t, "INV000001", invoice.Number)
	assert.Equal(t, order.TotalMinor, invoice.TotalMinor)

	// Повторная доставка callback идемпотентна: re-verify не происходит.
	verifies := ts.fastpay.VerifyCalls
	rr = ts.do(t, http.MethodPost, "/api/v1/payments/callback/fastpay/auth-mock", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, verifies, ts.fastpay.VerifyCalls)

	rr = ts.do(t, http.MethodGet, "/api/v1/payments/"+initiated.Payment.ID, hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var pay paymentBody
	decode(t, rr, &pay)
	assert.Equal(t, "COMPLETED", pay.Status)

	rr = ts.do(t, http.MethodGet, "/api/v1/payments/"+initiated.Payment.ID, customer("intruder"), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPaymentCallbackUnknownGateway(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/api/v1/payments/callback/no-such/auth-1", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"received"}`, rr.Body.String())
}

func TestPaymentInitiateFailures(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payments", hdr, map[string]string{"gateway": "bitcoin"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	ts.fastpay.RequestErr = fmt.Errorf("ipg unreachable")
	rr = ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payments", hdr, map[string]string{"gateway": "fastpay"})
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	var body errBody
	decode(t, rr, &body)
	assert.Equal(t, "GATEWAY_REQUEST_FAILED", body.Code)
}

func TestManualReceiptFlow(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)

	rr := ts.uploadReceipt(t, order.ID, "receipt.png", hdr)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var pay paymentBody
	decode(t, rr, &pay)
	assert.Equal(t, "manual", pay.Gateway)
	assert.Equal(t, "PENDING", pay.Status)

	entries, err := os.ReadDir(ts.uploadsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, hdr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var awaiting orderBody
	decode(t, rr, &awaiting)
	assert.Equal(t, "AWAITING_VERIFICATION", awaiting.Status)

	// Решение по ручному платежу — привилегированная операция.
	rr = ts.do(t, http.MethodPost, "/api/v1/admin/payments/"+pay.ID+"/review", hdr, map[string]interface{}{"approved": true})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/payments/"+pay.ID+"/review", admin(), map[string]interface{}{"approved": true, "note": "чек читается"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reviewed struct {
		Payment     paymentBody `json:"payment"`
		OrderStatus string      `json:"order_status"`
	}
	decode(t, rr, &reviewed)
	assert.Equal(t, "COMPLETED", reviewed.Payment.Status)
	assert.Equal(t, "CONFIRMED", reviewed.OrderStatus)
}

func TestManualReceiptRejectedFormat(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)

	rr := ts.uploadReceipt(t, order.ID, "receipt.exe", hdr)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	entries, err := os.ReadDir(ts.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrderCancelRestoresStock(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", hdr, map[string]string{"reason": "передумал"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cancelled orderBody
	decode(t, rr, &cancelled)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	// Повторная отмена запрещена таблицей переходов.
	rr = ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", hdr, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	var body errBody
	decode(t, rr, &body)
	assert.Equal(t, "INVALID_TRANSITION", body.Code)
}

func TestAdminFulfilment(t *testing.T) {
	ts := newTestServer(t)
	hdr := customer("customer-1")
	order := ts.checkout(t, hdr)
	ts.fastpay.VerifyResult.SettledAmountMinor = order.TotalMinor

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payments", hdr, map[string]string{"gateway": "fastpay"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodPost, "/api/v1/payments/callback/fastpay/auth-mock", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// Без админ-токена фулфилмент закрыт.
	rr = ts.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/ship", hdr, map[string]string{"tracking_code": "TRACK-42"})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/ship", admin(), map[string]string{"tracking_code": "TRACK-42"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var shipped orderBody
	decode(t, rr, &shipped)
	assert.Equal(t, "SHIPPED", shipped.Status)
	assert.Equal(t, "TRACK-42", shipped.TrackingCode)

	// После отгрузки покупатель уже не может отменить заказ.
	rr = ts.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", hdr, nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/deliver", admin(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/return", admin(), map[string]string{"reason": "брак"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/refund", admin(), map[string]string{"reason": "возврат средств"})
	require.Equal(t, http.StatusOK, rr.Code)
	var refunded orderBody
	decode(t, rr, &refunded)
	assert.Equal(t, "REFUNDED", refunded.Status)
}

// uploadReceipt отправляет multipart-запрос с файлом чека.
func (ts *testServer) uploadReceipt(t *testing.T, orderID, filename string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("receipt", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/payments/manual", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}
