package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway"
	cartsvc "github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/service/shipping"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type fixture struct {
	store       *memory.Store
	orders      *checkout.Service
	coordinator *payment.Coordinator
	fastpay     *gateway.MockGateway
	order       domain.Order
}

// newFixture оформляет заказ стоимостью 2×10000 + 1×5000 + 700 доставки
// и собирает координатор с mock-шлюзом fastpay и ручным шлюзом.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	store.SeedProducts([]domain.Product{
		{ID: "product-a", Title: "Widget A", SKU: "sku-a", PriceMinor: 10000, Stock: 10, Available: true, Visible: true, Active: true},
		{ID: "product-b", Title: "Widget B", SKU: "sku-b", PriceMinor: 5000, Stock: 5, Available: true, Visible: true, Active: true},
	})

	owner, err := domain.NewAuthenticatedIdentity("customer-1")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}

	carts := cartsvc.NewService(store, store.Catalog(), nil)
	if _, err := carts.AddItem(ctx, owner, "product-a", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := carts.AddItem(ctx, owner, "product-b", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	orders := checkout.NewService(store, shipping.NewFlatFeeQuoter(700), "RUB", nil)
	order, err := orders.Checkout(ctx, owner, checkout.Request{ShippingAddress: "адрес", PhoneNumber: "+79990001122"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	fastpay := gateway.NewMockGateway(domain.GatewayFastPay)
	fastpay.VerifyResult.SettledAmountMinor = order.TotalMinor
	registry := gateway.NewRegistry(fastpay, gateway.NewManualGateway())

	coordinator := payment.NewCoordinator(store, registry, orders, nil)
	return &fixture{store: store, orders: orders, coordinator: coordinator, fastpay: fastpay, order: order}
}

func (f *fixture) orderStatus(t *testing.T) domain.OrderStatus {
	t.Helper()
	order, err := f.store.Orders().Get(context.Background(), f.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return order.Status
}

func TestInitiate_CreatesPendingPaymentWithAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if result.Payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING payment, got %s", result.Payment.Status)
	}
	if result.Payment.Authority != "auth-mock" {
		t.Errorf("expected authority auth-mock, got %s", result.Payment.Authority)
	}
	if result.Payment.AmountMinor != f.order.TotalMinor {
		t.Errorf("expected amount %d, got %d", f.order.TotalMinor, result.Payment.AmountMinor)
	}
	if result.RedirectURL == "" {
		t.Error("expected redirect URL")
	}
	// Заказ остаётся PENDING до подтверждения шлюза.
	if got := f.orderStatus(t); got != domain.StatusPending {
		t.Errorf("expected order PENDING, got %s", got)
	}
}

func TestInitiate_GatewayFailureLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fastpay.RequestErr = &domain.GatewayError{Gateway: "fastpay", Op: "request", Reason: "merchant_blocked"}

	_, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if !errors.Is(err, domain.ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed, got %v", err)
	}

	if got := f.orderStatus(t); got != domain.StatusPending {
		t.Errorf("expected order PENDING, got %s", got)
	}

	attempts, err := f.store.Payments().ListByOrder(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Status != domain.PaymentStatusFailed || attempts[0].FailureCode != domain.PaymentFailureGatewayError {
		t.Errorf("expected FAILED/GATEWAY_ERROR, got %s/%s", attempts[0].Status, attempts[0].FailureCode)
	}

	// Новая попытка по тому же заказу допустима.
	f.fastpay.RequestErr = nil
	if _, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay); err != nil {
		t.Fatalf("retry initiate: %v", err)
	}
}

func TestInitiate_RequiresPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orders.Cancel(ctx, f.order.ID, "admin", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestHandleCallback_ConfirmsOrderAndIssuesInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	completed, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if completed.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
	if completed.ReferenceID != "ref-mock" {
		t.Errorf("expected reference ref-mock, got %s", completed.ReferenceID)
	}

	if got := f.orderStatus(t); got != domain.StatusConfirmed {
		t.Errorf("expected order CONFIRMED, got %s", got)
	}

	invoice, err := f.store.Invoices().GetByOrder(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if invoice.TotalMinor != f.order.TotalMinor {
		t.Errorf("invoice total %d != order total %d", invoice.TotalMinor, f.order.TotalMinor)
	}
}

func TestHandleCallback_DoubleCallbackIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	first, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	verifyCallsAfterFirst := f.fastpay.VerifyCalls

	second, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}

	if second.Status != first.Status || second.ReferenceID != first.ReferenceID {
		t.Errorf("second callback diverged: %+v vs %+v", second, first)
	}
	// Повторный callback не ходит к шлюзу заново.
	if f.fastpay.VerifyCalls != verifyCallsAfterFirst {
		t.Errorf("expected no extra verify calls, got %d", f.fastpay.VerifyCalls-verifyCallsAfterFirst)
	}

	// Счёт выпущен ровно один раз: история заказа содержит одно CONFIRMED.
	history, err := f.store.Orders().StatusHistory(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	confirmedCount := 0
	for _, change := range history {
		if change.To == domain.StatusConfirmed {
			confirmedCount++
		}
	}
	if confirmedCount != 1 {
		t.Errorf("expected exactly one CONFIRMED record, got %d", confirmedCount)
	}
}

func TestHandleCallback_AmountMismatchFailsPaymentKeepsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.fastpay.VerifyResult.SettledAmountMinor = f.order.TotalMinor - 100

	failed, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if failed.Status != domain.PaymentStatusFailed || failed.FailureCode != domain.PaymentFailureAmountMismatch {
		t.Errorf("expected FAILED/AMOUNT_MISMATCH, got %s/%s", failed.Status, failed.FailureCode)
	}

	// Заказ не подтверждён и не отменён: решение остаётся за оператором.
	if got := f.orderStatus(t); got != domain.StatusPending {
		t.Errorf("expected order PENDING, got %s", got)
	}
}

func TestHandleCallback_DeclineFailsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.fastpay.VerifyResult = domain.GatewayVerifyResult{Confirmed: false}

	declined, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if declined.Status != domain.PaymentStatusFailed || declined.FailureCode != domain.PaymentFailureDeclined {
		t.Errorf("expected FAILED/DECLINED, got %s/%s", declined.Status, declined.FailureCode)
	}
	if got := f.orderStatus(t); got != domain.StatusPending {
		t.Errorf("expected order PENDING, got %s", got)
	}
}

func TestHandleCallback_VerifyErrorKeepsPaymentPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.fastpay.VerifyErr = &domain.GatewayError{Gateway: "fastpay", Op: "verify", Reason: "transport"}

	_, err = f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	if !errors.Is(err, domain.ErrGatewayVerifyFailed) {
		t.Fatalf("expected ErrGatewayVerifyFailed, got %v", err)
	}

	// Платёж остаётся PENDING: callback можно повторить после восстановления шлюза.
	current, err := f.store.Payments().Get(ctx, initiated.Payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if current.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING, got %s", current.Status)
	}

	f.fastpay.VerifyErr = nil
	if _, err := f.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority); err != nil {
		t.Fatalf("retry callback: %v", err)
	}
	if got := f.orderStatus(t); got != domain.StatusConfirmed {
		t.Errorf("expected CONFIRMED after retry, got %s", got)
	}
}

func TestHandleCallback_UnknownAuthority(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.HandleCallback(context.Background(), domain.GatewayFastPay, "no-such-authority")
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestSubmitReceipt_MovesOrderToAwaitingVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coordinator.SubmitReceipt(ctx, f.order.ID, "receipts/2026/receipt-1.jpg")
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if receipt.Gateway != domain.GatewayManual || receipt.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending manual payment, got %+v", receipt)
	}
	if receipt.Authority == "" {
		t.Error("expected locally issued authority")
	}
	if receipt.ReceiptPath != "receipts/2026/receipt-1.jpg" {
		t.Errorf("unexpected receipt path %s", receipt.ReceiptPath)
	}
	if got := f.orderStatus(t); got != domain.StatusAwaitingVerification {
		t.Errorf("expected AWAITING_VERIFICATION, got %s", got)
	}
}

func TestReview_ApproveConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coordinator.SubmitReceipt(ctx, f.order.ID, "receipts/r.jpg")
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}

	approved, err := f.coordinator.Review(ctx, receipt.ID, true, "operator:olga", "чек корректен")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if approved.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", approved.Status)
	}
	if got := f.orderStatus(t); got != domain.StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got)
	}
	if _, err := f.store.Invoices().GetByOrder(ctx, f.order.ID); err != nil {
		t.Errorf("expected invoice after approve: %v", err)
	}
}

func TestReview_RejectCancelsOrderAndReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coordinator.SubmitReceipt(ctx, f.order.ID, "receipts/r.jpg")
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}

	rejected, err := f.coordinator.Review(ctx, receipt.ID, false, "operator:olga", "сумма не совпадает")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rejected.Status != domain.PaymentStatusFailed || rejected.FailureCode != domain.PaymentFailureRejected {
		t.Errorf("expected FAILED/REJECTED, got %s/%s", rejected.Status, rejected.FailureCode)
	}
	if got := f.orderStatus(t); got != domain.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got)
	}

	// Сток вернулся через цепочку обработчиков отмены.
	product, err := f.store.Catalog().Product(ctx, "product-a")
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if product.Stock != 10 {
		t.Errorf("expected stock 10 after release, got %d", product.Stock)
	}
}

func TestReview_SecondDecisionIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coordinator.SubmitReceipt(ctx, f.order.ID, "receipts/r.jpg")
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if _, err := f.coordinator.Review(ctx, receipt.ID, true, "operator:olga", ""); err != nil {
		t.Fatalf("first review: %v", err)
	}

	// Повторное решение не меняет ни платёж, ни заказ.
	second, err := f.coordinator.Review(ctx, receipt.ID, false, "operator:ivan", "")
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if second.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED to stick, got %s", second.Status)
	}
	if got := f.orderStatus(t); got != domain.StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got)
	}
}

func TestReview_RejectsNonManualPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated, err := f.coordinator.Initiate(ctx, f.order.ID, domain.GatewayFastPay)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	_, err = f.coordinator.Review(ctx, initiated.Payment.ID, true, "operator:olga", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
