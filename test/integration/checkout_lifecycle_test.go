package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway"
	cartsvc "github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/service/shipping"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

// capturePublisher собирает опубликованные события outbox в память.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *capturePublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(eventType string) []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.OutboxMessage
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// CheckoutLifecycleTestSuite прогоняет полный путь покупки на memory-хранилище:
// корзина → checkout → оплата → счёт → события наружу.
type CheckoutLifecycleTestSuite struct {
	suite.Suite

	store       *memory.Store
	carts       *cartsvc.Service
	orders      *checkout.Service
	coordinator *payment.Coordinator
	fastpay     *gateway.MockGateway
	publisher   *capturePublisher
	worker      *outbox.Worker
	owner       domain.Identity
}

func (s *CheckoutLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()
	s.store.SeedProducts([]domain.Product{
		{ID: "laptop-pro", Title: "Laptop Pro", SKU: "LP-01", PriceMinor: 199900, Stock: 5, Available: true, Visible: true, Active: true},
		{ID: "mouse-wireless", Title: "Wireless Mouse", SKU: "MW-01", PriceMinor: 4900, Stock: 20, Available: true, Visible: true, Active: true},
	})
	s.store.SeedPromotions([]domain.PromotionCode{
		{Code: "TEN", Kind: domain.DiscountPercentage, Percent: 10, Active: true},
	})

	s.carts = cartsvc.NewService(s.store, s.store.Catalog(), logger)
	s.orders = checkout.NewService(s.store, shipping.NewFlatFeeQuoter(1500), "USD", logger)

	s.fastpay = gateway.NewMockGateway(domain.GatewayFastPay)
	registry := gateway.NewRegistry(s.fastpay, gateway.NewManualGateway())
	s.coordinator = payment.NewCoordinator(s.store, registry, s.orders, logger)

	s.publisher = &capturePublisher{}
	s.worker = outbox.NewWorker(s.store.Outbox(), s.publisher, outbox.WithLogger(logger))

	owner, err := domain.NewAuthenticatedIdentity("customer-123")
	s.Require().NoError(err)
	s.owner = owner
}

// checkoutOrder наполняет корзину и оформляет заказ с промокодом TEN.
func (s *CheckoutLifecycleTestSuite) checkoutOrder(ctx context.Context) domain.Order {
	_, err := s.carts.AddItem(ctx, s.owner, "laptop-pro", 1)
	s.Require().NoError(err)
	_, err = s.carts.AddItem(ctx, s.owner, "mouse-wireless", 2)
	s.Require().NoError(err)
	_, err = s.carts.ApplyPromotion(ctx, s.owner, "TEN")
	s.Require().NoError(err)

	order, err := s.orders.Checkout(ctx, s.owner, checkout.Request{
		ShippingAddress: "221B Baker Street",
		PhoneNumber:     "+15550100",
	})
	s.Require().NoError(err)
	return order
}

// payOrder инициирует оплату через fastpay и доставляет подтверждающий callback.
func (s *CheckoutLifecycleTestSuite) payOrder(ctx context.Context, order domain.Order) domain.Payment {
	s.fastpay.VerifyResult.SettledAmountMinor = order.TotalMinor

	initiated, err := s.coordinator.Initiate(ctx, order.ID, domain.GatewayFastPay)
	s.Require().NoError(err)
	s.Require().NotEmpty(initiated.RedirectURL)

	paid, err := s.coordinator.HandleCallback(ctx, domain.GatewayFastPay, initiated.Payment.Authority)
	s.Require().NoError(err)
	s.Require().Equal(domain.PaymentStatusCompleted, paid.Status)
	return paid
}

func (s *CheckoutLifecycleTestSuite) TestFullPurchaseLifecycle() {
	ctx := context.Background()

	order := s.checkoutOrder(ctx)
	subtotal := int64(199900 + 2*4900)
	s.Equal(subtotal, order.SubtotalMinor)
	s.Equal(subtotal/10, order.DiscountMinor)
	s.Equal(subtotal-subtotal/10+1500, order.TotalMinor)
	s.Equal(domain.StatusPending, order.Status)

	// Сток зарезервирован на checkout.
	laptop, err := s.store.Catalog().Product(ctx, "laptop-pro")
	s.Require().NoError(err)
	s.Equal(int32(4), laptop.Stock)

	s.payOrder(ctx, order)

	confirmed, history, err := s.orders.Order(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusConfirmed, confirmed.Status)
	s.Require().Len(history, 3) // CART→PENDING, PENDING→PROCESSING, PROCESSING→CONFIRMED

	// Счёт выпущен ровно один раз вместе с переходом в CONFIRMED.
	invoice, err := s.orders.Invoice(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal("INV000001", invoice.Number)
	s.Equal(order.TotalMinor, invoice.TotalMinor)

	// Фулфилмент до конца жизненного цикла.
	_, err = s.orders.Ship(ctx, order.ID, "admin", "TRACK-1")
	s.Require().NoError(err)
	_, err = s.orders.Deliver(ctx, order.ID, "admin")
	s.Require().NoError(err)

	// Outbox выгружается воркером: по событию на каждый переход.
	s.worker.ProcessOnce(ctx)
	events := s.publisher.byType("order.status_changed")
	s.Require().Len(events, 5)

	var payload struct {
		OrderID string `json:"order_id"`
		From    string `json:"from"`
		To      string `json:"to"`
	}
	s.Require().NoError(json.Unmarshal(events[0].Payload, &payload))
	s.Equal(order.ID, payload.OrderID)
	s.Equal("CART", payload.From)
	s.Equal("PENDING", payload.To)

	stats, err := s.store.Outbox().Stats(ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.PendingCount)
}

func (s *CheckoutLifecycleTestSuite) TestDuplicateCallbackEmitsOneInvoice() {
	ctx := context.Background()

	order := s.checkoutOrder(ctx)
	paid := s.payOrder(ctx, order)

	again, err := s.coordinator.HandleCallback(ctx, domain.GatewayFastPay, paid.Authority)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusCompleted, again.Status)
	s.Equal(1, s.fastpay.VerifyCalls)

	_, err = s.orders.Invoice(ctx, order.ID)
	s.Require().NoError(err)

	_, history, err := s.orders.Order(ctx, order.ID)
	s.Require().NoError(err)
	confirmations := 0
	for _, change := range history {
		if change.To == domain.StatusConfirmed {
			confirmations++
		}
	}
	s.Equal(1, confirmations)
}

func (s *CheckoutLifecycleTestSuite) TestManualRejectionReleasesStock() {
	ctx := context.Background()

	order := s.checkoutOrder(ctx)

	pending, err := s.coordinator.SubmitReceipt(ctx, order.ID, "uploads/receipt-1.png")
	s.Require().NoError(err)
	s.Equal(domain.GatewayManual, pending.Gateway)

	awaiting, _, err := s.orders.Order(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusAwaitingVerification, awaiting.Status)

	rejected, err := s.coordinator.Review(ctx, pending.ID, false, "admin", "чек не читается")
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusFailed, rejected.Status)

	cancelled, _, err := s.orders.Order(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusCancelled, cancelled.Status)

	// Отмена вернула резерв на склад.
	laptop, err := s.store.Catalog().Product(ctx, "laptop-pro")
	s.Require().NoError(err)
	s.Equal(int32(5), laptop.Stock)

	// После отмены счёт не выпускается.
	_, err = s.orders.Invoice(ctx, order.ID)
	s.Require().ErrorIs(err, domain.ErrInvoiceNotFound)
}

func (s *CheckoutLifecycleTestSuite) TestFailedPaymentAllowsRetry() {
	ctx := context.Background()

	order := s.checkoutOrder(ctx)

	// Первый callback приходит с недоплатой: платёж падает, заказ остаётся
	// в PENDING и допускает повторную попытку.
	s.fastpay.VerifyResult.SettledAmountMinor = order.TotalMinor - 1
	first, err := s.coordinator.Initiate(ctx, order.ID, domain.GatewayFastPay)
	s.Require().NoError(err)

	_, err = s.coordinator.HandleCallback(ctx, domain.GatewayFastPay, first.Payment.Authority)
	s.Require().ErrorIs(err, domain.ErrAmountMismatch)

	failed, err := s.coordinator.Payment(ctx, first.Payment.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusFailed, failed.Status)
	s.Equal(domain.PaymentFailureAmountMismatch, failed.FailureCode)

	stillPending, _, err := s.orders.Order(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, stillPending.Status)

	// Повторная попытка с полной суммой проходит.
	s.fastpay.RequestResult.Authority = "auth-retry"
	s.payOrder(ctx, order)

	attempts, err := s.coordinator.Payments(ctx, order.ID)
	s.Require().NoError(err)
	s.Len(attempts, 2)
}

func TestCheckoutLifecycle(t *testing.T) {
	suite.Run(t, new(CheckoutLifecycleTestSuite))
}
