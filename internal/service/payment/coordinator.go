package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// OrderTransitioner двигает заказ по таблице переходов внутри уже открытой
// единицы работы. Реализуется сервисом оформления: координатор не знает
// про цепочку обработчиков, он лишь просит выполнить переход.
type OrderTransitioner interface {
	Apply(ctx context.Context, repos domain.RepoSet, order *domain.Order, to domain.OrderStatus, actor, note string) error
}

// Coordinator ведёт платёжный поток: инициация, callback шлюза, ручные
// чеки и их ревью. Сетевые вызовы шлюза происходят строго вне транзакций;
// внутри Within состояние платежа перечитывается и терминальность
// проверяется заново, поэтому повторный callback безопасен.
type Coordinator struct {
	uow      domain.UnitOfWork
	gateways *gateway.Registry
	orders   OrderTransitioner
	logger   *log.Entry
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
	newID    func() string
}

// NewCoordinator создаёт платёжный координатор.
func NewCoordinator(uow domain.UnitOfWork, gateways *gateway.Registry, orders OrderTransitioner, logger *log.Entry) *Coordinator {
	if logger == nil {
		logger = log.WithField("component", "payment")
	}
	return &Coordinator{
		uow:      uow,
		gateways: gateways,
		orders:   orders,
		logger:   logger,
		metrics:  metrics.NewPaymentMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// InitiateResult — результат инициации платежа: попытка и адрес редиректа.
type InitiateResult struct {
	Payment     domain.Payment
	RedirectURL string
}

// Initiate создаёт платёжную попытку по заказу в PENDING и открывает сессию
// у шлюза. Отказ шлюза помечает попытку FAILED/GATEWAY_ERROR, заказ при
// этом не трогается — покупатель может попробовать ещё раз.
func (c *Coordinator) Initiate(ctx context.Context, orderID string, kind domain.GatewayKind) (InitiateResult, error) {
	gw, err := c.gateways.ByKind(kind)
	if err != nil {
		return InitiateResult{}, err
	}

	order, err := c.uow.Orders().Get(ctx, orderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if order.Status != domain.StatusPending {
		return InitiateResult{}, &domain.InvalidTransitionError{From: order.Status, To: domain.StatusProcessing}
	}

	now := c.now()
	payment := domain.Payment{
		ID:          c.newID(),
		OrderID:     order.ID,
		Gateway:     kind,
		Status:      domain.PaymentStatusPending,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return InitiateResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, errors.Join(errs...))
	}
	if err := c.uow.Payments().Create(ctx, payment); err != nil {
		return InitiateResult{}, err
	}
	if c.metrics != nil {
		c.metrics.RecordInitiated()
	}

	// Сетевой вызов вне транзакции: зависший шлюз не держит блокировки.
	session, err := gw.Request(ctx, order)
	if err != nil {
		c.logger.WithFields(log.Fields{
			"order_id":   order.ID,
			"payment_id": payment.ID,
			"gateway":    kind,
		}).WithError(err).Warn("шлюз отклонил открытие сессии")
		if failErr := c.markFailed(ctx, payment.ID, domain.PaymentFailureGatewayError); failErr != nil {
			return InitiateResult{}, errors.Join(err, failErr)
		}
		return InitiateResult{}, err
	}

	payment.Authority = session.Authority
	payment.UpdatedAt = c.now()
	if err := c.uow.Payments().Save(ctx, payment); err != nil {
		return InitiateResult{}, err
	}
	payment.Version++

	return InitiateResult{Payment: payment, RedirectURL: session.RedirectURL}, nil
}

// HandleCallback обрабатывает возврат плательщика от шлюза. Идемпотентен:
// повторный callback по терминальному платежу возвращает сохранённый
// результат без повторной верификации.
func (c *Coordinator) HandleCallback(ctx context.Context, kind domain.GatewayKind, authority string) (domain.Payment, error) {
	started := c.now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordCallbackDuration(time.Since(started))
		}
	}()

	gw, err := c.gateways.ByKind(kind)
	if err != nil {
		return domain.Payment{}, err
	}

	payment, err := c.uow.Payments().FindByAuthority(ctx, kind, authority)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}

	// Верификация — сетевой вызов, строго вне транзакции.
	verdict, err := gw.Verify(ctx, payment, authority)
	if err != nil {
		// Транспортный сбой не финализирует платёж: callback можно повторить.
		return domain.Payment{}, err
	}

	var result domain.Payment
	var outcome error
	var finalized bool
	err = c.uow.Within(ctx, func(repos domain.RepoSet) error {
		current, err := repos.Payments().Get(ctx, payment.ID)
		if err != nil {
			return err
		}
		// Параллельный callback мог финализировать платёж, пока мы ходили к шлюзу.
		if current.Status.Terminal() {
			result = current
			return nil
		}
		finalized = true

		switch {
		case !verdict.Confirmed:
			current.Status = domain.PaymentStatusFailed
			current.FailureCode = domain.PaymentFailureDeclined
		case verdict.SettledAmountMinor != current.AmountMinor:
			current.Status = domain.PaymentStatusFailed
			current.FailureCode = domain.PaymentFailureAmountMismatch
			outcome = fmt.Errorf("%w: settled %d, expected %d",
				domain.ErrAmountMismatch, verdict.SettledAmountMinor, current.AmountMinor)
		default:
			current.Status = domain.PaymentStatusCompleted
			current.ReferenceID = verdict.ReferenceID
		}
		current.UpdatedAt = c.now()
		if err := repos.Payments().Save(ctx, current); err != nil {
			return err
		}
		current.Version++

		if current.Status == domain.PaymentStatusCompleted {
			if err := c.confirmOrder(ctx, repos, current, "gateway:"+string(kind)); err != nil {
				return err
			}
		}
		result = current
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if finalized {
		c.recordOutcome(result)
	}
	if outcome != nil {
		return result, outcome
	}
	return result, nil
}

// confirmOrder доводит заказ до CONFIRMED по завершённому платежу,
// проходя промежуточные статусы по таблице переходов.
func (c *Coordinator) confirmOrder(ctx context.Context, repos domain.RepoSet, payment domain.Payment, actor string) error {
	order, err := repos.Orders().Get(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == domain.StatusPending {
		if err := c.orders.Apply(ctx, repos, &order, domain.StatusProcessing, actor, "payment "+payment.ID); err != nil {
			return err
		}
	}
	return c.orders.Apply(ctx, repos, &order, domain.StatusConfirmed, actor, "payment "+payment.ID)
}

// SubmitReceipt — ручной поток: покупатель прикладывает чек, заказ уходит
// в AWAITING_VERIFICATION до решения оператора.
func (c *Coordinator) SubmitReceipt(ctx context.Context, orderID, receiptPath string) (domain.Payment, error) {
	if receiptPath == "" {
		return domain.Payment{}, fmt.Errorf("%w: receipt is required", domain.ErrValidation)
	}

	gw, err := c.gateways.ByKind(domain.GatewayManual)
	if err != nil {
		return domain.Payment{}, err
	}

	var result domain.Payment
	err = c.uow.Within(ctx, func(repos domain.RepoSet) error {
		order, err := repos.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusPending {
			return &domain.InvalidTransitionError{From: order.Status, To: domain.StatusAwaitingVerification}
		}

		// Ручной шлюз выдаёт authority локально, сетевого вызова нет.
		session, err := gw.Request(ctx, order)
		if err != nil {
			return err
		}

		now := c.now()
		payment := domain.Payment{
			ID:          c.newID(),
			OrderID:     order.ID,
			Gateway:     domain.GatewayManual,
			Status:      domain.PaymentStatusPending,
			AmountMinor: order.TotalMinor,
			Currency:    order.Currency,
			Authority:   session.Authority,
			ReceiptPath: receiptPath,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return err
		}

		if err := c.orders.Apply(ctx, repos, &order, domain.StatusAwaitingVerification, actorOf(order.Owner), "receipt uploaded"); err != nil {
			return err
		}
		result = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if c.metrics != nil {
		c.metrics.RecordInitiated()
	}
	return result, nil
}

// Review — решение оператора по ручному платежу. Approve завершает платёж
// и подтверждает заказ; reject помечает попытку FAILED/REJECTED и отменяет
// заказ (сток вернётся через цепочку обработчиков перехода).
func (c *Coordinator) Review(ctx context.Context, paymentID string, approve bool, actor, note string) (domain.Payment, error) {
	var result domain.Payment
	var finalized bool
	err := c.uow.Within(ctx, func(repos domain.RepoSet) error {
		payment, err := repos.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Gateway != domain.GatewayManual {
			return fmt.Errorf("%w: review applies to manual payments only", domain.ErrValidation)
		}
		if payment.Status.Terminal() {
			result = payment
			return nil
		}
		finalized = true

		order, err := repos.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return err
		}

		if approve {
			payment.Status = domain.PaymentStatusCompleted
			payment.ReferenceID = payment.Authority
		} else {
			payment.Status = domain.PaymentStatusFailed
			payment.FailureCode = domain.PaymentFailureRejected
		}
		payment.UpdatedAt = c.now()
		if err := repos.Payments().Save(ctx, payment); err != nil {
			return err
		}
		payment.Version++

		to := domain.StatusConfirmed
		if !approve {
			to = domain.StatusCancelled
		}
		if err := c.orders.Apply(ctx, repos, &order, to, actor, note); err != nil {
			return err
		}
		result = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if finalized {
		c.recordOutcome(result)
	}
	return result, nil
}

// Payment возвращает платёжную попытку по идентификатору.
func (c *Coordinator) Payment(ctx context.Context, paymentID string) (domain.Payment, error) {
	return c.uow.Payments().Get(ctx, paymentID)
}

// Payments возвращает все попытки по заказу, старые первыми.
func (c *Coordinator) Payments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return c.uow.Payments().ListByOrder(ctx, orderID)
}

// markFailed финализирует попытку с кодом отказа, перечитав её состояние.
func (c *Coordinator) markFailed(ctx context.Context, paymentID, code string) error {
	return c.uow.Within(ctx, func(repos domain.RepoSet) error {
		payment, err := repos.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status.Terminal() {
			return nil
		}
		payment.Status = domain.PaymentStatusFailed
		payment.FailureCode = code
		payment.UpdatedAt = c.now()
		if err := repos.Payments().Save(ctx, payment); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.RecordFailed(code)
		}
		return nil
	})
}

func (c *Coordinator) recordOutcome(payment domain.Payment) {
	if c.metrics == nil {
		return
	}
	switch payment.Status {
	case domain.PaymentStatusCompleted:
		c.metrics.RecordCompleted()
	case domain.PaymentStatusFailed:
		c.metrics.RecordFailed(payment.FailureCode)
	}
}

func actorOf(owner domain.Identity) string {
	if owner.Authenticated() {
		return "customer:" + owner.Value()
	}
	return "anonymous"
}
