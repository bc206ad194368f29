package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

const (
	// maxTransitionRetries ограничивает повторы перехода при конфликте версий.
	maxTransitionRetries = 3
	retryBaseDelay       = 10 * time.Millisecond
)

// Request — данные покупателя, необходимые для оформления заказа.
type Request struct {
	ShippingAddress string
	PhoneNumber     string
}

// Service оформляет заказы и двигает их по таблице переходов.
// Checkout и каждый переход — атомарная единица: всё фиксируется целиком
// либо не происходит вовсе.
type Service struct {
	uow      domain.UnitOfWork
	shipping domain.ShippingQuoter
	handlers []domain.StatusChangeHandler
	currency string
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
	newID    func() string
}

// NewService создаёт сервис оформления. Цепочка обработчиков вызывается
// синхронно в порядке регистрации внутри той же транзакции, что и переход.
func NewService(
	uow domain.UnitOfWork,
	shipping domain.ShippingQuoter,
	currency string,
	logger *log.Entry,
	handlers ...domain.StatusChangeHandler,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	if len(handlers) == 0 {
		handlers = DefaultHandlers()
	}
	return &Service{
		uow:      uow,
		shipping: shipping,
		handlers: handlers,
		currency: currency,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Checkout превращает корзину identity в заказ: повторно валидирует каждую
// позицию, замораживает цены, резервирует сток, списывает слот промокода и
// уничтожает корзину. Любой отказ откатывает всё: заказ не создаётся,
// корзина остаётся нетронутой.
func (s *Service) Checkout(ctx context.Context, owner domain.Identity, req Request) (domain.Order, error) {
	if owner.IsZero() {
		return domain.Order{}, domain.ErrIdentityRequired
	}

	shippingMinor, err := s.shipping.Quote(ctx, req.ShippingAddress)
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	err = s.uow.Within(ctx, func(repos domain.RepoSet) error {
		cart, err := repos.Carts().FindByOwner(ctx, owner)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return &domain.CheckoutValidationError{}
		}

		now := s.now()
		lines, subtotal, failures, err := s.freezeLines(ctx, repos, cart, now)
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			return &domain.CheckoutValidationError{Failures: failures}
		}

		discount := cart.Promotion.DiscountFor(subtotal)
		promotionCode := ""
		if cart.Promotion != nil && discount > 0 {
			promotionCode = cart.Promotion.Code
			if err := repos.Promotions().IncrementUsage(ctx, promotionCode); err != nil {
				return err
			}
		}

		for _, line := range lines {
			if err := repos.Stock().Reserve(ctx, line.ProductID, line.Qty); err != nil {
				return &domain.CheckoutValidationError{Failures: []domain.LineFailure{
					{ProductID: line.ProductID, Reason: err},
				}}
			}
		}

		order := domain.Order{
			ID:              s.newID(),
			Owner:           owner,
			Status:          domain.StatusCart,
			Currency:        s.currency,
			SubtotalMinor:   subtotal,
			DiscountMinor:   discount,
			ShippingMinor:   shippingMinor,
			TotalMinor:      subtotal - discount + shippingMinor,
			PromotionCode:   promotionCode,
			ShippingAddress: req.ShippingAddress,
			PhoneNumber:     req.PhoneNumber,
			Lines:           lines,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("%w: %v", domain.ErrValidation, errors.Join(errs...))
		}
		if err := repos.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		// Заказ рождается в CART и сразу же проходит первый переход, чтобы
		// история статусов начиналась с CART → PENDING.
		if err := s.Apply(ctx, repos, &order, domain.StatusPending, actorOf(owner), ""); err != nil {
			return err
		}

		if err := repos.Carts().Delete(ctx, cart.ID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}

		result = order
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutRejected()
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutCompleted()
	}
	s.logger.WithFields(log.Fields{
		"order_id":    result.ID,
		"total_minor": result.TotalMinor,
	}).Info("заказ оформлен")
	return result, nil
}

// freezeLines повторно валидирует позиции корзины по каталогу и превращает
// их в замороженные позиции заказа. Каталог читается через переданный
// набор репозиториев: цены и сток видны в той же транзакции, что и
// резервирование. Отказы собираются по всем позициям.
func (s *Service) freezeLines(ctx context.Context, repos domain.RepoSet, cart domain.Cart, now time.Time) ([]domain.OrderLine, int64, []domain.LineFailure, error) {
	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	failures := make([]domain.LineFailure, 0)
	var subtotal int64

	for _, line := range cart.Lines {
		product, err := repos.Catalog().Product(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				failures = append(failures, domain.LineFailure{ProductID: line.ProductID, Reason: err})
				continue
			}
			return nil, 0, nil, err
		}
		if !product.Purchasable() || product.Stock < line.Qty {
			failures = append(failures, domain.LineFailure{ProductID: line.ProductID, Reason: domain.ErrProductUnavailable})
			continue
		}

		lines = append(lines, domain.OrderLine{
			ID:         s.newID(),
			ProductID:  product.ID,
			Title:      product.Title,
			SKU:        product.SKU,
			Qty:        line.Qty,
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		})
		subtotal += product.PriceMinor * int64(line.Qty)
	}

	return lines, subtotal, failures, nil
}

// Transition — атомарный переход заказа в новый статус вместе с цепочкой
// side-effect'ов. Конфликт версий повторяется с перечитыванием заказа.
func (s *Service) Transition(ctx context.Context, orderID string, to domain.OrderStatus, actor, note string) (domain.Order, error) {
	var result domain.Order

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
			order, err := repos.Orders().Get(ctx, orderID)
			if err != nil {
				return err
			}
			if err := s.Apply(ctx, repos, &order, to, actor, note); err != nil {
				return err
			}
			result = order
			return nil
		})
		if err == nil {
			return result, nil
		}
		if domain.IsVersionConflict(err) && attempt < maxTransitionRetries-1 {
			s.logger.WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt + 1,
			}).Warn("конфликт версий при переходе, повторяем")
			time.Sleep(retryBaseDelay * time.Duration(1<<uint(attempt)))
			continue
		}
		return domain.Order{}, err
	}
	return domain.Order{}, domain.ErrVersionConflict
}

// Apply выполняет переход внутри уже открытой единицы работы: валидирует
// его таблицей, сохраняет заказ и прогоняет цепочку обработчиков.
// Ошибка любого обработчика откатывает переход целиком.
func (s *Service) Apply(ctx context.Context, repos domain.RepoSet, order *domain.Order, to domain.OrderStatus, actor, note string) error {
	change, err := order.TransitionTo(to, actor, note)
	if err != nil {
		return err
	}

	if err := repos.Orders().Save(ctx, *order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	order.Version++

	event := domain.StatusChangedEvent{Order: *order, Change: change}
	for _, handler := range s.handlers {
		if err := handler.HandleStatusChange(ctx, repos, event); err != nil {
			return fmt.Errorf("status handler %s: %w", handler.Name(), err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(change.From), string(change.To))
	}
	return nil
}

// Cancel отменяет заказ, если таблица переходов это разрешает.
func (s *Service) Cancel(ctx context.Context, orderID, actor, reason string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusCancelled, actor, reason)
}

// Ship переводит заказ в SHIPPED и записывает трек-номер.
func (s *Service) Ship(ctx context.Context, orderID, actor, trackingCode string) (domain.Order, error) {
	var result domain.Order
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		order, err := repos.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		order.TrackingCode = trackingCode
		if err := s.Apply(ctx, repos, &order, domain.StatusShipped, actor, "tracking "+trackingCode); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// Deliver фиксирует доставку заказа.
func (s *Service) Deliver(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusDelivered, actor, "")
}

// Return фиксирует возврат доставленного заказа.
func (s *Service) Return(ctx context.Context, orderID, actor, reason string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusReturned, actor, reason)
}

// Refund закрывает возвратный путь: деньги возвращены.
func (s *Service) Refund(ctx context.Context, orderID, actor, reason string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusRefunded, actor, reason)
}

// Order возвращает заказ вместе с историей статусов.
func (s *Service) Order(ctx context.Context, orderID string) (domain.Order, []domain.StatusChange, error) {
	order, err := s.uow.Orders().Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	history, err := s.uow.Orders().StatusHistory(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, history, nil
}

// Orders возвращает заказы identity, новые первыми.
func (s *Service) Orders(ctx context.Context, owner domain.Identity, limit int) ([]domain.Order, error) {
	return s.uow.Orders().ListByOwner(ctx, owner, limit)
}

// Invoice возвращает счёт заказа, если он уже выпущен.
func (s *Service) Invoice(ctx context.Context, orderID string) (domain.Invoice, error) {
	return s.uow.Invoices().GetByOrder(ctx, orderID)
}

func actorOf(owner domain.Identity) string {
	if owner.Authenticated() {
		return "customer:" + owner.Value()
	}
	return "anonymous"
}
