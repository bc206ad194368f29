package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// PricedLine — позиция корзины, расценённая по живой цене каталога.
type PricedLine struct {
	ProductID      string
	Title          string
	SKU            string
	Qty            int32
	PriceMinor     int64
	LineTotalMinor int64
}

// View — корзина вместе с расценёнными позициями и суммами.
type View struct {
	Cart   domain.Cart
	Lines  []PricedLine
	Totals domain.Totals
}

// Service управляет пред-покупочными корзинами: одна активная корзина на
// identity, цены всегда живые, скидка пересчитывается при каждом запросе.
type Service struct {
	uow     domain.UnitOfWork
	catalog domain.CatalogView
	logger  *log.Entry
	now     func() time.Time
}

// NewService создаёт сервис корзин.
func NewService(uow domain.UnitOfWork, catalog domain.CatalogView, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{
		uow:     uow,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Resolve возвращает активную корзину identity, создавая пустую при первом обращении.
func (s *Service) Resolve(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	if owner.IsZero() {
		return domain.Cart{}, domain.ErrIdentityRequired
	}

	cart, err := s.resolveIn(ctx, s.uow, owner)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// resolveIn возвращает корзину identity в переданном наборе репозиториев,
// создавая пустую при первом обращении.
func (s *Service) resolveIn(ctx context.Context, repos domain.RepoSet, owner domain.Identity) (domain.Cart, error) {
	cart, err := repos.Carts().FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := s.now()
	cart = domain.Cart{
		ID:        uuid.NewString(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Carts().Create(ctx, cart); err != nil {
		return domain.Cart{}, fmt.Errorf("create cart: %w", err)
	}
	s.logger.WithFields(log.Fields{
		"cart_id":    cart.ID,
		"owner_kind": string(owner.Kind()),
	}).Debug("создана новая корзина")
	return cart, nil
}

// AddItem добавляет qty единиц товара к корзине. Товар должен быть
// покупаемым, а итоговое количество в позиции — не превышать сток.
func (s *Service) AddItem(ctx context.Context, owner domain.Identity, productID string, qty int32) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !product.Purchasable() {
		return domain.Cart{}, domain.ErrProductUnavailable
	}

	var result domain.Cart
	err = s.uow.Within(ctx, func(repos domain.RepoSet) error {
		cart, err := s.resolveIn(ctx, repos, owner)
		if err != nil {
			return err
		}

		current := int32(0)
		if i := cart.LineIndex(productID); i >= 0 {
			current = cart.Lines[i].Qty
		}
		if current+qty > product.Stock {
			return domain.ErrProductUnavailable
		}

		cart.AddQuantity(productID, qty)
		cart.UpdatedAt = s.now()
		if err := repos.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart.Version++
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// SetQuantity устанавливает точное количество позиции; qty == 0 удаляет её.
func (s *Service) SetQuantity(ctx context.Context, owner domain.Identity, productID string, qty int32) (domain.Cart, error) {
	if qty < 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	if qty > 0 {
		product, err := s.catalog.Product(ctx, productID)
		if err != nil {
			return domain.Cart{}, err
		}
		if !product.Purchasable() || qty > product.Stock {
			return domain.Cart{}, domain.ErrProductUnavailable
		}
	}

	var result domain.Cart
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		cart, err := repos.Carts().FindByOwner(ctx, owner)
		if err != nil {
			return err
		}

		cart.SetQuantity(productID, qty)
		cart.UpdatedAt = s.now()
		if err := repos.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart.Version++
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// Clear удаляет все позиции и снимает промокод, сохраняя саму корзину.
func (s *Service) Clear(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	var result domain.Cart
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		cart, err := repos.Carts().FindByOwner(ctx, owner)
		if err != nil {
			return err
		}

		cart.Lines = nil
		cart.Promotion = nil
		cart.UpdatedAt = s.now()
		if err := repos.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart.Version++
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// ApplyPromotion проверяет промокод и кладёт его снимок на корзину.
// Счётчик использований на этом шаге не трогается: он списывается на checkout.
func (s *Service) ApplyPromotion(ctx context.Context, owner domain.Identity, code string) (domain.Cart, error) {
	now := s.now()

	var result domain.Cart
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		promo, err := repos.Promotions().GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if !promo.UsableAt(now) {
			return domain.ErrPromotionInvalid
		}

		cart, err := repos.Carts().FindByOwner(ctx, owner)
		if err != nil {
			return err
		}

		totals, err := s.priceCart(ctx, repos.Catalog(), cart)
		if err != nil {
			return err
		}
		if totals.Totals.SubtotalMinor < promo.MinPurchaseMinor {
			return domain.ErrPromotionBelowMinimum
		}

		cart.Promotion = promo.Snapshot(now)
		cart.UpdatedAt = now
		if err := repos.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart.Version++
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// RemovePromotion снимает промокод с корзины.
func (s *Service) RemovePromotion(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	var result domain.Cart
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		cart, err := repos.Carts().FindByOwner(ctx, owner)
		if err != nil {
			return err
		}

		cart.Promotion = nil
		cart.UpdatedAt = s.now()
		if err := repos.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart.Version++
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// Detail возвращает корзину с расценкой по живым ценам каталога и суммами.
func (s *Service) Detail(ctx context.Context, owner domain.Identity) (View, error) {
	cart, err := s.Resolve(ctx, owner)
	if err != nil {
		return View{}, err
	}
	return s.priceCart(ctx, s.catalog, cart)
}

// Totals пересчитывает суммы корзины по живым ценам.
func (s *Service) Totals(ctx context.Context, cart domain.Cart) (domain.Totals, error) {
	view, err := s.priceCart(ctx, s.catalog, cart)
	if err != nil {
		return domain.Totals{}, err
	}
	return view.Totals, nil
}

// Merge переносит позиции анонимной корзины в корзину авторизованного
// покупателя: количества складываются по тому же правилу, что и AddItem,
// анонимный промокод отбрасывается, анонимная корзина удаляется.
// Позиции с исчезнувшим или непокупаемым товаром не переносятся, избыток
// сверх остатка на складе срезается.
func (s *Service) Merge(ctx context.Context, anonymous, authenticated domain.Identity) (domain.Cart, error) {
	if !authenticated.Authenticated() || anonymous.Authenticated() {
		return domain.Cart{}, domain.ErrValidation
	}

	var result domain.Cart
	err := s.uow.Within(ctx, func(repos domain.RepoSet) error {
		anonCart, err := repos.Carts().FindByOwner(ctx, anonymous)
		if err != nil {
			return err
		}

		target, err := repos.Carts().FindByOwner(ctx, authenticated)
		if errors.Is(err, domain.ErrCartNotFound) {
			now := s.now()
			target = domain.Cart{
				ID:        uuid.NewString(),
				Owner:     authenticated,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.Carts().Create(ctx, target); err != nil {
				return fmt.Errorf("create cart: %w", err)
			}
		} else if err != nil {
			return err
		}

		catalog := repos.Catalog()
		for _, line := range anonCart.Lines {
			product, err := catalog.Product(ctx, line.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !product.Purchasable() {
				continue
			}

			current := int32(0)
			if i := target.LineIndex(line.ProductID); i >= 0 {
				current = target.Lines[i].Qty
			}
			qty := line.Qty
			if current+qty > product.Stock {
				qty = product.Stock - current
			}
			if qty <= 0 {
				continue
			}
			target.AddQuantity(line.ProductID, qty)
		}
		target.UpdatedAt = s.now()
		if err := repos.Carts().Save(ctx, target); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		target.Version++

		if err := repos.Carts().Delete(ctx, anonCart.ID); err != nil {
			return fmt.Errorf("delete anonymous cart: %w", err)
		}

		result = target
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithField("cart_id", result.ID).Info("анонимная корзина слита с корзиной покупателя")
	return result, nil
}

// priceCart расценивает корзину по живым ценам переданного каталога:
// внутри Within это транзакционный каталог набора репозиториев, снаружи —
// автономный. Скидка снимка промокода пересчитывается и превращается в 0,
// если порог больше не выполняется.
func (s *Service) priceCart(ctx context.Context, catalog domain.CatalogView, cart domain.Cart) (View, error) {
	lines := make([]PricedLine, 0, len(cart.Lines))
	var subtotal int64
	for _, line := range cart.Lines {
		product, err := catalog.Product(ctx, line.ProductID)
		if err != nil {
			return View{}, err
		}
		lineTotal := product.PriceMinor * int64(line.Qty)
		lines = append(lines, PricedLine{
			ProductID:      line.ProductID,
			Title:          product.Title,
			SKU:            product.SKU,
			Qty:            line.Qty,
			PriceMinor:     product.PriceMinor,
			LineTotalMinor: lineTotal,
		})
		subtotal += lineTotal
	}

	discount := cart.Promotion.DiscountFor(subtotal)
	return View{
		Cart:  cart,
		Lines: lines,
		Totals: domain.Totals{
			SubtotalMinor: subtotal,
			DiscountMinor: discount,
			TotalMinor:    subtotal - discount,
		},
	}, nil
}
