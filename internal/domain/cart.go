package domain

import "time"

// CartLine — одна позиция корзины. Цена здесь не хранится: суммы всегда
// считаются по живой цене из каталога, заморозка происходит только на checkout.
type CartLine struct {
	ProductID string
	Qty       int32
}

// AppliedPromotion — снимок применённого промокода на корзине.
// Условия перепроверяются при каждом расчёте сумм (но не перечитываются
// из хранилища): если корзина усохла ниже порога, скидка считается void.
type AppliedPromotion struct {
	Code             string
	Kind             DiscountKind
	ValueMinor       int64 // для fixed: сумма скидки; для percentage не используется
	Percent          int32 // для percentage: 0..100
	MaxDiscountMinor int64 // 0 — без потолка
	MinPurchaseMinor int64
	AppliedAt        time.Time
}

// DiscountFor пересчитывает скидку для текущего subtotal.
// Возвращает 0, если порог минимальной покупки больше не выполняется.
func (p *AppliedPromotion) DiscountFor(subtotalMinor int64) int64 {
	if p == nil || subtotalMinor < p.MinPurchaseMinor {
		return 0
	}
	var discount int64
	switch p.Kind {
	case DiscountFixed:
		discount = p.ValueMinor
	case DiscountPercentage:
		discount = subtotalMinor * int64(p.Percent) / 100
		if p.MaxDiscountMinor > 0 && discount > p.MaxDiscountMinor {
			discount = p.MaxDiscountMinor
		}
	}
	if discount > subtotalMinor {
		discount = subtotalMinor
	}
	return discount
}

// Cart — изменяемая пред-покупочная корзина одной identity.
// Одна активная корзина на identity; уничтожается только на checkout.
type Cart struct {
	ID        string
	Owner     Identity
	Lines     []CartLine
	Promotion *AppliedPromotion
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineIndex возвращает индекс позиции по товару или -1.
func (c *Cart) LineIndex(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddQuantity добавляет qty к существующей позиции либо создаёт новую.
func (c *Cart) AddQuantity(productID string, qty int32) {
	if i := c.LineIndex(productID); i >= 0 {
		c.Lines[i].Qty += qty
		return
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Qty: qty})
}

// SetQuantity устанавливает точное количество; qty == 0 удаляет позицию.
func (c *Cart) SetQuantity(productID string, qty int32) {
	i := c.LineIndex(productID)
	if qty == 0 {
		if i >= 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		}
		return
	}
	if i >= 0 {
		c.Lines[i].Qty = qty
		return
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Qty: qty})
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Totals — результат расчёта сумм корзины по живым ценам каталога.
type Totals struct {
	SubtotalMinor int64
	DiscountMinor int64
	TotalMinor    int64
}
