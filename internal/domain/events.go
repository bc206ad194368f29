package domain

import "context"

// StatusChangedEvent — доменное событие: заказ сменил статус.
// Order уже содержит новое состояние, Change — пару (from, to) и актора.
type StatusChangedEvent struct {
	Order  Order
	Change StatusChange
}

// StatusChangeHandler — один шаг явной упорядоченной цепочки side-effect'ов
// при смене статуса. Цепочка заменяет неявные сигналы: каждый обработчик
// вызывается синхронно, внутри той же транзакции, что и сам переход, в
// порядке регистрации. Ошибка обработчика откатывает переход целиком.
type StatusChangeHandler interface {
	Name() string
	HandleStatusChange(ctx context.Context, repos RepoSet, event StatusChangedEvent) error
}

// StatusChangeHandlerFunc адаптирует функцию под StatusChangeHandler.
type StatusChangeHandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, repos RepoSet, event StatusChangedEvent) error
}

// Name возвращает имя обработчика для логов и истории.
func (h StatusChangeHandlerFunc) Name() string { return h.HandlerName }

// HandleStatusChange вызывает обёрнутую функцию.
func (h StatusChangeHandlerFunc) HandleStatusChange(ctx context.Context, repos RepoSet, event StatusChangedEvent) error {
	return h.Fn(ctx, repos, event)
}
