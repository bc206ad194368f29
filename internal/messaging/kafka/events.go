package kafka

// Типы событий, уходящих наружу через transactional outbox.
const (
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypePaymentCompleted   = "payment.completed"
	EventTypePaymentFailed      = "payment.failed"
	EventTypeInvoiceIssued      = "invoice.issued"
)

// Topics для Kafka.
const (
	TopicOrderEvents   = "checkout.order.events"
	TopicPaymentEvents = "checkout.payment.events"
	TopicInvoiceEvents = "checkout.invoice.events"
)

// TopicFor выбирает topic по типу агрегата outbox-сообщения.
// Неизвестные агрегаты уходят в общий topic заказов.
func TopicFor(aggregateType string) string {
	switch aggregateType {
	case "payment":
		return TopicPaymentEvents
	case "invoice":
		return TopicInvoiceEvents
	default:
		return TopicOrderEvents
	}
}
