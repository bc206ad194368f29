package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказов и переходов статуса.
type CheckoutMetrics struct {
	checkoutCompleted prometheus.Counter
	checkoutRejected  prometheus.Counter
	transitions       *prometheus.CounterVec
	invoicesIssued    prometheus.Counter
}

// NewCheckoutMetrics создаёт метрики оформления в реестре по умолчанию.
// Повторный вызов возвращает уже зарегистрированные коллекторы.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutCompleted: registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_completed_total",
			Help: "Total number of carts successfully converted to orders",
		})),
		checkoutRejected: registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_rejected_total",
			Help: "Total number of checkout attempts rejected by validation or stock",
		})),
		transitions: registerCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_order_transitions_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"})),
		invoicesIssued: registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_invoices_issued_total",
			Help: "Total number of invoices issued",
		})),
	}
}

// RecordCheckoutCompleted увеличивает счётчик успешных оформлений.
func (m *CheckoutMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutRejected увеличивает счётчик отклонённых оформлений.
func (m *CheckoutMetrics) RecordCheckoutRejected() {
	m.checkoutRejected.Inc()
}

// RecordTransition учитывает переход статуса заказа.
func (m *CheckoutMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordInvoiceIssued увеличивает счётчик выпущенных счетов.
func (m *CheckoutMetrics) RecordInvoiceIssued() {
	m.invoicesIssued.Inc()
}

// PaymentMetrics содержит метрики платёжного координатора.
type PaymentMetrics struct {
	initiated        prometheus.Counter
	completed        prometheus.Counter
	failed           *prometheus.CounterVec
	callbackDuration prometheus.Histogram
	pendingPayments  prometheus.Gauge
}

// NewPaymentMetrics создаёт метрики платежей в реестре по умолчанию.
func NewPaymentMetrics() *PaymentMetrics {
	return newPaymentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPaymentMetricsWithRegisterer(registerer prometheus.Registerer) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PaymentMetrics{
		initiated: registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_payments_initiated_total",
			Help: "Total number of payment attempts initiated",
		})),
		completed: registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_payments_completed_total",
			Help: "Total number of payments completed successfully",
		})),
		failed: registerCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_payments_failed_total",
			Help: "Total number of failed payments by failure code",
		}, []string{"code"})),
		callbackDuration: registerCollector(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_payment_callback_duration_seconds",
			Help:    "Duration of payment callback handling in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})),
		pendingPayments: registerCollector(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "checkout_payments_pending",
			Help: "Number of payments currently awaiting gateway confirmation",
		})),
	}
}

// RecordInitiated увеличивает счётчик начатых платежей и число ожидающих.
func (m *PaymentMetrics) RecordInitiated() {
	m.initiated.Inc()
	m.pendingPayments.Inc()
}

// RecordCompleted учитывает успешный платёж.
func (m *PaymentMetrics) RecordCompleted() {
	m.completed.Inc()
	m.pendingPayments.Dec()
}

// RecordFailed учитывает неудачный платёж с кодом отказа.
func (m *PaymentMetrics) RecordFailed(code string) {
	m.failed.WithLabelValues(code).Inc()
	m.pendingPayments.Dec()
}

// RecordCallbackDuration записывает время обработки callback'а.
func (m *PaymentMetrics) RecordCallbackDuration(duration time.Duration) {
	m.callbackDuration.Observe(duration.Seconds())
}

// registerCollector регистрирует коллектор, а при повторной регистрации
// возвращает уже существующий экземпляр того же типа.
func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Sprintf("register collector: %v", err))
		}
		existing, ok := alreadyRegistered.ExistingCollector.(C)
		if !ok {
			panic("collector already registered with unexpected type")
		}
		return existing
	}
	return collector
}
