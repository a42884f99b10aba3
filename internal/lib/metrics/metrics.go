package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics счётчики жизненного цикла заказа.
// Все методы безопасны для nil-получателя.
type Metrics struct {
	registry        *prometheus.Registry
	checkouts       *prometheus.CounterVec
	reservedUnits   prometheus.Counter
	payments        *prometheus.CounterVec
	itemTransitions *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		reservedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "reserved_units_total",
			Help: "Units of stock reserved by committed checkouts.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "total",
			Help: "Payment operations by flow and result.",
		}, []string{"flow", "result"}),
		itemTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fulfillment", Name: "item_transitions_total",
			Help: "Order item status changes by target status.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.checkouts, m.reservedUnits, m.payments, m.itemTransitions)
	return m
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Checkout(result string, units int) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
	if units > 0 {
		m.reservedUnits.Add(float64(units))
	}
}

func (m *Metrics) Payment(flow, result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) ItemTransition(status string) {
	if m == nil {
		return
	}
	m.itemTransitions.WithLabelValues(status).Inc()
}
