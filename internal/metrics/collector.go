package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector метрики платёжного контура. Все методы безопасны для nil.
type Collector struct {
	payments         *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	outboxEvents     *prometheus.CounterVec
	outboxDispatch   prometheus.Histogram
	httpRequestTimes *prometheus.HistogramVec
}

// New регистрирует метрики на переданном registerer. Для reg == nil возвращает пустой коллектор.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		return &Collector{}
	}

	c := &Collector{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment intent operations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Order settlements by outcome.",
		}, []string{"outcome"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal requests by payment method and outcome.",
		}, []string{"method", "outcome"}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Audit outbox events dispatched by type and outcome.",
		}, []string{"event_type", "outcome"}),
		outboxDispatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_dispatch_duration_seconds",
			Help:    "Duration of one outbox dispatch batch.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequestTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(c.payments, c.settlements, c.withdrawals, c.outboxEvents, c.outboxDispatch, c.httpRequestTimes)
	return c
}

func (c *Collector) IncPayment(provider, outcome string) {
	if c == nil || c.payments == nil {
		return
	}
	c.payments.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (c *Collector) IncSettlement(outcome string) {
	if c == nil || c.settlements == nil {
		return
	}
	c.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *Collector) IncWithdrawal(method, outcome string) {
	if c == nil || c.withdrawals == nil {
		return
	}
	c.withdrawals.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

func (c *Collector) IncOutboxEvent(eventType, outcome string) {
	if c == nil || c.outboxEvents == nil {
		return
	}
	c.outboxEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (c *Collector) ObserveOutboxDispatch(d time.Duration) {
	if c == nil || c.outboxDispatch == nil {
		return
	}
	c.outboxDispatch.Observe(d.Seconds())
}

func (c *Collector) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil || c.httpRequestTimes == nil {
		return
	}
	c.httpRequestTimes.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
