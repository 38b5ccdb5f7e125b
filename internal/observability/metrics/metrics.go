package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics exposes counters/histograms for calls to the clinic backend.
type APIMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	unauthorized   prometheus.Counter
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	m := &APIMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total requests sent to the clinic backend",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicdesk",
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "Latency of clinic backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "api",
			Name:      "unauthorized_total",
			Help:      "Responses that invalidated the session",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.unauthorized)
	return m
}

// ObserveRequest records one backend round trip. code 0 means transport failure.
func (m *APIMetrics) ObserveRequest(method, route string, code int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requestsTotal.WithLabelValues(method, route, label).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(seconds)
}

func (m *APIMetrics) ObserveUnauthorized() {
	if m == nil {
		return
	}
	m.unauthorized.Inc()
}

// WorkflowMetrics counts appointment lifecycle outcomes.
type WorkflowMetrics struct {
	transitionsTotal *prometheus.CounterVec
	billingTotal     *prometheus.CounterVec
	paymentsTotal    *prometheus.CounterVec
	billedAmount     prometheus.Counter
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by outcome",
		}, []string{"from", "to", "outcome"}),
		billingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "workflow",
			Name:      "finish_and_bill_total",
			Help:      "Finish-and-bill attempts by outcome",
		}, []string{"outcome"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "workflow",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by channel and reported status",
		}, []string{"channel", "status"}),
		billedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "workflow",
			Name:      "billed_amount_cents_total",
			Help:      "Sum of amounts on successfully created bills",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.billingTotal, m.paymentsTotal, m.billedAmount)
	return m
}

func (m *WorkflowMetrics) ObserveTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

func (m *WorkflowMetrics) ObserveFinishAndBill(outcome string, amountCents int64) {
	if m == nil {
		return
	}
	m.billingTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" && amountCents > 0 {
		m.billedAmount.Add(float64(amountCents))
	}
}

func (m *WorkflowMetrics) ObservePayment(channel, status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(channel, status).Inc()
}
