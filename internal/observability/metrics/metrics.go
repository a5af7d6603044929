package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the agent's message flow.
type ConversationMetrics struct {
	messagesTotal      *prometheus.CounterVec
	classifierLatency  *prometheus.HistogramVec
	fallbackRecoveries *prometheus.CounterVec
	directoryRequests  *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barber",
			Subsystem: "conversation",
			Name:      "messages_total",
			Help:      "Inbound messages by resolution path and final intent",
		}, []string{"path", "intent"}),
		classifierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barber",
			Subsystem: "conversation",
			Name:      "classifier_latency_seconds",
			Help:      "Latency of classifier calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20},
		}, []string{"call", "status"}),
		fallbackRecoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barber",
			Subsystem: "conversation",
			Name:      "fallback_recoveries_total",
			Help:      "Messages answered by the rule-based fallback after a classifier failure",
		}, []string{"reason"}),
		directoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barber",
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "Location directory requests by endpoint and outcome",
		}, []string{"endpoint", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.classifierLatency, m.fallbackRecoveries, m.directoryRequests)
	return m
}

func (m *ConversationMetrics) ObserveMessage(path, intent string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(path, intent).Inc()
}

func (m *ConversationMetrics) ObserveClassifierCall(call string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.classifierLatency.WithLabelValues(call, status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveFallbackRecovery(reason string) {
	if m == nil {
		return
	}
	m.fallbackRecoveries.WithLabelValues(reason).Inc()
}

func (m *ConversationMetrics) ObserveDirectoryRequest(endpoint string, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.directoryRequests.WithLabelValues(endpoint, status).Inc()
}
