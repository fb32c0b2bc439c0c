package mockapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fault injection metrics
	injectedFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adrelay_mock_injected_faults_total",
		Help: "Total number of faults injected through X-Mock headers",
	}, []string{"kind"})

	// Domain metrics
	decisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adrelay_mock_decisions_total",
		Help: "Total number of ad decisions served",
	})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adrelay_mock_events_total",
		Help: "Total number of tracked events by result",
	}, []string{"type", "result"})
)

// RecordInjectedFault records a fault of the given kind
func RecordInjectedFault(kind string) {
	injectedFaults.WithLabelValues(kind).Inc()
}

// RecordDecision records a served decision
func RecordDecision() {
	decisions.Inc()
}

// RecordEvent records an event as "new" or "replayed"
func RecordEvent(eventType, result string) {
	events.WithLabelValues(eventType, result).Inc()
}
