package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// eventsBuilt counts Event Builder outcomes.
	// Labels:
	// - status: "ok", "invalid" or "unparsable"
	eventsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventrelay",
			Subsystem: "builder",
			Name:      "events_total",
			Help:      "Number of audit events processed by the event builder",
		},
		[]string{"status"},
	)

	// eventsSuppressed counts events dropped by suppression rules.
	// Labels:
	// - rule: the rule id that matched first
	eventsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventrelay",
			Subsystem: "rules",
			Name:      "suppressed_total",
			Help:      "Number of cleansed events suppressed before publish",
		},
		[]string{"rule"},
	)

	// publishTotal counts publish attempts.
	// Labels:
	// - bus:    "sns", "redis", "http" or "file"
	// - status: "success" or "failure"
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventrelay",
			Subsystem: "publisher",
			Name:      "messages_total",
			Help:      "Number of publish attempts by bus and outcome",
		},
		[]string{"bus", "status"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eventrelay",
			Subsystem: "publisher",
			Name:      "send_duration_seconds",
			Help:      "Duration of message bus sends",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"bus", "status"},
	)

	consumerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eventrelay",
			Subsystem: "input",
			Name:      "errors_total",
			Help:      "Number of failed reads from the event source",
		},
	)
)

// IncBuilt increments the builder counter for the given status.
func IncBuilt(status string) {
	if status == "" {
		status = "unknown"
	}
	eventsBuilt.WithLabelValues(status).Inc()
}

// IncSuppressed increments the suppression counter for a rule.
func IncSuppressed(rule string) {
	if rule == "" {
		rule = "unknown"
	}
	eventsSuppressed.WithLabelValues(rule).Inc()
}

// ObservePublish records one publish attempt.
func ObservePublish(bus, status string, d time.Duration) {
	if bus == "" {
		bus = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	publishTotal.WithLabelValues(bus, status).Inc()
	publishDuration.WithLabelValues(bus, status).Observe(d.Seconds())
}

// IncConsumerError increments the input error counter.
func IncConsumerError() {
	consumerErrors.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
