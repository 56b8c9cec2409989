// Package metrics declares the Prometheus collectors exported by the
// billing service. Collectors register with the default registry on init
// and are served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "artshare"

var (
	// WebhookRequestsTotal counts provider webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total billing webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Billing webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// WebhookDuplicatesTotal counts deliveries skipped because the event id was already processed.
	WebhookDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duplicates_total",
		Help:      "Webhook deliveries skipped as duplicates.",
	})

	// ReconcileTotal counts reconciliation outcomes by source
	// (checkout_completed, invoice_paid, ...) and outcome (activated, revoked, noop, stale, error).
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "reconcile_total",
		Help:      "Entitlement reconciliations by source and outcome.",
	}, []string{"source", "outcome"})

	// UsageResetsTotal counts usage-cycle resets by source.
	UsageResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "usage_resets_total",
		Help:      "Usage counter resets by reconciliation source.",
	}, []string{"source"})

	// CheckoutSessionsTotal counts sessions handed out by kind (checkout, portal).
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "Checkout and portal sessions created.",
	}, []string{"kind"})

	// SimulationsTotal counts simulated activations by result (scheduled, succeeded, noop, failed).
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "simulations_total",
		Help:      "Simulated activations by result.",
	}, []string{"result"})

	// LiveConnections tracks connections currently held by the registry.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "live_connections",
		Help:      "Live notification connections on this instance.",
	})

	// NotificationsTotal counts notification deliveries by channel and result.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "deliveries_total",
		Help:      "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
