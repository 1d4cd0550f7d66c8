// Package observability holds the process-wide webhook counters and their
// two exposure formats: a JSON snapshot for the admin API and the Prometheus
// text exposition.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// registry is dedicated to the webhook counters so the exposition carries
// exactly the four series, nothing else.
var registry = prometheus.NewRegistry()

var (
	// WebhookProcessed counts events that dispatched to completion
	WebhookProcessed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "webhook_processed_total",
		Help: "Number of processed webhook events.",
	})

	// WebhookFailed counts dispatch failures (including scheduled retries)
	WebhookFailed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "webhook_failed_total",
		Help: "Number of failed webhook events.",
	})

	// WebhookIgnored counts events deliberately not applied (unknown type,
	// stale period end)
	WebhookIgnored = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "webhook_ignored_total",
		Help: "Number of ignored webhook events.",
	})

	// WebhookReplayed counts idempotent repeat deliveries of terminally
	// handled events
	WebhookReplayed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "webhook_replayed_total",
		Help: "Number of replayed idempotent webhook events.",
	})
)

// expositionOrder fixes the series order of the text format
var expositionOrder = []struct {
	name    string
	help    string
	counter prometheus.Counter
}{
	{"webhook_processed_total", "Number of processed webhook events.", WebhookProcessed},
	{"webhook_failed_total", "Number of failed webhook events.", WebhookFailed},
	{"webhook_ignored_total", "Number of ignored webhook events.", WebhookIgnored},
	{"webhook_replayed_total", "Number of replayed idempotent webhook events.", WebhookReplayed},
}

// counterValue reads a counter's current value through the client_model
// protocol. Atomic loads only; the counters are independent.
func counterValue(c prometheus.Counter) int64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

// Snapshot returns the JSON-facing view of the counters, keyed without the
// _total suffix to match the admin API contract.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"webhook_processed": counterValue(WebhookProcessed),
		"webhook_failed":    counterValue(WebhookFailed),
		"webhook_ignored":   counterValue(WebhookIgnored),
		"webhook_replayed":  counterValue(WebhookReplayed),
	}
}

// Handler serves the Prometheus text exposition (format version 0.0.4) for
// the four counters.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		for _, series := range expositionOrder {
			fmt.Fprintf(w, "# HELP %s %s\n", series.name, series.help)
			fmt.Fprintf(w, "# TYPE %s counter\n", series.name)
			fmt.Fprintf(w, "%s %d\n", series.name, counterValue(series.counter))
		}
	})
}
