// Package metrics defines the Prometheus collectors of the client core.
// They register with the default registry on import and are served by the
// callback listener under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gigmarket"

// NavigationsTotal counts router transitions.
// Label:
//   - kind: "push", "back", "replace" or "restore"
var NavigationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigations_total",
		Help:      "Total number of router transitions, by kind.",
	},
	[]string{"kind"},
)

// ProfileFetchesTotal counts individual profile row requests.
// Label:
//   - result: "ok", "not_found" or "error"
var ProfileFetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_fetches_total",
		Help:      "Total number of profile fetch attempts, by result.",
	},
	[]string{"result"},
)

// ProfileErrorsTotal counts profile fetches that exhausted their retries.
var ProfileErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_errors_total",
		Help:      "Total number of profile fetches that gave up after retrying.",
	},
)

// AuthEventsTotal counts auth-state notifications received from the backend.
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Total number of auth-state changes, by event.",
	},
	[]string{"event"},
)

// DeepLinksTotal counts requests handled by the callback listener.
var DeepLinksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deep_links_total",
		Help:      "Total number of deep links received, by route and outcome.",
	},
	[]string{"route", "outcome"},
)
