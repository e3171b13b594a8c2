// Package metrics holds the Prometheus collectors shared by the resolver packages.
// Collectors live on a private registry so tests and embedders do not collide with
// the default global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stream_resolver"

// Registry is the registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var (
	// DiscoveryTotal counts category discovery runs by result (ok, error).
	DiscoveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "group_discovery_total",
		Help:      "Category group discovery runs by result.",
	}, []string{"result"})

	// FanoutItemsTotal counts bounded/paged work items by result (ok, error, panic).
	FanoutItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_items_total",
		Help:      "Fan-out work items by result.",
	}, []string{"result"})

	// FanoutInflight is the number of fan-out invocations currently running.
	FanoutInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fanout_inflight",
		Help:      "Fan-out invocations currently running.",
	})

	// UpstreamRequestsTotal counts outbound HTTP requests by host and status code ("error" on transport failure).
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Outbound HTTP requests by host and status.",
	}, []string{"host", "code"})

	// PublishTotal counts manifest publishes by the store that served the final URL (primary, secondary, failed).
	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Manifest publishes by serving store.",
	}, []string{"store"})

	// ProbeTotal counts primary-store probes by outcome (ok, unavailable).
	ProbeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_probe_total",
		Help:      "Primary store reachability probes by outcome.",
	}, []string{"outcome"})

	// APIRequestsTotal counts requests served by the HTTP API by route and status.
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP API requests by route and status.",
	}, []string{"route", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DiscoveryTotal,
		FanoutItemsTotal,
		FanoutInflight,
		UpstreamRequestsTotal,
		PublishTotal,
		ProbeTotal,
		APIRequestsTotal,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
