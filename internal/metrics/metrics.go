// Package metrics exposes Prometheus collectors for the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "projectboard"

// Metrics holds the server's collectors on a private registry.
//
// Metrics:
//   - projectboard_http_requests_total{method,route,code}
//   - projectboard_http_request_duration_seconds{method,route}
//   - projectboard_task_status_transitions_total{from,to}
//   - projectboard_search_requests_total{include_projects}
//   - projectboard_search_results (histogram)
//   - projectboard_cache_invalidations_total{tag}
//   - projectboard_websocket_connections
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	StatusTransitions *prometheus.CounterVec
	Searches          *prometheus.CounterVec
	SearchResults     prometheus.Histogram
	Invalidations     *prometheus.CounterVec
	WSConnections     prometheus.Gauge
}

// New registers every collector on a fresh registry, so tests may build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_status_transitions_total",
			Help:      "Task status changes by source and target column.",
		}, []string{"from", "to"}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Global search requests.",
		}, []string{"include_projects"}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Read cache entries dropped by tag.",
		}, []string{"tag"}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSearch records one search and its result count.
func (m *Metrics) ObserveSearch(includeProjects bool, results int) {
	m.Searches.WithLabelValues(strconv.FormatBool(includeProjects)).Inc()
	m.SearchResults.Observe(float64(results))
}

// ObserveInvalidation records entries dropped for tags.
func (m *Metrics) ObserveInvalidation(dropped int, tags ...string) {
	for _, tag := range tags {
		m.Invalidations.WithLabelValues(tagFamily(tag)).Add(float64(dropped))
	}
}

// tagFamily strips entity ids so label cardinality stays bounded.
func tagFamily(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ':' {
			return tag[:i]
		}
	}
	return tag
}
