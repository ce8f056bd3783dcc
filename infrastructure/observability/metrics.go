// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"canvas-backend/application/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Remote function metrics
	RemoteCalls    *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec

	// Business metrics
	Generations *prometheus.CounterVec
	Outputs     *prometheus.CounterVec
	Analyses    *prometheus.CounterVec

	// Autosave metrics
	Autosaves        *prometheus.CounterVec
	AutosaveDuration prometheus.Histogram

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
}

var _ ports.Metrics = (*Collector)(nil)

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RemoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of edge function calls",
			},
			[]string{"function", "status"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Edge function call duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"function"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of generation runs by outcome",
			},
			[]string{"format", "outcome"},
		),
		Outputs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_created_total",
				Help:      "Total number of output nodes created",
			},
			[]string{"format"},
		),
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_analyses_total",
				Help:      "Total number of image analyses",
			},
			[]string{"kind", "result"},
		),
		Autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autosaves_total",
				Help:      "Total number of autosave attempts",
			},
			[]string{"result"},
		),
		AutosaveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autosave_duration_seconds",
				Help:      "Autosave duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of content cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of content cache misses",
			},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Total number of evicted content cache entries",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.RemoteCalls, c.RemoteDuration,
		c.Generations, c.Outputs, c.Analyses,
		c.Autosaves, c.AutosaveDuration,
		c.CacheHits, c.CacheMisses, c.CacheEvictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRemoteCall implements ports.Metrics
func (c *Collector) RecordRemoteCall(function, status string, duration time.Duration) {
	c.RemoteCalls.WithLabelValues(function, status).Inc()
	c.RemoteDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordGeneration implements ports.Metrics
func (c *Collector) RecordGeneration(format, outcome string) {
	c.Generations.WithLabelValues(format, outcome).Inc()
}

// RecordOutputs implements ports.Metrics
func (c *Collector) RecordOutputs(format string, count int) {
	c.Outputs.WithLabelValues(format).Add(float64(count))
}

// RecordCacheLookup implements ports.Metrics
func (c *Collector) RecordCacheLookup(hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// RecordCacheEviction implements ports.Metrics
func (c *Collector) RecordCacheEviction(count int) {
	c.CacheEvictions.Add(float64(count))
}

// RecordAnalysis implements ports.Metrics
func (c *Collector) RecordAnalysis(kind, result string) {
	c.Analyses.WithLabelValues(kind, result).Inc()
}

// RecordAutosave implements ports.Metrics
func (c *Collector) RecordAutosave(result string, duration time.Duration) {
	c.Autosaves.WithLabelValues(result).Inc()
	c.AutosaveDuration.Observe(duration.Seconds())
}
