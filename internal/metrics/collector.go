package metrics

import (
	"net/http"
	"strconv"
	"time"

	"chefitup/internal/shared"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the Prometheus metrics of one process. A nil *Collector
// accepts every call and records nothing.
type Collector struct {
	registry *prometheus.Registry

	searchTiers  *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	llmTokens    *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	exports      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		searchTiers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefitup_search_tier_total",
				Help: "Recipe searches by the tier that produced the result",
			},
			[]string{"tier"},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefitup_llm_calls_total",
				Help: "LLM calls by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefitup_llm_tokens_total",
				Help: "LLM tokens consumed by agent and kind",
			},
			[]string{"agent", "kind"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chefitup_llm_latency_seconds",
				Help:    "LLM call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"agent"},
		),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefitup_instacart_exports_total",
				Help: "Shopping list exports by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefitup_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chefitup_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSearch counts a search answered by tier.
func (c *Collector) ObserveSearch(tier string) {
	if c == nil {
		return
	}
	c.searchTiers.WithLabelValues(tier).Inc()
}

// ObserveLLM counts one LLM call and its token usage.
func (c *Collector) ObserveLLM(meta shared.AgentMeta, err error) {
	if c == nil {
		return
	}
	c.llmCalls.WithLabelValues(meta.AgentName, outcome(err)).Inc()
	c.llmLatency.WithLabelValues(meta.AgentName).Observe(meta.Latency.Seconds())
	c.llmTokens.WithLabelValues(meta.AgentName, "prompt").Add(float64(meta.Usage.PromptTokens))
	c.llmTokens.WithLabelValues(meta.AgentName, "completion").Add(float64(meta.Usage.CompletionTokens))
}

// ObserveExport counts one Instacart export.
func (c *Collector) ObserveExport(mock bool, err error) {
	if c == nil {
		return
	}
	mode := "live"
	if mock {
		mode = "mock"
	}
	c.exports.WithLabelValues(mode, outcome(err)).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
