// Package metrics exposes the Prometheus instruments of uxpilot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector owns a private registry so that tests and embedders can create
// more than one without clashing on the default registerer.
type Collector struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	nodeExecutions     *prometheus.CounterVec
	toolDispatches     *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the instruments under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.Named("metrics"),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs by outcome",
		},
		[]string{"outcome"},
	)

	c.nodeExecutions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of completed graph node executions",
		},
		[]string{"node"},
	)

	c.toolDispatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_dispatch_total",
			Help:      "Total number of browser tool dispatches by result",
		},
		[]string{"tool", "result"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tier"},
	)

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c.logger.Debug("Metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// ObserveRun counts a finished run.
func (c *Collector) ObserveRun(outcome string) {
	c.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNode counts a completed node.
func (c *Collector) ObserveNode(node string) {
	c.nodeExecutions.WithLabelValues(node).Inc()
}

// ObserveToolDispatch counts a tool call.
func (c *Collector) ObserveToolDispatch(tool string, failed bool) {
	result := resultOK
	if failed {
		result = resultError
	}
	c.toolDispatches.WithLabelValues(tool, result).Inc()
}

// ObserveLLMRequest records the latency of one LLM call.
func (c *Collector) ObserveLLMRequest(tier string, d time.Duration) {
	c.llmRequestDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
