package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/toolscript/script"
)

// Namespace prefixes every metric name.
const Namespace = "toolscript"

// OutcomeSuccess labels executions that returned no error. Failed
// executions are labeled with their error kind.
const OutcomeSuccess = "success"

// Collector exports orchestrator events as Prometheus metrics. It
// implements script.Observer.
type Collector struct {
	registry *prometheus.Registry

	executions        *prometheus.CounterVec
	executionDuration prometheus.Histogram
	toolCalls         *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	registeredTools   prometheus.Gauge
}

var _ script.Observer = (*Collector)(nil)

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "executions_total",
			Help:      "Total number of script executions by outcome",
		}, []string{"outcome"}),

		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of script executions",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of recorded tool calls",
		}, []string{"tool", "success"}),

		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool handler calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		registeredTools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "registered_tools",
			Help:      "Number of registered tools",
		}),
	}

	c.registry.MustRegister(
		c.executions,
		c.executionDuration,
		c.toolCalls,
		c.toolCallDuration,
		c.registeredTools,
	)
	return c
}

// ToolCalled records one tool call.
func (c *Collector) ToolCalled(rec script.ToolCallRecord) {
	c.toolCalls.WithLabelValues(rec.ToolName, strconv.FormatBool(rec.Success)).Inc()
	c.toolCallDuration.WithLabelValues(rec.ToolName).Observe(rec.Duration.Seconds())
}

// ExecutionFinished records one execution.
func (c *Collector) ExecutionFinished(res script.ExecutionResult, err error) {
	c.executions.WithLabelValues(Outcome(err)).Inc()
	c.executionDuration.Observe(res.Duration.Seconds())
}

// SetRegisteredTools sets the registered-tools gauge.
func (c *Collector) SetRegisteredTools(n int) {
	c.registeredTools.Set(float64(n))
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Outcome returns the executions_total label for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind, ok := script.KindOf(err); ok {
		return kind.String()
	}
	return "error"
}
