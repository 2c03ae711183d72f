package microservice

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tagus/enterprise-agents/pkg/workflow"
)

// Metrics are the Prometheus collectors of the API and the agent graphs
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	routes      *prometheus.CounterVec
	nodeErrors  *prometheus.CounterVec
	generations *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enterprise_agents_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"agent", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enterprise_agents_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"agent", "endpoint"},
		),
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enterprise_agents_route_decisions_total",
				Help: "Routing decisions taken by the agent graphs",
			},
			[]string{"agent", "from", "label"},
		),
		nodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enterprise_agents_node_errors_total",
				Help: "Graph nodes that returned an error",
			},
			[]string{"agent", "node"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enterprise_agents_generations_total",
				Help: "Context answers generated, including retries",
			},
			[]string{"agent"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.duration, m.routes, m.nodeErrors, m.generations)
	return m
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Observe records one finished request
func (m *Metrics) Observe(agent, endpoint string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(agent, endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(agent, endpoint).Observe(elapsed.Seconds())
}

// GraphHooks counts the routing decisions and node failures of one agent
func (m *Metrics) GraphHooks(agent string) workflow.Hooks {
	return workflow.Hooks{
		AfterNode: func(_ context.Context, node string, err error) {
			if node == workflow.NodeGenerate && err == nil {
				m.generations.WithLabelValues(agent).Inc()
			}
			if err != nil {
				m.nodeErrors.WithLabelValues(agent, node).Inc()
			}
		},
		OnRoute: func(_ context.Context, from, label, _ string) {
			m.routes.WithLabelValues(agent, from, label).Inc()
		},
	}
}
