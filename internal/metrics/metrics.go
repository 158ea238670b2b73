// Package metrics exposes Prometheus instrumentation for the controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
)

// Metrics bundles the controller's counters and the fleet-state collector.
type Metrics struct {
	registry *prometheus.Registry

	Reservations *prometheus.CounterVec
	Releases     *prometheus.CounterVec
	TicketsTotal *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// QueueDepth is implemented by the ticket scheduler.
type QueueDepth interface {
	QueuedCount() int
}

// New registers all collectors against a fresh registry.
func New(inv *inventory.Manager, queue QueueDepth) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_reservations_total",
			Help: "Machine reservation attempts by outcome.",
		}, []string{"outcome"}),
		Releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_releases_total",
			Help: "Machine release attempts by result.",
		}, []string{"result"}),
		TicketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_tickets_total",
			Help: "Tickets by terminal status.",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		m.Reservations,
		m.Releases,
		m.TicketsTotal,
		m.HTTPRequests,
		&fleetCollector{inv: inv, queue: queue},
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// fleetCollector reads machine status counts and queue depth at scrape time.
type fleetCollector struct {
	inv   *inventory.Manager
	queue QueueDepth
}

var (
	machineStatusDesc = prometheus.NewDesc(
		"switchyard_machines",
		"Machines in the inventory by status.",
		[]string{"status"}, nil,
	)
	queueDepthDesc = prometheus.NewDesc(
		"switchyard_ticket_queue_depth",
		"Tickets waiting for a machine.",
		nil, nil,
	)
)

func (c *fleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- machineStatusDesc
	ch <- queueDepthDesc
}

func (c *fleetCollector) Collect(ch chan<- prometheus.Metric) {
	for status, count := range c.inv.StatusCounts() {
		ch <- prometheus.MustNewConstMetric(
			machineStatusDesc, prometheus.GaugeValue, float64(count), string(status))
	}
	if c.queue != nil {
		ch <- prometheus.MustNewConstMetric(
			queueDepthDesc, prometheus.GaugeValue, float64(c.queue.QueuedCount()))
	}
}
