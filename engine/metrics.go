package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tradeloop"

// Metrics holds the engine's prometheus collectors on a private registry
type Metrics struct {
	registry       *prometheus.Registry
	events         *prometheus.CounterVec
	fills          *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	strategyErrors *prometheus.CounterVec
	lateEvents     *prometheus.CounterVec
	stepLatency    prometheus.Histogram
	activeFeeds    prometheus.Gauge
}

// NewMetrics registers a fresh set of engine collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Market and timer events taken off the merged timeline.",
		}, []string{"kind"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fills generated by brokers.",
		}, []string{"broker"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_rejections_total",
			Help:      "Orders rejected by brokers.",
		}, []string{"broker"}),
		strategyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_errors_total",
			Help:      "Errors returned by strategy callbacks.",
		}, []string{"strategy"}),
		lateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_events_total",
			Help:      "Events dropped because they were older than the engine clock.",
		}, []string{"feed"}),
		stepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent processing one timeline event.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		activeFeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_feeds",
			Help:      "Feeds that have not finished.",
		}),
	}
	m.registry.MustRegister(m.events, m.fills, m.rejections, m.strategyErrors, m.lateEvents, m.stepLatency, m.activeFeeds)
	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
