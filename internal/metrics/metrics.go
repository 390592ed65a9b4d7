// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package metrics exposes the daemon's Prometheus counters. All methods are safe to call on a nil
// *Metrics, so components do not need to check whether metrics are enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ridegrid"

type Metrics struct {
	registry *prometheus.Registry

	routesPlanned    prometheus.Counter
	routingFailures  prometheus.Counter
	candidates       prometheus.Histogram
	maneuversReached prometheus.Counter
	proximityAlerts  prometheus.Counter
	tripsRecorded    *prometheus.CounterVec
	tripsSaved       prometheus.Counter
	peersVisible     prometheus.Gauge
	samples          *prometheus.CounterVec
}

// New registers all collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		routesPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "routing", Name: "plans_total",
			Help: "Number of successful route plans.",
		}),
		routingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "routing", Name: "failures_total",
			Help: "Number of failed route plans.",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "routing", Name: "candidates",
			Help:    "Number of route candidates per plan.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		maneuversReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "navigation", Name: "maneuvers_reached_total",
			Help: "Number of maneuvers reached during navigation.",
		}),
		proximityAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "radar", Name: "proximity_alerts_total",
			Help: "Number of proximity alerts raised.",
		}),
		tripsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "trips_total",
			Help: "Number of stopped recordings by outcome.",
		}, []string{"outcome"}),
		tripsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "trips_saved_total",
			Help: "Number of trips persisted.",
		}),
		peersVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "radar", Name: "peers_visible",
			Help: "Number of peers currently on the radar.",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "geobus", Name: "samples_total",
			Help: "Number of position samples published per source.",
		}, []string{"source"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.routesPlanned, m.routingFailures, m.candidates, m.maneuversReached, m.proximityAlerts,
		m.tripsRecorded, m.tripsSaved, m.peersVisible, m.samples,
	)
	return m
}

// Registry returns the registry all collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler serving the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RoutePlanned(candidates int) {
	if m == nil {
		return
	}
	m.routesPlanned.Inc()
	m.candidates.Observe(float64(candidates))
}

func (m *Metrics) RoutingFailed() {
	if m == nil {
		return
	}
	m.routingFailures.Inc()
}

func (m *Metrics) ManeuverReached() {
	if m == nil {
		return
	}
	m.maneuversReached.Inc()
}

func (m *Metrics) ProximityAlert() {
	if m == nil {
		return
	}
	m.proximityAlerts.Inc()
}

// TripRecorded counts a stopped recording. Outcome is "summary" or "too_short".
func (m *Metrics) TripRecorded(outcome string) {
	if m == nil {
		return
	}
	m.tripsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TripSaved() {
	if m == nil {
		return
	}
	m.tripsSaved.Inc()
}

func (m *Metrics) SetPeersVisible(n int) {
	if m == nil {
		return
	}
	m.peersVisible.Set(float64(n))
}

func (m *Metrics) SamplePublished(source string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(source).Inc()
}
