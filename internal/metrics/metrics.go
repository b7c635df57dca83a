// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exports bridge and notification counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "treerpc"

// Metrics implements bridge.Observer.
type Metrics struct {
	calls         *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "calls_total",
			Help:      "Bridge operations by result.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Bridge operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Change notifications handed to each sink.",
		}, []string{"sink", "status"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration, m.notifications} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCall implements bridge.Observer.
func (m *Metrics) ObserveCall(op string, elapsed time.Duration, err error) {
	m.calls.WithLabelValues(op, status(err)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveNotification counts one delivery attempt to sink.
func (m *Metrics) ObserveNotification(sink string, err error) {
	m.notifications.WithLabelValues(sink, status(err)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
