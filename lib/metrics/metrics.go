// Package metrics defines the Prometheus collectors reported by the gateway.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the gateway collectors, all labelled by network.
type Metrics struct {
	SlotsActive     *prometheus.GaugeVec
	WaitQueue       *prometheus.GaugeVec
	SessionsLive    *prometheus.GaugeVec
	SessionsExpired *prometheus.CounterVec
	QueriesServed   *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns the process-wide collectors, registering them on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultM = &Metrics{
			SlotsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "qgw",
				Subsystem: "session",
				Name:      "slots_active",
				Help:      "Currently held admission slots.",
			}, []string{"net"}),
			WaitQueue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "qgw",
				Subsystem: "session",
				Name:      "wait_queue_depth",
				Help:      "Acquirers currently queued for an admission slot.",
			}, []string{"net"}),
			SessionsLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "qgw",
				Subsystem: "session",
				Name:      "live",
				Help:      "Sessions currently held in the store.",
			}, []string{"net"}),
			SessionsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "qgw",
				Subsystem: "session",
				Name:      "expired_total",
				Help:      "Total sessions reclaimed by the expiry sweeper.",
			}, []string{"net"}),
			QueriesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "qgw",
				Subsystem: "gateway",
				Name:      "queries_served_total",
				Help:      "Total balance and transaction queries served, by network and outcome.",
			}, []string{"net", "outcome"}),
		}
		prometheus.MustRegister(
			defaultM.SlotsActive,
			defaultM.WaitQueue,
			defaultM.SessionsLive,
			defaultM.SessionsExpired,
			defaultM.QueriesServed,
		)
	})

	return defaultM
}
