// Package metrics aggregates the Prometheus collectors the realtime
// core reports into.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcome label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeOffline   = "offline"
)

// Metrics holds the collectors shared across the core components. One
// instance is built per process and handed down as a dependency.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	EnvelopesTotal    *prometheus.CounterVec
	DeliveriesTotal   *prometheus.CounterVec
	PresenceEvents    *prometheus.CounterVec
	RecallsTotal      *prometheus.CounterVec
	RejectedTotal     *prometheus.CounterVec
}

// New registers all collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatwire_active_connections",
			Help: "Number of registered live connections.",
		}),
		EnvelopesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_envelopes_total",
			Help: "Inbound envelopes processed, by kind.",
		}, []string{"kind"}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_deliveries_total",
			Help: "Individual delivery attempts, by outcome.",
		}, []string{"outcome"}),
		PresenceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_presence_events_total",
			Help: "Presence transitions broadcast to friends, by status.",
		}, []string{"status"}),
		RecallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_recalls_total",
			Help: "Recall requests, by outcome.",
		}, []string{"outcome"}),
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_rejected_envelopes_total",
			Help: "Envelopes rejected before dispatch, by reason.",
		}, []string{"reason"}),
	}
}
