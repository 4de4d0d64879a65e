package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the auth session lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionFetches        prometheus.Counter
	SharedInitializations prometheus.Counter
	InitializeDuration    prometheus.Histogram
	BrokerSubscribers     prometheus.Gauge
	UpstreamSubscriptions prometheus.Counter
	CallbackOutcomes      *prometheus.CounterVec
	ActiveClients         prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionFetches: f.NewCounter(prometheus.CounterOpts{
			Name: "brandbolt_session_fetches_total",
			Help: "Session/user fetch pairs sent to the auth backend",
		}),
		SharedInitializations: f.NewCounter(prometheus.CounterOpts{
			Name: "brandbolt_initialize_shared_total",
			Help: "Initialize calls that joined an in-flight initialization",
		}),
		InitializeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brandbolt_initialize_duration_seconds",
			Help:    "Duration of session store initialization",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BrokerSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "brandbolt_auth_event_subscribers",
			Help: "Consumers currently subscribed to auth-change events",
		}),
		UpstreamSubscriptions: f.NewCounter(prometheus.CounterOpts{
			Name: "brandbolt_auth_event_upstream_subscriptions_total",
			Help: "Upstream auth-change subscriptions created by brokers",
		}),
		CallbackOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brandbolt_oauth_callback_total",
			Help: "OAuth callback results",
		}, []string{"outcome"}),
		ActiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "brandbolt_active_clients",
			Help: "Browser clients with a live coordinator",
		}),
	}
}

func (m *Metrics) IncrementSessionFetches() {
	if m == nil {
		return
	}
	m.SessionFetches.Inc()
}

func (m *Metrics) IncrementSharedInitializations() {
	if m == nil {
		return
	}
	m.SharedInitializations.Inc()
}

// ObserveInitialize records the duration of an initialization.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveInitialize(start time.Time) {
	if m == nil {
		return
	}
	m.InitializeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddBrokerSubscribers(delta int) {
	if m == nil {
		return
	}
	m.BrokerSubscribers.Add(float64(delta))
}

func (m *Metrics) IncrementUpstreamSubscriptions() {
	if m == nil {
		return
	}
	m.UpstreamSubscriptions.Inc()
}

func (m *Metrics) IncrementCallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.CallbackOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddActiveClients(delta int) {
	if m == nil {
		return
	}
	m.ActiveClients.Add(float64(delta))
}
