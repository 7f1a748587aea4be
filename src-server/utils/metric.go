package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Latencies are pushed through the channels and picked up by the metric
// package; counters are registered there too. Every method is safe on a
// nil *Metric and never blocks.
type Metric struct {
	DatabaseRead       chan float64
	DatabaseWrite      chan float64
	DiscordSendMessage chan float64

	Registrations *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:       make(chan float64, 16),
		DatabaseWrite:      make(chan float64, 16),
		DiscordSendMessage: make(chan float64, 16),

		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regbridge_registrations_total",
			Help: "Registrations received over HTTP, by outcome",
		}, []string{"outcome"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regbridge_decisions_total",
			Help: "Staff decisions on review prompts, by action and outcome",
		}, []string{"action", "outcome"}),
	}
}

func push(ch chan float64, d time.Duration) {
	select {
	case ch <- float64(d.Microseconds()):
	default:
	}
}

func (m *Metric) ObserveDatabaseRead(d time.Duration) {
	if m != nil {
		push(m.DatabaseRead, d)
	}
}

func (m *Metric) ObserveDatabaseWrite(d time.Duration) {
	if m != nil {
		push(m.DatabaseWrite, d)
	}
}

func (m *Metric) ObserveDiscordSendMessage(d time.Duration) {
	if m != nil {
		push(m.DiscordSendMessage, d)
	}
}

func (m *Metric) CountRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metric) CountDecision(action, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(action, outcome).Inc()
	}
}
