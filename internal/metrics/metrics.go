// Package metrics exposes Prometheus instrumentation for triage runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	StageOutcomes      *prometheus.CounterVec   // stage results by stage and source
	CompletionErrors   *prometheus.CounterVec   // failed completion calls by stage
	CompletionDuration *prometheus.HistogramVec // completion latency by stage
	TicketsTotal       prometheus.Counter
	ReviewVerdicts     *prometheus.CounterVec // reviewer verdicts by verdict and route source
	RoutingTrust       *prometheus.GaugeVec   // per-team routing trust score
}

// New creates the triage collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_stage_outcomes_total",
			Help: "Stage results by stage and the path that produced them",
		}, []string{"stage", "source"}),
		CompletionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_completion_errors_total",
			Help: "Completion calls that returned an error",
		}, []string{"stage"}),
		CompletionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_completion_duration_seconds",
			Help:    "Latency of completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		TicketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_tickets_total",
			Help: "Tickets run through the pipeline",
		}),
		ReviewVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_review_verdicts_total",
			Help: "Reviewer verdicts on routing decisions",
		}, []string{"verdict", "route_source"}),
		RoutingTrust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "triage_routing_trust",
			Help: "Routing trust score per team, from reviewer verdicts",
		}, []string{"team"}),
	}

	reg.MustRegister(m.StageOutcomes, m.CompletionErrors, m.CompletionDuration, m.TicketsTotal,
		m.ReviewVerdicts, m.RoutingTrust)
	return m
}

func (m *Metrics) ObserveStage(stage, source string) {
	if m == nil {
		return
	}
	m.StageOutcomes.WithLabelValues(stage, source).Inc()
}

func (m *Metrics) ObserveCompletion(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompletionDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.CompletionErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveTicket() {
	if m == nil {
		return
	}
	m.TicketsTotal.Inc()
}

func (m *Metrics) ObserveReview(verdict, routeSource string) {
	if m == nil {
		return
	}
	m.ReviewVerdicts.WithLabelValues(verdict, routeSource).Inc()
}

func (m *Metrics) SetRoutingTrust(team string, score float64) {
	if m == nil {
		return
	}
	m.RoutingTrust.WithLabelValues(team).Set(score)
}
