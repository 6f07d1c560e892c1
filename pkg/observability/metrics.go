package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lendflow"

// Metrics holds the engine collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Turns            *prometheus.CounterVec
	TurnDuration     prometheus.Histogram
	StageEntries     *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	Decisions        *prometheus.CounterVec
	ClassifierHints  *prometheus.CounterVec
	ClassifierErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg uses the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Messages processed, by stage after the turn.",
		}, []string{"stage"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to resolve one message.",
			Buckets:   prometheus.DefBuckets,
		}),
		StageEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_entries_total",
			Help:      "Stage entries, by stage.",
		}, []string{"stage"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "cascaded"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Underwriting decisions, by decision and approval path.",
		}, []string{"decision", "approval_path", "escalated"}),
		ClassifierHints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_hints_total",
			Help:      "Classifier hints, by source and whether the router followed them.",
		}, []string{"source", "accepted"}),
		ClassifierErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_errors_total",
			Help:      "Classifier calls that failed.",
		}),
	}
	reg.MustRegister(m.Turns, m.TurnDuration, m.StageEntries, m.HandlerDuration,
		m.Decisions, m.ClassifierHints, m.ClassifierErrors)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			m.StageEntries.WithLabelValues(string(e.Stage)).Inc()
		},
		OnHandler: func(ctx context.Context, e *domain.HandlerEvent) {
			m.HandlerDuration.WithLabelValues(e.Handler, strconv.FormatBool(e.Cascaded)).Observe(e.Duration.Seconds())
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			m.Decisions.WithLabelValues(string(e.Decision), e.ApprovalPath, strconv.FormatBool(e.Escalated)).Inc()
		},
		OnClassifier: func(ctx context.Context, e *domain.ClassifierEvent) {
			if e.Err != nil {
				m.ClassifierErrors.Inc()
				return
			}
			m.ClassifierHints.WithLabelValues(e.Source, strconv.FormatBool(e.Accepted)).Inc()
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(e.Stage)).Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the registry m was registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
